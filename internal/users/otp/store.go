// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package otp

import (
	"context"
	"time"
)

// Store persists code records. Implementations make Save and Check atomic.
type Store interface {

	// Save stores record, replacing any record for the same (user, purpose).
	Save(context context.Context, record Record) error

	/*
		Check compares codeHash with the stored record as of now.

		A match deletes the record. A mismatch decrements the attempt counter
		and returns the attempts left. Missing and expired records both
		report OutcomeExpired.
	*/
	Check(context context.Context, userID string, purpose Purpose, codeHash string, now time.Time) (Outcome, int, error)

	// Get returns the active record or nil.
	Get(context context.Context, userID string, purpose Purpose, now time.Time) (*Record, error)
}
