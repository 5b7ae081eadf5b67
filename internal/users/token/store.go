// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package token

import (
	"context"
	"time"
)

// Store persists refresh token records.
type Store interface {

	// Create persists a new record.
	Create(context context.Context, record *Record) error

	// FindByHash returns the record with the given digest, revoked or not.
	// A missing record is apperr.TokenNotFound.
	FindByHash(context context.Context, tokenHash string) (*Record, error)

	/*
		Rotate revokes oldID and persists next atomically.

		The revocation is a compare-and-set on the revoked flag: when oldID
		was already revoked (or expired) by the time of the update, nothing
		is written and apperr.TokenRevoked is returned.
	*/
	Rotate(context context.Context, oldID string, next *Record, at time.Time) error

	// Revoke flags one record as revoked. Already revoked records are left untouched.
	Revoke(context context.Context, id string, at time.Time) error

	// RevokeAllForUser revokes every active record of a user and reports how many.
	RevokeAllForUser(context context.Context, userID string, at time.Time) (int64, error)

	// DeleteExpired removes records whose expiry is at or before now.
	DeleteExpired(context context.Context, now time.Time) (int64, error)
}
