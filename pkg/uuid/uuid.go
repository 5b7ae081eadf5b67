// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package uuid generates and checks the identifiers used for accounts and refresh tokens.

Every primary key is a UUIDv7: time-ordered, so new rows land at the end of
the B-tree index instead of splitting pages at random.
*/
package uuid

import "github.com/google/uuid"

// New generates a new UUIDv7 string.
func New() string {
	id, err := uuid.NewV7()

	// entropy failure is an unrecoverable system-level error
	if err != nil {
		panic("uuid: failed to generate UUIDv7: " + err.Error())
	}

	return id.String()
}

// Valid reports whether s is a canonical, hyphenated UUID.
//
// Path parameters are checked with it before they reach a uuid-typed column,
// so a malformed ID is a 400 instead of a driver error.
func Valid(s string) bool {
	if len(s) != 36 {
		return false
	}
	return uuid.Validate(s) == nil
}
