// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package credential

import (
	"context"
	"time"

	"github.com/taibuivan/marketplace-auth/pkg/pagination"
)

// Store defines the data access contract for user accounts.
//
// Every method returns [apperr.AppError] values: NOT_FOUND for missing rows,
// DUPLICATE_EMAIL on a uniqueness conflict and a retryable STORAGE_UNAVAILABLE
// when the backend cannot be reached.
type Store interface {

	/*
		Create persists a brand-new account.

		The email must already be normalised. ID, CreatedAt and UpdatedAt are
		assigned by the store when empty.

		Returns:
		  - error: apperr.DuplicateEmail if the address is taken
	*/
	Create(context context.Context, user *User) error

	// FindByEmail returns the account with the given (normalised) email.
	FindByEmail(context context.Context, email string) (*User, error)

	// FindByID returns the account with the given ID.
	FindByID(context context.Context, id string) (*User, error)

	/*
		UpdateStatus moves an account from one status to another.

		The update is conditional on the current status still being from, so
		two administrators racing on the same account cannot both succeed.

		Returns:
		  - error: apperr.InvalidTransition if the account is no longer in from
	*/
	UpdateStatus(context context.Context, userID string, from, to Status) error

	// UpdatePasswordHash replaces only the password hash.
	UpdatePasswordHash(context context.Context, userID, hash string) error

	// TouchLastLogin records a successful sign-in.
	TouchLastLogin(context context.Context, userID string, at time.Time) error

	// List returns one page of accounts, newest first, and the total match count.
	List(context context.Context, filter Filter, page pagination.Params) ([]*User, int, error)
}
