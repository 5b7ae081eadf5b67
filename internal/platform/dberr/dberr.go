// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
//
// # Classification
//
//   - pgx.ErrNoRows becomes the caller-supplied not-found error.
//   - SQLSTATE 23505 (unique_violation) is reported via [IsUniqueViolation].
//   - Connection, resource and operator-intervention classes, deadlines and
//     client-side transport failures become a retryable StorageUnavailable.
//   - Anything else is an Internal error.
package dberr

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/marketplace-auth/internal/platform/apperr"
)

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
//
// notFound is returned as-is for pgx.ErrNoRows; pass nil to treat a missing row
// as an internal error.
func Wrap(err error, action string, notFound *apperr.AppError) error {
	if err == nil {
		return nil
	}

	// 1. Errors already classified upstream pass through untouched
	if apperr.IsAppError(err) {
		return err
	}

	// 2. Not Found mapping
	if errors.Is(err, pgx.ErrNoRows) && notFound != nil {
		return notFound
	}

	// 3. Transient infrastructure failures are retryable
	if IsUnavailable(err) {
		return apperr.StorageUnavailable(fmt.Errorf("%s: %w", action, err))
	}

	// 4. Unknown query errors become Internal Server Errors
	return apperr.Internal(fmt.Errorf("%s: %w", action, err))
}

// IsUniqueViolation reports whether err is a Postgres unique_violation,
// optionally restricted to a named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgError *pgconn.PgError
	if !errors.As(err, &pgError) {
		return false
	}
	if pgError.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || pgError.ConstraintName == constraint
}

// IsUnavailable reports whether err means the database could not serve the
// request right now (as opposed to rejecting it).
func IsUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var pgError *pgconn.PgError
	if errors.As(err, &pgError) {
		return pgerrcode.IsConnectionException(pgError.Code) ||
			pgerrcode.IsInsufficientResources(pgError.Code) ||
			pgerrcode.IsOperatorIntervention(pgError.Code)
	}

	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, pgx.ErrTxClosed) {
		return false
	}

	// Client-side failures (dial, TLS, broken pipe) never reached the server.
	return pgconn.Timeout(err) || pgconn.SafeToRetry(err) || isNetworkError(err)
}

func isNetworkError(err error) bool {
	var connectError *pgconn.ConnectError
	return errors.As(err, &connectError)
}
