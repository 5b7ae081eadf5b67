// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package token

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/marketplace-auth/internal/platform/apperr"
	"github.com/taibuivan/marketplace-auth/internal/platform/database/schema"
	"github.com/taibuivan/marketplace-auth/internal/platform/dberr"
	"github.com/taibuivan/marketplace-auth/internal/platform/postgres"
)

// PostgresStore implements [Store] on the users.refreshtoken table.
type PostgresStore struct {
	db postgres.DB
}

// NewPostgresStore creates a PostgreSQL backed refresh token store.
func NewPostgresStore(db postgres.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

var selectColumns = strings.Join(schema.UserRefreshToken.Columns(), ", ")

// execer is satisfied by both the pool and an open transaction.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Create persists a new refresh token record.
func (repository *PostgresStore) Create(context context.Context, record *Record) error {
	if err := insertRecord(context, repository.db, record); err != nil {
		return dberr.Wrap(err, "refresh_token_create", nil)
	}
	return nil
}

// FindByHash looks a token up by its SHA-256 digest.
func (repository *PostgresStore) FindByHash(context context.Context, tokenHash string) (*Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		selectColumns, schema.UserRefreshToken.Table, schema.UserRefreshToken.TokenHash)

	record, err := scanRecord(repository.db.QueryRow(context, query, tokenHash))
	if err != nil {
		return nil, dberr.Wrap(err, "refresh_token_find", apperr.TokenNotFound())
	}
	return record, nil
}

/*
Rotate revokes the old token and inserts its successor in one transaction.

Description: The UPDATE only matches a row that is still active. When a
concurrent rotation already consumed it, zero rows are affected and the
transaction is rolled back without inserting anything.

Parameters:
  - context: context.Context
  - oldID: string (the token being consumed)
  - next: *Record (its replacement)
  - at: time.Time (revocation timestamp)

Returns:
  - error: apperr.TokenRevoked when the compare-and-set lost, storage errors
*/
func (repository *PostgresStore) Rotate(context context.Context, oldID string, next *Record, at time.Time) error {
	tx, err := repository.db.Begin(context)
	if err != nil {
		return dberr.Wrap(err, "refresh_token_rotate_begin", nil)
	}

	revoke := fmt.Sprintf(`UPDATE %s SET %s = TRUE, %s = $2 WHERE %s = $1 AND %s = FALSE`,
		schema.UserRefreshToken.Table, schema.UserRefreshToken.IsRevoked, schema.UserRefreshToken.RevokedAt,
		schema.UserRefreshToken.ID, schema.UserRefreshToken.IsRevoked)

	tag, err := tx.Exec(context, revoke, oldID, at.UTC())
	if err != nil {
		_ = tx.Rollback(context)
		return dberr.Wrap(err, "refresh_token_rotate_revoke", nil)
	}
	if tag.RowsAffected() == 0 {
		_ = tx.Rollback(context)
		return apperr.TokenRevoked()
	}

	if err := insertRecord(context, tx, next); err != nil {
		_ = tx.Rollback(context)
		return dberr.Wrap(err, "refresh_token_rotate_insert", nil)
	}

	if err := tx.Commit(context); err != nil {
		return dberr.Wrap(err, "refresh_token_rotate_commit", nil)
	}
	return nil
}

// Revoke flags one token as revoked if it is still active.
func (repository *PostgresStore) Revoke(context context.Context, id string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = TRUE, %s = $2 WHERE %s = $1 AND %s = FALSE`,
		schema.UserRefreshToken.Table, schema.UserRefreshToken.IsRevoked, schema.UserRefreshToken.RevokedAt,
		schema.UserRefreshToken.ID, schema.UserRefreshToken.IsRevoked)

	if _, err := repository.db.Exec(context, query, id, at.UTC()); err != nil {
		return dberr.Wrap(err, "refresh_token_revoke", nil)
	}
	return nil
}

// RevokeAllForUser revokes every active token of a user.
func (repository *PostgresStore) RevokeAllForUser(context context.Context, userID string, at time.Time) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s SET %s = TRUE, %s = $2 WHERE %s = $1 AND %s = FALSE`,
		schema.UserRefreshToken.Table, schema.UserRefreshToken.IsRevoked, schema.UserRefreshToken.RevokedAt,
		schema.UserRefreshToken.UserID, schema.UserRefreshToken.IsRevoked)

	tag, err := repository.db.Exec(context, query, userID, at.UTC())
	if err != nil {
		return 0, dberr.Wrap(err, "refresh_token_revoke_all", nil)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes tokens whose expiry has passed, revoked or not.
func (repository *PostgresStore) DeleteExpired(context context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s <= $1`,
		schema.UserRefreshToken.Table, schema.UserRefreshToken.ExpiresAt)

	tag, err := repository.db.Exec(context, query, now.UTC())
	if err != nil {
		return 0, dberr.Wrap(err, "refresh_token_delete_expired", nil)
	}
	return tag.RowsAffected(), nil
}

// # Helpers

func insertRecord(context context.Context, db execer, record *Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		schema.UserRefreshToken.Table,
		schema.UserRefreshToken.ID, schema.UserRefreshToken.UserID, schema.UserRefreshToken.TokenHash,
		schema.UserRefreshToken.UserAgent, schema.UserRefreshToken.IPAddress,
		schema.UserRefreshToken.IssuedAt, schema.UserRefreshToken.ExpiresAt,
	)

	_, err := db.Exec(context, query,
		record.ID,
		record.UserID,
		record.TokenHash,
		record.UserAgent,
		record.IPAddress,
		record.IssuedAt.UTC(),
		record.ExpiresAt.UTC(),
	)
	return err
}

func scanRecord(row pgx.Row) (*Record, error) {
	var record Record
	err := row.Scan(
		&record.ID, &record.UserID, &record.TokenHash, &record.UserAgent, &record.IPAddress,
		&record.Revoked, &record.IssuedAt, &record.ExpiresAt, &record.RevokedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
