// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package credential

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taibuivan/marketplace-auth/internal/platform/apperr"
	"github.com/taibuivan/marketplace-auth/internal/platform/database/schema"
	"github.com/taibuivan/marketplace-auth/internal/platform/dberr"
	"github.com/taibuivan/marketplace-auth/internal/platform/postgres"
	"github.com/taibuivan/marketplace-auth/internal/platform/sec"
	"github.com/taibuivan/marketplace-auth/pkg/pagination"
	"github.com/taibuivan/marketplace-auth/pkg/uuid"
)

// PostgresStore implements [Store] on the users.account table.
type PostgresStore struct {
	db postgres.DB
}

// NewPostgresStore creates a PostgreSQL backed credential store.
func NewPostgresStore(db postgres.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

// selectColumns is the shared projection, in [scanUser] order. The business
// subscription flag comes from a correlated subquery and is NULL for every
// other role.
var selectColumns = strings.Join(schema.UserAccount.Columns(), ", ") + fmt.Sprintf(
	", (SELECT b.%s FROM %s b WHERE b.%s = %s.%s) AS %s",
	schema.UserBusiness.HaveSubscription, schema.UserBusiness.Table, schema.UserBusiness.UserID,
	schema.UserAccount.Table, schema.UserAccount.ID, schema.UserBusiness.HaveSubscription,
)

/*
Create persists a new account together with its role profile.

Description: Relies on the unique index over LOWER(email) instead of a
read-then-write check, so concurrent sign-ups with the same address cannot
both succeed. The account row and the customer or business row are written
in one transaction; administrators get no profile row.

Parameters:
  - context: context.Context
  - user: *User (Email already normalised)

Returns:
  - error: apperr.DuplicateEmail, apperr.Conflict (phone) or storage errors
*/
func (repository *PostgresStore) Create(context context.Context, user *User) error {
	prepareForInsert(user, time.Now().UTC())

	tx, err := repository.db.Begin(context)
	if err != nil {
		return dberr.Wrap(err, "credential_create_begin", nil)
	}

	if err := insertAccount(context, tx, user); err != nil {
		_ = tx.Rollback(context)

		switch {
		case dberr.IsUniqueViolation(err, schema.UserAccount.EmailUniqueIndex):
			return apperr.DuplicateEmail()
		case dberr.IsUniqueViolation(err, schema.UserAccount.PhoneUniqueIndex):
			return apperr.Conflict("Phone number is already registered")
		default:
			return dberr.Wrap(err, "credential_create", nil)
		}
	}

	if err := insertProfile(context, tx, user); err != nil {
		_ = tx.Rollback(context)
		return dberr.Wrap(err, "credential_create_profile", nil)
	}

	if err := tx.Commit(context); err != nil {
		return dberr.Wrap(err, "credential_create_commit", nil)
	}
	return nil
}

// FindByEmail looks an account up by its normalised email.
func (repository *PostgresStore) FindByEmail(context context.Context, email string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE LOWER(%s) = $1`,
		selectColumns, schema.UserAccount.Table, schema.UserAccount.Email)

	user, err := scanUser(repository.db.QueryRow(context, query, NormalizeEmail(email)))
	if err != nil {
		return nil, dberr.Wrap(err, "credential_find_by_email", apperr.NotFound("User"))
	}
	return user, nil
}

// FindByID looks an account up by primary key.
func (repository *PostgresStore) FindByID(context context.Context, id string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		selectColumns, schema.UserAccount.Table, schema.UserAccount.ID)

	user, err := scanUser(repository.db.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "credential_find_by_id", apperr.NotFound("User"))
	}
	return user, nil
}

/*
UpdateStatus moves an account between statuses with a compare-and-set on the
current value.

Returns:
  - error: apperr.InvalidTransition when the transition is not allowed or the
    row moved underneath us; apperr.NotFound when the account does not exist
*/
func (repository *PostgresStore) UpdateStatus(context context.Context, userID string, from, to Status) error {
	if !from.CanTransitionTo(to) {
		return apperr.InvalidTransition(string(from), string(to))
	}

	query := fmt.Sprintf(`UPDATE %s SET %s = $3, %s = $4 WHERE %s = $1 AND %s = $2`,
		schema.UserAccount.Table, schema.UserAccount.Status, schema.UserAccount.UpdatedAt,
		schema.UserAccount.ID, schema.UserAccount.Status)

	tag, err := repository.db.Exec(context, query, userID, string(from), string(to), time.Now().UTC())
	if err != nil {
		return dberr.Wrap(err, "credential_update_status", nil)
	}

	if tag.RowsAffected() == 0 {
		current, err := repository.FindByID(context, userID)
		if err != nil {
			return err
		}
		return apperr.InvalidTransition(string(current.Status), string(to))
	}
	return nil
}

// UpdatePasswordHash replaces the stored bcrypt hash.
func (repository *PostgresStore) UpdatePasswordHash(context context.Context, userID, hash string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3 WHERE %s = $1`,
		schema.UserAccount.Table, schema.UserAccount.PasswordHash, schema.UserAccount.UpdatedAt,
		schema.UserAccount.ID)

	tag, err := repository.db.Exec(context, query, userID, hash, time.Now().UTC())
	if err != nil {
		return dberr.Wrap(err, "credential_update_password", nil)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User")
	}
	return nil
}

// TouchLastLogin stamps lastloginat without bumping updatedat.
func (repository *PostgresStore) TouchLastLogin(context context.Context, userID string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1`,
		schema.UserAccount.Table, schema.UserAccount.LastLoginAt, schema.UserAccount.ID)

	if _, err := repository.db.Exec(context, query, userID, at.UTC()); err != nil {
		return dberr.Wrap(err, "credential_touch_last_login", nil)
	}
	return nil
}

/*
List returns a filtered page of accounts.

Description: Builds the WHERE clause from schema column names and uses
COUNT(*) OVER() so the total comes back with the page in one round trip.

Returns:
  - []*User: The page, newest first
  - int: Total matching rows
  - error: Storage failures
*/
func (repository *PostgresStore) List(context context.Context, filter Filter, page pagination.Params) ([]*User, int, error) {
	var queryBuilder strings.Builder
	fmt.Fprintf(&queryBuilder, `SELECT %s, COUNT(*) OVER() AS total FROM %s WHERE 1 = 1`,
		selectColumns, schema.UserAccount.Table)

	args := []any{}
	argID := 1

	if len(filter.Roles) > 0 {
		roles := make([]string, len(filter.Roles))
		for i, role := range filter.Roles {
			roles[i] = string(role)
		}
		fmt.Fprintf(&queryBuilder, " AND %s = ANY($%d)", schema.UserAccount.Role, argID)
		args = append(args, roles)
		argID++
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			statuses[i] = string(status)
		}
		fmt.Fprintf(&queryBuilder, " AND %s = ANY($%d)", schema.UserAccount.Status, argID)
		args = append(args, statuses)
		argID++
	}

	if prefix := NormalizeEmail(filter.EmailPrefix); prefix != "" {
		fmt.Fprintf(&queryBuilder, " AND LOWER(%s) LIKE $%d", schema.UserAccount.Email, argID)
		args = append(args, escapeLike(prefix)+"%")
		argID++
	}

	fmt.Fprintf(&queryBuilder, " ORDER BY %s DESC, %s DESC LIMIT $%d OFFSET $%d",
		schema.UserAccount.CreatedAt, schema.UserAccount.ID, argID, argID+1)
	args = append(args, page.Limit, page.Offset())

	rows, err := repository.db.Query(context, queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "credential_list", nil)
	}
	defer rows.Close()

	users := []*User{}
	total := 0
	for rows.Next() {
		user, err := scanUser(rows, &total)
		if err != nil {
			return nil, 0, dberr.Wrap(err, "credential_list_scan", nil)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, "credential_list_rows", nil)
	}

	return users, total, nil
}

// # Helpers

// scanUser reads one account row; extra receives any trailing columns.
//
// Role and status are read into plain strings and converted afterwards.
func scanUser(row pgx.Row, extra ...any) (*User, error) {
	var (
		user   User
		phone  *string
		gender string
		role   string
		status string
	)

	dest := append([]any{
		&user.ID, &user.Email, &user.PasswordHash, &user.FullName, &phone,
		&user.Address, &user.City, &user.State, &user.Country, &user.Picture, &gender,
		&role, &status, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt,
		&user.HaveSubscription,
	}, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if phone != nil {
		user.Phone = *phone
	}
	user.Gender = Gender(gender)
	user.Role = sec.UserRole(role)
	user.Status = Status(status)
	return &user, nil
}

// insertAccount writes the users.account row.
func insertAccount(context context.Context, tx pgx.Tx, user *User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		schema.UserAccount.Table,
		schema.UserAccount.ID, schema.UserAccount.Email, schema.UserAccount.PasswordHash,
		schema.UserAccount.FullName, schema.UserAccount.Phone,
		schema.UserAccount.Address, schema.UserAccount.City, schema.UserAccount.State,
		schema.UserAccount.Country, schema.UserAccount.Picture, schema.UserAccount.Gender,
		schema.UserAccount.Role, schema.UserAccount.Status,
		schema.UserAccount.CreatedAt, schema.UserAccount.UpdatedAt,
	)

	_, err := tx.Exec(context, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FullName,
		nullableString(user.Phone),
		user.Address,
		user.City,
		user.State,
		user.Country,
		user.Picture,
		string(user.Gender),
		string(user.Role),
		string(user.Status),
		user.CreatedAt,
		user.UpdatedAt,
	)
	return err
}

// insertProfile writes the role-specific profile row.
func insertProfile(context context.Context, tx pgx.Tx, user *User) error {
	switch user.Role {
	case sec.RoleCustomer:
		query := fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES ($1, $2)`,
			schema.UserCustomer.Table, schema.UserCustomer.UserID, schema.UserCustomer.CreatedAt)
		_, err := tx.Exec(context, query, user.ID, user.CreatedAt)
		return err

	case sec.RoleBusinessOwner:
		query := fmt.Sprintf(`INSERT INTO %s (%s, %s, %s) VALUES ($1, $2, $3)`,
			schema.UserBusiness.Table, schema.UserBusiness.UserID,
			schema.UserBusiness.HaveSubscription, schema.UserBusiness.CreatedAt)
		_, err := tx.Exec(context, query, user.ID, user.HaveSubscription != nil && *user.HaveSubscription, user.CreatedAt)
		return err
	}
	return nil
}

// prepareForInsert fills the server-assigned fields of a new account.
func prepareForInsert(user *User, now time.Time) {
	if user.ID == "" {
		user.ID = uuid.New()
	}
	if user.Status == "" {
		user.Status = StatusPending
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = NormalizeEmail(user.Email)

	if user.Role == sec.RoleBusinessOwner && user.HaveSubscription == nil {
		subscribed := false
		user.HaveSubscription = &subscribed
	}
	if user.Role != sec.RoleBusinessOwner {
		user.HaveSubscription = nil
	}
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// escapeLike neutralises LIKE wildcards in user-supplied prefixes.
func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
