// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package postgres opens the connection pool behind the credential and
// refresh-token stores and exposes the narrow [DB] contract they query through.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/marketplace-auth/internal/platform/constants"
)

// DB is the query surface shared by [*pgxpool.Pool], [pgx.Tx] and pgxmock pools.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// Options tunes the pool. Zero fields fall back to [DefaultOptions].
type Options struct {
	MaxConns int32
	MinConns int32

	// StatementTimeout is enforced server side on every session, so a query
	// whose caller already gave up cannot keep holding a connection.
	StatementTimeout time.Duration
}

// DefaultOptions suits a single auth API replica.
func DefaultOptions() Options {
	return Options{MaxConns: 20, MinConns: 2, StatementTimeout: 3 * time.Second}
}

const (
	connectTimeout = 5 * time.Second
	pingTimeout    = 2 * time.Second
)

// NewPool connects to dsn and pings once before returning.
func NewPool(ctx context.Context, dsn string, options Options, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid DSN: %w", err)
	}

	defaults := DefaultOptions()
	if options.MaxConns <= 0 {
		options.MaxConns = defaults.MaxConns
	}
	if options.MinConns <= 0 || options.MinConns > options.MaxConns {
		options.MinConns = min(defaults.MinConns, options.MaxConns)
	}
	if options.StatementTimeout <= 0 {
		options.StatementTimeout = defaults.StatementTimeout
	}

	poolConfig.MaxConns = options.MaxConns
	poolConfig.MinConns = options.MinConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 10 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute
	poolConfig.ConnConfig.ConnectTimeout = connectTimeout

	// Sent in the startup packet, no extra round trip per connection.
	params := poolConfig.ConnConfig.RuntimeParams
	params["application_name"] = constants.AppName
	params["statement_timeout"] = strconv.FormatInt(options.StatementTimeout.Milliseconds(), 10)

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}

	if err := Ping(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("postgres_pool_connected",
		slog.String("host", poolConfig.ConnConfig.Host),
		slog.Int("max_conns", int(options.MaxConns)),
		slog.Duration("statement_timeout", options.StatementTimeout),
	)

	return pool, nil
}

// Ping is the readiness probe for the pool.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("postgres: ping failed: %w", err)
	}
	return nil
}
