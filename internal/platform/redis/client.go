// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis opens the client behind the one-time code store.

Codes live in hashes with a TTL and the attempt counter is decremented by a
server-side script, so the client only needs to be fast and to respect the
caller's deadline.
*/
package redis

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dialTimeout = 3 * time.Second
	pingTimeout = 2 * time.Second

	defaultOperationTimeout = 2 * time.Second
)

/*
NewClient parses redisURL and pings once before returning.

operationTimeout bounds every read and write on the socket. Context deadlines
are honoured as well, so a request that has run out of time fails fast instead
of waiting for the socket timeout.
*/
func NewClient(context stdctx.Context, redisURL string, operationTimeout time.Duration, logger *slog.Logger) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	if operationTimeout <= 0 {
		operationTimeout = defaultOperationTimeout
	}

	options.PoolSize = 10
	options.MinIdleConns = 2
	options.DialTimeout = dialTimeout
	options.ReadTimeout = operationTimeout
	options.WriteTimeout = operationTimeout
	options.ContextTimeoutEnabled = true

	client := redis.NewClient(options)

	if err := Ping(context, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis_client_connected",
		slog.String("addr", options.Addr),
		slog.Int("db", options.DB),
		slog.Duration("operation_timeout", operationTimeout),
	)

	return client, nil
}

// Ping is the readiness probe for the client.
func Ping(context stdctx.Context, client redis.UniversalClient) error {
	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}
	return nil
}
