// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package redis_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisstore "github.com/taibuivan/marketplace-auth/internal/platform/redis"
)

func discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

/*
TestNewClient dials an in-process Redis and follows its health through Ping.
*/
func TestNewClient(t *testing.T) {
	server := miniredis.RunT(t)

	client, err := redisstore.NewClient(context.Background(), "redis://"+server.Addr()+"/0", time.Second, discard())
	require.NoError(t, err)
	defer client.Close()

	options := client.Options()
	assert.Equal(t, time.Second, options.ReadTimeout)
	assert.Equal(t, time.Second, options.WriteTimeout)
	assert.True(t, options.ContextTimeoutEnabled)
	assert.NoError(t, redisstore.Ping(context.Background(), client))

	server.Close()
	assert.Error(t, redisstore.Ping(context.Background(), client))
}

/*
TestNewClient_DefaultTimeout applies a fallback when no timeout is configured.
*/
func TestNewClient_DefaultTimeout(t *testing.T) {
	server := miniredis.RunT(t)

	client, err := redisstore.NewClient(context.Background(), "redis://"+server.Addr(), 0, discard())
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, 2*time.Second, client.Options().ReadTimeout)
}

/*
TestNewClient_Failures covers malformed URLs and unreachable servers.
*/
func TestNewClient_Failures(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"invalid_url", "not-a-url"},
		{"unreachable", "redis://127.0.0.1:1/0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := redisstore.NewClient(context.Background(), tt.url, time.Second, discard())
			assert.Error(t, err)
		})
	}
}
