// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ctxutil_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/marketplace-auth/internal/platform/ctxutil"
	"github.com/taibuivan/marketplace-auth/internal/platform/sec"
)

/*
TestRequestID round-trips the correlation value.
*/
func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ctxutil.GetRequestID(ctx))

	ctx = ctxutil.WithRequestID(ctx, "01928f4e-7a1b-7c3d-9e2f-0123456789ab")
	assert.Equal(t, "01928f4e-7a1b-7c3d-9e2f-0123456789ab", ctxutil.GetRequestID(ctx))
}

/*
TestGetLogger falls back to the default logger, including for a nil one.
*/
func TestGetLogger(t *testing.T) {
	ctx := context.Background()
	assert.Same(t, slog.Default(), ctxutil.GetLogger(ctx))
	assert.Same(t, slog.Default(), ctxutil.GetLogger(ctxutil.WithLogger(ctx, nil)))

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	assert.Same(t, logger, ctxutil.GetLogger(ctxutil.WithLogger(ctx, logger)))
}

/*
TestClaims keeps anonymous and authenticated requests apart.
*/
func TestClaims(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, ctxutil.Claims(ctx))

	ctx = ctxutil.WithClaims(ctx, &sec.AuthClaims{UserID: "user-123", Role: string(sec.RoleBusinessOwner)})

	claims := ctxutil.Claims(ctx)
	require.NotNil(t, claims)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, string(sec.RoleBusinessOwner), claims.Role)
}
