// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package token_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/marketplace-auth/internal/platform/apperr"
	"github.com/taibuivan/marketplace-auth/internal/platform/sec"
	"github.com/taibuivan/marketplace-auth/internal/users/token"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func signer(t *testing.T) *sec.JWTSigner {
	t.Helper()
	keyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = key
	})
	return sec.NewJWTSignerFromKey(testKey, "marketplace-auth")
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var alice = token.Subject{ID: "01928f4e-7a1b-7c3d-9e2f-0123456789ab", Role: sec.RoleCustomer}

func allow(subject token.Subject) token.Authorizer {
	return func(context.Context, string) (token.Subject, error) { return subject, nil }
}

func newService(t *testing.T) (*token.Service, *clock) {
	c := &clock{now: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)}
	service := token.NewService(token.NewMemoryStore(), signer(t), token.Config{
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, token.WithClock(c.Now))
	return service, c
}

/*
TestService_AccessToken round-trips claims and reports expiry distinctly.
*/
func TestService_AccessToken(t *testing.T) {
	service, c := newService(t)

	accessToken, expiresAt, err := service.IssueAccessToken(alice)
	require.NoError(t, err)
	assert.Equal(t, c.Now().Add(30*time.Minute), expiresAt)

	claims, err := service.ValidateAccessToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, claims.UserID)
	assert.Equal(t, string(sec.RoleCustomer), claims.Role)

	_, err = service.ValidateAccessToken(accessToken + "x")
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidSignature))

	c.Advance(31 * time.Minute)
	_, err = service.ValidateAccessToken(accessToken)
	assert.True(t, apperr.HasCode(err, apperr.CodeTokenExpired))
}

/*
TestService_ForeignKeyRejected refuses tokens signed by another key.
*/
func TestService_ForeignKeyRejected(t *testing.T) {
	service, _ := newService(t)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	forged, _, err := sec.NewJWTSignerFromKey(otherKey, "marketplace-auth").
		Sign(alice.ID, string(sec.RoleAdmin), time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC), time.Hour)
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(forged)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidSignature))
}

/*
TestService_Rotate consumes the presented token exactly once.
*/
func TestService_Rotate(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	first, err := service.IssuePair(ctx, alice, token.Meta{UserAgent: "ios", IPAddress: "203.0.113.7"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", first.TokenType)

	second, err := service.Rotate(ctx, first.RefreshToken, token.Meta{}, allow(alice))
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = service.Rotate(ctx, first.RefreshToken, token.Meta{}, allow(alice))
	assert.True(t, apperr.HasCode(err, apperr.CodeTokenRevoked))

	_, err = service.Rotate(ctx, second.RefreshToken, token.Meta{}, allow(alice))
	assert.NoError(t, err)
}

/*
TestService_RotateFailures covers unknown, expired and unauthorized tokens.
*/
func TestService_RotateFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown", func(t *testing.T) {
		service, _ := newService(t)
		_, err := service.Rotate(ctx, "not-a-token", token.Meta{}, allow(alice))
		assert.True(t, apperr.HasCode(err, apperr.CodeTokenNotFound))
	})

	t.Run("expired", func(t *testing.T) {
		service, c := newService(t)
		pair, err := service.IssuePair(ctx, alice, token.Meta{})
		require.NoError(t, err)

		c.Advance(7*24*time.Hour + time.Second)
		_, err = service.Rotate(ctx, pair.RefreshToken, token.Meta{}, allow(alice))
		assert.True(t, apperr.HasCode(err, apperr.CodeTokenExpired))
	})

	t.Run("owner_suspended", func(t *testing.T) {
		service, _ := newService(t)
		pair, err := service.IssuePair(ctx, alice, token.Meta{})
		require.NoError(t, err)

		deny := func(context.Context, string) (token.Subject, error) {
			return token.Subject{}, apperr.AccountNotActive("SUSPENDED")
		}
		_, err = service.Rotate(ctx, pair.RefreshToken, token.Meta{}, deny)
		assert.True(t, apperr.HasCode(err, apperr.CodeAccountNotActive))

		// A refused rotation leaves the token usable.
		_, err = service.Rotate(ctx, pair.RefreshToken, token.Meta{}, allow(alice))
		assert.NoError(t, err)
	})
}

/*
TestService_ConcurrentRotate lets exactly one of many racers win.
*/
func TestService_ConcurrentRotate(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	pair, err := service.IssuePair(ctx, alice, token.Meta{})
	require.NoError(t, err)

	const racers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		revoked   int
	)
	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Rotate(ctx, pair.RefreshToken, token.Meta{}, allow(alice))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperr.HasCode(err, apperr.CodeTokenRevoked):
				revoked++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, racers-1, revoked)
}

/*
TestService_Revoke is idempotent and scoped to one token.
*/
func TestService_Revoke(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	phone, err := service.IssuePair(ctx, alice, token.Meta{UserAgent: "phone"})
	require.NoError(t, err)
	laptop, err := service.IssuePair(ctx, alice, token.Meta{UserAgent: "laptop"})
	require.NoError(t, err)

	require.NoError(t, service.Revoke(ctx, phone.RefreshToken))
	require.NoError(t, service.Revoke(ctx, phone.RefreshToken))
	require.NoError(t, service.Revoke(ctx, "never-issued"))

	_, err = service.Rotate(ctx, phone.RefreshToken, token.Meta{}, allow(alice))
	assert.True(t, apperr.HasCode(err, apperr.CodeTokenRevoked))

	_, err = service.Rotate(ctx, laptop.RefreshToken, token.Meta{}, allow(alice))
	assert.NoError(t, err)
}

/*
TestService_RevokeAllForUser leaves other users alone.
*/
func TestService_RevokeAllForUser(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()
	bob := token.Subject{ID: "01928f4e-7a1b-7c3d-9e2f-00000000b0b0", Role: sec.RoleBusinessOwner}

	for range 3 {
		_, err := service.IssuePair(ctx, alice, token.Meta{})
		require.NoError(t, err)
	}
	bobPair, err := service.IssuePair(ctx, bob, token.Meta{})
	require.NoError(t, err)

	revoked, err := service.RevokeAllForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), revoked)

	_, err = service.Rotate(ctx, bobPair.RefreshToken, token.Meta{}, allow(bob))
	assert.NoError(t, err)
}

/*
TestService_PurgeExpired drops only tokens past their expiry.
*/
func TestService_PurgeExpired(t *testing.T) {
	service, c := newService(t)
	ctx := context.Background()

	old, err := service.IssuePair(ctx, alice, token.Meta{})
	require.NoError(t, err)
	c.Advance(6 * 24 * time.Hour)
	fresh, err := service.IssuePair(ctx, alice, token.Meta{})
	require.NoError(t, err)
	c.Advance(2 * 24 * time.Hour)

	purged, err := service.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = service.Rotate(ctx, old.RefreshToken, token.Meta{}, allow(alice))
	assert.True(t, apperr.HasCode(err, apperr.CodeTokenNotFound))
	_, err = service.Rotate(ctx, fresh.RefreshToken, token.Meta{}, allow(alice))
	assert.NoError(t, err)
}

/*
TestService_StorageFailure surfaces store errors unchanged.
*/
func TestService_StorageFailure(t *testing.T) {
	service, _ := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.IssuePair(ctx, alice, token.Meta{})
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeStorageUnavailable))
	assert.True(t, errors.Is(err, context.Canceled))
}
