// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package otp_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/marketplace-auth/internal/platform/apperr"
	"github.com/taibuivan/marketplace-auth/internal/users/otp"
)

var policy = otp.Config{
	Length:         6,
	TTL:            10 * time.Minute,
	MaxAttempts:    3,
	ResendCooldown: time.Minute,
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// codes hands out a fixed sequence of codes.
func codes(sequence ...string) func(int) (string, error) {
	var mu sync.Mutex
	return func(int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		next := sequence[0]
		if len(sequence) > 1 {
			sequence = sequence[1:]
		}
		return next, nil
	}
}

// stores returns one factory per Store implementation.
func stores(t *testing.T) map[string]func() otp.Store {
	return map[string]func() otp.Store{
		"memory": func() otp.Store { return otp.NewMemoryStore() },
		"redis": func() otp.Store {
			server := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: server.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return otp.NewRedisStore(client)
		},
	}
}

func newManager(store otp.Store, sequence ...string) (*otp.Manager, *fakeClock) {
	clock := &fakeClock{now: time.Now().UTC()}
	manager := otp.NewManager(store, policy, otp.WithClock(clock.Now), otp.WithCodeGenerator(codes(sequence...)))
	return manager, clock
}

/*
TestManager_SingleUse accepts a code once and treats the replay as expired.
*/
func TestManager_SingleUse(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			manager, _ := newManager(factory(), "482913")
			ctx := context.Background()

			issued, err := manager.Issue(ctx, "user-1", otp.PurposeRegistration)
			require.NoError(t, err)
			assert.Equal(t, "482913", issued.Code)

			require.NoError(t, manager.Validate(ctx, "user-1", otp.PurposeRegistration, "482913"))

			err = manager.Validate(ctx, "user-1", otp.PurposeRegistration, "482913")
			assert.True(t, apperr.HasCode(err, apperr.CodeOTPExpired), "got %v", err)
		})
	}
}

/*
TestManager_AttemptsExhausted rejects the correct code after three mismatches.
*/
func TestManager_AttemptsExhausted(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			manager, _ := newManager(factory(), "482913")
			ctx := context.Background()

			_, err := manager.Issue(ctx, "user-1", otp.PurposeRegistration)
			require.NoError(t, err)

			for i, wrong := range []string{"000000", "111111", "222222"} {
				err := manager.Validate(ctx, "user-1", otp.PurposeRegistration, wrong)
				require.True(t, apperr.HasCode(err, apperr.CodeOTPMismatch), "attempt %d: %v", i+1, err)
			}

			err = manager.Validate(ctx, "user-1", otp.PurposeRegistration, "482913")
			assert.True(t, apperr.HasCode(err, apperr.CodeOTPAttemptsExceeded), "got %v", err)

			// Exhaustion is sticky until the record expires.
			err = manager.Validate(ctx, "user-1", otp.PurposeRegistration, "482913")
			assert.True(t, apperr.HasCode(err, apperr.CodeOTPAttemptsExceeded))
		})
	}
}

/*
TestManager_MismatchCountsDown reports the remaining attempts.
*/
func TestManager_MismatchCountsDown(t *testing.T) {
	manager, _ := newManager(otp.NewMemoryStore(), "482913")
	ctx := context.Background()

	_, err := manager.Issue(ctx, "user-1", otp.PurposePasswordReset)
	require.NoError(t, err)

	err = manager.Validate(ctx, "user-1", otp.PurposePasswordReset, "000000")
	assert.Equal(t, "Invalid verification code, 2 attempt(s) left", err.Error())

	record, err := manager.Peek(ctx, "user-1", otp.PurposePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, 2, record.AttemptsLeft)

	// A correct code still works while attempts remain.
	assert.NoError(t, manager.Validate(ctx, "user-1", otp.PurposePasswordReset, "482913"))
}

/*
TestManager_Expiry rejects a correct code once the TTL has elapsed.
*/
func TestManager_Expiry(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			manager, clock := newManager(factory(), "482913")
			ctx := context.Background()

			_, err := manager.Issue(ctx, "user-1", otp.PurposeRegistration)
			require.NoError(t, err)

			clock.Advance(policy.TTL)

			err = manager.Validate(ctx, "user-1", otp.PurposeRegistration, "482913")
			assert.True(t, apperr.HasCode(err, apperr.CodeOTPExpired), "got %v", err)
		})
	}
}

/*
TestManager_ReissueReplaces invalidates the previous code and resets attempts.
*/
func TestManager_ReissueReplaces(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			manager, _ := newManager(factory(), "111111", "222222")
			ctx := context.Background()

			_, err := manager.Issue(ctx, "user-1", otp.PurposeRegistration)
			require.NoError(t, err)
			require.True(t, apperr.HasCode(manager.Validate(ctx, "user-1", otp.PurposeRegistration, "999999"), apperr.CodeOTPMismatch))

			_, err = manager.Issue(ctx, "user-1", otp.PurposeRegistration)
			require.NoError(t, err)

			record, err := manager.Peek(ctx, "user-1", otp.PurposeRegistration)
			require.NoError(t, err)
			assert.Equal(t, policy.MaxAttempts, record.AttemptsLeft)

			err = manager.Validate(ctx, "user-1", otp.PurposeRegistration, "111111")
			assert.True(t, apperr.HasCode(err, apperr.CodeOTPMismatch))
			assert.NoError(t, manager.Validate(ctx, "user-1", otp.PurposeRegistration, "222222"))
		})
	}
}

/*
TestManager_PurposeIsolation keeps sign-up and reset codes apart.
*/
func TestManager_PurposeIsolation(t *testing.T) {
	manager, _ := newManager(otp.NewMemoryStore(), "482913")
	ctx := context.Background()

	_, err := manager.Issue(ctx, "user-1", otp.PurposeRegistration)
	require.NoError(t, err)

	err = manager.Validate(ctx, "user-1", otp.PurposePasswordReset, "482913")
	assert.True(t, apperr.HasCode(err, apperr.CodeOTPExpired))

	err = manager.Validate(ctx, "user-2", otp.PurposeRegistration, "482913")
	assert.True(t, apperr.HasCode(err, apperr.CodeOTPExpired))

	assert.NoError(t, manager.Validate(ctx, "user-1", otp.PurposeRegistration, "482913"))
}

/*
TestManager_CooldownRemaining counts down from the last issue.
*/
func TestManager_CooldownRemaining(t *testing.T) {
	manager, clock := newManager(otp.NewMemoryStore(), "482913")
	ctx := context.Background()

	remaining, err := manager.CooldownRemaining(ctx, "user-1", otp.PurposeRegistration)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	_, err = manager.Issue(ctx, "user-1", otp.PurposeRegistration)
	require.NoError(t, err)

	clock.Advance(20 * time.Second)
	remaining, err = manager.CooldownRemaining(ctx, "user-1", otp.PurposeRegistration)
	require.NoError(t, err)
	assert.Equal(t, 40*time.Second, remaining)

	clock.Advance(time.Minute)
	remaining, err = manager.CooldownRemaining(ctx, "user-1", otp.PurposeRegistration)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

/*
TestManager_ConcurrentMismatches never hands out more attempts than configured.
*/
func TestManager_ConcurrentMismatches(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			manager, _ := newManager(factory(), "482913")
			ctx := context.Background()

			_, err := manager.Issue(ctx, "user-1", otp.PurposeRegistration)
			require.NoError(t, err)

			var (
				wg         sync.WaitGroup
				mu         sync.Mutex
				mismatches int
			)
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := manager.Validate(ctx, "user-1", otp.PurposeRegistration, "000000")
					if apperr.HasCode(err, apperr.CodeOTPMismatch) {
						mu.Lock()
						mismatches++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, policy.MaxAttempts, mismatches)
		})
	}
}
