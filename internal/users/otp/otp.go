// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package otp issues and validates short-lived numeric one-time codes.

# Lifecycle

	Issue ──▶ [active: attempts = max] ──match──▶ consumed (deleted)
	              │ mismatch (attempts-1)
	              ▼
	         [attempts = 0] ──any code──▶ OTP_ATTEMPTS_EXCEEDED until TTL
	              │
	         expiry ──▶ OTP_EXPIRED

At most one record exists per (user, purpose); issuing replaces it. Only the
SHA-256 digest of a code is stored. Delivering the code is the caller's job.
*/
package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/taibuivan/marketplace-auth/internal/platform/apperr"
	"github.com/taibuivan/marketplace-auth/internal/platform/sec"
)

// # Purposes

// Purpose scopes a code to one workflow so a sign-up code cannot reset a password.
type Purpose string

const (
	PurposeRegistration  Purpose = "REGISTRATION"
	PurposePasswordReset Purpose = "PASSWORD_RESET"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeRegistration || p == PurposePasswordReset
}

// # Records

// Record is the stored state of an outstanding code.
type Record struct {
	UserID       string
	Purpose      Purpose
	CodeHash     string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	AttemptsLeft int
}

// Outcome is the result of checking a submitted code against a record.
type Outcome int

const (
	OutcomeMatched Outcome = iota
	OutcomeExpired
	OutcomeExhausted
	OutcomeMismatch
)

// Issued is a freshly generated code, returned once for delivery.
type Issued struct {
	Code      string
	ExpiresAt time.Time
}

// # Configuration

// Config is the code policy, loaded once at startup.
type Config struct {
	Length         int
	TTL            time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
}

// Option customises a [Manager].
type Option func(*Manager)

// WithClock replaces time.Now, for deterministic expiry.
func WithClock(now func() time.Time) Option {
	return func(manager *Manager) { manager.now = now }
}

// WithCodeGenerator replaces the crypto/rand code source.
func WithCodeGenerator(generate func(digits int) (string, error)) Option {
	return func(manager *Manager) { manager.generate = generate }
}

// # Manager

// Manager applies the code policy on top of a [Store].
type Manager struct {
	store    Store
	config   Config
	now      func() time.Time
	generate func(digits int) (string, error)
}

// NewManager constructs a [Manager].
func NewManager(store Store, config Config, options ...Option) *Manager {
	manager := &Manager{
		store:    store,
		config:   config,
		now:      time.Now,
		generate: sec.GenerateNumericCode,
	}
	for _, option := range options {
		option(manager)
	}
	return manager
}

/*
Issue generates a new code for (userID, purpose), replacing any outstanding one.

Returns:
  - *Issued: The plaintext code and its expiry; never persisted
  - error: apperr.StorageUnavailable when the store is unreachable
*/
func (manager *Manager) Issue(context context.Context, userID string, purpose Purpose) (*Issued, error) {
	code, err := manager.generate(manager.config.Length)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("otp_generate: %w", err))
	}

	now := manager.now().UTC()
	record := Record{
		UserID:       userID,
		Purpose:      purpose,
		CodeHash:     sec.HashToken(code),
		CreatedAt:    now,
		ExpiresAt:    now.Add(manager.config.TTL),
		AttemptsLeft: manager.config.MaxAttempts,
	}

	if err := manager.store.Save(context, record); err != nil {
		return nil, err
	}

	return &Issued{Code: code, ExpiresAt: record.ExpiresAt}, nil
}

/*
Validate checks a submitted code.

Expiry is checked before attempts, and attempts before the code, so an expired
record is never matched and an exhausted one never recovers.

Returns:
  - nil: The code matched and has been consumed
  - error: apperr.OTPExpired, apperr.OTPAttemptsExceeded, apperr.OTPMismatch
    or a storage error
*/
func (manager *Manager) Validate(context context.Context, userID string, purpose Purpose, code string) error {
	outcome, attemptsLeft, err := manager.store.Check(context, userID, purpose, sec.HashToken(code), manager.now().UTC())
	if err != nil {
		return err
	}

	switch outcome {
	case OutcomeMatched:
		return nil
	case OutcomeExhausted:
		return apperr.OTPAttemptsExceeded()
	case OutcomeMismatch:
		return apperr.OTPMismatch(attemptsLeft)
	default:
		return apperr.OTPExpired()
	}
}

// Peek returns the outstanding record, or nil when none is active.
func (manager *Manager) Peek(context context.Context, userID string, purpose Purpose) (*Record, error) {
	return manager.store.Get(context, userID, purpose, manager.now().UTC())
}

// CooldownRemaining reports how long the caller must wait before a resend.
func (manager *Manager) CooldownRemaining(context context.Context, userID string, purpose Purpose) (time.Duration, error) {
	record, err := manager.Peek(context, userID, purpose)
	if err != nil || record == nil {
		return 0, err
	}

	remaining := record.CreatedAt.Add(manager.config.ResendCooldown).Sub(manager.now().UTC())
	return max(remaining, 0), nil
}
