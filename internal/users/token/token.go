// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package token issues and validates access/refresh token pairs.

# Model

  - Access tokens are RS256 JWTs. They are verified by signature and expiry
    alone and are never stored; logout simply stops them being refreshed.
  - Refresh tokens are 32 random bytes handed to the client once. Only their
    SHA-256 digest is stored, with the device metadata of the session.

# Rotation

Presenting a refresh token consumes it: the stored row is flipped to revoked
with a compare-and-set in the same transaction that inserts its successor.
Of two concurrent rotations with the same token exactly one wins; the other
gets TOKEN_REVOKED.
*/
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taibuivan/marketplace-auth/internal/platform/apperr"
	"github.com/taibuivan/marketplace-auth/internal/platform/constants"
	"github.com/taibuivan/marketplace-auth/internal/platform/sec"
	"github.com/taibuivan/marketplace-auth/pkg/uuid"
)

// # Types

// Record is the stored state of a refresh token.
type Record struct {
	ID        string
	UserID    string
	TokenHash string
	UserAgent string
	IPAddress string
	Revoked   bool
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Meta describes the device a refresh token is issued to.
type Meta struct {
	UserAgent string
	IPAddress string
}

// Subject is the identity embedded in an access token.
type Subject struct {
	ID   string
	Role sec.UserRole
}

// Pair is what a successful login or refresh returns to the client.
type Pair struct {
	AccessToken      string    `json:"access_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Config holds the token lifetimes.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Signer signs and verifies access tokens. [*sec.JWTSigner] implements it.
type Signer interface {
	Sign(userID, role string, issuedAt time.Time, timeToLive time.Duration) (string, *sec.AuthClaims, error)
	Verify(token string, now time.Time) (*sec.AuthClaims, error)
}

// Authorizer resolves the current identity of a token owner during rotation.
// Returning an error (e.g. the account is no longer active) aborts the rotation
// before the presented token is consumed.
type Authorizer func(ctx context.Context, userID string) (Subject, error)

// Option customises a [Service].
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(service *Service) { service.now = now }
}

// # Service

// Service implements the token lifecycle on top of a [Store] and a [Signer].
type Service struct {
	store  Store
	signer Signer
	config Config
	now    func() time.Time
}

// NewService constructs a token [Service].
func NewService(store Store, signer Signer, config Config, options ...Option) *Service {
	service := &Service{store: store, signer: signer, config: config, now: time.Now}
	for _, option := range options {
		option(service)
	}
	return service
}

// IssueAccessToken signs a short-lived JWT for subject.
func (service *Service) IssueAccessToken(subject Subject) (string, time.Time, error) {
	token, claims, err := service.signer.Sign(subject.ID, string(subject.Role), service.now().UTC(), service.config.AccessTTL)
	if err != nil {
		return "", time.Time{}, apperr.Internal(fmt.Errorf("token_sign: %w", err))
	}
	return token, claims.ExpiresAt.Time, nil
}

// IssueRefreshToken creates and persists a new refresh token for subject.
func (service *Service) IssueRefreshToken(context context.Context, subject Subject, meta Meta) (string, time.Time, error) {
	raw, record, err := service.newRefreshToken(subject.ID, meta)
	if err != nil {
		return "", time.Time{}, err
	}

	if err := service.store.Create(context, record); err != nil {
		return "", time.Time{}, err
	}
	return raw, record.ExpiresAt, nil
}

// IssuePair issues a refresh token and a matching access token.
func (service *Service) IssuePair(context context.Context, subject Subject, meta Meta) (*Pair, error) {
	refreshToken, refreshExpiresAt, err := service.IssueRefreshToken(context, subject, meta)
	if err != nil {
		return nil, err
	}
	return service.pair(subject, refreshToken, refreshExpiresAt)
}

/*
ValidateAccessToken verifies a JWT without touching storage.

Returns:
  - *sec.AuthClaims: The verified claims
  - error: apperr.TokenExpired for a well-signed expired token, otherwise
    apperr.InvalidSignature
*/
func (service *Service) ValidateAccessToken(token string) (*sec.AuthClaims, error) {
	claims, err := service.signer.Verify(token, service.now().UTC())
	if err != nil {
		if errors.Is(err, sec.ErrTokenExpired) {
			return nil, apperr.TokenExpired()
		}
		return nil, apperr.InvalidSignature()
	}
	return claims, nil
}

/*
Rotate exchanges a refresh token for a new pair, consuming the old token.

Parameters:
  - context: context.Context
  - refreshToken: string (as presented by the client)
  - meta: Meta (device of the new token)
  - authorize: Authorizer (re-checks the owner before anything is consumed)

Returns:
  - *Pair: The new access and refresh tokens
  - error: apperr.TokenNotFound, apperr.TokenRevoked, apperr.TokenExpired,
    the authorizer's error or a storage error
*/
func (service *Service) Rotate(context context.Context, refreshToken string, meta Meta, authorize Authorizer) (*Pair, error) {
	current, err := service.store.FindByHash(context, sec.HashToken(refreshToken))
	if err != nil {
		return nil, err
	}

	now := service.now().UTC()
	switch {
	case current.Revoked:
		return nil, apperr.TokenRevoked()
	case !now.Before(current.ExpiresAt):
		return nil, apperr.TokenExpired()
	}

	subject, err := authorize(context, current.UserID)
	if err != nil {
		return nil, err
	}

	raw, next, err := service.newRefreshToken(current.UserID, meta)
	if err != nil {
		return nil, err
	}

	if err := service.store.Rotate(context, current.ID, next, now); err != nil {
		return nil, err
	}

	return service.pair(subject, raw, next.ExpiresAt)
}

// Revoke invalidates a refresh token. Unknown and already revoked tokens are a no-op.
func (service *Service) Revoke(context context.Context, refreshToken string) error {
	current, err := service.store.FindByHash(context, sec.HashToken(refreshToken))
	if err != nil {
		if apperr.HasCode(err, apperr.CodeTokenNotFound) {
			return nil
		}
		return err
	}
	if current.Revoked {
		return nil
	}
	return service.store.Revoke(context, current.ID, service.now().UTC())
}

// RevokeAllForUser invalidates every active refresh token of userID.
func (service *Service) RevokeAllForUser(context context.Context, userID string) (int64, error) {
	return service.store.RevokeAllForUser(context, userID, service.now().UTC())
}

// PurgeExpired deletes refresh tokens past their expiry.
func (service *Service) PurgeExpired(context context.Context) (int64, error) {
	return service.store.DeleteExpired(context, service.now().UTC())
}

// # Helpers

func (service *Service) newRefreshToken(userID string, meta Meta) (string, *Record, error) {
	raw, err := sec.GenerateSecureToken(constants.RefreshTokenBytes)
	if err != nil {
		return "", nil, apperr.Internal(fmt.Errorf("token_generate_refresh: %w", err))
	}

	now := service.now().UTC()
	return raw, &Record{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: sec.HashToken(raw),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		IssuedAt:  now,
		ExpiresAt: now.Add(service.config.RefreshTTL),
	}, nil
}

func (service *Service) pair(subject Subject, refreshToken string, refreshExpiresAt time.Time) (*Pair, error) {
	accessToken, accessExpiresAt, err := service.IssueAccessToken(subject)
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:      accessToken,
		TokenType:        "Bearer",
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}
