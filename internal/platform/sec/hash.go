// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/marketplace-auth/internal/platform/constants"
)

// ErrPasswordTooLong is returned for inputs bcrypt would silently truncate.
var ErrPasswordTooLong = errors.New("sec: password exceeds 72 bytes")

// HashPassword hashes a plain-text password using the bcrypt algorithm.
func HashPassword(plainTextPassword string) (string, error) {
	if len(plainTextPassword) > constants.BcryptMaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckPasswordHash compares a plain-text password with its hashed version.
func CheckPasswordHash(plainTextPassword, existingHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	return err == nil
}

// HashPasswordContext runs [HashPassword] but gives up when ctx is done.
//
// bcrypt cannot be interrupted, so the work finishes in the background and
// its result is discarded.
func HashPasswordContext(ctx context.Context, plainTextPassword string) (string, error) {
	type result struct {
		hash string
		err  error
	}

	done := make(chan result, 1)
	go func() {
		hash, err := HashPassword(plainTextPassword)
		done <- result{hash: hash, err: err}
	}()

	select {
	case r := <-done:
		return r.hash, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// CheckPasswordHashContext runs [CheckPasswordHash] but gives up when ctx is done.
func CheckPasswordHashContext(ctx context.Context, plainTextPassword, existingHash string) (bool, error) {
	done := make(chan bool, 1)
	go func() {
		done <- CheckPasswordHash(plainTextPassword, existingHash)
	}()

	select {
	case ok := <-done:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
