// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error handling framework for the
marketplace auth service.

It provides a rich error type that bridges the gap between low-level Domain/Storage
errors and high-level HTTP responses.

Architecture:

  - AppError: A struct containing machine-readable ErrorCode and user-friendly messages.
  - Kinds: Auth, OTP and token failure kinds each own a stable Code.
  - Mapping: Explicit mapping from AppError to standard HTTP Status Codes.
  - Retryable: Infrastructure-transient failures are flagged so callers can back off.

Every error that leaves the service layer should be wrapped as an [AppError] to ensure
consistent API responses.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the canonical error type for the auth API.
//
// It carries an HTTP status code, a machine-readable code, a client-safe
// message, and an optional slice of field-level validation errors.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to clients
// to avoid leaking internal implementation details (e.g., SQL queries).
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "NOT_FOUND", "CONFLICT").
	Code string `json:"code"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Retryable marks transient failures (storage, delivery) the caller may retry.
	Retryable bool `json:"-"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// # Error Codes

const (
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeConflict            = "CONFLICT"
	CodeValidation          = "VALIDATION_ERROR"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL_ERROR"
	CodeDuplicateEmail      = "DUPLICATE_EMAIL"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeAccountNotActive    = "ACCOUNT_NOT_ACTIVE"
	CodeInvalidTransition   = "INVALID_STATUS_TRANSITION"
	CodeOTPExpired          = "OTP_EXPIRED"
	CodeOTPAttemptsExceeded = "OTP_ATTEMPTS_EXCEEDED"
	CodeOTPMismatch         = "OTP_MISMATCH"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeTokenRevoked        = "TOKEN_REVOKED"
	CodeTokenNotFound       = "TOKEN_NOT_FOUND"
	CodeInvalidSignature    = "INVALID_SIGNATURE"
	CodeDeliveryFailure     = "DELIVERY_FAILURE"
	CodeStorageUnavailable  = "STORAGE_UNAVAILABLE"
)

// # Client Errors (4xx)

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("User") // Returns "User not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// Unauthorized creates a 401 [AppError].
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a 403 [AppError].
func Forbidden(msg string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// Conflict creates a 409 [AppError] for duplicate or unique-constraint violations.
func Conflict(msg string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// RateLimited creates a 429 [AppError].
func RateLimited(retryAfterSeconds int) *AppError {
	return &AppError{
		Code:       CodeRateLimited,
		Message:    fmt.Sprintf("Too many requests. Try again in %ds.", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// # Account Errors

// DuplicateEmail creates a 409 [AppError] for an email that is already registered.
func DuplicateEmail() *AppError {
	return &AppError{
		Code:       CodeDuplicateEmail,
		Message:    "Email is already registered",
		HTTPStatus: http.StatusConflict,
	}
}

// InvalidCredentials creates a 401 [AppError] for a password mismatch.
func InvalidCredentials() *AppError {
	return &AppError{
		Code:       CodeInvalidCredentials,
		Message:    "Invalid email or password",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// AccountNotActive creates a 403 [AppError] for accounts whose status forbids sign-in.
func AccountNotActive(status string) *AppError {
	return &AppError{
		Code:       CodeAccountNotActive,
		Message:    "Account is not active",
		HTTPStatus: http.StatusForbidden,
		Details:    []FieldError{{Field: "status", Message: status}},
	}
}

// InvalidTransition creates a 422 [AppError] for a disallowed account status change.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("Cannot change account status from %s to %s", from, to),
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// # One-Time Password Errors

// OTPExpired creates a 410 [AppError]. It also covers missing and consumed codes.
func OTPExpired() *AppError {
	return &AppError{
		Code:       CodeOTPExpired,
		Message:    "Verification code has expired or is no longer valid",
		HTTPStatus: http.StatusGone,
	}
}

// OTPAttemptsExceeded creates a 429 [AppError] once a code has no attempts left.
func OTPAttemptsExceeded() *AppError {
	return &AppError{
		Code:       CodeOTPAttemptsExceeded,
		Message:    "Maximum verification attempts exceeded",
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// OTPMismatch creates a 400 [AppError] carrying the number of attempts left.
func OTPMismatch(attemptsLeft int) *AppError {
	return &AppError{
		Code:       CodeOTPMismatch,
		Message:    fmt.Sprintf("Invalid verification code, %d attempt(s) left", attemptsLeft),
		HTTPStatus: http.StatusBadRequest,
	}
}

// # Token Errors

// TokenExpired creates a 401 [AppError] for an access or refresh token past its expiry.
func TokenExpired() *AppError {
	return &AppError{
		Code:       CodeTokenExpired,
		Message:    "Token has expired",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// TokenRevoked creates a 401 [AppError] for a refresh token that was already used or revoked.
func TokenRevoked() *AppError {
	return &AppError{
		Code:       CodeTokenRevoked,
		Message:    "Token has been revoked",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// TokenNotFound creates a 401 [AppError] for an unknown refresh token.
func TokenNotFound() *AppError {
	return &AppError{
		Code:       CodeTokenNotFound,
		Message:    "Refresh token not recognised",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// InvalidSignature creates a 401 [AppError] for a malformed or forged access token.
func InvalidSignature() *AppError {
	return &AppError{
		Code:       CodeInvalidSignature,
		Message:    "Invalid token",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// # Server Errors (5xx)

// Internal creates a 500 [AppError] wrapping an unexpected server-side error.
// The cause is stored for logging but is never sent to the client.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// DeliveryFailure creates a retryable 503 [AppError] when a code could not be sent.
func DeliveryFailure(cause error) *AppError {
	return &AppError{
		Code:       CodeDeliveryFailure,
		Message:    "Verification code could not be delivered, please retry",
		HTTPStatus: http.StatusServiceUnavailable,
		Retryable:  true,
		Cause:      cause,
	}
}

// StorageUnavailable creates a retryable 503 [AppError] for unreachable or timed-out storage.
func StorageUnavailable(cause error) *AppError {
	return &AppError{
		Code:       CodeStorageUnavailable,
		Message:    "Service temporarily unavailable, please retry",
		HTTPStatus: http.StatusServiceUnavailable,
		Retryable:  true,
		Cause:      cause,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// HasCode reports whether err carries an [*AppError] with the given code.
func HasCode(err error, code string) bool {
	ae := As(err)
	return ae != nil && ae.Code == code
}

// IsRetryable reports whether err is a transient [*AppError].
func IsRetryable(err error) bool {
	ae := As(err)
	return ae != nil && ae.Retryable
}
