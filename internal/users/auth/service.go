// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth orchestrates the account lifecycle of the marketplace.

It owns no storage of its own. Every operation composes the credential store,
the OTP manager, the token service and the delivery sender:

	Register ──▶ PENDING ──VerifyOTP──▶ ACTIVE ──Login/Refresh──▶ token pair
	                                       │
	                                       └──SetStatus──▶ SUSPENDED / DELETED

# Failure Semantics

  - Each external call runs under its own deadline (storage or delivery). A
    missed deadline becomes a retryable STORAGE_UNAVAILABLE or
    DELIVERY_FAILURE, never a hang.
  - ForgotPassword and ResendOTP answer identically whether or not the email
    is registered.
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/taibuivan/marketplace-auth/internal/platform/apperr"
	"github.com/taibuivan/marketplace-auth/internal/platform/ctxutil"
	"github.com/taibuivan/marketplace-auth/internal/platform/sec"
	"github.com/taibuivan/marketplace-auth/internal/users/credential"
	"github.com/taibuivan/marketplace-auth/internal/users/delivery"
	"github.com/taibuivan/marketplace-auth/internal/users/otp"
	"github.com/taibuivan/marketplace-auth/internal/users/token"
	"github.com/taibuivan/marketplace-auth/pkg/pagination"
)

const tracerName = "github.com/taibuivan/marketplace-auth/internal/users/auth"

// # Contracts & Types

// Config bounds the external calls made by the [Service].
type Config struct {
	StorageTimeout  time.Duration
	DeliveryTimeout time.Duration
}

// RegisterInput holds the data required to enrol a new account.
type RegisterInput struct {
	Email    string
	Password string
	Role     sec.UserRole
	Profile  credential.Profile
}

// LoginInput holds credentials and the device signing in.
type LoginInput struct {
	Email    string
	Password string
	Client   token.Meta
}

// Session is the result of a successful login.
type Session struct {
	*token.Pair
	User *credential.User `json:"user"`
}

// Service implements the authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, activation
// or session logic must be reviewed by the security team.
type Service struct {
	users  credential.Store
	codes  *otp.Manager
	tokens *token.Service
	sender delivery.Sender
	config Config
	tracer trace.Tracer
	now    func() time.Time
}

// Option customises a [Service].
type Option func(*Service)

// WithClock replaces time.Now for login stamps.
func WithClock(now func() time.Time) Option {
	return func(service *Service) { service.now = now }
}

// NewService constructs a new [Service] with its collaborators.
func NewService(
	users credential.Store,
	codes *otp.Manager,
	tokens *token.Service,
	sender delivery.Sender,
	config Config,
	options ...Option,
) *Service {
	if config.StorageTimeout <= 0 {
		config.StorageTimeout = defaultStorageTimeout
	}
	if config.DeliveryTimeout <= 0 {
		config.DeliveryTimeout = defaultDeliveryTimeout
	}

	service := &Service{
		users:  users,
		codes:  codes,
		tokens: tokens,
		sender: sender,
		config: config,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, option := range options {
		option(service)
	}
	return service
}

// ValidateAccessToken lets the service act as the middleware's token verifier.
func (service *Service) ValidateAccessToken(accessToken string) (*sec.AuthClaims, error) {
	return service.tokens.ValidateAccessToken(accessToken)
}

// # Registration Flow

/*
Register creates a PENDING account for a self-service role and sends its
activation code.

Description: The unique email index decides concurrent sign-ups. When the code
cannot be delivered the account stays PENDING and the caller gets a retryable
DELIVERY_FAILURE; ResendOTP completes the flow later.

Parameters:
  - ctx: context.Context
  - input: RegisterInput

Returns:
  - *credential.User: The PENDING account
  - error: Forbidden (role), DuplicateEmail, DeliveryFailure or storage errors
*/
func (service *Service) Register(ctx context.Context, input RegisterInput) (user *credential.User, err error) {
	ctx, span := service.tracer.Start(ctx, "auth.Register")
	defer func() { finishSpan(span, err) }()

	if !isSelfService(input.Role) {
		return nil, apperr.Forbidden("This role cannot self-register")
	}
	return service.enrol(ctx, input)
}

/*
CreateUser is the administrative variant of [Service.Register].

Any role may be assigned, ADMIN included. The account still starts PENDING and
must be activated by its owner with the code sent to the address.
*/
func (service *Service) CreateUser(ctx context.Context, input RegisterInput) (user *credential.User, err error) {
	ctx, span := service.tracer.Start(ctx, "auth.CreateUser")
	defer func() { finishSpan(span, err) }()

	if !input.Role.Valid() {
		return nil, apperr.ValidationError("Unknown role")
	}
	return service.enrol(ctx, input)
}

// enrol creates the PENDING account and sends its registration code.
func (service *Service) enrol(ctx context.Context, input RegisterInput) (*credential.User, error) {
	if input.Profile.HaveSubscription != nil && input.Role != sec.RoleBusinessOwner {
		return nil, apperr.ValidationError("Validation failed", apperr.FieldError{
			Field:   FieldSubscription,
			Message: "Only business owners have a subscription",
		})
	}

	hash, err := service.hashPassword(ctx, input.Password)
	if err != nil {
		return nil, err
	}

	user := credential.NewUser(credential.NormalizeEmail(input.Email), hash, input.Role, input.Profile)

	if err := storage(ctx, service, func(bounded context.Context) error {
		return service.users.Create(bounded, user)
	}); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "auth_user_registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	if err := service.sendCode(ctx, user, otp.PurposeRegistration); err != nil {
		return nil, err
	}
	return user, nil
}

/*
VerifyOTP activates a PENDING account with its registration code.

Returns:
  - *credential.User: The now ACTIVE account
  - error: NotFound when no PENDING account has this email; OTP_EXPIRED,
    OTP_ATTEMPTS_EXCEEDED or OTP_MISMATCH from the code check
*/
func (service *Service) VerifyOTP(ctx context.Context, email, code string) (user *credential.User, err error) {
	ctx, span := service.tracer.Start(ctx, "auth.VerifyOTP")
	defer func() { finishSpan(span, err) }()

	user, err = service.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Status != credential.StatusPending {
		return nil, apperr.NotFound("Pending account")
	}

	if err := storage(ctx, service, func(bounded context.Context) error {
		return service.codes.Validate(bounded, user.ID, otp.PurposeRegistration, code)
	}); err != nil {
		return nil, err
	}

	if err := storage(ctx, service, func(bounded context.Context) error {
		return service.users.UpdateStatus(bounded, user.ID, credential.StatusPending, credential.StatusActive)
	}); err != nil {
		return nil, err
	}

	user.Status = credential.StatusActive
	ctxutil.GetLogger(ctx).InfoContext(ctx, "auth_user_activated", slog.String("user_id", user.ID))
	return user, nil
}

/*
ResendOTP issues a fresh code, replacing the outstanding one.

Description: Unknown addresses, accounts in the wrong state and requests
inside the resend cooldown all return nil, so the response never reveals
whether an email is registered. PASSWORD_RESET follows [Service.ForgotPassword].
*/
func (service *Service) ResendOTP(ctx context.Context, email string, purpose otp.Purpose) (err error) {
	if purpose == otp.PurposePasswordReset {
		service.ForgotPassword(ctx, email)
		return nil
	}

	ctx, span := service.tracer.Start(ctx, "auth.ResendOTP")
	defer func() { finishSpan(span, err) }()

	user, err := service.findByEmail(ctx, email)
	if apperr.HasCode(err, apperr.CodeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.Status != credential.StatusPending {
		return nil
	}

	if throttled, err := service.throttled(ctx, user.ID, otp.PurposeRegistration); err != nil || throttled {
		return err
	}
	return service.sendCode(ctx, user, otp.PurposeRegistration)
}

// # Authentication Flow

/*
Login verifies credentials and opens a session.

Description: The password is checked before the account status so a wrong
password never reveals whether the account is suspended.

Returns:
  - *Session: Token pair and the account
  - error: NotFound, InvalidCredentials, AccountNotActive or storage errors
*/
func (service *Service) Login(ctx context.Context, input LoginInput) (session *Session, err error) {
	ctx, span := service.tracer.Start(ctx, "auth.Login")
	defer func() { finishSpan(span, err) }()

	user, err := service.findByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}

	if err := service.checkPassword(ctx, input.Password, user.PasswordHash); err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, apperr.AccountNotActive(string(user.Status))
	}

	pair, err := withStorage(ctx, service, func(bounded context.Context) (*token.Pair, error) {
		return service.tokens.IssuePair(bounded, subjectOf(user), input.Client)
	})
	if err != nil {
		return nil, err
	}

	now := service.now().UTC()
	if err := storage(ctx, service, func(bounded context.Context) error {
		return service.users.TouchLastLogin(bounded, user.ID, now)
	}); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "auth_touch_last_login_failed",
			slog.String("user_id", user.ID), slog.Any("error", err))
	} else {
		user.LastLoginAt = &now
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "auth_login_succeeded", slog.String("user_id", user.ID))
	return &Session{Pair: pair, User: user}, nil
}

/*
Refresh exchanges a refresh token for a new pair.

The owner is reloaded before the old token is consumed, so a suspended
account cannot keep a session alive and keeps its token untouched.
*/
func (service *Service) Refresh(ctx context.Context, refreshToken string, client token.Meta) (pair *token.Pair, err error) {
	ctx, span := service.tracer.Start(ctx, "auth.Refresh")
	defer func() { finishSpan(span, err) }()

	pair, err = withStorage(ctx, service, func(bounded context.Context) (*token.Pair, error) {
		return service.tokens.Rotate(bounded, refreshToken, client, service.authorize)
	})
	if err != nil {
		return nil, err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "auth_refresh_rotated")
	return pair, nil
}

// Logout revokes one refresh token. Unknown or already revoked tokens succeed.
func (service *Service) Logout(ctx context.Context, refreshToken string) (err error) {
	ctx, span := service.tracer.Start(ctx, "auth.Logout")
	defer func() { finishSpan(span, err) }()

	return storage(ctx, service, func(bounded context.Context) error {
		return service.tokens.Revoke(bounded, refreshToken)
	})
}

// LogoutAll revokes every refresh token of the user and reports how many were active.
func (service *Service) LogoutAll(ctx context.Context, userID string) (revoked int64, err error) {
	ctx, span := service.tracer.Start(ctx, "auth.LogoutAll")
	defer func() { finishSpan(span, err) }()

	revoked, err = withStorage(ctx, service, func(bounded context.Context) (int64, error) {
		return service.tokens.RevokeAllForUser(bounded, userID)
	})
	if err != nil {
		return 0, err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "auth_logout_all",
		slog.String("user_id", userID), slog.Int64("revoked", revoked))
	return revoked, nil
}

// Me returns the account behind an authenticated request.
func (service *Service) Me(ctx context.Context, userID string) (*credential.User, error) {
	return withStorage(ctx, service, func(bounded context.Context) (*credential.User, error) {
		return service.users.FindByID(bounded, userID)
	})
}

// # Password Recovery

/*
ForgotPassword sends a PASSWORD_RESET code to an ACTIVE account.

Description: Reports nothing back. Storage and delivery failures are logged
and swallowed so the response is the same for registered and unknown emails.
*/
func (service *Service) ForgotPassword(ctx context.Context, email string) {
	ctx, span := service.tracer.Start(ctx, "auth.ForgotPassword")
	defer span.End()

	logger := ctxutil.GetLogger(ctx)

	user, err := service.findByEmail(ctx, email)
	if err != nil {
		if !apperr.HasCode(err, apperr.CodeNotFound) {
			span.RecordError(err)
			logger.WarnContext(ctx, "auth_forgot_password_lookup_failed", slog.Any("error", err))
		}
		return
	}
	if !user.IsActive() {
		return
	}

	throttled, err := service.throttled(ctx, user.ID, otp.PurposePasswordReset)
	if err == nil && !throttled {
		err = service.sendCode(ctx, user, otp.PurposePasswordReset)
	}
	if err != nil {
		span.RecordError(err)
		logger.WarnContext(ctx, "auth_forgot_password_send_failed",
			slog.String("user_id", user.ID), slog.Any("error", err))
	}
}

/*
ResetPassword replaces the password using a PASSWORD_RESET code and signs the
account out everywhere.

Returns:
  - error: OTP_EXPIRED for unknown emails (same as an expired code),
    OTP_ATTEMPTS_EXCEEDED, OTP_MISMATCH, AccountNotActive or storage errors
*/
func (service *Service) ResetPassword(ctx context.Context, email, code, newPassword string) (err error) {
	ctx, span := service.tracer.Start(ctx, "auth.ResetPassword")
	defer func() { finishSpan(span, err) }()

	user, err := service.findByEmail(ctx, email)
	if apperr.HasCode(err, apperr.CodeNotFound) {
		return apperr.OTPExpired()
	}
	if err != nil {
		return err
	}

	hash, err := service.hashPassword(ctx, newPassword)
	if err != nil {
		return err
	}

	if err := storage(ctx, service, func(bounded context.Context) error {
		return service.codes.Validate(bounded, user.ID, otp.PurposePasswordReset, code)
	}); err != nil {
		return err
	}
	if !user.IsActive() {
		return apperr.AccountNotActive(string(user.Status))
	}

	return service.replacePassword(ctx, user.ID, hash, "auth_password_reset")
}

// ChangePassword replaces the password of a signed-in user after re-checking the current one.
func (service *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (err error) {
	ctx, span := service.tracer.Start(ctx, "auth.ChangePassword")
	defer func() { finishSpan(span, err) }()

	user, err := service.Me(ctx, userID)
	if err != nil {
		return err
	}
	if err := service.checkPassword(ctx, currentPassword, user.PasswordHash); err != nil {
		return err
	}

	hash, err := service.hashPassword(ctx, newPassword)
	if err != nil {
		return err
	}
	return service.replacePassword(ctx, user.ID, hash, "auth_password_changed")
}

func (service *Service) replacePassword(ctx context.Context, userID, hash, event string) error {
	if err := storage(ctx, service, func(bounded context.Context) error {
		return service.users.UpdatePasswordHash(bounded, userID, hash)
	}); err != nil {
		return err
	}

	revoked, err := withStorage(ctx, service, func(bounded context.Context) (int64, error) {
		return service.tokens.RevokeAllForUser(bounded, userID)
	})
	if err != nil {
		return err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, event,
		slog.String("user_id", userID), slog.Int64("sessions_revoked", revoked))
	return nil
}

// # Administration

/*
SetStatus moves an activated account to SUSPENDED or DELETED on behalf of an
administrator. PENDING accounts are refused; only [Service.VerifyOTP] activates.

Suspending or deleting an account revokes all of its refresh tokens. Access
tokens already issued stay valid until they expire.

Returns:
  - *credential.User: The account after the change
  - error: Forbidden (own account), NotFound, InvalidTransition (PENDING source
    or a move the state machine forbids) or storage errors
*/
func (service *Service) SetStatus(ctx context.Context, actorID, userID string, status credential.Status) (user *credential.User, err error) {
	ctx, span := service.tracer.Start(ctx, "auth.SetStatus",
		trace.WithAttributes(attribute.String("auth.status", string(status))))
	defer func() { finishSpan(span, err) }()

	if actorID == userID {
		return nil, apperr.Forbidden("Administrators cannot change their own status")
	}

	user, err = service.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Status.CanAdministerTo(status) {
		return nil, apperr.InvalidTransition(string(user.Status), string(status))
	}

	if err := storage(ctx, service, func(bounded context.Context) error {
		return service.users.UpdateStatus(bounded, user.ID, user.Status, status)
	}); err != nil {
		return nil, err
	}
	previous := user.Status
	user.Status = status

	if status == credential.StatusSuspended || status == credential.StatusDeleted {
		if _, err := withStorage(ctx, service, func(bounded context.Context) (int64, error) {
			return service.tokens.RevokeAllForUser(bounded, user.ID)
		}); err != nil {
			return nil, err
		}
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "auth_status_changed",
		slog.String("actor_id", actorID),
		slog.String("user_id", user.ID),
		slog.String("from", string(previous)),
		slog.String("to", string(status)),
	)
	return user, nil
}

// ListUsers returns one page of accounts matching filter, with the total count.
func (service *Service) ListUsers(ctx context.Context, filter credential.Filter, page pagination.Params) (result *pagination.Page[*credential.User], err error) {
	ctx, span := service.tracer.Start(ctx, "auth.ListUsers")
	defer func() { finishSpan(span, err) }()

	var total int
	users, err := withStorage(ctx, service, func(bounded context.Context) ([]*credential.User, error) {
		found, count, err := service.users.List(bounded, filter, page)
		total = count
		return found, err
	})
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(users, page, total), nil
}

// # Helpers

// sendCode issues a code and hands it to the delivery sender.
func (service *Service) sendCode(ctx context.Context, user *credential.User, purpose otp.Purpose) error {
	issued, err := withStorage(ctx, service, func(bounded context.Context) (*otp.Issued, error) {
		return service.codes.Issue(bounded, user.ID, purpose)
	})
	if err != nil {
		return err
	}

	bounded, cancel := context.WithTimeout(ctx, service.config.DeliveryTimeout)
	defer cancel()

	message := delivery.Message{Kind: delivery.KindFor(purpose), Code: issued.Code, ExpiresAt: issued.ExpiresAt}
	if err := service.sender.Send(bounded, user.Email, message); err != nil {
		if !apperr.HasCode(err, apperr.CodeDeliveryFailure) {
			err = apperr.DeliveryFailure(err)
		}
		return err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "otp_issued",
		slog.String("user_id", user.ID),
		slog.String("purpose", string(purpose)),
	)
	return nil
}

// throttled reports whether a code was issued too recently to send another.
func (service *Service) throttled(ctx context.Context, userID string, purpose otp.Purpose) (bool, error) {
	remaining, err := withStorage(ctx, service, func(bounded context.Context) (time.Duration, error) {
		return service.codes.CooldownRemaining(bounded, userID, purpose)
	})
	if err != nil {
		return false, err
	}
	if remaining > 0 {
		ctxutil.GetLogger(ctx).InfoContext(ctx, "otp_resend_throttled",
			slog.String("user_id", userID), slog.Duration("remaining", remaining))
		return true, nil
	}
	return false, nil
}

// authorize re-checks the owner of a refresh token during rotation.
func (service *Service) authorize(ctx context.Context, userID string) (token.Subject, error) {
	user, err := service.users.FindByID(ctx, userID)
	if apperr.HasCode(err, apperr.CodeNotFound) {
		return token.Subject{}, apperr.TokenNotFound()
	}
	if err != nil {
		return token.Subject{}, err
	}
	if !user.IsActive() {
		return token.Subject{}, apperr.AccountNotActive(string(user.Status))
	}
	return subjectOf(user), nil
}

func (service *Service) findByEmail(ctx context.Context, email string) (*credential.User, error) {
	return withStorage(ctx, service, func(bounded context.Context) (*credential.User, error) {
		return service.users.FindByEmail(bounded, credential.NormalizeEmail(email))
	})
}

func (service *Service) hashPassword(ctx context.Context, password string) (string, error) {
	return withStorage(ctx, service, func(bounded context.Context) (string, error) {
		hash, err := sec.HashPasswordContext(bounded, password)
		if errors.Is(err, sec.ErrPasswordTooLong) {
			return "", apperr.ValidationError("Password exceeds 72 bytes")
		}
		return hash, err
	})
}

func (service *Service) checkPassword(ctx context.Context, password, hash string) error {
	matched, err := withStorage(ctx, service, func(bounded context.Context) (bool, error) {
		return sec.CheckPasswordHashContext(bounded, password, hash)
	})
	if err != nil {
		return err
	}
	if !matched {
		return apperr.InvalidCredentials()
	}
	return nil
}

func subjectOf(user *credential.User) token.Subject {
	return token.Subject{ID: user.ID, Role: user.Role}
}

func isSelfService(role sec.UserRole) bool {
	for _, allowed := range sec.SelfServiceRoles() {
		if role == allowed {
			return true
		}
	}
	return false
}

// withStorage runs call under the storage deadline and classifies its error.
func withStorage[T any](ctx context.Context, service *Service, call func(context.Context) (T, error)) (T, error) {
	bounded, cancel := context.WithTimeout(ctx, service.config.StorageTimeout)
	defer cancel()

	value, err := call(bounded)
	return value, storageError(err)
}

func storage(ctx context.Context, service *Service, call func(context.Context) error) error {
	_, err := withStorage(ctx, service, func(bounded context.Context) (struct{}, error) {
		return struct{}{}, call(bounded)
	})
	return err
}

// storageError keeps domain errors and turns bare deadline or cancellation
// errors into a retryable STORAGE_UNAVAILABLE.
func storageError(err error) error {
	switch {
	case err == nil, apperr.IsAppError(err):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperr.StorageUnavailable(err)
	default:
		return apperr.Internal(fmt.Errorf("auth: %w", err))
	}
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if apperr.As(err) == nil || apperr.As(err).HTTPStatus >= 500 {
			span.SetStatus(otelcodes.Error, err.Error())
		}
	}
	span.End()
}
