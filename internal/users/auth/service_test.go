// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

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
	"github.com/taibuivan/marketplace-auth/internal/users/auth"
	"github.com/taibuivan/marketplace-auth/internal/users/credential"
	"github.com/taibuivan/marketplace-auth/internal/users/delivery"
	"github.com/taibuivan/marketplace-auth/internal/users/otp"
	"github.com/taibuivan/marketplace-auth/internal/users/token"
	"github.com/taibuivan/marketplace-auth/pkg/pagination"
)

const (
	adaEmail    = "ada@example.com"
	adaPassword = "correct-horse-42"
	theCode     = "482913"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func signingKey() *rsa.PrivateKey {
	keyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = key
	})
	return testKey
}

// # Fakes

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

type sent struct {
	address string
	message delivery.Message
}

// recordingSender remembers every message and can be told to fail.
type recordingSender struct {
	mu   sync.Mutex
	err  error
	sent []sent
}

func (s *recordingSender) Send(_ context.Context, address string, message delivery.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sent{address: address, message: message})
	return nil
}

func (s *recordingSender) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *recordingSender) last() sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[len(s.sent)-1]
}

// flakyActivationStore fails UpdateStatus while broken is set.
type flakyActivationStore struct {
	credential.Store

	mu     sync.Mutex
	broken bool
}

func (s *flakyActivationStore) UpdateStatus(ctx context.Context, userID string, from, to credential.Status) error {
	s.mu.Lock()
	broken := s.broken
	s.mu.Unlock()
	if broken {
		return apperr.StorageUnavailable(errors.New("primary unreachable"))
	}
	return s.Store.UpdateStatus(ctx, userID, from, to)
}

func (s *flakyActivationStore) repair() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken = false
}

// slowStore blocks lookups until the caller's deadline passes.
type slowStore struct {
	credential.Store
}

func (s slowStore) FindByEmail(ctx context.Context, _ string) (*credential.User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// # Harness

type harness struct {
	service *auth.Service
	users   credential.Store
	sender  *recordingSender
	clock   *clock
}

func newHarness(t *testing.T, codes ...string) *harness {
	t.Helper()
	return newHarnessWith(t, credential.NewMemoryStore(), auth.Config{}, codes...)
}

func newHarnessWith(t *testing.T, users credential.Store, config auth.Config, codes ...string) *harness {
	t.Helper()
	if len(codes) == 0 {
		codes = []string{theCode}
	}

	c := &clock{now: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)}
	var (
		mu       sync.Mutex
		sequence = codes
	)
	generate := func(int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		next := sequence[0]
		if len(sequence) > 1 {
			sequence = sequence[1:]
		}
		return next, nil
	}

	codeManager := otp.NewManager(otp.NewMemoryStore(), otp.Config{
		Length:         6,
		TTL:            10 * time.Minute,
		MaxAttempts:    3,
		ResendCooldown: time.Minute,
	}, otp.WithClock(c.Now), otp.WithCodeGenerator(generate))

	tokens := token.NewService(token.NewMemoryStore(), sec.NewJWTSignerFromKey(signingKey(), "marketplace-auth"), token.Config{
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, token.WithClock(c.Now))

	sender := &recordingSender{}
	return &harness{
		service: auth.NewService(users, codeManager, tokens, sender, config, auth.WithClock(c.Now)),
		users:   users,
		sender:  sender,
		clock:   c,
	}
}

func (h *harness) register(t *testing.T, email string) *credential.User {
	t.Helper()
	user, err := h.service.Register(context.Background(), auth.RegisterInput{
		Email:    email,
		Password: adaPassword,
		Role:     sec.RoleCustomer,
		Profile:  credential.Profile{FullName: "Ada Lovelace"},
	})
	require.NoError(t, err)
	return user
}

func (h *harness) activate(t *testing.T, email string) *credential.User {
	t.Helper()
	h.register(t, email)
	user, err := h.service.VerifyOTP(context.Background(), email, theCode)
	require.NoError(t, err)
	return user
}

func (h *harness) login(t *testing.T, email, password string) *auth.Session {
	t.Helper()
	session, err := h.service.Login(context.Background(), auth.LoginInput{Email: email, Password: password})
	require.NoError(t, err)
	return session
}

// # Registration

/*
TestRegister_HappyPath leaves the account PENDING and sends one code.
*/
func TestRegister_HappyPath(t *testing.T) {
	h := newHarness(t)

	user := h.register(t, "  Ada@Example.com ")

	assert.Equal(t, adaEmail, user.Email)
	assert.Equal(t, credential.StatusPending, user.Status)
	assert.Equal(t, sec.RoleCustomer, user.Role)
	assert.NotEqual(t, adaPassword, user.PasswordHash)

	require.Equal(t, 1, h.sender.count())
	assert.Equal(t, adaEmail, h.sender.last().address)
	assert.Equal(t, delivery.KindRegistration, h.sender.last().message.Kind)
	assert.Equal(t, theCode, h.sender.last().message.Code)
}

/*
TestRegister_DuplicateEmail rejects a second sign-up, case-insensitively.
*/
func TestRegister_DuplicateEmail(t *testing.T) {
	h := newHarness(t)
	h.register(t, adaEmail)

	_, err := h.service.Register(context.Background(), auth.RegisterInput{
		Email: "ADA@example.com", Password: adaPassword, Role: sec.RoleBusinessOwner,
	})
	assert.True(t, apperr.HasCode(err, apperr.CodeDuplicateEmail))
}

/*
TestRegister_Concurrent lets exactly one of many racers create the account.
*/
func TestRegister_Concurrent(t *testing.T) {
	h := newHarness(t)

	const racers = 16
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		created    int
		duplicates int
	)
	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.service.Register(context.Background(), auth.RegisterInput{
				Email: adaEmail, Password: adaPassword, Role: sec.RoleCustomer,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case apperr.HasCode(err, apperr.CodeDuplicateEmail):
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, racers-1, duplicates)
	assert.Equal(t, 1, h.sender.count())
}

/*
TestRegister_RoleGate keeps ADMIN out of self-service sign-up.
*/
func TestRegister_RoleGate(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.Register(context.Background(), auth.RegisterInput{
		Email: adaEmail, Password: adaPassword, Role: sec.RoleAdmin,
	})
	assert.True(t, apperr.HasCode(err, apperr.CodeForbidden))

	admin, err := h.service.CreateUser(context.Background(), auth.RegisterInput{
		Email: adaEmail, Password: adaPassword, Role: sec.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, sec.RoleAdmin, admin.Role)
	assert.Equal(t, credential.StatusPending, admin.Status)
}

/*
TestRegister_Profile keeps the profile fields and gives only business owners
a subscription flag.
*/
func TestRegister_Profile(t *testing.T) {
	subscribed := true

	tests := []struct {
		name             string
		role             sec.UserRole
		haveSubscription *bool
		wantCode         string
		wantSubscription *bool
	}{
		{"customer", sec.RoleCustomer, nil, "", nil},
		{"business_owner_default", sec.RoleBusinessOwner, nil, "", new(bool)},
		{"business_owner_subscribed", sec.RoleBusinessOwner, &subscribed, "", &subscribed},
		{"customer_with_subscription", sec.RoleCustomer, &subscribed, apperr.CodeValidation, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			user, err := h.service.Register(context.Background(), auth.RegisterInput{
				Email:    adaEmail,
				Password: adaPassword,
				Role:     tt.role,
				Profile: credential.Profile{
					FullName:         "Ada",
					City:             "Hanoi",
					Country:          "VN",
					Gender:           credential.GenderFemale,
					HaveSubscription: tt.haveSubscription,
				},
			})

			if tt.wantCode != "" {
				assert.True(t, apperr.HasCode(err, tt.wantCode), "got %v", err)
				assert.Equal(t, 0, h.sender.count())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubscription, user.HaveSubscription)

			stored, err := h.service.Me(context.Background(), user.ID)
			require.NoError(t, err)
			assert.Equal(t, "Hanoi", stored.City)
			assert.Equal(t, "VN", stored.Country)
			assert.Equal(t, credential.GenderFemale, stored.Gender)
			assert.Equal(t, tt.wantSubscription, stored.HaveSubscription)
		})
	}
}

/*
TestRegister_DeliveryFailure keeps the account and lets the code be re-sent.
*/
func TestRegister_DeliveryFailure(t *testing.T) {
	h := newHarness(t, "111111", theCode)
	h.sender.fail(errors.New("broker unreachable"))

	_, err := h.service.Register(context.Background(), auth.RegisterInput{
		Email: adaEmail, Password: adaPassword, Role: sec.RoleCustomer,
	})
	require.True(t, apperr.HasCode(err, apperr.CodeDeliveryFailure))
	assert.True(t, apperr.IsRetryable(err))

	stored, err := h.users.FindByEmail(context.Background(), adaEmail)
	require.NoError(t, err)
	assert.Equal(t, credential.StatusPending, stored.Status)

	h.sender.fail(nil)
	h.clock.Advance(61 * time.Second)
	require.NoError(t, h.service.ResendOTP(context.Background(), adaEmail, otp.PurposeRegistration))
	assert.Equal(t, theCode, h.sender.last().message.Code)

	_, err = h.service.VerifyOTP(context.Background(), adaEmail, theCode)
	assert.NoError(t, err)
}

/*
TestResendOTP is silent for unknown, active and throttled requests.
*/
func TestResendOTP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.service.ResendOTP(ctx, "nobody@example.com", otp.PurposeRegistration))
	assert.Zero(t, h.sender.count())

	h.register(t, adaEmail)
	require.NoError(t, h.service.ResendOTP(ctx, adaEmail, otp.PurposeRegistration))
	assert.Equal(t, 1, h.sender.count(), "inside the cooldown")

	h.clock.Advance(time.Minute)
	require.NoError(t, h.service.ResendOTP(ctx, adaEmail, otp.PurposeRegistration))
	assert.Equal(t, 2, h.sender.count())

	_, err := h.service.VerifyOTP(ctx, adaEmail, theCode)
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	require.NoError(t, h.service.ResendOTP(ctx, adaEmail, otp.PurposeRegistration))
	assert.Equal(t, 2, h.sender.count(), "already active")
}

// # Verification

/*
TestVerifyOTP_ActivationFailureCanResend lets the owner ask for a new code
straight away when the code matched but the account could not be activated.
*/
func TestVerifyOTP_ActivationFailureCanResend(t *testing.T) {
	users := &flakyActivationStore{Store: credential.NewMemoryStore(), broken: true}
	h := newHarnessWith(t, users, auth.Config{}, "111111", theCode)
	ctx := context.Background()
	h.register(t, adaEmail)

	_, err := h.service.VerifyOTP(ctx, adaEmail, "111111")
	require.True(t, apperr.HasCode(err, apperr.CodeStorageUnavailable), "got %v", err)

	stored, err := h.users.FindByEmail(ctx, adaEmail)
	require.NoError(t, err)
	assert.Equal(t, credential.StatusPending, stored.Status)

	require.NoError(t, h.service.ResendOTP(ctx, adaEmail, otp.PurposeRegistration))
	require.Equal(t, 2, h.sender.count(), "no cooldown once the code is spent")
	assert.Equal(t, theCode, h.sender.last().message.Code)

	users.repair()
	user, err := h.service.VerifyOTP(ctx, adaEmail, theCode)
	require.NoError(t, err)
	assert.Equal(t, credential.StatusActive, user.Status)
}


/*
TestScenario_RegisterVerifyLogin walks the documented happy path with code 482913.
*/
func TestScenario_RegisterVerifyLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.register(t, adaEmail)

	user, err := h.service.VerifyOTP(ctx, adaEmail, theCode)
	require.NoError(t, err)
	assert.Equal(t, credential.StatusActive, user.Status)

	session := h.login(t, adaEmail, adaPassword)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, "Bearer", session.TokenType)
	assert.Equal(t, user.ID, session.User.ID)
	require.NotNil(t, session.User.LastLoginAt)
	assert.True(t, session.User.LastLoginAt.Equal(h.clock.Now()), "stamped with the service clock")

	stored, err := h.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	assert.True(t, stored.LastLoginAt.Equal(h.clock.Now()))

	claims, err := h.service.ValidateAccessToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, string(sec.RoleCustomer), claims.Role)
}

/*
TestVerifyOTP_SingleUse accepts the code at most once.
*/
func TestVerifyOTP_SingleUse(t *testing.T) {
	h := newHarness(t)
	h.register(t, adaEmail)

	_, err := h.service.VerifyOTP(context.Background(), adaEmail, theCode)
	require.NoError(t, err)

	_, err = h.service.VerifyOTP(context.Background(), adaEmail, theCode)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

/*
TestScenario_ThreeWrongCodes exhausts the attempts so the right code fails too.
*/
func TestScenario_ThreeWrongCodes(t *testing.T) {
	h := newHarness(t)
	h.register(t, adaEmail)
	ctx := context.Background()

	for _, wrong := range []string{"000000", "111111", "222222"} {
		_, err := h.service.VerifyOTP(ctx, adaEmail, wrong)
		require.True(t, apperr.HasCode(err, apperr.CodeOTPMismatch), "got %v", err)
	}

	_, err := h.service.VerifyOTP(ctx, adaEmail, theCode)
	assert.True(t, apperr.HasCode(err, apperr.CodeOTPAttemptsExceeded))

	stored, err := h.users.FindByEmail(ctx, adaEmail)
	require.NoError(t, err)
	assert.Equal(t, credential.StatusPending, stored.Status)
}

/*
TestVerifyOTP_ExpiredWithAttemptsLeft fails a correct but late code.
*/
func TestVerifyOTP_ExpiredWithAttemptsLeft(t *testing.T) {
	h := newHarness(t)
	h.register(t, adaEmail)

	h.clock.Advance(10*time.Minute + time.Second)
	_, err := h.service.VerifyOTP(context.Background(), adaEmail, theCode)
	assert.True(t, apperr.HasCode(err, apperr.CodeOTPExpired))
}

/*
TestVerifyOTP_UnknownEmail reports NotFound.
*/
func TestVerifyOTP_UnknownEmail(t *testing.T) {
	h := newHarness(t)
	_, err := h.service.VerifyOTP(context.Background(), "nobody@example.com", theCode)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

// # Login & Sessions

/*
TestLogin_Failures covers every refusal in the order they are checked.
*/
func TestLogin_Failures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, adaEmail)

	tests := []struct {
		name     string
		email    string
		password string
		wantCode string
	}{
		{"unknown_email", "nobody@example.com", adaPassword, apperr.CodeNotFound},
		{"wrong_password_on_pending", adaEmail, "wrong-password-1", apperr.CodeInvalidCredentials},
		{"pending", adaEmail, adaPassword, apperr.CodeAccountNotActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.service.Login(ctx, auth.LoginInput{Email: tt.email, Password: tt.password})
			assert.True(t, apperr.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

/*
TestLogin_Suspended refuses suspended accounts and revokes their sessions.
*/
func TestLogin_Suspended(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.activate(t, adaEmail)
	session := h.login(t, adaEmail, adaPassword)

	suspended, err := h.service.SetStatus(ctx, "admin-id", user.ID, credential.StatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, credential.StatusSuspended, suspended.Status)

	_, err = h.service.Login(ctx, auth.LoginInput{Email: adaEmail, Password: adaPassword})
	assert.True(t, apperr.HasCode(err, apperr.CodeAccountNotActive))

	_, err = h.service.Refresh(ctx, session.RefreshToken, token.Meta{})
	assert.True(t, apperr.HasCode(err, apperr.CodeTokenRevoked))
}

/*
TestRefresh_RotatesOnUse invalidates the presented token.
*/
func TestRefresh_RotatesOnUse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.activate(t, adaEmail)
	session := h.login(t, adaEmail, adaPassword)

	pair, err := h.service.Refresh(ctx, session.RefreshToken, token.Meta{UserAgent: "ios"})
	require.NoError(t, err)
	assert.NotEqual(t, session.RefreshToken, pair.RefreshToken)

	_, err = h.service.Refresh(ctx, session.RefreshToken, token.Meta{})
	assert.True(t, apperr.HasCode(err, apperr.CodeTokenRevoked))

	_, err = h.service.Refresh(ctx, "garbage", token.Meta{})
	assert.True(t, apperr.HasCode(err, apperr.CodeTokenNotFound))
}

/*
TestRefresh_OwnerNoLongerActive checks the account on every rotation.
*/
func TestRefresh_OwnerNoLongerActive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.activate(t, adaEmail)
	session := h.login(t, adaEmail, adaPassword)

	// Suspended behind the service's back, so the token is still live.
	require.NoError(t, h.users.UpdateStatus(ctx, user.ID, credential.StatusActive, credential.StatusSuspended))

	_, err := h.service.Refresh(ctx, session.RefreshToken, token.Meta{})
	assert.True(t, apperr.HasCode(err, apperr.CodeAccountNotActive))
}

/*
TestLogout is idempotent; LogoutAll reaches every device.
*/
func TestLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.activate(t, adaEmail)

	phone := h.login(t, adaEmail, adaPassword)
	laptop := h.login(t, adaEmail, adaPassword)
	tablet := h.login(t, adaEmail, adaPassword)

	require.NoError(t, h.service.Logout(ctx, phone.RefreshToken))
	require.NoError(t, h.service.Logout(ctx, phone.RefreshToken))
	require.NoError(t, h.service.Logout(ctx, "never-issued"))

	_, err := h.service.Refresh(ctx, phone.RefreshToken, token.Meta{})
	assert.True(t, apperr.HasCode(err, apperr.CodeTokenRevoked))

	revoked, err := h.service.LogoutAll(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), revoked)

	for _, session := range []*auth.Session{laptop, tablet} {
		_, err := h.service.Refresh(ctx, session.RefreshToken, token.Meta{})
		assert.True(t, apperr.HasCode(err, apperr.CodeTokenRevoked))
	}
}

// # Password Recovery

/*
TestForgotPassword answers uniformly and only mails active accounts.
*/
func TestForgotPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.service.ForgotPassword(ctx, "nobody@example.com")
	assert.Zero(t, h.sender.count())

	h.register(t, adaEmail)
	h.service.ForgotPassword(ctx, adaEmail)
	assert.Equal(t, 1, h.sender.count(), "pending accounts get nothing")

	_, err := h.service.VerifyOTP(ctx, adaEmail, theCode)
	require.NoError(t, err)

	h.sender.fail(errors.New("broker unreachable"))
	assert.NotPanics(t, func() { h.service.ForgotPassword(ctx, adaEmail) }, "delivery failures stay hidden")
	assert.Equal(t, 1, h.sender.count())

	h.sender.fail(nil)
	h.clock.Advance(time.Minute)
	h.service.ForgotPassword(ctx, adaEmail)
	assert.Equal(t, 2, h.sender.count())
	assert.Equal(t, delivery.KindPasswordReset, h.sender.last().message.Kind)
}

/*
TestResetPassword swaps the password and signs out every device.
*/
func TestResetPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.activate(t, adaEmail)
	session := h.login(t, adaEmail, adaPassword)

	h.service.ForgotPassword(ctx, adaEmail)

	err := h.service.ResetPassword(ctx, adaEmail, "999999", "new-password-7")
	require.True(t, apperr.HasCode(err, apperr.CodeOTPMismatch))

	require.NoError(t, h.service.ResetPassword(ctx, adaEmail, theCode, "new-password-7"))

	_, err = h.service.Refresh(ctx, session.RefreshToken, token.Meta{})
	assert.True(t, apperr.HasCode(err, apperr.CodeTokenRevoked))

	_, err = h.service.Login(ctx, auth.LoginInput{Email: adaEmail, Password: adaPassword})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidCredentials))
	h.login(t, adaEmail, "new-password-7")

	err = h.service.ResetPassword(ctx, adaEmail, theCode, "another-password-8")
	assert.True(t, apperr.HasCode(err, apperr.CodeOTPExpired), "codes are single use")
}

/*
TestResetPassword_UnknownEmail looks like an expired code.
*/
func TestResetPassword_UnknownEmail(t *testing.T) {
	h := newHarness(t)
	err := h.service.ResetPassword(context.Background(), "nobody@example.com", theCode, "new-password-7")
	assert.True(t, apperr.HasCode(err, apperr.CodeOTPExpired))
}

/*
TestResetPassword_CodesArePurposeBound refuses a registration code.
*/
func TestResetPassword_CodesArePurposeBound(t *testing.T) {
	h := newHarness(t)
	h.register(t, adaEmail)

	err := h.service.ResetPassword(context.Background(), adaEmail, theCode, "new-password-7")
	assert.True(t, apperr.HasCode(err, apperr.CodeOTPExpired))
}

/*
TestChangePassword re-checks the current password.
*/
func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.activate(t, adaEmail)
	session := h.login(t, adaEmail, adaPassword)

	err := h.service.ChangePassword(ctx, user.ID, "not-my-password-1", "new-password-7")
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidCredentials))

	require.NoError(t, h.service.ChangePassword(ctx, user.ID, adaPassword, "new-password-7"))

	_, err = h.service.Refresh(ctx, session.RefreshToken, token.Meta{})
	assert.True(t, apperr.HasCode(err, apperr.CodeTokenRevoked))
	h.login(t, adaEmail, "new-password-7")
}

// # Administration

/*
TestSetStatus enforces the lifecycle and the self-protection rule.
*/
func TestSetStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pending := h.register(t, "pending@example.com")

	_, err := h.service.SetStatus(ctx, pending.ID, pending.ID, credential.StatusDeleted)
	assert.True(t, apperr.HasCode(err, apperr.CodeForbidden))

	_, err = h.service.SetStatus(ctx, "admin-id", pending.ID, credential.StatusSuspended)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidTransition))

	_, err = h.service.SetStatus(ctx, "admin-id", "01928f4e-0000-7000-8000-000000000000", credential.StatusSuspended)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

/*
TestSetStatus_CannotActivate leaves activation to the emailed code.
*/
func TestSetStatus_CannotActivate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pending := h.register(t, "pending@example.com")

	_, err := h.service.SetStatus(ctx, "admin-id", pending.ID, credential.StatusActive)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidTransition), "got %v", err)

	stored, err := h.users.FindByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, credential.StatusPending, stored.Status)

	_, err = h.service.Login(ctx, auth.LoginInput{Email: "pending@example.com", Password: adaPassword})
	assert.True(t, apperr.HasCode(err, apperr.CodeAccountNotActive), "got %v", err)
}

/*
TestSetStatus_SuspensionIsFinal refuses to reinstate a suspended account.
*/
func TestSetStatus_SuspensionIsFinal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.activate(t, adaEmail)

	_, err := h.service.SetStatus(ctx, "admin-id", user.ID, credential.StatusSuspended)
	require.NoError(t, err)

	for _, next := range []credential.Status{credential.StatusActive, credential.StatusDeleted} {
		_, err = h.service.SetStatus(ctx, "admin-id", user.ID, next)
		assert.True(t, apperr.HasCode(err, apperr.CodeInvalidTransition), "%s: got %v", next, err)
	}
}

/*
TestListUsers filters by status and pages newest first.
*/
func TestListUsers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.activate(t, "first@example.com")
	h.register(t, "second@example.com")
	h.activate(t, "third@example.com")

	page, err := h.service.ListUsers(ctx, credential.Filter{Statuses: []credential.Status{credential.StatusActive}},
		pagination.Params{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Meta.Total)
	assert.Equal(t, 2, page.Meta.TotalPages)
	require.Len(t, page.Items, 1)
}

// # Deadlines

/*
TestStorageDeadline turns a hung store into a retryable error.
*/
func TestStorageDeadline(t *testing.T) {
	h := newHarnessWith(t, slowStore{Store: credential.NewMemoryStore()}, auth.Config{StorageTimeout: 20 * time.Millisecond})

	started := time.Now()
	_, err := h.service.Login(context.Background(), auth.LoginInput{Email: adaEmail, Password: adaPassword})

	assert.True(t, apperr.HasCode(err, apperr.CodeStorageUnavailable), "got %v", err)
	assert.True(t, apperr.IsRetryable(err))
	assert.Less(t, time.Since(started), 2*time.Second)
}
