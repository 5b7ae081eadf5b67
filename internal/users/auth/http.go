// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/marketplace-auth/internal/platform/apperr"
	"github.com/taibuivan/marketplace-auth/internal/platform/constants"
	"github.com/taibuivan/marketplace-auth/internal/platform/middleware"
	requestutil "github.com/taibuivan/marketplace-auth/internal/platform/request"
	"github.com/taibuivan/marketplace-auth/internal/platform/respond"
	"github.com/taibuivan/marketplace-auth/internal/platform/sec"
	"github.com/taibuivan/marketplace-auth/internal/platform/validate"
	"github.com/taibuivan/marketplace-auth/internal/users/credential"
	"github.com/taibuivan/marketplace-auth/internal/users/otp"
	"github.com/taibuivan/marketplace-auth/internal/users/token"
)

// # Definitions & Constructors

// Handler implements the public authentication endpoints.
//
// # Scope
//
// Transport only: decoding, validation, status codes and the refresh cookie.
// Every decision is taken by [Service].
type Handler struct {
	authService *Service
	codeLength  int
}

// NewHandler constructs a new [Handler]. codeLength is the configured OTP length.
func NewHandler(service *Service, codeLength int) *Handler {
	return &Handler{authService: service, codeLength: codeLength}
}

// Routes returns a [chi.Router] configured with authentication routes.
//
// # Endpoints
//   - POST /register, /verify-otp, /send-otp : Account activation
//   - POST /login, /refresh, /logout         : Session lifecycle
//   - POST /forgot-password, /reset-password : Recovery
//   - GET /me, POST /logout-all, /change-password (authenticated)
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/verify-otp", handler.verifyOTP)
	router.Post("/send-otp", handler.sendOTP)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/me", handler.me)
		r.Post("/logout-all", handler.logoutAll)
		r.Post("/change-password", handler.changePassword)
	})

	return router
}

// # Request Payloads

// profileRequest holds the sign-up fields shared by self and admin creation.
type profileRequest struct {
	FullName         string `json:"full_name"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	City             string `json:"city"`
	State            string `json:"state"`
	Country          string `json:"country"`
	Picture          string `json:"picture"`
	Gender           string `json:"gender"`
	HaveSubscription *bool  `json:"have_subscription"`
}

func (input profileRequest) profile() credential.Profile {
	return credential.Profile{
		FullName:         input.FullName,
		Phone:            input.Phone,
		Address:          input.Address,
		City:             input.City,
		State:            input.State,
		Country:          input.Country,
		Picture:          input.Picture,
		Gender:           credential.Gender(input.Gender),
		HaveSubscription: input.HaveSubscription,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType string `json:"user_type"`
	profileRequest
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type sendOTPRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

/*
Register creates a PENDING account and sends its activation code.

POST /api/v1/auth/register

Request:
  - Body: registerRequest (Email, Password, FullName, Phone, UserType)

Response:
  - 201: User: The PENDING account
  - 400: VALIDATION_ERROR
  - 409: DUPLICATE_EMAIL
  - 503: DELIVERY_FAILURE (account kept; call /send-otp)
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := validateRegistration(input.Email, input.Password, input.profileRequest).
		OneOf(FieldUserType, input.UserType, string(sec.RoleCustomer), string(sec.RoleBusinessOwner)).
		Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.Register(request.Context(), RegisterInput{
		Email:    input.Email,
		Password: input.Password,
		Role:     sec.UserRole(input.UserType),
		Profile:  input.profile(),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

/*
VerifyOTP activates a PENDING account.

POST /api/v1/auth/verify-otp

Response:
  - 200: User: The ACTIVE account
  - 400: OTP_MISMATCH (with attempts left) / VALIDATION_ERROR
  - 404: No pending account for this email
  - 410: OTP_EXPIRED
  - 429: OTP_ATTEMPTS_EXCEEDED
*/
func (handler *Handler) verifyOTP(writer http.ResponseWriter, request *http.Request) {
	var input verifyOTPRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		NumericCode(FieldOTP, input.OTP, handler.codeLength)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.VerifyOTP(request.Context(), input.Email, input.OTP)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
SendOTP re-sends an activation (or reset) code.

POST /api/v1/auth/send-otp

Response:
  - 200: Uniform message, whether or not the email is registered
*/
func (handler *Handler) sendOTP(writer http.ResponseWriter, request *http.Request) {
	var input sendOTPRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if input.Purpose == "" {
		input.Purpose = string(otp.PurposeRegistration)
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		OneOf(FieldPurpose, input.Purpose, string(otp.PurposeRegistration), string(otp.PurposePasswordReset))
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ResendOTP(request.Context(), input.Email, otp.Purpose(input.Purpose)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, "If the account is awaiting a code, a new one has been sent.")
}

/*
Login authenticates a user and establishes a session.

POST /api/v1/auth/login

Response:
  - 200: Session: Token pair and account; the refresh token is also set as cookie
  - 401: INVALID_CREDENTIALS
  - 403: ACCOUNT_NOT_ACTIVE
  - 404: NOT_FOUND
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Login(request.Context(), LoginInput{
		Email:    input.Email,
		Password: input.Password,
		Client:   clientMeta(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	setRefreshCookie(writer, session.Pair)
	respond.OK(writer, session)
}

/*
Refresh rotates the refresh token.

POST /api/v1/auth/refresh

Description: Browser clients send the cookie; other clients send
{"refresh_token": "..."}. The presented token is consumed.

Response:
  - 200: Pair: New access and refresh tokens
  - 401: TOKEN_REVOKED / TOKEN_EXPIRED / TOKEN_NOT_FOUND
  - 403: ACCOUNT_NOT_ACTIVE
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	refreshToken, err := refreshTokenFrom(writer, request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	pair, err := handler.authService.Refresh(request.Context(), refreshToken, clientMeta(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	setRefreshCookie(writer, pair)
	respond.OK(writer, pair)
}

/*
Logout terminates the current session.

POST /api/v1/auth/logout

Response:
  - 204: Always, once the token (if any) is revoked
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	refreshToken, err := refreshTokenFrom(writer, request)
	if err == nil {
		if err := handler.authService.Logout(request.Context(), refreshToken); err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	clearRefreshCookie(writer)
	respond.NoContent(writer)
}

/*
LogoutAll revokes every session of the signed-in user.

POST /api/v1/auth/logout-all
*/
func (handler *Handler) logoutAll(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	revoked, err := handler.authService.LogoutAll(request.Context(), claims.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	clearRefreshCookie(writer)
	respond.OK(writer, map[string]int64{FieldRevoked: revoked})
}

// Me returns the signed-in account. GET /api/v1/auth/me
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.Me(request.Context(), claims.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
ForgotPassword starts password recovery.

POST /api/v1/auth/forgot-password

Response:
  - 200: Uniform message for registered and unknown emails
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input forgotPasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.authService.ForgotPassword(request.Context(), input.Email)
	respond.Message(writer, "If this email is registered, a reset code has been sent.")
}

/*
ResetPassword completes password recovery and signs out every device.

POST /api/v1/auth/reset-password
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		NumericCode(FieldOTP, input.OTP, handler.codeLength).
		Password(FieldNewPassword, input.NewPassword, MinPasswordBytes)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ResetPassword(request.Context(), input.Email, input.OTP, input.NewPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	clearRefreshCookie(writer)
	respond.Message(writer, "Password updated successfully")
}

/*
ChangePassword updates the signed-in user's password.

POST /api/v1/auth/change-password

Response:
  - 200: Password changed; all sessions revoked
  - 401: INVALID_CREDENTIALS when the current password is wrong
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, input.CurrentPassword).
		Password(FieldNewPassword, input.NewPassword, MinPasswordBytes).
		Custom(FieldNewPassword, input.NewPassword == input.CurrentPassword, "Must differ from the current password")
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ChangePassword(request.Context(), claims.UserID, input.CurrentPassword, input.NewPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	clearRefreshCookie(writer)
	respond.Message(writer, "Password changed successfully")
}

// # Helpers

func validateRegistration(email, password string, profile profileRequest) *validate.Validator {
	validator := &validate.Validator{}
	validator.Required(FieldEmail, email).
		Email(FieldEmail, email).
		Password(FieldPassword, password, MinPasswordBytes).
		Required(FieldFullName, profile.FullName).
		MaxLen(FieldFullName, profile.FullName, MaxFullNameLength).
		Phone(FieldPhone, profile.Phone).
		MaxLen(FieldAddress, profile.Address, MaxAddressLength).
		MaxLen(FieldCity, profile.City, MaxRegionLength).
		MaxLen(FieldState, profile.State, MaxRegionLength).
		MaxLen(FieldCountry, profile.Country, MaxRegionLength).
		MaxLen(FieldPicture, profile.Picture, MaxPictureLength).
		Custom(FieldGender, !credential.Gender(profile.Gender).Valid(), "Must be one of: MALE, FEMALE, OTHER")
	return validator
}

func clientMeta(request *http.Request) token.Meta {
	client := requestutil.Client(request)
	return token.Meta{UserAgent: client.UserAgent, IPAddress: client.IPAddress}
}

// refreshTokenFrom prefers the cookie and falls back to a JSON body.
func refreshTokenFrom(writer http.ResponseWriter, request *http.Request) (string, error) {
	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	if request.ContentLength != 0 {
		var input refreshRequest
		if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
			return "", err
		}
		if input.RefreshToken != "" {
			return input.RefreshToken, nil
		}
	}
	return "", apperr.Unauthorized("Missing refresh token")
}

func setRefreshCookie(writer http.ResponseWriter, pair *token.Pair) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    pair.RefreshToken,
		Path:     constants.RefreshTokenCookiePath,
		Expires:  pair.RefreshExpiresAt,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearRefreshCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    "",
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
