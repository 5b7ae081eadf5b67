// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/marketplace-auth/internal/platform/middleware"
	requestutil "github.com/taibuivan/marketplace-auth/internal/platform/request"
	"github.com/taibuivan/marketplace-auth/internal/platform/respond"
	"github.com/taibuivan/marketplace-auth/internal/platform/sec"
	"github.com/taibuivan/marketplace-auth/internal/platform/validate"
	"github.com/taibuivan/marketplace-auth/internal/users/credential"
	"github.com/taibuivan/marketplace-auth/pkg/pagination"
	"github.com/taibuivan/marketplace-auth/pkg/query"
	"github.com/taibuivan/marketplace-auth/pkg/slice"
)

// AdminHandler exposes account administration to ADMIN users.
type AdminHandler struct {
	authService *Service
}

// NewAdminHandler constructs a new [AdminHandler].
func NewAdminHandler(service *Service) *AdminHandler {
	return &AdminHandler{authService: service}
}

// Routes mounts under /api/v1/admin/users. Every route requires the ADMIN role.
func (handler *AdminHandler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireRole(sec.RoleAdmin))

	router.Get("/", handler.list)
	router.Post("/", handler.create)
	router.Get("/{id}", handler.get)
	router.Patch("/{id}/status", handler.setStatus)

	return router
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	profileRequest
}

type setStatusRequest struct {
	Status string `json:"status"`
}

/*
List returns a page of accounts.

GET /api/v1/admin/users?page=1&limit=20&role=CUSTOMER,BUSINESS_OWNER&status=ACTIVE&email=ada

Unknown roles and statuses in the filters are ignored.
*/
func (handler *AdminHandler) list(writer http.ResponseWriter, request *http.Request) {
	values := request.URL.Query()

	filter := credential.Filter{
		Roles: slice.Filter(
			slice.Map(query.StringSlice(values.Get(FieldRole)), func(raw string) sec.UserRole { return sec.UserRole(raw) }),
			sec.UserRole.Valid,
		),
		Statuses: slice.Filter(
			slice.Map(query.StringSlice(values.Get(FieldStatus)), func(raw string) credential.Status { return credential.Status(raw) }),
			credential.Status.Valid,
		),
		EmailPrefix: values.Get(FieldEmail),
	}

	page, err := handler.authService.ListUsers(request.Context(), filter, pagination.FromRequest(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, page.Items, page.Meta)
}

/*
Create provisions an account with any role, ADMIN included.

POST /api/v1/admin/users

The account starts PENDING; its owner activates it with the emailed code.
*/
func (handler *AdminHandler) create(writer http.ResponseWriter, request *http.Request) {
	var input createUserRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	roles := slice.Map(sec.Roles(), func(role sec.UserRole) string { return string(role) })
	if err := validateRegistration(input.Email, input.Password, input.profileRequest).
		OneOf(FieldRole, input.Role, roles...).
		Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.CreateUser(request.Context(), RegisterInput{
		Email:    input.Email,
		Password: input.Password,
		Role:     sec.UserRole(input.Role),
		Profile:  input.profile(),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

// Get returns one account. GET /api/v1/admin/users/{id}
func (handler *AdminHandler) get(writer http.ResponseWriter, request *http.Request) {
	id := requestutil.Param(request, "id")

	validator := &validate.Validator{}
	if err := validator.UUID("id", id).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.Me(request.Context(), id)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
SetStatus suspends or deletes an activated account.

PATCH /api/v1/admin/users/{id}/status

Response:
  - 200: User after the change
  - 403: Changing one's own status
  - 422: INVALID_STATUS_TRANSITION
*/
func (handler *AdminHandler) setStatus(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	id := requestutil.Param(request, "id")

	var input setStatusRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.UUID("id", id).
		OneOf(FieldStatus, input.Status, string(credential.StatusSuspended), string(credential.StatusDeleted))
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.SetStatus(request.Context(), claims.UserID, id, credential.Status(input.Status))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}
