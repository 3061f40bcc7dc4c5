package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Bugian/Sign-up-Log-in-page/internal/auth"
	"github.com/Bugian/Sign-up-Log-in-page/internal/domain"
	"github.com/Bugian/Sign-up-Log-in-page/internal/service"
)

// UserAdmin is the part of service.UserService the admin endpoints use.
type UserAdmin interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context, input service.ListUsersInput) (*service.ListUsersOutput, error)
	Delete(ctx context.Context, id int64) error
	SetEnabled(ctx context.Context, id int64, enabled bool) (*domain.User, error)
	SetLocked(ctx context.Context, id int64, locked bool) (*domain.User, error)
	AddRole(ctx context.Context, id int64, role string) (*domain.User, error)
	RemoveRole(ctx context.Context, id int64, role string) (*domain.User, error)
	ExpireCredentials(ctx context.Context, id int64) (*domain.User, error)
}

var _ UserAdmin = (*service.UserService)(nil)

// AdminHandler serves the /admin/users endpoints. Every route requires
// ROLE_ADMIN.
type AdminHandler struct {
	users  UserAdmin
	logger zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(users UserAdmin, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		users:  users,
		logger: logger.With().Str("handler", "admin").Logger(),
	}
}

// UserListResponse is the body of GET /admin/users.
type UserListResponse struct {
	Users      []*domain.User `json:"users"`
	TotalCount int64          `json:"totalCount"`
}

// RoleRequest is the body of POST /admin/users/{id}/roles.
type RoleRequest struct {
	Role string `json:"role"`
}

// FlagRequest is the body of the enabled and locked endpoints.
type FlagRequest struct {
	Value bool `json:"value"`
}

// RegisterRoutes registers the admin routes. They must be mounted behind
// auth.Middleware.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/admin/users", func(r chi.Router) {
		r.Use(auth.RequireRole(domain.RoleAdmin))

		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Delete("/{id}", h.handleDelete)
		r.Put("/{id}/enabled", h.handleSetEnabled)
		r.Put("/{id}/locked", h.handleSetLocked)
		r.Post("/{id}/roles", h.handleAddRole)
		r.Delete("/{id}/roles/{role}", h.handleRemoveRole)
		r.Post("/{id}/expire-credentials", h.handleExpireCredentials)
	})
}

func (h *AdminHandler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	out, err := h.users.List(r.Context(), service.ListUsersInput{Limit: limit, Offset: offset})
	if err != nil {
		writeAdminError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UserListResponse{Users: out.Users, TotalCount: out.TotalCount})
}

func (h *AdminHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	h.respond(w, r, "get")(h.users.GetByID(r.Context(), id))
}

func (h *AdminHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		writeAdminError(w, err)
		return
	}

	h.logger.Info().Int64("user_id", id).Str("admin", adminName(r)).Msg("user deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req FlagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAdminError(w, err)
		return
	}
	h.respond(w, r, "set_enabled")(h.users.SetEnabled(r.Context(), id, req.Value))
}

func (h *AdminHandler) handleSetLocked(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req FlagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAdminError(w, err)
		return
	}
	h.respond(w, r, "set_locked")(h.users.SetLocked(r.Context(), id, req.Value))
}

func (h *AdminHandler) handleAddRole(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req RoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAdminError(w, err)
		return
	}
	h.respond(w, r, "add_role")(h.users.AddRole(r.Context(), id, req.Role))
}

func (h *AdminHandler) handleRemoveRole(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	h.respond(w, r, "remove_role")(h.users.RemoveRole(r.Context(), id, chi.URLParam(r, "role")))
}

func (h *AdminHandler) handleExpireCredentials(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	h.respond(w, r, "expire_credentials")(h.users.ExpireCredentials(r.Context(), id))
}

// respond writes the user or the error of an admin operation.
func (h *AdminHandler) respond(w http.ResponseWriter, r *http.Request, action string) func(*domain.User, error) {
	return func(user *domain.User, err error) {
		if err != nil {
			writeAdminError(w, err)
			return
		}
		if action != "get" {
			h.logger.Info().
				Int64("user_id", user.ID).
				Str("action", action).
				Str("admin", adminName(r)).
				Msg("admin action")
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// writeAdminError reports a missing target user as 404. Outside the admin
// routes UserNotFound stays 401.
func writeAdminError(w http.ResponseWriter, err error) {
	if auth.KindOf(err) == auth.KindUserNotFound {
		auth.WriteErrorStatus(w, err, http.StatusNotFound)
		return
	}
	auth.WriteError(w, err)
}

// userID parses the {id} URL parameter, writing a 400 when it is invalid.
func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		auth.WriteError(w, auth.NewError(auth.KindPolicyViolation, "invalid user id"))
		return 0, false
	}
	return id, true
}

func adminName(r *http.Request) string {
	if a := auth.GetAuthContext(r.Context()); a != nil && a.User != nil {
		return a.User.Username
	}
	return ""
}
