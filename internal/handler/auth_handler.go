package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Bugian/Sign-up-Log-in-page/internal/auth"
	"github.com/Bugian/Sign-up-Log-in-page/internal/domain"
	"github.com/Bugian/Sign-up-Log-in-page/internal/service"
)

// Authenticator is the part of service.AuthService the HTTP layer uses.
type Authenticator interface {
	Login(ctx context.Context, input service.LoginInput) (*service.LoginOutput, error)
	Register(ctx context.Context, input service.SignupInput) (*service.RegisterOutput, error)
	ValidateToken(ctx context.Context, token string) (*domain.User, error)
	ValidateTokenForPasswordChange(ctx context.Context, token string) (*domain.User, error)
	RefreshToken(ctx context.Context, token string) (*service.LoginOutput, error)
	ChangePassword(ctx context.Context, input service.ChangePasswordInput) error
}

var _ Authenticator = (*service.AuthService)(nil)

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	auth   Authenticator
	logger zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authenticator Authenticator, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   authenticator,
		logger: logger.With().Str("handler", "auth").Logger(),
	}
}

// =============================================================================
// Request / Response Types
// =============================================================================

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignupRequest is the body of POST /auth/register.
type SignupRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// RefreshRequest is the optional body of POST /auth/refresh.
type RefreshRequest struct {
	Token string `json:"token"`
}

// ChangePasswordRequest is the body of POST /auth/change-password.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// TokenResponse carries an issued session token.
type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
	ExpiresIn int64     `json:"expiresIn"`

	// PasswordChangeRequired marks a token that only POST /auth/change-password accepts.
	PasswordChangeRequired bool `json:"passwordChangeRequired,omitempty"`
}

func newTokenResponse(out *service.LoginOutput) TokenResponse {
	return TokenResponse{
		Token:     out.Token,
		TokenType: auth.BearerScheme,
		Username:  out.Username,
		ExpiresAt: out.ExpiresAt,
		ExpiresIn: out.ExpiresIn,

		PasswordChangeRequired: out.PasswordChangeRequired,
	}
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers the public /auth routes and the password change.
// The password change authenticates its own bearer token: it also accepts
// users whose credentials have expired.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/refresh", h.handleRefresh)

	rotation := auth.TokenValidatorFunc(h.auth.ValidateTokenForPasswordChange)
	r.With(auth.Middleware(rotation, auth.MiddlewareConfig{})).
		Post("/auth/change-password", h.handleChangePassword)
}

// RegisterProtectedRoutes registers the /auth routes that need a bearer token.
// They must be mounted behind auth.Middleware.
func (h *AuthHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/auth/me", h.handleMe)
}

// =============================================================================
// Handlers
// =============================================================================

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		auth.WriteError(w, err)
		return
	}

	out, err := h.auth.Login(r.Context(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		auth.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newTokenResponse(out))
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		auth.WriteError(w, err)
		return
	}

	out, err := h.auth.Register(r.Context(), service.SignupInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		auth.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, out.User)
}

// handleRefresh accepts the token in the JSON body or as a bearer header.
func (h *AuthHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var token string
	if r.Header.Get(auth.AuthorizationHeader) != "" {
		t, err := auth.TokenFromRequest(r)
		if err != nil {
			auth.WriteError(w, err)
			return
		}
		token = t
	} else if r.ContentLength != 0 {
		var req RefreshRequest
		if err := decodeJSON(r, &req); err != nil {
			auth.WriteError(w, err)
			return
		}
		token = strings.TrimSpace(req.Token)
	}

	out, err := h.auth.RefreshToken(r.Context(), token)
	if err != nil {
		auth.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newTokenResponse(out))
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	authCtx, err := auth.RequireAuth(r.Context())
	if err != nil {
		auth.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authCtx.User)
}

func (h *AuthHandler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	authCtx, err := auth.RequireAuth(r.Context())
	if err != nil {
		auth.WriteError(w, err)
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		auth.WriteError(w, err)
		return
	}

	err = h.auth.ChangePassword(r.Context(), service.ChangePasswordInput{
		UserID:      authCtx.User.ID,
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		auth.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
