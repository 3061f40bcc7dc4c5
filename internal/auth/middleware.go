package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Bugian/Sign-up-Log-in-page/internal/domain"
)

// TokenValidator resolves a bearer token to a live user.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*domain.User, error)
}

// TokenValidatorFunc adapts a function to TokenValidator.
type TokenValidatorFunc func(ctx context.Context, token string) (*domain.User, error)

// ValidateToken calls f.
func (f TokenValidatorFunc) ValidateToken(ctx context.Context, token string) (*domain.User, error) {
	return f(ctx, token)
}

// MiddlewareConfig contains configuration for the auth middleware.
type MiddlewareConfig struct {
	// SkipPaths are paths that skip authentication.
	SkipPaths []string
}

// DefaultMiddlewareConfig returns the default middleware configuration.
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		SkipPaths: []string{"/health", "/metrics"},
	}
}

// Middleware creates an authentication middleware that requires a valid
// bearer token and stores the AuthContext in the request context.
func Middleware(validator TokenValidator, config MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.SkipPaths {
				if r.URL.Path == path {
					next.ServeHTTP(w, r)
					return
				}
			}

			token, err := TokenFromRequest(r)
			if err != nil {
				WriteError(w, err)
				return
			}

			user, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("bearer authentication failed")
				WriteError(w, err)
				return
			}

			authCtx := &AuthContext{User: user, Token: token}
			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), authCtx)))
		})
	}
}

// RequireRole rejects requests whose principal lacks the role.
// It must run after Middleware.
func RequireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !GetAuthContext(r.Context()).Has(role) {
				WriteError(w, NewError(KindUnauthorized, "insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ErrorBody is the JSON shape of an error response.
type ErrorBody struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// WriteError writes err as a JSON error response with the status of its Kind.
// Errors that are not *Error are reported as internal.
func WriteError(w http.ResponseWriter, err error) {
	WriteErrorStatus(w, err, KindOf(err).HTTPStatus())
}

// WriteErrorStatus is WriteError with an explicit status. A bearer challenge
// is only sent with 401.
func WriteErrorStatus(w http.ResponseWriter, err error, status int) {
	kind := KindOf(err)
	message := ErrInternal.Message
	if kind != KindInternal {
		message = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", BearerScheme)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{Kind: kind, Message: message})
}

// WithAuthContext returns a copy of ctx carrying authCtx.
func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, authCtx)
}

// GetAuthContext retrieves the AuthContext from a request context.
func GetAuthContext(ctx context.Context) *AuthContext {
	if authCtx, ok := ctx.Value(AuthContextKey).(*AuthContext); ok {
		return authCtx
	}
	return nil
}

// RequireAuth is a helper to get auth context or return error.
func RequireAuth(ctx context.Context) (*AuthContext, error) {
	authCtx := GetAuthContext(ctx)
	if authCtx == nil {
		return nil, ErrUnauthorized
	}
	return authCtx, nil
}
