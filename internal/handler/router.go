// Package handler provides the HTTP adapter of the auth service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/Bugian/Sign-up-Log-in-page/internal/auth"
)

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Auth      *AuthHandler
	Admin     *AdminHandler // nil disables the admin routes
	Validator auth.TokenValidator
	Health    HealthChecker

	// Metrics is served at MetricsPath when non-nil.
	Metrics     http.Handler
	MetricsPath string

	// CORSAllowedOrigins enables CORS handling when non-empty.
	CORSAllowedOrigins []string

	// MaxBodySize bounds request bodies; 0 means no limit.
	MaxBodySize int64

	Logger zerolog.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(config RouterConfig) http.Handler {
	logger := config.Logger.With().Str("component", "router").Logger()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	if len(config.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   config.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if config.MaxBodySize > 0 {
		r.Use(maxBodySize(config.MaxBodySize))
	}

	r.Get("/health", handleHealth(config.Health, logger))
	if config.Metrics != nil {
		path := config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, config.Metrics)
	}

	config.Auth.RegisterRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(config.Validator, auth.MiddlewareConfig{}))

		config.Auth.RegisterProtectedRoutes(r)
		if config.Admin != nil {
			config.Admin.RegisterRoutes(r)
		}
	})

	return r
}

// handleHealth handles health check requests.
func handleHealth(checker HealthChecker, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.Health(r.Context()); err != nil {
				logger.Warn().Err(err).Msg("health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

// requestLogger logs every request at debug level once it completes.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

func maxBodySize(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// JSON helpers
// =============================================================================

var errBadBody = auth.NewError(auth.KindPolicyViolation, "invalid request body")

// decodeJSON decodes a single JSON object from the request body.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return auth.WrapError(auth.KindPolicyViolation, "request body too large", err)
		}
		return auth.WrapError(auth.KindPolicyViolation, errBadBody.Message, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return errBadBody
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
