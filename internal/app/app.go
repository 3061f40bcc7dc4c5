// Package app wires configuration, storage and services into a runnable
// auth server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Bugian/Sign-up-Log-in-page/internal/auth"
	"github.com/Bugian/Sign-up-Log-in-page/internal/config"
	"github.com/Bugian/Sign-up-Log-in-page/internal/handler"
	"github.com/Bugian/Sign-up-Log-in-page/internal/lock"
	"github.com/Bugian/Sign-up-Log-in-page/internal/metrics"
	"github.com/Bugian/Sign-up-Log-in-page/internal/repository"
	"github.com/Bugian/Sign-up-Log-in-page/internal/service"

	// Storage backends register themselves with the repository factory.
	_ "github.com/Bugian/Sign-up-Log-in-page/internal/repository/postgres"
	_ "github.com/Bugian/Sign-up-Log-in-page/internal/repository/sqlite"
)

// Key prefixes in a shared Redis.
const (
	redisCachePrefix = "authd:"
	redisLockPrefix  = "authd:"
)

// App holds the wired components of the auth server.
type App struct {
	Config   *config.Config
	Repos    *repository.Repositories
	Users    repository.UserRepository
	Auth     *service.AuthService
	Admin    *service.UserService
	Registry *prometheus.Registry // nil when metrics are disabled
	Handler  http.Handler

	logger  zerolog.Logger
	closers []func() error
}

// OpenRepositories opens the configured storage backend and, when
// database.auto_migrate is set, applies pending migrations.
func OpenRepositories(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*repository.Repositories, error) {
	repos, err := repository.NewFactory(cfg, logger).Create(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := repos.Database.Migrate(ctx); err != nil {
			_ = repos.Database.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return repos, nil
}

// NewHasher builds the configured credential hasher.
func NewHasher(cfg config.AuthConfig) (auth.CredentialHasher, error) {
	return auth.NewHasher(cfg.Hasher, cfg.BcryptCost)
}

// NewTokenCodec builds the token codec. A short secret is an error.
func NewTokenCodec(cfg config.AuthConfig) (*auth.TokenCodec, error) {
	var opts []auth.TokenOption
	if cfg.Issuer != "" {
		opts = append(opts, auth.WithIssuer(cfg.Issuer))
	}
	return auth.NewTokenCodec(cfg.JWTSecret, cfg.TokenValidity, opts...)
}

// New builds the application. On error every resource opened so far is
// released.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *App, err error) {
	a := &App{
		Config: cfg,
		logger: logger,
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	codec, err := NewTokenCodec(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("invalid token configuration: %w", err)
	}
	hasher, err := NewHasher(cfg.Auth)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	a.Repos = store.Repos
	a.Users = store.Users

	var authMetrics *metrics.Auth
	if cfg.Metrics.Enabled {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		authMetrics = metrics.NewAuth(a.Registry)
	}

	a.Auth, err = service.NewAuthService(service.AuthServiceConfig{
		Users:   a.Users,
		Hasher:  hasher,
		Codec:   codec,
		Locker:  a.newLocker(cfg.Lock, store.Redis),
		LockTTL: cfg.Lock.TTL,
		Metrics: authMetrics,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	a.Admin = service.NewUserService(a.Users, hasher, logger)

	routerCfg := handler.RouterConfig{
		Auth:               handler.NewAuthHandler(a.Auth, logger),
		Admin:              handler.NewAdminHandler(a.Admin, logger),
		Validator:          a.Auth,
		Health:             store.Repos.Database,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		MaxBodySize:        cfg.Server.MaxBodySize,
		Logger:             logger,
	}
	if a.Registry != nil {
		routerCfg.Metrics = promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	a.Handler = handler.NewRouter(routerCfg)

	logger.Info().
		Str("database", cfg.Database.Driver).
		Bool("cache", cfg.Cache.Enabled).
		Str("lock", cfg.Lock.Backend).
		Str("hasher", cfg.Auth.Hasher).
		Bool("metrics", cfg.Metrics.Enabled).
		Msg("application initialized")

	return a, nil
}

func (a *App) newLocker(cfg config.LockConfig, rdb redis.UniversalClient) lock.Locker {
	switch cfg.Backend {
	case "redis":
		return lock.NewRedisLocker(rdb, redisLockPrefix)
	case "noop":
		return lock.NewNoOpLocker()
	default:
		l := lock.NewMemoryLocker(cfg.TTL)
		a.closers = append(a.closers, func() error {
			l.Stop()
			return nil
		})
		return l
	}
}

// Serve runs the HTTP server until ctx is canceled, then shuts it down
// gracefully within server.shutdown_timeout.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config.Server
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.Handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	return nil
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
