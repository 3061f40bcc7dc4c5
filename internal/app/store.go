package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Bugian/Sign-up-Log-in-page/internal/cache/memory"
	rediscache "github.com/Bugian/Sign-up-Log-in-page/internal/cache/redis"
	"github.com/Bugian/Sign-up-Log-in-page/internal/config"
	"github.com/Bugian/Sign-up-Log-in-page/internal/repository"
)

// Store is the storage side of the application: the database, the optional
// Redis client and the user repository every service must share.
type Store struct {
	Repos *repository.Repositories

	// Users is Repos.User behind the configured cache. Services must use it
	// rather than Repos.User so every write invalidates the cache.
	Users repository.UserRepository

	// Redis is nil unless redis.enabled is set.
	Redis redis.UniversalClient

	logger  zerolog.Logger
	closers []func() error
}

// OpenStore opens the database, Redis when enabled and the user cache.
// The server and auth-admin both build their services on it.
func OpenStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *Store, err error) {
	s := &Store{logger: logger}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	repos, err := OpenRepositories(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	s.Repos = repos
	s.closers = append(s.closers, repos.Database.Close)

	if cfg.Redis.Enabled {
		if err := s.openRedis(ctx, cfg.Redis); err != nil {
			return nil, err
		}
	}

	s.Users = repos.User
	if cfg.Cache.Enabled {
		c, err := s.newCache(cfg.Cache)
		if err != nil {
			return nil, err
		}
		s.Users = repository.NewCachedUserRepository(repos.User, c, cfg.Cache.TTL, logger)
	}
	return s, nil
}

func (s *Store) openRedis(ctx context.Context, cfg config.RedisConfig) error {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	})
	s.closers = append(s.closers, client.Close)

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr(), err)
	}
	s.Redis = client
	s.logger.Info().Str("addr", cfg.Addr()).Msg("connected to redis")
	return nil
}

func (s *Store) newCache(cfg config.CacheConfig) (repository.Cache, error) {
	if cfg.Backend == "redis" {
		if s.Redis == nil {
			return nil, errors.New("redis cache backend requires redis.enabled")
		}
		return rediscache.NewCache(s.Redis, redisCachePrefix), nil
	}

	s.logger.Warn().
		Dur("ttl", cfg.TTL).
		Msg("memory user cache is per process; token checks may miss other processes' writes until ttl")
	c := memory.NewCache(cfg.CleanupInterval)
	s.closers = append(s.closers, func() error {
		c.Stop()
		return nil
	})
	return c, nil
}

// Close releases every resource in reverse order of acquisition.
func (s *Store) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
