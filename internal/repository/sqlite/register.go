package sqlite

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Bugian/Sign-up-Log-in-page/internal/config"
	"github.com/Bugian/Sign-up-Log-in-page/internal/repository"
)

// DriverName is the database.driver value selecting this backend.
const DriverName = "sqlite"

func init() {
	repository.Register(DriverName, Open)
}

// ConfigFromDatabase maps the application database settings to a SQLite Config.
func ConfigFromDatabase(cfg config.DatabaseConfig) Config {
	c := DefaultConfig(cfg.Path)
	if cfg.JournalMode != "" {
		c.JournalMode = cfg.JournalMode
	}
	if cfg.BusyTimeout > 0 {
		c.BusyTimeout = cfg.BusyTimeout
	}
	if cfg.SynchronousMode != "" {
		c.SynchronousMode = cfg.SynchronousMode
	}
	return c
}

// Open connects to SQLite and builds the repositories.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*repository.Repositories, error) {
	db, err := NewDB(ctx, ConfigFromDatabase(cfg), logger)
	if err != nil {
		return nil, err
	}
	return &repository.Repositories{
		User:     NewUserRepository(db),
		Database: db,
	}, nil
}
