package postgres

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Bugian/Sign-up-Log-in-page/internal/config"
	"github.com/Bugian/Sign-up-Log-in-page/internal/repository"
)

// DriverName is the database.driver value selecting this backend.
const DriverName = "postgres"

func init() {
	repository.Register(DriverName, Open)
}

// Open connects to PostgreSQL and builds the repositories.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*repository.Repositories, error) {
	db, err := NewDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &repository.Repositories{
		User:     NewUserRepository(db.Pool),
		Database: db,
	}, nil
}
