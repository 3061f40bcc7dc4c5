package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Bugian/Sign-up-Log-in-page/internal/config"
)

// Database is the connection handle returned with the repositories.
type Database interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Migrate(ctx context.Context) error
	Version(ctx context.Context) (int64, error)
	Close() error
}

// Repositories holds all repository instances and the database they use.
type Repositories struct {
	User     UserRepository
	Database Database
}

// Opener connects to a backend and builds its repositories.
type Opener func(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Repositories, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Opener)
)

// Register makes a backend available by driver name. Backends call it from
// an init function; it panics on a duplicate name.
func Register(name string, open Opener) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if open == nil {
		panic("repository: Register opener is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("repository: Register called twice for driver " + name)
	}
	drivers[name] = open
}

// Drivers returns the registered driver names.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Factory creates repositories based on configuration.
type Factory struct {
	cfg    config.DatabaseConfig
	logger zerolog.Logger
}

// NewFactory creates a new repository factory.
func NewFactory(cfg config.DatabaseConfig, logger zerolog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// Driver returns the configured database driver.
func (f *Factory) Driver() string {
	return f.cfg.Driver
}

// IsEmbedded returns true if using embedded database.
func (f *Factory) IsEmbedded() bool {
	return f.cfg.IsEmbedded()
}

// Create opens the configured backend.
func (f *Factory) Create(ctx context.Context) (*Repositories, error) {
	driversMu.RLock()
	open, ok := drivers[f.cfg.Driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown database driver %q (registered: %v)", f.cfg.Driver, Drivers())
	}

	repos, err := open(ctx, f.cfg, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", f.cfg.Driver, err)
	}
	return repos, nil
}
