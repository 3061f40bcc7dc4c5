package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Bugian/Sign-up-Log-in-page/internal/app"
	"github.com/Bugian/Sign-up-Log-in-page/internal/config"
	"github.com/Bugian/Sign-up-Log-in-page/internal/service"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the admin CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth-admin",
		Short: "Administer authd accounts",
		Long: `auth-admin manages authd accounts directly against the configured
database: creating users, granting roles and locking or resetting accounts.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewUserCmd())
	cmd.AddCommand(NewSecretCmd())

	return cmd
}

// openUserService loads configuration, opens the store and returns a
// UserService with a function releasing it.
func openUserService(ctx context.Context) (*service.UserService, func(), error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}

	// Diagnostics go to stderr so command output stays parseable.
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.WarnLevel).
		With().Timestamp().Logger()

	hasher, err := app.NewHasher(cfg.Auth)
	if err != nil {
		return nil, nil, err
	}

	// Same storage wiring as the server, so a cached store is invalidated
	// by admin writes too.
	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close store")
		}
	}
	return service.NewUserService(store.Users, hasher, logger), closeFn, nil
}
