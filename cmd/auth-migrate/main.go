// Package main is the entry point for the authd database migration tool.
// It applies the schema of the configured backend, SQLite or PostgreSQL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Bugian/Sign-up-Log-in-page/internal/app"
	"github.com/Bugian/Sign-up-Log-in-page/internal/config"
	"github.com/Bugian/Sign-up-Log-in-page/internal/repository"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("authd Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "up":
		if err := withDatabase(os.Args[2:], migrateUp); err != nil {
			fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
			os.Exit(1)
		}

	case "status":
		if err := withDatabase(os.Args[2:], printStatus); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func migrateUp(ctx context.Context, db repository.Database) error {
	before, err := db.Version(ctx)
	if err != nil {
		return err
	}
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	after, err := db.Version(ctx)
	if err != nil {
		return err
	}

	if after == before {
		fmt.Printf("Schema is up to date (version %d)\n", after)
	} else {
		fmt.Printf("Migrated schema from version %d to %d\n", before, after)
	}
	return nil
}

func printStatus(ctx context.Context, db repository.Database) error {
	v, err := db.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Schema version: %d\n", v)
	return nil
}

// withDatabase opens the configured database without migrating it and runs fn.
func withDatabase(args []string, fn func(context.Context, repository.Database) error) error {
	flags := flag.NewFlagSet("auth-migrate", flag.ExitOnError)
	configPath := flags.String("config", "", "path to the configuration file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	cfg.Database.AutoMigrate = false

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.InfoLevel).
		With().Timestamp().Logger()

	ctx := context.Background()
	repos, err := app.OpenRepositories(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer repos.Database.Close()

	fmt.Printf("Database: %s\n", cfg.Database.Driver)
	return fn(ctx, repos.Database)
}

func printUsage() {
	fmt.Println(`authd Migration Tool

Usage:
  auth-migrate <command> [-config <path>]

Commands:
  up          Run all pending migrations
  status      Show the current schema version
  version     Print version information
  help        Show this help message

Configuration is read the same way as authd: the config file, then
AUTHD_* environment variables (for example AUTHD_DATABASE_DRIVER,
AUTHD_DATABASE_URL or AUTHD_DATABASE_PATH).

Examples:
  auth-migrate up
  auth-migrate up -config /etc/authd/config.yaml
  auth-migrate status`)
}
