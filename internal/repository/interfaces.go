// Package repository defines data access interfaces for the auth service.
// These interfaces abstract database operations, allowing for different implementations
// (PostgreSQL, SQLite, in-memory for testing) while keeping the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/Bugian/Sign-up-Log-in-page/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
// Implementations guarantee username and email uniqueness and report a
// violation as domain.ErrUserAlreadyExists.
type UserRepository interface {
	// Save inserts the user when ID is 0 and updates it otherwise. The role
	// set is replaced atomically with the row. Returns the stored user.
	Save(ctx context.Context, user *domain.User) (*domain.User, error)

	// FindByID retrieves a user by ID.
	// Returns domain.ErrUserNotFound when absent.
	FindByID(ctx context.Context, id int64) (*domain.User, error)

	// FindByUsername retrieves a user by username.
	// Returns domain.ErrUserNotFound when absent.
	FindByUsername(ctx context.Context, username string) (*domain.User, error)

	// UpdateLastLogin stamps the last login time without touching any other
	// column. Returns domain.ErrUserNotFound when absent.
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error

	// ExistsByUsername checks if a user with the given username exists.
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// ExistsByEmail checks if a user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// DeleteByID deletes a user and its roles.
	// Returns domain.ErrUserNotFound when absent.
	DeleteByID(ctx context.Context, id int64) error

	// FindAll returns users ordered by ID. A zero Limit returns every user.
	FindAll(ctx context.Context, opts ListOptions) (*ListResult[domain.User], error)
}

// =============================================================================
// Common Types
// =============================================================================

// ListOptions contains common pagination options.
type ListOptions struct {
	// Offset is the number of records to skip.
	Offset int

	// Limit is the maximum number of records to return. Zero means no limit.
	Limit int
}

// ListResult is a generic paginated list result.
type ListResult[T any] struct {
	// Items is the list of items.
	Items []*T

	// Total is the total number of items (without pagination).
	Total int64

	// Offset is the current offset.
	Offset int

	// Limit is the current limit.
	Limit int
}
