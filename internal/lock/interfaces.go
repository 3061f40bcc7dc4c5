// Package lock provides distributed and local locking abstractions.
// Single-node deployments use memory locks; deployments sharing one user
// store across instances use Redis locks.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotAcquired is returned when a lock is still held by another owner
// after every retry.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker defines the interface for distributed/local locking.
//
// Every call names the owner holding the lock. Release only removes a lock
// still held by the same owner, so a holder whose lock expired and was
// taken over cannot release the new holder's lock.
type Locker interface {
	// Acquire attempts to acquire a lock for owner.
	// Returns true if the lock was acquired, false if it's held by another owner.
	// The lock will automatically expire after the specified TTL.
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)

	// AcquireWithRetry attempts to acquire a lock with retries.
	// Will retry up to maxRetries times with retryDelay between attempts.
	AcquireWithRetry(ctx context.Context, key, owner string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release releases a lock held by owner.
	// Returns true if the lock was released, false if owner did not hold it.
	Release(ctx context.Context, key, owner string) (bool, error)
}

// Lock is a convenience wrapper for a specific lock instance. Each Lock is
// its own owner.
type Lock struct {
	locker Locker
	key    string
	owner  string
	held   bool
}

// NewLock creates a new Lock instance with a fresh owner token.
func NewLock(locker Locker, key string) *Lock {
	return &Lock{
		locker: locker,
		key:    key,
		owner:  uuid.NewString(),
	}
}

// Acquire attempts to acquire the lock.
func (l *Lock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	acquired, err := l.locker.Acquire(ctx, l.key, l.owner, ttl)
	if err != nil {
		return false, err
	}
	l.held = acquired
	return acquired, nil
}

// AcquireWithRetry attempts to acquire the lock, retrying while it is held elsewhere.
func (l *Lock) AcquireWithRetry(ctx context.Context, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	acquired, err := l.locker.AcquireWithRetry(ctx, l.key, l.owner, ttl, maxRetries, retryDelay)
	if err != nil {
		return false, err
	}
	l.held = acquired
	return acquired, nil
}

// Release releases the lock. A lock that expired and was taken by another
// owner is left alone.
func (l *Lock) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}
	_, err := l.locker.Release(ctx, l.key, l.owner)
	l.held = false
	return err
}

// Key returns the lock key.
func (l *Lock) Key() string {
	return l.key
}

// =============================================================================
// Common Lock Keys
// =============================================================================

// Keys provides lock key generation for common scenarios.
var Keys = lockKeys{}

type lockKeys struct{}

// Registration returns a lock key serialising registrations of one username.
func (lockKeys) Registration(username string) string {
	return "lock:register:" + username
}
