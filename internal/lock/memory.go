package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker implements Locker using in-memory locks.
// This is suitable for single-node deployments where distributed locking is not needed.
// The locks are NOT shared across process restarts or multiple instances.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
	now   func() time.Time
	done  chan struct{}
	once  sync.Once
}

type memoryLock struct {
	owner     string
	expiresAt time.Time
}

// NewMemoryLocker creates a new in-memory locker. Expired locks are swept
// every cleanupInterval; a non-positive interval disables the sweeper.
func NewMemoryLocker(cleanupInterval time.Duration) *MemoryLocker {
	ml := &MemoryLocker{
		locks: make(map[string]memoryLock),
		now:   time.Now,
		done:  make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go ml.cleanupLoop(cleanupInterval)
	}

	return ml
}

// Stop halts the background sweeper.
func (m *MemoryLocker) Stop() {
	m.once.Do(func() { close(m.done) })
}

// cleanupLoop periodically removes expired locks.
func (m *MemoryLocker) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.done:
			return
		}
	}
}

// cleanup removes expired locks.
func (m *MemoryLocker) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, l := range m.locks {
		if !now.Before(l.expiresAt) {
			delete(m.locks, key)
		}
	}
}

// Len returns the number of locks currently tracked, expired or not.
func (m *MemoryLocker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// Acquire attempts to acquire a lock for owner.
func (m *MemoryLocker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if l, exists := m.locks[key]; exists && now.Before(l.expiresAt) {
		return false, nil
	}

	m.locks[key] = memoryLock{owner: owner, expiresAt: now.Add(ttl)}
	return true, nil
}

// AcquireWithRetry attempts to acquire a lock with retries.
func (m *MemoryLocker) AcquireWithRetry(ctx context.Context, key, owner string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	return acquireWithRetry(ctx, m, key, owner, ttl, maxRetries, retryDelay)
}

// Release releases a lock held by owner. An expired lock still held by
// owner is removed but reported as not released.
func (m *MemoryLocker) Release(_ context.Context, key, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, exists := m.locks[key]
	if !exists || l.owner != owner {
		return false, nil
	}
	delete(m.locks, key)
	return m.now().Before(l.expiresAt), nil
}

// acquireWithRetry retries l.Acquire until it succeeds, fails, or runs out of attempts.
func acquireWithRetry(ctx context.Context, l Locker, key, owner string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	for i := 0; i <= maxRetries; i++ {
		acquired, err := l.Acquire(ctx, key, owner, ttl)
		if err != nil {
			return false, err
		}
		if acquired {
			return true, nil
		}

		// Don't sleep on the last attempt.
		if i < maxRetries {
			timer := time.NewTimer(retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return false, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return false, nil
}

// Ensure MemoryLocker implements Locker.
var _ Locker = (*MemoryLocker)(nil)
