package session

import (
	"context"
	"fmt"
	"sync"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// userLocks serializes operations per user and garbage collects idle locks.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*lockEntry)}
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(userID) after unlocking.
func (l *userLocks) acquire(userID string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.locks[userID]
	if !exists {
		entry = &lockEntry{}
		l.locks[userID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (l *userLocks) release(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.locks[userID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, userID)
	}
}

func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// withLock runs fn while holding the user's local lock and, if configured,
// the distributed lock.
func (c *Controller) withLock(ctx context.Context, userID string, fn func(context.Context) error) error {
	entry := c.locks.acquire(userID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		c.locks.release(userID)
	}()

	if c.locker != nil {
		unlock, err := c.locker.Lock(ctx, userID, c.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// Released with a fresh context: ctx may already be canceled.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				c.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"user_id", userID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
