// Package utils provides small helpers shared by the reactshare services.
package utils

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fjmerc/reactshare/internal/repository"
)

// Default lock configuration values.
const (
	// DefaultLockTTL is the default time-to-live for locks.
	DefaultLockTTL = 10 * time.Minute

	// AccountDeletionLockTTL bounds a single account graph deletion.
	AccountDeletionLockTTL = 5 * time.Minute

	// SweepLockTTL is the TTL for the inactive-account sweep.
	// Longer than default because a sweep deletes many graphs in a row.
	SweepLockTTL = 30 * time.Minute
)

var (
	// ownerID is cached for the lifetime of the process.
	ownerID     string
	ownerIDOnce sync.Once
)

// GetOwnerID returns a unique identifier for this process instance.
// Format: hostname:pid:nonce
// The nonce is a cryptographic random value to prevent owner ID guessing.
func GetOwnerID() string {
	ownerIDOnce.Do(func() {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		nonce := make([]byte, 8)
		if _, err := rand.Read(nonce); err != nil {
			nonce = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		ownerID = fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), hex.EncodeToString(nonce))
	})
	return ownerID
}

// DistributedLock wraps one lock row of a LockRepository.
type DistributedLock struct {
	repo     repository.LockRepository
	lockType repository.LockType
	lockKey  string
	ownerID  string
	ttl      time.Duration
	acquired bool
	mu       sync.Mutex
}

// NewDistributedLock creates a lock owned by this process.
func NewDistributedLock(repo repository.LockRepository, lockType repository.LockType, lockKey string, ttl time.Duration) *DistributedLock {
	return NewDistributedLockWithOwner(repo, lockType, lockKey, ttl, GetOwnerID())
}

// NewDistributedLockWithOwner creates a lock with an explicit owner, so tests
// can simulate two processes.
func NewDistributedLockWithOwner(repo repository.LockRepository, lockType repository.LockType, lockKey string, ttl time.Duration, owner string) *DistributedLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &DistributedLock{
		repo:     repo,
		lockType: lockType,
		lockKey:  lockKey,
		ownerID:  owner,
		ttl:      ttl,
	}
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (l *DistributedLock) TryAcquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.repo == nil {
		// If no lock repository is configured, assume single-node and allow operation
		l.acquired = true
		return true, nil
	}

	acquired, _, err := l.repo.TryAcquire(ctx, l.lockType, l.lockKey, l.ttl, l.ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	l.acquired = acquired
	return acquired, nil
}

// Release releases the lock if held.
func (l *DistributedLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.acquired {
		return nil
	}

	if l.repo != nil {
		if err := l.repo.Release(ctx, l.lockType, l.lockKey, l.ownerID); err != nil {
			return fmt.Errorf("failed to release lock: %w", err)
		}
	}

	l.acquired = false
	return nil
}

// IsAcquired returns whether the lock is currently held.
func (l *DistributedLock) IsAcquired() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquired
}

// TryWithLock runs fn while holding lock.
// If the lock cannot be acquired immediately, returns (false, nil).
// If fn runs, returns (true, error from fn). Release survives a cancelled ctx.
func TryWithLock(ctx context.Context, lock *DistributedLock, fn func() error) (bool, error) {
	acquired, err := lock.TryAcquire(ctx)
	if err != nil {
		return false, err
	}
	if !acquired {
		return false, nil
	}

	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("failed to release lock", "lock_type", lock.lockType, "lock_key", lock.lockKey, "error", err)
		}
	}()

	return true, fn()
}

// StartLockCleanupWorker periodically removes expired locks until ctx is done.
func StartLockCleanupWorker(ctx context.Context, repo repository.LockRepository, interval time.Duration) {
	if repo == nil {
		slog.Debug("lock cleanup worker disabled: no lock repository configured")
		return
	}

	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("lock cleanup worker started", "interval", interval)

	cleanupExpiredLocks(ctx, repo)

	for {
		select {
		case <-ctx.Done():
			slog.Info("lock cleanup worker shutting down")
			return
		case <-ticker.C:
			cleanupExpiredLocks(ctx, repo)
		}
	}
}

func cleanupExpiredLocks(ctx context.Context, repo repository.LockRepository) {
	cleaned, err := repo.CleanupExpired(ctx)
	if err != nil {
		slog.Error("failed to cleanup expired locks", "error", err)
		return
	}
	if cleaned > 0 {
		slog.Info("cleaned up expired locks", "count", cleaned)
	}
}
