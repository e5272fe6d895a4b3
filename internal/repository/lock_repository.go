package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Common lock errors.
var (
	// ErrLockNotAcquired indicates the lock could not be acquired (already held).
	ErrLockNotAcquired = errors.New("lock not acquired")

	// ErrInvalidLockKey indicates the lock key is invalid (empty or too long).
	ErrInvalidLockKey = errors.New("invalid lock key")
)

// LockType represents the type of distributed lock.
type LockType string

// Lock types for different operations.
const (
	// LockTypeInactiveSweep guards the scheduled inactive-account purge.
	LockTypeInactiveSweep LockType = "inactive_sweep"

	// LockTypeAccountDeletion is held while a single account graph is deleted.
	LockTypeAccountDeletion LockType = "account_deletion"
)

// LockInfo describes an acquired lock.
type LockInfo struct {
	Key        string    `json:"key"`
	Type       LockType  `json:"type"`
	OwnerID    string    `json:"owner_id"` // hostname:pid:nonce
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// LockRepository defines the interface for cross-process locks held in the store.
// Locks expire after their TTL so a crashed holder cannot block work forever.
type LockRepository interface {
	// TryAcquire attempts to acquire a lock without blocking.
	// Returns (true, info, nil) if acquired, (false, nil, nil) if another owner holds it.
	// Re-acquiring a lock the caller already owns extends its TTL.
	TryAcquire(ctx context.Context, lockType LockType, lockKey string, ttl time.Duration, ownerID string) (bool, *LockInfo, error)

	// Release releases a lock held by ownerID.
	// Releasing a lock that is not held is not an error.
	Release(ctx context.Context, lockType LockType, lockKey string, ownerID string) error

	// IsHeld reports whether an unexpired lock exists and who owns it.
	IsHeld(ctx context.Context, lockType LockType, lockKey string) (bool, string, error)

	// CleanupExpired removes expired locks and returns how many were removed.
	CleanupExpired(ctx context.Context) (int64, error)
}

// InactiveSweepLockKey is the only key taken under LockTypeInactiveSweep;
// one sweep runs at a time across every node sharing the database.
const InactiveSweepLockKey = "inactive-accounts"

// AccountLockKey returns the LockTypeAccountDeletion key for an account.
func AccountLockKey(accountID int64) string {
	return strconv.FormatInt(accountID, 10)
}

// ValidLockTypes is a set of valid lock types for validation.
var ValidLockTypes = map[LockType]bool{
	LockTypeInactiveSweep:   true,
	LockTypeAccountDeletion: true,
}

// ValidateLockType validates that the lock type is valid.
func ValidateLockType(lockType LockType) error {
	if !ValidLockTypes[lockType] {
		return fmt.Errorf("invalid lock type %q", lockType)
	}
	return nil
}

// ValidateLockKey validates that the lock key is valid.
func ValidateLockKey(key string) error {
	if key == "" || len(key) > 255 {
		return ErrInvalidLockKey
	}
	return nil
}

// ValidateLock checks the key has the shape its lock type expects: the sweep
// lock has a single fixed key, account deletion locks are keyed by account ID.
func ValidateLock(lockType LockType, key string) error {
	if err := ValidateLockType(lockType); err != nil {
		return err
	}
	if err := ValidateLockKey(key); err != nil {
		return err
	}

	switch lockType {
	case LockTypeInactiveSweep:
		if key != InactiveSweepLockKey {
			return fmt.Errorf("%w: sweep lock key must be %q", ErrInvalidLockKey, InactiveSweepLockKey)
		}
	case LockTypeAccountDeletion:
		if id, err := strconv.ParseInt(key, 10, 64); err != nil || id <= 0 || AccountLockKey(id) != key {
			return fmt.Errorf("%w: account deletion lock key must be an account ID", ErrInvalidLockKey)
		}
	}
	return nil
}
