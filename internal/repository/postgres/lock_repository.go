package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fjmerc/reactshare/internal/repository"
)

// LockRepository implements repository.LockRepository for PostgreSQL.
//
// Ownership lives in the distributed_locks table so a lock can outlive the
// connection that took it and expire by TTL. A transaction-scoped advisory
// lock on the (type, key) pair serializes concurrent acquirers, which makes
// the check-then-insert race free across application instances.
type LockRepository struct {
	pool *Pool
}

// NewLockRepository creates a new PostgreSQL lock repository.
func NewLockRepository(pool *Pool) *LockRepository {
	return &LockRepository{pool: pool}
}

// lockKeyToInt32Pair converts a lock type and key to a pair of int32 values for advisory locks.
// PostgreSQL advisory locks support pg_advisory_xact_lock(int, int) which gives 64 bits of key space.
func lockKeyToInt32Pair(lockType repository.LockType, lockKey string) (int32, int32) {
	h := sha256.Sum256([]byte(string(lockType) + ":" + lockKey))
	id1 := int32(binary.BigEndian.Uint32(h[0:4]))
	id2 := int32(binary.BigEndian.Uint32(h[4:8]))
	return id1, id2
}

func validateLockArgs(lockType repository.LockType, lockKey, ownerID string) error {
	if err := repository.ValidateLock(lockType, lockKey); err != nil {
		return err
	}
	if ownerID == "" {
		return fmt.Errorf("owner_id cannot be empty")
	}
	return nil
}

// TryAcquire attempts to acquire a lock without blocking.
func (r *LockRepository) TryAcquire(ctx context.Context, lockType repository.LockType, lockKey string, ttl time.Duration, ownerID string) (bool, *repository.LockInfo, error) {
	if err := validateLockArgs(lockType, lockKey, ownerID); err != nil {
		return false, nil, err
	}
	if ttl <= 0 {
		return false, nil, fmt.Errorf("ttl must be positive")
	}
	if ttl > 24*time.Hour {
		ttl = 24 * time.Hour
	}

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	id1, id2 := lockKeyToInt32Pair(lockType, lockKey)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	var gotAdvisory bool
	if err := tx.QueryRow(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", id1, id2).Scan(&gotAdvisory); err != nil {
		return false, nil, fmt.Errorf("failed to try advisory lock: %w", err)
	}
	if !gotAdvisory {
		// Another instance is acquiring the same key right now
		return false, nil, nil
	}

	var existingOwner string
	var existingAcquiredAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT owner_id, acquired_at
		FROM distributed_locks
		WHERE lock_type = $1 AND lock_key = $2 AND expires_at > $3
	`, string(lockType), lockKey, now).Scan(&existingOwner, &existingAcquiredAt)

	acquiredAt := now
	switch {
	case err == nil && existingOwner != ownerID:
		return false, nil, nil
	case err == nil:
		// Re-acquire by the owner extends the TTL
		acquiredAt = existingAcquiredAt.UTC()
	case !errors.Is(err, pgx.ErrNoRows):
		return false, nil, fmt.Errorf("failed to check existing lock: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO distributed_locks (lock_type, lock_key, owner_id, acquired_at, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (lock_type, lock_key) DO UPDATE
		SET owner_id = EXCLUDED.owner_id,
		    acquired_at = EXCLUDED.acquired_at,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = $6
	`, string(lockType), lockKey, ownerID, acquiredAt, expiresAt, now)
	if err != nil {
		return false, nil, fmt.Errorf("failed to write lock: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, &repository.LockInfo{
		Key:        lockKey,
		Type:       lockType,
		OwnerID:    ownerID,
		AcquiredAt: acquiredAt,
		ExpiresAt:  expiresAt,
	}, nil
}

// Release releases a held lock.
func (r *LockRepository) Release(ctx context.Context, lockType repository.LockType, lockKey string, ownerID string) error {
	if err := validateLockArgs(lockType, lockKey, ownerID); err != nil {
		return err
	}

	_, err := r.pool.Exec(ctx, `
		DELETE FROM distributed_locks
		WHERE lock_type = $1 AND lock_key = $2 AND owner_id = $3
	`, string(lockType), lockKey, ownerID)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// IsHeld checks if a lock is currently held.
func (r *LockRepository) IsHeld(ctx context.Context, lockType repository.LockType, lockKey string) (bool, string, error) {
	if err := repository.ValidateLock(lockType, lockKey); err != nil {
		return false, "", err
	}

	var ownerID string
	err := r.pool.QueryRow(ctx, `
		SELECT owner_id
		FROM distributed_locks
		WHERE lock_type = $1 AND lock_key = $2
		AND expires_at > NOW()
	`, string(lockType), lockKey).Scan(&ownerID)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("failed to check lock: %w", err)
	}

	return true, ownerID, nil
}

// CleanupExpired removes expired locks from the database.
func (r *LockRepository) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM distributed_locks WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired locks: %w", err)
	}
	return result.RowsAffected(), nil
}

var _ repository.LockRepository = (*LockRepository)(nil)
