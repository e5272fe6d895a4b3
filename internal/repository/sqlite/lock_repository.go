package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjmerc/reactshare/internal/repository"
)

// maxLockTTL bounds how long a crashed sweep or account deletion can keep
// others out.
const maxLockTTL = 24 * time.Hour

// LockRepository implements repository.LockRepository over the
// distributed_locks table. It serializes the inactive-account sweep and
// account deletions between processes that share one database file.
type LockRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewLockRepository creates a new SQLite lock repository.
func NewLockRepository(db *sql.DB) *LockRepository {
	return &LockRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// acquireQuery takes a free or expired lock, or extends one the caller
// already holds, in a single statement. A live lock held by someone else
// fails the upsert WHERE clause, so RETURNING yields no row. An unparsable
// expires_at counts as expired.
const acquireQuery = `
	INSERT INTO distributed_locks (lock_type, lock_key, owner_id, acquired_at, expires_at, created_at)
	VALUES (?1, ?2, ?3, ?4, ?5, ?4)
	ON CONFLICT (lock_type, lock_key) DO UPDATE SET
		acquired_at = CASE
			WHEN distributed_locks.owner_id = excluded.owner_id
				AND COALESCE(datetime(distributed_locks.expires_at), '') > datetime(excluded.acquired_at)
			THEN distributed_locks.acquired_at
			ELSE excluded.acquired_at
		END,
		owner_id = excluded.owner_id,
		expires_at = excluded.expires_at,
		updated_at = excluded.acquired_at
	WHERE distributed_locks.owner_id = excluded.owner_id
		OR COALESCE(datetime(distributed_locks.expires_at), '') <= datetime(excluded.acquired_at)
	RETURNING acquired_at
`

// TryAcquire takes the lock for ttl (capped at 24h). The holder calling
// again refreshes the expiry and keeps its original acquired_at.
func (r *LockRepository) TryAcquire(ctx context.Context, lockType repository.LockType, lockKey string, ttl time.Duration, ownerID string) (bool, *repository.LockInfo, error) {
	if err := validateLockArgs(lockType, lockKey, ownerID); err != nil {
		return false, nil, err
	}
	if ttl <= 0 {
		return false, nil, fmt.Errorf("ttl must be positive")
	}
	ttl = min(ttl, maxLockTTL)

	now := r.now()
	expiresAt := now.Add(ttl)

	var acquiredAtStr string
	err := r.db.QueryRowContext(ctx, acquireQuery,
		string(lockType), lockKey, ownerID, formatTime(now), formatTime(expiresAt),
	).Scan(&acquiredAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil, nil
	}
	if err != nil {
		if isSQLiteBusyError(err) {
			// Another process is writing the same row; treat as contended
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("failed to acquire %s lock: %w", lockType, err)
	}

	acquiredAt, err := parseTime(acquiredAtStr)
	if err != nil {
		acquiredAt = now
	}

	return true, &repository.LockInfo{
		Key:        lockKey,
		Type:       lockType,
		OwnerID:    ownerID,
		AcquiredAt: acquiredAt,
		ExpiresAt:  expiresAt,
	}, nil
}

// Release drops the lock if ownerID holds it. Releasing someone else's lock,
// or one that is gone, is a no-op.
func (r *LockRepository) Release(ctx context.Context, lockType repository.LockType, lockKey string, ownerID string) error {
	if err := validateLockArgs(lockType, lockKey, ownerID); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx,
		`DELETE FROM distributed_locks WHERE lock_type = ? AND lock_key = ? AND owner_id = ?`,
		string(lockType), lockKey, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to release %s lock: %w", lockType, err)
	}
	return nil
}

// IsHeld reports the owner of an unexpired lock.
func (r *LockRepository) IsHeld(ctx context.Context, lockType repository.LockType, lockKey string) (bool, string, error) {
	if err := repository.ValidateLock(lockType, lockKey); err != nil {
		return false, "", err
	}

	var ownerID string
	err := r.db.QueryRowContext(ctx, `
		SELECT owner_id FROM distributed_locks
		WHERE lock_type = ? AND lock_key = ? AND datetime(expires_at) > datetime(?)
	`, string(lockType), lockKey, formatTime(r.now())).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("failed to check %s lock: %w", lockType, err)
	}
	return true, ownerID, nil
}

// CleanupExpired deletes locks left behind by holders that never released them.
func (r *LockRepository) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM distributed_locks WHERE COALESCE(datetime(expires_at), '') <= datetime(?)`,
		formatTime(r.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired locks: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return removed, nil
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

var _ repository.LockRepository = (*LockRepository)(nil)
