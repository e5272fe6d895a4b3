package sqlite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fjmerc/reactshare/internal/repository"
	"github.com/fjmerc/reactshare/internal/testutil"
)

func insertLockRow(t *testing.T, repo *LockRepository, lockType repository.LockType, key, owner, expiresAt string) {
	t.Helper()

	acquired := time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC3339)
	_, err := repo.db.Exec(`
		INSERT INTO distributed_locks (lock_type, lock_key, owner_id, acquired_at, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(lockType), key, owner, acquired, expiresAt, acquired)
	if err != nil {
		t.Fatalf("failed to insert lock row: %v", err)
	}
}

func expiredAt() string {
	return time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
}

func TestLockRepository_TryAcquire(t *testing.T) {
	repo := NewLockRepository(testutil.SetupTestDB(t))
	ctx := context.Background()

	acquired, lockInfo, err := repo.TryAcquire(ctx, repository.LockTypeInactiveSweep, repository.InactiveSweepLockKey, 5*time.Minute, "owner-1")
	if err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}
	if !acquired {
		t.Fatal("expected lock to be acquired")
	}
	if lockInfo.Key != repository.InactiveSweepLockKey || lockInfo.Type != repository.LockTypeInactiveSweep || lockInfo.OwnerID != "owner-1" {
		t.Errorf("unexpected lock info: %+v", lockInfo)
	}

	// Same owner refreshes
	acquired, _, err = repo.TryAcquire(ctx, repository.LockTypeInactiveSweep, repository.InactiveSweepLockKey, 10*time.Minute, "owner-1")
	if err != nil {
		t.Fatalf("TryAcquire (same owner) failed: %v", err)
	}
	if !acquired {
		t.Error("expected same owner to re-acquire lock")
	}

	acquired, _, err = repo.TryAcquire(ctx, repository.LockTypeInactiveSweep, repository.InactiveSweepLockKey, 5*time.Minute, "owner-2")
	if err != nil {
		t.Fatalf("TryAcquire (different owner) failed: %v", err)
	}
	if acquired {
		t.Error("expected different owner to fail acquiring lock")
	}
}

func TestLockRepository_TryAcquire_ExpiredLock(t *testing.T) {
	repo := NewLockRepository(testutil.SetupTestDB(t))
	insertLockRow(t, repo, repository.LockTypeInactiveSweep, repository.InactiveSweepLockKey, "crashed-owner", expiredAt())

	acquired, lockInfo, err := repo.TryAcquire(context.Background(), repository.LockTypeInactiveSweep, repository.InactiveSweepLockKey, 5*time.Minute, "new-owner")
	if err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}
	if !acquired {
		t.Fatal("expected to acquire expired lock")
	}
	if lockInfo.OwnerID != "new-owner" {
		t.Errorf("expected owner 'new-owner', got '%s'", lockInfo.OwnerID)
	}
}

func TestLockRepository_Release(t *testing.T) {
	repo := NewLockRepository(testutil.SetupTestDB(t))
	ctx := context.Background()

	acquired, _, err := repo.TryAcquire(ctx, repository.LockTypeAccountDeletion, "42", 5*time.Minute, "owner-1")
	if err != nil || !acquired {
		t.Fatalf("failed to acquire lock: %v", err)
	}

	// Wrong owner is a no-op
	if err := repo.Release(ctx, repository.LockTypeAccountDeletion, "42", "wrong-owner"); err != nil {
		t.Fatalf("Release with wrong owner should not error: %v", err)
	}
	isHeld, ownerID, err := repo.IsHeld(ctx, repository.LockTypeAccountDeletion, "42")
	if err != nil {
		t.Fatalf("IsHeld failed: %v", err)
	}
	if !isHeld || ownerID != "owner-1" {
		t.Errorf("IsHeld = (%v, %q), want (true, owner-1)", isHeld, ownerID)
	}

	if err := repo.Release(ctx, repository.LockTypeAccountDeletion, "42", "owner-1"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	isHeld, _, err = repo.IsHeld(ctx, repository.LockTypeAccountDeletion, "42")
	if err != nil {
		t.Fatalf("IsHeld failed: %v", err)
	}
	if isHeld {
		t.Error("expected lock to be released")
	}

	acquired, _, err = repo.TryAcquire(ctx, repository.LockTypeAccountDeletion, "42", 5*time.Minute, "owner-2")
	if err != nil {
		t.Fatalf("TryAcquire after release failed: %v", err)
	}
	if !acquired {
		t.Error("expected to acquire released lock")
	}
}

func TestLockRepository_CleanupExpired(t *testing.T) {
	repo := NewLockRepository(testutil.SetupTestDB(t))
	ctx := context.Background()

	for _, key := range []string{"1", "2", "3"} {
		insertLockRow(t, repo, repository.LockTypeAccountDeletion, key, "owner", expiredAt())
	}
	if _, _, err := repo.TryAcquire(ctx, repository.LockTypeAccountDeletion, "7", 5*time.Minute, "owner"); err != nil {
		t.Fatalf("failed to acquire valid lock: %v", err)
	}

	cleaned, err := repo.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}
	if cleaned != 3 {
		t.Errorf("expected 3 locks cleaned up, got %d", cleaned)
	}

	isHeld, _, err := repo.IsHeld(ctx, repository.LockTypeAccountDeletion, "7")
	if err != nil {
		t.Fatalf("IsHeld failed: %v", err)
	}
	if !isHeld {
		t.Error("expected valid lock to still be held")
	}
}

func TestLockRepository_ValidationErrors(t *testing.T) {
	repo := NewLockRepository(testutil.SetupTestDB(t))
	ctx := context.Background()

	tests := []struct {
		name     string
		lockType repository.LockType
		key      string
		ttl      time.Duration
		owner    string
		wantErr  error
	}{
		{"invalid type", "chunk_assembly", "key", time.Minute, "owner", nil},
		{"empty key", repository.LockTypeInactiveSweep, "", time.Minute, "owner", repository.ErrInvalidLockKey},
		{"long key", repository.LockTypeInactiveSweep, strings.Repeat("k", 256), time.Minute, "owner", repository.ErrInvalidLockKey},
		{"foreign sweep key", repository.LockTypeInactiveSweep, "global", time.Minute, "owner", repository.ErrInvalidLockKey},
		{"non-numeric account key", repository.LockTypeAccountDeletion, "alice", time.Minute, "owner", repository.ErrInvalidLockKey},
		{"zero-padded account key", repository.LockTypeAccountDeletion, "007", time.Minute, "owner", repository.ErrInvalidLockKey},
		{"non-positive account key", repository.LockTypeAccountDeletion, "0", time.Minute, "owner", repository.ErrInvalidLockKey},
		{"empty owner", repository.LockTypeInactiveSweep, repository.InactiveSweepLockKey, time.Minute, "", nil},
		{"zero ttl", repository.LockTypeInactiveSweep, repository.InactiveSweepLockKey, 0, "owner", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := repo.TryAcquire(ctx, tt.lockType, tt.key, tt.ttl, tt.owner)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLockRepository_RefreshKeepsAcquiredAt(t *testing.T) {
	repo := NewLockRepository(testutil.SetupTestDB(t))
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return start }
	if acquired, _, err := repo.TryAcquire(ctx, repository.LockTypeAccountDeletion, "9", time.Minute, "owner-1"); err != nil || !acquired {
		t.Fatalf("TryAcquire = (%v, %v), want acquired", acquired, err)
	}

	repo.now = func() time.Time { return start.Add(30 * time.Second) }
	acquired, info, err := repo.TryAcquire(ctx, repository.LockTypeAccountDeletion, "9", time.Minute, "owner-1")
	if err != nil || !acquired {
		t.Fatalf("refresh = (%v, %v), want acquired", acquired, err)
	}
	if !info.AcquiredAt.Equal(start) {
		t.Errorf("AcquiredAt = %v, want original %v", info.AcquiredAt, start)
	}
	if want := start.Add(90 * time.Second); !info.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", info.ExpiresAt, want)
	}

	// Once expired the lock passes to the next owner with a fresh acquired_at
	later := start.Add(5 * time.Minute)
	repo.now = func() time.Time { return later }
	acquired, info, err = repo.TryAcquire(ctx, repository.LockTypeAccountDeletion, "9", time.Minute, "owner-2")
	if err != nil || !acquired {
		t.Fatalf("takeover = (%v, %v), want acquired", acquired, err)
	}
	if info.OwnerID != "owner-2" || !info.AcquiredAt.Equal(later) {
		t.Errorf("takeover info = %+v, want owner-2 acquired at %v", info, later)
	}
}

func TestLockRepository_TryAcquire_UnparsableExpiry(t *testing.T) {
	repo := NewLockRepository(testutil.SetupTestDB(t))
	insertLockRow(t, repo, repository.LockTypeAccountDeletion, "5", "crashed-owner", "not-a-time")

	acquired, _, err := repo.TryAcquire(context.Background(), repository.LockTypeAccountDeletion, "5", time.Minute, "new-owner")
	if err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}
	if !acquired {
		t.Error("a lock with an unparsable expiry should be treated as expired")
	}
}
