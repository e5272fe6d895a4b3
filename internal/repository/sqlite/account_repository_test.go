package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/repository"
	"github.com/fjmerc/reactshare/internal/testutil"
)

func TestAccountRepository_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	account := &models.Account{
		Username: "alice",
		Email:    "alice@example.com",
		Usage: models.Usage{
			MaxContentPerMonth:  models.IntPtr(5),
			MaxReactionsPerItem: models.IntPtr(2),
		},
	}
	if err := repo.Create(ctx, account); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if account.ID == 0 {
		t.Fatal("expected ID to be set")
	}

	got, err := repo.GetByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Username != "alice" || got.Role != models.RoleUser {
		t.Errorf("unexpected account: %+v", got)
	}
	if got.Usage.MaxContentPerMonth == nil || *got.Usage.MaxContentPerMonth != 5 {
		t.Errorf("MaxContentPerMonth = %v, want 5", got.Usage.MaxContentPerMonth)
	}
	if got.Usage.MaxReactionsReceivedPerMonth != nil {
		t.Errorf("MaxReactionsReceivedPerMonth = %v, want nil", *got.Usage.MaxReactionsReceivedPerMonth)
	}
	if got.Usage.LastUsageResetAt != nil {
		t.Error("new account should never have been reset")
	}

	if err := repo.Create(ctx, &models.Account{Username: "alice", Email: "other@example.com"}); !errors.Is(err, repository.ErrDuplicateKey) {
		t.Errorf("duplicate username: got %v, want ErrDuplicateKey", err)
	}
	if err := repo.Create(ctx, &models.Account{Username: "bob"}); !errors.Is(err, repository.ErrInvalidInput) {
		t.Errorf("missing email: got %v, want ErrInvalidInput", err)
	}
	if _, err := repo.GetByID(ctx, 9999); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetByID missing: got %v, want ErrNotFound", err)
	}
}

func TestAccountRepository_ResetUsageIfStale(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		lastReset *time.Time
		wantReset bool
	}{
		{"never reset", nil, true},
		{"previous month", testutil.TimePtr(time.Date(2024, 4, 30, 23, 59, 59, 0, time.UTC)), true},
		{"previous year same month", testutil.TimePtr(time.Date(2023, 5, 20, 0, 0, 0, 0, time.UTC)), true},
		{"start of current month", testutil.TimePtr(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)), false},
		{"earlier today", testutil.TimePtr(time.Date(2024, 5, 10, 1, 0, 0, 0, time.UTC)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := testutil.InsertAccount(t, db, testutil.AccountFixture{
				ContentCountThisMonth:      3,
				ReactionsReceivedThisMonth: 7,
				LastUsageResetAt:           tt.lastReset,
			})

			usage, reset, err := repo.ResetUsageIfStale(ctx, id, now)
			if err != nil {
				t.Fatalf("ResetUsageIfStale failed: %v", err)
			}
			if reset != tt.wantReset {
				t.Errorf("reset = %v, want %v", reset, tt.wantReset)
			}

			if tt.wantReset {
				if usage.ContentCountThisMonth != 0 || usage.ReactionsReceivedThisMonth != 0 {
					t.Errorf("counters not zeroed: %+v", usage)
				}
				if usage.LastUsageResetAt == nil || !usage.LastUsageResetAt.Equal(now) {
					t.Errorf("LastUsageResetAt = %v, want %v", usage.LastUsageResetAt, now)
				}
			} else if usage.ContentCountThisMonth != 3 || usage.ReactionsReceivedThisMonth != 7 {
				t.Errorf("counters changed: %+v", usage)
			}

			// A second call inside the same month never resets again
			_, reset, err = repo.ResetUsageIfStale(ctx, id, now.Add(time.Hour))
			if err != nil {
				t.Fatalf("second ResetUsageIfStale failed: %v", err)
			}
			if reset {
				t.Error("second call reset again")
			}
		})
	}

	if _, _, err := repo.ResetUsageIfStale(ctx, 9999, now); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("missing account: got %v, want ErrNotFound", err)
	}
}

func TestAccountRepository_ResetPreservesIncrementsAfterReset(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	id := testutil.InsertAccount(t, db, testutil.AccountFixture{ContentCountThisMonth: 9})
	now := time.Now().UTC()

	if _, reset, err := repo.ResetUsageIfStale(ctx, id, now); err != nil || !reset {
		t.Fatalf("first reset: reset=%v err=%v", reset, err)
	}
	if err := repo.IncrementContentCount(ctx, id); err != nil {
		t.Fatalf("IncrementContentCount failed: %v", err)
	}
	if _, _, err := repo.ResetUsageIfStale(ctx, id, now); err != nil {
		t.Fatalf("second reset: %v", err)
	}

	usage, err := repo.GetUsage(ctx, id)
	if err != nil {
		t.Fatalf("GetUsage failed: %v", err)
	}
	if usage.ContentCountThisMonth != 1 {
		t.Errorf("ContentCountThisMonth = %d, want 1", usage.ContentCountThisMonth)
	}
}

func TestAccountRepository_Increments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	id := testutil.InsertAccount(t, db, testutil.AccountFixture{})

	for i := 0; i < 3; i++ {
		if err := repo.IncrementContentCount(ctx, id); err != nil {
			t.Fatalf("IncrementContentCount failed: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := repo.IncrementReactionsReceived(ctx, id); err != nil {
			t.Fatalf("IncrementReactionsReceived failed: %v", err)
		}
	}

	usage, err := repo.GetUsage(ctx, id)
	if err != nil {
		t.Fatalf("GetUsage failed: %v", err)
	}
	if usage.ContentCountThisMonth != 3 {
		t.Errorf("ContentCountThisMonth = %d, want 3", usage.ContentCountThisMonth)
	}
	if usage.ReactionsReceivedThisMonth != 2 {
		t.Errorf("ReactionsReceivedThisMonth = %d, want 2", usage.ReactionsReceivedThisMonth)
	}

	if err := repo.IncrementContentCount(ctx, 9999); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("missing account: got %v, want ErrNotFound", err)
	}
}

func TestAccountRepository_UpdateLimits(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	id := testutil.InsertAccount(t, db, testutil.AccountFixture{MaxContentPerMonth: testutil.IntPtr(1)})

	limits := models.Limits{
		MaxReactionsReceivedPerMonth: models.IntPtr(10),
		MaxReactionsPerItem:          models.IntPtr(3),
	}
	if err := repo.UpdateLimits(ctx, id, limits); err != nil {
		t.Fatalf("UpdateLimits failed: %v", err)
	}

	usage, err := repo.GetUsage(ctx, id)
	if err != nil {
		t.Fatalf("GetUsage failed: %v", err)
	}
	if usage.MaxContentPerMonth != nil {
		t.Errorf("MaxContentPerMonth = %d, want unlimited", *usage.MaxContentPerMonth)
	}
	if usage.MaxReactionsPerItem == nil || *usage.MaxReactionsPerItem != 3 {
		t.Errorf("MaxReactionsPerItem = %v, want 3", usage.MaxReactionsPerItem)
	}

	if err := repo.UpdateLimits(ctx, 9999, limits); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("missing account: got %v, want ErrNotFound", err)
	}
}

func TestAccountRepository_SetPicture(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	id := testutil.InsertAccount(t, db, testutil.AccountFixture{PictureKey: "old.jpg"})

	old, err := repo.SetPicture(ctx, id, &models.MediaReference{Key: "new.png", Kind: models.MediaKindImage})
	if err != nil {
		t.Fatalf("SetPicture failed: %v", err)
	}
	if old == nil || old.Key != "old.jpg" {
		t.Errorf("old picture = %+v, want old.jpg", old)
	}

	old, err = repo.SetPicture(ctx, id, nil)
	if err != nil {
		t.Fatalf("SetPicture(nil) failed: %v", err)
	}
	if old.KeyOrEmpty() != "new.png" {
		t.Errorf("old picture = %q, want new.png", old.KeyOrEmpty())
	}

	account, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if account.Picture != nil {
		t.Errorf("picture = %+v, want nil", account.Picture)
	}
}

func TestAccountRepository_ListInactive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	cutoff := now.Add(-365 * 24 * time.Hour)
	old := now.Add(-400 * 24 * time.Hour)

	staleNeverLoggedIn := testutil.InsertAccount(t, db, testutil.AccountFixture{CreatedAt: old})
	staleLogin := testutil.InsertAccount(t, db, testutil.AccountFixture{CreatedAt: old, LastLogin: testutil.TimePtr(old)})
	testutil.InsertAccount(t, db, testutil.AccountFixture{CreatedAt: old, LastLogin: testutil.TimePtr(now)})
	testutil.InsertAccount(t, db, testutil.AccountFixture{CreatedAt: now})
	testutil.InsertAccount(t, db, testutil.AccountFixture{CreatedAt: old, Role: "admin"})

	ids, err := repo.ListInactive(ctx, cutoff)
	if err != nil {
		t.Fatalf("ListInactive failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != staleNeverLoggedIn || ids[1] != staleLogin {
		t.Errorf("ListInactive = %v, want [%d %d]", ids, staleNeverLoggedIn, staleLogin)
	}
}

func TestAccountRepository_SetBlockedAndLastLogin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	id := testutil.InsertAccount(t, db, testutil.AccountFixture{})
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := repo.SetBlocked(ctx, id, true); err != nil {
		t.Fatalf("SetBlocked failed: %v", err)
	}
	if err := repo.UpdateLastLogin(ctx, id, at); err != nil {
		t.Fatalf("UpdateLastLogin failed: %v", err)
	}

	account, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !account.IsBlocked {
		t.Error("expected account to be blocked")
	}
	if account.LastLogin == nil || !account.LastLogin.Equal(at) {
		t.Errorf("LastLogin = %v, want %v", account.LastLogin, at)
	}
}
