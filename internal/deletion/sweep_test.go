package deletion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjmerc/reactshare/internal/repository"
	"github.com/fjmerc/reactshare/internal/testutil"
	"github.com/fjmerc/reactshare/internal/utils"
)

const threshold = 90 * 24 * time.Hour

func TestSweepInactiveAccounts(t *testing.T) {
	db, repos, store := setup(t)
	now := time.Now().UTC()
	engine := NewEngine(repos, store, WithClock(func() time.Time { return now }))

	old := now.Add(-400 * 24 * time.Hour)
	neverLoggedIn := testutil.InsertAccount(t, db, testutil.AccountFixture{CreatedAt: old, PictureKey: "image/a.png"})
	staleLogin := testutil.InsertAccount(t, db, testutil.AccountFixture{CreatedAt: old, LastLogin: testutil.TimePtr(now.Add(-100 * 24 * time.Hour))})
	active := testutil.InsertAccount(t, db, testutil.AccountFixture{CreatedAt: old, LastLogin: testutil.TimePtr(now.Add(-time.Hour))})
	fresh := testutil.InsertAccount(t, db, testutil.AccountFixture{CreatedAt: now.Add(-time.Hour)})
	admin := testutil.InsertAccount(t, db, testutil.AccountFixture{CreatedAt: old, Role: "admin"})

	item := testutil.InsertContent(t, db, staleLogin, nil, "image/item.jpg")
	testutil.InsertReaction(t, db, item, "video/r.mp4")

	outcomes, err := engine.SweepInactiveAccounts(context.Background(), threshold)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, SweepOutcome{AccountID: neverLoggedIn}, outcomes[0])
	assert.Equal(t, SweepOutcome{AccountID: staleLogin}, outcomes[1])

	for _, id := range []int64{neverLoggedIn, staleLogin} {
		assert.Equal(t, 0, testutil.CountRows(t, db, "accounts", "id = ?", id))
	}
	for _, id := range []int64{active, fresh, admin} {
		assert.Equal(t, 1, testutil.CountRows(t, db, "accounts", "id = ?", id))
	}
	assert.Equal(t, 0, testutil.CountRows(t, db, "reactions", "content_id = ?", item))
	assert.ElementsMatch(t, []string{"image/a.png", "image/item.jpg", "video/r.mp4"}, store.DeletedKeys())

	// Nothing left to sweep
	outcomes, err = engine.SweepInactiveAccounts(context.Background(), threshold)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestSweepInactiveAccounts_CapturesPerAccountFailure(t *testing.T) {
	db, repos, store := setup(t)
	old := time.Now().UTC().Add(-400 * 24 * time.Hour)
	first := testutil.InsertAccount(t, db, testutil.AccountFixture{CreatedAt: old})
	broken := testutil.InsertAccount(t, db, testutil.AccountFixture{CreatedAt: old})
	last := testutil.InsertAccount(t, db, testutil.AccountFixture{CreatedAt: old})

	dbErr := errors.New("constraint failed")
	wrapped := *repos
	wrapped.Deletion = &failingDeletion{DeletionRepository: repos.Deletion, fail: map[int64]error{broken: dbErr}}
	engine := NewEngine(&wrapped, store)

	outcomes, err := engine.SweepInactiveAccounts(context.Background(), threshold)
	require.NoError(t, err, "per-account failures are not sweep failures")
	require.Len(t, outcomes, 3)

	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, broken, outcomes[1].AccountID)
	assert.ErrorIs(t, outcomes[1].Err, dbErr)
	assert.NoError(t, outcomes[2].Err)

	assert.Equal(t, 0, testutil.CountRows(t, db, "accounts", "id IN (?, ?)", first, last))
	assert.Equal(t, 1, testutil.CountRows(t, db, "accounts", "id = ?", broken))
}

func TestSweepInactiveAccounts_LockHeldElsewhere(t *testing.T) {
	db, repos, store := setup(t)
	engine := NewEngine(repos, store)
	ctx := context.Background()

	stale := testutil.InsertAccount(t, db, testutil.AccountFixture{CreatedAt: time.Now().UTC().Add(-400 * 24 * time.Hour)})

	other := utils.NewDistributedLockWithOwner(repos.Locks, repository.LockTypeInactiveSweep, SweepLockKey, time.Minute, "other-node")
	acquired, err := other.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	outcomes, err := engine.SweepInactiveAccounts(ctx, threshold)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Equal(t, 1, testutil.CountRows(t, db, "accounts", "id = ?", stale))

	require.NoError(t, other.Release(ctx))
	outcomes, err = engine.SweepInactiveAccounts(ctx, threshold)
	require.NoError(t, err)
	assert.Len(t, outcomes, 1)
}

func TestSweepInactiveAccounts_ReleasesLock(t *testing.T) {
	_, repos, store := setup(t)
	engine := NewEngine(repos, store)
	ctx := context.Background()

	_, err := engine.SweepInactiveAccounts(ctx, threshold)
	require.NoError(t, err)

	held, _, err := repos.Locks.IsHeld(ctx, repository.LockTypeInactiveSweep, SweepLockKey)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestStartSweepWorker_StopsOnCancel(t *testing.T) {
	db, repos, store := setup(t)
	engine := NewEngine(repos, store)
	stale := testutil.InsertAccount(t, db, testutil.AccountFixture{CreatedAt: time.Now().UTC().Add(-400 * 24 * time.Hour)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		StartSweepWorker(ctx, engine, 10*time.Millisecond, threshold)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return testutil.CountRows(t, db, "accounts", "id = ?", stale) == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep worker did not stop")
	}
}
