package content

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/quota"
	"github.com/fjmerc/reactshare/internal/repository"
	"github.com/fjmerc/reactshare/internal/repository/sqlite"
	"github.com/fjmerc/reactshare/internal/storage"
	"github.com/fjmerc/reactshare/internal/storage/mock"
	"github.com/fjmerc/reactshare/internal/testutil"
)

var pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func newService(t *testing.T) (*Service, *sql.DB, *repository.Repositories, *mock.MediaStore) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos, err := sqlite.NewRepositories(db)
	require.NoError(t, err)
	store := mock.NewMediaStore()
	return NewService(repos, quota.NewManager(repos.Accounts), store), db, repos, store
}

func TestCreate(t *testing.T) {
	svc, db, repos, store := newService(t)
	ctx := context.Background()
	owner := testutil.InsertAccount(t, db, testutil.AccountFixture{MaxReactionsPerItem: testutil.IntPtr(5)})

	item, err := svc.Create(ctx, CreateInput{AccountID: owner, Title: "  my\tclip  ", Media: pngData})
	require.NoError(t, err)

	assert.NotZero(t, item.ID)
	assert.Equal(t, "my clip", item.Title)
	assert.NotEmpty(t, item.SharePath)
	assert.False(t, item.IsPasscodeProtected())
	require.NotNil(t, item.MaxReactionsAllowed)
	assert.Equal(t, 5, *item.MaxReactionsAllowed)

	require.NotNil(t, item.Media)
	assert.Equal(t, models.MediaKindImage, item.Media.Kind)
	assert.True(t, strings.HasSuffix(item.Media.Key, ".png"))
	assert.True(t, store.Has(item.Media.Key))

	usage, err := repos.Accounts.GetUsage(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.ContentCountThisMonth)

	// Changing the owner's default does not touch existing items
	_, err = quota.NewManager(repos.Accounts).UpdateLimits(ctx, owner, models.Limits{MaxReactionsPerItem: testutil.IntPtr(1)})
	require.NoError(t, err)
	stored, err := svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, *stored.MaxReactionsAllowed)
}

func TestCreate_CreatorMonthlyQuota(t *testing.T) {
	svc, db, _, store := newService(t)
	ctx := context.Background()
	owner := testutil.InsertAccount(t, db, testutil.AccountFixture{
		MaxContentPerMonth: testutil.IntPtr(2),
		LastUsageResetAt:   testutil.TimePtr(time.Now().UTC()),
	})

	for range 2 {
		_, err := svc.Create(ctx, CreateInput{AccountID: owner, Title: "post"})
		require.NoError(t, err)
	}

	_, err := svc.Create(ctx, CreateInput{AccountID: owner, Title: "one too many", Media: pngData})
	require.ErrorIs(t, err, quota.ErrQuotaExceeded)
	var exceeded *quota.ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, quota.KindCreatorMonthly, exceeded.Kind)
	assert.Zero(t, store.UploadCalls(), "rejected before upload")
	assert.Equal(t, 2, testutil.CountRows(t, db, "content_items", "account_id = ?", owner))
}

func TestCreate_ResetsLastMonthsCount(t *testing.T) {
	svc, db, _, _ := newService(t)
	owner := testutil.InsertAccount(t, db, testutil.AccountFixture{
		MaxContentPerMonth:    testutil.IntPtr(2),
		ContentCountThisMonth: 2,
		LastUsageResetAt:      testutil.TimePtr(time.Now().UTC().AddDate(0, -1, 0)),
	})

	_, err := svc.Create(context.Background(), CreateInput{AccountID: owner, Title: "new month"})
	assert.NoError(t, err)
}

func TestCreate_Errors(t *testing.T) {
	svc, db, _, store := newService(t)
	ctx := context.Background()
	owner := testutil.InsertAccount(t, db, testutil.AccountFixture{})

	_, err := svc.Create(ctx, CreateInput{AccountID: owner, Title: " \x00 "})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)

	_, err = svc.Create(ctx, CreateInput{AccountID: 9999, Title: "ghost"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	store.UploadError = errors.New("bucket unavailable")
	_, err = svc.Create(ctx, CreateInput{AccountID: owner, Title: "with media", Media: pngData})
	assert.ErrorIs(t, err, storage.ErrUploadFailed)
	assert.Equal(t, 0, testutil.CountRows(t, db, "content_items", "account_id = ?", owner))
}

func TestGetShared(t *testing.T) {
	svc, db, _, _ := newService(t)
	ctx := context.Background()
	owner := testutil.InsertAccount(t, db, testutil.AccountFixture{})

	open, err := svc.Create(ctx, CreateInput{AccountID: owner, Title: "open"})
	require.NoError(t, err)
	locked, err := svc.Create(ctx, CreateInput{AccountID: owner, Title: "locked", Passcode: "hunter2"})
	require.NoError(t, err)
	assert.True(t, locked.IsPasscodeProtected())
	assert.NotEqual(t, "hunter2", locked.PasscodeHash)

	got, err := svc.GetShared(ctx, open.SharePath, "")
	require.NoError(t, err)
	assert.Equal(t, open.ID, got.ID)

	got, err = svc.GetShared(ctx, locked.SharePath, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, locked.ID, got.ID)

	_, err = svc.GetShared(ctx, locked.SharePath, "wrong")
	assert.ErrorIs(t, err, ErrInvalidPasscode)
	_, err = svc.GetShared(ctx, locked.SharePath, "")
	assert.ErrorIs(t, err, ErrInvalidPasscode)

	_, err = svc.GetShared(ctx, "no-such-path", "")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListAndReactions(t *testing.T) {
	svc, db, _, _ := newService(t)
	ctx := context.Background()
	owner := testutil.InsertAccount(t, db, testutil.AccountFixture{})

	var last *models.ContentItem
	for range 3 {
		item, err := svc.Create(ctx, CreateInput{AccountID: owner, Title: "post"})
		require.NoError(t, err)
		last = item
	}
	testutil.InsertReaction(t, db, last.ID, "video/a.mp4")
	testutil.InsertReaction(t, db, last.ID, "video/b.mp4")

	items, total, err := svc.List(ctx, owner, repository.PaginationOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, items, 2)

	reactions, err := svc.ListReactions(ctx, last.ID)
	require.NoError(t, err)
	assert.Len(t, reactions, 2)

	_, err = svc.ListReactions(ctx, 9999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSharePathNotLogged(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	svc, db, _, _ := newService(t)
	ctx := context.Background()
	owner := testutil.InsertAccount(t, db, testutil.AccountFixture{})

	item, err := svc.Create(ctx, CreateInput{AccountID: owner, Title: "secret link", Passcode: "hunter2"})
	require.NoError(t, err)
	_, err = svc.GetShared(ctx, item.SharePath, "wrong")
	require.ErrorIs(t, err, ErrInvalidPasscode)

	require.NotEmpty(t, logs.String())
	assert.NotContains(t, logs.String(), item.SharePath)
	assert.Contains(t, logs.String(), item.SharePath[:3]+"...")
}
