// Package deletion removes content graphs and accounts, then purges the media
// they referenced from the media store.
//
// The database phase is all-or-nothing. The media phase runs after commit, is
// attempted once per object, and only logs failures: an orphaned object is
// preferable to a row pointing at missing media.
package deletion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fjmerc/reactshare/internal/metrics"
	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/repository"
	"github.com/fjmerc/reactshare/internal/storage"
	"github.com/fjmerc/reactshare/internal/utils"
)

// DefaultPurgeConcurrency bounds concurrent media store calls during a purge.
const DefaultPurgeConcurrency = 4

// Engine performs cascading deletions.
type Engine struct {
	accounts    repository.AccountRepository
	deletion    repository.DeletionRepository
	locks       repository.LockRepository
	store       storage.MediaStore
	concurrency int
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithPurgeConcurrency sets how many media store calls a purge runs at once.
func WithPurgeConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithClock overrides the time source used to compute sweep cutoffs.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a deletion engine. repos.Locks may be nil for a
// single-process deployment.
func NewEngine(repos *repository.Repositories, store storage.MediaStore, opts ...Option) *Engine {
	e := &Engine{
		accounts:    repos.Accounts,
		deletion:    repos.Deletion,
		locks:       repos.Locks,
		store:       store,
		concurrency: DefaultPurgeConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DeleteContentItem removes an item with its reactions and replies and returns
// how many reactions plus replies were removed.
func (e *Engine) DeleteContentItem(ctx context.Context, itemID int64) (int, error) {
	start := time.Now()

	graph, err := e.deletion.DeleteContentGraph(ctx, itemID)
	if err != nil {
		metrics.DeletionsTotal.WithLabelValues("content", "failure").Inc()
		if errors.Is(err, repository.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to delete content graph: %w", err)
	}

	metrics.DeletionsTotal.WithLabelValues("content", "success").Inc()
	metrics.DeletionDuration.WithLabelValues("content").Observe(time.Since(start).Seconds())

	slog.Info("content item deleted",
		"content_id", itemID,
		"reactions", graph.Reactions,
		"replies", graph.Replies,
		"media", len(graph.Media),
	)

	e.purgeEach(context.WithoutCancel(ctx), graph.Media)
	return graph.Children(), nil
}

// DeleteAccount removes an account with everything it owns. Concurrent
// deletions of the same account are serialized through the lock repository;
// the loser gets repository.ErrLockNotAcquired.
func (e *Engine) DeleteAccount(ctx context.Context, accountID int64) error {
	lock := utils.NewDistributedLock(e.locks, repository.LockTypeAccountDeletion,
		repository.AccountLockKey(accountID), utils.AccountDeletionLockTTL)

	var graph *repository.DeletedGraph
	ran, err := utils.TryWithLock(ctx, lock, func() error {
		start := time.Now()
		g, err := e.deletion.DeleteAccountGraph(ctx, accountID)
		if err != nil {
			return err
		}
		metrics.DeletionDuration.WithLabelValues("account").Observe(time.Since(start).Seconds())
		graph = g
		return nil
	})
	if err != nil {
		metrics.DeletionsTotal.WithLabelValues("account", "failure").Inc()
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete account graph: %w", err)
	}
	if !ran {
		metrics.DeletionsTotal.WithLabelValues("account", "locked").Inc()
		return fmt.Errorf("account %d is already being deleted: %w", accountID, repository.ErrLockNotAcquired)
	}

	metrics.DeletionsTotal.WithLabelValues("account", "success").Inc()
	slog.Info("account deleted",
		"account_id", accountID,
		"content_items", graph.ContentItems,
		"reactions", graph.Reactions,
		"replies", graph.Replies,
		"media", len(graph.Media),
	)

	e.purgeBatch(context.WithoutCancel(ctx), graph.Media)
	return nil
}

// purgeEach deletes every reference with its own store call.
func (e *Engine) purgeEach(ctx context.Context, refs []models.MediaReference) {
	if len(refs) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for _, ref := range refs {
		g.Go(func() error {
			if err := e.store.Delete(ctx, ref.Key); err != nil {
				purgeFailed(ref.Key, err)
				return nil
			}
			metrics.MediaPurgedTotal.Inc()
			return nil
		})
	}
	_ = g.Wait()
}

// purgeBatch deletes references through the store's batch call, in chunks of
// storage.MaxBatchSize.
func (e *Engine) purgeBatch(ctx context.Context, refs []models.MediaReference) {
	if len(refs) == 0 {
		return
	}

	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		keys = append(keys, ref.Key)
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for start := 0; start < len(keys); start += storage.MaxBatchSize {
		chunk := keys[start:min(start+storage.MaxBatchSize, len(keys))]
		g.Go(func() error {
			failures := e.store.DeleteBatch(ctx, chunk)
			for _, f := range failures {
				purgeFailed(f.Key, f.Err)
			}
			metrics.MediaPurgedTotal.Add(float64(len(chunk) - len(failures)))
			return nil
		})
	}
	_ = g.Wait()
}

func purgeFailed(key string, err error) {
	metrics.MediaPurgeFailuresTotal.Inc()
	slog.Warn("failed to purge media", "media_key", key, "error", err)
}
