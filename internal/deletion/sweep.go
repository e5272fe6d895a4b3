package deletion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjmerc/reactshare/internal/metrics"
	"github.com/fjmerc/reactshare/internal/repository"
	"github.com/fjmerc/reactshare/internal/utils"
)

// SweepLockKey is the lock key shared by every process running the sweep.
const SweepLockKey = repository.InactiveSweepLockKey

// SweepOutcome is the result of deleting one inactive account.
// Err is nil when the account was deleted.
type SweepOutcome struct {
	AccountID int64
	Err       error
}

// SweepInactiveAccounts deletes every non-admin account whose last login (or
// creation time, for accounts that never logged in) is older than threshold.
//
// A failure for one account is captured in its outcome and the sweep moves on.
// The returned error is reserved for the sweep itself: the lock could not be
// checked or the candidates could not be listed. When another process holds
// the sweep lock the result is empty.
func (e *Engine) SweepInactiveAccounts(ctx context.Context, threshold time.Duration) ([]SweepOutcome, error) {
	lock := utils.NewDistributedLock(e.locks, repository.LockTypeInactiveSweep, SweepLockKey, utils.SweepLockTTL)

	var outcomes []SweepOutcome
	ran, err := utils.TryWithLock(ctx, lock, func() error {
		cutoff := e.now().UTC().Add(-threshold)
		ids, err := e.accounts.ListInactive(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("failed to list inactive accounts: %w", err)
		}

		outcomes = make([]SweepOutcome, 0, len(ids))
		for _, id := range ids {
			if ctx.Err() != nil {
				outcomes = append(outcomes, SweepOutcome{AccountID: id, Err: ctx.Err()})
				continue
			}
			outcome := SweepOutcome{AccountID: id, Err: e.DeleteAccount(ctx, id)}
			if outcome.Err != nil {
				metrics.SweepAccountsTotal.WithLabelValues("failed").Inc()
				slog.Error("failed to delete inactive account", "account_id", id, "error", outcome.Err)
			} else {
				metrics.SweepAccountsTotal.WithLabelValues("deleted").Inc()
			}
			outcomes = append(outcomes, outcome)
		}
		return nil
	})
	if err != nil {
		metrics.SweepRunsTotal.WithLabelValues("failure").Inc()
		return nil, err
	}
	if !ran {
		metrics.SweepRunsTotal.WithLabelValues("skipped").Inc()
		slog.Info("inactive account sweep skipped: lock held by another process")
		return []SweepOutcome{}, nil
	}

	metrics.SweepRunsTotal.WithLabelValues("success").Inc()
	return outcomes, nil
}

// StartSweepWorker runs SweepInactiveAccounts every interval until ctx is done.
// Ticks run one at a time, so sweeps never overlap within a process.
func StartSweepWorker(ctx context.Context, engine *Engine, interval, threshold time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("inactive account sweep worker started",
		"interval", interval,
		"threshold", threshold,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("inactive account sweep worker shutting down")
			return
		case <-ticker.C:
			runSweep(ctx, engine, threshold)
		}
	}
}

func runSweep(ctx context.Context, engine *Engine, threshold time.Duration) {
	start := time.Now()
	outcomes, err := engine.SweepInactiveAccounts(ctx, threshold)
	duration := time.Since(start)

	if err != nil {
		slog.Error("inactive account sweep failed", "error", err, "duration", duration)
		return
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}

	if len(outcomes) > 0 {
		slog.Info("inactive account sweep completed",
			"deleted", len(outcomes)-failed,
			"failed", failed,
			"duration", duration,
		)
	} else {
		slog.Debug("inactive account sweep completed", "deleted", 0, "duration", duration)
	}
}
