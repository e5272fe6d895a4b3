// Package quota owns the monthly usage counters of an account.
//
// Every content or reaction creating operation goes through a Manager: it
// resets stale counters, evaluates limits and records usage. No other package
// writes the counters.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjmerc/reactshare/internal/metrics"
	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/repository"
)

// Kind names the limit that refused an operation.
type Kind string

const (
	KindPerItem         Kind = "per-item"
	KindReceiverMonthly Kind = "receiver-monthly"
	KindCreatorMonthly  Kind = "creator-monthly"
)

// ErrQuotaExceeded matches every *ExceededError.
var ErrQuotaExceeded = errors.New("quota exceeded")

// ExceededError reports which quota refused an operation.
type ExceededError struct {
	Kind Kind
}

func (e *ExceededError) Error() string {
	return "quota exceeded: " + string(e.Kind)
}

// Is makes errors.Is(err, ErrQuotaExceeded) true for any kind.
func (e *ExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// Manager evaluates and records account usage.
type Manager struct {
	accounts repository.AccountRepository
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now, for tests that cross month boundaries.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager over the account store.
func NewManager(accounts repository.AccountRepository, opts ...Option) *Manager {
	m := &Manager{accounts: accounts, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Now returns the manager's current time in UTC.
func (m *Manager) Now() time.Time {
	return m.now().UTC()
}

// Exceeded builds the error for kind and counts the rejection.
func (m *Manager) Exceeded(kind Kind) error {
	metrics.QuotaRejectionsTotal.WithLabelValues(string(kind)).Inc()
	return &ExceededError{Kind: kind}
}

// CheckAndResetUsage returns the account's usage block, zeroing both counters
// first when the last reset lies in an earlier calendar month.
func (m *Manager) CheckAndResetUsage(ctx context.Context, accountID int64) (*models.Usage, error) {
	usage, reset, err := m.accounts.ResetUsageIfStale(ctx, accountID, m.Now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to check usage for account %d: %w", accountID, err)
	}

	if reset {
		metrics.UsageResetsTotal.Inc()
		slog.Debug("monthly usage reset", "account_id", accountID)
	}
	return usage, nil
}

// CanCreateContent reports whether the account may post another item this month.
func CanCreateContent(usage *models.Usage) bool {
	return withinLimit(usage.ContentCountThisMonth, usage.MaxContentPerMonth)
}

// CanReceiveReaction reports whether the account may receive another reaction this month.
func CanReceiveReaction(usage *models.Usage) bool {
	return withinLimit(usage.ReactionsReceivedThisMonth, usage.MaxReactionsReceivedPerMonth)
}

// WithinItemCap reports whether an item holding count reactions accepts one more.
func WithinItemCap(count int, maxAllowed *int) bool {
	return withinLimit(count, maxAllowed)
}

// nil or negative limits are unlimited
func withinLimit(count int, limit *int) bool {
	if limit == nil || *limit < 0 {
		return true
	}
	return count < *limit
}

// RequireContentSlot resets stale usage and fails with creator-monthly when
// the account has no content left this month.
func (m *Manager) RequireContentSlot(ctx context.Context, accountID int64) (*models.Usage, error) {
	usage, err := m.CheckAndResetUsage(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !CanCreateContent(usage) {
		return nil, m.Exceeded(KindCreatorMonthly)
	}
	return usage, nil
}

// RequireReactionSlot resets stale usage and fails with receiver-monthly when
// the account cannot receive another reaction this month.
func (m *Manager) RequireReactionSlot(ctx context.Context, accountID int64) (*models.Usage, error) {
	usage, err := m.CheckAndResetUsage(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !CanReceiveReaction(usage) {
		return nil, m.Exceeded(KindReceiverMonthly)
	}
	return usage, nil
}

// IncrementContentCount records one created item.
// The caller must already have passed CanCreateContent.
// A failure is logged and counted, never returned.
func (m *Manager) IncrementContentCount(ctx context.Context, accountID int64) {
	if err := m.accounts.IncrementContentCount(ctx, accountID); err != nil {
		metrics.CounterIncrementFailuresTotal.WithLabelValues("content").Inc()
		slog.Error("failed to increment content count",
			"account_id", accountID,
			"error", err,
		)
	}
}

// IncrementReceivedReactions records one received reaction.
// The caller must already have passed CanReceiveReaction.
// A failure is logged and counted, never returned.
func (m *Manager) IncrementReceivedReactions(ctx context.Context, accountID int64) {
	if err := m.accounts.IncrementReactionsReceived(ctx, accountID); err != nil {
		metrics.CounterIncrementFailuresTotal.WithLabelValues("reactions_received").Inc()
		slog.Error("failed to increment received reactions",
			"account_id", accountID,
			"error", err,
		)
	}
}

// UpdateLimits replaces the account's limits. Usage counters are untouched, so
// raising a limit makes a rejected operation succeed immediately.
func (m *Manager) UpdateLimits(ctx context.Context, accountID int64, limits models.Limits) (*models.Usage, error) {
	if err := m.accounts.UpdateLimits(ctx, accountID, limits); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update limits for account %d: %w", accountID, err)
	}

	slog.Info("account limits updated",
		"account_id", accountID,
		"max_content_per_month", limitAttr(limits.MaxContentPerMonth),
		"max_reactions_received_per_month", limitAttr(limits.MaxReactionsReceivedPerMonth),
		"max_reactions_per_item", limitAttr(limits.MaxReactionsPerItem),
	)
	return m.CheckAndResetUsage(ctx, accountID)
}

func limitAttr(v *int) any {
	if v == nil || *v < 0 {
		return "unlimited"
	}
	return *v
}
