package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fjmerc/reactshare/internal/repository"
)

// ActivityRecorder stores the last time an account was seen authenticated.
type ActivityRecorder interface {
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
}

// pruneThreshold is the number of remembered accounts above which stale
// entries are dropped.
const pruneThreshold = 10000

// ActivityTracker records authenticated requests as account activity, which
// is what keeps an account out of the inactive-account sweep. Writes are
// throttled to one per account per interval.
type ActivityTracker struct {
	accounts ActivityRecorder
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	seen map[int64]time.Time
}

// NewActivityTracker creates a tracker writing through accounts at most once
// per interval for each account.
func NewActivityTracker(accounts ActivityRecorder, interval time.Duration) *ActivityTracker {
	return &ActivityTracker{
		accounts: accounts,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		seen:     make(map[int64]time.Time),
	}
}

// Middleware records the acting account set by AccountContext before passing
// the request on. A failed write is logged and never fails the request.
func (t *ActivityTracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := AccountIDFromContext(r.Context()); ok {
			t.Record(r.Context(), id)
		}
		next.ServeHTTP(w, r)
	})
}

// Record writes last_login for id unless it was written within the interval.
func (t *ActivityTracker) Record(ctx context.Context, id int64) {
	now := t.now()
	if !t.due(id, now) {
		return
	}

	if err := t.accounts.UpdateLastLogin(ctx, id, now); err != nil {
		t.forget(id)
		if errors.Is(err, repository.ErrNotFound) {
			slog.Debug("activity for unknown account", "account_id", id)
			return
		}
		slog.Warn("failed to record account activity", "account_id", id, "error", err)
	}
}

// due claims the write slot for id so concurrent requests write once.
func (t *ActivityTracker) due(id int64, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.seen[id]; ok && now.Sub(last) < t.interval {
		return false
	}
	t.seen[id] = now

	if len(t.seen) > pruneThreshold {
		for k, last := range t.seen {
			if now.Sub(last) >= t.interval {
				delete(t.seen, k)
			}
		}
	}
	return true
}

func (t *ActivityTracker) forget(id int64) {
	t.mu.Lock()
	delete(t.seen, id)
	t.mu.Unlock()
}
