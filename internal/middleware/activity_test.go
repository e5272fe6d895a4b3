package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/fjmerc/reactshare/internal/repository"
)

type fakeRecorder struct {
	mu    sync.Mutex
	calls map[int64][]time.Time
	err   error
}

func (f *fakeRecorder) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.calls == nil {
		f.calls = make(map[int64][]time.Time)
	}
	f.calls[id] = append(f.calls[id], at)
	return nil
}

func (f *fakeRecorder) count(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls[id])
}

func serveAs(t *testing.T, h http.Handler, accountID int64) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/content", nil)
	if accountID != 0 {
		req.Header.Set(AccountIDHeader, strconv.FormatInt(accountID, 10))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func TestActivityTracker_ThrottlesPerAccount(t *testing.T) {
	rec := &fakeRecorder{}
	tracker := NewActivityTracker(rec, time.Hour)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now }

	h := AccountContext(tracker.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	serveAs(t, h, 1)
	serveAs(t, h, 1)
	serveAs(t, h, 2)
	if got := rec.count(1); got != 1 {
		t.Errorf("writes for account 1 within the interval = %d, want 1", got)
	}
	if got := rec.count(2); got != 1 {
		t.Errorf("writes for account 2 = %d, want 1", got)
	}

	now = now.Add(61 * time.Minute)
	serveAs(t, h, 1)
	if got := rec.count(1); got != 2 {
		t.Errorf("writes for account 1 after the interval = %d, want 2", got)
	}
	if last := rec.calls[1][1]; !last.Equal(now) {
		t.Errorf("last_login = %v, want %v", last, now)
	}
}

func TestActivityTracker_AnonymousRequestsNotRecorded(t *testing.T) {
	rec := &fakeRecorder{}
	h := AccountContext(NewActivityTracker(rec, time.Hour).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	serveAs(t, h, 0)
	if len(rec.calls) != 0 {
		t.Errorf("anonymous request recorded activity: %v", rec.calls)
	}
}

func TestActivityTracker_FailureDoesNotBlockRequest(t *testing.T) {
	for _, err := range []error{repository.ErrNotFound, errors.New("database is locked")} {
		rec := &fakeRecorder{err: err}
		tracker := NewActivityTracker(rec, time.Hour)
		h := AccountContext(tracker.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})))

		if code := serveAs(t, h, 5); code != http.StatusNoContent {
			t.Errorf("status with recorder error %v = %d, want %d", err, code, http.StatusNoContent)
		}

		// A failed write is retried on the next request
		rec.mu.Lock()
		rec.err = nil
		rec.mu.Unlock()
		serveAs(t, h, 5)
		if got := rec.count(5); got != 1 {
			t.Errorf("writes after recovery from %v = %d, want 1", err, got)
		}
	}
}
