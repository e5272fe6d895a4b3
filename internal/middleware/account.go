package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/utils"
)

// AccountIDHeader carries the acting account id, set by the authenticating proxy.
const AccountIDHeader = "X-Account-ID"

type contextKey string

const accountIDKey contextKey = "account_id"

// AccountContext reads AccountIDHeader into the request context. A request
// without the header continues anonymously; a malformed header is rejected.
func AccountContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(AccountIDHeader))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			slog.Warn("rejected malformed account header",
				"path", redactSharePath(r.URL.Path),
				"ip", utils.ClientIP(r),
			)
			writeError(w, http.StatusBadRequest, "Invalid "+AccountIDHeader+" header", "INVALID_ACCOUNT_ID")
			return
		}

		ctx := context.WithValue(r.Context(), accountIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAccount rejects requests that carry no acting account.
func RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AccountIDFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AccountIDFromContext returns the acting account id stored by AccountContext.
func AccountIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(accountIDKey).(int64)
	return id, ok
}

// WithAccountID returns a copy of ctx carrying id, for tests and internal callers.
func WithAccountID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, accountIDKey, id)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: message, Code: code})
}
