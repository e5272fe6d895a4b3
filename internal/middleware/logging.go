package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjmerc/reactshare/internal/utils"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.ResponseWriter.WriteHeader(statusCode)
		rw.written = true
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// LoggingMiddleware logs HTTP requests with method, path, status, duration, and IP
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		attrs := []any{
			"method", r.Method,
			"path", redactSharePath(r.URL.Path),
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"ip", utils.ClientIP(r),
			"user_agent", r.UserAgent(),
		}
		if id := r.Header.Get(AccountIDHeader); id != "" {
			attrs = append(attrs, "account_id", id)
		}

		slog.Info("http request", attrs...)
	})
}

// sharePrefix precedes the unauthenticated lookup path of a content item.
const sharePrefix = "/api/share/"

// redactSharePath masks share paths in logged URLs. Anyone holding a share
// path can open the item, so only its first 3 and last 2 characters are kept.
func redactSharePath(path string) string {
	rest, ok := strings.CutPrefix(path, sharePrefix)
	if !ok || rest == "" {
		return path
	}
	return sharePrefix + utils.RedactToken(rest)
}
