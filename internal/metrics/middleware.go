package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware instruments HTTP handlers with request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // Default to 200 if WriteHeader not called
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		method := r.Method
		status := strconv.Itoa(wrapped.statusCode)

		HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
		HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// normalizePath normalizes URL paths for metric labels to avoid cardinality explosion.
// Numeric ids and share paths are replaced with placeholders.
func normalizePath(path string) string {
	switch path {
	case "/", "/health", "/metrics", "/api/accounts", "/api/content":
		return path
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 3 || segments[0] != "api" {
		return "/other"
	}

	switch segments[1] {
	case "share":
		if len(segments) == 3 {
			return "/api/share/:path"
		}
	case "accounts", "content", "reactions":
		if _, err := strconv.ParseInt(segments[2], 10, 64); err != nil {
			return "/other"
		}
		segments[2] = ":id"
		normalized := "/" + strings.Join(segments, "/")
		if knownRoutes[normalized] {
			return normalized
		}
	}
	return "/other"
}

var knownRoutes = map[string]bool{
	"/api/accounts/:id":               true,
	"/api/accounts/:id/usage":         true,
	"/api/accounts/:id/limits":        true,
	"/api/content/:id":                true,
	"/api/content/:id/reactions":      true,
	"/api/content/:id/reactions/init": true,
	"/api/reactions/:id/media":        true,
	"/api/reactions/:id/replies":      true,
}
