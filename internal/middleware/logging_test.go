package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

// captureLogs redirects the default logger for the duration of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLoggingMiddleware_CapturesStatusCode(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"200 OK", http.StatusOK},
		{"201 Created", http.StatusCreated},
		{"404 Not Found", http.StatusNotFound},
		{"409 Conflict", http.StatusConflict},
		{"429 Too Many Requests", http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := captureLogs(t)
			handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/content/1", nil))

			if rr.Code != tt.statusCode {
				t.Errorf("status = %d, want %d", rr.Code, tt.statusCode)
			}
			if !strings.Contains(logs.String(), `"status":`+strconv.Itoa(tt.statusCode)) {
				t.Errorf("log line missing status: %s", logs.String())
			}
		})
	}
}

func TestLoggingMiddleware_Attributes(t *testing.T) {
	logs := captureLogs(t)
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("body"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/content/3/reactions/init", nil)
	req.RemoteAddr = "10.0.0.5:4000"
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	req.Header.Set("User-Agent", "reactshare-test/1.0")
	req.Header.Set(AccountIDHeader, "17")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	out := logs.String()
	for _, want := range []string{
		`"msg":"http request"`,
		`"method":"POST"`,
		`"path":"/api/content/3/reactions/init"`,
		`"status":200`,
		`"ip":"198.51.100.7"`,
		`"user_agent":"reactshare-test/1.0"`,
		`"account_id":"17"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %s: %s", want, out)
		}
	}
	if rr.Body.String() != "body" {
		t.Errorf("body = %q, want %q", rr.Body.String(), "body")
	}
}

func TestLoggingMiddleware_RedactsSharePath(t *testing.T) {
	logs := captureLogs(t)
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/share/Xy9kLm8pQz4vDwE", nil))

	if strings.Contains(logs.String(), "Xy9kLm8pQz4vDwE") {
		t.Errorf("share path leaked into logs: %s", logs.String())
	}
}

func TestLoggingMiddleware_MultipleWriteHeader(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.WriteHeader(http.StatusInternalServerError) // should be ignored
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	// First WriteHeader should win
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestRedactSharePath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/api/share/Xy9kLm8pQz4vDwE", "/api/share/Xy9...wE"},
		{"/api/share/ABC", "/api/share/***"},
		{"/api/share/", "/api/share/"},
		{"/api/content/12", "/api/content/12"},
		{"/health", "/health"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := redactSharePath(tt.input); got != tt.want {
				t.Errorf("redactSharePath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
