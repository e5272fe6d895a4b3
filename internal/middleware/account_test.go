package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAccountContext(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantID     int64
		wantOK     bool
	}{
		{name: "no header", header: "", wantStatus: http.StatusOK},
		{name: "valid", header: "42", wantStatus: http.StatusOK, wantID: 42, wantOK: true},
		{name: "padded", header: " 7 ", wantStatus: http.StatusOK, wantID: 7, wantOK: true},
		{name: "not a number", header: "abc", wantStatus: http.StatusBadRequest},
		{name: "zero", header: "0", wantStatus: http.StatusBadRequest},
		{name: "negative", header: "-3", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID int64
			var gotOK bool
			handler := AccountContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID, gotOK = AccountIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/content", nil)
			if tt.header != "" {
				req.Header.Set(AccountIDHeader, tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if gotID != tt.wantID || gotOK != tt.wantOK {
				t.Errorf("AccountIDFromContext() = (%d, %v), want (%d, %v)", gotID, gotOK, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestRequireAccount(t *testing.T) {
	handler := RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/content/1", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/content/1", nil)
	req = req.WithContext(WithAccountID(context.Background(), 5))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("authenticated status = %d, want %d", rr.Code, http.StatusNoContent)
	}
}
