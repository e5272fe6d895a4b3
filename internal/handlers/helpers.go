// Package handlers implements the JSON HTTP surface over the content,
// reaction, quota and deletion services.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/fjmerc/reactshare/internal/config"
	"github.com/fjmerc/reactshare/internal/content"
	"github.com/fjmerc/reactshare/internal/metrics"
	"github.com/fjmerc/reactshare/internal/middleware"
	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/quota"
	"github.com/fjmerc/reactshare/internal/reactions"
	"github.com/fjmerc/reactshare/internal/repository"
	"github.com/fjmerc/reactshare/internal/storage"
)

// sendError sends a JSON error response
func sendError(w http.ResponseWriter, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := models.ErrorResponse{
		Error: message,
		Code:  code,
	}

	json.NewEncoder(w).Encode(errResp)
}

// sendJSON sends data as a JSON response with the given status
func sendJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// handleServiceError maps a service error to its HTTP status and code.
// Unrecognized errors are logged and reported as 500 without detail.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var exceeded *quota.ExceededError
	switch {
	case errors.As(err, &exceeded):
		code := "QUOTA_EXCEEDED_" + strings.ToUpper(strings.ReplaceAll(string(exceeded.Kind), "-", "_"))
		sendError(w, "Quota exceeded: "+string(exceeded.Kind), code, http.StatusTooManyRequests)
	case errors.Is(err, repository.ErrNotFound):
		sendError(w, "Not found", "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, repository.ErrInvalidInput):
		sendError(w, err.Error(), "INVALID_INPUT", http.StatusBadRequest)
	case errors.Is(err, content.ErrInvalidPasscode):
		sendError(w, "Invalid passcode", "INVALID_PASSCODE", http.StatusUnauthorized)
	case errors.Is(err, reactions.ErrAlreadyComplete):
		sendError(w, "Reaction already has media", "ALREADY_COMPLETE", http.StatusConflict)
	case errors.Is(err, reactions.ErrSenderBlocked):
		sendError(w, "Account is blocked", "ACCOUNT_BLOCKED", http.StatusForbidden)
	case errors.Is(err, repository.ErrLockNotAcquired):
		sendError(w, "Deletion already in progress", "DELETION_IN_PROGRESS", http.StatusConflict)
	case errors.Is(err, repository.ErrDuplicateKey):
		sendError(w, "Already exists", "ALREADY_EXISTS", http.StatusConflict)
	case errors.Is(err, repository.ErrServiceUnavailable):
		sendError(w, "Service temporarily unavailable", "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable)
	case errors.Is(err, storage.ErrUploadFailed):
		sendError(w, "Media upload failed", "UPLOAD_FAILED", http.StatusBadGateway)
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful can be written
		slog.Debug("request cancelled", "path", r.URL.Path)
	default:
		metrics.ErrorsTotal.WithLabelValues("internal").Inc()
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// pathID parses the {id} wildcard of the matched route.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", repository.ErrInvalidInput, r.PathValue("id"))
	}
	return id, nil
}

// actingAccount returns the account id set by middleware.AccountContext.
func actingAccount(r *http.Request) (int64, bool) {
	return middleware.AccountIDFromContext(r.Context())
}

// authorize reports whether the acting account may act on ownerID: it is the
// owner itself or an admin.
func authorize(ctx context.Context, accounts repository.AccountRepository, actingID, ownerID int64) (bool, error) {
	if actingID == ownerID {
		return true, nil
	}
	return isAdmin(ctx, accounts, actingID)
}

// isAdmin reports whether accountID exists and has the admin role.
func isAdmin(ctx context.Context, accounts repository.AccountRepository, accountID int64) (bool, error) {
	acting, err := accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return acting.Role == models.RoleAdmin, nil
}

// readMedia reads a raw request body of at most maxSize bytes.
// It writes the error response itself and returns ok=false on failure.
func readMedia(w http.ResponseWriter, r *http.Request, maxSize int64) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, fmt.Sprintf("Media exceeds maximum of %d bytes", maxSize), "MEDIA_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		sendError(w, "Failed to read request body", "INVALID_BODY", http.StatusBadRequest)
		return nil, false
	}
	if len(data) == 0 {
		sendError(w, "No media provided", "NO_MEDIA", http.StatusBadRequest)
		return nil, false
	}
	return data, true
}

// parseMultipart parses a multipart form and returns the optional "media" part.
// It writes the error response itself and returns ok=false on failure.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxSize int64) ([]byte, bool) {
	// Allow some room for the text fields around the media part
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+64*1024)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		sendError(w, "Media too large or invalid form data", "MEDIA_TOO_LARGE", http.StatusRequestEntityTooLarge)
		return nil, false
	}

	file, header, err := r.FormFile("media")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, true
		}
		sendError(w, "Invalid media part", "INVALID_BODY", http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	if header.Size > maxSize {
		sendError(w, fmt.Sprintf("Media exceeds maximum of %d bytes", maxSize), "MEDIA_TOO_LARGE", http.StatusRequestEntityTooLarge)
		return nil, false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		sendError(w, "Failed to read media", "INVALID_BODY", http.StatusBadRequest)
		return nil, false
	}
	return data, true
}

// buildShareURL constructs the full share URL for a share path
// Respects PUBLIC_URL config and reverse proxy headers
func buildShareURL(r *http.Request, cfg *config.Config, sharePath string) string {
	if cfg.PublicURL != "" {
		baseURL := strings.TrimSuffix(cfg.PublicURL, "/")
		return baseURL + "/api/share/" + sharePath
	}

	return getScheme(r) + "://" + getHost(r) + "/api/share/" + sharePath
}

// getScheme returns the scheme (http/https) respecting reverse proxy headers
func getScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// getHost returns the host respecting reverse proxy headers
func getHost(r *http.Request) string {
	if host := r.Header.Get("X-Forwarded-Host"); host != "" {
		return host
	}
	return r.Host
}
