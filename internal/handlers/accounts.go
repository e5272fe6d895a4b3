package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fjmerc/reactshare/internal/config"
	"github.com/fjmerc/reactshare/internal/deletion"
	"github.com/fjmerc/reactshare/internal/metrics"
	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/quota"
	"github.com/fjmerc/reactshare/internal/repository"
	"github.com/fjmerc/reactshare/internal/storage"
)

func newAccountResponse(a *models.Account, usage *models.Usage) models.AccountResponse {
	return models.AccountResponse{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		Role:      a.Role,
		IsBlocked: a.IsBlocked,
		Picture:   a.Picture,
		CreatedAt: a.CreatedAt,
		Usage:     models.NewUsageResponse(usage),
	}
}

// CreateAccountHandler registers an account with the configured default limits.
func CreateAccountHandler(accounts repository.AccountRepository, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateAccountRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16*1024)).Decode(&req); err != nil {
			sendError(w, "Invalid JSON body", "INVALID_BODY", http.StatusBadRequest)
			return
		}

		req.Username = strings.TrimSpace(req.Username)
		req.Email = strings.TrimSpace(req.Email)

		// Admin accounts are provisioned out of band
		if req.Role == models.RoleAdmin {
			sendError(w, "Cannot self-register an admin account", "FORBIDDEN", http.StatusForbidden)
			return
		}

		limits := cfg.GetDefaultLimits()
		account := &models.Account{
			Username: req.Username,
			Email:    req.Email,
			Role:     req.Role,
			Usage: models.Usage{
				MaxContentPerMonth:           limits.MaxContentPerMonth,
				MaxReactionsReceivedPerMonth: limits.MaxReactionsReceivedPerMonth,
				MaxReactionsPerItem:          limits.MaxReactionsPerItem,
			},
		}

		if err := accounts.Create(r.Context(), account); err != nil {
			handleServiceError(w, r, err)
			return
		}

		created, err := accounts.GetByID(r.Context(), account.ID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		slog.Info("account created", "account_id", created.ID, "role", created.Role)
		sendJSON(w, newAccountResponse(created, &created.Usage), http.StatusCreated)
	}
}

// GetUsageHandler returns an account's usage block, resetting it first when
// a new calendar month has started.
func GetUsageHandler(accounts repository.AccountRepository, quotas *quota.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if !requireSelfOrAdmin(w, r, accounts, id) {
			return
		}

		usage, err := quotas.CheckAndResetUsage(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		sendJSON(w, models.NewUsageResponse(usage), http.StatusOK)
	}
}

// UpdateLimitsHandler replaces an account's limits. Admin only.
func UpdateLimitsHandler(accounts repository.AccountRepository, quotas *quota.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		// Owners may not raise their own limits
		actingID, ok := requireAdmin(w, r, accounts)
		if !ok {
			return
		}

		var limits models.Limits
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16*1024)).Decode(&limits); err != nil {
			sendError(w, "Invalid JSON body", "INVALID_BODY", http.StatusBadRequest)
			return
		}
		if err := validateLimits(limits); err != nil {
			handleServiceError(w, r, err)
			return
		}

		usage, err := quotas.UpdateLimits(r.Context(), id, limits)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		slog.Info("account limits updated by admin", "account_id", id, "admin_id", actingID)
		sendJSON(w, models.NewUsageResponse(usage), http.StatusOK)
	}
}

// SetBlockedHandler blocks or unblocks an account. Blocked accounts cannot
// send direct reactions. Admin only.
func SetBlockedHandler(accounts repository.AccountRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		actingID, ok := requireAdmin(w, r, accounts)
		if !ok {
			return
		}

		var req models.SetBlockedRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4*1024)).Decode(&req); err != nil || req.Blocked == nil {
			sendError(w, "Body must be {\"blocked\": true|false}", "INVALID_BODY", http.StatusBadRequest)
			return
		}
		if id == actingID && *req.Blocked {
			sendError(w, "Cannot block your own account", "INVALID_INPUT", http.StatusBadRequest)
			return
		}

		if err := accounts.SetBlocked(r.Context(), id, *req.Blocked); err != nil {
			handleServiceError(w, r, err)
			return
		}

		account, err := accounts.GetByID(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		slog.Info("account blocked flag changed by admin",
			"account_id", id,
			"blocked", account.IsBlocked,
			"admin_id", actingID,
		)
		sendJSON(w, newAccountResponse(account, &account.Usage), http.StatusOK)
	}
}

// SetPictureHandler stores the raw request body as the account's profile
// picture. The previous picture is purged once the new one is recorded.
func SetPictureHandler(accounts repository.AccountRepository, store storage.MediaStore, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if !requireSelfOrAdmin(w, r, accounts, id) {
			return
		}

		data, ok := readMedia(w, r, cfg.GetMaxMediaSize())
		if !ok {
			return
		}

		ref, err := store.Upload(r.Context(), data, models.MediaKindImage)
		if err != nil {
			metrics.MediaUploadsTotal.WithLabelValues("failure").Inc()
			handleServiceError(w, r, err)
			return
		}
		metrics.MediaUploadsTotal.WithLabelValues("success").Inc()

		if ref.Kind != models.MediaKindImage {
			discardMedia(r.Context(), store, ref.Key)
			sendError(w, "Profile picture must be an image", "INVALID_MEDIA_KIND", http.StatusBadRequest)
			return
		}

		previous, err := accounts.SetPicture(r.Context(), id, &ref)
		if err != nil {
			discardMedia(r.Context(), store, ref.Key)
			handleServiceError(w, r, err)
			return
		}
		if previous != nil {
			discardMedia(r.Context(), store, previous.Key)
		}

		slog.Info("profile picture updated", "account_id", id, "media_key", ref.Key)
		sendJSON(w, ref, http.StatusOK)
	}
}

// DeleteAccountHandler removes an account with everything it owns.
func DeleteAccountHandler(accounts repository.AccountRepository, engine *deletion.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if !requireSelfOrAdmin(w, r, accounts, id) {
			return
		}

		if err := engine.DeleteAccount(r.Context(), id); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// requireSelfOrAdmin writes the error response and returns false unless the
// acting account is ownerID or an admin.
func requireSelfOrAdmin(w http.ResponseWriter, r *http.Request, accounts repository.AccountRepository, ownerID int64) bool {
	actingID, ok := actingAccount(r)
	if !ok {
		sendError(w, "Unauthorized", "UNAUTHORIZED", http.StatusUnauthorized)
		return false
	}

	allowed, err := authorize(r.Context(), accounts, actingID, ownerID)
	if err != nil {
		handleServiceError(w, r, err)
		return false
	}
	if !allowed {
		sendError(w, "Forbidden", "FORBIDDEN", http.StatusForbidden)
		return false
	}
	return true
}

// requireAdmin writes the error response and returns false unless the acting
// account is an admin.
func requireAdmin(w http.ResponseWriter, r *http.Request, accounts repository.AccountRepository) (int64, bool) {
	actingID, ok := actingAccount(r)
	if !ok {
		sendError(w, "Unauthorized", "UNAUTHORIZED", http.StatusUnauthorized)
		return 0, false
	}

	allowed, err := isAdmin(r.Context(), accounts, actingID)
	if err != nil {
		handleServiceError(w, r, err)
		return 0, false
	}
	if !allowed {
		sendError(w, "Admin role required", "FORBIDDEN", http.StatusForbidden)
		return 0, false
	}
	return actingID, true
}

// discardMedia removes an object no row refers to. Failures leave an orphan
// in the store and are only logged.
func discardMedia(ctx context.Context, store storage.MediaStore, key string) {
	if err := store.Delete(context.WithoutCancel(ctx), key); err != nil {
		metrics.MediaPurgeFailuresTotal.Inc()
		slog.Warn("failed to discard media", "media_key", key, "error", err)
	}
}

func validateLimits(limits models.Limits) error {
	for name, v := range map[string]*int{
		"max_content_per_month":            limits.MaxContentPerMonth,
		"max_reactions_received_per_month": limits.MaxReactionsReceivedPerMonth,
		"max_reactions_per_item":           limits.MaxReactionsPerItem,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: %s must be null or >= 0", repository.ErrInvalidInput, name)
		}
	}
	return nil
}
