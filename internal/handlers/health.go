package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjmerc/reactshare/internal/metrics"
	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/repository"
	"github.com/fjmerc/reactshare/internal/storage"
)

// Health check timeout for external dependencies
const healthCheckTimeout = 5 * time.Second

// setHealthCacheHeaders keeps probes from ever seeing a cached answer.
func setHealthCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

// HealthHandler reports database and media store health.
// A database failure is unhealthy (503); a media store failure or a slow
// database is degraded (200).
func HealthHandler(healthRepo repository.HealthRepository, store storage.MediaStore, startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			metrics.HealthCheckDuration.WithLabelValues("health").Observe(time.Since(start).Seconds())
		}()

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := models.HealthResponse{
			Status:        string(repository.HealthStatusHealthy),
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
			Database:      string(repository.HealthStatusHealthy),
			MediaStore:    string(repository.HealthStatusHealthy),
		}

		dbHealth, err := healthRepo.CheckHealth(ctx)
		switch {
		case err != nil:
			slog.Error("health check failed: database", "error", err)
			resp.Database = string(repository.HealthStatusUnhealthy)
		case dbHealth.Status != repository.HealthStatusHealthy:
			resp.Database = string(dbHealth.Status)
		}

		if err := store.HealthCheck(ctx); err != nil {
			slog.Warn("health check failed: media store", "store", store.Name(), "error", err)
			resp.MediaStore = string(repository.HealthStatusUnhealthy)
		}

		code := http.StatusOK
		switch {
		case resp.Database == string(repository.HealthStatusUnhealthy):
			resp.Status = string(repository.HealthStatusUnhealthy)
			code = http.StatusServiceUnavailable
		case resp.Database != string(repository.HealthStatusHealthy) || resp.MediaStore != string(repository.HealthStatusHealthy):
			resp.Status = string(repository.HealthStatusDegraded)
		}

		updateHealthStatusGauge(resp.Status)
		setHealthCacheHeaders(w)
		sendJSON(w, resp, code)
	}
}

func updateHealthStatusGauge(status string) {
	switch repository.HealthStatus(status) {
	case repository.HealthStatusHealthy:
		metrics.HealthStatus.Set(2)
	case repository.HealthStatusDegraded:
		metrics.HealthStatus.Set(1)
	default:
		metrics.HealthStatus.Set(0)
	}
}
