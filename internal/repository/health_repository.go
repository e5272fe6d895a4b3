package repository

import (
	"context"
	"time"
)

// HealthStatus represents the overall health state.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name    string        `json:"name"`
	Status  HealthStatus  `json:"status"`
	Latency time.Duration `json:"latency_ms,omitempty"`
	Message string        `json:"message,omitempty"`
}

// HealthRepository provides health checks for the database.
type HealthRepository interface {
	// Ping performs a basic connectivity check.
	Ping(ctx context.Context) error

	// CheckHealth runs a trivial query and reports latency.
	// Latency above 100ms is reported as degraded.
	CheckHealth(ctx context.Context) (*ComponentHealth, error)
}
