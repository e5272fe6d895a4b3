package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fjmerc/reactshare/internal/repository"
)

// HealthRepository implements health checks for PostgreSQL databases.
type HealthRepository struct {
	pool *pgxpool.Pool
}

// NewHealthRepository creates a new PostgreSQL health repository.
func NewHealthRepository(pool *pgxpool.Pool) *HealthRepository {
	return &HealthRepository{pool: pool}
}

// Ping performs a basic connectivity check to the database.
func (r *HealthRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// CheckHealth runs SELECT 1 and reports pool saturation as degraded.
func (r *HealthRepository) CheckHealth(ctx context.Context) (*repository.ComponentHealth, error) {
	start := time.Now()
	health := &repository.ComponentHealth{
		Name:   "postgresql",
		Status: repository.HealthStatusHealthy,
	}

	var result int
	err := r.pool.QueryRow(ctx, "SELECT 1").Scan(&result)
	health.Latency = time.Since(start)

	if err != nil {
		health.Status = repository.HealthStatusUnhealthy
		health.Message = "database query failed: " + err.Error()
		return health, err
	}

	stat := r.pool.Stat()
	switch {
	case health.Latency > 100*time.Millisecond:
		health.Status = repository.HealthStatusDegraded
		health.Message = "high query latency"
	case stat.MaxConns() > 0 && stat.AcquiredConns() >= stat.MaxConns():
		health.Status = repository.HealthStatusDegraded
		health.Message = "connection pool exhausted"
	}

	return health, nil
}

var _ repository.HealthRepository = (*HealthRepository)(nil)
