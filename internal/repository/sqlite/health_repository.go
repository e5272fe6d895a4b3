package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/fjmerc/reactshare/internal/repository"
)

// HealthRepository implements health checks for SQLite databases.
type HealthRepository struct {
	db *sql.DB
}

// NewHealthRepository creates a new SQLite health repository.
func NewHealthRepository(db *sql.DB) *HealthRepository {
	return &HealthRepository{db: db}
}

// Ping performs a basic connectivity check to the database.
// For SQLite, this pings the database connection pool.
func (r *HealthRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CheckHealth performs a comprehensive health check for SQLite.
func (r *HealthRepository) CheckHealth(ctx context.Context) (*repository.ComponentHealth, error) {
	start := time.Now()
	health := &repository.ComponentHealth{
		Name:   "sqlite",
		Status: repository.HealthStatusHealthy,
	}

	// Test with a simple query
	var result int
	err := r.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	health.Latency = time.Since(start)

	if err != nil {
		health.Status = repository.HealthStatusUnhealthy
		health.Message = "database query failed: " + err.Error()
		return health, err
	}

	if result != 1 {
		health.Status = repository.HealthStatusUnhealthy
		health.Message = "unexpected query result"
		return health, nil
	}

	// Check if latency is too high (potential lock contention)
	if health.Latency > 100*time.Millisecond {
		health.Status = repository.HealthStatusDegraded
		health.Message = "high query latency"
	}

	return health, nil
}

var _ repository.HealthRepository = (*HealthRepository)(nil)
