package config

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fjmerc/reactshare/internal/models"
)

// TestLoad_DefaultConfiguration tests loading config with no environment variables
func TestLoad_DefaultConfiguration(t *testing.T) {
	clearEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Port)
	}
	if cfg.DBType != DBTypeSQLite {
		t.Errorf("DBType = %s, want sqlite", cfg.DBType)
	}
	if cfg.DBPath != "./reactshare.db" {
		t.Errorf("DBPath = %s, want ./reactshare.db", cfg.DBPath)
	}
	if cfg.StorageBackend != StorageFilesystem {
		t.Errorf("StorageBackend = %s, want filesystem", cfg.StorageBackend)
	}
	if cfg.PostgreSQL != nil {
		t.Error("PostgreSQL config should be nil for sqlite")
	}
	if cfg.S3 != nil {
		t.Error("S3 config should be nil for filesystem storage")
	}
	if cfg.SweepInterval != 24*time.Hour {
		t.Errorf("SweepInterval = %s, want 24h", cfg.SweepInterval)
	}
	if cfg.InactivityThreshold != 365*24*time.Hour {
		t.Errorf("InactivityThreshold = %s, want 8760h", cfg.InactivityThreshold)
	}
	if cfg.ActivityInterval != time.Hour {
		t.Errorf("ActivityInterval = %s, want 1h", cfg.ActivityInterval)
	}
	if cfg.PurgeConcurrency != 4 {
		t.Errorf("PurgeConcurrency = %d, want 4", cfg.PurgeConcurrency)
	}
	if cfg.GetMaxMediaSize() != 52428800 {
		t.Errorf("GetMaxMediaSize() = %d, want 52428800", cfg.GetMaxMediaSize())
	}

	limits := cfg.GetDefaultLimits()
	if limits.MaxContentPerMonth != nil || limits.MaxReactionsReceivedPerMonth != nil || limits.MaxReactionsPerItem != nil {
		t.Errorf("default limits should all be unlimited, got %+v", limits)
	}
}

// TestLoad_CustomConfiguration tests loading config with custom environment values
func TestLoad_CustomConfiguration(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("PORT", "9090")
	t.Setenv("DB_TYPE", "postgres")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PORT", "6432")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "reactions")
	t.Setenv("S3_ENDPOINT", "http://minio:9000")
	t.Setenv("S3_PATH_STYLE", "true")
	t.Setenv("SWEEP_INTERVAL", "6h")
	t.Setenv("INACTIVITY_THRESHOLD", "720h")
	t.Setenv("DEFAULT_MAX_CONTENT_PER_MONTH", "10")
	t.Setenv("DEFAULT_MAX_REACTIONS_RECEIVED_PER_MONTH", "100")
	t.Setenv("DEFAULT_MAX_REACTIONS_PER_ITEM", "5")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %s, want 9090", cfg.Port)
	}
	if cfg.PostgreSQL == nil {
		t.Fatal("PostgreSQL config should be set")
	}
	if cfg.PostgreSQL.Host != "db.internal" || cfg.PostgreSQL.Port != 6432 {
		t.Errorf("PostgreSQL = %s:%d, want db.internal:6432", cfg.PostgreSQL.Host, cfg.PostgreSQL.Port)
	}
	if !cfg.PostgreSQL.AutoMigrate {
		t.Error("AutoMigrate should default to true")
	}
	if cfg.S3 == nil {
		t.Fatal("S3 config should be set")
	}
	if cfg.S3.Bucket != "reactions" || !cfg.S3.PathStyle {
		t.Errorf("S3 = %+v, want bucket reactions with path style", cfg.S3)
	}
	if cfg.SweepInterval != 6*time.Hour {
		t.Errorf("SweepInterval = %s, want 6h", cfg.SweepInterval)
	}
	if cfg.InactivityThreshold != 720*time.Hour {
		t.Errorf("InactivityThreshold = %s, want 720h", cfg.InactivityThreshold)
	}
	if cfg.SlogLevel().String() != "DEBUG" {
		t.Errorf("SlogLevel() = %s, want DEBUG", cfg.SlogLevel())
	}

	limits := cfg.GetDefaultLimits()
	if limits.MaxContentPerMonth == nil || *limits.MaxContentPerMonth != 10 {
		t.Errorf("MaxContentPerMonth = %v, want 10", limits.MaxContentPerMonth)
	}
	if limits.MaxReactionsReceivedPerMonth == nil || *limits.MaxReactionsReceivedPerMonth != 100 {
		t.Errorf("MaxReactionsReceivedPerMonth = %v, want 100", limits.MaxReactionsReceivedPerMonth)
	}
	if limits.MaxReactionsPerItem == nil || *limits.MaxReactionsPerItem != 5 {
		t.Errorf("MaxReactionsPerItem = %v, want 5", limits.MaxReactionsPerItem)
	}
}

// TestLoad_InvalidValues tests that validation rejects bad settings
func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		errMsg string
	}{
		{"unknown db type", map[string]string{"DB_TYPE": "mysql"}, "DB_TYPE"},
		{"unknown storage", map[string]string{"STORAGE_BACKEND": "gridfs"}, "STORAGE_BACKEND"},
		{"s3 without bucket", map[string]string{"STORAGE_BACKEND": "s3"}, "S3_BUCKET"},
		{"s3 half credentials", map[string]string{"STORAGE_BACKEND": "s3", "S3_BUCKET": "b", "S3_ACCESS_KEY_ID": "id"}, "must be set together"},
		{"zero media size", map[string]string{"MAX_MEDIA_SIZE": "0"}, "MAX_MEDIA_SIZE"},
		{"short inactivity", map[string]string{"INACTIVITY_THRESHOLD": "1h"}, "INACTIVITY_THRESHOLD"},
		{"zero activity interval", map[string]string{"ACTIVITY_RECORD_INTERVAL": "0s"}, "ACTIVITY_RECORD_INTERVAL"},
		{"activity interval past threshold", map[string]string{"INACTIVITY_THRESHOLD": "48h", "ACTIVITY_RECORD_INTERVAL": "72h"}, "ACTIVITY_RECORD_INTERVAL"},
		{"zero purge concurrency", map[string]string{"PURGE_CONCURRENCY": "0"}, "PURGE_CONCURRENCY"},
		{"bad log level", map[string]string{"LOG_LEVEL": "trace"}, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Load() error = %v, want error containing %q", err, tt.errMsg)
			}
		})
	}
}

// TestLoad_UnparseableNumbersFallBack tests that malformed numbers use defaults
func TestLoad_UnparseableNumbersFallBack(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("PURGE_CONCURRENCY", "lots")
	t.Setenv("SWEEP_INTERVAL", "daily")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.PurgeConcurrency != 4 {
		t.Errorf("PurgeConcurrency = %d, want default 4", cfg.PurgeConcurrency)
	}
	if cfg.SweepInterval != 24*time.Hour {
		t.Errorf("SweepInterval = %s, want default 24h", cfg.SweepInterval)
	}
}

// TestSetDefaultLimits tests SetDefaultLimits with validation
func TestSetDefaultLimits(t *testing.T) {
	clearEnvVars(t)
	cfg, _ := Load()

	tests := []struct {
		name    string
		limits  models.Limits
		wantErr bool
	}{
		{"all unlimited", models.Limits{}, false},
		{"all set", models.Limits{MaxContentPerMonth: models.IntPtr(3), MaxReactionsReceivedPerMonth: models.IntPtr(30), MaxReactionsPerItem: models.IntPtr(0)}, false},
		{"negative content", models.Limits{MaxContentPerMonth: models.IntPtr(-2)}, true},
		{"negative per item", models.Limits{MaxReactionsPerItem: models.IntPtr(-1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cfg.SetDefaultLimits(tt.limits)
			if tt.wantErr {
				if err == nil {
					t.Errorf("SetDefaultLimits(%+v) succeeded, want error", tt.limits)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetDefaultLimits(%+v) failed: %v", tt.limits, err)
			}

			got := cfg.GetDefaultLimits()
			if !equalLimit(got.MaxContentPerMonth, tt.limits.MaxContentPerMonth) ||
				!equalLimit(got.MaxReactionsReceivedPerMonth, tt.limits.MaxReactionsReceivedPerMonth) ||
				!equalLimit(got.MaxReactionsPerItem, tt.limits.MaxReactionsPerItem) {
				t.Errorf("GetDefaultLimits() = %+v, want %+v", got, tt.limits)
			}
		})
	}
}

// TestSetMaxMediaSize tests SetMaxMediaSize with validation
func TestSetMaxMediaSize(t *testing.T) {
	clearEnvVars(t)
	cfg, _ := Load()

	if err := cfg.SetMaxMediaSize(0); err == nil {
		t.Error("SetMaxMediaSize(0) succeeded, want error")
	}
	if err := cfg.SetMaxMediaSize(1024); err != nil {
		t.Fatalf("SetMaxMediaSize(1024) failed: %v", err)
	}
	if cfg.GetMaxMediaSize() != 1024 {
		t.Errorf("GetMaxMediaSize() = %d, want 1024", cfg.GetMaxMediaSize())
	}
}

// TestThreadSafety tests concurrent access to getters and setters
func TestThreadSafety(t *testing.T) {
	clearEnvVars(t)
	cfg, _ := Load()

	var wg sync.WaitGroup
	iterations := 100
	wg.Add(3)

	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			_ = cfg.GetMaxMediaSize()
			_ = cfg.GetDefaultLimits()
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			cfg.SetMaxMediaSize(int64(1000000 + i))
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			cfg.SetDefaultLimits(models.Limits{MaxReactionsPerItem: models.IntPtr(i)})
		}
	}()

	wg.Wait()
}

func equalLimit(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// clearEnvVars clears all reactshare-related environment variables
func clearEnvVars(t *testing.T) {
	t.Helper()
	envVars := []string{
		"PORT", "PUBLIC_URL", "LOG_LEVEL",
		"DB_TYPE", "DB_PATH",
		"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD",
		"POSTGRES_DB", "POSTGRES_SSLMODE", "POSTGRES_MAX_CONNECTIONS", "POSTGRES_AUTO_MIGRATE",
		"STORAGE_BACKEND", "UPLOAD_DIR",
		"S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "S3_PATH_STYLE",
		"SWEEP_INTERVAL", "INACTIVITY_THRESHOLD", "PURGE_CONCURRENCY", "ACTIVITY_RECORD_INTERVAL",
		"READ_TIMEOUT", "WRITE_TIMEOUT", "MAX_MEDIA_SIZE",
		"DEFAULT_MAX_CONTENT_PER_MONTH", "DEFAULT_MAX_REACTIONS_RECEIVED_PER_MONTH", "DEFAULT_MAX_REACTIONS_PER_ITEM",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}
