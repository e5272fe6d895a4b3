package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/fjmerc/reactshare/internal/models"
)

// Database backends
const (
	DBTypeSQLite   = "sqlite"
	DBTypePostgres = "postgres"
)

// Media store backends
const (
	StorageFilesystem = "filesystem"
	StorageS3         = "s3"
)

// Config holds the service configuration.
// Fields set at startup are read-only afterwards; quota defaults and the media
// size limit can be changed at runtime through the setters and are guarded by mu.
type Config struct {
	mu sync.RWMutex

	Port      string
	PublicURL string // Optional: override auto-detected URL for share links
	LogLevel  string

	DBType     string
	DBPath     string
	PostgreSQL *PostgreSQLConfig

	StorageBackend string
	UploadDir      string
	S3             *S3Config

	SweepInterval       time.Duration
	InactivityThreshold time.Duration
	PurgeConcurrency    int

	// ActivityInterval throttles last_login writes per account
	ActivityInterval time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// mutable at runtime
	maxMediaSize                        int64
	defaultMaxContentPerMonth           int // -1 = unlimited
	defaultMaxReactionsReceivedPerMonth int // -1 = unlimited
	defaultMaxReactionsPerItem          int // -1 = unlimited
}

// PostgreSQLConfig holds PostgreSQL connection settings.
type PostgreSQLConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	SSLMode        string
	MaxConnections int
	AutoMigrate    bool
}

// S3Config holds S3-compatible media store settings.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // custom endpoint for MinIO and other S3-compatible stores
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// Load reads configuration from the environment.
// A .env file in the working directory is loaded first when present; real
// environment variables take precedence over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded environment from .env")
	}

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		PublicURL: getEnv("PUBLIC_URL", ""),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),

		DBType: strings.ToLower(getEnv("DB_TYPE", DBTypeSQLite)),
		DBPath: getEnv("DB_PATH", "./reactshare.db"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageFilesystem)),
		UploadDir:      getEnv("UPLOAD_DIR", "./media"),

		SweepInterval:       getEnvDuration("SWEEP_INTERVAL", 24*time.Hour),
		InactivityThreshold: getEnvDuration("INACTIVITY_THRESHOLD", 365*24*time.Hour),
		PurgeConcurrency:    getEnvInt("PURGE_CONCURRENCY", 4),
		ActivityInterval:    getEnvDuration("ACTIVITY_RECORD_INTERVAL", time.Hour),

		ReadTimeout:  getEnvDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getEnvDuration("WRITE_TIMEOUT", 2*time.Minute),

		maxMediaSize:                        getEnvInt64("MAX_MEDIA_SIZE", 52428800), // 50MB
		defaultMaxContentPerMonth:           getEnvInt("DEFAULT_MAX_CONTENT_PER_MONTH", -1),
		defaultMaxReactionsReceivedPerMonth: getEnvInt("DEFAULT_MAX_REACTIONS_RECEIVED_PER_MONTH", -1),
		defaultMaxReactionsPerItem:          getEnvInt("DEFAULT_MAX_REACTIONS_PER_ITEM", -1),
	}

	if cfg.DBType == DBTypePostgres {
		cfg.PostgreSQL = &PostgreSQLConfig{
			Host:           getEnv("POSTGRES_HOST", "localhost"),
			Port:           getEnvInt("POSTGRES_PORT", 5432),
			User:           getEnv("POSTGRES_USER", "reactshare"),
			Password:       getEnv("POSTGRES_PASSWORD", ""),
			Database:       getEnv("POSTGRES_DB", "reactshare"),
			SSLMode:        getEnv("POSTGRES_SSLMODE", "prefer"),
			MaxConnections: getEnvInt("POSTGRES_MAX_CONNECTIONS", 25),
			AutoMigrate:    getEnvBool("POSTGRES_AUTO_MIGRATE", true),
		}
	}

	if cfg.StorageBackend == StorageS3 {
		cfg.S3 = &S3Config{
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			PathStyle:       getEnvBool("S3_PATH_STYLE", false),
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	switch c.DBType {
	case DBTypeSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case DBTypePostgres:
		if c.PostgreSQL.Host == "" || c.PostgreSQL.Database == "" {
			return fmt.Errorf("POSTGRES_HOST and POSTGRES_DB are required when DB_TYPE=postgres")
		}
		if c.PostgreSQL.MaxConnections <= 0 {
			return fmt.Errorf("POSTGRES_MAX_CONNECTIONS must be positive, got %d", c.PostgreSQL.MaxConnections)
		}
	default:
		return fmt.Errorf("DB_TYPE must be %q or %q, got %q", DBTypeSQLite, DBTypePostgres, c.DBType)
	}

	switch c.StorageBackend {
	case StorageFilesystem:
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR cannot be empty")
		}
	case StorageS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
		if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
			return fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageFilesystem, StorageS3, c.StorageBackend)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}

	if c.maxMediaSize <= 0 {
		return fmt.Errorf("MAX_MEDIA_SIZE must be positive, got %d", c.maxMediaSize)
	}

	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}

	if c.InactivityThreshold < 24*time.Hour {
		return fmt.Errorf("INACTIVITY_THRESHOLD must be at least 24h, got %s", c.InactivityThreshold)
	}

	if c.ActivityInterval <= 0 || c.ActivityInterval >= c.InactivityThreshold {
		return fmt.Errorf("ACTIVITY_RECORD_INTERVAL must be positive and below INACTIVITY_THRESHOLD, got %s", c.ActivityInterval)
	}

	if c.PurgeConcurrency <= 0 {
		return fmt.Errorf("PURGE_CONCURRENCY must be positive, got %d", c.PurgeConcurrency)
	}

	return nil
}

// Thread-safe getters and setters for runtime-mutable fields

// GetMaxMediaSize returns the maximum accepted media upload size in bytes.
func (c *Config) GetMaxMediaSize() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxMediaSize
}

// SetMaxMediaSize updates the maximum media upload size.
func (c *Config) SetMaxMediaSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("max media size must be positive, got %d", size)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxMediaSize = size
	return nil
}

// GetDefaultLimits returns the limits applied to newly created accounts.
// Unlimited values are returned as nil.
func (c *Config) GetDefaultLimits() models.Limits {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.Limits{
		MaxContentPerMonth:           limitPtr(c.defaultMaxContentPerMonth),
		MaxReactionsReceivedPerMonth: limitPtr(c.defaultMaxReactionsReceivedPerMonth),
		MaxReactionsPerItem:          limitPtr(c.defaultMaxReactionsPerItem),
	}
}

// SetDefaultLimits updates the limits applied to newly created accounts.
// A nil limit means unlimited. Existing accounts are not changed.
func (c *Config) SetDefaultLimits(limits models.Limits) error {
	for name, v := range map[string]*int{
		"max content per month":            limits.MaxContentPerMonth,
		"max reactions received per month": limits.MaxReactionsReceivedPerMonth,
		"max reactions per item":           limits.MaxReactionsPerItem,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be 0 or positive, got %d", name, *v)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultMaxContentPerMonth = limitValue(limits.MaxContentPerMonth)
	c.defaultMaxReactionsReceivedPerMonth = limitValue(limits.MaxReactionsReceivedPerMonth)
	c.defaultMaxReactionsPerItem = limitValue(limits.MaxReactionsPerItem)
	return nil
}

// SlogLevel maps LogLevel to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func limitPtr(v int) *int {
	if v < 0 {
		return nil
	}
	return &v
}

func limitValue(v *int) int {
	if v == nil {
		return -1
	}
	return *v
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("36h", "15m").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
