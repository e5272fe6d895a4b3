package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fjmerc/reactshare/internal/config"
	"github.com/fjmerc/reactshare/internal/content"
	"github.com/fjmerc/reactshare/internal/database"
	"github.com/fjmerc/reactshare/internal/deletion"
	"github.com/fjmerc/reactshare/internal/handlers"
	"github.com/fjmerc/reactshare/internal/metrics"
	"github.com/fjmerc/reactshare/internal/quota"
	"github.com/fjmerc/reactshare/internal/reactions"
	"github.com/fjmerc/reactshare/internal/repository"
	"github.com/fjmerc/reactshare/internal/repository/postgres"
	"github.com/fjmerc/reactshare/internal/repository/sqlite"
	"github.com/fjmerc/reactshare/internal/storage"
	"github.com/fjmerc/reactshare/internal/storage/filesystem"
	"github.com/fjmerc/reactshare/internal/storage/s3"
	"github.com/fjmerc/reactshare/internal/utils"
)

// lockCleanupInterval is how often expired distributed locks are purged
const lockCleanupInterval = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting reactshare",
		"port", cfg.Port,
		"db_type", cfg.DBType,
		"storage_backend", cfg.StorageBackend,
		"max_media_size", cfg.GetMaxMediaSize(),
		"sweep_interval", cfg.SweepInterval,
		"inactivity_threshold", cfg.InactivityThreshold,
	)

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.Cleanup()

	store, err := openMediaStore(ctx, cfg)
	if err != nil {
		return err
	}
	slog.Info("media store ready", "store", store.Name())

	quotas := quota.NewManager(repos.Accounts)
	engine := deletion.NewEngine(repos, store, deletion.WithPurgeConcurrency(cfg.PurgeConcurrency))

	prometheus.MustRegister(metrics.NewDatabaseMetricsCollector(repos.Content))

	handler := handlers.NewRouter(handlers.Deps{
		Config:    cfg,
		Repos:     repos,
		Store:     store,
		Quotas:    quotas,
		Content:   content.NewService(repos, quotas, store),
		Reactions: reactions.NewLifecycle(repos, quotas, store),
		Deletion:  engine,
		StartTime: time.Now(),
		Metrics:   promhttp.Handler(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Background workers stop with ctx
	go deletion.StartSweepWorker(ctx, engine, cfg.SweepInterval, cfg.InactivityThreshold)
	go utils.StartLockCleanupWorker(ctx, repos.Locks, lockCleanupInterval)

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		slog.Info("shutdown signal received")

		// Give outstanding requests 10 seconds to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				slog.Error("server close failed", "error", err)
			}
			return err
		}

		slog.Info("server shutdown complete")
		return nil
	}
}

// openRepositories connects the configured database. Cleanup on the result
// closes it.
func openRepositories(ctx context.Context, cfg *config.Config) (*repository.Repositories, error) {
	switch cfg.DBType {
	case config.DBTypePostgres:
		repos, err := postgres.NewRepositories(ctx, cfg.PostgreSQL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		slog.Info("database initialized", "type", repos.DatabaseType, "host", cfg.PostgreSQL.Host)
		return repos, nil

	case config.DBTypeSQLite:
		db, err := database.Initialize(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		repos, err := sqlite.NewRepositories(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return repos, nil

	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.DBType)
	}
}

// openMediaStore creates the configured media store.
func openMediaStore(ctx context.Context, cfg *config.Config) (storage.MediaStore, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		store, err := s3.NewS3Storage(ctx, s3.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PathStyle:       cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 media store: %w", err)
		}
		return store, nil

	case config.StorageFilesystem:
		store, err := filesystem.NewFilesystemStorage(cfg.UploadDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize filesystem media store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}
