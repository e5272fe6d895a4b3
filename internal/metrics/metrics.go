package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counter metrics (monotonically increasing)
var (
	// ContentCreatedTotal counts content creation attempts by status (success, quota_exceeded, failure)
	ContentCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reactshare_content_created_total",
			Help: "Total number of content creation attempts",
		},
		[]string{"status"},
	)

	// ReactionsTotal counts reaction operations by path (init, attach, direct, reply) and status
	ReactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reactshare_reactions_total",
			Help: "Total number of reaction operations",
		},
		[]string{"path", "status"},
	)

	// QuotaRejectionsTotal counts refused operations by quota kind
	QuotaRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reactshare_quota_rejections_total",
			Help: "Total number of operations refused by a quota",
		},
		[]string{"kind"},
	)

	// UsageResetsTotal counts monthly usage resets actually performed
	UsageResetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reactshare_usage_resets_total",
			Help: "Total number of monthly usage resets",
		},
	)

	// CounterIncrementFailuresTotal counts swallowed usage counter increment failures
	CounterIncrementFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reactshare_counter_increment_failures_total",
			Help: "Total number of usage counter increments that failed",
		},
		[]string{"counter"},
	)

	// DeletionsTotal counts cascading deletions by target (content, account) and status
	DeletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reactshare_deletions_total",
			Help: "Total number of cascading deletions",
		},
		[]string{"target", "status"},
	)

	// MediaPurgeFailuresTotal counts media objects left behind after a committed deletion
	MediaPurgeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reactshare_media_purge_failures_total",
			Help: "Total number of media objects that could not be purged",
		},
	)

	// MediaPurgedTotal counts media objects removed after a committed deletion
	MediaPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reactshare_media_purged_total",
			Help: "Total number of media objects purged",
		},
	)

	// MediaUploadsTotal counts media uploads by status (success, failure)
	MediaUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reactshare_media_uploads_total",
			Help: "Total number of media uploads",
		},
		[]string{"status"},
	)

	// SweepRunsTotal counts inactive-account sweeps by status (completed, skipped, failure)
	SweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reactshare_sweep_runs_total",
			Help: "Total number of inactive-account sweeps",
		},
		[]string{"status"},
	)

	// SweepAccountsTotal counts accounts processed by the sweep by outcome (deleted, failed)
	SweepAccountsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reactshare_sweep_accounts_total",
			Help: "Total number of accounts processed by the inactive-account sweep",
		},
		[]string{"outcome"},
	)

	// HTTPRequestsTotal counts total HTTP requests by method, path, and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reactshare_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ErrorsTotal counts application errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reactshare_errors_total",
			Help: "Total number of application errors",
		},
		[]string{"type"},
	)
)

// Histogram metrics (distributions)
var (
	// HTTPRequestDuration tracks HTTP request latency by method and path
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reactshare_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	// MediaSizeBytes tracks distribution of uploaded media sizes
	MediaSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "reactshare_media_size_bytes",
			Help: "Distribution of uploaded media sizes in bytes",
			Buckets: []float64{
				10240,     // 10 KB
				102400,    // 100 KB
				1048576,   // 1 MB
				10485760,  // 10 MB
				52428800,  // 50 MB
				104857600, // 100 MB
				524288000, // 500 MB
			},
		},
	)

	// DeletionDuration tracks cascading deletion time by target, purge included
	DeletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reactshare_deletion_duration_seconds",
			Help:    "Cascading deletion time in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"target"},
	)
)

// Gauge metrics backed by database queries are defined in collector.go

// Health check metrics
var (
	// HealthStatus is a gauge representing current health status
	// Values: 0 = unhealthy, 1 = degraded, 2 = healthy
	HealthStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reactshare_health_status",
			Help: "Current health status (0=unhealthy, 1=degraded, 2=healthy)",
		},
	)

	// HealthCheckDuration tracks health check execution time by endpoint
	HealthCheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reactshare_health_check_duration_seconds",
			Help:    "Health check execution time in seconds",
			Buckets: []float64{.001, .002, .005, .01, .025, .05, .1},
		},
		[]string{"endpoint"},
	)
)
