package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fjmerc/reactshare/internal/repository"
)

// StatsSource reports row counts across the content graph.
type StatsSource interface {
	Stats(ctx context.Context) (*repository.ContentStats, error)
}

// DatabaseMetricsCollector collects metrics from the database on each scrape
type DatabaseMetricsCollector struct {
	source  StatsSource
	timeout time.Duration

	// Metric descriptors
	accountsCount         *prometheus.Desc
	contentItemsCount     *prometheus.Desc
	reactionsCount        *prometheus.Desc
	pendingReactionsCount *prometheus.Desc
	repliesCount          *prometheus.Desc
}

// NewDatabaseMetricsCollector creates a new collector
func NewDatabaseMetricsCollector(source StatsSource) *DatabaseMetricsCollector {
	return &DatabaseMetricsCollector{
		source:  source,
		timeout: 5 * time.Second,
		accountsCount: prometheus.NewDesc(
			"reactshare_accounts_count",
			"Number of accounts",
			nil, nil,
		),
		contentItemsCount: prometheus.NewDesc(
			"reactshare_content_items_count",
			"Number of content items",
			nil, nil,
		),
		reactionsCount: prometheus.NewDesc(
			"reactshare_reactions_count",
			"Number of reactions in any state",
			nil, nil,
		),
		pendingReactionsCount: prometheus.NewDesc(
			"reactshare_pending_reactions_count",
			"Number of reactions still waiting for media",
			nil, nil,
		),
		repliesCount: prometheus.NewDesc(
			"reactshare_replies_count",
			"Number of replies",
			nil, nil,
		),
	}
}

// Describe sends metric descriptors to Prometheus
func (c *DatabaseMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.accountsCount
	ch <- c.contentItemsCount
	ch <- c.reactionsCount
	ch <- c.pendingReactionsCount
	ch <- c.repliesCount
}

// Collect fetches current counts from the database and sends them to Prometheus
func (c *DatabaseMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	stats, err := c.source.Stats(ctx)
	if err != nil {
		slog.Error("failed to query content metrics", "error", err)
		// Send zero values on error to avoid scrape failure
		stats = &repository.ContentStats{}
	}

	ch <- prometheus.MustNewConstMetric(c.accountsCount, prometheus.GaugeValue, float64(stats.Accounts))
	ch <- prometheus.MustNewConstMetric(c.contentItemsCount, prometheus.GaugeValue, float64(stats.ContentItems))
	ch <- prometheus.MustNewConstMetric(c.reactionsCount, prometheus.GaugeValue, float64(stats.Reactions))
	ch <- prometheus.MustNewConstMetric(c.pendingReactionsCount, prometheus.GaugeValue, float64(stats.PendingReactions))
	ch <- prometheus.MustNewConstMetric(c.repliesCount, prometheus.GaugeValue, float64(stats.Replies))
}
