package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the delivery engine's prometheus collectors.
type Metrics struct {
	// Dispatcher metrics
	ItemsProcessed  *prometheus.CounterVec
	ItemsFailed     *prometheus.CounterVec
	ItemsRetried    *prometheus.CounterVec
	ClaimBatchSize  prometheus.Histogram
	DispatchLatency *prometheus.HistogramVec
	QueueDepth      prometheus.Gauge

	// Database metrics
	DatabaseOperations *prometheus.CounterVec

	// Campaign metrics
	CampaignsLaunched prometheus.Counter
	FanoutRecipients  prometheus.Histogram
}

// New creates and registers all delivery engine metrics under the given
// namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		ItemsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_items_processed_total",
			Help:      "Total number of queue items delivered successfully",
		}, []string{"channel"}),
		ItemsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_items_failed_total",
			Help:      "Total number of queue items that reached terminal failure",
		}, []string{"channel"}),
		ItemsRetried: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_items_retried_total",
			Help:      "Total number of transient failures scheduled for retry",
		}, []string{"channel"}),
		ClaimBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "claim_batch_size",
			Help:      "Number of rows claimed per dispatcher poll",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		DispatchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent delivering one queue item",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"channel"}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current number of pending queue items",
		}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		CampaignsLaunched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaigns_launched_total",
			Help:      "Total number of campaigns launched",
		}),
		FanoutRecipients: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fanout_recipients",
			Help:      "Recipients matched per campaign launch",
			Buckets:   []float64{0, 10, 100, 1000, 10000, 100000},
		}),
	}
}
