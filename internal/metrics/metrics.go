// Package metrics defines Prometheus metrics for the Buy Box service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "buybox"

// HTTP metrics.
var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	HTTPPanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_panics_total",
		Help:      "Total handler panics recovered, by route.",
	}, []string{"path"})
)

// Health metrics.
var (
	HealthzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "healthz_up",
		Help:      "Whether the last liveness probe succeeded (1) or failed (0).",
	})

	ReadyzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "readyz_up",
		Help:      "Whether the last readiness probe succeeded (1) or failed (0).",
	})
)

// Calculation metrics.
var (
	CalculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "calculations_total",
		Help:      "Total Buy Box results served, by source.",
	}, []string{"source"})

	CalculationErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "calculation_errors_total",
		Help:      "Total Buy Box calculations that returned an error.",
	})

	CalculationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "calculation_duration_seconds",
		Help:      "Duration of full Buy Box computations in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	OffersPerCalculation = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "offers_per_calculation",
		Help:      "Number of competing offers scored per computation.",
		Buckets:   []float64{1, 2, 3, 5, 10, 20, 50, 100},
	})

	WinnerScoreDistribution = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "winner_score_distribution",
		Help:      "Distribution of winning total scores.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11), // 0, 10, 20, ..., 100
	})

	TieBreaksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tie_breaks_total",
		Help:      "Total number of times the tie-break reordered the top two offers.",
	})

	VendorMetricsFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "vendor_metrics_failures_total",
		Help:      "Total vendor metrics lookups that failed and fell back to neutral metrics.",
	})
)

// Cache metrics.
var (
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Total result cache hits.",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Total result cache misses.",
	})

	CacheErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_errors_total",
		Help:      "Total result cache errors, by operation.",
	}, []string{"op"})

	CacheInvalidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_invalidations_total",
		Help:      "Total explicit result cache invalidations.",
	})

	CachePurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_purged_total",
		Help:      "Total expired KV entries removed by the purge job.",
	})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "breaker_state",
		Help:      "Current KV store circuit breaker state (0 closed, 1 open, 2 half-open).",
	}, []string{"breaker"})
)

// Override metrics.
var (
	OverrideOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "override_operations_total",
		Help:      "Total admin override operations, by operation.",
	}, []string{"op"})

	OverrideStoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "override_store_errors_total",
		Help:      "Total override store errors, by operation.",
	}, []string{"op"})

	NotificationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failures_total",
		Help:      "Total number of override audit notification failures.",
	})

	NotificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "notification_duration_seconds",
		Help:      "Duration of override audit webhook calls in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Event consumer metrics.
var (
	InvalidationEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invalidation_events_total",
		Help:      "Total change events consumed, by event type.",
	}, []string{"type"})

	InvalidationEventErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invalidation_event_errors_total",
		Help:      "Total change events that could not be decoded or applied.",
	})
)
