package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotestudio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quotestudio_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Quote Metrics
	QuoteSearchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quotestudio_quote_searches_total",
			Help: "Total number of quote searches",
		},
	)

	QuoteViewsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quotestudio_quote_views_total",
			Help: "Total number of quote views recorded",
		},
	)

	// Export Metrics
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotestudio_exports_total",
			Help: "Total number of PNG exports",
		},
		[]string{"plan"},
	)

	ExportsBlockedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotestudio_exports_blocked_total",
			Help: "Total number of exports blocked before composition",
		},
		[]string{"reason"}, // quota, locked
	)

	ExportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quotestudio_export_duration_seconds",
			Help:    "Time to compose and encode one export",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		},
	)

	// Ingest Metrics
	IngestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotestudio_ingest_runs_total",
			Help: "Total number of ingestion runs",
		},
		[]string{"status"},
	)

	IngestStagedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quotestudio_ingest_staged_total",
			Help: "Total number of quotes staged by ingestion",
		},
	)

	// Classifier Metrics
	ClassifyRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotestudio_classify_runs_total",
			Help: "Total number of classification runs",
		},
		[]string{"status"},
	)

	ClassifyLabeledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotestudio_classify_labeled_total",
			Help: "Total number of quotes labeled by the classifier",
		},
		[]string{"confident"},
	)

	ClassifyModelRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotestudio_classify_model_requests_total",
			Help: "Total number of chat completion requests",
		},
		[]string{"status"},
	)

	ClassifyRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quotestudio_classify_retries_total",
			Help: "Total number of retried chat completion requests",
		},
	)

	// Queue Metrics
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotestudio_events_published_total",
			Help: "Total number of stats events published",
		},
		[]string{"type"},
	)

	EventsConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotestudio_events_consumed_total",
			Help: "Total number of stats events consumed by the worker",
		},
		[]string{"type", "status"},
	)
)
