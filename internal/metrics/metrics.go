package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ark_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ark_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Media Metrics
	MediaLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ark_media_loads_total",
			Help: "Total number of reference media loads by source, kind and outcome",
		},
		[]string{"source", "kind", "status"},
	)

	MediaLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ark_media_load_duration_seconds",
			Help:    "Time to decode or probe reference media",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"source", "kind"},
	)

	MediaUploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ark_media_upload_size_bytes",
			Help:    "Size of uploaded reference media in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 2, 14), // 64KB to 512MB
		},
	)

	BlobsLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ark_blobs_live",
			Help: "Number of allocated blob URLs not yet released",
		},
	)

	// Session Metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ark_sessions_active",
			Help: "Number of open practice sessions",
		},
	)

	CameraStreamsHeld = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ark_camera_streams_held",
			Help: "Number of camera streams currently held by sessions",
		},
	)

	ComparisonStartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ark_comparison_starts_total",
			Help: "Total number of comparison start attempts by outcome",
		},
		[]string{"status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ark_start_stage_duration_seconds",
			Help:    "Duration of each comparison start stage",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"stage"},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ark_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ark_storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"operation"},
	)

	// Database Metrics
	DatabaseOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ark_database_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	// Queue Metrics
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ark_events_published_total",
			Help: "Total number of session events published by type and outcome",
		},
		[]string{"type", "status"},
	)

	EventsConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ark_events_consumed_total",
			Help: "Total number of session events consumed by outcome",
		},
		[]string{"status"},
	)

	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ark_webhook_deliveries_total",
			Help: "Total number of webhook deliveries by outcome",
		},
		[]string{"status"},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ark_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ark_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ark_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordMediaLoad records a reference media load outcome
func RecordMediaLoad(source, kind, status string, duration float64) {
	MediaLoadsTotal.WithLabelValues(source, kind, status).Inc()
	MediaLoadDuration.WithLabelValues(source, kind).Observe(duration)
}

// RecordComparisonStart records the outcome of a start pipeline run
func RecordComparisonStart(status string) {
	ComparisonStartsTotal.WithLabelValues(status).Inc()
}

// RecordStage records one start pipeline stage duration
func RecordStage(stage string, duration float64) {
	StageDuration.WithLabelValues(stage).Observe(duration)
}

// RecordStorageOperation records a storage operation
func RecordStorageOperation(operation, status string, duration float64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordDatabaseOperation records a database operation
func RecordDatabaseOperation(operation, status string) {
	DatabaseOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordEventPublish records a session event publish
func RecordEventPublish(eventType, status string) {
	EventsPublishedTotal.WithLabelValues(eventType, status).Inc()
}

// RecordEventConsume records the outcome of handling a consumed event
func RecordEventConsume(status string) {
	EventsConsumedTotal.WithLabelValues(status).Inc()
}

// RecordWebhookDelivery records a webhook delivery outcome
func RecordWebhookDelivery(status string) {
	WebhookDeliveriesTotal.WithLabelValues(status).Inc()
}

// RecordCacheAccess records cache hit or miss
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
