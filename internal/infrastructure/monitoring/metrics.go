// Package monitoring provides Prometheus metrics for the extraction pipeline.
package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// Extraction metrics
	extractionsTotal   *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec

	// Cleanup metrics
	cleanupRunsTotal      *prometheus.CounterVec
	cleanupErrorsTotal    *prometheus.CounterVec
	cleanupReductionRatio prometheus.Histogram
	cleanupOutputBytes    prometheus.Histogram

	// Model metrics
	aiRequestsTotal   *prometheus.CounterVec
	aiRequestDuration *prometheus.HistogramVec
	aiRetriesTotal    prometheus.Counter
	aiTokensTotal     *prometheus.CounterVec

	// Cache metrics
	cacheOperations            *prometheus.CounterVec
	singleflightFollowersTotal prometheus.Counter

	// Outbound metrics
	fetchRequestsTotal *prometheus.CounterVec
	fetchDuration      prometheus.Histogram
	storageUploads     *prometheus.CounterVec
	storageDuration    *prometheus.HistogramVec

	// Error and uptime metrics
	errorRateTotal *prometheus.CounterVec
	uptimeSeconds  prometheus.Counter
}

// NewMetricsCollector creates a new metrics collector with its own registry
func NewMetricsCollector(logger *zap.Logger) *MetricsCollector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(registry)

	return &MetricsCollector{
		logger:   logger,
		registry: registry,

		// HTTP metrics
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
		httpResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path", "status_code"},
		),

		// Extraction metrics
		extractionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipe_extractions_total",
				Help: "Total number of extraction requests by outcome",
			},
			[]string{"outcome"},
		),
		extractionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recipe_extraction_duration_seconds",
				Help:    "End-to-end extraction duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"outcome"},
		),

		// Cleanup metrics
		cleanupRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "html_cleanup_runs_total",
				Help: "Total number of cleanup runs by winning strategy",
			},
			[]string{"strategy"},
		),
		cleanupErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "html_cleanup_errors_total",
				Help: "Total number of cleanup strategy failures",
			},
			[]string{"strategy"},
		),
		cleanupReductionRatio: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "html_cleanup_reduction_ratio",
				Help:    "Size reduction ratio achieved by cleanup",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		cleanupOutputBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "html_cleanup_output_bytes",
				Help:    "Cleaned HTML size in bytes",
				Buckets: prometheus.ExponentialBuckets(256, 4, 8),
			},
		),

		// Model metrics
		aiRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_requests_total",
				Help: "Total number of generative model requests",
			},
			[]string{"provider", "model", "status"},
		),
		aiRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ai_request_duration_seconds",
				Help:    "Generative model request duration in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"provider", "model"},
		),
		aiRetriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ai_validation_retries_total",
				Help: "Total number of validation-driven model retries",
			},
		),
		aiTokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_tokens_total",
				Help: "Total number of model tokens consumed",
			},
			[]string{"provider", "model", "direction"},
		),

		// Cache metrics
		cacheOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_operations_total",
				Help: "Total number of cache operations",
			},
			[]string{"operation", "backend", "status"},
		),
		singleflightFollowersTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "singleflight_followers_total",
				Help: "Requests that waited on an in-flight build for the same fingerprint",
			},
		),

		// Outbound metrics
		fetchRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "html_fetch_requests_total",
				Help: "Total number of outbound page fetches",
			},
			[]string{"status"},
		),
		fetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "html_fetch_duration_seconds",
				Help:    "Outbound page fetch duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
			},
		),
		storageUploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filestore_uploads_total",
				Help: "Total number of artifact uploads",
			},
			[]string{"provider", "status"},
		),
		storageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filestore_operation_duration_seconds",
				Help:    "FileStore operation duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"provider", "operation"},
		),

		// Error and uptime metrics
		errorRateTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "error_rate_total",
				Help: "Total error rate",
			},
			[]string{"service", "error_type"},
		),
		uptimeSeconds: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "uptime_seconds_total",
				Help: "Total uptime in seconds",
			},
		),
	}
}

// RecordHTTPRequest records one served HTTP request
func (m *MetricsCollector) RecordHTTPRequest(method, path string, statusCode string, duration time.Duration, responseSize int) {
	m.httpRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method, path, statusCode).Observe(duration.Seconds())
	m.httpResponseSize.WithLabelValues(method, path, statusCode).Observe(float64(responseSize))
}

// ExtractionCompleted records the outcome of one extraction request
func (m *MetricsCollector) ExtractionCompleted(outcome string, duration time.Duration) {
	m.extractionsTotal.WithLabelValues(outcome).Inc()
	m.extractionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// CleanupRun records a finished cleanup pass
func (m *MetricsCollector) CleanupRun(strategy string, reductionRatio float64, outputBytes int) {
	m.cleanupRunsTotal.WithLabelValues(strategy).Inc()
	m.cleanupReductionRatio.Observe(reductionRatio)
	m.cleanupOutputBytes.Observe(float64(outputBytes))
}

// CleanupError records a strategy failure inside the cascade
func (m *MetricsCollector) CleanupError(strategy string) {
	m.cleanupErrorsTotal.WithLabelValues(strategy).Inc()
}

// AIRequest records one generative model call
func (m *MetricsCollector) AIRequest(provider, model, status string, duration time.Duration) {
	m.aiRequestsTotal.WithLabelValues(provider, model, status).Inc()
	m.aiRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// AIRetry records a validation-driven retry
func (m *MetricsCollector) AIRetry() {
	m.aiRetriesTotal.Inc()
}

// AITokens records the token consumption of one model call
func (m *MetricsCollector) AITokens(provider, model string, input, output int32) {
	m.aiTokensTotal.WithLabelValues(provider, model, "input").Add(float64(input))
	m.aiTokensTotal.WithLabelValues(provider, model, "output").Add(float64(output))
}

// CacheOperation records one cache store operation
func (m *MetricsCollector) CacheOperation(operation, backend, status string) {
	m.cacheOperations.WithLabelValues(operation, backend, status).Inc()
}

// SingleflightFollower records a request that joined an in-flight build
func (m *MetricsCollector) SingleflightFollower() {
	m.singleflightFollowersTotal.Inc()
}

// FetchCompleted records one outbound page fetch
func (m *MetricsCollector) FetchCompleted(status string, duration time.Duration) {
	m.fetchRequestsTotal.WithLabelValues(status).Inc()
	m.fetchDuration.Observe(duration.Seconds())
}

// StorageOperation records one FileStore operation
func (m *MetricsCollector) StorageOperation(provider, operation, status string, duration time.Duration) {
	m.storageUploads.WithLabelValues(provider, status).Inc()
	m.storageDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordError records a service-level error
func (m *MetricsCollector) RecordError(service, errorType string) {
	m.errorRateTotal.WithLabelValues(service, errorType).Inc()
}

// StartUptimeCounter starts the uptime counter
func (m *MetricsCollector) StartUptimeCounter(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.uptimeSeconds.Inc()
		}
	}
}

// Registry exposes the underlying registry for test assertions
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
