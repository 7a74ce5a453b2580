package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec
	StorageErrorsTotal       *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive    prometheus.Gauge
	DBConnectionsIdle      prometheus.Gauge
	DBConnectionsWaitCount prometheus.Gauge

	// Catalog metrics
	DownloadsTotal      *prometheus.CounterVec
	SearchRequestsTotal *prometheus.CounterVec
	PluginsTotal        prometheus.Gauge
	VersionsTotal       prometheus.Gauge

	// Batch job metrics
	JobRunsTotal   *prometheus.CounterVec
	JobRunDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bukget_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bukget_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bukget_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "route"},
		),

		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bukget_storage_operations_total",
				Help: "Total number of storage operations",
			},
			[]string{"operation", "backend", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bukget_storage_operation_duration_seconds",
				Help:    "Storage operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),
		StorageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bukget_storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"operation", "backend"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bukget_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type", "key_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bukget_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type", "key_type"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bukget_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bukget_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bukget_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),

		DownloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bukget_downloads_total",
				Help: "Total number of download redirects",
			},
			[]string{"server", "target"},
		),
		SearchRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bukget_search_requests_total",
				Help: "Total number of search requests",
			},
			[]string{"api_version", "status"},
		),
		PluginsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bukget_plugins_total",
				Help: "Total number of plugins in the catalog",
			},
		),
		VersionsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bukget_versions_total",
				Help: "Total number of plugin versions in the catalog",
			},
		),

		JobRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bukget_job_runs_total",
				Help: "Total number of batch job runs",
			},
			[]string{"job", "status"},
		),
		JobRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bukget_job_run_duration_seconds",
				Help:    "Batch job duration in seconds",
				Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"job"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.StorageErrorsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.DownloadsTotal,
		m.SearchRequestsTotal,
		m.PluginsTotal,
		m.VersionsTotal,
		m.JobRunsTotal,
		m.JobRunDuration,
	)

	return m
}

// RecordCacheHit counts a cache hit. It is safe to call on a nil *Metrics.
func (m *Metrics) RecordCacheHit(cacheType, keyType string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(cacheType, keyType).Inc()
}

// RecordCacheMiss counts a cache miss. It is safe to call on a nil *Metrics.
func (m *Metrics) RecordCacheMiss(cacheType, keyType string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(cacheType, keyType).Inc()
}

// RecordStorageOperation records the outcome and duration of a storage call.
// It is safe to call on a nil *Metrics.
func (m *Metrics) RecordStorageOperation(operation, backend string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
		m.StorageErrorsTotal.WithLabelValues(operation, backend).Inc()
	}
	m.StorageOperationsTotal.WithLabelValues(operation, backend, status).Inc()
	m.StorageOperationDuration.WithLabelValues(operation, backend).Observe(time.Since(start).Seconds())
}

// RecordDownload counts a download redirect. target is "origin" or "mirror".
func (m *Metrics) RecordDownload(server, target string) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(server, target).Inc()
}

// RecordSearch counts a search request by API version and outcome
func (m *Metrics) RecordSearch(apiVersion, status string) {
	if m == nil {
		return
	}
	m.SearchRequestsTotal.WithLabelValues(apiVersion, status).Inc()
}

// RecordJobRun records a batch job run
func (m *Metrics) RecordJobRun(job string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.JobRunsTotal.WithLabelValues(job, status).Inc()
	m.JobRunDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
}

// UpdateDBStats copies connection pool statistics into the database gauges
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics. Requests
// are labelled with the matched route template so path variables do not explode
// label cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeTemplate(r)
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
