package observability

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	require.NotNil(t, metrics)

	assert.Panics(t, func() { NewMetrics(registry) }, "registering twice must fail")
}

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/3/plugins/{server}/{slug}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"could not find plugin"}`)
	})

	for _, slug := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/3/plugins/bukkit/"+slug, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	count := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/3/plugins/{server}/{slug}", "404"))
	assert.Equal(t, float64(3), count)
}

func TestHTTPMetricsMiddleware_Unmatched(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	handler := HTTPMetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/anything", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "200")))
}

func TestMetrics_Recorders(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordCacheHit("redis", "plugin")
	metrics.RecordCacheHit("redis", "plugin")
	metrics.RecordCacheMiss("lru", "plugins")
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("redis", "plugin")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheMissesTotal.WithLabelValues("lru", "plugins")))

	start := time.Now()
	metrics.RecordStorageOperation("get_plugin", "sql", start, nil)
	metrics.RecordStorageOperation("get_plugin", "sql", start, errors.New("boom"))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("get_plugin", "sql", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StorageErrorsTotal.WithLabelValues("get_plugin", "sql")))

	metrics.RecordDownload("bukkit", "origin")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.DownloadsTotal.WithLabelValues("bukkit", "origin")))

	metrics.RecordSearch("3", "ok")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SearchRequestsTotal.WithLabelValues("3", "ok")))

	metrics.RecordJobRun("rollup", start, nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.JobRunsTotal.WithLabelValues("rollup", "success")))

	metrics.UpdateDBStats(sql.DBStats{InUse: 3, Idle: 2, WaitCount: 7})
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.DBConnectionsActive))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.DBConnectionsIdle))
	assert.Equal(t, float64(7), testutil.ToFloat64(metrics.DBConnectionsWaitCount))
}

func TestMetrics_NilSafe(t *testing.T) {
	var metrics *Metrics
	assert.NotPanics(t, func() {
		metrics.RecordCacheHit("redis", "plugin")
		metrics.RecordCacheMiss("redis", "plugin")
		metrics.RecordStorageOperation("op", "sql", time.Now(), nil)
		metrics.RecordDownload("bukkit", "origin")
		metrics.RecordSearch("1", "ok")
		metrics.RecordJobRun("rollup", time.Now(), nil)
		metrics.UpdateDBStats(sql.DBStats{})
	})
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.PluginsTotal.Set(42)

	serveMux := http.NewServeMux()
	RegisterMetricsEndpoint(serveMux, registry)

	rec := httptest.NewRecorder()
	serveMux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bukget_plugins_total 42")
}
