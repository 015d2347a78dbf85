package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	require.NotNil(t, metrics)

	metrics.PluginRequestsTotal.WithLabelValues("test-datasource", "queryData", "ok").Inc()
	metrics.PluginsRegistered.WithLabelValues("datasource").Set(2)
	metrics.PluginRestarts.WithLabelValues("test-datasource", "ok").Inc()

	families, err := registry.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["plughost_plugin_request_total"])
	assert.True(t, names["plughost_plugins_registered"])
	assert.True(t, names["plughost_plugin_restarts_total"])

	assert.Panics(t, func() { NewMetrics(registry) }, "registering twice must fail")
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	t.Run("records HTTP metrics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		wrapped := HTTPMetricsMiddleware(metrics, nil)(handler)

		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/test", nil))

		expected := `
# HELP plughost_http_requests_total Total number of HTTP requests
# TYPE plughost_http_requests_total counter
plughost_http_requests_total{method="GET",path="/test",status="200"} 1
`
		assert.NoError(t, testutil.CollectAndCompare(metrics.HTTPRequestsTotal, strings.NewReader(expected)))
		assert.Equal(t, 1, testutil.CollectAndCount(metrics.HTTPRequestDuration))
		assert.Equal(t, 1, testutil.CollectAndCount(metrics.HTTPResponseSize))
	})

	t.Run("uses route label", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		label := func(r *http.Request) string { return "/api/plugins/{pluginId}" }
		wrapped := HTTPMetricsMiddleware(metrics, label)(handler)

		for _, id := range []string{"a", "b", "c"} {
			wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/plugins/"+id, nil))
		}

		assert.Equal(t, float64(3), testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/plugins/{pluginId}", "404")))
	})

	t.Run("records request size", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		wrapped := HTTPMetricsMiddleware(metrics, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.Copy(io.Discard, r.Body)
		}))
		wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/query", strings.NewReader(`{"queries":[]}`)))

		assert.Equal(t, 1, testutil.CollectAndCount(metrics.HTTPRequestSize))
	})
}

func TestResponseWriter_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.Write([]byte("chunk"))
	rw.Flush()

	assert.True(t, rec.Flushed)
	assert.Equal(t, 5, rw.bytesWritten)
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.PluginRequestsTotal.WithLabelValues("test-app", "callResource", "error").Inc()

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `plughost_plugin_request_total{endpoint="callResource",plugin_id="test-app",status="error"} 1`)
}
