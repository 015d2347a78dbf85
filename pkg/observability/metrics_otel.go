package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry metric instruments. They are exported over OTLP
// next to the Prometheus registry when OpenTelemetry is enabled.
type OTelMetrics struct {
	// Plugin call metrics
	pluginRequestsTotal   metric.Int64Counter
	pluginRequestDuration metric.Float64Histogram

	// Plugin lifecycle metrics
	pluginRestarts metric.Int64Counter

	// Cache metrics
	cacheHitsTotal   metric.Int64Counter
	cacheMissesTotal metric.Int64Counter
}

// NewOTelMetrics creates the instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	return NewOTelMetricsWithMeter(otel.Meter("github.com/platinummonkey/plughost"))
}

// NewOTelMetricsWithMeter creates the instruments on meter
func NewOTelMetricsWithMeter(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	m.pluginRequestsTotal, err = meter.Int64Counter(
		"plugin.requests",
		metric.WithDescription("Total number of requests dispatched to plugin backends"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create plugin.requests counter: %w", err)
	}

	m.pluginRequestDuration, err = meter.Float64Histogram(
		"plugin.request.duration",
		metric.WithDescription("Plugin backend request duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create plugin.request.duration histogram: %w", err)
	}

	m.pluginRestarts, err = meter.Int64Counter(
		"plugin.restarts",
		metric.WithDescription("Plugin backend restarts by the keepalive check"),
		metric.WithUnit("{restart}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create plugin.restarts counter: %w", err)
	}

	m.cacheHitsTotal, err = meter.Int64Counter(
		"cache.hits",
		metric.WithDescription("Total number of cache hits"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache.hits counter: %w", err)
	}

	m.cacheMissesTotal, err = meter.Int64Counter(
		"cache.misses",
		metric.WithDescription("Total number of cache misses"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache.misses counter: %w", err)
	}

	return m, nil
}

// RecordPluginRequest records one dispatched plugin call
func (m *OTelMetrics) RecordPluginRequest(ctx context.Context, pluginID, endpoint, status string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("plugin.id", pluginID),
		attribute.String("plugin.endpoint", endpoint),
		attribute.String("status", status),
	)
	m.pluginRequestsTotal.Add(ctx, 1, attrs)
	m.pluginRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordPluginRestart records a keepalive restart attempt
func (m *OTelMetrics) RecordPluginRestart(ctx context.Context, pluginID string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.pluginRestarts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("plugin.id", pluginID),
		attribute.String("status", status),
	))
}

// RecordCacheHit records a cache hit
func (m *OTelMetrics) RecordCacheHit(ctx context.Context, cacheType string) {
	if m == nil {
		return
	}
	m.cacheHitsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.type", cacheType)))
}

// RecordCacheMiss records a cache miss
func (m *OTelMetrics) RecordCacheMiss(ctx context.Context, cacheType string) {
	if m == nil {
		return
	}
	m.cacheMissesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.type", cacheType)))
}
