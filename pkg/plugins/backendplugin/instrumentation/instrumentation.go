// Package instrumentation decorates backend plugin handles with Prometheus metrics,
// OpenTelemetry spans and debug logging.
package instrumentation

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/plughost/pkg/observability"
	"github.com/platinummonkey/plughost/pkg/plugins/backend"
	"github.com/platinummonkey/plughost/pkg/plugins/backendplugin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	endpointQueryData       = "queryData"
	endpointCallResource    = "callResource"
	endpointCheckHealth     = "checkHealth"
	endpointCollectMetrics  = "collectMetrics"
	endpointSubscribeStream = "subscribeStream"
	endpointPublishStream   = "publishStream"
	endpointRunStream       = "runStream"

	statusOK        = "ok"
	statusCancelled = "cancelled"
	statusError     = "error"
)

// Option configures Wrap
type Option func(*instrumentedPlugin)

// WithOTelMetrics also records every call on the OTLP metric instruments
func WithOTelMetrics(m *observability.OTelMetrics) Option {
	return func(p *instrumentedPlugin) {
		p.otelMetrics = m
	}
}

type instrumentedPlugin struct {
	backendplugin.Plugin

	metrics     *observability.Metrics
	otelMetrics *observability.OTelMetrics
	tracer      trace.Tracer
}

type instrumentedStreamingPlugin struct {
	*instrumentedPlugin
	stream backend.StreamHandler
}

// Wrap instruments every capability call of p. metrics and tracer may be nil. The
// result implements backend.StreamHandler exactly when p does, and returns p's errors
// unchanged.
func Wrap(p backendplugin.Plugin, metrics *observability.Metrics, tracer trace.Tracer, opts ...Option) backendplugin.Plugin {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}

	ip := &instrumentedPlugin{
		Plugin:  p,
		metrics: metrics,
		tracer:  tracer,
	}
	for _, opt := range opts {
		opt(ip)
	}

	if s, ok := p.(backend.StreamHandler); ok {
		return &instrumentedStreamingPlugin{instrumentedPlugin: ip, stream: s}
	}
	return ip
}

// Unwrap returns the decorated handle
func (p *instrumentedPlugin) Unwrap() backendplugin.Plugin {
	return p.Plugin
}

func (p *instrumentedPlugin) QueryData(ctx context.Context, req *backend.QueryDataRequest) (*backend.QueryDataResponse, error) {
	var resp *backend.QueryDataResponse
	err := p.instrument(ctx, endpointQueryData, func(ctx context.Context) (innerErr error) {
		resp, innerErr = p.Plugin.QueryData(ctx, req)
		return
	})
	return resp, err
}

func (p *instrumentedPlugin) CallResource(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
	return p.instrument(ctx, endpointCallResource, func(ctx context.Context) error {
		return p.Plugin.CallResource(ctx, req, sender)
	})
}

func (p *instrumentedPlugin) CheckHealth(ctx context.Context, req *backend.CheckHealthRequest) (*backend.CheckHealthResult, error) {
	var res *backend.CheckHealthResult
	err := p.instrument(ctx, endpointCheckHealth, func(ctx context.Context) (innerErr error) {
		res, innerErr = p.Plugin.CheckHealth(ctx, req)
		return
	})
	return res, err
}

func (p *instrumentedPlugin) CollectMetrics(ctx context.Context, req *backend.CollectMetricsRequest) (*backend.CollectMetricsResult, error) {
	var res *backend.CollectMetricsResult
	err := p.instrument(ctx, endpointCollectMetrics, func(ctx context.Context) (innerErr error) {
		res, innerErr = p.Plugin.CollectMetrics(ctx, req)
		return
	})
	return res, err
}

func (p *instrumentedStreamingPlugin) SubscribeStream(ctx context.Context, req *backend.SubscribeStreamRequest) (*backend.SubscribeStreamResponse, error) {
	var resp *backend.SubscribeStreamResponse
	err := p.instrument(ctx, endpointSubscribeStream, func(ctx context.Context) (innerErr error) {
		resp, innerErr = p.stream.SubscribeStream(ctx, req)
		return
	})
	return resp, err
}

func (p *instrumentedStreamingPlugin) PublishStream(ctx context.Context, req *backend.PublishStreamRequest) (*backend.PublishStreamResponse, error) {
	var resp *backend.PublishStreamResponse
	err := p.instrument(ctx, endpointPublishStream, func(ctx context.Context) (innerErr error) {
		resp, innerErr = p.stream.PublishStream(ctx, req)
		return
	})
	return resp, err
}

func (p *instrumentedStreamingPlugin) RunStream(ctx context.Context, req *backend.RunStreamRequest, sender *backend.StreamSender) error {
	return p.instrument(ctx, endpointRunStream, func(ctx context.Context) error {
		return p.stream.RunStream(ctx, req, sender)
	})
}

func (p *instrumentedPlugin) instrument(ctx context.Context, endpoint string, fn func(context.Context) error) error {
	pluginID := p.PluginID()
	start := time.Now()

	ctx, span := p.tracer.Start(ctx, "plugin."+endpoint, trace.WithAttributes(
		attribute.String("plugin_id", pluginID),
		attribute.String("endpoint", endpoint),
	))
	defer span.End()

	err := fn(ctx)
	elapsed := time.Since(start)
	status := requestStatus(ctx, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.UpdateLoggerWithTraceContext(ctx, p.Logger()).
			WithError(err).
			WithField("endpoint", endpoint).
			Debug("Plugin request failed")
	}

	if p.metrics != nil {
		p.metrics.PluginRequestsTotal.WithLabelValues(pluginID, endpoint, status).Inc()
		p.metrics.PluginRequestDuration.WithLabelValues(pluginID, endpoint).Observe(elapsed.Seconds())
	}
	p.otelMetrics.RecordPluginRequest(ctx, pluginID, endpoint, status, elapsed)

	return err
}

func requestStatus(ctx context.Context, err error) string {
	if err == nil {
		return statusOK
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return statusCancelled
	}
	return statusError
}
