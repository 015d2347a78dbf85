// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes the host's observability infrastructure: JSON logging with
// logrus, Prometheus collectors for HTTP and plugin calls, health checks, graceful
// shutdown and OTLP export.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.ParseLogLevel("info"), os.Stdout)
//	logger.WithField("plugin_id", id).Info("Plugin registered")
//
// Request-scoped logging:
//
//	ctx = observability.WithRequestID(ctx, reqID)
//	observability.FromContext(ctx).Error("Request failed")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	metrics.PluginRequestsTotal.WithLabelValues(id, "queryData", "ok").Inc()
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.AddCheck("registry", true, func(ctx context.Context) error { ... })
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "plughost",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/plugins/backendplugin/instrumentation: per-call plugin metrics and spans
package observability
