package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/platinummonkey/plughost/pkg/observability"
	"github.com/platinummonkey/plughost/pkg/plugins"
	"github.com/platinummonkey/plughost/pkg/plugins/backend"
	"github.com/platinummonkey/plughost/pkg/plugins/backendplugin"
	"github.com/platinummonkey/plughost/pkg/plugins/backendplugin/coreplugin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
)

const hostPluginID = "plughost"

// newHostPlugin returns the built-in app that reports on the host itself
func newHostPlugin(version string) *plugins.Plugin {
	return &plugins.Plugin{
		JSONData: plugins.JSONData{
			ID:      hostPluginID,
			Type:    plugins.App,
			Name:    "Plughost",
			Backend: true,
			Info: plugins.Info{
				Description: "Host metrics and readiness",
				Version:     version,
			},
		},
		Class:     plugins.Core,
		Signature: plugins.SignatureInternal,
	}
}

// newHostBackend serves the host's own Prometheus registry and readiness checks
func newHostBackend(gatherer prometheus.Gatherer, checker *observability.HealthChecker, log logrus.FieldLogger) backendplugin.Plugin {
	return coreplugin.New(hostPluginID, coreplugin.Opts{
		CollectMetricsHandler: backend.CollectMetricsHandlerFunc(func(_ context.Context, _ *backend.CollectMetricsRequest) (*backend.CollectMetricsResult, error) {
			families, err := gatherer.Gather()
			if err != nil {
				return nil, fmt.Errorf("failed to gather metrics: %w", err)
			}

			var buf bytes.Buffer
			if err := writeFamilies(&buf, families); err != nil {
				return nil, err
			}
			return &backend.CollectMetricsResult{PrometheusMetrics: buf.Bytes()}, nil
		}),
		CheckHealthHandler: backend.CheckHealthHandlerFunc(func(ctx context.Context, _ *backend.CheckHealthRequest) (*backend.CheckHealthResult, error) {
			status := checker.Check(ctx)

			details, err := json.Marshal(status.Dependencies)
			if err != nil {
				return nil, fmt.Errorf("failed to encode health details: %w", err)
			}

			return &backend.CheckHealthResult{
				Status:      hostHealthStatus(status.Status),
				Message:     fmt.Sprintf("host is %s", status.Status),
				JSONDetails: details,
			}, nil
		}),
	}, log)
}

func writeFamilies(w io.Writer, families []*dto.MetricFamily) error {
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to encode metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func hostHealthStatus(status string) backend.HealthStatus {
	switch status {
	case observability.StatusHealthy:
		return backend.HealthStatusOk
	case observability.StatusDegraded:
		return backend.HealthStatusWarning
	case observability.StatusUnhealthy:
		return backend.HealthStatusError
	default:
		return backend.HealthStatusUnknown
	}
}
