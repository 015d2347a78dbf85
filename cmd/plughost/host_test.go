package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/platinummonkey/plughost/pkg/observability"
	"github.com/platinummonkey/plughost/pkg/plugins"
	"github.com/platinummonkey/plughost/pkg/plugins/backend"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHostPlugin(t *testing.T) {
	p := newHostPlugin("1.4.0")

	assert.Equal(t, hostPluginID, p.PluginID())
	assert.True(t, p.IsCorePlugin())
	assert.True(t, p.IsApp())
	assert.Nil(t, p.StaticRoute())
	assert.NoError(t, p.JSONData.Validate())

	dto := p.ToDTO()
	assert.Equal(t, plugins.SignatureInternal, dto.Signature())
	assert.Equal(t, "1.4.0", dto.Info().Version)
}

func TestHostBackend_CollectMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_events_total", Help: "Test events"})
	reg.MustRegister(counter)
	counter.Add(3)

	logger, _ := test.NewNullLogger()
	client := newHostBackend(reg, observability.NewHealthChecker("test"), logger)

	result, err := client.CollectMetrics(context.Background(), &backend.CollectMetricsRequest{})
	require.NoError(t, err)

	text := string(result.PrometheusMetrics)
	assert.Contains(t, text, "# HELP test_events_total Test events")
	assert.Contains(t, text, "# TYPE test_events_total counter")
	assert.Contains(t, text, "test_events_total 3")
}

func TestHostBackend_CheckHealth(t *testing.T) {
	tests := []struct {
		name       string
		critical   bool
		checkErr   error
		wantStatus backend.HealthStatus
	}{
		{name: "healthy", critical: true, wantStatus: backend.HealthStatusOk},
		{name: "degraded", critical: false, checkErr: errors.New("slow"), wantStatus: backend.HealthStatusWarning},
		{name: "unhealthy", critical: true, checkErr: errors.New("down"), wantStatus: backend.HealthStatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := observability.NewHealthChecker("test")
			checker.AddCheck("dependency", tt.critical, func(context.Context) error { return tt.checkErr })

			logger, _ := test.NewNullLogger()
			client := newHostBackend(prometheus.NewRegistry(), checker, logger)

			result, err := client.CheckHealth(context.Background(), &backend.CheckHealthRequest{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, result.Status)

			var details map[string]observability.DependencyStatus
			require.NoError(t, json.Unmarshal(result.JSONDetails, &details))
			assert.Contains(t, details, "dependency")
		})
	}
}

func TestHostHealthStatus(t *testing.T) {
	assert.Equal(t, backend.HealthStatusOk, hostHealthStatus(observability.StatusHealthy))
	assert.Equal(t, backend.HealthStatusWarning, hostHealthStatus(observability.StatusDegraded))
	assert.Equal(t, backend.HealthStatusError, hostHealthStatus(observability.StatusUnhealthy))
	assert.Equal(t, backend.HealthStatusUnknown, hostHealthStatus("sideways"))
}
