package coreplugin

import (
	"context"
	"errors"
	"testing"

	"github.com/platinummonkey/plughost/pkg/plugins/backend"
	"github.com/platinummonkey/plughost/pkg/plugins/backendplugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type streamHandler struct{}

func (streamHandler) SubscribeStream(ctx context.Context, req *backend.SubscribeStreamRequest) (*backend.SubscribeStreamResponse, error) {
	return &backend.SubscribeStreamResponse{Status: backend.SubscribeStreamStatusOK}, nil
}

func (streamHandler) PublishStream(ctx context.Context, req *backend.PublishStreamRequest) (*backend.PublishStreamResponse, error) {
	return &backend.PublishStreamResponse{Status: backend.PublishStreamStatusPermissionDenied}, nil
}

func (streamHandler) RunStream(ctx context.Context, req *backend.RunStreamRequest, sender *backend.StreamSender) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestCorePlugin(t *testing.T) {
	t.Run("no handlers", func(t *testing.T) {
		ctx := context.Background()
		p := New("test", Opts{}, nil)

		assert.Equal(t, "test", p.PluginID())
		assert.NotNil(t, p.Logger())
		assert.True(t, p.IsManaged())
		assert.False(t, p.Exited())
		assert.False(t, backendplugin.SupportsStreaming(p))

		_, err := p.QueryData(ctx, &backend.QueryDataRequest{})
		assert.ErrorIs(t, err, backendplugin.ErrMethodNotImplemented)
		err = p.CallResource(ctx, &backend.CallResourceRequest{}, nil)
		assert.ErrorIs(t, err, backendplugin.ErrMethodNotImplemented)
		_, err = p.CheckHealth(ctx, &backend.CheckHealthRequest{})
		assert.ErrorIs(t, err, backendplugin.ErrMethodNotImplemented)
		_, err = p.CollectMetrics(ctx, &backend.CollectMetricsRequest{})
		assert.ErrorIs(t, err, backendplugin.ErrMethodNotImplemented)
	})

	t.Run("with handlers", func(t *testing.T) {
		ctx := context.Background()
		healthErr := errors.New("database down")

		p := New("test", Opts{
			QueryDataHandler: backend.QueryDataHandlerFunc(func(ctx context.Context, req *backend.QueryDataRequest) (*backend.QueryDataResponse, error) {
				resp := backend.NewQueryDataResponse()
				resp.Responses["A"] = backend.DataResponse{}
				return resp, nil
			}),
			CheckHealthHandler: backend.CheckHealthHandlerFunc(func(ctx context.Context, req *backend.CheckHealthRequest) (*backend.CheckHealthResult, error) {
				return nil, healthErr
			}),
			CollectMetricsHandler: backend.CollectMetricsHandlerFunc(func(ctx context.Context, req *backend.CollectMetricsRequest) (*backend.CollectMetricsResult, error) {
				return &backend.CollectMetricsResult{PrometheusMetrics: []byte("up 1\n")}, nil
			}),
			CallResourceHandler: backend.CallResourceHandlerFunc(func(ctx context.Context, req *backend.CallResourceRequest, sender backend.CallResourceResponseSender) error {
				return backend.SendPlainText(sender, 200, []byte(req.Path))
			}),
		}, nil)

		resp, err := p.QueryData(ctx, &backend.QueryDataRequest{})
		require.NoError(t, err)
		assert.Contains(t, resp.Responses, "A")

		_, err = p.CheckHealth(ctx, &backend.CheckHealthRequest{})
		assert.Same(t, healthErr, err)

		metrics, err := p.CollectMetrics(ctx, &backend.CollectMetricsRequest{})
		require.NoError(t, err)
		assert.Equal(t, "up 1\n", string(metrics.PrometheusMetrics))

		var body string
		err = p.CallResource(ctx, &backend.CallResourceRequest{Path: "status"}, backend.CallResourceResponseSenderFunc(func(r *backend.CallResourceResponse) error {
			body = string(r.Body)
			return nil
		}))
		require.NoError(t, err)
		assert.Equal(t, "status", body)
	})
}

func TestCorePlugin_Streaming(t *testing.T) {
	p := New("test", Opts{StreamHandler: streamHandler{}}, nil)
	require.True(t, backendplugin.SupportsStreaming(p))

	s := p.(backend.StreamHandler)
	resp, err := s.PublishStream(context.Background(), &backend.PublishStreamRequest{})
	require.NoError(t, err)
	assert.Equal(t, backend.PublishStreamStatusPermissionDenied, resp.Status)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.RunStream(ctx, &backend.RunStreamRequest{}, nil), context.Canceled)

	_, err = p.QueryData(context.Background(), &backend.QueryDataRequest{})
	assert.ErrorIs(t, err, backendplugin.ErrMethodNotImplemented)
}

func TestCorePlugin_Lifecycle(t *testing.T) {
	ctx := context.Background()
	p := New("test", Opts{}, nil)
	cp := p.(*corePlugin)

	require.NoError(t, p.Start(ctx))
	assert.False(t, cp.IsStopped())
	require.NoError(t, p.Stop(ctx))
	assert.True(t, cp.IsStopped())
	require.NoError(t, p.Start(ctx))
	assert.False(t, cp.IsStopped())

	assert.False(t, p.IsDecommissioned())
	require.NoError(t, p.Decommission())
	require.NoError(t, p.Decommission())
	assert.True(t, p.IsDecommissioned())

	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsDecommissioned(), "decommission is permanent")
}
