package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/plughost/pkg/httputil"
	"github.com/platinummonkey/plughost/pkg/plugins"
	"github.com/platinummonkey/plughost/pkg/plugins/backend"
	"github.com/platinummonkey/plughost/pkg/plugins/backendplugin"
)

const metricsContentType = "text/plain; version=0.0.4; charset=utf-8"

// listPlugins handles GET /api/plugins
func (s *Server) listPlugins(w http.ResponseWriter, r *http.Request) {
	var filter plugins.Type
	if t := httputil.ParseQueryString(r, "type", ""); t != "" {
		filter = plugins.Type(t)
		if !filter.IsValid() {
			httputil.WriteBadRequest(w, r, fmt.Sprintf("unknown plugin type: %s", t))
			return
		}
	}

	summaries := []PluginSummary{}
	for _, dto := range s.registry.DTOs(r.Context()) {
		if filter != "" && dto.Type() != filter {
			continue
		}
		summaries = append(summaries, newPluginSummary(dto))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})

	_ = httputil.WriteSuccess(w, summaries)
}

// getPlugin handles GET /api/plugins/{pluginId}
func (s *Server) getPlugin(w http.ResponseWriter, r *http.Request) {
	dto, ok := s.dto(w, r)
	if !ok {
		return
	}
	_ = httputil.WriteSuccess(w, newPluginDetails(dto))
}

// getMarkdown handles GET /api/plugins/{pluginId}/markdown/{name}
func (s *Server) getMarkdown(w http.ResponseWriter, r *http.Request) {
	dto, ok := s.dto(w, r)
	if !ok {
		return
	}
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}

	var doc []byte
	if s.docs != nil {
		doc = s.docs.Get(r.Context(), dto, name)
	} else {
		doc = dto.Markdown(name)
	}
	if len(doc) == 0 {
		httputil.WriteNotFound(w, r, fmt.Sprintf("plugin %s has no %s page", dto.ID(), name))
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// checkHealth handles GET /api/plugins/{pluginId}/health
func (s *Server) checkHealth(w http.ResponseWriter, r *http.Request) {
	p, ok := s.plugin(w, r)
	if !ok {
		return
	}

	result, err := p.CheckHealth(r.Context(), &backend.CheckHealthRequest{
		PluginContext: pluginContextFor(p),
		Headers:       flattenHeaders(r.Header),
	})
	if err != nil {
		s.writePluginError(w, r, p.ID, fmt.Errorf("%w: %w", backendplugin.ErrHealthCheckFailed, err))
		return
	}
	if result == nil {
		result = &backend.CheckHealthResult{Status: backend.HealthStatusUnknown}
	}

	resp := HealthResponse{Status: result.Status.String(), Message: result.Message}
	if len(result.JSONDetails) > 0 && json.Valid(result.JSONDetails) {
		resp.Details = result.JSONDetails
	}

	status := http.StatusOK
	if result.Status != backend.HealthStatusOk {
		status = http.StatusServiceUnavailable
	}
	_ = httputil.WriteJSON(w, status, resp)
}

// collectMetrics handles GET /api/plugins/{pluginId}/metrics
func (s *Server) collectMetrics(w http.ResponseWriter, r *http.Request) {
	p, ok := s.plugin(w, r)
	if !ok {
		return
	}

	result, err := p.CollectMetrics(r.Context(), &backend.CollectMetricsRequest{PluginContext: pluginContextFor(p)})
	if err != nil {
		s.writePluginError(w, r, p.ID, err)
		return
	}

	w.Header().Set("Content-Type", metricsContentType)
	w.WriteHeader(http.StatusOK)
	if result != nil {
		_, _ = w.Write(result.PrometheusMetrics)
	}
}

// queryData handles POST /api/plugins/{pluginId}/query
func (s *Server) queryData(w http.ResponseWriter, r *http.Request) {
	p, ok := s.plugin(w, r)
	if !ok {
		return
	}

	var req backend.QueryDataRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Queries) == 0 {
		httputil.WriteBadRequest(w, r, "at least one query is required")
		return
	}
	req.PluginContext.PluginID = p.ID
	if req.Headers == nil {
		req.Headers = flattenHeaders(r.Header)
	}

	resp, err := p.QueryData(r.Context(), &req)
	if err != nil {
		s.writePluginError(w, r, p.ID, err)
		return
	}
	if resp == nil {
		resp = backend.NewQueryDataResponse()
	}
	_ = httputil.WriteSuccess(w, resp)
}

// callResource handles {any} /api/plugins/{pluginId}/resources/{path}
func (s *Server) callResource(w http.ResponseWriter, r *http.Request) {
	p, ok := s.plugin(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequest(w, r, fmt.Sprintf("failed to read request body: %v", err))
		return
	}

	req := &backend.CallResourceRequest{
		PluginContext: pluginContextFor(p),
		Path:          mux.Vars(r)["path"],
		Method:        r.Method,
		URL:           r.URL.String(),
		Headers:       r.Header.Clone(),
		Body:          body,
	}

	sender := &resourceResponseWriter{w: w}
	if err := p.CallResource(r.Context(), req, sender); err != nil {
		if !sender.started {
			s.writePluginError(w, r, p.ID, err)
			return
		}
		s.logger(r.Context()).WithError(err).Warn("Resource call failed after response started")
		return
	}
	if !sender.started {
		w.WriteHeader(http.StatusNoContent)
	}
}

// runStream handles GET /api/plugins/{pluginId}/streams/{path} as server-sent events
func (s *Server) runStream(w http.ResponseWriter, r *http.Request) {
	p, ok := s.plugin(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	channel := mux.Vars(r)["path"]

	sub, err := p.SubscribeStream(ctx, &backend.SubscribeStreamRequest{
		PluginContext: pluginContextFor(p),
		Path:          channel,
	})
	if err != nil {
		s.writePluginError(w, r, p.ID, err)
		return
	}
	if sub == nil {
		sub = &backend.SubscribeStreamResponse{Status: backend.SubscribeStreamStatusNotFound}
	}
	if !s.subscribeAllowed(w, r, sub.Status, channel) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteInternalError(w, r, errors.New("streaming is not supported by this connection"))
		return
	}

	// streams outlive the server write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := &eventWriter{w: w, flusher: flusher}
	defer events.close()

	if sub.InitialData != nil {
		if err := events.write(sub.InitialData.Data()); err != nil {
			return
		}
	}

	sender := backend.NewStreamSender(backend.StreamPacketSenderFunc(func(packet *backend.StreamPacket) error {
		return events.write(packet.Data)
	}))

	err = p.RunStream(ctx, &backend.RunStreamRequest{PluginContext: pluginContextFor(p), Path: channel}, sender)
	if err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
		s.logger(ctx).WithError(err).WithField("channel", channel).Warn("Stream ended with error")
	}
}

// publishStream handles POST /api/plugins/{pluginId}/streams/{path}
func (s *Server) publishStream(w http.ResponseWriter, r *http.Request) {
	p, ok := s.plugin(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequest(w, r, fmt.Sprintf("failed to read request body: %v", err))
		return
	}
	if len(body) > 0 && !json.Valid(body) {
		httputil.WriteBadRequest(w, r, "stream data must be valid JSON")
		return
	}

	channel := mux.Vars(r)["path"]
	resp, err := p.PublishStream(r.Context(), &backend.PublishStreamRequest{
		PluginContext: pluginContextFor(p),
		Path:          channel,
		Data:          body,
	})
	if err != nil {
		s.writePluginError(w, r, p.ID, err)
		return
	}
	if resp == nil {
		resp = &backend.PublishStreamResponse{}
	}

	switch resp.Status {
	case backend.PublishStreamStatusNotFound:
		httputil.WriteNotFound(w, r, fmt.Sprintf("stream %s not found", channel))
	case backend.PublishStreamStatusPermissionDenied:
		httputil.WriteErrorMessage(w, r, http.StatusForbidden, fmt.Sprintf("publishing to stream %s is not allowed", channel))
	default:
		_ = httputil.WriteSuccess(w, PublishResponse{Data: resp.Data})
	}
}

// getPublicFile handles GET /public/plugins/{pluginId}/{path}
func (s *Server) getPublicFile(w http.ResponseWriter, r *http.Request) {
	dto, ok := s.dto(w, r)
	if !ok {
		return
	}
	name, ok := httputil.ParsePathStringOrError(w, r, "path")
	if !ok {
		return
	}
	if dto.StaticRoute() == nil {
		httputil.WriteNotFound(w, r, fmt.Sprintf("plugin %s has no static files", dto.ID()))
		return
	}

	content, modTime, err := dto.File(name)
	if err != nil {
		// Files outside the plugin root are reported the same way as missing ones
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			httputil.WriteNotFound(w, r, fmt.Sprintf("file %s not found", name))
			return
		}
		s.logger(r.Context()).WithError(err).WithField("file", name).Error("Failed to read plugin file")
		httputil.WriteInternalError(w, r, errors.New("failed to read plugin file"))
		return
	}

	http.ServeContent(w, r, path.Base(name), modTime, content)
}

func (s *Server) plugin(w http.ResponseWriter, r *http.Request) (*plugins.Plugin, bool) {
	id, ok := httputil.ParsePathStringOrError(w, r, "pluginId")
	if !ok {
		return nil, false
	}
	p, found := s.registry.Plugin(r.Context(), id)
	if !found {
		httputil.WriteNotFound(w, r, fmt.Sprintf("plugin %s not found", id))
		return nil, false
	}
	return p, true
}

func (s *Server) dto(w http.ResponseWriter, r *http.Request) (plugins.PluginDTO, bool) {
	id, ok := httputil.ParsePathStringOrError(w, r, "pluginId")
	if !ok {
		return plugins.PluginDTO{}, false
	}
	dto, found := s.registry.DTO(r.Context(), id)
	if !found {
		httputil.WriteNotFound(w, r, fmt.Sprintf("plugin %s not found", id))
		return plugins.PluginDTO{}, false
	}
	return dto, true
}

func (s *Server) subscribeAllowed(w http.ResponseWriter, r *http.Request, status backend.SubscribeStreamStatus, channel string) bool {
	switch status {
	case backend.SubscribeStreamStatusOK:
		return true
	case backend.SubscribeStreamStatusNotFound:
		httputil.WriteNotFound(w, r, fmt.Sprintf("stream %s not found", channel))
	case backend.SubscribeStreamStatusPermissionDenied:
		httputil.WriteErrorMessage(w, r, http.StatusForbidden, fmt.Sprintf("subscribing to stream %s is not allowed", channel))
	default:
		httputil.WriteInternalError(w, r, fmt.Errorf("unknown subscribe status %d", status))
	}
	return false
}

// writePluginError maps plugin call failures to HTTP status codes
func (s *Server) writePluginError(w http.ResponseWriter, r *http.Request, pluginID string, err error) {
	switch {
	case errors.Is(err, backendplugin.ErrPluginUnavailable):
		httputil.WriteServiceUnavailable(w, r, fmt.Sprintf("plugin %s is unavailable", pluginID))
	case errors.Is(err, backendplugin.ErrMethodNotImplemented):
		httputil.WriteNotImplemented(w, r, fmt.Sprintf("plugin %s does not implement this method", pluginID))
	case errors.Is(err, backendplugin.ErrPluginNotRegistered):
		httputil.WriteNotFound(w, r, fmt.Sprintf("plugin %s not found", pluginID))
	case errors.Is(err, backendplugin.ErrHealthCheckFailed):
		s.logger(r.Context()).WithError(err).Error("Plugin health check failed")
		httputil.WriteInternalError(w, r, fmt.Errorf("plugin %s health check failed", pluginID))
	default:
		s.logger(r.Context()).WithError(err).Error("Plugin request failed")
		httputil.WriteInternalError(w, r, errors.New("plugin request failed"))
	}
}

func pluginContextFor(p *plugins.Plugin) backend.PluginContext {
	return backend.PluginContext{PluginID: p.ID}
}

// flattenHeaders keeps the first value of every header
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// resourceResponseWriter copies resource call chunks to the HTTP response. Status and
// headers come from the first chunk.
type resourceResponseWriter struct {
	w       http.ResponseWriter
	started bool
}

func (rw *resourceResponseWriter) Send(resp *backend.CallResourceResponse) error {
	if resp == nil {
		return nil
	}

	if !rw.started {
		for k, values := range resp.Headers {
			for _, v := range values {
				rw.w.Header().Add(k, v)
			}
		}
		status := resp.Status
		if status == 0 {
			status = http.StatusOK
		}
		rw.w.WriteHeader(status)
		rw.started = true
	}

	if len(resp.Body) > 0 {
		if _, err := rw.w.Write(resp.Body); err != nil {
			return err
		}
	}
	if f, ok := rw.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

var errStreamClosed = errors.New("stream closed")

// eventWriter frames stream packets as server-sent events. Plugins may send from
// several goroutines and may keep sending after the handler has returned.
type eventWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	closed  bool
}

func (e *eventWriter) write(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errStreamClosed
	}

	// an event ends at the first blank line, so the payload must stay on one line
	var line bytes.Buffer
	if err := json.Compact(&line, data); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", line.Bytes()); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

func (e *eventWriter) close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}
