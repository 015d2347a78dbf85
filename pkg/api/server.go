package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/plughost/pkg/observability"
	"github.com/platinummonkey/plughost/pkg/plugins"
	"github.com/platinummonkey/plughost/pkg/plugins/markdown"
	"github.com/sirupsen/logrus"
)

// Registry is the view of the plugin registry the API serves from
type Registry interface {
	Plugin(ctx context.Context, id string) (*plugins.Plugin, bool)
	DTO(ctx context.Context, id string) (plugins.PluginDTO, bool)
	DTOs(ctx context.Context) []plugins.PluginDTO
}

// DocCache serves plugin documentation pages
type DocCache interface {
	Get(ctx context.Context, src markdown.Source, name string) []byte
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger used for failed plugin calls
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithDocCache serves markdown through cache instead of reading plugin files on every request
func WithDocCache(cache DocCache) Option {
	return func(s *Server) {
		s.docs = cache
	}
}

// WithMetrics records HTTP metrics for every matched route, labelled by route template
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// Server routes HTTP requests to registered plugins
type Server struct {
	registry Registry
	docs     DocCache
	metrics  *observability.Metrics
	router   *mux.Router
	log      logrus.FieldLogger
}

// NewServer creates a new API server
func NewServer(registry Registry, opts ...Option) *Server {
	s := &Server{
		registry: registry,
		router:   mux.NewRouter(),
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics, routeTemplate))
	}
	s.router.Use(pluginContext)

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/plugins", s.listPlugins).Methods(http.MethodGet)
	s.router.HandleFunc("/api/plugins/{pluginId}", s.getPlugin).Methods(http.MethodGet)
	s.router.HandleFunc("/api/plugins/{pluginId}/markdown/{name}", s.getMarkdown).Methods(http.MethodGet)

	// Backend capabilities
	s.router.HandleFunc("/api/plugins/{pluginId}/health", s.checkHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/plugins/{pluginId}/metrics", s.collectMetrics).Methods(http.MethodGet)
	s.router.HandleFunc("/api/plugins/{pluginId}/query", s.queryData).Methods(http.MethodPost)
	s.router.HandleFunc("/api/plugins/{pluginId}/resources", s.callResource)
	s.router.HandleFunc("/api/plugins/{pluginId}/resources/{path:.*}", s.callResource)

	// Streams
	s.router.HandleFunc("/api/plugins/{pluginId}/streams/{path:.*}", s.runStream).Methods(http.MethodGet)
	s.router.HandleFunc("/api/plugins/{pluginId}/streams/{path:.*}", s.publishStream).Methods(http.MethodPost)

	// Static assets
	s.router.HandleFunc("/public/plugins/{pluginId}/{path:.*}", s.getPublicFile).Methods(http.MethodGet, http.MethodHead)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routeTemplate labels metrics with the matched route template rather than the raw path
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// pluginContext stores the plugin id of plugin-scoped routes in the request context
func pluginContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := mux.Vars(r)["pluginId"]; id != "" {
			r = r.WithContext(observability.WithPluginID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// logger prefers the request-scoped logger installed by the request ID middleware
func (s *Server) logger(ctx context.Context) logrus.FieldLogger {
	if _, ok := ctx.Value(observability.LoggerKey).(logrus.FieldLogger); ok {
		return observability.FromContext(ctx)
	}
	if id := observability.GetPluginID(ctx); id != "" {
		return s.log.WithField("plugin_id", id)
	}
	return s.log
}
