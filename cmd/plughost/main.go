package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/platinummonkey/plughost/pkg/api"
	"github.com/platinummonkey/plughost/pkg/config"
	"github.com/platinummonkey/plughost/pkg/httputil"
	"github.com/platinummonkey/plughost/pkg/observability"
	"github.com/platinummonkey/plughost/pkg/plugins/backendplugin/instrumentation"
	"github.com/platinummonkey/plughost/pkg/plugins/loader"
	"github.com/platinummonkey/plughost/pkg/plugins/markdown"
	"github.com/platinummonkey/plughost/pkg/plugins/process"
	"github.com/platinummonkey/plughost/pkg/plugins/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const maxRequestBytes = 10 << 20

func main() {
	configFile := flag.String("config", "", "Path to a YAML config file (overrides PLUGHOST_CONFIG_FILE)")
	flag.Parse()

	if *configFile != "" {
		if err := os.Setenv("PLUGHOST_CONFIG_FILE", *configFile); err != nil {
			logrus.Fatalf("Failed to set config file: %v", err)
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(observability.ParseLogLevel(cfg.Observability.LogLevel), os.Stdout)
	logger.WithField("version", version).Info("Starting plughost")

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("Plughost stopped with error")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := observability.InitOTel(ctx, otelConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	otelMetrics, err := observability.NewOTelMetrics()
	if err != nil {
		return fmt.Errorf("failed to create OpenTelemetry instruments: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(promRegistry)
	}

	// Registry, with the host's own core plugin first
	reg := registry.NewInMemory(registry.WithMetrics(metrics), registry.WithLogger(logger))
	checker := observability.NewHealthChecker(version)

	host := newHostPlugin(version)
	host.SetLogger(logger.WithField("plugin_id", hostPluginID))
	if err := reg.Add(ctx, host); err != nil {
		return fmt.Errorf("failed to register host plugin: %w", err)
	}

	loaded, err := loader.NewLoader(cfg.Plugins.Dirs, cfg.Plugins.Class, logger).LoadInto(ctx, reg)
	if err != nil {
		return fmt.Errorf("failed to load plugins: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"loaded": loaded,
		"dirs":   cfg.Plugins.Dirs,
	}).Info("Plugins loaded")

	client := instrumentation.Wrap(
		newHostBackend(promRegistry, checker, logger),
		metrics,
		observability.Tracer("github.com/platinummonkey/plughost/plugins"),
		instrumentation.WithOTelMetrics(otelMetrics),
	)
	if err := reg.RegisterClient(ctx, hostPluginID, client); err != nil {
		return fmt.Errorf("failed to attach host backend: %w", err)
	}

	checker.AddCheck("registry", true, func(ctx context.Context) error {
		if _, ok := reg.Plugin(ctx, hostPluginID); !ok {
			return errors.New("host plugin is not registered")
		}
		return nil
	})
	checker.AddCheck("plugin_backends", false, func(ctx context.Context) error {
		var exited []string
		for _, p := range reg.Plugins(ctx) {
			if c, ok := p.Client(); ok && c.Exited() {
				exited = append(exited, p.PluginID())
			}
		}
		if len(exited) > 0 {
			return fmt.Errorf("backends exited: %s", strings.Join(exited, ", "))
		}
		return nil
	})

	supervisor := process.NewManager(reg,
		process.WithLogger(logger),
		process.WithMetrics(metrics),
		process.WithOTelMetrics(otelMetrics),
		process.WithKeepAliveInterval(cfg.Plugins.KeepAliveInterval),
		process.WithStopTimeout(cfg.Plugins.StopTimeout),
	)
	if err := supervisor.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start plugin backends: %w", err)
	}

	docs := markdown.NewCache(cfg.Plugins.MarkdownCacheSize,
		markdown.WithLogger(logger),
		markdown.WithMetrics(metrics),
		markdown.WithOTelMetrics(otelMetrics),
		markdown.WithTTL(cfg.Plugins.MarkdownCacheTTL),
	)

	// HTTP
	apiServer := api.NewServer(reg,
		api.WithLogger(logger),
		api.WithDocCache(docs),
		api.WithMetrics(metrics),
	)
	mux := http.NewServeMux()
	mux.Handle("/", apiServer)
	observability.RegisterHealthRoutes(mux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(mux, promRegistry)
	}

	handler := httputil.Chain(
		httputil.RequestIDMiddleware(logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
		httputil.MaxBytesMiddleware(maxRequestBytes),
	)(mux)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      otelhttp.NewHandler(handler, "plughost"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Installs the request base context, so it must precede ListenAndServe
	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return supervisor.Run(gctx)
	})
	if cfg.Plugins.WatchMarkdown {
		g.Go(func() error {
			return docs.Watch(gctx, reg.DTOs(gctx))
		})
	}
	g.Go(func() error {
		logger.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	shutdown.RegisterShutdownFunc("background", func(context.Context) error {
		cancel()
		return g.Wait()
	})
	shutdown.RegisterShutdownFunc("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	return shutdown.WaitForShutdown(gctx)
}

func otelConfig(cfg *config.Config) observability.OTelConfig {
	obs := cfg.Observability
	return observability.OTelConfig{
		Enabled:        obs.OTelEnabled,
		Endpoint:       obs.OTelEndpoint,
		Insecure:       obs.OTelInsecure,
		ServiceName:    obs.OTelServiceName,
		ServiceVersion: obs.OTelServiceVersion,
		Environment:    obs.OTelEnvironment,
		SampleRatio:    obs.OTelSampleRatio,
		PluginDirs:     cfg.Plugins.Dirs,
		PluginClass:    string(cfg.Plugins.Class),
	}
}
