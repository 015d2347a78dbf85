// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings. A YAML file named by PLUGHOST_CONFIG_FILE may
// override any of them.
//
// # Configuration Structure
//
// Server settings:
//
//	PLUGHOST_HOST="0.0.0.0"
//	PLUGHOST_PORT="8080"
//	PLUGHOST_READ_TIMEOUT="15s"
//	PLUGHOST_SHUTDOWN_TIMEOUT="30s"
//
// Plugin settings:
//
//	PLUGHOST_PLUGIN_DIRS="/var/lib/plughost/plugins,./plugins"
//	PLUGHOST_PLUGIN_CLASS="external"  # core, bundled, external, remote
//	PLUGHOST_KEEPALIVE_INTERVAL="10s"
//	PLUGHOST_MARKDOWN_CACHE_SIZE="256"
//	PLUGHOST_WATCH_MARKDOWN="true"
//
// Observability settings:
//
//	PLUGHOST_LOG_LEVEL="info"  # debug, info, warn, error
//	PLUGHOST_METRICS_ENABLED="true"
//	PLUGHOST_OTEL_ENABLED="true"
//	PLUGHOST_OTEL_ENDPOINT="otel-collector:4317"
//
// The same settings in a file:
//
//	server:
//	  port: "8080"
//	plugins:
//	  dirs: [/var/lib/plughost/plugins]
//	  keepAliveInterval: 30s
//	observability:
//	  logLevel: debug
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s\n", cfg.Server.Addr())
//	fmt.Printf("Plugin dirs: %v\n", cfg.Plugins.Dirs)
//
// # Related Packages
//
//   - pkg/plugins/loader: Uses plugin directories and class
//   - pkg/observability: Uses observability configuration
package config
