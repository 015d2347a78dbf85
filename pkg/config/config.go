package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/plughost/pkg/plugins"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Plugin runtime configuration
	Plugins PluginsConfig `yaml:"plugins"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PluginsConfig holds plugin discovery and supervision settings
type PluginsConfig struct {
	Dirs              []string      `yaml:"dirs"`
	Class             plugins.Class `yaml:"class"`
	KeepAliveInterval time.Duration `yaml:"keepAliveInterval"`
	StopTimeout       time.Duration `yaml:"stopTimeout"`

	// Markdown documentation cache
	MarkdownCacheSize int           `yaml:"markdownCacheSize"`
	MarkdownCacheTTL  time.Duration `yaml:"markdownCacheTTL"`
	WatchMarkdown     bool          `yaml:"watchMarkdown"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"logLevel"`

	// Metrics
	MetricsEnabled bool `yaml:"metricsEnabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otelEnabled"`
	OTelEndpoint       string  `yaml:"otelEndpoint"`
	OTelServiceName    string  `yaml:"otelServiceName"`
	OTelServiceVersion string  `yaml:"otelServiceVersion"`
	OTelInsecure       bool    `yaml:"otelInsecure"` // Use insecure gRPC connection
	OTelEnvironment    string  `yaml:"otelEnvironment"`
	OTelSampleRatio    float64 `yaml:"otelSampleRatio"`
}

// LoadConfig loads configuration from environment variables. When PLUGHOST_CONFIG_FILE
// names a YAML file, the keys it sets override the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Plugins:       loadPluginsConfig(),
		Observability: loadObservabilityConfig(),
	}

	if path := getEnv("PLUGHOST_CONFIG_FILE", ""); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// overlayFile decodes the YAML file at path over c. Keys absent from the file keep
// their current value.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("PLUGHOST_HOST", "0.0.0.0"),
		Port:            getEnv("PLUGHOST_PORT", "8080"),
		ReadTimeout:     getEnvDuration("PLUGHOST_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PLUGHOST_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:     getEnvDuration("PLUGHOST_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("PLUGHOST_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// loadPluginsConfig loads plugin runtime configuration from environment
func loadPluginsConfig() PluginsConfig {
	return PluginsConfig{
		Dirs:              getEnvList("PLUGHOST_PLUGIN_DIRS", []string{"./plugins"}),
		Class:             plugins.Class(getEnv("PLUGHOST_PLUGIN_CLASS", string(plugins.External))),
		KeepAliveInterval: getEnvDuration("PLUGHOST_KEEPALIVE_INTERVAL", 10*time.Second),
		StopTimeout:       getEnvDuration("PLUGHOST_PLUGIN_STOP_TIMEOUT", 30*time.Second),
		MarkdownCacheSize: getEnvInt("PLUGHOST_MARKDOWN_CACHE_SIZE", 256),
		MarkdownCacheTTL:  getEnvDuration("PLUGHOST_MARKDOWN_CACHE_TTL", 0),
		WatchMarkdown:     getEnvBool("PLUGHOST_WATCH_MARKDOWN", true),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           getEnv("PLUGHOST_LOG_LEVEL", "info"),
		MetricsEnabled:     getEnvBool("PLUGHOST_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("PLUGHOST_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("PLUGHOST_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("PLUGHOST_OTEL_SERVICE_NAME", "plughost"),
		OTelServiceVersion: getEnv("PLUGHOST_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("PLUGHOST_OTEL_INSECURE", true),
		OTelEnvironment:    getEnv("PLUGHOST_OTEL_ENVIRONMENT", "development"),
		OTelSampleRatio:    getEnvFloat("PLUGHOST_OTEL_SAMPLE_RATIO", 1.0),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}

	// Validate plugin config
	if len(c.Plugins.Dirs) == 0 {
		return fmt.Errorf("at least one plugin directory is required")
	}
	if !c.Plugins.Class.IsValid() {
		return fmt.Errorf("invalid plugin class: %s (must be core, bundled, external, or remote)", c.Plugins.Class)
	}
	if c.Plugins.KeepAliveInterval < time.Second {
		return fmt.Errorf("keepalive interval must be at least 1s, got %s", c.Plugins.KeepAliveInterval)
	}
	if c.Plugins.MarkdownCacheSize <= 0 {
		return fmt.Errorf("markdown cache size must be positive")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1, got %g", r)
		}
	}

	return nil
}

// Addr returns the listen address of the HTTP server
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable or a default. Empty
// items are dropped.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
