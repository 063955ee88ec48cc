package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/authplane/authplane/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Gateway configuration
	Gateway GatewayConfig `yaml:"gateway"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// UnmarshalYAML overlays only the keys present in the file and parses
// durations with time.ParseDuration, so the file can say "15s" like the
// environment variables do.
func (s *ServerConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Host            *string `yaml:"host"`
		Port            *string `yaml:"port"`
		ReadTimeout     *string `yaml:"read_timeout"`
		WriteTimeout    *string `yaml:"write_timeout"`
		IdleTimeout     *string `yaml:"idle_timeout"`
		ShutdownTimeout *string `yaml:"shutdown_timeout"`
		HealthPort      *string `yaml:"health_port"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Host != nil {
		s.Host = *raw.Host
	}
	if raw.Port != nil {
		s.Port = *raw.Port
	}
	if raw.HealthPort != nil {
		s.HealthPort = *raw.HealthPort
	}
	for _, d := range []struct {
		value *string
		dest  *time.Duration
		key   string
	}{
		{raw.ReadTimeout, &s.ReadTimeout, "read_timeout"},
		{raw.WriteTimeout, &s.WriteTimeout, "write_timeout"},
		{raw.IdleTimeout, &s.IdleTimeout, "idle_timeout"},
		{raw.ShutdownTimeout, &s.ShutdownTimeout, "shutdown_timeout"},
	} {
		if d.value == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("server.%s: %w", d.key, err)
		}
		*d.dest = parsed
	}
	return nil
}

// GatewayConfig holds the identity-gateway client configuration.
// Mode "remote" talks to the real identity API; mode "memory" runs the
// in-process gateway for local development.
type GatewayConfig struct {
	Mode    string        `yaml:"mode"`
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// UnmarshalYAML overlays only the keys present in the file, parsing the
// timeout with time.ParseDuration.
func (g *GatewayConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Mode    *string `yaml:"mode"`
		BaseURL *string `yaml:"base_url"`
		Token   *string `yaml:"token"`
		Timeout *string `yaml:"timeout"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Mode != nil {
		g.Mode = *raw.Mode
	}
	if raw.BaseURL != nil {
		g.BaseURL = *raw.BaseURL
	}
	if raw.Token != nil {
		g.Token = *raw.Token
	}
	if raw.Timeout != nil {
		parsed, err := time.ParseDuration(*raw.Timeout)
		if err != nil {
			return fmt.Errorf("gateway.timeout: %w", err)
		}
		g.Timeout = parsed
	}
	return nil
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel     observability.LogLevel `yaml:"-"`
	LogLevelName string                 `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"` // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables, optionally
// overlaid by the YAML file named in AUTHPLANE_CONFIG_FILE. Environment
// variables win over file values.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        defaultServerConfig(),
		Gateway:       defaultGatewayConfig(),
		Observability: defaultObservabilityConfig(),
	}

	if path := os.Getenv("AUTHPLANE_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.Observability.LogLevel = observability.ParseLogLevel(cfg.Observability.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            "8080",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		HealthPort:      "9090",
	}
}

func defaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Mode:    "remote",
		Timeout: 10 * time.Second,
	}
}

func defaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevelName:       "info",
		MetricsEnabled:     true,
		OTelEnabled:        false,
		OTelEndpoint:       "localhost:4317",
		OTelServiceName:    "authplane",
		OTelServiceVersion: "1.0.0",
		OTelInsecure:       true,
	}
}

// loadFile overlays cfg with values from a YAML file.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// applyEnv overlays cfg with AUTHPLANE_* environment variables.
func (c *Config) applyEnv() {
	c.Server.Host = getEnv("AUTHPLANE_HOST", c.Server.Host)
	c.Server.Port = getEnv("AUTHPLANE_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("AUTHPLANE_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("AUTHPLANE_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("AUTHPLANE_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("AUTHPLANE_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.HealthPort = getEnv("AUTHPLANE_HEALTH_PORT", c.Server.HealthPort)

	c.Gateway.Mode = getEnv("AUTHPLANE_GATEWAY_MODE", c.Gateway.Mode)
	c.Gateway.BaseURL = getEnv("AUTHPLANE_GATEWAY_URL", c.Gateway.BaseURL)
	c.Gateway.Token = getEnv("AUTHPLANE_GATEWAY_TOKEN", c.Gateway.Token)
	c.Gateway.Timeout = getEnvDuration("AUTHPLANE_GATEWAY_TIMEOUT", c.Gateway.Timeout)

	c.Observability.LogLevelName = getEnv("AUTHPLANE_LOG_LEVEL", c.Observability.LogLevelName)
	c.Observability.MetricsEnabled = getEnvBool("AUTHPLANE_METRICS_ENABLED", c.Observability.MetricsEnabled)
	c.Observability.OTelEnabled = getEnvBool("AUTHPLANE_OTEL_ENABLED", c.Observability.OTelEnabled)
	c.Observability.OTelEndpoint = getEnv("AUTHPLANE_OTEL_ENDPOINT", c.Observability.OTelEndpoint)
	c.Observability.OTelServiceName = getEnv("AUTHPLANE_OTEL_SERVICE_NAME", c.Observability.OTelServiceName)
	c.Observability.OTelServiceVersion = getEnv("AUTHPLANE_OTEL_SERVICE_VERSION", c.Observability.OTelServiceVersion)
	c.Observability.OTelInsecure = getEnvBool("AUTHPLANE_OTEL_INSECURE", c.Observability.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Gateway.Mode {
	case "remote":
		if c.Gateway.BaseURL == "" {
			return fmt.Errorf("gateway URL is required in remote mode")
		}
	case "memory":
		// Self-contained; nothing to validate.
	default:
		return fmt.Errorf("invalid gateway mode: %s (must be remote or memory)", c.Gateway.Mode)
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway timeout must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
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

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
