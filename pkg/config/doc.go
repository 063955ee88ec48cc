// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables
// with sensible defaults, optionally overlaid by a YAML file named in
// AUTHPLANE_CONFIG_FILE. Environment variables win over file values.
//
// # Configuration Structure
//
// Server settings:
//
//	AUTHPLANE_HOST="0.0.0.0"
//	AUTHPLANE_PORT="8080"
//	AUTHPLANE_HEALTH_PORT="9090"
//	AUTHPLANE_READ_TIMEOUT="15s"
//	AUTHPLANE_WRITE_TIMEOUT="15s"
//
// Gateway settings:
//
//	AUTHPLANE_GATEWAY_MODE="remote"  # remote, memory
//	AUTHPLANE_GATEWAY_URL="https://id.internal"
//	AUTHPLANE_GATEWAY_TOKEN="..."
//	AUTHPLANE_GATEWAY_TIMEOUT="10s"
//
// Observability settings:
//
//	AUTHPLANE_LOG_LEVEL="info"  # debug, info, warn, error
//	AUTHPLANE_METRICS_ENABLED="true"
//	AUTHPLANE_OTEL_ENABLED="true"
//	AUTHPLANE_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Gateway: %s\n", cfg.Gateway.Mode)
//
// # Related Packages
//
//   - pkg/gateway: Uses gateway configuration
//   - pkg/observability: Uses observability configuration
package config
