// Package config provides configuration loading from environment variables.
package config

import (
	"time"
)

// ServiceConfig holds configuration for the video jobs service.
type ServiceConfig struct {
	Port              string
	MetricsPort       string
	APIKey            string
	LogFormat         string        // json or console
	LogLevel          string        // debug, info, warn, error
	ShutdownDrainWait time.Duration // Time to wait for load balancer to drain (0 to skip)
	MaxUploadBytes    int64         // Per-request multipart upload cap
}

// LoadServiceConfig loads service configuration from environment variables.
func LoadServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:              GetEnv("PORT", "8080"),
		MetricsPort:       GetEnv("METRICS_PORT", "9090"),
		APIKey:            GetSecretFile(GetEnv("API_KEY_FILE", "")),
		LogFormat:         GetEnv("LOG_FORMAT", "json"),
		LogLevel:          GetEnv("LOG_LEVEL", "info"),
		ShutdownDrainWait: GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),
		MaxUploadBytes:    int64(GetIntEnv("MAX_UPLOAD_BYTES", 32<<20)),
	}
}
