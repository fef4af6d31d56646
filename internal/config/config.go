// Package config provides the configuration schema, loader, and hot-reload
// watcher for the speechscope service.
package config

import (
	"time"

	"github.com/MrWong99/speechscope/pkg/speech"
)

// LogLevel controls log verbosity for the speechscope server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for speechscope.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
// Omitted fields keep the values from [Default].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Analysis tunes the speech analysis pipeline.
	Analysis speech.Config `yaml:"analysis"`
}

// ServerConfig holds network and logging settings for the HTTP server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MaxUploadBytes caps the size of an analysis request body.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// AnalysisTimeout bounds how long a single request may wait for its
	// analysis before the server answers 504.
	AnalysisTimeout time.Duration `yaml:"analysis_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// TelemetryConfig controls metrics and tracing.
type TelemetryConfig struct {
	// ServiceName is reported as the OpenTelemetry service.name resource.
	ServiceName string `yaml:"service_name"`

	// MetricsPath is where the Prometheus scrape endpoint is mounted.
	MetricsPath string `yaml:"metrics_path"`
}

// Default returns the configuration used when no file is given and the base
// onto which YAML files are decoded.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			LogLevel:        LogInfo,
			MaxUploadBytes:  32 << 20,
			AnalysisTimeout: 30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "speechscope",
			MetricsPath: "/metrics",
		},
		Analysis: speech.DefaultConfig(),
	}
}
