package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ReservedPaths lists the HTTP routes the server registers itself. The
// metrics endpoint may not shadow any of them.
var ReservedPaths = []string{"/v1/analyze", "/healthz", "/readyz"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes must be positive, got %d", cfg.Server.MaxUploadBytes))
	}
	if cfg.Server.AnalysisTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.analysis_timeout must be positive, got %s", cfg.Server.AnalysisTimeout))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must not be negative, got %s", cfg.Server.ShutdownTimeout))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Telemetry
	if cfg.Telemetry.ServiceName == "" {
		errs = append(errs, errors.New("telemetry.service_name is required"))
	}
	switch p := cfg.Telemetry.MetricsPath; {
	case !strings.HasPrefix(p, "/"):
		errs = append(errs, fmt.Errorf("telemetry.metrics_path %q must start with /", p))
	case slices.Contains(ReservedPaths, p):
		errs = append(errs, fmt.Errorf("telemetry.metrics_path %q collides with a built-in route", p))
	}

	// Analysis
	if err := cfg.Analysis.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("analysis: %w", err))
	} else {
		warnUploadTooSmall(cfg)
	}

	return errors.Join(errs...)
}

// warnUploadTooSmall logs a warning when max_upload_bytes cannot hold the
// minimum analysable duration of raw 16-bit PCM.
func warnUploadTooSmall(cfg *Config) {
	need := int64(cfg.Analysis.MinDuration.Seconds()*float64(cfg.Analysis.RawSampleRate)) * 2
	if cfg.Server.MaxUploadBytes > 0 && cfg.Server.MaxUploadBytes < need {
		slog.Warn("server.max_upload_bytes is below the minimum analysable raw PCM size; most uploads will be rejected",
			"max_upload_bytes", cfg.Server.MaxUploadBytes,
			"min_bytes", need,
			"min_duration", cfg.Analysis.MinDuration.Round(time.Millisecond),
		)
	}
}
