package config

import "reflect"

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AnalysisChanged is true when any analysis parameter changed; the
	// server swaps in a freshly built analyzer.
	AnalysisChanged bool

	// LimitsChanged is true when the upload limit or analysis timeout
	// changed. Both apply to the next request.
	LimitsChanged bool

	// RestartRequired lists fields that changed but only take effect after
	// a restart (listener, TLS, telemetry).
	RestartRequired []string
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	d.AnalysisChanged = !reflect.DeepEqual(old.Analysis, new.Analysis)

	d.LimitsChanged = old.Server.MaxUploadBytes != new.Server.MaxUploadBytes ||
		old.Server.AnalysisTimeout != new.Server.AnalysisTimeout

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !reflect.DeepEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server.tls")
	}
	if old.Telemetry != new.Telemetry {
		d.RestartRequired = append(d.RestartRequired, "telemetry")
	}

	return d
}
