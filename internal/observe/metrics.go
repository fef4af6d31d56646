// Package observe provides application-wide observability primitives for
// speechscope: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the configured metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/speechscope/pkg/speech"
)

// meterName is the instrumentation scope name used for all speechscope metrics.
const meterName = "github.com/MrWong99/speechscope"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
//
// Metrics implements [speech.Observer], so it can be handed straight to
// [speech.WithObserver].
type Metrics struct {
	// AnalysisDuration tracks end-to-end analysis latency. Use with attribute:
	//   attribute.String("outcome", ...)
	AnalysisDuration metric.Float64Histogram

	// StageDuration tracks per-stage latency. Use with attribute:
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// Analyses counts finished analyses by outcome.
	Analyses metric.Int64Counter

	// StageDegradations counts stages that returned a neutral value. Use
	// with attributes:
	//   attribute.String("stage", ...), attribute.String("status", ...)
	StageDegradations metric.Int64Counter

	// AudioSeconds accumulates the duration of analysed audio.
	AudioSeconds metric.Float64Counter

	// InFlight tracks analyses currently running.
	InFlight metric.Int64UpDownCounter

	// ConfigReloads counts hot reloads by result.
	ConfigReloads metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for whole
// analyses, which run from a few milliseconds to tens of seconds.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// stageBuckets covers the much shorter single-stage timings.
var stageBuckets = []float64{
	0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AnalysisDuration, err = m.Float64Histogram("speechscope.analysis.duration",
		metric.WithDescription("Latency of a complete speech analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("speechscope.stage.duration",
		metric.WithDescription("Latency of a single analysis stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Analyses, err = m.Int64Counter("speechscope.analyses",
		metric.WithDescription("Total analyses by outcome."),
	); err != nil {
		return nil, err
	}
	if met.StageDegradations, err = m.Int64Counter("speechscope.stage.degradations",
		metric.WithDescription("Total stages that substituted a neutral value, by stage and status."),
	); err != nil {
		return nil, err
	}
	if met.AudioSeconds, err = m.Float64Counter("speechscope.audio.seconds",
		metric.WithDescription("Total seconds of audio analysed."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.ConfigReloads, err = m.Int64Counter("speechscope.config.reloads",
		metric.WithDescription("Total configuration hot reloads by result."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.InFlight, err = m.Int64UpDownCounter("speechscope.analyses.in_flight",
		metric.WithDescription("Number of analyses currently running."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("speechscope.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// StageCompleted records a stage timing and, for non-OK stages, a
// degradation.
func (m *Metrics) StageCompleted(ctx context.Context, stage string, status speech.StageStatus, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(Attr("stage", stage)))
	if status != speech.StageOK {
		m.StageDegradations.Add(ctx, 1, metric.WithAttributes(
			Attr("stage", stage),
			Attr("status", status.String()),
		))
	}
}

// AnalysisCompleted records an analysis outcome and its latency.
func (m *Metrics) AnalysisCompleted(ctx context.Context, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(Attr("outcome", outcome))
	m.Analyses.Add(ctx, 1, attrs)
	m.AnalysisDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordAudio adds the duration of an analysed clip.
func (m *Metrics) RecordAudio(ctx context.Context, d time.Duration) {
	m.AudioSeconds.Add(ctx, d.Seconds())
}

// RecordConfigReload counts a hot reload; result is "applied" or "rejected".
func (m *Metrics) RecordConfigReload(ctx context.Context, result string) {
	m.ConfigReloads.Add(ctx, 1, metric.WithAttributes(Attr("result", result)))
}

var _ speech.Observer = (*Metrics)(nil)
