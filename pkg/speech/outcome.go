package speech

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// StageStatus describes how a pipeline stage produced its value.
type StageStatus int

const (
	// StageOK means the stage computed its value from real input.
	StageOK StageStatus = iota

	// StageDegraded means the input was degenerate (e.g. silence) and the
	// stage returned its documented neutral value.
	StageDegraded

	// StageFailed means the stage panicked and its neutral value was
	// substituted.
	StageFailed
)

// String returns the lower-case status name.
func (s StageStatus) String() string {
	switch s {
	case StageOK:
		return "ok"
	case StageDegraded:
		return "degraded"
	case StageFailed:
		return "failed"
	}
	return fmt.Sprintf("StageStatus(%d)", int(s))
}

// Outcome is the tagged result of a single stage: a value plus whether it was
// computed or substituted.
type Outcome[T any] struct {
	Value  T
	Status StageStatus
	// Reason explains a non-OK status.
	Reason string
}

// computed wraps a value derived from real input.
func computed[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v, Status: StageOK}
}

// degraded wraps a neutral value substituted for degenerate input.
func degraded[T any](v T, reason string) Outcome[T] {
	return Outcome[T]{Value: v, Status: StageDegraded, Reason: reason}
}

// StageReport records the outcome of one stage of one analysis.
type StageReport struct {
	Name     string
	Status   StageStatus
	Reason   string
	Duration time.Duration
}

// Observer receives pipeline telemetry. Implementations must be safe for
// concurrent use since one Observer serves every analysis of an [Analyzer].
type Observer interface {
	// StageCompleted is called once per stage per analysis.
	StageCompleted(ctx context.Context, stage string, status StageStatus, d time.Duration)

	// AnalysisCompleted is called once per AnalyzeAudio call. outcome is one
	// of "ok", "undecodable" or "insufficient_audio".
	AnalysisCompleted(ctx context.Context, outcome string, d time.Duration)
}

// Analysis outcomes passed to [Observer.AnalysisCompleted].
const (
	OutcomeOK                = "ok"
	OutcomeUndecodable       = "undecodable"
	OutcomeInsufficientAudio = "insufficient_audio"
)

type nopObserver struct{}

func (nopObserver) StageCompleted(context.Context, string, StageStatus, time.Duration) {}
func (nopObserver) AnalysisCompleted(context.Context, string, time.Duration)          {}

// pipelineRun carries the per-call state of one analysis.
type pipelineRun struct {
	ctx      context.Context
	logger   *slog.Logger
	observer Observer
	reports  []StageReport
}

// runStage executes fn as the named stage. A panic inside fn is recovered and
// replaced by fallback with [StageFailed]; every non-OK outcome is logged.
func runStage[T any](r *pipelineRun, name string, fallback T, fn func() Outcome[T]) Outcome[T] {
	start := time.Now()
	res := func() (out Outcome[T]) {
		defer func() {
			if p := recover(); p != nil {
				out = Outcome[T]{Value: fallback, Status: StageFailed, Reason: fmt.Sprint(p)}
			}
		}()
		return fn()
	}()
	d := time.Since(start)

	switch res.Status {
	case StageDegraded:
		r.logger.Debug("speech: stage degraded", "stage", name, "reason", res.Reason)
	case StageFailed:
		r.logger.Error("speech: stage failed, using neutral value", "stage", name, "err", res.Reason)
	}
	r.reports = append(r.reports, StageReport{Name: name, Status: res.Status, Reason: res.Reason, Duration: d})
	r.observer.StageCompleted(r.ctx, name, res.Status, d)
	return res
}
