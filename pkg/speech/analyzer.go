package speech

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/speechscope/pkg/audio"
)

// Stage names reported in [StageReport] and to the [Observer].
const (
	StageFrames       = "frames"
	StagePitch        = "pitch"
	StageEnergy       = "energy"
	StageSpectral     = "spectral"
	StageSpeakingRate = "speaking_rate"
	StagePauses       = "pause_frequency"
	StageVoiceQuality = "voice_quality"
	StageConfidence   = "confidence"
	StageEmotion      = "emotion"
	StageFluency      = "fluency"
	StageClarity      = "clarity"
	StageStress       = "stress"
	StageQuality      = "overall_quality"
)

// Analyzer runs the speech analysis pipeline. It holds only immutable
// configuration, so one Analyzer may serve any number of concurrent calls.
type Analyzer struct {
	cfg      Config
	window   []float64
	decoder  audio.Decoder
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// Option configures an [Analyzer].
type Option func(*Analyzer)

// WithLogger sets the logger used for stage diagnostics. Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithObserver registers a telemetry [Observer].
func WithObserver(o Observer) Option {
	return func(a *Analyzer) {
		if o != nil {
			a.observer = o
		}
	}
}

// WithClock overrides the time source used for emotion and serialisation
// timestamps. Pinning it makes serialised output reproducible.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// New validates cfg and returns an [Analyzer] using a private copy of it.
func New(cfg Config, opts ...Option) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("speech: invalid config: %w", err)
	}
	a := &Analyzer{
		cfg:      cfg.clone(),
		window:   hannWindow(cfg.FrameLength),
		logger:   slog.Default(),
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.decoder = audio.Decoder{
		TargetRate: a.cfg.SampleRate,
		RawRate:    a.cfg.RawSampleRate,
		Logger:     a.logger,
	}
	return a, nil
}

// Config returns a copy of the analyzer's configuration.
func (a *Analyzer) Config() Config {
	return a.cfg.clone()
}

// AnalyzeAudio decodes data and analyses the resulting waveform. It returns
// an error wrapping [ErrNoAnalysis] when the buffer cannot be decoded or holds
// less than [Config.MinDuration] of audio. ctx is passed to the [Observer]
// only; the analysis itself never blocks.
func (a *Analyzer) AnalyzeAudio(ctx context.Context, data []byte) (*SpeechAnalysis, error) {
	start := time.Now()
	w, err := a.decoder.Decode(data)
	if err != nil {
		a.logger.Warn("speech: audio could not be decoded", "bytes", len(data), "err", err)
		a.observer.AnalysisCompleted(ctx, OutcomeUndecodable, time.Since(start))
		return nil, fmt.Errorf("%w: %w", ErrNoAnalysis, err)
	}
	return a.analyze(ctx, w, start)
}

// AnalyzeWaveform analyses an already decoded waveform, resampling it to the
// working rate if necessary. It follows the same error contract as
// [Analyzer.AnalyzeAudio].
func (a *Analyzer) AnalyzeWaveform(ctx context.Context, w audio.Waveform) (*SpeechAnalysis, error) {
	start := time.Now()
	if w.SampleRate <= 0 {
		a.observer.AnalysisCompleted(ctx, OutcomeUndecodable, time.Since(start))
		return nil, fmt.Errorf("%w: invalid sample rate %d", ErrNoAnalysis, w.SampleRate)
	}
	if w.SampleRate != a.cfg.SampleRate {
		w = audio.Waveform{
			Samples:    audio.Resample(w.Samples, w.SampleRate, a.cfg.SampleRate),
			SampleRate: a.cfg.SampleRate,
		}
	}
	return a.analyze(ctx, w, start)
}

func (a *Analyzer) analyze(ctx context.Context, w audio.Waveform, start time.Time) (*SpeechAnalysis, error) {
	if w.Len() == 0 || w.Duration() < a.cfg.MinDuration {
		a.logger.Info("speech: audio too short to analyse",
			"duration", w.Duration(),
			"min_duration", a.cfg.MinDuration,
		)
		a.observer.AnalysisCompleted(ctx, OutcomeInsufficientAudio, time.Since(start))
		return nil, fmt.Errorf("%w: %w: got %s, need %s",
			ErrNoAnalysis, ErrInsufficientAudio, w.Duration(), a.cfg.MinDuration)
	}

	r := &pipelineRun{ctx: ctx, logger: a.logger, observer: a.observer}
	seconds := w.Seconds()
	cfg := a.cfg

	// Frame-level extractors.
	frames := runStage(r, StageFrames, newFrameFeatures(0), func() Outcome[frameFeatures] {
		f, err := a.extractFrames(w.Samples)
		if err != nil {
			return Outcome[frameFeatures]{Value: f, Status: StageFailed, Reason: err.Error()}
		}
		return computed(f)
	}).Value
	pitch := runStage(r, StagePitch, pitchStats{}, func() Outcome[pitchStats] {
		return trackPitch(frames.pitch)
	}).Value
	energyOut := runStage(r, StageEnergy, energyStats{}, func() Outcome[energyStats] {
		return summarizeEnergy(frames.rms)
	})
	energy := energyOut.Value
	sp := runStage(r, StageSpectral, spectralSummary{}, func() Outcome[spectralSummary] {
		return summarizeSpectral(frames)
	})

	// Derived estimators.
	wpm := runStage(r, StageSpeakingRate, cfg.Rate.MinWPM, func() Outcome[float64] {
		return estimateSpeakingRate(frames.rms, energy, seconds, cfg.Rate)
	}).Value
	pauses := runStage(r, StagePauses, 0.0, func() Outcome[float64] {
		return estimatePauseFrequency(frames.rms, energy, seconds, cfg.Pause)
	}).Value
	voiceQuality := runStage(r, StageVoiceQuality, cfg.Scoring.NeutralScore, func() Outcome[float64] {
		return assessVoiceQuality(sp, cfg.Spectral, cfg.Scoring.NeutralScore)
	}).Value
	confidence := runStage(r, StageConfidence, cfg.Scoring.NeutralScore, func() Outcome[float64] {
		return estimateConfidence(pitch, energy, wpm, cfg.Scoring)
	}).Value

	// Classifier and composite scorers.
	inferredAt := a.now()
	neutralTones := []EmotionalTone{{Emotion: EmotionNeutral, Confidence: cfg.Emotion.NeutralConfidence, Timestamp: inferredAt}}
	tones := runStage(r, StageEmotion, neutralTones, func() Outcome[[]EmotionalTone] {
		return classifyEmotion(pitch, cfg.Emotion, inferredAt)
	}).Value
	if len(tones) == 0 {
		tones = neutralTones
	}
	fluency := runStage(r, StageFluency, cfg.Scoring.NeutralScore, func() Outcome[float64] {
		return scoreFluency(energyOut, wpm, pauses, cfg.Scoring)
	}).Value
	clarity := runStage(r, StageClarity, cfg.Scoring.NeutralScore, func() Outcome[float64] {
		return scoreClarity(sp, pitch, energy, cfg)
	}).Value
	stress := runStage(r, StageStress, StressIndicators{}, func() Outcome[StressIndicators] {
		return detectStress(pitch, energy, wpm, pauses, cfg.Stress)
	}).Value
	quality := runStage(r, StageQuality, cfg.Scoring.NeutralScore, func() Outcome[float64] {
		return aggregateQuality(confidence, voiceQuality, fluency, clarity, stress.Overall, cfg.Weights)
	}).Value

	result := &SpeechAnalysis{
		Metrics: SpeechMetrics{
			PitchMean:       pitch.mean,
			PitchVariance:   pitch.variance,
			EnergyMean:      energy.mean,
			EnergyVariance:  energy.variance,
			SpeakingRate:    wpm,
			PauseFrequency:  pauses,
			VoiceQuality:    voiceQuality,
			ConfidenceLevel: confidence,
		},
		EmotionalTones:   tones,
		FluencyScore:     fluency,
		ClarityScore:     clarity,
		StressIndicators: stress,
		OverallQuality:   quality,
		AudioDuration:    w.Duration(),
		Stages:           r.reports,
		now:              a.now,
	}

	d := time.Since(start)
	a.logger.Debug("speech: analysis complete",
		"duration", w.Duration(),
		"elapsed", d,
		"overall_quality", quality,
		"degraded_stages", len(result.Degraded()),
	)
	a.observer.AnalysisCompleted(ctx, OutcomeOK, d)
	return result, nil
}
