package speech

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// Config holds every tunable constant of the analysis pipeline. The values
// returned by [DefaultConfig] are coarse heuristics; recalibrate them against
// labelled recordings rather than treating them as ground truth.
//
// A Config is copied into the [Analyzer] at construction time, so changing a
// Config afterwards does not affect analyzers already built from it.
type Config struct {
	// SampleRate is the working sample rate every waveform is resampled to.
	SampleRate int `yaml:"sample_rate"`

	// RawSampleRate is the sample rate assumed for headerless PCM input.
	RawSampleRate int `yaml:"raw_sample_rate"`

	// FrameLength is the analysis window length in samples.
	FrameLength int `yaml:"frame_length"`

	// HopLength is the step between consecutive analysis windows in samples.
	HopLength int `yaml:"hop_length"`

	// MinDuration is the shortest waveform that is analysed at all. Shorter
	// input yields [ErrNoAnalysis].
	MinDuration time.Duration `yaml:"min_duration"`

	// ParallelExtraction spreads frame-level feature extraction over
	// GOMAXPROCS workers. Results are identical either way.
	ParallelExtraction bool `yaml:"parallel_extraction"`

	Pitch    PitchConfig    `yaml:"pitch"`
	Spectral SpectralConfig `yaml:"spectral"`
	Rate     RateConfig     `yaml:"rate"`
	Pause    PauseConfig    `yaml:"pause"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Stress   StressConfig   `yaml:"stress"`
	Emotion  EmotionConfig  `yaml:"emotion"`
	Weights  QualityWeights `yaml:"weights"`
}

// PitchConfig configures the per-frame pitch tracker.
type PitchConfig struct {
	// MinHz and MaxHz bound the fundamental-frequency search band.
	MinHz float64 `yaml:"min_hz"`
	MaxHz float64 `yaml:"max_hz"`

	// SalienceThreshold is the fraction of a frame's spectral peak that the
	// in-band candidate must reach for the frame to count as voiced.
	SalienceThreshold float64 `yaml:"salience_threshold"`

	// SilenceFloor is the frame RMS below which a frame is unvoiced regardless
	// of its spectrum.
	SilenceFloor float64 `yaml:"silence_floor"`
}

// SpectralConfig configures spectral descriptors and their reference scales.
type SpectralConfig struct {
	// RolloffFraction is the share of spectral magnitude below the rolloff
	// frequency.
	RolloffFraction float64 `yaml:"rolloff_fraction"`

	// CentroidRefHz, RolloffRefHz and ZCRRef normalise the voice-quality
	// descriptors; values at or above the reference score 0.
	CentroidRefHz float64 `yaml:"centroid_ref_hz"`
	RolloffRefHz  float64 `yaml:"rolloff_ref_hz"`
	ZCRRef        float64 `yaml:"zcr_ref"`

	// BrightnessRefHz normalises the spectral centroid for the clarity score.
	BrightnessRefHz float64 `yaml:"brightness_ref_hz"`
}

// RateConfig configures the speaking-rate estimator.
type RateConfig struct {
	// SpeechThreshold is the fraction of mean frame energy above which a frame
	// counts as speech.
	SpeechThreshold float64 `yaml:"speech_threshold"`

	// SyllablesPerWord converts syllable onsets into words.
	SyllablesPerWord float64 `yaml:"syllables_per_word"`

	// MinWPM and MaxWPM clamp the estimate.
	MinWPM float64 `yaml:"min_wpm"`
	MaxWPM float64 `yaml:"max_wpm"`
}

// PauseConfig configures the pause-frequency estimator.
type PauseConfig struct {
	// SilenceThreshold is the fraction of mean frame energy below which a
	// frame counts as silence.
	SilenceThreshold float64 `yaml:"silence_threshold"`

	// MaxPerMinute clamps the estimate from above.
	MaxPerMinute float64 `yaml:"max_per_minute"`
}

// ScoringConfig holds the targets and reference scales shared by the
// confidence, fluency and clarity scorers.
type ScoringConfig struct {
	// TargetWPM is the conversational pace that scores best; WPMTolerance is
	// the distance from it at which the rate sub-score reaches 0.
	TargetWPM    float64 `yaml:"target_wpm"`
	WPMTolerance float64 `yaml:"wpm_tolerance"`

	// TargetPauseRate (pauses per minute) scores best for fluency;
	// PauseTolerance is the distance at which the sub-score reaches 0.
	TargetPauseRate float64 `yaml:"target_pause_rate"`
	PauseTolerance  float64 `yaml:"pause_tolerance"`

	// ConfidencePitchVarianceRef and ClarityPitchVarianceRef scale pitch
	// variance (Hz²) in the 1/(1 + variance/ref) stability terms.
	ConfidencePitchVarianceRef float64 `yaml:"confidence_pitch_variance_ref"`
	ClarityPitchVarianceRef    float64 `yaml:"clarity_pitch_variance_ref"`

	// EnergyScale multiplies mean RMS energy before clamping to [0,1].
	EnergyScale float64 `yaml:"energy_scale"`

	// NeutralScore replaces a sub-score whose input is degenerate.
	NeutralScore float64 `yaml:"neutral_score"`
}

// StressConfig configures the stress detector.
type StressConfig struct {
	// PitchVarianceRef is the pitch variance (Hz²) at which vocal tension
	// saturates.
	PitchVarianceRef float64 `yaml:"pitch_variance_ref"`

	// AnxietyWPM is the speaking rate above which anxiety rises; it saturates
	// AnxietyRange WPM later.
	AnxietyWPM   float64 `yaml:"anxiety_wpm"`
	AnxietyRange float64 `yaml:"anxiety_range"`

	// HesitationPauses is the pause rate above which hesitation rises; it
	// saturates HesitationRange pauses per minute later.
	HesitationPauses float64 `yaml:"hesitation_pauses"`
	HesitationRange  float64 `yaml:"hesitation_range"`
}

// EmotionConfig holds the pitch-to-emotion lookup table.
type EmotionConfig struct {
	// Ranges maps emotions to inclusive pitch bands. Bands may overlap.
	Ranges []EmotionRange `yaml:"ranges"`

	// MinConfidence floors the confidence of every matching band.
	MinConfidence float64 `yaml:"min_confidence"`

	// NeutralConfidence is the confidence of the fallback neutral tone.
	NeutralConfidence float64 `yaml:"neutral_confidence"`
}

// EmotionRange is one row of the emotion lookup table.
type EmotionRange struct {
	Emotion Emotion `yaml:"emotion"`
	MinHz   float64 `yaml:"min_hz"`
	MaxHz   float64 `yaml:"max_hz"`
}

// Contains reports whether hz lies inside the band, bounds included.
func (r EmotionRange) Contains(hz float64) bool {
	return hz >= r.MinHz && hz <= r.MaxHz
}

// QualityWeights are the overall-quality blend weights. They must sum to 1.
type QualityWeights struct {
	Confidence   float64 `yaml:"confidence"`
	VoiceQuality float64 `yaml:"voice_quality"`
	Fluency      float64 `yaml:"fluency"`
	Clarity      float64 `yaml:"clarity"`
	// Calmness weighs (1 - overall_stress).
	Calmness float64 `yaml:"calmness"`
}

// Sum returns the total of all weights.
func (w QualityWeights) Sum() float64 {
	return w.Confidence + w.VoiceQuality + w.Fluency + w.Clarity + w.Calmness
}

// DefaultConfig returns the calibrated default configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:         16000,
		RawSampleRate:      16000,
		FrameLength:        2048,
		HopLength:          512,
		MinDuration:        time.Second,
		ParallelExtraction: true,
		Pitch: PitchConfig{
			MinHz:             80,
			MaxHz:             400,
			SalienceThreshold: 0.1,
			SilenceFloor:      1e-4,
		},
		Spectral: SpectralConfig{
			RolloffFraction: 0.85,
			CentroidRefHz:   4000,
			RolloffRefHz:    8000,
			ZCRRef:          0.25,
			BrightnessRefHz: 3000,
		},
		Rate: RateConfig{
			SpeechThreshold:  0.3,
			SyllablesPerWord: 2.5,
			MinWPM:           60,
			MaxWPM:           300,
		},
		Pause: PauseConfig{
			SilenceThreshold: 0.2,
			MaxPerMinute:     20,
		},
		Scoring: ScoringConfig{
			TargetWPM:                  160,
			WPMTolerance:               100,
			TargetPauseRate:            3,
			PauseTolerance:             5,
			ConfidencePitchVarianceRef: 100,
			ClarityPitchVarianceRef:    1000,
			EnergyScale:                10,
			NeutralScore:               0.5,
		},
		Stress: StressConfig{
			PitchVarianceRef: 1000,
			AnxietyWPM:       200,
			AnxietyRange:     100,
			HesitationPauses: 5,
			HesitationRange:  10,
		},
		Emotion: EmotionConfig{
			Ranges: []EmotionRange{
				{Emotion: EmotionExcited, MinHz: 200, MaxHz: 300},
				{Emotion: EmotionConfident, MinHz: 120, MaxHz: 200},
				{Emotion: EmotionNervous, MinHz: 150, MaxHz: 250},
				{Emotion: EmotionCalm, MinHz: 100, MaxHz: 150},
				{Emotion: EmotionStressed, MinHz: 180, MaxHz: 280},
			},
			MinConfidence:     0.1,
			NeutralConfidence: 0.7,
		},
		Weights: QualityWeights{
			Confidence:   0.25,
			VoiceQuality: 0.20,
			Fluency:      0.25,
			Clarity:      0.20,
			Calmness:     0.10,
		},
	}
}

// clone returns a deep copy of c.
func (c Config) clone() Config {
	c.Emotion.Ranges = slices.Clone(c.Emotion.Ranges)
	return c
}

// Validate checks that c describes a usable pipeline. It returns a joined
// error listing every problem found.
func (c Config) Validate() error {
	var errs []error
	positive := func(name string, v float64) {
		if !(v > 0) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, v))
		}
	}
	unit := func(name string, v float64) {
		if !(v >= 0 && v <= 1) {
			errs = append(errs, fmt.Errorf("%s %v is out of range [0, 1]", name, v))
		}
	}

	positive("sample_rate", float64(c.SampleRate))
	positive("raw_sample_rate", float64(c.RawSampleRate))
	positive("frame_length", float64(c.FrameLength))
	positive("hop_length", float64(c.HopLength))
	if c.HopLength > c.FrameLength {
		errs = append(errs, fmt.Errorf("hop_length %d exceeds frame_length %d", c.HopLength, c.FrameLength))
	}
	if c.MinDuration < 0 {
		errs = append(errs, fmt.Errorf("min_duration %s must not be negative", c.MinDuration))
	}

	positive("pitch.min_hz", c.Pitch.MinHz)
	positive("pitch.max_hz", c.Pitch.MaxHz)
	if c.Pitch.MaxHz <= c.Pitch.MinHz {
		errs = append(errs, fmt.Errorf("pitch.max_hz %v must exceed pitch.min_hz %v", c.Pitch.MaxHz, c.Pitch.MinHz))
	}
	if c.SampleRate > 0 && c.Pitch.MaxHz >= float64(c.SampleRate)/2 {
		errs = append(errs, fmt.Errorf("pitch.max_hz %v must be below the Nyquist frequency %d", c.Pitch.MaxHz, c.SampleRate/2))
	}
	unit("pitch.salience_threshold", c.Pitch.SalienceThreshold)
	if c.Pitch.SilenceFloor < 0 {
		errs = append(errs, fmt.Errorf("pitch.silence_floor %v must not be negative", c.Pitch.SilenceFloor))
	}

	unit("spectral.rolloff_fraction", c.Spectral.RolloffFraction)
	positive("spectral.centroid_ref_hz", c.Spectral.CentroidRefHz)
	positive("spectral.rolloff_ref_hz", c.Spectral.RolloffRefHz)
	positive("spectral.zcr_ref", c.Spectral.ZCRRef)
	positive("spectral.brightness_ref_hz", c.Spectral.BrightnessRefHz)

	positive("rate.speech_threshold", c.Rate.SpeechThreshold)
	positive("rate.syllables_per_word", c.Rate.SyllablesPerWord)
	if c.Rate.MinWPM < 0 || c.Rate.MaxWPM <= c.Rate.MinWPM {
		errs = append(errs, fmt.Errorf("rate wpm bounds [%v, %v] are invalid", c.Rate.MinWPM, c.Rate.MaxWPM))
	}
	positive("pause.silence_threshold", c.Pause.SilenceThreshold)
	positive("pause.max_per_minute", c.Pause.MaxPerMinute)

	positive("scoring.wpm_tolerance", c.Scoring.WPMTolerance)
	positive("scoring.pause_tolerance", c.Scoring.PauseTolerance)
	positive("scoring.confidence_pitch_variance_ref", c.Scoring.ConfidencePitchVarianceRef)
	positive("scoring.clarity_pitch_variance_ref", c.Scoring.ClarityPitchVarianceRef)
	positive("scoring.energy_scale", c.Scoring.EnergyScale)
	unit("scoring.neutral_score", c.Scoring.NeutralScore)

	positive("stress.pitch_variance_ref", c.Stress.PitchVarianceRef)
	positive("stress.anxiety_range", c.Stress.AnxietyRange)
	positive("stress.hesitation_range", c.Stress.HesitationRange)

	unit("emotion.min_confidence", c.Emotion.MinConfidence)
	unit("emotion.neutral_confidence", c.Emotion.NeutralConfidence)
	for i, r := range c.Emotion.Ranges {
		prefix := fmt.Sprintf("emotion.ranges[%d]", i)
		if !r.Emotion.IsValid() {
			errs = append(errs, fmt.Errorf("%s.emotion %q is invalid", prefix, r.Emotion))
		}
		if r.MaxHz <= r.MinHz {
			errs = append(errs, fmt.Errorf("%s: max_hz %v must exceed min_hz %v", prefix, r.MaxHz, r.MinHz))
		}
	}

	w := c.Weights
	for _, wt := range []struct {
		name string
		v    float64
	}{
		{"weights.confidence", w.Confidence},
		{"weights.voice_quality", w.VoiceQuality},
		{"weights.fluency", w.Fluency},
		{"weights.clarity", w.Clarity},
		{"weights.calmness", w.Calmness},
	} {
		if wt.v < 0 {
			errs = append(errs, fmt.Errorf("%s %v must not be negative", wt.name, wt.v))
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > 1e-6 {
		errs = append(errs, fmt.Errorf("weights must sum to 1, got %v", sum))
	}

	return errors.Join(errs...)
}
