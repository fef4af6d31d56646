// Package speech turns a recorded spoken answer into vocal-quality and
// behavioural signals: pitch, energy, speaking rate, pauses, voice quality,
// an inferred emotional tone, fluency, clarity, stress indicators and an
// aggregate quality score.
//
// The pipeline is a pure, synchronous transformation from audio bytes to a
// [SpeechAnalysis]. An [Analyzer] carries only immutable configuration and is
// safe for concurrent use by any number of goroutines.
//
// Stages never fail the whole analysis: a stage whose input is degenerate
// (silence, no voiced frames) or that panics substitutes a documented neutral
// value and records the substitution in [SpeechAnalysis.Stages]. Only input
// that cannot be decoded into at least [Config.MinDuration] of audio yields
// [ErrNoAnalysis].
package speech

import (
	"errors"
	"time"
)

var (
	// ErrNoAnalysis is returned when the input could not be analysed at all.
	// It distinguishes "could not analyse" from an analysis of a quiet clip.
	ErrNoAnalysis = errors.New("speech: no analysis")

	// ErrInsufficientAudio is wrapped together with [ErrNoAnalysis] when the
	// decoded waveform is shorter than [Config.MinDuration].
	ErrInsufficientAudio = errors.New("speech: insufficient audio")
)

// Emotion is a label from the closed set of emotional tones.
type Emotion string

const (
	EmotionExcited   Emotion = "excited"
	EmotionConfident Emotion = "confident"
	EmotionNervous   Emotion = "nervous"
	EmotionCalm      Emotion = "calm"
	EmotionStressed  Emotion = "stressed"
	EmotionNeutral   Emotion = "neutral"
)

// IsValid reports whether e is a recognised emotion label.
func (e Emotion) IsValid() bool {
	switch e {
	case EmotionExcited, EmotionConfident, EmotionNervous, EmotionCalm, EmotionStressed, EmotionNeutral:
		return true
	}
	return false
}

// SpeechMetrics are the low-level acoustic measurements of one utterance.
type SpeechMetrics struct {
	// PitchMean and PitchVariance are computed over voiced frames only (Hz, Hz²).
	// Both are 0 when no frame is voiced.
	PitchMean     float64
	PitchVariance float64

	// EnergyMean and EnergyVariance summarise per-frame RMS energy.
	EnergyMean     float64
	EnergyVariance float64

	// SpeakingRate in words per minute, clamped to the configured range.
	SpeakingRate float64

	// PauseFrequency in pauses per minute, clamped to the configured range.
	PauseFrequency float64

	// VoiceQuality and ConfidenceLevel lie in [0,1].
	VoiceQuality    float64
	ConfidenceLevel float64
}

// EmotionalTone is one candidate emotion inferred from pitch.
type EmotionalTone struct {
	Emotion    Emotion
	Confidence float64
	Timestamp  time.Time
}

// Stress indicator keys used in serialised output.
const (
	StressVocalTension     = "vocal_tension"
	StressSpeakingAnxiety  = "speaking_anxiety"
	StressHesitation       = "hesitation"
	StressVocalInstability = "vocal_instability"
	StressOverall          = "overall_stress"
)

// StressIndicators holds the stress sub-scores, each in [0,1].
type StressIndicators struct {
	VocalTension     float64
	SpeakingAnxiety  float64
	Hesitation       float64
	VocalInstability float64
	// Overall is the unweighted mean of the four indicators above.
	Overall float64
}

// AsMap returns the indicators keyed by their serialised names.
func (s StressIndicators) AsMap() map[string]float64 {
	return map[string]float64{
		StressVocalTension:     s.VocalTension,
		StressSpeakingAnxiety:  s.SpeakingAnxiety,
		StressHesitation:       s.Hesitation,
		StressVocalInstability: s.VocalInstability,
		StressOverall:          s.Overall,
	}
}

// SpeechAnalysis is the result of one [Analyzer.AnalyzeAudio] call. It is
// built fresh per call and shares nothing with other results.
type SpeechAnalysis struct {
	Metrics SpeechMetrics

	// EmotionalTones is never empty and sorted by descending confidence.
	EmotionalTones []EmotionalTone

	FluencyScore     float64
	ClarityScore     float64
	StressIndicators StressIndicators
	OverallQuality   float64

	// AudioDuration is the length of the analysed waveform.
	AudioDuration time.Duration

	// Stages reports how each pipeline stage completed. Like AudioDuration
	// it is diagnostic output and not part of the serialised result.
	Stages []StageReport

	// now stamps serialised output; it is the producing analyzer's clock.
	now func() time.Time
}

// TopTone returns the highest-confidence emotional tone.
func (s *SpeechAnalysis) TopTone() EmotionalTone {
	if len(s.EmotionalTones) == 0 {
		return EmotionalTone{Emotion: EmotionNeutral}
	}
	return s.EmotionalTones[0]
}

// Degraded returns the reports of every stage that did not complete normally.
func (s *SpeechAnalysis) Degraded() []StageReport {
	var out []StageReport
	for _, r := range s.Stages {
		if r.Status != StageOK {
			out = append(out, r)
		}
	}
	return out
}
