package speech

import (
	"encoding/json"
	"time"
)

// TimestampFormat is the ISO-8601 layout used for every serialised timestamp.
const TimestampFormat = time.RFC3339Nano

// ToMap converts s into the plain nested map consumed by report generation.
// serializedAt becomes the analysis_timestamp field. The map shape is:
//
//	speech_metrics:     {pitch_mean, pitch_variance, energy_mean, energy_variance,
//	                     speaking_rate, pause_frequency, voice_quality, confidence_level}
//	emotional_tones:    [{emotion, confidence, timestamp}, ...]
//	fluency_score, clarity_score, overall_quality: float
//	stress_indicators:  {vocal_tension, speaking_anxiety, hesitation,
//	                     vocal_instability, overall_stress}
//	analysis_timestamp: string
func ToMap(s *SpeechAnalysis, serializedAt time.Time) map[string]any {
	m := s.Metrics
	tones := make([]map[string]any, 0, len(s.EmotionalTones))
	for _, t := range s.EmotionalTones {
		tones = append(tones, map[string]any{
			"emotion":    string(t.Emotion),
			"confidence": t.Confidence,
			"timestamp":  t.Timestamp.Format(TimestampFormat),
		})
	}
	return map[string]any{
		"speech_metrics": map[string]float64{
			"pitch_mean":       m.PitchMean,
			"pitch_variance":   m.PitchVariance,
			"energy_mean":      m.EnergyMean,
			"energy_variance":  m.EnergyVariance,
			"speaking_rate":    m.SpeakingRate,
			"pause_frequency":  m.PauseFrequency,
			"voice_quality":    m.VoiceQuality,
			"confidence_level": m.ConfidenceLevel,
		},
		"emotional_tones":    tones,
		"fluency_score":      s.FluencyScore,
		"clarity_score":      s.ClarityScore,
		"stress_indicators":  s.StressIndicators.AsMap(),
		"overall_quality":    s.OverallQuality,
		"analysis_timestamp": serializedAt.Format(TimestampFormat),
	}
}

// Serialize converts s with [ToMap], stamping it with the analyzer's clock.
func (a *Analyzer) Serialize(s *SpeechAnalysis) map[string]any {
	return ToMap(s, a.now())
}

// MarshalJSON encodes s in the [ToMap] shape, stamped at encoding time by
// the clock of the [Analyzer] that produced s (see [WithClock]). A value
// built outside an Analyzer uses [time.Now].
func (s *SpeechAnalysis) MarshalJSON() ([]byte, error) {
	now := s.now
	if now == nil {
		now = time.Now
	}
	return json.Marshal(ToMap(s, now().UTC()))
}

// StagesToMap renders stage reports for diagnostic output. Reason is omitted
// for stages that completed normally.
func StagesToMap(reports []StageReport) []map[string]any {
	out := make([]map[string]any, len(reports))
	for i, r := range reports {
		m := map[string]any{
			"name":        r.Name,
			"status":      r.Status.String(),
			"duration_ms": float64(r.Duration) / float64(time.Millisecond),
		}
		if r.Reason != "" {
			m["reason"] = r.Reason
		}
		out[i] = m
	}
	return out
}
