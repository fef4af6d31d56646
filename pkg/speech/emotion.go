package speech

import (
	"cmp"
	"math"
	"slices"
	"time"
)

// classifyEmotion maps the mean voiced pitch onto the emotion table. Every
// band containing the pitch yields a tone whose confidence falls linearly
// from 1 at the band centre to MinConfidence at its edges. Tones are sorted
// by descending confidence, ties keeping table order. When no band matches,
// or nothing was voiced, a single neutral tone is returned.
func classifyEmotion(pitch pitchStats, cfg EmotionConfig, at time.Time) Outcome[[]EmotionalTone] {
	neutral := []EmotionalTone{{Emotion: EmotionNeutral, Confidence: cfg.NeutralConfidence, Timestamp: at}}
	if !pitch.hasVoice() {
		return degraded(neutral, "no voiced frames")
	}

	var tones []EmotionalTone
	for _, r := range cfg.Ranges {
		if !r.Contains(pitch.mean) {
			continue
		}
		centre := (r.MinHz + r.MaxHz) / 2
		half := (r.MaxHz - r.MinHz) / 2
		conf := 1 - math.Abs(pitch.mean-centre)/half
		tones = append(tones, EmotionalTone{
			Emotion:    r.Emotion,
			Confidence: clamp(conf, cfg.MinConfidence, 1),
			Timestamp:  at,
		})
	}
	if len(tones) == 0 {
		return computed(neutral)
	}
	slices.SortStableFunc(tones, func(a, b EmotionalTone) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	return computed(tones)
}
