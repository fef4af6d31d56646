package speech

import "math"

// clamp limits v to [lo, hi]. NaN maps to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

// risingEdges counts transitions from !active to active between consecutive
// entries of series. The first entry never counts as an edge.
func risingEdges(series []float64, active func(float64) bool) int {
	edges := 0
	for i := 1; i < len(series); i++ {
		if !active(series[i-1]) && active(series[i]) {
			edges++
		}
	}
	return edges
}

// estimateSpeakingRate approximates words per minute from syllable onsets,
// i.e. rising edges of frames whose energy exceeds SpeechThreshold × mean.
// The estimate is clamped to [MinWPM, MaxWPM]; silent input degrades to
// MinWPM.
func estimateSpeakingRate(rms []float64, energy energyStats, seconds float64, cfg RateConfig) Outcome[float64] {
	if energy.mean <= silentEnergy || seconds <= 0 {
		return degraded(cfg.MinWPM, "no speech energy")
	}
	threshold := cfg.SpeechThreshold * energy.mean
	onsets := risingEdges(rms, func(v float64) bool { return v > threshold })
	words := float64(onsets) / cfg.SyllablesPerWord
	wpm := words / (seconds / 60)
	return computed(clamp(wpm, cfg.MinWPM, cfg.MaxWPM))
}

// estimatePauseFrequency counts entries into silence (frames below
// SilenceThreshold × mean energy) per minute, clamped to [0, MaxPerMinute].
// Silent input degrades to 0.
func estimatePauseFrequency(rms []float64, energy energyStats, seconds float64, cfg PauseConfig) Outcome[float64] {
	if energy.mean <= silentEnergy || seconds <= 0 {
		return degraded(0.0, "no speech energy")
	}
	threshold := cfg.SilenceThreshold * energy.mean
	pauses := risingEdges(rms, func(v float64) bool { return v < threshold })
	perMinute := float64(pauses) / (seconds / 60)
	return computed(clamp(perMinute, 0, cfg.MaxPerMinute))
}

// assessVoiceQuality averages inverted, normalised spectral centroid,
// rolloff and zero-crossing rate: a darker, less noisy voice scores higher.
// Without audible frames it degrades to the neutral score.
func assessVoiceQuality(sp Outcome[spectralSummary], cfg SpectralConfig, neutral float64) Outcome[float64] {
	if sp.Status != StageOK {
		return degraded(neutral, "no spectral input")
	}
	s := sp.Value
	centroid := 1 - clamp01(s.centroid/cfg.CentroidRefHz)
	rolloff := 1 - clamp01(s.rolloff/cfg.RolloffRefHz)
	zcr := 1 - clamp01(s.zcr/cfg.ZCRRef)
	return computed(clamp01((centroid + rolloff + zcr) / 3))
}

// rateOptimality scores how close wpm is to the target pace.
func rateOptimality(wpm float64, cfg ScoringConfig) float64 {
	return clamp01(1 - math.Abs(wpm-cfg.TargetWPM)/cfg.WPMTolerance)
}

// estimateConfidence averages pitch stability, energy adequacy and rate
// optimality. Pitch stability falls monotonically with variance and is
// neutral when nothing was voiced.
func estimateConfidence(pitch pitchStats, energy energyStats, wpm float64, cfg ScoringConfig) Outcome[float64] {
	stability := cfg.NeutralScore
	if pitch.hasVoice() {
		stability = 1 / (1 + pitch.variance/cfg.ConfidencePitchVarianceRef)
	}
	adequacy := min(1, energy.mean*cfg.EnergyScale)
	score := clamp01((stability + adequacy + rateOptimality(wpm, cfg)) / 3)
	if !pitch.hasVoice() {
		return degraded(score, "no voiced frames")
	}
	return computed(score)
}
