package speech

import "math"

// scoreFluency averages energy consistency, rate appropriateness and pause
// appropriateness. Fluent speech has even energy, a natural pace and a
// moderate pause rate.
func scoreFluency(energy Outcome[energyStats], wpm, pauses float64, cfg ScoringConfig) Outcome[float64] {
	consistency := max(0, 1-energy.Value.cv)
	pauseFit := max(0, 1-math.Abs(pauses-cfg.TargetPauseRate)/cfg.PauseTolerance)
	score := clamp01((consistency + rateOptimality(wpm, cfg) + pauseFit) / 3)
	if energy.Status != StageOK {
		return degraded(score, "energy: "+energy.Reason)
	}
	return computed(score)
}

// scoreClarity averages spectral brightness, pitch consistency and loudness.
// Brightness and pitch consistency fall back to the neutral score when their
// inputs are missing.
func scoreClarity(sp Outcome[spectralSummary], pitch pitchStats, energy energyStats, cfg Config) Outcome[float64] {
	neutral := cfg.Scoring.NeutralScore
	var reason string

	brightness := neutral
	if sp.Status == StageOK {
		brightness = clamp01(sp.Value.centroid / cfg.Spectral.BrightnessRefHz)
	} else {
		reason = "no spectral input"
	}

	consistency := neutral
	if pitch.hasVoice() {
		consistency = 1 / (1 + pitch.variance/cfg.Scoring.ClarityPitchVarianceRef)
	} else if reason == "" {
		reason = "no voiced frames"
	}

	loudness := clamp01(energy.mean * cfg.Scoring.EnergyScale)
	score := clamp01((brightness + consistency + loudness) / 3)
	if reason != "" {
		return degraded(score, reason)
	}
	return computed(score)
}

// detectStress derives the stress indicators. Each indicator is clamped to
// [0,1] independently and is 0 when its input is degenerate.
func detectStress(pitch pitchStats, energy energyStats, wpm, pauses float64, cfg StressConfig) Outcome[StressIndicators] {
	var s StressIndicators
	if pitch.hasVoice() {
		s.VocalTension = clamp01(pitch.variance / cfg.PitchVarianceRef)
	}
	s.SpeakingAnxiety = clamp01((wpm - cfg.AnxietyWPM) / cfg.AnxietyRange)
	s.Hesitation = clamp01((pauses - cfg.HesitationPauses) / cfg.HesitationRange)
	s.VocalInstability = clamp01(energy.cv)
	s.Overall = clamp01((s.VocalTension + s.SpeakingAnxiety + s.Hesitation + s.VocalInstability) / 4)

	if !pitch.hasVoice() {
		return degraded(s, "no voiced frames")
	}
	return computed(s)
}

// aggregateQuality blends the composite scores with the configured weights.
func aggregateQuality(confidence, voiceQuality, fluency, clarity, stress float64, w QualityWeights) Outcome[float64] {
	q := w.Confidence*confidence +
		w.VoiceQuality*voiceQuality +
		w.Fluency*fluency +
		w.Clarity*clarity +
		w.Calmness*(1-stress)
	return computed(clamp01(q))
}
