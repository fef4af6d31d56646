package speech

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// pitchStats summarises the voiced frames of a pitch track.
type pitchStats struct {
	mean     float64
	variance float64
	voiced   int
}

// hasVoice reports whether at least one frame was voiced.
func (p pitchStats) hasVoice() bool {
	return p.voiced > 0
}

// pitchOf picks the most salient fundamental-frequency candidate from a
// frame's magnitude spectrum. It returns 0 for unvoiced or silent frames.
//
// The candidate is the strongest bin inside [MinHz, MaxHz]. It must reach
// SalienceThreshold of the frame's overall spectral peak and be a local
// maximum; the frequency is refined by parabolic interpolation over the
// neighbouring bins.
func pitchOf(mag []float64, binHz, rms float64, cfg PitchConfig) float64 {
	if rms < cfg.SilenceFloor || binHz <= 0 || len(mag) < 3 {
		return 0
	}
	peak := floats.Max(mag)
	if peak <= 0 {
		return 0
	}

	lo := max(int(math.Ceil(cfg.MinHz/binHz)), 1)
	hi := min(int(math.Floor(cfg.MaxHz/binHz)), len(mag)-2)
	if lo > hi {
		return 0
	}
	best := lo + floats.MaxIdx(mag[lo:hi+1])
	if mag[best] < cfg.SalienceThreshold*peak {
		return 0
	}
	// A band-edge maximum on the flank of an out-of-band peak is not a
	// pitch candidate.
	if mag[best-1] > mag[best] || mag[best+1] > mag[best] {
		return 0
	}

	a, b, c := mag[best-1], mag[best], mag[best+1]
	var offset float64
	if den := a - 2*b + c; den != 0 {
		offset = 0.5 * (a - c) / den
	}
	return clamp((float64(best)+offset)*binHz, cfg.MinHz, cfg.MaxHz)
}

// trackPitch reduces a per-frame pitch series to voiced-frame statistics.
// Unvoiced frames (0 Hz) are excluded; a track without voiced frames
// degrades to zero mean and variance.
func trackPitch(series []float64) Outcome[pitchStats] {
	voiced := make([]float64, 0, len(series))
	for _, hz := range series {
		if hz > 0 {
			voiced = append(voiced, hz)
		}
	}
	if len(voiced) == 0 {
		return degraded(pitchStats{}, "no voiced frames")
	}
	mean, variance := stat.PopMeanVariance(voiced, nil)
	return computed(pitchStats{mean: mean, variance: variance, voiced: len(voiced)})
}
