package speech

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// silentEnergy is the mean RMS at or below which a signal counts as silent.
const silentEnergy = 1e-9

// energyStats summarises the per-frame RMS series.
type energyStats struct {
	mean     float64
	variance float64
	// cv is the coefficient of variation (std/mean); 0 for silent input.
	cv float64
}

// rmsOf returns the root-mean-square energy of a frame.
func rmsOf(frame []float64) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, v := range frame {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// summarizeEnergy computes mean, variance and coefficient of variation of the
// RMS series. A silent series keeps its (zero) mean and variance but degrades
// the coefficient of variation to 0.
func summarizeEnergy(rms []float64) Outcome[energyStats] {
	if len(rms) == 0 {
		return degraded(energyStats{}, "no frames")
	}
	mean, variance := stat.PopMeanVariance(rms, nil)
	if mean <= silentEnergy {
		return degraded(energyStats{mean: mean, variance: variance}, "silent signal")
	}
	return computed(energyStats{
		mean:     mean,
		variance: variance,
		cv:       math.Sqrt(variance) / mean,
	})
}
