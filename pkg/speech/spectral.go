package speech

import "gonum.org/v1/gonum/stat"

// spectrum holds the spectral descriptors of one frame.
type spectrum struct {
	centroid float64 // Hz
	rolloff  float64 // Hz
	audible  bool
}

// spectralOf computes the spectral centroid and rolloff of a magnitude
// spectrum whose bins are binHz apart. An all-zero spectrum is not audible
// and has both descriptors at 0.
func spectralOf(mag []float64, binHz, rolloffFraction float64) spectrum {
	var total, weighted float64
	for k, m := range mag {
		total += m
		weighted += float64(k) * binHz * m
	}
	if total <= 0 {
		return spectrum{}
	}

	target := rolloffFraction * total
	rolloff := float64(len(mag)-1) * binHz
	var cum float64
	for k, m := range mag {
		cum += m
		if cum >= target {
			rolloff = float64(k) * binHz
			break
		}
	}
	return spectrum{centroid: weighted / total, rolloff: rolloff, audible: true}
}

// zeroCrossingRate returns the fraction of adjacent sample pairs in frame
// whose signs differ.
func zeroCrossingRate(frame []float64) float64 {
	if len(frame) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i-1] >= 0) != (frame[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame))
}

// spectralSummary holds spectral descriptors averaged over audible frames.
type spectralSummary struct {
	centroid float64
	rolloff  float64
	zcr      float64
	audible  int
}

// summarizeSpectral averages centroid, rolloff and ZCR over audible frames.
// Without audible frames it degrades to an empty summary.
func summarizeSpectral(f frameFeatures) Outcome[spectralSummary] {
	var centroid, rolloff, zcr []float64
	for i := range f.len() {
		if !f.audible[i] {
			continue
		}
		centroid = append(centroid, f.centroid[i])
		rolloff = append(rolloff, f.rolloff[i])
		zcr = append(zcr, f.zcr[i])
	}
	if len(centroid) == 0 {
		return degraded(spectralSummary{}, "no audible frames")
	}
	return computed(spectralSummary{
		centroid: stat.Mean(centroid, nil),
		rolloff:  stat.Mean(rolloff, nil),
		zcr:      stat.Mean(zcr, nil),
		audible:  len(centroid),
	})
}
