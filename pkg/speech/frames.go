package speech

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/dsp/fourier"
)

// frameFeatures holds the per-frame series produced by the frame-level
// extractors. All slices share the same length (one entry per frame).
type frameFeatures struct {
	rms      []float64
	zcr      []float64
	centroid []float64 // Hz
	rolloff  []float64 // Hz
	pitch    []float64 // Hz, 0 for unvoiced frames
	// audible marks frames whose magnitude spectrum is not all zero.
	audible []bool
}

func newFrameFeatures(n int) frameFeatures {
	return frameFeatures{
		rms:      make([]float64, n),
		zcr:      make([]float64, n),
		centroid: make([]float64, n),
		rolloff:  make([]float64, n),
		pitch:    make([]float64, n),
		audible:  make([]bool, n),
	}
}

func (f frameFeatures) len() int {
	return len(f.rms)
}

// frameCount returns the number of analysis frames for n samples. A signal
// shorter than one frame yields a single zero-padded frame.
func frameCount(n, length, hop int) int {
	if n <= 0 || length <= 0 || hop <= 0 {
		return 0
	}
	if n <= length {
		return 1
	}
	return 1 + (n-length)/hop
}

// hannWindow returns a symmetric Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// frameExtractor computes every frame-level feature for one frame at a time.
// It owns FFT scratch buffers and must not be shared between goroutines.
type frameExtractor struct {
	sampleRate int
	pitchCfg   PitchConfig
	specCfg    SpectralConfig
	window     []float64

	fft      *fourier.FFT
	padded   []float64
	windowed []float64
	coeffs   []complex128
	mag      []float64
}

func newFrameExtractor(cfg Config, window []float64) *frameExtractor {
	n := cfg.FrameLength
	return &frameExtractor{
		sampleRate: cfg.SampleRate,
		pitchCfg:   cfg.Pitch,
		specCfg:    cfg.Spectral,
		window:     window,
		fft:        fourier.NewFFT(n),
		padded:     make([]float64, n),
		windowed:   make([]float64, n),
		coeffs:     make([]complex128, n/2+1),
		mag:        make([]float64, n/2+1),
	}
}

// frame returns frame i of samples, zero-padding a short trailing frame.
func (fx *frameExtractor) frame(samples []float64, i, hop int) []float64 {
	start := i * hop
	end := start + len(fx.padded)
	if end <= len(samples) {
		return samples[start:end]
	}
	n := copy(fx.padded, samples[start:])
	clear(fx.padded[n:])
	return fx.padded
}

// process fills index i of out from one frame.
func (fx *frameExtractor) process(frame []float64, i int, out *frameFeatures) {
	out.rms[i] = rmsOf(frame)
	out.zcr[i] = zeroCrossingRate(frame)

	for j, v := range frame {
		fx.windowed[j] = v * fx.window[j]
	}
	fx.coeffs = fx.fft.Coefficients(fx.coeffs, fx.windowed)
	for k, c := range fx.coeffs {
		fx.mag[k] = math.Hypot(real(c), imag(c))
	}

	binHz := float64(fx.sampleRate) / float64(len(frame))
	sp := spectralOf(fx.mag, binHz, fx.specCfg.RolloffFraction)
	out.centroid[i] = sp.centroid
	out.rolloff[i] = sp.rolloff
	out.audible[i] = sp.audible
	out.pitch[i] = pitchOf(fx.mag, binHz, out.rms[i], fx.pitchCfg)
}

// extractFrames runs the frame-level extractors over samples. With
// ParallelExtraction the frames are split into contiguous chunks processed
// concurrently; each frame writes only its own index, so the output does not
// depend on scheduling.
func (a *Analyzer) extractFrames(samples []float64) (frameFeatures, error) {
	n := frameCount(len(samples), a.cfg.FrameLength, a.cfg.HopLength)
	out := newFrameFeatures(n)
	if n == 0 {
		return out, nil
	}

	workers := 1
	if a.cfg.ParallelExtraction {
		workers = min(runtime.GOMAXPROCS(0), n)
	}
	chunk := (n + workers - 1) / workers

	var g errgroup.Group
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("speech: frame extraction panic in frames [%d, %d): %v", lo, hi, p)
				}
			}()
			fx := newFrameExtractor(a.cfg, a.window)
			for i := lo; i < hi; i++ {
				fx.process(fx.frame(samples, i, a.cfg.HopLength), i, &out)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return newFrameFeatures(0), err
	}
	return out, nil
}
