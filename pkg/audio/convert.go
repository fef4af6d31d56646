package audio

import (
	"encoding/binary"
	"math"
)

// sincZeroCrossings is the number of sinc zero crossings kept on each side of
// the resampling kernel centre. Larger values sharpen the anti-aliasing
// filter at the cost of more multiply-adds per output sample.
const sincZeroCrossings = 16

// PCM16ToFloat converts 16-bit signed little-endian PCM audio to float64
// samples normalised to the range [-1.0, 1.0]. Any trailing odd byte is
// silently ignored.
func PCM16ToFloat(pcm []byte) []float64 {
	n := len(pcm) / 2
	samples := make([]float64, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float64(sample) / 32768.0
	}
	return samples
}

// IntToFloat normalises integer PCM samples of the given bit depth to
// [-1.0, 1.0]. 8-bit PCM is unsigned with a midpoint of 128, as stored in WAV
// files; every other depth is signed.
func IntToFloat(data []int, bitDepth int) []float64 {
	out := make([]float64, len(data))
	if bitDepth <= 0 {
		return out
	}
	if bitDepth == 8 {
		for i, v := range data {
			out[i] = clampUnit(float64(v-128) / 128.0)
		}
		return out
	}
	scale := math.Ldexp(1, bitDepth-1)
	for i, v := range data {
		out[i] = clampUnit(float64(v) / scale)
	}
	return out
}

// Downmix averages interleaved multi-channel samples into a mono signal.
// If channels is 1 (or less) the input is returned unchanged. A trailing
// partial frame is dropped.
func Downmix(samples []float64, channels int) []float64 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float64, frames)
	for i := range frames {
		var sum float64
		for ch := range channels {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

// Resample converts a mono signal from srcRate to dstRate using a
// Hann-windowed sinc kernel. When downsampling, the kernel cutoff is lowered
// to the destination Nyquist frequency so that content above it is filtered
// instead of aliased. If srcRate == dstRate (or either rate is invalid) the
// input is returned unchanged.
func Resample(samples []float64, srcRate, dstRate int) []float64 {
	if srcRate <= 0 || dstRate <= 0 {
		return samples
	}
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	dstLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	ratio := float64(srcRate) / float64(dstRate)
	// Cutoff relative to the source Nyquist frequency.
	cutoff := 1.0
	if dstRate < srcRate {
		cutoff = float64(dstRate) / float64(srcRate)
	}
	halfWidth := float64(sincZeroCrossings) / cutoff
	last := len(samples) - 1

	out := make([]float64, dstLen)
	for i := range dstLen {
		centre := float64(i) * ratio
		lo := max(int(math.Ceil(centre-halfWidth)), 0)
		hi := min(int(math.Floor(centre+halfWidth)), last)

		var acc, norm float64
		for j := lo; j <= hi; j++ {
			x := float64(j) - centre
			w := sinc(cutoff*x) * hann(x/halfWidth)
			acc += samples[j] * w
			norm += w
		}
		// Normalising by the kernel sum keeps unity DC gain, including at
		// the signal edges where the kernel is truncated.
		if norm != 0 {
			out[i] = clampUnit(acc / norm)
		}
	}
	return out
}

// sinc is the normalised sinc function sin(πx)/(πx).
func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// hann evaluates a Hann window stretched over t ∈ [-1, 1]; it is 0 outside.
func hann(t float64) float64 {
	if t <= -1 || t >= 1 {
		return 0
	}
	return 0.5 * (1 + math.Cos(math.Pi*t))
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
