package audio

import "time"

// Waveform is a decoded mono signal with samples normalised to [-1.0, 1.0].
// A Waveform is produced once by the [Decoder] and read by every analysis
// stage; callers must treat Samples as read-only.
type Waveform struct {
	// Samples holds the mono signal in the range [-1.0, 1.0].
	Samples []float64

	// SampleRate in Hz (e.g., 16000 for speech analysis).
	SampleRate int
}

// Len returns the number of samples.
func (w Waveform) Len() int {
	return len(w.Samples)
}

// Seconds returns the signal length in seconds. It returns 0 for a waveform
// without a valid sample rate.
func (w Waveform) Seconds() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Duration returns the signal length as a [time.Duration].
func (w Waveform) Duration() time.Duration {
	return time.Duration(w.Seconds() * float64(time.Second))
}
