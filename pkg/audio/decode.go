package audio

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-audio/wav"
)

// DefaultSampleRate is the working sample rate used when a [Decoder] is
// created without an explicit target rate.
const DefaultSampleRate = 16000

// wavFormatPCM is the WAVE_FORMAT_PCM tag. Other tags (IEEE float, A-law,
// extensible) are rejected and handled by the raw fallback.
const wavFormatPCM = 1

var (
	// ErrEmptyInput is returned when the byte buffer holds no decodable samples.
	ErrEmptyInput = errors.New("audio: empty input")

	// ErrUnsupportedFormat is returned by the container parser when the buffer
	// is not an integer PCM WAV file.
	ErrUnsupportedFormat = errors.New("audio: unsupported container")
)

// Decoder turns an opaque byte buffer into a mono [Waveform] at TargetRate.
// It first tries to parse the buffer as a WAV container; on any parse failure
// the bytes are interpreted as raw 16-bit signed little-endian mono PCM at
// RawRate. A zero Decoder is usable and decodes to [DefaultSampleRate].
//
// Decoder holds no mutable state and is safe for concurrent use.
type Decoder struct {
	// TargetRate is the sample rate of the returned waveform. Zero means
	// [DefaultSampleRate].
	TargetRate int

	// RawRate is the sample rate assumed for headerless PCM. Zero means
	// TargetRate.
	RawRate int

	// Logger receives fallback diagnostics. Nil means [slog.Default].
	Logger *slog.Logger
}

// Decode decodes data into a normalised mono waveform. A non-nil error means
// no waveform could be produced; panics raised while parsing malformed input
// are recovered and reported as errors.
func (d Decoder) Decode(data []byte) (w Waveform, err error) {
	defer func() {
		if p := recover(); p != nil {
			w = Waveform{}
			err = fmt.Errorf("audio: decode panic: %v", p)
		}
	}()

	if len(data) == 0 {
		return Waveform{}, ErrEmptyInput
	}
	target := d.targetRate()

	samples, rate, err := decodeWAV(data)
	if err != nil {
		d.logger().Debug("audio: container parse failed, falling back to raw pcm",
			"bytes", len(data),
			"err", err,
		)
		samples, rate, err = decodeRaw(data, d.rawRate())
		if err != nil {
			return Waveform{}, fmt.Errorf("audio: decode: %w", err)
		}
	}

	if rate != target {
		d.logger().Debug("audio: resampling",
			"from_hz", rate,
			"to_hz", target,
		)
		samples = Resample(samples, rate, target)
	}
	if len(samples) == 0 {
		return Waveform{}, ErrEmptyInput
	}
	return Waveform{Samples: samples, SampleRate: target}, nil
}

func (d Decoder) targetRate() int {
	if d.TargetRate > 0 {
		return d.TargetRate
	}
	return DefaultSampleRate
}

func (d Decoder) rawRate() int {
	if d.RawRate > 0 {
		return d.RawRate
	}
	return d.targetRate()
}

func (d Decoder) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// decodeWAV parses an integer PCM WAV container and returns its samples
// down-mixed to mono together with the file's sample rate.
func decodeWAV(data []byte) ([]float64, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, ErrUnsupportedFormat
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, 0, fmt.Errorf("%w: format tag %d", ErrUnsupportedFormat, dec.WavAudioFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("audio: read wav pcm: %w", err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, 0, fmt.Errorf("audio: wav has no pcm frames: %w", ErrEmptyInput)
	}
	if buf.Format.SampleRate <= 0 || buf.Format.NumChannels <= 0 {
		return nil, 0, fmt.Errorf("%w: invalid format %d Hz / %d channels",
			ErrUnsupportedFormat, buf.Format.SampleRate, buf.Format.NumChannels)
	}

	depth := int(dec.BitDepth)
	if buf.SourceBitDepth > 0 {
		depth = buf.SourceBitDepth
	}
	samples := Downmix(IntToFloat(buf.Data, depth), buf.Format.NumChannels)
	return samples, buf.Format.SampleRate, nil
}

// decodeRaw interprets data as 16-bit signed little-endian mono PCM.
func decodeRaw(data []byte, rate int) ([]float64, int, error) {
	if len(data) < 2 {
		return nil, 0, ErrEmptyInput
	}
	return PCM16ToFloat(data), rate, nil
}
