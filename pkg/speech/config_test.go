package speech_test

import (
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/speechscope/pkg/speech"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	t.Parallel()
	if err := speech.DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*speech.Config)
		wantErr string
	}{
		{
			name:    "hop longer than frame",
			mutate:  func(c *speech.Config) { c.HopLength = 4096 },
			wantErr: "hop_length 4096 exceeds frame_length 2048",
		},
		{
			name:    "zero sample rate",
			mutate:  func(c *speech.Config) { c.SampleRate = 0 },
			wantErr: "sample_rate must be positive",
		},
		{
			name:    "negative min duration",
			mutate:  func(c *speech.Config) { c.MinDuration = -time.Second },
			wantErr: "min_duration",
		},
		{
			name:    "inverted pitch band",
			mutate:  func(c *speech.Config) { c.Pitch.MinHz, c.Pitch.MaxHz = 400, 80 },
			wantErr: "pitch.max_hz 80 must exceed pitch.min_hz 400",
		},
		{
			name:    "pitch above nyquist",
			mutate:  func(c *speech.Config) { c.Pitch.MaxHz = 9000 },
			wantErr: "Nyquist",
		},
		{
			name:    "rolloff fraction out of range",
			mutate:  func(c *speech.Config) { c.Spectral.RolloffFraction = 1.5 },
			wantErr: "spectral.rolloff_fraction",
		},
		{
			name: "unknown emotion",
			mutate: func(c *speech.Config) {
				c.Emotion.Ranges = append(c.Emotion.Ranges, speech.EmotionRange{Emotion: "bored", MinHz: 1, MaxHz: 2})
			},
			wantErr: `emotion.ranges[5].emotion "bored" is invalid`,
		},
		{
			name:    "negative weight",
			mutate:  func(c *speech.Config) { c.Weights.Calmness = -0.1; c.Weights.Confidence = 0.45 },
			wantErr: "weights.calmness -0.1 must not be negative",
		},
		{
			name:    "weights do not sum to one",
			mutate:  func(c *speech.Config) { c.Weights.Fluency = 0.5 },
			wantErr: "weights must sum to 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := speech.DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidate_ReportsEveryProblem(t *testing.T) {
	t.Parallel()
	cfg := speech.DefaultConfig()
	cfg.FrameLength = 0
	cfg.Rate.SyllablesPerWord = 0
	cfg.Emotion.MinConfidence = 2

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"frame_length", "rate.syllables_per_word", "emotion.min_confidence"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestEmotionRange_ContainsIsInclusive(t *testing.T) {
	t.Parallel()
	r := speech.EmotionRange{Emotion: speech.EmotionCalm, MinHz: 100, MaxHz: 150}
	for hz, want := range map[float64]bool{99.9: false, 100: true, 125: true, 150: true, 150.1: false} {
		if got := r.Contains(hz); got != want {
			t.Errorf("Contains(%v) = %v, want %v", hz, got, want)
		}
	}
}
