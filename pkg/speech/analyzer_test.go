package speech_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/speechscope/pkg/audio"
	"github.com/MrWong99/speechscope/pkg/speech"
)

const testRate = 16000

var fixedTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// tone returns seconds of a sine wave at freq Hz sampled at testRate.
func tone(freq, amp, seconds float64) []float64 {
	n := int(seconds * testRate)
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/testRate)
	}
	return out
}

func silence(seconds float64) []float64 {
	return make([]float64, int(seconds*testRate))
}

// pcm16 encodes samples as 16-bit little-endian PCM.
func pcm16(samples []float64) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(math.Round(max(-1, min(s, 32767.0/32768.0)) * 32768))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func newAnalyzer(t *testing.T, opts ...speech.Option) *speech.Analyzer {
	t.Helper()
	opts = append([]speech.Option{
		speech.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		speech.WithClock(func() time.Time { return fixedTime }),
	}, opts...)
	a, err := speech.New(speech.DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("speech.New: %v", err)
	}
	return a
}

func analyze(t *testing.T, a *speech.Analyzer, samples []float64) *speech.SpeechAnalysis {
	t.Helper()
	res, err := a.AnalyzeAudio(context.Background(), pcm16(samples))
	if err != nil {
		t.Fatalf("AnalyzeAudio: %v", err)
	}
	return res
}

// checkInvariants asserts the bounds every valid analysis must satisfy.
func checkInvariants(t *testing.T, res *speech.SpeechAnalysis) {
	t.Helper()
	unit := map[string]float64{
		"voice_quality":     res.Metrics.VoiceQuality,
		"confidence_level":  res.Metrics.ConfidenceLevel,
		"fluency_score":     res.FluencyScore,
		"clarity_score":     res.ClarityScore,
		"overall_quality":   res.OverallQuality,
		"vocal_tension":     res.StressIndicators.VocalTension,
		"speaking_anxiety":  res.StressIndicators.SpeakingAnxiety,
		"hesitation":        res.StressIndicators.Hesitation,
		"vocal_instability": res.StressIndicators.VocalInstability,
		"overall_stress":    res.StressIndicators.Overall,
	}
	for name, v := range unit {
		if !(v >= 0 && v <= 1) {
			t.Errorf("%s = %v, want within [0, 1]", name, v)
		}
	}
	m := res.Metrics
	if m.SpeakingRate < 60 || m.SpeakingRate > 300 {
		t.Errorf("speaking_rate = %v, want within [60, 300]", m.SpeakingRate)
	}
	if m.PauseFrequency < 0 || m.PauseFrequency > 20 {
		t.Errorf("pause_frequency = %v, want within [0, 20]", m.PauseFrequency)
	}
	if m.PitchMean < 0 || m.PitchVariance < 0 || m.EnergyMean < 0 || m.EnergyVariance < 0 {
		t.Errorf("negative pitch/energy metric: %+v", m)
	}
	if len(res.EmotionalTones) == 0 {
		t.Fatal("emotional_tones is empty")
	}
	for i, tone := range res.EmotionalTones {
		if !(tone.Confidence >= 0 && tone.Confidence <= 1) {
			t.Errorf("tone %d confidence = %v, want within [0, 1]", i, tone.Confidence)
		}
		if i > 0 && tone.Confidence > res.EmotionalTones[i-1].Confidence {
			t.Errorf("tones not sorted: %v after %v", tone.Confidence, res.EmotionalTones[i-1].Confidence)
		}
	}
}

func TestAnalyzeAudio_SteadyTone(t *testing.T) {
	t.Parallel()
	res := analyze(t, newAnalyzer(t), tone(150, 0.5, 3))
	checkInvariants(t, res)

	if got := res.Metrics.PitchMean; math.Abs(got-150) > 20 {
		t.Errorf("pitch_mean = %.2f, want 150 ± 20", got)
	}
	if got := res.Metrics.PitchVariance; got > 25 {
		t.Errorf("pitch_variance = %.2f, want low", got)
	}
	if got := res.StressIndicators.Overall; got > 0.2 {
		t.Errorf("overall_stress = %.3f, want low", got)
	}
	top := res.TopTone().Emotion
	if top != speech.EmotionCalm && top != speech.EmotionConfident {
		t.Errorf("top tone = %q, want calm or confident", top)
	}
	if got := res.Metrics.PauseFrequency; got != 0 {
		t.Errorf("pause_frequency = %v, want 0 for a continuous tone", got)
	}
	if len(res.Degraded()) != 0 {
		t.Errorf("unexpected degraded stages: %+v", res.Degraded())
	}
}

func TestAnalyzeAudio_Silence(t *testing.T) {
	t.Parallel()
	res := analyze(t, newAnalyzer(t), silence(3))
	checkInvariants(t, res)

	if res.Metrics.PitchMean != 0 || res.Metrics.PitchVariance != 0 {
		t.Errorf("pitch = (%v, %v), want (0, 0)", res.Metrics.PitchMean, res.Metrics.PitchVariance)
	}
	if got := res.Metrics.ConfidenceLevel; got > 0.5 {
		t.Errorf("confidence_level = %v, want low or neutral", got)
	}
	if got := res.Metrics.VoiceQuality; got != 0.5 {
		t.Errorf("voice_quality = %v, want neutral 0.5", got)
	}
	if top := res.TopTone(); top.Emotion != speech.EmotionNeutral || top.Confidence != 0.7 {
		t.Errorf("top tone = %+v, want neutral at 0.7", top)
	}
	if len(res.Degraded()) == 0 {
		t.Error("expected degraded stages for a silent clip")
	}
	for _, r := range res.Stages {
		if r.Status == speech.StageFailed {
			t.Errorf("stage %s failed: %s", r.Name, r.Reason)
		}
	}
}

func TestAnalyzeAudio_NoAnalysis(t *testing.T) {
	t.Parallel()
	a := newAnalyzer(t)
	tests := []struct {
		name      string
		data      []byte
		tooShort  bool
		wantOther error
	}{
		{name: "nil buffer", data: nil, wantOther: audio.ErrEmptyInput},
		{name: "single byte", data: []byte{0x42}, wantOther: audio.ErrEmptyInput},
		{name: "200ms of tone", data: pcm16(tone(200, 0.5, 0.2)), tooShort: true},
		{name: "just under a second", data: pcm16(tone(200, 0.5, 0.99)), tooShort: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := a.AnalyzeAudio(context.Background(), tt.data)
			if res != nil {
				t.Errorf("result = %+v, want nil", res)
			}
			if !errors.Is(err, speech.ErrNoAnalysis) {
				t.Fatalf("err = %v, want ErrNoAnalysis", err)
			}
			if tt.tooShort && !errors.Is(err, speech.ErrInsufficientAudio) {
				t.Errorf("err = %v, want ErrInsufficientAudio", err)
			}
			if tt.wantOther != nil && !errors.Is(err, tt.wantOther) {
				t.Errorf("err = %v, want %v", err, tt.wantOther)
			}
		})
	}
}

func TestAnalyzeAudio_PausesReduceFluency(t *testing.T) {
	t.Parallel()
	a := newAnalyzer(t)
	on := tone(200, 0.5, 1)
	off := silence(1)
	broken := analyze(t, a, concat(on, off, on, off, on, off))
	steady := analyze(t, a, tone(200, 0.5, 6))
	checkInvariants(t, broken)
	checkInvariants(t, steady)

	if broken.Metrics.PauseFrequency <= 0 {
		t.Errorf("pause_frequency = %v, want > 0", broken.Metrics.PauseFrequency)
	}
	if broken.FluencyScore >= steady.FluencyScore {
		t.Errorf("fluency with pauses = %.3f, want below continuous %.3f",
			broken.FluencyScore, steady.FluencyScore)
	}
}

func TestAnalyzeAudio_Idempotent(t *testing.T) {
	t.Parallel()
	a := newAnalyzer(t)
	data := pcm16(concat(tone(180, 0.4, 1.5), silence(0.5), tone(240, 0.3, 1)))

	first, err := a.AnalyzeAudio(context.Background(), data)
	if err != nil {
		t.Fatalf("AnalyzeAudio: %v", err)
	}
	second, err := a.AnalyzeAudio(context.Background(), data)
	if err != nil {
		t.Fatalf("AnalyzeAudio: %v", err)
	}
	if !reflect.DeepEqual(a.Serialize(first), a.Serialize(second)) {
		t.Errorf("outputs differ:\n%v\n%v", a.Serialize(first), a.Serialize(second))
	}
}

func TestMarshalJSON_UsesAnalyzerClock(t *testing.T) {
	t.Parallel()
	a := newAnalyzer(t)
	res := analyze(t, a, tone(150, 0.5, 1.5))

	first, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	second, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("encodings differ:\n%s\n%s", first, second)
	}
	want := `"analysis_timestamp":"` + fixedTime.Format(speech.TimestampFormat) + `"`
	if !strings.Contains(string(first), want) {
		t.Errorf("encoding missing %s:\n%s", want, first)
	}
}

func TestAnalyzeAudio_ParallelMatchesSequential(t *testing.T) {
	t.Parallel()
	seqCfg := speech.DefaultConfig()
	seqCfg.ParallelExtraction = false
	seq, err := speech.New(seqCfg, speech.WithClock(func() time.Time { return fixedTime }))
	if err != nil {
		t.Fatalf("speech.New: %v", err)
	}
	par := newAnalyzer(t)

	data := pcm16(concat(tone(130, 0.6, 2), silence(0.3), tone(310, 0.2, 1.2)))
	a, err := seq.AnalyzeAudio(context.Background(), data)
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	b, err := par.AnalyzeAudio(context.Background(), data)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	if !reflect.DeepEqual(speech.ToMap(a, fixedTime), speech.ToMap(b, fixedTime)) {
		t.Error("parallel extraction changed the result")
	}
}

func TestAnalyzeAudio_BoundsOnVariedInput(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(7, 11))
	noise := make([]float64, 2*testRate)
	for i := range noise {
		noise[i] = rng.Float64()*1.6 - 0.8
	}
	chirp := make([]float64, 3*testRate)
	for i := range chirp {
		ts := float64(i) / testRate
		chirp[i] = 0.7 * math.Sin(2*math.Pi*(90*ts+60*ts*ts))
	}
	square := tone(110, 1, 2)
	for i, v := range square {
		square[i] = math.Copysign(0.99, v)
	}
	bursts := concat(tone(250, 0.9, 0.1), silence(0.15), tone(260, 0.9, 0.1), silence(0.15),
		tone(270, 0.9, 0.1), silence(0.15), tone(280, 0.9, 0.1), silence(0.15),
		tone(290, 0.9, 0.1), silence(0.15), tone(300, 0.9, 0.1), silence(0.15))

	a := newAnalyzer(t)
	for name, samples := range map[string][]float64{
		"white noise": noise,
		"chirp":       chirp,
		"square":      square,
		"bursts":      bursts,
	} {
		t.Run(name, func(t *testing.T) {
			checkInvariants(t, analyze(t, a, samples))
		})
	}
}

func TestAnalyzeAudio_ConcurrentCalls(t *testing.T) {
	t.Parallel()
	a := newAnalyzer(t)
	inputs := [][]float64{tone(120, 0.5, 1.5), tone(220, 0.5, 1.5), silence(1.5), tone(330, 0.3, 2)}

	want := make([]map[string]any, len(inputs))
	for i, in := range inputs {
		want[i] = speech.ToMap(analyze(t, a, in), fixedTime)
	}

	var wg sync.WaitGroup
	got := make([]map[string]any, len(inputs)*4)
	errs := make([]error, len(got))
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := a.AnalyzeAudio(context.Background(), pcm16(inputs[i%len(inputs)]))
			if err != nil {
				errs[i] = err
				return
			}
			got[i] = speech.ToMap(res, fixedTime)
		}()
	}
	wg.Wait()

	for i := range got {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if !reflect.DeepEqual(got[i], want[i%len(inputs)]) {
			t.Errorf("call %d differs from sequential result", i)
		}
	}
}

func TestAnalyzeWaveform_ResamplesToWorkingRate(t *testing.T) {
	t.Parallel()
	const rate = 48000
	samples := make([]float64, 2*rate)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*160*float64(i)/rate)
	}
	res, err := newAnalyzer(t).AnalyzeWaveform(context.Background(), audio.Waveform{Samples: samples, SampleRate: rate})
	if err != nil {
		t.Fatalf("AnalyzeWaveform: %v", err)
	}
	checkInvariants(t, res)
	if got := res.Metrics.PitchMean; math.Abs(got-160) > 20 {
		t.Errorf("pitch_mean = %.2f, want 160 ± 20", got)
	}
}

func TestAnalyzeWaveform_InvalidRate(t *testing.T) {
	t.Parallel()
	_, err := newAnalyzer(t).AnalyzeWaveform(context.Background(), audio.Waveform{Samples: silence(2)})
	if !errors.Is(err, speech.ErrNoAnalysis) {
		t.Errorf("err = %v, want ErrNoAnalysis", err)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	cfg := speech.DefaultConfig()
	cfg.Weights.Calmness = 0.5
	if _, err := speech.New(cfg); err == nil {
		t.Fatal("expected error for weights not summing to 1")
	}
}

func TestNew_CopiesConfig(t *testing.T) {
	t.Parallel()
	cfg := speech.DefaultConfig()
	a, err := speech.New(cfg)
	if err != nil {
		t.Fatalf("speech.New: %v", err)
	}
	cfg.Emotion.Ranges[0].MinHz = 1
	if got := a.Config().Emotion.Ranges[0].MinHz; got == 1 {
		t.Error("analyzer config shares the emotion table with the caller")
	}
}

// recordingObserver captures observer callbacks.
type recordingObserver struct {
	mu       sync.Mutex
	stages   map[string]speech.StageStatus
	outcomes []string
}

func (o *recordingObserver) StageCompleted(_ context.Context, stage string, status speech.StageStatus, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stages == nil {
		o.stages = map[string]speech.StageStatus{}
	}
	o.stages[stage] = status
}

func (o *recordingObserver) AnalysisCompleted(_ context.Context, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func TestObserver_ReceivesStagesAndOutcomes(t *testing.T) {
	t.Parallel()
	obs := &recordingObserver{}
	a := newAnalyzer(t, speech.WithObserver(obs))

	res := analyze(t, a, tone(150, 0.5, 1.5))
	if _, err := a.AnalyzeAudio(context.Background(), pcm16(tone(150, 0.5, 0.1))); err == nil {
		t.Fatal("expected error for short input")
	}
	if _, err := a.AnalyzeAudio(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty input")
	}

	wantStages := []string{
		speech.StageFrames, speech.StagePitch, speech.StageEnergy, speech.StageSpectral,
		speech.StageSpeakingRate, speech.StagePauses, speech.StageVoiceQuality,
		speech.StageConfidence, speech.StageEmotion, speech.StageFluency,
		speech.StageClarity, speech.StageStress, speech.StageQuality,
	}
	if len(res.Stages) != len(wantStages) {
		t.Fatalf("stage reports = %d, want %d", len(res.Stages), len(wantStages))
	}
	for i, name := range wantStages {
		if res.Stages[i].Name != name {
			t.Errorf("stage %d = %q, want %q", i, res.Stages[i].Name, name)
		}
		if _, ok := obs.stages[name]; !ok {
			t.Errorf("observer missed stage %q", name)
		}
	}
	wantOutcomes := []string{speech.OutcomeOK, speech.OutcomeInsufficientAudio, speech.OutcomeUndecodable}
	if !reflect.DeepEqual(obs.outcomes, wantOutcomes) {
		t.Errorf("outcomes = %v, want %v", obs.outcomes, wantOutcomes)
	}
}
