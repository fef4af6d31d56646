package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/speechscope/internal/config"
)

const watcherBaseYAML = `
server:
  log_level: info
analysis:
  min_duration: 1s
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
}

// reloads collects watcher callbacks.
type reloads struct {
	mu     sync.Mutex
	pairs  [][2]*config.Config
	notify chan struct{}
}

func (r *reloads) record(old, new *config.Config) {
	r.mu.Lock()
	r.pairs = append(r.pairs, [2]*config.Config{old, new})
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *reloads) snapshot() [][2]*config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][2]*config.Config(nil), r.pairs...)
}

// startWatcher writes initial to a temp file and watches it with a short
// polling interval.
func startWatcher(t *testing.T, initial string) (*config.Watcher, string, *reloads) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speechscope.yaml")
	writeFile(t, path, initial)

	r := &reloads{notify: make(chan struct{}, 1)}
	w, err := config.NewWatcher(path, r.record, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	// Let the first poll record the initial hash and mtime.
	time.Sleep(100 * time.Millisecond)
	return w, path, r
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	w, _, _ := startWatcher(t, watcherBaseYAML)

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current() returned nil after initial load")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Analysis.MinDuration != time.Second {
		t.Errorf("min_duration: got %s, want 1s", cfg.Analysis.MinDuration)
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		edit         string
		wantLevel    bool
		wantAnalysis bool
		wantLimits   bool
	}{
		{
			name:         "log level and calibration",
			edit:         "server:\n  log_level: debug\nanalysis:\n  min_duration: 2s\n",
			wantLevel:    true,
			wantAnalysis: true,
		},
		{
			name:         "emotion table only",
			edit:         watcherBaseYAML + "  emotion:\n    neutral_confidence: 0.5\n",
			wantAnalysis: true,
		},
		{
			name:       "upload limit only",
			edit:       "server:\n  log_level: info\n  max_upload_bytes: 4096\nanalysis:\n  min_duration: 1s\n",
			wantLimits: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, path, r := startWatcher(t, watcherBaseYAML)
			writeFile(t, path, tt.edit)

			select {
			case <-r.notify:
			case <-time.After(2 * time.Second):
				t.Fatal("callback was not invoked within timeout")
			}

			got := r.snapshot()
			old, new := got[0][0], got[0][1]
			if old == nil || new == nil {
				t.Fatal("callback received nil configs")
			}
			d := config.Diff(old, new)
			if d.LogLevelChanged != tt.wantLevel || d.AnalysisChanged != tt.wantAnalysis || d.LimitsChanged != tt.wantLimits {
				t.Errorf("diff = %+v, want level=%v analysis=%v limits=%v",
					d, tt.wantLevel, tt.wantAnalysis, tt.wantLimits)
			}
			if w.Current() != new {
				t.Error("Current() does not return the reloaded config")
			}
		})
	}
}

func TestWatcher_InvalidEditKeepsOldConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		edit string
	}{
		{name: "bad log level", edit: "server:\n  log_level: bananas\n"},
		{name: "unknown key", edit: "analysis:\n  min_durration: 2s\n"},
		{name: "weights off", edit: "analysis:\n  weights:\n    calmness: 0.5\n"},
		{name: "metrics on analyze route", edit: "telemetry:\n  metrics_path: /v1/analyze\n"},
		{name: "not yaml", edit: "analysis: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, path, r := startWatcher(t, watcherBaseYAML)
			before := w.Current()
			writeFile(t, path, tt.edit)

			// Wait enough polls for it to notice the change.
			time.Sleep(300 * time.Millisecond)

			if n := len(r.snapshot()); n != 0 {
				t.Errorf("callback fired %d times for an invalid edit", n)
			}
			if w.Current() != before {
				t.Error("Current() replaced the last good config")
			}
		})
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	w, _, _ := startWatcher(t, watcherBaseYAML)
	w.Stop()
	w.Stop()
}

func TestWatcher_TouchWithoutContentChange(t *testing.T) {
	t.Parallel()
	_, path, r := startWatcher(t, watcherBaseYAML)

	now := time.Now().Add(time.Second)
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatalf("failed to touch file: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if n := len(r.snapshot()); n != 0 {
		t.Errorf("callback fired %d times for a touch without edits", n)
	}
}
