package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEmptyTuningConfig_Defaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetHardwareCutoff(); got != 0.8 {
		t.Errorf("GetHardwareCutoff() = %v, want 0.8", got)
	}
	if got := cfg.GetHandednessLockArcLength(); got != 88 {
		t.Errorf("GetHandednessLockArcLength() = %v, want 88", got)
	}
	if got := cfg.GetMaxClusters(); got != 6 {
		t.Errorf("GetMaxClusters() = %d, want 6", got)
	}
	if got := cfg.GetStaleInterval(); got != 500*time.Millisecond {
		t.Errorf("GetStaleInterval() = %v, want 500ms", got)
	}
	if got := cfg.GetMaxPenEventDelay(); got != 250*time.Millisecond {
		t.Errorf("GetMaxPenEventDelay() = %v, want 250ms", got)
	}
	if cfg.GetDumbStylus() {
		t.Error("GetDumbStylus() = true, want false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty config should validate: %v", err)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "hardware_cutoff": 0.9,
  "stale_interval": "750ms",
  "max_clusters": 4,
  "dumb_stylus": true
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if got := cfg.GetHardwareCutoff(); got != 0.9 {
		t.Errorf("GetHardwareCutoff() = %v, want 0.9", got)
	}
	if got := cfg.GetStaleInterval(); got != 750*time.Millisecond {
		t.Errorf("GetStaleInterval() = %v, want 750ms", got)
	}
	if got := cfg.GetMaxClusters(); got != 4 {
		t.Errorf("GetMaxClusters() = %d, want 4", got)
	}
	if !cfg.GetDumbStylus() {
		t.Error("GetDumbStylus() = false, want true")
	}
	// Omitted fields keep their defaults.
	if got := cfg.GetJoinDistance(); got != 100 {
		t.Errorf("GetJoinDistance() = %v, want 100", got)
	}
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"wrong extension", write("cfg.yaml", "{}"), ".json extension"},
		{"missing file", filepath.Join(tmpDir, "missing.json"), "failed to stat"},
		{"bad json", write("bad.json", "{"), "failed to parse"},
		{"bad duration", write("dur.json", `{"stale_interval": "soon"}`), "invalid stale_interval"},
		{"negative duration", write("neg.json", `{"debounce_interval": "-5ms"}`), "non-negative"},
		{"probability range", write("prob.json", `{"hardware_cutoff": 1.5}`), "between 0 and 1"},
		{"cluster cap", write("cap.json", `{"max_clusters": 0}`), "max_clusters"},
		{"geometry band", write("band.json", `{"geometry_pen_threshold": 0.2, "geometry_palm_threshold": 0.4}`), "exceeds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTuningConfig(tt.path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadTuningConfig_TooLarge(t *testing.T) {
	p := filepath.Join(t.TempDir(), "huge.json")
	if err := os.WriteFile(p, make([]byte, 1024*1024+1), 0644); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if _, err := LoadTuningConfig(p); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.HardwareCutoff == nil || *cfg.HardwareCutoff != 0.8 {
		t.Errorf("defaults file hardware_cutoff = %v, want 0.8", cfg.HardwareCutoff)
	}
	if got := cfg.GetDebounceInterval(); got != 15*time.Millisecond {
		t.Errorf("GetDebounceInterval() = %v, want 15ms", got)
	}
}
