package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Speed float64       `env:"PALMREJECT_TEST_SPEED" envDefault:"1"`
	Pause time.Duration `env:"PALMREJECT_TEST_PAUSE" envDefault:"250ms"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Speed != 1 {
		t.Fatalf("expected default speed 1, got %v", cfg.Speed)
	}
	if cfg.Pause != 250*time.Millisecond {
		t.Fatalf("expected default pause 250ms, got %v", cfg.Pause)
	}
}

func TestParseEnvOverride(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("PALMREJECT_TEST_SPEED", "4")

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Speed != 4 {
		t.Fatalf("expected speed 4, got %v", cfg.Speed)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("PALMREJECT_TEST_SPEED", "fast")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
