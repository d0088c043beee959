package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
}

func TestTracef(t *testing.T) {
	original := Logf
	defer func() {
		Logf = original
		SetTraceEnabled(false)
	}()

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	Tracef("hidden %d", 1)
	if len(lines) != 0 {
		t.Fatalf("trace emitted while disabled: %v", lines)
	}

	SetTraceEnabled(true)
	if !TraceEnabled() {
		t.Fatal("TraceEnabled() = false after enabling")
	}
	Tracef("shown %d", 2)
	if len(lines) != 1 || lines[0] != "shown 2" {
		t.Errorf("lines = %v, want [shown 2]", lines)
	}
}
