package monitoring

import (
	"log"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

var traceEnabled atomic.Bool

// SetTraceEnabled toggles per-pass rule tracing. Tracing is off by default
// because a pass runs once per input frame.
func SetTraceEnabled(enabled bool) {
	traceEnabled.Store(enabled)
}

// TraceEnabled reports whether Tracef emits anything.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

// Tracef logs through Logf when tracing is enabled.
func Tracef(format string, v ...interface{}) {
	if !traceEnabled.Load() {
		return
	}
	Logf(format, v...)
}
