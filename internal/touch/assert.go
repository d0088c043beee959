package touch

import (
	"fmt"

	"github.com/banshee-data/palmreject/internal/monitoring"
)

// DebugAssertions makes Assertf panic instead of logging. Tests enable it;
// production builds leave it off so an integration bug degrades to a no-op.
var DebugAssertions = false

// Assertf reports a programming error such as a lookup of an untracked
// contact or cluster. It returns cond so callers can bail out inline:
//
//	if !touch.Assertf(ok, "unknown contact %d", id) {
//		return
//	}
func Assertf(cond bool, format string, args ...interface{}) bool {
	if cond {
		return true
	}
	msg := fmt.Sprintf(format, args...)
	if DebugAssertions {
		panic("touch: assertion failed: " + msg)
	}
	monitoring.Logf("[touch] assertion failed: %s", msg)
	return false
}
