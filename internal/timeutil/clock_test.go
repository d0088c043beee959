package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	d := clock.Since(past)

	if d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestRealClock_SleepNonPositive(t *testing.T) {
	clock := RealClock{}
	start := time.Now()
	clock.Sleep(-time.Second)
	clock.Sleep(0)
	if time.Since(start) > 100*time.Millisecond {
		t.Error("non-positive sleep blocked")
	}
}

func TestMockClock_SleepAdvances(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	clock.Sleep(250 * time.Millisecond)
	clock.Sleep(0)
	clock.Sleep(time.Second)

	if got := clock.Since(start); got != 1250*time.Millisecond {
		t.Errorf("Since() = %v, want 1.25s", got)
	}
	sleeps := clock.Sleeps()
	if len(sleeps) != 3 || sleeps[0] != 250*time.Millisecond || sleeps[1] != 0 {
		t.Errorf("Sleeps() = %v", sleeps)
	}
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	clock.Advance(time.Minute)
	if got := clock.Now(); !got.Equal(start.Add(time.Minute)) {
		t.Errorf("Now() after Advance = %v", got)
	}

	later := start.Add(time.Hour)
	clock.Set(later)
	if got := clock.Now(); !got.Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", got, later)
	}
	if got := clock.Sleeps(); len(got) != 0 {
		t.Errorf("Sleeps() = %v, want none", got)
	}
}

var _ Clock = RealClock{}
var _ Clock = (*MockClock)(nil)
