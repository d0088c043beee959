package ledger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/palmreject/internal/touch"
)

func snap(id touch.ContactID, phase touch.Phase, x, y, t float64) touch.ContactSnapshot {
	return touch.ContactSnapshot{ID: id, Phase: phase, Pos: touch.Point{X: x, Y: y}, Timestamp: t}
}

func withRadius(s touch.ContactSnapshot, r float64) touch.ContactSnapshot {
	s.Radius = r
	s.HasRadius = true
	return s
}

func TestRecordContactBatch_Lifecycle(t *testing.T) {
	t.Parallel()
	l := New(0)

	res := l.RecordContactBatch([]touch.ContactSnapshot{snap(1, touch.PhaseBegan, 0, 0, 0)})
	assert.Equal(t, []touch.ContactID{1}, res.Began)
	assert.True(t, res.Changed())

	res = l.RecordContactBatch([]touch.ContactSnapshot{snap(1, touch.PhaseMoved, 3, 4, 0.01)})
	assert.Equal(t, []touch.ContactID{1}, res.Moved)

	res = l.RecordContactBatch([]touch.ContactSnapshot{snap(1, touch.PhaseEnded, 3, 8, 0.02)})
	assert.Equal(t, []touch.ContactID{1}, res.Ended)

	c, ok := l.Contact(1)
	require.True(t, ok)
	assert.True(t, c.Ended())
	assert.InDelta(t, 9.0, c.ArcLength, 1e-9)
	assert.InDelta(t, 0.02, c.Duration(5), 1e-9)
	assert.InDelta(t, math.Sqrt(73), c.Displacement(), 1e-9) // (0,0) to (3,8)
	assert.Len(t, c.Samples, 3)

	// Samples after the end are ignored.
	l.RecordContactBatch([]touch.ContactSnapshot{snap(1, touch.PhaseMoved, 100, 100, 0.03)})
	assert.Len(t, c.Samples, 3)
}

func TestRecordContactBatch_RadiusStatistics(t *testing.T) {
	t.Parallel()
	l := New(0)
	radii := []float64{4, 6, 8, 10}
	for i, r := range radii {
		phase := touch.PhaseMoved
		if i == 0 {
			phase = touch.PhaseBegan
		}
		l.RecordContactBatch([]touch.ContactSnapshot{withRadius(snap(7, phase, float64(i), 0, float64(i)*0.01), r)})
	}
	c := l.MustContact(7)
	assert.Equal(t, 4, c.RadiusCount)
	assert.InDelta(t, 7.0, c.RadiusMean, 1e-9)
	assert.InDelta(t, 10.0, c.RadiusMax, 1e-9)
	// sample variance of 4,6,8,10
	assert.InDelta(t, 20.0/3.0, c.RadiusVariance(), 1e-9)
}

func TestRecordContactBatch_IsolationGaps(t *testing.T) {
	t.Parallel()
	l := New(0)
	l.RecordContactBatch([]touch.ContactSnapshot{snap(1, touch.PhaseBegan, 0, 0, 0)})
	l.RecordContactBatch([]touch.ContactSnapshot{snap(1, touch.PhaseEnded, 0, 0, 0.1)})
	l.RecordContactBatch([]touch.ContactSnapshot{snap(2, touch.PhaseBegan, 0, 0, 0.25)})

	first := l.MustContact(1)
	second := l.MustContact(2)
	assert.True(t, math.IsInf(first.GapSincePrevBegin, 1))
	assert.InDelta(t, 0.25, first.GapToNextBegin, 1e-9)
	assert.InDelta(t, 0.25, second.GapSincePrevBegin, 1e-9)
	assert.InDelta(t, 0.15, second.GapSincePrevEnd, 1e-9)
}

func TestRecordContactBatch_FullCancellation(t *testing.T) {
	t.Parallel()
	l := New(0)
	l.RecordContactBatch([]touch.ContactSnapshot{
		snap(1, touch.PhaseBegan, 0, 0, 0),
		snap(2, touch.PhaseBegan, 100, 0, 0),
	})

	// A partial cancellation does not set the flag.
	res := l.RecordContactBatch([]touch.ContactSnapshot{snap(1, touch.PhaseCancelled, 0, 0, 0.1)})
	assert.False(t, res.AllCancelled)
	assert.False(t, l.ConsumeAllCancelled())

	res = l.RecordContactBatch([]touch.ContactSnapshot{snap(2, touch.PhaseCancelled, 100, 0, 0.2)})
	assert.True(t, res.AllCancelled)
	assert.True(t, l.ConsumeAllCancelled())
	assert.False(t, l.ConsumeAllCancelled(), "flag is consumed once")
}

func TestRecordContactBatch_FirstSightMidStroke(t *testing.T) {
	t.Parallel()
	l := New(0)
	res := l.RecordContactBatch([]touch.ContactSnapshot{snap(3, touch.PhaseMoved, 5, 5, 1)})
	assert.Equal(t, []touch.ContactID{3}, res.Began)
	assert.Empty(t, res.Moved)

	res = l.RecordContactBatch([]touch.ContactSnapshot{snap(4, touch.PhaseEnded, 5, 5, 1.1)})
	assert.Equal(t, []touch.ContactID{4}, res.Began)
	assert.Equal(t, []touch.ContactID{4}, res.Ended)
}

func TestQueries(t *testing.T) {
	t.Parallel()
	l := New(0)
	l.RecordContactBatch([]touch.ContactSnapshot{snap(1, touch.PhaseBegan, 0, 0, 0)})
	l.RecordContactBatch([]touch.ContactSnapshot{snap(2, touch.PhaseBegan, 0, 0, 0.5)})
	l.RecordContactBatch([]touch.ContactSnapshot{snap(1, touch.PhaseEnded, 0, 0, 0.4)})
	l.RecordContactBatch([]touch.ContactSnapshot{snap(3, touch.PhaseBegan, 0, 0, 1.0)})

	assert.Len(t, l.BeganBetween(0.4, 1.0), 2)
	assert.Len(t, l.EndedBetween(0, 1), 1)
	assert.Len(t, l.Live(), 2)
	assert.Len(t, l.ContactsInPhase(touch.PhaseEnded), 1)

	assert.False(t, l.Concurrent(1, 2, 0))
	assert.True(t, l.Concurrent(1, 2, 0.2), "padding bridges the gap")
	assert.True(t, l.Concurrent(2, 3, 0))

	oldest, ok := l.OldestReclassifiable(1.0, 0.7)
	require.True(t, ok)
	assert.Equal(t, touch.ContactID(1), oldest.ID)

	oldest, ok = l.OldestReclassifiable(1.0, 0.1)
	require.True(t, ok)
	assert.Equal(t, touch.ContactID(2), oldest.ID)

	all := l.All()
	require.Len(t, all, 3)
	assert.Equal(t, touch.ContactID(1), all[0].ID)

	l.Forget(1)
	_, ok = l.Contact(1)
	assert.False(t, ok)
	assert.Equal(t, 2, l.Len())
}

func TestUnknownContactAsserts(t *testing.T) {
	touch.DebugAssertions = true
	defer func() { touch.DebugAssertions = false }()

	l := New(0)
	assert.Panics(t, func() { l.MustContact(99) })
	assert.Panics(t, func() { l.Forget(99) })
}

func TestSwitchEvents(t *testing.T) {
	t.Parallel()
	l := New(1.0)

	a := l.RecordSwitchEvent(touch.SwitchEvent{Type: touch.SwitchTipDown, Timestamp: 0.5})
	b := l.RecordSwitchEvent(touch.SwitchEvent{Type: touch.SwitchTipUp, Timestamp: 0.3})
	assert.Equal(t, uint64(1), a.ID)
	assert.Equal(t, uint64(2), b.ID)

	evs := l.SwitchEvents()
	require.Len(t, evs, 2)
	assert.Equal(t, b.ID, evs[0].ID, "log is time ordered")

	assert.Len(t, l.SwitchEventsBetween(0, 1, touch.SwitchTipDown), 1)
	assert.Len(t, l.SwitchEventsBetween(0, 1), 2)

	l.RecordSwitchEvent(touch.SwitchEvent{Type: touch.SwitchTipDown, Timestamp: 1.4})
	evs = l.SwitchEvents()
	require.Len(t, evs, 2, "event older than the window is pruned")
	assert.Equal(t, a.ID, evs[0].ID)

	assert.True(t, l.RemoveSwitchEvent(a.ID))
	assert.False(t, l.RemoveSwitchEvent(a.ID))
	last, ok := l.LastSwitchEvent()
	require.True(t, ok)
	assert.InDelta(t, 1.4, last.Timestamp, 1e-9)
}
