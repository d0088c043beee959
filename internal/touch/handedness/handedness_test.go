package handedness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/palmreject/internal/touch"
)

func TestWeightedMedian(t *testing.T) {
	t.Parallel()
	pts := []touch.Point{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 1000, Y: 1000}}

	p, ok := WeightedMedian(pts, []float64{1, 1, 1}, 0.1)
	assert.True(t, ok)
	assert.Equal(t, touch.Point{X: 10, Y: 10}, p)

	// The outlier cannot drag the estimate.
	p, ok = WeightedMedian(pts, []float64{3, 1, 1}, 0.1)
	assert.True(t, ok)
	assert.Equal(t, touch.Point{}, p)

	_, ok = WeightedMedian(pts, []float64{0, 0, 0.05}, 0.1)
	assert.False(t, ok)
	_, ok = WeightedMedian(nil, nil, 0)
	assert.False(t, ok)
}

func rightHanded(t *Tracker, from, to float64) {
	for ts := from; ts <= to; ts += 0.1 {
		t.Update(ts, []Observation{
			{Pos: touch.Point{X: 200, Y: 300}, PenWeight: 0.95, PalmWeight: 0.05},
			{Pos: touch.Point{X: 500, Y: 400}, PenWeight: 0.02, PalmWeight: 0.98},
		})
	}
}

func TestTracker_DirectionAndConfidence(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())
	assert.Equal(t, 0.0, tr.Confidence())
	assert.Equal(t, 0.5, tr.Prior(touch.Point{X: 1, Y: 1}))
	assert.Equal(t, touch.Point{}, tr.PenDirection())

	rightHanded(tr, 0, 2)

	pen, ok := tr.PenLocation()
	assert.True(t, ok)
	assert.InDelta(t, 200, pen.X, 1e-6)
	assert.InDelta(t, 300, pen.Y, 1e-6)
	palm, ok := tr.PalmLocation()
	assert.True(t, ok)
	assert.InDelta(t, 500, palm.X, 1e-6)
	assert.InDelta(t, 400, palm.Y, 1e-6)

	assert.Equal(t, 1.0, tr.Confidence())
	d := tr.Direction()
	assert.Less(t, d.X, 0.0)
	assert.InDelta(t, 1, d.Norm(), 1e-9)
	assert.Equal(t, d, tr.PenDirection())

	assert.Greater(t, tr.Prior(touch.Point{X: 150, Y: 300}), 0.7)
	assert.Less(t, tr.Prior(touch.Point{X: 550, Y: 400}), 0.3)
	assert.False(t, tr.Reversed())
}

func TestTracker_Reversal(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())
	rightHanded(tr, 0, 3)

	// Hands swap: the fast estimate flips within a few updates while the
	// slow baseline still points the old way.
	for ts := 3.1; ts <= 3.6; ts += 0.1 {
		tr.Update(ts, []Observation{
			{Pos: touch.Point{X: 200, Y: 300}, PenWeight: 0.02, PalmWeight: 0.98},
			{Pos: touch.Point{X: 500, Y: 400}, PenWeight: 0.95, PalmWeight: 0.05},
		})
	}
	assert.True(t, tr.Reversed())
	assert.Equal(t, 0.0, tr.Confidence())
	assert.Equal(t, 0.5, tr.Prior(touch.Point{X: 150, Y: 300}))

	tr.Reset()
	_, ok := tr.PenLocation()
	assert.False(t, ok)
}
