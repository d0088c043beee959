package classifier

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/palmreject/internal/touch"
	"github.com/banshee-data/palmreject/internal/touch/cluster"
	"github.com/banshee-data/palmreject/internal/touch/geometry"
	"github.com/banshee-data/palmreject/internal/touch/timing"
)

func testContext(connected bool) *Context {
	cfg := DefaultConfig()
	return &Context{Now: 1, Config: &cfg, Connected: connected}
}

func view(p float64) View {
	return View{
		Cluster: &cluster.Cluster{Seq: 1},
		Score:   timing.ClusterScore{Probability: p, Odds: p / (1 - p)},
		Start:   0,
		End:     math.Inf(1),
	}
}

func TestRules(t *testing.T) {
	t.Parallel()

	moving := view(0.3)
	moving.ArcLength = 120

	short := view(0.4)
	short.ArcLength = 2
	short.Duration = 0.1
	short.End = 0.1

	tests := []struct {
		name      string
		rule      Rule
		v         View
		connected bool
		locked    bool
		others    []View
		want      touch.Label
		applies   bool
	}{
		{"removed", RemovedRule, func() View { v := view(0.9); v.Cluster.Removed = true; return v }(), true, false, nil, touch.LabelRemoved, true},
		{"removed no opinion", RemovedRule, view(0.9), true, false, nil, 0, false},
		{"pen hardware", PenHardwareRule, view(0.95), true, false, nil, touch.LabelPen, true},
		{"pen hardware at cutoff", PenHardwareRule, view(0.8), true, false, nil, 0, false},
		{"pen hardware dominated", PenHardwareRule, func() View { v := view(0.95); v.Score.Dominated = true; return v }(), true, false, nil, 0, false},
		{"eraser hardware", EraserHardwareRule, func() View { v := view(0.1); v.Score.EraserProbability = 0.9; return v }(), true, false, nil, touch.LabelEraser, true},
		{"interior", InteriorPalmRule, func() View { v := view(0.5); v.Cluster.WasInterior = true; return v }(), true, false, nil, touch.LabelPalm, true},
		{"palm end unlocked", PalmEndRule, func() View { v := view(0.5); v.Cluster.WasAtPalmEnd = true; return v }(), true, false, []View{view(0.5)}, 0, false},
		{"palm end locked", PalmEndRule, func() View { v := view(0.5); v.Cluster.WasAtPalmEnd = true; return v }(), true, true, []View{view(0.5)}, touch.LabelPalm, true},
		{"palm end alone", PalmEndRule, func() View { v := view(0.5); v.Cluster.WasAtPalmEnd = true; return v }(), true, true, nil, 0, false},
		{"palm radius", PalmRadiusRule, func() View { v := view(0.5); v.Cluster.RadiusCount, v.Cluster.RadiusMean = 3, 25; return v }(), true, false, nil, touch.LabelPalm, true},
		{"small radius", PalmRadiusRule, func() View { v := view(0.5); v.Cluster.RadiusCount, v.Cluster.RadiusMean = 3, 4; return v }(), true, false, nil, 0, false},
		{"awaiting connected", AwaitingEvidenceRule, func() View { v := view(0.6); v.Score.Awaiting = true; return v }(), true, false, nil, touch.LabelUnknown, true},
		{"awaiting disconnected", AwaitingEvidenceRule, func() View { v := view(0.6); v.Score.Awaiting = true; return v }(), false, false, nil, 0, false},
		{"short concurrent", ShortConcurrentPalmRule, short, true, false, []View{moving}, touch.LabelPalm, true},
		{"short alone", ShortConcurrentPalmRule, short, true, false, nil, 0, false},
		{"moving finger", MovingFingerRule, moving, true, false, nil, touch.LabelFinger, true},
		{"moving likely pen", MovingFingerRule, func() View { v := moving; v.Score.Probability = 0.7; return v }(), true, false, nil, 0, false},
		{"moving disconnected", MovingFingerRule, func() View { v := moving; v.Score.Probability = 0.7; return v }(), false, false, nil, touch.LabelFinger, true},
		{"undecided connected", UndecidedRule, view(0.5), true, false, nil, touch.LabelUnknown, true},
		{"undecided disconnected", UndecidedRule, view(0.5), false, false, nil, touch.LabelUnknownDisconnected, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testContext(tt.connected)
			ctx.HandednessLocked = tt.locked
			ctx.Others = tt.others
			got, ok := tt.rule.Apply(tt.v, ctx)
			assert.Equal(t, tt.applies, ok)
			if tt.applies {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestGeometryRule(t *testing.T) {
	t.Parallel()

	withGeometry := func(p, score float64) View {
		v := view(p)
		v.Geometry = geometry.Result{OK: true, Score: score}
		return v
	}

	t.Run("ignored while switch evidence is trusted", func(t *testing.T) {
		_, ok := GeometryRule.Apply(withGeometry(0.5, 0.95), testContext(true))
		assert.False(t, ok)
	})

	t.Run("dumb stylus decides", func(t *testing.T) {
		ctx := testContext(false)
		ctx.Config.DumbStylus = true
		got, ok := GeometryRule.Apply(withGeometry(0.5, 0.95), ctx)
		assert.True(t, ok)
		assert.Equal(t, touch.LabelPen, got)

		got, ok = GeometryRule.Apply(withGeometry(0.5, 0.1), ctx)
		assert.True(t, ok)
		assert.Equal(t, touch.LabelPalm, got)

		_, ok = GeometryRule.Apply(withGeometry(0.5, 0.5), ctx)
		assert.False(t, ok)
	})

	t.Run("ambiguous band once handedness is locked", func(t *testing.T) {
		ctx := testContext(true)
		ctx.HandednessLocked = true
		got, ok := GeometryRule.Apply(withGeometry(0.5, 0.95), ctx)
		assert.True(t, ok)
		assert.Equal(t, touch.LabelPen, got)

		_, ok = GeometryRule.Apply(withGeometry(0.2, 0.95), ctx)
		assert.False(t, ok, "below the ambiguous floor")

		v := withGeometry(0.5, 0.95)
		v.Cluster.WasAtPalmEnd = true
		_, ok = GeometryRule.Apply(v, ctx)
		assert.False(t, ok, "palm end")
	})

	t.Run("insufficient stroke", func(t *testing.T) {
		ctx := testContext(false)
		ctx.Config.DumbStylus = true
		_, ok := GeometryRule.Apply(view(0.5), ctx)
		assert.False(t, ok)
	})
}

func TestDecide_FirstMatchWins(t *testing.T) {
	t.Parallel()

	v := view(0.95)
	v.Cluster.WasInterior = true
	label, rule := Decide(DefaultRules, v, testContext(true))
	assert.Equal(t, touch.LabelPen, label)
	assert.Equal(t, "pen-hardware", rule)

	label, rule = Decide(nil, v, testContext(false))
	assert.Equal(t, touch.LabelUnknownDisconnected, label)
	assert.Equal(t, "none", rule)

	custom := []Rule{NewRule("always-finger", func(View, *Context) (touch.Label, bool) { return touch.LabelFinger, true })}
	label, rule = Decide(custom, v, testContext(true))
	assert.Equal(t, touch.LabelFinger, label)
	assert.Equal(t, "always-finger", rule)
}
