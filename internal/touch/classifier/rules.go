package classifier

import (
	"github.com/banshee-data/palmreject/internal/touch"
	"github.com/banshee-data/palmreject/internal/touch/cluster"
	"github.com/banshee-data/palmreject/internal/touch/geometry"
	"github.com/banshee-data/palmreject/internal/touch/ledger"
	"github.com/banshee-data/palmreject/internal/touch/timing"
)

// View is the read-only snapshot of one cluster a rule decides on.
type View struct {
	Cluster  *cluster.Cluster
	Members  []*ledger.Contact
	Score    timing.ClusterScore
	Geometry geometry.Result // of the longest member

	ArcLength float64 // longest member arc length
	Start     float64
	End       float64 // +Inf while any member is live
	Duration  float64 // up to now for live clusters
}

// Context carries the pass-wide state rules may read.
type Context struct {
	Now              float64
	Config           *Config
	Connected        bool
	HandednessLocked bool
	Others           []View // the other active clusters
}

func (c *Context) undecided() touch.Label {
	if c.Connected || c.Config.DumbStylus {
		return touch.LabelUnknown
	}
	return touch.LabelUnknownDisconnected
}

// Rule is one step of the classification cascade. Apply returns false
// when the rule has no opinion.
type Rule interface {
	Name() string
	Apply(v View, ctx *Context) (touch.Label, bool)
}

type ruleFunc struct {
	name  string
	apply func(View, *Context) (touch.Label, bool)
}

func (r ruleFunc) Name() string { return r.name }

func (r ruleFunc) Apply(v View, ctx *Context) (touch.Label, bool) { return r.apply(v, ctx) }

// NewRule wraps fn as a named Rule.
func NewRule(name string, fn func(View, *Context) (touch.Label, bool)) Rule {
	return ruleFunc{name: name, apply: fn}
}

// The cascade, in order.
var (
	RemovedRule = NewRule("removed", func(v View, _ *Context) (touch.Label, bool) {
		return touch.LabelRemoved, v.Cluster.Removed
	})

	EraserHardwareRule = NewRule("eraser-hardware", func(v View, ctx *Context) (touch.Label, bool) {
		return touch.LabelEraser, v.Score.EraserProbability > ctx.Config.HardwareCutoff && !v.Score.Dominated
	})

	PenHardwareRule = NewRule("pen-hardware", func(v View, ctx *Context) (touch.Label, bool) {
		return touch.LabelPen, v.Score.Probability > ctx.Config.HardwareCutoff && !v.Score.Dominated
	})

	// A cluster that has sat between two others cannot be the pen.
	InteriorPalmRule = NewRule("interior-palm", func(v View, _ *Context) (touch.Label, bool) {
		return touch.LabelPalm, v.Cluster.WasInterior
	})

	PalmEndRule = NewRule("palm-end", func(v View, ctx *Context) (touch.Label, bool) {
		return touch.LabelPalm, ctx.HandednessLocked && v.Cluster.WasAtPalmEnd && len(ctx.Others) > 0
	})

	PalmRadiusRule = NewRule("palm-radius", func(v View, ctx *Context) (touch.Label, bool) {
		return touch.LabelPalm, v.Cluster.HasRadius() && v.Cluster.RadiusMean >= ctx.Config.PalmRadiusMin
	})

	// Hold off while a switch event may still arrive.
	AwaitingEvidenceRule = NewRule("awaiting-evidence", func(v View, ctx *Context) (touch.Label, bool) {
		return touch.LabelUnknown, ctx.Connected && !ctx.Config.DumbStylus && v.Score.Awaiting
	})

	GeometryRule = NewRule("geometry", geometryRule)

	ShortConcurrentPalmRule = NewRule("short-concurrent-palm", func(v View, ctx *Context) (touch.Label, bool) {
		cfg := ctx.Config
		if v.ArcLength >= cfg.ShortArcLength || v.Duration >= cfg.ShortDuration {
			return 0, false
		}
		for _, o := range ctx.Others {
			if o.ArcLength >= cfg.MovingArcLength && ledger.IntervalsOverlap(v.Start, v.End, o.Start, o.End, 0) {
				return touch.LabelPalm, true
			}
		}
		return 0, false
	})

	MovingFingerRule = NewRule("moving-finger", func(v View, ctx *Context) (touch.Label, bool) {
		if v.ArcLength < ctx.Config.MovingArcLength {
			return 0, false
		}
		return touch.LabelFinger, !ctx.Connected || v.Score.Probability <= 0.5
	})

	UndecidedRule = NewRule("undecided", func(_ View, ctx *Context) (touch.Label, bool) {
		return ctx.undecided(), true
	})
)

// DefaultRules is the production cascade.
var DefaultRules = []Rule{
	RemovedRule,
	EraserHardwareRule,
	PenHardwareRule,
	InteriorPalmRule,
	PalmEndRule,
	PalmRadiusRule,
	AwaitingEvidenceRule,
	GeometryRule,
	ShortConcurrentPalmRule,
	MovingFingerRule,
	UndecidedRule,
}

// geometryRule trusts stroke shape when there is no switch at all, or when
// handedness is locked and the switch evidence is inconclusive.
func geometryRule(v View, ctx *Context) (touch.Label, bool) {
	cfg := ctx.Config
	if !v.Geometry.OK {
		return 0, false
	}
	ambiguous := ctx.HandednessLocked && !v.Score.Dominated && !v.Cluster.WasAtPalmEnd &&
		v.Score.Probability > cfg.AmbiguousFloor && v.Score.Probability <= cfg.HardwareCutoff
	if !cfg.DumbStylus && !ambiguous {
		return 0, false
	}
	switch {
	case v.Geometry.Score >= cfg.GeometryPenThreshold:
		return touch.LabelPen, true
	case v.Geometry.Score <= cfg.GeometryPalmThreshold:
		return touch.LabelPalm, true
	}
	return 0, false
}

// Decide runs rules in order and returns the first decision with the name
// of the rule that made it.
func Decide(rules []Rule, v View, ctx *Context) (touch.Label, string) {
	for _, r := range rules {
		if l, ok := r.Apply(v, ctx); ok {
			return l, r.Name()
		}
	}
	return ctx.undecided(), "none"
}
