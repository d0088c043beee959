// Package handedness keeps a running estimate of where the pen and the
// palm are relative to each other.
//
// Pen and palm locations are weighted medians of the current cluster
// centers, weighted by each cluster's pen and palm probability, smoothed at
// a slow and a fast time constant. The slow pair defines the handedness
// direction; the fast pair disagreeing with it flags a reversal (the user
// switched hands or rotated the device).
package handedness

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/palmreject/internal/monitoring"
	"github.com/banshee-data/palmreject/internal/touch"
)

// Config holds handedness parameters. Distances are in pixels, times in
// seconds.
type Config struct {
	SlowTau        float64
	FastTau        float64
	MinSeparation  float64 // confidence is zero at or below this
	FullSeparation float64 // confidence is one at or above this
	ReversalCosine float64 // fast/slow direction cosine below this is a reversal
	MinWeight      float64 // total weight needed to update an estimate
	MaxPriorSkew   float64 // largest deviation of Prior from 0.5
	PriorSoftness  float64 // projection distance (px) giving tanh(1) of the skew
}

// DefaultConfig returns the production parameters.
func DefaultConfig() Config {
	return Config{
		SlowTau:        2.0,
		FastTau:        0.25,
		MinSeparation:  40,
		FullSeparation: 200,
		ReversalCosine: -0.5,
		MinWeight:      0.1,
		MaxPriorSkew:   0.35,
		PriorSoftness:  100,
	}
}

// Observation is one cluster's contribution.
type Observation struct {
	Pos        touch.Point
	PenWeight  float64
	PalmWeight float64
}

type estimate struct {
	pos  touch.Point
	have bool
}

func (e *estimate) blend(p touch.Point, alpha float64) {
	if !e.have {
		e.pos, e.have = p, true
		return
	}
	e.pos = e.pos.Lerp(p, alpha)
}

// Tracker holds the smoothed estimates.
type Tracker struct {
	cfg Config

	slowPen, slowPalm estimate
	fastPen, fastPalm estimate

	last     float64
	haveLast bool
}

// NewTracker creates a Tracker.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg}
}

// Reset forgets every estimate.
func (t *Tracker) Reset() {
	*t = Tracker{cfg: t.cfg}
}

// WeightedMedian returns the coordinate-wise weighted median of pts, and
// false when the weights sum to less than minWeight.
func WeightedMedian(pts []touch.Point, weights []float64, minWeight float64) (touch.Point, bool) {
	total := 0.0
	for _, w := range weights {
		total += math.Max(w, 0)
	}
	if len(pts) == 0 || total < minWeight || total == 0 {
		return touch.Point{}, false
	}
	axis := func(get func(touch.Point) float64) float64 {
		idx := make([]int, len(pts))
		for i := range idx {
			idx[i] = i
		}
		sort.Slice(idx, func(a, b int) bool { return get(pts[idx[a]]) < get(pts[idx[b]]) })
		xs := make([]float64, len(pts))
		ws := make([]float64, len(pts))
		for i, j := range idx {
			xs[i] = get(pts[j])
			ws[i] = math.Max(weights[j], 0)
		}
		return stat.Quantile(0.5, stat.Empirical, xs, ws)
	}
	return touch.Point{
		X: axis(func(p touch.Point) float64 { return p.X }),
		Y: axis(func(p touch.Point) float64 { return p.Y }),
	}, true
}

func alpha(dt, tau float64) float64 {
	if tau <= 0 {
		return 1
	}
	return 1 - math.Exp(-dt/tau)
}

// Update folds the current cluster observations in at time now.
func (t *Tracker) Update(now float64, obs []Observation) {
	dt := 0.0
	if t.haveLast {
		dt = math.Max(0, now-t.last)
	}
	t.last, t.haveLast = now, true

	pts := make([]touch.Point, len(obs))
	pen := make([]float64, len(obs))
	palm := make([]float64, len(obs))
	for i, o := range obs {
		pts[i], pen[i], palm[i] = o.Pos, o.PenWeight, o.PalmWeight
	}
	slow, fast := alpha(dt, t.cfg.SlowTau), alpha(dt, t.cfg.FastTau)
	if p, ok := WeightedMedian(pts, pen, t.cfg.MinWeight); ok {
		t.slowPen.blend(p, slow)
		t.fastPen.blend(p, fast)
	}
	if p, ok := WeightedMedian(pts, palm, t.cfg.MinWeight); ok {
		t.slowPalm.blend(p, slow)
		t.fastPalm.blend(p, fast)
	}
	if t.Reversed() {
		monitoring.Tracef("[handedness] reversal at t=%.3f", now)
	}
}

// PenLocation returns the slow pen estimate.
func (t *Tracker) PenLocation() (touch.Point, bool) { return t.slowPen.pos, t.slowPen.have }

// PalmLocation returns the slow palm estimate.
func (t *Tracker) PalmLocation() (touch.Point, bool) { return t.slowPalm.pos, t.slowPalm.have }

// Separation returns the slow pen-palm distance, or 0 without both.
func (t *Tracker) Separation() float64 {
	if !t.slowPen.have || !t.slowPalm.have {
		return 0
	}
	return t.slowPen.pos.Dist(t.slowPalm.pos)
}

// Direction returns the unit vector from palm to pen, or zero when unknown.
func (t *Tracker) Direction() touch.Point {
	if !t.slowPen.have || !t.slowPalm.have {
		return touch.Point{}
	}
	return t.slowPen.pos.Sub(t.slowPalm.pos).Unit()
}

func (t *Tracker) fastDirection() touch.Point {
	if !t.fastPen.have || !t.fastPalm.have {
		return touch.Point{}
	}
	d := t.fastPen.pos.Sub(t.fastPalm.pos)
	if d.Norm() <= t.cfg.MinSeparation {
		return touch.Point{}
	}
	return d.Unit()
}

// Reversed reports whether the recent direction opposes the baseline.
func (t *Tracker) Reversed() bool {
	fast, slow := t.fastDirection(), t.Direction()
	if fast.Norm() == 0 || slow.Norm() == 0 {
		return false
	}
	return fast.Dot(slow) < t.cfg.ReversalCosine
}

// Confidence ramps from 0 to 1 with the pen-palm separation and is zero
// during a reversal.
func (t *Tracker) Confidence() float64 {
	if t.Reversed() {
		return 0
	}
	span := t.cfg.FullSeparation - t.cfg.MinSeparation
	if span <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, (t.Separation()-t.cfg.MinSeparation)/span))
}

// PenDirection returns Direction when there is any confidence in it, else
// the zero vector. It is the argument to cluster.Tracker.MarkEnds.
func (t *Tracker) PenDirection() touch.Point {
	if t.Confidence() == 0 {
		return touch.Point{}
	}
	return t.Direction()
}

// Prior returns the spatial prior that a contact at p is the pen: 0.5 when
// nothing is known, skewed toward the pen side in proportion to confidence.
func (t *Tracker) Prior(p touch.Point) float64 {
	conf := t.Confidence()
	if conf == 0 {
		return 0.5
	}
	mid := t.slowPen.pos.Lerp(t.slowPalm.pos, 0.5)
	proj := p.Sub(mid).Dot(t.Direction())
	return 0.5 + t.cfg.MaxPriorSkew*conf*math.Tanh(proj/t.cfg.PriorSoftness)
}
