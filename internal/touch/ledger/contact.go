package ledger

import (
	"math"

	"github.com/banshee-data/palmreject/internal/touch"
)

// Contact is the ledger's record of one contact.
type Contact struct {
	ID     touch.ContactID
	Handle touch.Handle
	Phase  touch.Phase

	Samples []touch.Sample

	FirstTimestamp float64
	LastTimestamp  float64
	// EndTimestamp is valid once Phase is terminal.
	EndTimestamp float64

	ArcLength float64

	// Radius statistics (Welford).
	RadiusCount int
	RadiusMean  float64
	RadiusMax   float64
	radiusM2    float64

	// Isolation gaps in seconds; +Inf when there was no neighbour.
	GapSincePrevBegin float64 // previous contact's begin to this begin
	GapSincePrevEnd   float64 // most recent end before this begin
	GapToNextBegin    float64 // this begin to the next contact's begin

	sumX, sumY float64
}

func newContact(id touch.ContactID, s touch.Sample) *Contact {
	c := &Contact{
		ID:                id,
		Phase:             touch.PhaseBegan,
		FirstTimestamp:    s.Timestamp,
		LastTimestamp:     s.Timestamp,
		GapSincePrevBegin: math.Inf(1),
		GapSincePrevEnd:   math.Inf(1),
		GapToNextBegin:    math.Inf(1),
	}
	c.append(s)
	return c
}

func (c *Contact) append(s touch.Sample) {
	if n := len(c.Samples); n > 0 {
		c.ArcLength += c.Samples[n-1].Pos.Dist(s.Pos)
	}
	c.Samples = append(c.Samples, s)
	c.LastTimestamp = s.Timestamp
	c.sumX += s.Pos.X
	c.sumY += s.Pos.Y
	if s.HasRadius {
		c.RadiusCount++
		delta := s.Radius - c.RadiusMean
		c.RadiusMean += delta / float64(c.RadiusCount)
		c.radiusM2 += delta * (s.Radius - c.RadiusMean)
		if s.Radius > c.RadiusMax {
			c.RadiusMax = s.Radius
		}
	}
}

// Ended reports whether the contact has left the surface.
func (c *Contact) Ended() bool { return c.Phase.IsTerminal() }

// Cancelled reports whether the platform cancelled the contact.
func (c *Contact) Cancelled() bool { return c.Phase == touch.PhaseCancelled }

// HasRadius reports whether any sample carried a contact radius.
func (c *Contact) HasRadius() bool { return c.RadiusCount > 0 }

// RadiusVariance returns the sample variance of the contact radius.
func (c *Contact) RadiusVariance() float64 {
	if c.RadiusCount < 2 {
		return 0
	}
	return c.radiusM2 / float64(c.RadiusCount-1)
}

// First returns the first sample.
func (c *Contact) First() touch.Sample { return c.Samples[0] }

// Latest returns the most recent sample.
func (c *Contact) Latest() touch.Sample { return c.Samples[len(c.Samples)-1] }

// Centroid returns the running mean position of all samples.
func (c *Contact) Centroid() touch.Point {
	n := float64(len(c.Samples))
	return touch.Point{X: c.sumX / n, Y: c.sumY / n}
}

// Displacement returns the straight-line distance from first to latest sample.
func (c *Contact) Displacement() float64 {
	return c.First().Pos.Dist(c.Latest().Pos)
}

// Duration returns how long the contact has been (or was) on the surface.
func (c *Contact) Duration(now float64) float64 {
	if c.Ended() {
		return c.EndTimestamp - c.FirstTimestamp
	}
	return math.Max(0, now-c.FirstTimestamp)
}

// ActiveUntil returns the end of the contact's active interval, +Inf while live.
func (c *Contact) ActiveUntil() float64 {
	if c.Ended() {
		return c.EndTimestamp
	}
	return math.Inf(1)
}

// Points returns the sample positions and timestamps as parallel slices.
func (c *Contact) Points() (xs, ys, ts []float64) {
	xs = make([]float64, len(c.Samples))
	ys = make([]float64, len(c.Samples))
	ts = make([]float64, len(c.Samples))
	for i, s := range c.Samples {
		xs[i], ys[i], ts[i] = s.Pos.X, s.Pos.Y, s.Timestamp
	}
	return xs, ys, ts
}
