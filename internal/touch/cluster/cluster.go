package cluster

import (
	"github.com/banshee-data/palmreject/internal/touch"
)

// ID addresses a cluster in the tracker's arena.
type ID = touch.Handle

// EdgeThumbState tracks whether a cluster looks like a thumb resting on the
// bezel edge.
type EdgeThumbState int

const (
	EdgeThumbNone EdgeThumbState = iota
	EdgeThumbCandidate
	EdgeThumbConfirmed
	EdgeThumbRejected
)

func (s EdgeThumbState) String() string {
	switch s {
	case EdgeThumbCandidate:
		return "candidate"
	case EdgeThumbConfirmed:
		return "confirmed"
	case EdgeThumbRejected:
		return "rejected"
	}
	return "none"
}

// Cluster is a set of contacts believed to share one instrument.
type Cluster struct {
	ID  ID
	Seq uint64 // creation order

	Members []touch.ContactID
	Center  touch.Point

	// Written by the classifier.
	Label          touch.Label
	PenOdds        float64
	PenProbability float64

	SimultaneousTouches bool
	WasInterior         bool
	WasAtPalmEnd        bool
	IsEndpoint          bool
	ClosedToNewTouches  bool
	EdgeThumb           EdgeThumbState

	FirstTimestamp float64
	LastTimestamp  float64

	Stale         bool
	BecameStaleAt float64 // valid only when Stale
	Removed       bool

	RadiusCount int
	RadiusMean  float64
	radiusM2    float64

	liveMembers      int
	cancelledMembers int
}

// HasMember reports whether id belongs to the cluster.
func (c *Cluster) HasMember(id touch.ContactID) bool {
	for _, m := range c.Members {
		if m == id {
			return true
		}
	}
	return false
}

// LiveMembers returns how many members are still on the surface.
func (c *Cluster) LiveMembers() int { return c.liveMembers }

// AllEnded reports whether every member has left the surface.
func (c *Cluster) AllEnded() bool { return c.liveMembers == 0 }

// AllCancelled reports whether every member ended by cancellation.
func (c *Cluster) AllCancelled() bool {
	return len(c.Members) > 0 && c.cancelledMembers == len(c.Members)
}

// IsPenTyped reports whether the cluster is currently attributed to the stylus.
func (c *Cluster) IsPenTyped() bool { return c.Label.IsStylus() }

// HasRadius reports whether any member sample carried a contact radius.
func (c *Cluster) HasRadius() bool { return c.RadiusCount > 0 }

// RadiusVariance returns the sample variance of member radii.
func (c *Cluster) RadiusVariance() float64 {
	if c.RadiusCount < 2 {
		return 0
	}
	return c.radiusM2 / float64(c.RadiusCount-1)
}

// ActiveUntil returns the end of the cluster's activity interval, +Inf while
// any member is live.
func (c *Cluster) ActiveUntil() float64 {
	if c.liveMembers > 0 {
		return inf
	}
	return c.LastTimestamp
}

func (c *Cluster) addRadius(r float64) {
	c.RadiusCount++
	delta := r - c.RadiusMean
	c.RadiusMean += delta / float64(c.RadiusCount)
	c.radiusM2 += delta * (r - c.RadiusMean)
}

func (c *Cluster) touchSample(s touch.Sample, lambda float64) {
	c.Center = c.Center.Lerp(s.Pos, lambda)
	if s.Timestamp > c.LastTimestamp {
		c.LastTimestamp = s.Timestamp
	}
	if s.HasRadius {
		c.addRadius(s.Radius)
	}
}

func (c *Cluster) removeMember(id touch.ContactID) bool {
	for i, m := range c.Members {
		if m == id {
			c.Members = append(c.Members[:i], c.Members[i+1:]...)
			return true
		}
	}
	return false
}

// recount refreshes live/cancelled member counts from the ledger.
func (c *Cluster) recount(l ContactSource) {
	c.liveMembers, c.cancelledMembers = 0, 0
	for _, id := range c.Members {
		contact, ok := l.Contact(id)
		if !ok {
			continue
		}
		if !contact.Ended() {
			c.liveMembers++
		} else if contact.Cancelled() {
			c.cancelledMembers++
		}
	}
}
