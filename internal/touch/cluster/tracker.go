package cluster

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/palmreject/internal/monitoring"
	"github.com/banshee-data/palmreject/internal/touch"
	"github.com/banshee-data/palmreject/internal/touch/ledger"
)

var inf = math.Inf(1)

// Config holds cluster tracker parameters. Distances are in pixels and
// intervals in seconds.
type Config struct {
	JoinDistance       float64 // beyond this a new contact opens its own cluster
	MaxClusters        int     // above this many active clusters far contacts still join
	CenterSmoothing    float64 // lambda for the center EMA
	StaleInterval      float64
	PenStaleInterval   float64 // shorter staleness for pen clusters
	StalePenRadius     float64 // a stale pen this close attracts a returning pen
	MaxPenEventDelay   float64 // retention slack behind the oldest reclassifiable contact
	ExactOrderingLimit int     // exact path ordering up to this many clusters

	// Edge-thumb detection; disabled when the screen size is zero.
	ScreenWidth          float64
	ScreenHeight         float64
	EdgeMargin           float64
	EdgeThumbMaxTravel   float64
	EdgeThumbMinDuration float64
}

// DefaultConfig returns the production cluster parameters.
func DefaultConfig() Config {
	return Config{
		JoinDistance:         100,
		MaxClusters:          6,
		CenterSmoothing:      0.15,
		StaleInterval:        0.5,
		PenStaleInterval:     0.25,
		StalePenRadius:       60,
		MaxPenEventDelay:     0.25,
		ExactOrderingLimit:   6,
		EdgeMargin:           24,
		EdgeThumbMaxTravel:   20,
		EdgeThumbMinDuration: 0.5,
	}
}

// ContactSource is the read-only view of the ledger the tracker needs.
type ContactSource interface {
	Contact(id touch.ContactID) (*ledger.Contact, bool)
}

// Tracker owns every cluster.
type Tracker struct {
	cfg      Config
	contacts ContactSource

	clusters  touch.Arena[*Cluster]
	active    []ID
	stale     []ID
	byContact map[touch.ContactID]ID
	nextSeq   uint64
}

// NewTracker creates a Tracker reading contact records from contacts.
func NewTracker(cfg Config, contacts ContactSource) *Tracker {
	if cfg.MaxClusters <= 0 {
		cfg.MaxClusters = 6
	}
	if cfg.ExactOrderingLimit <= 0 {
		cfg.ExactOrderingLimit = 6
	}
	if cfg.CenterSmoothing <= 0 || cfg.CenterSmoothing > 1 {
		cfg.CenterSmoothing = 0.15
	}
	return &Tracker{
		cfg:       cfg,
		contacts:  contacts,
		byContact: make(map[touch.ContactID]ID),
	}
}

// Config returns the tracker parameters.
func (t *Tracker) Config() Config { return t.cfg }

// Get resolves a cluster id.
func (t *Tracker) Get(id ID) (*Cluster, bool) {
	return t.clusters.Get(id)
}

// ClusterOf returns the cluster currently holding contact id.
func (t *Tracker) ClusterOf(id touch.ContactID) (*Cluster, bool) {
	cid, ok := t.byContact[id]
	if !ok {
		return nil, false
	}
	c, ok := t.clusters.Get(cid)
	return c, ok
}

// MustClusterOf returns the cluster of a tracked contact; a miss is a
// programming error.
func (t *Tracker) MustClusterOf(id touch.ContactID) *Cluster {
	c, ok := t.ClusterOf(id)
	touch.Assertf(ok, "cluster: no cluster for tracked contact %d", id)
	return c
}

// Active returns the active clusters in creation order.
func (t *Tracker) Active() []*Cluster { return t.resolve(t.active) }

// Stale returns the stale clusters in creation order.
func (t *Tracker) Stale() []*Cluster { return t.resolve(t.stale) }

// All returns active and stale clusters ordered by first activity.
func (t *Tracker) All() []*Cluster {
	out := append(t.resolve(t.active), t.resolve(t.stale)...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstTimestamp != out[j].FirstTimestamp {
			return out[i].FirstTimestamp < out[j].FirstTimestamp
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// ActiveCount returns the number of active clusters.
func (t *Tracker) ActiveCount() int { return len(t.active) }

func (t *Tracker) resolve(ids []ID) []*Cluster {
	out := make([]*Cluster, 0, len(ids))
	for _, id := range ids {
		c, ok := t.clusters.Get(id)
		if touch.Assertf(ok, "cluster: dangling cluster id %v", id) {
			out = append(out, c)
		}
	}
	return out
}

// LivePenExists reports whether a pen-typed cluster has a member on the
// surface.
func (t *Tracker) LivePenExists() bool {
	for _, c := range t.Active() {
		if c.IsPenTyped() && c.liveMembers > 0 {
			return true
		}
	}
	return false
}

// Assign places a newly began contact into a cluster and returns it.
func (t *Tracker) Assign(contact *ledger.Contact) *Cluster {
	if existing, ok := t.ClusterOf(contact.ID); ok {
		touch.Assertf(false, "cluster: contact %d assigned twice", contact.ID)
		return existing
	}
	pos := contact.Centroid()
	nearest, d2 := t.nearestOpen(pos)

	forceNew := false
	if nearest != nil {
		switch {
		case nearest.IsPenTyped(), nearest.Label == touch.LabelFinger:
			forceNew = true
		case !t.LivePenExists() && t.stalePenNear(pos):
			forceNew = true
		}
	}

	var target *Cluster
	switch {
	case nearest == nil || forceNew:
		target = t.create(contact)
	case d2 > t.cfg.JoinDistance*t.cfg.JoinDistance && len(t.active) < t.cfg.MaxClusters:
		target = t.create(contact)
	default:
		target = nearest
		t.join(target, contact)
	}
	t.updateEdgeThumb(target, contact)
	monitoring.Tracef("[cluster] contact %d -> cluster seq=%d members=%d", contact.ID, target.Seq, len(target.Members))
	return target
}

func (t *Tracker) nearestOpen(p touch.Point) (*Cluster, float64) {
	var best *Cluster
	bestD2 := inf
	for _, c := range t.Active() {
		if c.ClosedToNewTouches {
			continue
		}
		d2 := c.Center.Dist2(p)
		if d2 < bestD2 || (d2 == bestD2 && best != nil && c.Seq < best.Seq) {
			best, bestD2 = c, d2
		}
	}
	return best, bestD2
}

// stalePenNear reports whether a lifted pen cluster (stale, or active with
// every member ended) lies within StalePenRadius of p.
func (t *Tracker) stalePenNear(p touch.Point) bool {
	r2 := t.cfg.StalePenRadius * t.cfg.StalePenRadius
	for _, c := range t.All() {
		if c.IsPenTyped() && c.AllEnded() && c.Center.Dist2(p) <= r2 {
			return true
		}
	}
	return false
}

func (t *Tracker) create(contact *ledger.Contact) *Cluster {
	t.nextSeq++
	first := contact.First()
	c := &Cluster{
		Seq:            t.nextSeq,
		Members:        []touch.ContactID{contact.ID},
		Center:         contact.Centroid(),
		Label:          touch.LabelUnknown,
		PenOdds:        1,
		PenProbability: 0.5,
		FirstTimestamp: first.Timestamp,
		LastTimestamp:  contact.LastTimestamp,
	}
	for _, s := range contact.Samples {
		if s.HasRadius {
			c.addRadius(s.Radius)
		}
	}
	c.ID = t.clusters.Insert(c)
	t.active = append(t.active, c.ID)
	t.byContact[contact.ID] = c.ID
	c.recount(t.contacts)
	return c
}

func (t *Tracker) join(c *Cluster, contact *ledger.Contact) {
	if c.liveMembers > 0 {
		c.SimultaneousTouches = true
	}
	c.Members = append(c.Members, contact.ID)
	t.byContact[contact.ID] = c.ID
	for _, s := range contact.Samples {
		c.touchSample(s, t.cfg.CenterSmoothing)
	}
	c.recount(t.contacts)
}

// Observe folds a member's latest sample into its cluster.
func (t *Tracker) Observe(contact *ledger.Contact) {
	c := t.MustClusterOf(contact.ID)
	if c == nil {
		return
	}
	c.touchSample(contact.Latest(), t.cfg.CenterSmoothing)
	t.updateEdgeThumb(c, contact)
}

// MemberEnded records that a member left the surface. A cluster whose
// members were all cancelled goes stale immediately.
func (t *Tracker) MemberEnded(contact *ledger.Contact) {
	c := t.MustClusterOf(contact.ID)
	if c == nil {
		return
	}
	if contact.EndTimestamp > c.LastTimestamp {
		c.LastTimestamp = contact.EndTimestamp
	}
	c.recount(t.contacts)
	if c.IsPenTyped() && c.AllEnded() {
		c.ClosedToNewTouches = true
	}
	if !c.Stale && c.AllCancelled() {
		t.markStale(c, contact.EndTimestamp)
	}
}

// Close stops a cluster from accepting new contacts.
func (t *Tracker) Close(id ID) {
	if c, ok := t.clusters.Get(id); touch.Assertf(ok, "cluster: close of unknown cluster %v", id) {
		c.ClosedToNewTouches = true
	}
}

// UpdateStaleness moves every active cluster whose members have all ended
// and whose last activity is at least the stale interval old to the stale
// set. reclassifiable, when non-nil, can hold a cluster active while any of
// its members may still change label. It returns the newly stale clusters.
func (t *Tracker) UpdateStaleness(now float64, reclassifiable func(*Cluster) bool) []*Cluster {
	var out []*Cluster
	for _, c := range t.Active() {
		if !c.AllEnded() {
			continue
		}
		interval := t.cfg.StaleInterval
		if c.IsPenTyped() {
			interval = t.cfg.PenStaleInterval
		}
		if now-c.LastTimestamp < interval {
			continue
		}
		if reclassifiable != nil && reclassifiable(c) {
			continue
		}
		t.markStale(c, now)
		out = append(out, c)
	}
	return out
}

func (t *Tracker) markStale(c *Cluster, now float64) {
	if c.Stale {
		return
	}
	c.Stale = true
	c.BecameStaleAt = now
	c.ClosedToNewTouches = true
	t.active = removeID(t.active, c.ID)
	t.stale = append(t.stale, c.ID)
}

// ForceExpireAll makes every active cluster stale, as after a platform-wide
// cancellation.
func (t *Tracker) ForceExpireAll(now float64) []*Cluster {
	expired := t.Active()
	for _, c := range expired {
		t.markStale(c, now)
	}
	if len(expired) > 0 {
		monitoring.Logf("[cluster] force-expired %d clusters at t=%.3f", len(expired), now)
	}
	return expired
}

// Purge removes stale clusters that are no longer concurrent with any
// active cluster and are older than oldestFirst-MaxPenEventDelay, where
// oldestFirst is the begin time of the oldest reclassifiable contact
// (haveOldest false means there is none). Purged clusters are returned so
// the caller can forget their contacts.
func (t *Tracker) Purge(oldestFirst float64, haveOldest bool) []*Cluster {
	var purged []*Cluster
	active := t.Active()
	for _, c := range t.Stale() {
		if t.concurrentWithAny(c, active) {
			continue
		}
		if haveOldest && c.LastTimestamp >= oldestFirst-t.cfg.MaxPenEventDelay {
			continue
		}
		purged = append(purged, c)
	}
	for _, c := range purged {
		t.evict(c)
	}
	return purged
}

func (t *Tracker) concurrentWithAny(c *Cluster, others []*Cluster) bool {
	for _, o := range others {
		if ledger.IntervalsOverlap(c.FirstTimestamp, c.ActiveUntil(), o.FirstTimestamp, o.ActiveUntil(), t.cfg.StaleInterval) {
			return true
		}
	}
	return false
}

// RemoveContact drops a contact from its cluster. A cluster left without
// members is labelled Removed and evicted; it is returned with emptied=true.
func (t *Tracker) RemoveContact(id touch.ContactID) (c *Cluster, emptied bool) {
	c = t.MustClusterOf(id)
	if c == nil {
		return nil, false
	}
	c.removeMember(id)
	delete(t.byContact, id)
	c.recount(t.contacts)
	if len(c.Members) == 0 {
		c.Label = touch.LabelRemoved
		t.evict(c)
		return c, true
	}
	return c, false
}

// Split moves a contact out of its cluster into a new one of its own.
func (t *Tracker) Split(contact *ledger.Contact) *Cluster {
	old, emptied := t.RemoveContact(contact.ID)
	if old != nil && !emptied {
		// Rebuild the old center from the remaining members.
		old.Center = t.membersCentroid(old)
	}
	return t.create(contact)
}

func (t *Tracker) membersCentroid(c *Cluster) touch.Point {
	var sum touch.Point
	n := 0
	for _, id := range c.Members {
		if contact, ok := t.contacts.Contact(id); ok {
			sum = sum.Add(contact.Latest().Pos)
			n++
		}
	}
	if n == 0 {
		return c.Center
	}
	return sum.Scale(1 / float64(n))
}

func (t *Tracker) evict(c *Cluster) {
	c.Removed = true
	t.active = removeID(t.active, c.ID)
	t.stale = removeID(t.stale, c.ID)
	for _, m := range c.Members {
		if t.byContact[m] == c.ID {
			delete(t.byContact, m)
		}
	}
	t.clusters.Remove(c.ID)
}

// CheckInvariants verifies that no contact is a member of two clusters and
// that the contact index agrees with cluster membership.
func (t *Tracker) CheckInvariants() error {
	seen := make(map[touch.ContactID]uint64)
	var err error
	t.clusters.Each(func(id ID, c *Cluster) bool {
		for _, m := range c.Members {
			if prev, dup := seen[m]; dup {
				err = fmt.Errorf("contact %d in clusters seq=%d and seq=%d", m, prev, c.Seq)
				return false
			}
			seen[m] = c.Seq
			if t.byContact[m] != id {
				err = fmt.Errorf("contact %d index points away from cluster seq=%d", m, c.Seq)
				return false
			}
		}
		return true
	})
	if err != nil {
		return err
	}
	if len(seen) != len(t.byContact) {
		return fmt.Errorf("contact index has %d entries, clusters hold %d members", len(t.byContact), len(seen))
	}
	return nil
}

func removeID(ids []ID, id ID) []ID {
	for i, x := range ids {
		if x == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
