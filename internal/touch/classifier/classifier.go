package classifier

import (
	"fmt"
	"sort"

	"github.com/banshee-data/palmreject/internal/monitoring"
	"github.com/banshee-data/palmreject/internal/touch"
	"github.com/banshee-data/palmreject/internal/touch/cluster"
	"github.com/banshee-data/palmreject/internal/touch/geometry"
	"github.com/banshee-data/palmreject/internal/touch/handedness"
	"github.com/banshee-data/palmreject/internal/touch/ledger"
	"github.com/banshee-data/palmreject/internal/touch/timing"
)

// Changes maps each contact whose label changed during a call to its new
// label.
type Changes map[touch.ContactID]touch.Label

// Classifier owns every stage and the authoritative label map. It is not
// safe for concurrent use and must not be re-entered from within a pass.
type Classifier struct {
	cfg   Config
	rules []Rule

	ledger   *ledger.Ledger
	tracker  *cluster.Tracker
	timing   *timing.Classifier
	geometry *geometry.Classifier
	hand     *handedness.Tracker

	labels map[touch.ContactID]touch.Label
	locked map[touch.ContactID]bool
	forced map[touch.ContactID]touch.Label
	diag   map[touch.ContactID]*Diagnostic

	connected        bool
	handednessLocked bool
	lockedPenArc     float64
	lastFingerEnd    float64
	haveFingerEnd    bool

	debounce  pendingSwitch
	offscreen pendingSwitch
	pressed   []touch.SwitchEvent
	glitches  int

	inPass       bool
	passes       uint64
	changes      Changes
	reclassified []touch.ContactID
}

// New creates a Classifier. The stylus starts disconnected.
func New(cfg Config) *Classifier {
	l := ledger.New(cfg.EventWindow)
	c := &Classifier{
		cfg:      cfg,
		rules:    DefaultRules,
		ledger:   l,
		tracker:  cluster.NewTracker(cfg.Cluster, l),
		geometry: geometry.NewClassifier(cfg.Calibration),
		hand:     handedness.NewTracker(cfg.Handedness),
		labels:   make(map[touch.ContactID]touch.Label),
		locked:   make(map[touch.ContactID]bool),
		forced:   make(map[touch.ContactID]touch.Label),
		diag:     make(map[touch.ContactID]*Diagnostic),
		changes:  make(Changes),
	}
	c.timing = timing.NewClassifier(cfg.Timing, l, c.prior)
	return c
}

// Config returns the parameters the classifier was built with.
func (c *Classifier) Config() Config { return c.cfg }

// SetRules replaces the cascade.
func (c *Classifier) SetRules(rules []Rule) { c.rules = rules }

// Now returns the latest time the classifier has seen.
func (c *Classifier) Now() float64 { return c.ledger.Now() }

func (c *Classifier) enter() bool {
	if !touch.Assertf(!c.inPass, "classifier: re-entrant call") {
		return false
	}
	c.inPass = true
	c.changes = make(Changes)
	c.reclassified = c.reclassified[:0]
	return true
}

func (c *Classifier) exit() { c.inPass = false }

// OnTouchesChanged records one frame of contact snapshots and reclassifies.
func (c *Classifier) OnTouchesChanged(batch []touch.ContactSnapshot) Changes {
	if !c.enter() {
		return nil
	}
	defer c.exit()

	for _, s := range batch {
		if s.Phase == touch.PhaseBegan {
			c.expireReused(s.ID)
		}
	}
	res := c.ledger.RecordContactBatch(batch)
	for _, id := range res.Began {
		c.began(id)
	}
	for _, id := range res.Moved {
		if _, ok := c.tracker.ClusterOf(id); ok {
			c.tracker.Observe(c.ledger.MustContact(id))
		}
	}
	for _, id := range res.Ended {
		c.ended(id)
	}
	for _, id := range res.Cancelled {
		c.ended(id)
	}
	if res.Changed() {
		c.timing.SetNeedsClassification()
	}
	return c.run(res.Timestamp, res.Changed() || res.AllCancelled)
}

// expireReused forgets a finished contact whose id the platform is about
// to reuse, so the ledger and tracker never see two lives of one id.
func (c *Classifier) expireReused(id touch.ContactID) {
	ct, ok := c.ledger.Contact(id)
	if !ok || !ct.Ended() {
		return
	}
	if _, ok := c.tracker.ClusterOf(id); ok {
		c.tracker.RemoveContact(id)
	}
	c.forget(id)
}

func (c *Classifier) forget(id touch.ContactID) {
	if _, ok := c.ledger.Contact(id); ok {
		c.ledger.Forget(id)
	}
	delete(c.labels, id)
	delete(c.locked, id)
	delete(c.forced, id)
	delete(c.diag, id)
}

func (c *Classifier) began(id touch.ContactID) {
	ct := c.ledger.MustContact(id)
	cl := c.tracker.Assign(ct)
	c.setLabel(id, c.undecided())
	c.diag[id] = &Diagnostic{ID: id, Cluster: cl.Seq}
	c.disarmOffscreenNear(ct.FirstTimestamp)
}

func (c *Classifier) ended(id touch.ContactID) {
	ct := c.ledger.MustContact(id)
	if _, ok := c.tracker.ClusterOf(id); ok {
		c.tracker.MemberEnded(ct)
	}
	if c.labels[id] == touch.LabelFinger {
		c.lastFingerEnd, c.haveFingerEnd = ct.EndTimestamp, true
	}
}

// OnSwitchEvent records a hardware switch event and reclassifies. A down
// followed by its up less than DebounceInterval later is a glitch: both are
// dropped. An up landing exactly on the deadline finds the down committed.
func (c *Classifier) OnSwitchEvent(ev touch.SwitchEvent) Changes {
	if !c.enter() {
		return nil
	}
	defer c.exit()

	c.expireDebounce(ev.Timestamp)
	if c.isGlitch(ev) {
		c.dropGlitch(ev)
		c.timing.SetNeedsClassification()
		return c.run(ev.Timestamp, true)
	}

	rec := c.ledger.RecordSwitchEvent(ev)
	if rec.Type.IsDown() {
		c.debounce = pendingSwitch{event: rec, deadline: rec.Timestamp + c.cfg.DebounceInterval, active: true}
		c.armOffscreen(rec)
	} else {
		c.disarmOffscreenOnRelease(rec)
	}
	c.timing.SetNeedsClassification()
	return c.run(rec.Timestamp, true)
}

// Advance lets time pass without input so deadlines and staleness fire.
func (c *Classifier) Advance(now float64) Changes {
	if !c.enter() {
		return nil
	}
	defer c.exit()
	c.timing.SetNeedsClassification()
	return c.run(now, true)
}

// StylusConnected records that a stylus with a switch is paired.
func (c *Classifier) StylusConnected() Changes {
	if !c.enter() {
		return nil
	}
	defer c.exit()
	c.connected = true
	monitoring.Logf("[classifier] stylus connected at t=%.3f", c.ledger.Now())
	c.timing.SetNeedsClassification()
	return c.run(c.ledger.Now(), true)
}

// StylusDisconnected records that the stylus went away. Pending switch
// deadlines are dropped.
func (c *Classifier) StylusDisconnected() Changes {
	if !c.enter() {
		return nil
	}
	defer c.exit()
	c.connected = false
	c.debounce = pendingSwitch{}
	c.offscreen = pendingSwitch{}
	monitoring.Logf("[classifier] stylus disconnected at t=%.3f", c.ledger.Now())
	c.timing.SetNeedsClassification()
	return c.run(c.ledger.Now(), true)
}

// IsStylusConnected reports the connection state.
func (c *Classifier) IsStylusConnected() bool { return c.connected }

// RemoveContactFromClassification labels a contact Removed for good and
// drops it from its cluster.
func (c *Classifier) RemoveContactFromClassification(id touch.ContactID) Changes {
	if !c.enter() {
		return nil
	}
	defer c.exit()
	if _, ok := c.labels[id]; !touch.Assertf(ok, "classifier: remove of unknown contact %d", id) {
		return c.changes
	}
	c.removeContact(id, "application")
	c.timing.SetNeedsClassification()
	return c.run(c.ledger.Now(), true)
}

func (c *Classifier) removeContact(id touch.ContactID, reason string) {
	if _, ok := c.tracker.ClusterOf(id); ok {
		c.tracker.RemoveContact(id)
	}
	if c.labels[id] != touch.LabelRemoved {
		c.changes[id] = touch.LabelRemoved
		c.reclassified = append(c.reclassified, id)
	}
	c.labels[id] = touch.LabelRemoved
	c.locked[id] = true
	if d, ok := c.diag[id]; ok {
		d.Rule = reason
		d.Label = touch.LabelRemoved
		d.Locked = true
	}
	monitoring.Tracef("[classifier] contact %d removed (%s)", id, reason)
}

// Lock freezes a contact's current label.
func (c *Classifier) Lock(id touch.ContactID) {
	label, ok := c.labels[id]
	if !touch.Assertf(ok, "classifier: lock of unknown contact %d", id) {
		return
	}
	c.lock(id, label)
}

func (c *Classifier) lock(id touch.ContactID, label touch.Label) {
	if c.locked[id] {
		return
	}
	c.locked[id] = true
	if d, ok := c.diag[id]; ok {
		d.Locked = true
	}
	if label == touch.LabelPen {
		if ct, ok := c.ledger.Contact(id); ok && ct.Ended() {
			c.lockedPenArc += ct.ArcLength
		}
	}
}

// CurrentClass returns the label of a tracked contact.
func (c *Classifier) CurrentClass(id touch.ContactID) (touch.Label, bool) {
	l, ok := c.labels[id]
	return l, ok
}

// IsLocked reports whether a contact's label is frozen.
func (c *Classifier) IsLocked(id touch.ContactID) bool { return c.locked[id] }

// TouchesReclassified returns the contacts whose existing label changed
// during the latest call, in id order.
func (c *Classifier) TouchesReclassified() []touch.ContactID {
	seen := make(map[touch.ContactID]bool, len(c.reclassified))
	var out []touch.ContactID
	for _, id := range c.reclassified {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PenScore returns the pen probability of the contact's cluster.
func (c *Classifier) PenScore(id touch.ContactID) (float64, bool) {
	if cl, ok := c.tracker.ClusterOf(id); ok {
		return cl.PenProbability, true
	}
	if d, ok := c.diag[id]; ok {
		return d.ClusterProbability, true
	}
	return 0, false
}

// HandednessLocked reports whether handedness has been committed.
func (c *Classifier) HandednessLocked() bool { return c.handednessLocked }

// Handedness exposes the location tracker for inspection.
func (c *Classifier) Handedness() *handedness.Tracker { return c.hand }

// SwitchGlitches returns how many down/up glitches were suppressed.
func (c *Classifier) SwitchGlitches() int { return c.glitches }

// ClusterInfo is a read-only summary of one cluster.
type ClusterInfo struct {
	Seq            uint64
	Label          touch.Label
	PenOdds        float64
	PenProbability float64
	Center         touch.Point
	Members        []touch.ContactID
	Stale          bool
	WasInterior    bool
	WasAtPalmEnd   bool
}

// Clusters summarizes every tracked cluster in creation order.
func (c *Classifier) Clusters() []ClusterInfo {
	all := c.tracker.All()
	out := make([]ClusterInfo, 0, len(all))
	for _, cl := range all {
		out = append(out, ClusterInfo{
			Seq:            cl.Seq,
			Label:          cl.Label,
			PenOdds:        cl.PenOdds,
			PenProbability: cl.PenProbability,
			Center:         cl.Center,
			Members:        append([]touch.ContactID(nil), cl.Members...),
			Stale:          cl.Stale,
			WasInterior:    cl.WasInterior,
			WasAtPalmEnd:   cl.WasAtPalmEnd,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// ActiveClusters returns the number of active clusters.
func (c *Classifier) ActiveClusters() int { return c.tracker.ActiveCount() }

// CheckInvariants verifies cluster membership and that every clustered
// contact has a label.
func (c *Classifier) CheckInvariants() error {
	if err := c.tracker.CheckInvariants(); err != nil {
		return err
	}
	for _, cl := range c.tracker.All() {
		for _, id := range cl.Members {
			if _, ok := c.labels[id]; !ok {
				return fmt.Errorf("contact %d in cluster seq=%d has no label", id, cl.Seq)
			}
		}
	}
	return nil
}

func (c *Classifier) undecided() touch.Label {
	if c.connected || c.cfg.DumbStylus {
		return touch.LabelUnknown
	}
	return touch.LabelUnknownDisconnected
}

// setLabel records a label change unless the contact is locked or removed.
func (c *Classifier) setLabel(id touch.ContactID, l touch.Label) {
	prev, had := c.labels[id]
	if had && (prev == l || prev == touch.LabelRemoved || c.locked[id]) {
		return
	}
	c.labels[id] = l
	c.changes[id] = l
	if had {
		c.reclassified = append(c.reclassified, id)
	}
}

// prior is the timing stage's spatial prior.
func (c *Classifier) prior(ct *ledger.Contact) float64 {
	return c.hand.Prior(ct.Centroid())
}
