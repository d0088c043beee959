package ledger

import (
	"sort"

	"github.com/banshee-data/palmreject/internal/touch"
)

// DefaultEventWindow is how long switch events are retained behind the
// newest one (seconds).
const DefaultEventWindow = 2.0

// BatchResult summarises what a contact batch changed.
type BatchResult struct {
	Timestamp    float64
	Began        []touch.ContactID
	Moved        []touch.ContactID
	Ended        []touch.ContactID
	Cancelled    []touch.ContactID
	AllCancelled bool
}

// Changed reports whether any contact changed phase or moved.
func (r BatchResult) Changed() bool {
	return len(r.Began)+len(r.Moved)+len(r.Ended)+len(r.Cancelled) > 0
}

// Ledger records contacts and switch events.
type Ledger struct {
	contacts touch.Arena[*Contact]
	byID     map[touch.ContactID]touch.Handle

	events      []touch.SwitchEvent
	nextEventID uint64
	eventWindow float64

	allCancelled bool

	lastBegin     touch.Handle
	lastBeginTime float64
	lastEndTime   float64
	haveBegin     bool
	haveEnd       bool

	now float64
}

// New creates a Ledger that retains switch events for eventWindow seconds.
func New(eventWindow float64) *Ledger {
	if eventWindow <= 0 {
		eventWindow = DefaultEventWindow
	}
	return &Ledger{
		byID:        make(map[touch.ContactID]touch.Handle),
		eventWindow: eventWindow,
		nextEventID: 1,
	}
}

// Now returns the latest timestamp the ledger has seen.
func (l *Ledger) Now() float64 { return l.now }

// Advance moves the ledger clock forward to t without recording input.
func (l *Ledger) Advance(t float64) { l.observe(t) }

func (l *Ledger) observe(t float64) {
	if t > l.now {
		l.now = t
	}
}

// RecordContactBatch appends one frame of contact snapshots.
func (l *Ledger) RecordContactBatch(batch []touch.ContactSnapshot) BatchResult {
	var res BatchResult
	if len(batch) == 0 {
		return res
	}
	allCancelled := true
	for _, snap := range batch {
		l.observe(snap.Timestamp)
		if snap.Timestamp > res.Timestamp {
			res.Timestamp = snap.Timestamp
		}
		if snap.Phase != touch.PhaseCancelled {
			allCancelled = false
		}

		h, known := l.byID[snap.ID]
		var c *Contact
		if known {
			c, _ = l.contacts.Get(h)
			if c != nil && c.Ended() && snap.Phase == touch.PhaseBegan {
				// Platform reused the id for a new contact.
				l.Forget(snap.ID)
				c = nil
			}
		}
		if c == nil {
			c = l.begin(snap)
			res.Began = append(res.Began, snap.ID)
			if !snap.Phase.IsTerminal() {
				continue
			}
		} else if c.Ended() || snap.Phase == touch.PhaseBegan {
			continue
		} else {
			c.append(snap.Sample())
		}

		switch snap.Phase {
		case touch.PhaseMoved:
			res.Moved = append(res.Moved, snap.ID)
			c.Phase = touch.PhaseMoved
		case touch.PhaseStationary:
			c.Phase = touch.PhaseStationary
		case touch.PhaseEnded:
			l.end(c, snap)
			res.Ended = append(res.Ended, snap.ID)
		case touch.PhaseCancelled:
			l.end(c, snap)
			res.Cancelled = append(res.Cancelled, snap.ID)
		}
	}

	if allCancelled && l.LiveCount() == 0 {
		l.allCancelled = true
		res.AllCancelled = true
	}
	return res
}

func (l *Ledger) begin(snap touch.ContactSnapshot) *Contact {
	c := newContact(snap.ID, snap.Sample())
	if l.haveBegin {
		c.GapSincePrevBegin = snap.Timestamp - l.lastBeginTime
		if prev, ok := l.contacts.Get(l.lastBegin); ok {
			prev.GapToNextBegin = snap.Timestamp - prev.FirstTimestamp
		}
	}
	if l.haveEnd {
		c.GapSincePrevEnd = snap.Timestamp - l.lastEndTime
	}
	h := l.contacts.Insert(c)
	c.Handle = h
	l.byID[snap.ID] = h
	l.lastBegin = h
	l.lastBeginTime = snap.Timestamp
	l.haveBegin = true
	return c
}

func (l *Ledger) end(c *Contact, snap touch.ContactSnapshot) {
	c.Phase = snap.Phase
	c.EndTimestamp = snap.Timestamp
	l.lastEndTime = snap.Timestamp
	l.haveEnd = true
}

// ConsumeAllCancelled returns and clears the sticky full-cancellation flag.
func (l *Ledger) ConsumeAllCancelled() bool {
	v := l.allCancelled
	l.allCancelled = false
	return v
}

// Contact returns the record for id.
func (l *Ledger) Contact(id touch.ContactID) (*Contact, bool) {
	h, ok := l.byID[id]
	if !ok {
		return nil, false
	}
	return l.contacts.Get(h)
}

// MustContact returns the record for id and asserts that it exists.
func (l *Ledger) MustContact(id touch.ContactID) *Contact {
	c, ok := l.Contact(id)
	touch.Assertf(ok, "ledger: unknown contact %d", id)
	return c
}

// Forget releases the record for id.
func (l *Ledger) Forget(id touch.ContactID) {
	h, ok := l.byID[id]
	if !touch.Assertf(ok, "ledger: forget of unknown contact %d", id) {
		return
	}
	l.contacts.Remove(h)
	delete(l.byID, id)
}

// Len returns the number of tracked contacts.
func (l *Ledger) Len() int { return l.contacts.Len() }

// LiveCount returns the number of contacts still on the surface.
func (l *Ledger) LiveCount() int {
	n := 0
	l.contacts.Each(func(_ touch.Handle, c *Contact) bool {
		if !c.Ended() {
			n++
		}
		return true
	})
	return n
}

// All returns every tracked contact ordered by begin time, then id.
func (l *Ledger) All() []*Contact {
	out := make([]*Contact, 0, l.contacts.Len())
	l.contacts.Each(func(_ touch.Handle, c *Contact) bool {
		out = append(out, c)
		return true
	})
	sortContacts(out)
	return out
}

// ContactsInPhase returns contacts whose current phase is one of phases.
func (l *Ledger) ContactsInPhase(phases ...touch.Phase) []*Contact {
	return l.filter(func(c *Contact) bool {
		for _, p := range phases {
			if c.Phase == p {
				return true
			}
		}
		return false
	})
}

// Live returns contacts still on the surface.
func (l *Ledger) Live() []*Contact {
	return l.filter(func(c *Contact) bool { return !c.Ended() })
}

// BeganBetween returns contacts whose first sample lies in [t0, t1].
func (l *Ledger) BeganBetween(t0, t1 float64) []*Contact {
	return l.filter(func(c *Contact) bool {
		return c.FirstTimestamp >= t0 && c.FirstTimestamp <= t1
	})
}

// EndedBetween returns contacts that ended in [t0, t1].
func (l *Ledger) EndedBetween(t0, t1 float64) []*Contact {
	return l.filter(func(c *Contact) bool {
		return c.Ended() && c.EndTimestamp >= t0 && c.EndTimestamp <= t1
	})
}

// Concurrent reports whether the active intervals of a and b overlap once
// each interval's end is extended by pad seconds.
func (l *Ledger) Concurrent(a, b touch.ContactID, pad float64) bool {
	ca, okA := l.Contact(a)
	cb, okB := l.Contact(b)
	if !touch.Assertf(okA && okB, "ledger: concurrency test on unknown contact %d/%d", a, b) {
		return false
	}
	return IntervalsOverlap(ca.FirstTimestamp, ca.ActiveUntil(), cb.FirstTimestamp, cb.ActiveUntil(), pad)
}

// IntervalsOverlap reports whether [a0, a1+pad] and [b0, b1+pad] intersect.
func IntervalsOverlap(a0, a1, b0, b1, pad float64) bool {
	return a0 <= b1+pad && b0 <= a1+pad
}

// OldestReclassifiable returns the earliest-beginning contact that is still
// live or ended within window seconds of now.
func (l *Ledger) OldestReclassifiable(now, window float64) (*Contact, bool) {
	var oldest *Contact
	l.contacts.Each(func(_ touch.Handle, c *Contact) bool {
		if c.Ended() && now-c.EndTimestamp > window {
			return true
		}
		if oldest == nil || c.FirstTimestamp < oldest.FirstTimestamp ||
			(c.FirstTimestamp == oldest.FirstTimestamp && c.ID < oldest.ID) {
			oldest = c
		}
		return true
	})
	return oldest, oldest != nil
}

func (l *Ledger) filter(keep func(*Contact) bool) []*Contact {
	var out []*Contact
	l.contacts.Each(func(_ touch.Handle, c *Contact) bool {
		if keep(c) {
			out = append(out, c)
		}
		return true
	})
	sortContacts(out)
	return out
}

func sortContacts(cs []*Contact) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].FirstTimestamp != cs[j].FirstTimestamp {
			return cs[i].FirstTimestamp < cs[j].FirstTimestamp
		}
		return cs[i].ID < cs[j].ID
	})
}
