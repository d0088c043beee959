package ledger

import (
	"sort"

	"github.com/banshee-data/palmreject/internal/touch"
)

// RecordSwitchEvent appends ev to the time ordered log, assigns its id and
// prunes events older than the retention window behind the newest event.
func (l *Ledger) RecordSwitchEvent(ev touch.SwitchEvent) touch.SwitchEvent {
	ev.ID = l.nextEventID
	l.nextEventID++
	l.observe(ev.Timestamp)

	// Transport may deliver slightly out of order; keep the log sorted.
	i := sort.Search(len(l.events), func(i int) bool {
		return l.events[i].Timestamp > ev.Timestamp
	})
	l.events = append(l.events, touch.SwitchEvent{})
	copy(l.events[i+1:], l.events[i:])
	l.events[i] = ev

	l.PruneSwitchEvents(l.events[len(l.events)-1].Timestamp - l.eventWindow)
	return ev
}

// PruneSwitchEvents drops events with timestamps before cutoff.
func (l *Ledger) PruneSwitchEvents(cutoff float64) {
	i := sort.Search(len(l.events), func(i int) bool {
		return l.events[i].Timestamp >= cutoff
	})
	if i > 0 {
		l.events = append(l.events[:0], l.events[i:]...)
	}
}

// RemoveSwitchEvent deletes the event with the given id.
func (l *Ledger) RemoveSwitchEvent(id uint64) bool {
	for i, ev := range l.events {
		if ev.ID == id {
			l.events = append(l.events[:i], l.events[i+1:]...)
			return true
		}
	}
	return false
}

// SwitchEvents returns a copy of the retained log.
func (l *Ledger) SwitchEvents() []touch.SwitchEvent {
	out := make([]touch.SwitchEvent, len(l.events))
	copy(out, l.events)
	return out
}

// SwitchEventsBetween returns retained events in [t0, t1] whose type is one
// of types (all types when none are given).
func (l *Ledger) SwitchEventsBetween(t0, t1 float64, types ...touch.SwitchType) []touch.SwitchEvent {
	var out []touch.SwitchEvent
	for _, ev := range l.events {
		if ev.Timestamp < t0 {
			continue
		}
		if ev.Timestamp > t1 {
			break
		}
		if len(types) > 0 && !hasType(types, ev.Type) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// LastSwitchEvent returns the newest retained event.
func (l *Ledger) LastSwitchEvent() (touch.SwitchEvent, bool) {
	if len(l.events) == 0 {
		return touch.SwitchEvent{}, false
	}
	return l.events[len(l.events)-1], true
}

func hasType(types []touch.SwitchType, t touch.SwitchType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}
