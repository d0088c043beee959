// Package recorder reads and writes touch session logs and replays them
// through a classifier.
//
// A session log is JSON lines. The first line is a header record; every
// following line is one classifier input: a contact batch, a switch event,
// a stylus connect or disconnect, an application removal or a bare time
// advance.
package recorder

import (
	"errors"
	"fmt"

	"github.com/banshee-data/palmreject/internal/touch"
)

// FormatVersion is written into every header.
const FormatVersion = 1

// ErrClosed is returned by Writer methods after Close.
var ErrClosed = errors.New("recorder: writer closed")

// Kind identifies a record.
type Kind string

const (
	KindHeader     Kind = "header"
	KindContacts   Kind = "contacts"
	KindSwitch     Kind = "switch"
	KindConnect    Kind = "connect"
	KindDisconnect Kind = "disconnect"
	KindRemove     Kind = "remove"
	KindAdvance    Kind = "advance"
)

// Header describes a session.
type Header struct {
	Version      int     `json:"version"`
	SessionID    string  `json:"session_id"`
	Source       string  `json:"source,omitempty"`
	ScreenWidth  float64 `json:"screen_width,omitempty"`
	ScreenHeight float64 `json:"screen_height,omitempty"`
	DumbStylus   bool    `json:"dumb_stylus,omitempty"`
}

// Contact is one contact snapshot as stored.
type Contact struct {
	ID     int64    `json:"id"`
	Phase  string   `json:"phase"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	T      float64  `json:"t"`
	Radius *float64 `json:"r,omitempty"`
}

// Record is one line of a session log.
type Record struct {
	Kind      Kind      `json:"kind"`
	T         float64   `json:"t"`
	Header    *Header   `json:"header,omitempty"`
	Contacts  []Contact `json:"contacts,omitempty"`
	Switch    string    `json:"switch,omitempty"`
	ContactID int64     `json:"contact_id,omitempty"`
}

// ContactsRecord builds a contacts record from a batch.
func ContactsRecord(batch []touch.ContactSnapshot) Record {
	rec := Record{Kind: KindContacts, Contacts: make([]Contact, 0, len(batch))}
	for _, s := range batch {
		c := Contact{ID: int64(s.ID), Phase: s.Phase.String(), X: s.Pos.X, Y: s.Pos.Y, T: s.Timestamp}
		if s.HasRadius {
			r := s.Radius
			c.Radius = &r
		}
		if s.Timestamp > rec.T {
			rec.T = s.Timestamp
		}
		rec.Contacts = append(rec.Contacts, c)
	}
	return rec
}

// SwitchRecord builds a switch record.
func SwitchRecord(ev touch.SwitchEvent) Record {
	return Record{Kind: KindSwitch, T: ev.Timestamp, Switch: ev.Type.String()}
}

// Batch decodes the contacts of a contacts record.
func (r Record) Batch() ([]touch.ContactSnapshot, error) {
	out := make([]touch.ContactSnapshot, 0, len(r.Contacts))
	for _, c := range r.Contacts {
		phase, err := touch.ParsePhase(c.Phase)
		if err != nil {
			return nil, fmt.Errorf("contact %d: %w", c.ID, err)
		}
		s := touch.ContactSnapshot{
			ID:        touch.ContactID(c.ID),
			Phase:     phase,
			Pos:       touch.Point{X: c.X, Y: c.Y},
			Timestamp: c.T,
		}
		if c.Radius != nil {
			s.Radius, s.HasRadius = *c.Radius, true
		}
		out = append(out, s)
	}
	return out, nil
}

// SwitchEvent decodes a switch record.
func (r Record) SwitchEvent() (touch.SwitchEvent, error) {
	typ, err := touch.ParseSwitchType(r.Switch)
	if err != nil {
		return touch.SwitchEvent{}, err
	}
	return touch.SwitchEvent{Type: typ, Timestamp: r.T}, nil
}

// Validate checks that the record is well formed for its kind.
func (r Record) Validate() error {
	switch r.Kind {
	case KindHeader:
		if r.Header == nil {
			return errors.New("header record without header")
		}
	case KindContacts:
		if len(r.Contacts) == 0 {
			return errors.New("contacts record without contacts")
		}
		if _, err := r.Batch(); err != nil {
			return err
		}
	case KindSwitch:
		if _, err := r.SwitchEvent(); err != nil {
			return err
		}
	case KindRemove:
		if r.ContactID == 0 {
			return errors.New("remove record without contact_id")
		}
	case KindConnect, KindDisconnect, KindAdvance:
	default:
		return fmt.Errorf("unknown record kind %q", r.Kind)
	}
	return nil
}
