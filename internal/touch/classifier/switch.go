package classifier

import (
	"github.com/banshee-data/palmreject/internal/monitoring"
	"github.com/banshee-data/palmreject/internal/touch"
)

// pendingSwitch is a one-event queue slot with an explicit deadline.
type pendingSwitch struct {
	event    touch.SwitchEvent
	deadline float64
	active   bool
}

func (p *pendingSwitch) due(now float64) bool { return p.active && now >= p.deadline }

// expireDebounce commits the pending down once its glitch window passed.
func (c *Classifier) expireDebounce(now float64) {
	if c.debounce.due(now) {
		monitoring.Tracef("[classifier] switch event %d committed", c.debounce.event.ID)
		c.debounce = pendingSwitch{}
	}
}

func (c *Classifier) isGlitch(ev touch.SwitchEvent) bool {
	d := c.debounce
	return d.active && ev.Type == d.event.Type.Pair() &&
		ev.Timestamp < d.deadline
}

// dropGlitch removes the pending down; its up is never recorded.
func (c *Classifier) dropGlitch(up touch.SwitchEvent) {
	down := c.debounce.event
	c.ledger.RemoveSwitchEvent(down.ID)
	if c.offscreen.active && c.offscreen.event.ID == down.ID {
		c.offscreen = pendingSwitch{}
	}
	c.debounce = pendingSwitch{}
	c.glitches++
	monitoring.Logf("[classifier] suppressed %s/%s glitch at t=%.3f (%.1fms)",
		down.Type, up.Type, down.Timestamp, (up.Timestamp-down.Timestamp)*1000)
}

// armOffscreen starts the offscreen-press deadline for a tip down that no
// contact explains yet.
func (c *Classifier) armOffscreen(down touch.SwitchEvent) {
	if down.Type != touch.SwitchTipDown {
		return
	}
	window := c.cfg.Timing.MaxPenEventDelay
	if len(c.ledger.BeganBetween(down.Timestamp-window, down.Timestamp+window)) > 0 {
		return
	}
	c.offscreen = pendingSwitch{event: down, deadline: down.Timestamp + c.cfg.OffscreenPressInterval, active: true}
}

// disarmOffscreenNear cancels the deadline when a contact begins close
// enough to have produced the down.
func (c *Classifier) disarmOffscreenNear(t float64) {
	if c.offscreen.active && t-c.offscreen.event.Timestamp <= c.cfg.Timing.MaxPenEventDelay {
		c.offscreen = pendingSwitch{}
	}
}

func (c *Classifier) disarmOffscreenOnRelease(up touch.SwitchEvent) {
	if c.offscreen.active && up.Type == c.offscreen.event.Type.Pair() && up.Timestamp < c.offscreen.deadline {
		c.offscreen = pendingSwitch{}
	}
}

func (c *Classifier) checkOffscreen(now float64) {
	if !c.offscreen.due(now) {
		return
	}
	ev := c.offscreen.event
	c.offscreen = pendingSwitch{}
	c.pressed = append(c.pressed, ev)
	monitoring.Logf("[classifier] offscreen press at t=%.3f", ev.Timestamp)
}

// OffscreenPress pops the oldest tip down that was held for
// OffscreenPressInterval without any contact on the surface.
func (c *Classifier) OffscreenPress() (touch.SwitchEvent, bool) {
	if len(c.pressed) == 0 {
		return touch.SwitchEvent{}, false
	}
	ev := c.pressed[0]
	c.pressed = c.pressed[1:]
	return ev, true
}
