package cluster

import (
	"github.com/banshee-data/palmreject/internal/touch"
	"github.com/banshee-data/palmreject/internal/touch/ledger"
)

func (t *Tracker) edgeDetectionEnabled() bool {
	return t.cfg.ScreenWidth > 0 && t.cfg.ScreenHeight > 0
}

func (t *Tracker) nearEdge(p touch.Point) bool {
	m := t.cfg.EdgeMargin
	return p.X <= m || p.Y <= m || p.X >= t.cfg.ScreenWidth-m || p.Y >= t.cfg.ScreenHeight-m
}

// updateEdgeThumb advances the edge-thumb state of a single-member cluster.
// Only a lone contact that began at the bezel, stays put and lingers is a
// thumb; confirmation is terminal.
func (t *Tracker) updateEdgeThumb(c *Cluster, contact *ledger.Contact) {
	if !t.edgeDetectionEnabled() {
		return
	}
	switch c.EdgeThumb {
	case EdgeThumbConfirmed, EdgeThumbRejected:
		return
	case EdgeThumbNone:
		if len(c.Members) == 1 && t.nearEdge(contact.First().Pos) {
			c.EdgeThumb = EdgeThumbCandidate
		} else {
			c.EdgeThumb = EdgeThumbRejected
			return
		}
	}
	if len(c.Members) > 1 || contact.Displacement() > t.cfg.EdgeThumbMaxTravel {
		c.EdgeThumb = EdgeThumbRejected
		return
	}
	if !contact.Ended() && contact.LastTimestamp-contact.FirstTimestamp >= t.cfg.EdgeThumbMinDuration {
		c.EdgeThumb = EdgeThumbConfirmed
	}
}

// RefreshEdgeThumbs confirms candidates that have rested long enough without
// producing new samples. It returns the clusters confirmed by this call.
func (t *Tracker) RefreshEdgeThumbs(now float64) []*Cluster {
	if !t.edgeDetectionEnabled() {
		return nil
	}
	var confirmed []*Cluster
	for _, c := range t.Active() {
		if c.EdgeThumb != EdgeThumbCandidate || len(c.Members) != 1 {
			continue
		}
		contact, ok := t.contacts.Contact(c.Members[0])
		if !ok || contact.Ended() {
			if ok {
				c.EdgeThumb = EdgeThumbRejected
			}
			continue
		}
		if now-contact.FirstTimestamp >= t.cfg.EdgeThumbMinDuration {
			c.EdgeThumb = EdgeThumbConfirmed
			confirmed = append(confirmed, c)
		}
	}
	return confirmed
}
