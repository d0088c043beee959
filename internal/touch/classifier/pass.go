package classifier

import (
	"math"
	"sort"

	"github.com/banshee-data/palmreject/internal/monitoring"
	"github.com/banshee-data/palmreject/internal/touch"
	"github.com/banshee-data/palmreject/internal/touch/cluster"
	"github.com/banshee-data/palmreject/internal/touch/handedness"
	"github.com/banshee-data/palmreject/internal/touch/ledger"
)

// run is one pass at time now. Reclassification only happens when evidence
// changed; deadlines, locking and staleness run every time.
func (c *Classifier) run(now float64, evidence bool) Changes {
	c.passes++
	c.ledger.Advance(now)
	now = c.ledger.Now()

	if c.ledger.ConsumeAllCancelled() {
		c.tracker.ForceExpireAll(now)
		evidence = true
	}
	c.expireDebounce(now)
	c.checkOffscreen(now)

	if evidence {
		c.reclassify(now)
	}
	c.autoLock(now)
	c.tracker.UpdateStaleness(now, c.reclassifiable)
	c.purge(now)

	if len(c.changes) > 0 {
		monitoring.Tracef("[classifier] pass %d t=%.3f changed=%d", c.passes, now, len(c.changes))
	}
	return c.changes
}

// reclassifiable reports whether any member of cl may still change label.
func (c *Classifier) reclassifiable(cl *cluster.Cluster) bool {
	for _, id := range cl.Members {
		if !c.locked[id] {
			return true
		}
	}
	return false
}

// autoLock freezes contacts whose no-reclassify window has passed and
// forgets removed contacts that no cluster holds.
func (c *Classifier) autoLock(now float64) {
	for _, ct := range c.ledger.All() {
		if !ct.Ended() || now-ct.EndTimestamp < c.cfg.NoReclassifyInterval {
			continue
		}
		if _, clustered := c.tracker.ClusterOf(ct.ID); !clustered && c.labels[ct.ID] == touch.LabelRemoved {
			c.forget(ct.ID)
			continue
		}
		c.lock(ct.ID, c.labels[ct.ID])
	}
}

// purge drops stale clusters nothing can reach any more, and forgets their
// contacts.
func (c *Classifier) purge(now float64) {
	oldest, ok := c.ledger.OldestReclassifiable(now, c.cfg.NoReclassifyInterval)
	first := 0.0
	if ok {
		first = oldest.FirstTimestamp
	}
	for _, cl := range c.tracker.Purge(first, ok) {
		for _, id := range cl.Members {
			c.forget(id)
		}
		monitoring.Tracef("[classifier] purged cluster seq=%d", cl.Seq)
	}
}

func (c *Classifier) reclassify(now float64) {
	c.timing.SetPrior(c.prior)
	c.removeEdgeThumbs(now)
	c.tracker.MarkEnds(c.hand.PenDirection())

	var views []View
	for attempt := 0; attempt < 2; attempt++ {
		active := c.activeByTime()
		c.timing.ResolveSharedEvents(active)
		views = c.buildViews(active, now)
		ctx := &Context{
			Now:              now,
			Config:           &c.cfg,
			Connected:        c.connected,
			HandednessLocked: c.handednessLocked,
		}
		for i := range views {
			ctx.Others = others(views, i)
			label, rule := c.decide(views, i, ctx)
			c.applyClusterLabel(views[i], label, rule)
		}
		c.resolvePenConflicts(views)
		if !c.splitArrivingPens(now) {
			break
		}
		c.timing.SetNeedsClassification()
	}
	// Per-contact overrides read this pass's cluster labels. What they force
	// sticks through applyClusterLabel on later passes.
	c.tapIsolation()
	c.smudge()
	c.updateHandedness(now, views)
}

func others(views []View, skip int) []View {
	out := make([]View, 0, len(views)-1)
	for j, v := range views {
		if j != skip {
			out = append(out, v)
		}
	}
	return out
}

// activeByTime returns the active clusters ordered by first activity.
func (c *Classifier) activeByTime() []*cluster.Cluster {
	active := c.tracker.Active()
	sort.Slice(active, func(i, j int) bool {
		if active[i].FirstTimestamp != active[j].FirstTimestamp {
			return active[i].FirstTimestamp < active[j].FirstTimestamp
		}
		return active[i].Seq < active[j].Seq
	})
	return active
}

func (c *Classifier) buildViews(active []*cluster.Cluster, now float64) []View {
	useGeometry := c.cfg.DumbStylus || c.handednessLocked
	views := make([]View, 0, len(active))
	for _, cl := range active {
		v := View{
			Cluster: cl,
			Score:   *c.timing.ClusterScore(cl),
			Start:   cl.FirstTimestamp,
			End:     cl.ActiveUntil(),
		}
		longest := 0
		for _, id := range cl.Members {
			ct := c.ledger.MustContact(id)
			if ct == nil {
				continue
			}
			v.Members = append(v.Members, ct)
			if ct.ArcLength > v.ArcLength {
				v.ArcLength = ct.ArcLength
				longest = len(v.Members) - 1
			}
		}
		v.Duration = math.Min(v.End, now) - v.Start
		if useGeometry && len(v.Members) > 0 {
			v.Geometry = c.geometry.ScoreContact(v.Members[longest])
		}
		views = append(views, v)
	}
	return views
}

// decide applies the finger-sequence fast path, then the cascade.
func (c *Classifier) decide(views []View, i int, ctx *Context) (touch.Label, string) {
	v := views[i]
	if len(views) == 1 && len(v.Members) == 1 && c.haveFingerEnd {
		m := v.Members[0]
		gap := m.FirstTimestamp - c.lastFingerEnd
		down := c.timing.ContactScore(m.ID).Down
		if gap >= 0 && gap <= c.cfg.FingerSequenceInterval && (!down.OK || down.Probability < 0.5) {
			return touch.LabelFinger, "finger-sequence"
		}
	}
	return Decide(c.rules, v, ctx)
}

func (c *Classifier) applyClusterLabel(v View, label touch.Label, rule string) {
	cl := v.Cluster
	cl.Label = label
	cl.PenOdds = v.Score.Odds
	cl.PenProbability = v.Score.Probability
	monitoring.Tracef("[classifier] cluster seq=%d rule=%s label=%s p=%.3f members=%d",
		cl.Seq, rule, label, v.Score.Probability, len(cl.Members))

	for _, ct := range v.Members {
		id := ct.ID
		l, memberRule := label, rule
		forced, isForced := c.forced[id]
		switch {
		case isForced:
			l = forced
		case (label == touch.LabelFinger || label == touch.LabelPen) && c.shortBesideMover(v, ct):
			l, memberRule = touch.LabelPalm, "short-member-palm"
		}
		c.setLabel(id, l)

		d, ok := c.diag[id]
		if !ok {
			d = &Diagnostic{ID: id}
			c.diag[id] = d
		}
		score := c.timing.ContactScore(id)
		d.Cluster = cl.Seq
		d.Label = c.labels[id]
		if !c.locked[id] && !isForced {
			d.Rule = memberRule
		}
		d.Forced = isForced
		d.Prior = c.prior(ct)
		d.GapSincePrevBegin = ct.GapSincePrevBegin
		d.GapSincePrevEnd = ct.GapSincePrevEnd
		d.GapToNextBegin = ct.GapToNextBegin
		d.DownProbability = score.Down.Probability
		d.UpProbability = score.Up.Probability
		d.PenProbability = score.Pen
		d.EraserProbability = score.Eraser
		d.ClusterProbability = v.Score.Probability
		d.Dominated = v.Score.Dominated
		d.Geometry = v.Geometry.Score
		d.GeometryOK = v.Geometry.OK
	}
}

// shortBesideMover reports whether ct barely moved and was brief while a
// clustermate overlapping it in time travelled far.
func (c *Classifier) shortBesideMover(v View, ct *ledger.Contact) bool {
	if len(v.Members) < 2 {
		return false
	}
	now := v.Start + v.Duration
	if ct.ArcLength >= c.cfg.ShortArcLength || ct.Duration(now) >= c.cfg.ShortDuration {
		return false
	}
	for _, m := range v.Members {
		if m.ID == ct.ID || m.ArcLength < c.cfg.MovingArcLength {
			continue
		}
		if ledger.IntervalsOverlap(ct.FirstTimestamp, ct.ActiveUntil(), m.FirstTimestamp, m.ActiveUntil(), 0) {
			return true
		}
	}
	return false
}

// removeEdgeThumbs takes confirmed bezel thumbs out of classification.
func (c *Classifier) removeEdgeThumbs(now float64) {
	c.tracker.RefreshEdgeThumbs(now)
	for _, cl := range c.tracker.Active() {
		if cl.EdgeThumb != cluster.EdgeThumbConfirmed {
			continue
		}
		removed := false
		for _, id := range append([]touch.ContactID(nil), cl.Members...) {
			if c.locked[id] {
				continue
			}
			c.removeContact(id, "edge-thumb")
			removed = true
		}
		if removed {
			c.timing.SetNeedsClassification()
		}
	}
}

// carries reports whether any member of v currently holds label l. A
// cluster whose members were all forced elsewhere does not count as l.
func (c *Classifier) carries(v View, l touch.Label) bool {
	for _, ct := range v.Members {
		if c.labels[ct.ID] == l {
			return true
		}
	}
	return false
}

// resolvePenConflicts keeps one pen among concurrent pen clusters: the one
// with the strongest switch evidence. The rest become palms.
func (c *Classifier) resolvePenConflicts(views []View) {
	var pens []View
	for _, v := range views {
		if v.Cluster.Label == touch.LabelPen && c.carries(v, touch.LabelPen) {
			pens = append(pens, v)
		}
	}
	sort.SliceStable(pens, func(i, j int) bool {
		return pens[i].Score.Probability > pens[j].Score.Probability
	})
	var kept []View
	for _, v := range pens {
		conflict := false
		for _, k := range kept {
			if overlaps(v, k) {
				conflict = true
				break
			}
		}
		if conflict {
			c.applyClusterLabel(v, touch.LabelPalm, "pen-conflict")
			continue
		}
		kept = append(kept, v)
	}
}

func overlaps(a, b View) bool {
	return a.Start <= b.End && b.Start <= a.End
}

// splitArrivingPens moves a just-arrived contact that claims a tip down
// out of a palm cluster into a cluster of its own. It reports whether any
// split happened.
func (c *Classifier) splitArrivingPens(now float64) bool {
	split := false
	for _, cl := range c.tracker.Active() {
		if cl.Label != touch.LabelPalm || len(cl.Members) < 2 {
			continue
		}
		var newest touch.ContactID
		newestAt := math.Inf(-1)
		for _, id := range cl.Members {
			ct := c.ledger.MustContact(id)
			if ct != nil && ct.FirstTimestamp > newestAt {
				newest, newestAt = id, ct.FirstTimestamp
			}
		}
		ct := c.ledger.MustContact(newest)
		if ct == nil || ct.Ended() || c.locked[newest] || now-newestAt > c.cfg.Timing.MaxPenEventDelay*2 {
			continue
		}
		down := c.timing.ContactScore(newest).Down
		if !down.OK || down.Probability <= c.cfg.HardwareCutoff {
			continue
		}
		nc := c.tracker.Split(ct)
		monitoring.Logf("[classifier] split contact %d from palm cluster seq=%d into seq=%d", newest, cl.Seq, nc.Seq)
		split = true
	}
	return split
}

// tapIsolation relabels a short tap as palm when another tap follows it
// closely nearby.
func (c *Classifier) tapIsolation() {
	cfg := c.cfg
	isTap := func(id touch.ContactID) bool {
		ct, ok := c.ledger.Contact(id)
		return ok && ct.Ended() && ct.EndTimestamp-ct.FirstTimestamp <= cfg.TapMaxDuration && ct.ArcLength <= cfg.TapMaxTravel
	}
	all := c.ledger.All()
	for i, a := range all {
		la := c.labels[a.ID]
		if c.locked[a.ID] || !(la == touch.LabelFinger || la.IsUnknown()) || !isTap(a.ID) {
			continue
		}
		for _, b := range all[i+1:] {
			if b.FirstTimestamp < a.EndTimestamp || b.FirstTimestamp-a.EndTimestamp > cfg.TapIsolationInterval {
				continue
			}
			if b.Centroid().Dist(a.Centroid()) > cfg.TapIsolationDistance {
				continue
			}
			if b.ArcLength > cfg.TapMaxTravel || (b.Ended() && !isTap(b.ID)) {
				continue
			}
			c.force(a.ID, touch.LabelPalm, "tap-isolation")
			break
		}
	}
}

// smudge relabels a finger that began just before a nearby palm contact as
// the palm's leading edge.
func (c *Classifier) smudge() {
	cfg := c.cfg
	all := c.ledger.All()
	for _, f := range all {
		if c.labels[f.ID] != touch.LabelFinger || c.locked[f.ID] {
			continue
		}
		for _, p := range all {
			if c.labels[p.ID] != touch.LabelPalm || p.ID == f.ID {
				continue
			}
			lead := p.FirstTimestamp - f.FirstTimestamp
			if lead < 0 || lead > cfg.SmudgeInterval {
				continue
			}
			if f.First().Pos.Dist(p.First().Pos) > cfg.SmudgeDistance {
				continue
			}
			c.force(f.ID, touch.LabelPalm, "smudge")
			break
		}
	}
}

func (c *Classifier) force(id touch.ContactID, l touch.Label, rule string) {
	c.forced[id] = l
	c.setLabel(id, l)
	if d, ok := c.diag[id]; ok && !c.locked[id] {
		d.Forced = true
		d.Rule = rule
		d.Label = c.labels[id]
	}
}

// updateHandedness feeds pen and palm clusters to the location tracker and
// commits handedness once enough pen ink agrees with a confident direction.
func (c *Classifier) updateHandedness(now float64, views []View) {
	var obs []handedness.Observation
	for _, v := range views {
		p := v.Cluster.PenProbability
		if !c.carries(v, v.Cluster.Label) {
			continue
		}
		switch v.Cluster.Label {
		case touch.LabelPen:
			obs = append(obs, handedness.Observation{Pos: v.Cluster.Center, PenWeight: p})
		case touch.LabelPalm:
			obs = append(obs, handedness.Observation{Pos: v.Cluster.Center, PalmWeight: 1 - p})
		}
	}
	if len(obs) > 0 {
		c.hand.Update(now, obs)
	}
	if c.handednessLocked || c.lockedPenArc < c.cfg.HandednessLockArcLength {
		return
	}
	if conf := c.hand.Confidence(); conf >= c.cfg.HandednessLockConfidence {
		c.handednessLocked = true
		d := c.hand.Direction()
		monitoring.Logf("[classifier] handedness locked at t=%.3f direction=(%.2f,%.2f) confidence=%.2f pen_arc=%.0f",
			now, d.X, d.Y, conf, c.lockedPenArc)
	}
}
