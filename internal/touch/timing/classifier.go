package timing

import (
	"math"
	"sort"

	"github.com/banshee-data/palmreject/internal/touch"
	"github.com/banshee-data/palmreject/internal/touch/cluster"
	"github.com/banshee-data/palmreject/internal/touch/ledger"
)

// EvidenceSource is the read-only ledger view the classifier scores against.
type EvidenceSource interface {
	Contact(id touch.ContactID) (*ledger.Contact, bool)
	All() []*ledger.Contact
	SwitchEventsBetween(t0, t1 float64, types ...touch.SwitchType) []touch.SwitchEvent
	Now() float64
}

// PriorFunc returns the prior probability that a contact is the stylus.
type PriorFunc func(c *ledger.Contact) float64

// EventMatch is the best switch event found for a contact.
type EventMatch struct {
	Event       touch.SwitchEvent
	Probability float64
	OK          bool
}

// ContactScore is the event-timing opinion about one contact.
type ContactScore struct {
	ID touch.ContactID

	Down, Up             EventMatch
	EraserDown, EraserUp EventMatch

	Pen    float64 // P(contact is the pen tip)
	Eraser float64 // P(contact is the eraser)

	// Awaiting is set while the down event may still arrive.
	Awaiting bool
}

// ClusterScore is the combined opinion about a cluster.
type ClusterScore struct {
	Odds              float64
	Probability       float64
	EraserOdds        float64
	EraserProbability float64
	Awaiting          bool
	Dominated         bool
	DominatedBy       cluster.ID
}

// Classifier scores contacts and clusters from switch event timing. Scores
// are cached until SetNeedsClassification.
type Classifier struct {
	cfg   Config
	model Model
	src   EvidenceSource
	prior PriorFunc

	contactCache map[touch.ContactID]*ContactScore
	clusterCache map[cluster.ID]*ClusterScore
}

// NewClassifier creates a Classifier. A nil prior uses 0.5 for every contact.
func NewClassifier(cfg Config, src EvidenceSource, prior PriorFunc) *Classifier {
	if prior == nil {
		prior = func(*ledger.Contact) float64 { return 0.5 }
	}
	return &Classifier{
		cfg:          cfg,
		model:        NewModel(cfg),
		src:          src,
		prior:        prior,
		contactCache: make(map[touch.ContactID]*ContactScore),
		clusterCache: make(map[cluster.ID]*ClusterScore),
	}
}

// Model returns the likelihood model.
func (c *Classifier) Model() Model { return c.model }

// SetPrior replaces the prior function and invalidates cached scores.
func (c *Classifier) SetPrior(prior PriorFunc) {
	if prior != nil {
		c.prior = prior
	}
	c.SetNeedsClassification()
}

// SetNeedsClassification drops every cached score.
func (c *Classifier) SetNeedsClassification() {
	clear(c.contactCache)
	clear(c.clusterCache)
}

func (c *Classifier) window() float64 { return c.cfg.MaxPenEventDelay }

// downCandidates returns the contacts eligible for a down event at t with
// their arrival errors and priors.
func (c *Classifier) downCandidates(t float64) ([]*ledger.Contact, []Candidate) {
	var contacts []*ledger.Contact
	var cands []Candidate
	for _, ct := range c.src.All() {
		err := c.model.DownError(t, ct.FirstTimestamp)
		if !c.model.Eligible(err) {
			continue
		}
		contacts = append(contacts, ct)
		cands = append(cands, Candidate{Error: err, Prior: c.prior(ct)})
	}
	return contacts, cands
}

// upCandidates returns ended contacts eligible for an up event at t. The
// up precedes the end report, so live contacts join once they end.
func (c *Classifier) upCandidates(t float64) ([]*ledger.Contact, []Candidate) {
	var contacts []*ledger.Contact
	var cands []Candidate
	for _, ct := range c.src.All() {
		if !ct.Ended() {
			continue
		}
		err := c.model.UpError(t, ct.EndTimestamp)
		if !c.model.Eligible(err) {
			continue
		}
		contacts = append(contacts, ct)
		cands = append(cands, Candidate{Error: err, Prior: c.prior(ct)})
	}
	return contacts, cands
}

// posteriorFor returns the probability that contact id emitted ev.
func (c *Classifier) posteriorFor(id touch.ContactID, ev touch.SwitchEvent) float64 {
	var contacts []*ledger.Contact
	var cands []Candidate
	scale := c.cfg.DownScale
	if ev.Type.IsDown() {
		contacts, cands = c.downCandidates(ev.Timestamp)
	} else {
		contacts, cands = c.upCandidates(ev.Timestamp)
		scale = c.cfg.UpScale
	}
	post := c.model.Posterior(scale, cands)
	for i, ct := range contacts {
		if ct.ID == id {
			return post[i]
		}
	}
	return 0
}

func (c *Classifier) bestEvent(id touch.ContactID, t0, t1 float64, typ touch.SwitchType) EventMatch {
	var best EventMatch
	for _, ev := range c.src.SwitchEventsBetween(t0, t1, typ) {
		p := c.posteriorFor(id, ev)
		if p <= 0 {
			continue
		}
		if !best.OK || p > best.Probability {
			best = EventMatch{Event: ev, Probability: p, OK: true}
		}
	}
	return best
}

// BestPenDownEventForTouch returns the tip-down event most likely produced
// by contact id and the probability that it did.
func (c *Classifier) BestPenDownEventForTouch(id touch.ContactID) EventMatch {
	return c.bestDown(id, touch.SwitchTipDown)
}

// BestPenUpEventForTouch returns the tip-up event most likely produced by
// contact id.
func (c *Classifier) BestPenUpEventForTouch(id touch.ContactID) EventMatch {
	return c.bestUp(id, touch.SwitchTipUp)
}

func (c *Classifier) bestDown(id touch.ContactID, typ touch.SwitchType) EventMatch {
	ct, ok := c.src.Contact(id)
	if !touch.Assertf(ok, "timing: unknown contact %d", id) {
		return EventMatch{}
	}
	center := ct.FirstTimestamp + c.model.ExpectedDownOffset()
	return c.bestEvent(id, center-c.window(), center+c.window(), typ)
}

func (c *Classifier) bestUp(id touch.ContactID, typ touch.SwitchType) EventMatch {
	ct, ok := c.src.Contact(id)
	if !touch.Assertf(ok, "timing: unknown contact %d", id) || !ct.Ended() {
		return EventMatch{}
	}
	center := ct.EndTimestamp + c.model.ExpectedUpOffset()
	return c.bestEvent(id, center-c.window(), center+c.window(), typ)
}

// EventOwner returns the contact most likely to have produced ev.
func (c *Classifier) EventOwner(ev touch.SwitchEvent) (touch.ContactID, float64, bool) {
	var contacts []*ledger.Contact
	var cands []Candidate
	scale := c.cfg.DownScale
	if ev.Type.IsDown() {
		contacts, cands = c.downCandidates(ev.Timestamp)
	} else {
		contacts, cands = c.upCandidates(ev.Timestamp)
		scale = c.cfg.UpScale
	}
	if len(contacts) == 0 {
		return 0, 0, false
	}
	post := c.model.Posterior(scale, cands)
	best := 0
	for i := range post {
		if post[i] > post[best] || (post[i] == post[best] && contacts[i].ID < contacts[best].ID) {
			best = i
		}
	}
	return contacts[best].ID, post[best], true
}

// ContactScore returns the cached event-timing score for contact id.
func (c *Classifier) ContactScore(id touch.ContactID) *ContactScore {
	if s, ok := c.contactCache[id]; ok {
		return s
	}
	ct, ok := c.src.Contact(id)
	if !touch.Assertf(ok, "timing: score of unknown contact %d", id) {
		return &ContactScore{ID: id, Pen: 0.5}
	}
	s := &ContactScore{ID: id}
	s.Down = c.bestDown(id, touch.SwitchTipDown)
	s.Up = c.bestUp(id, touch.SwitchTipUp)
	s.EraserDown = c.bestDown(id, touch.SwitchEraserDown)
	s.EraserUp = c.bestUp(id, touch.SwitchEraserUp)

	overdue := c.src.Now()-ct.FirstTimestamp >= c.model.ExpectedDownOffset()+c.window()
	prior := c.prior(ct)
	s.Pen = c.combine(s.Down, s.Up, overdue, prior)
	s.Eraser = c.combine(s.EraserDown, s.EraserUp, overdue, prior)
	// Either switch explains the contact; only when neither has shown up
	// and the window is still open is the outcome pending.
	s.Awaiting = !overdue && !s.Down.OK && !s.EraserDown.OK
	if s.EraserDown.OK && !s.Down.OK {
		s.Pen = c.cfg.MissingEventProbability
	}
	if s.Down.OK && !s.EraserDown.OK {
		s.Eraser = c.cfg.MissingEventProbability
	}
	c.contactCache[id] = s
	return s
}

func (c *Classifier) combine(down, up EventMatch, overdue bool, prior float64) float64 {
	switch {
	case down.OK && up.OK:
		return CombineDownUp(down.Probability, up.Probability)
	case down.OK:
		return down.Probability
	case up.OK:
		return up.Probability
	case overdue:
		return c.cfg.MissingEventProbability
	default:
		return prior
	}
}

// ClusterScore returns the cached combined score for cl.
func (c *Classifier) ClusterScore(cl *cluster.Cluster) *ClusterScore {
	if s, ok := c.clusterCache[cl.ID]; ok {
		return s
	}
	s := c.scoreMembers(cl, nil)
	c.clusterCache[cl.ID] = s
	return s
}

// scoreMembers combines member scores; override replaces the pen
// probability of individual members.
func (c *Classifier) scoreMembers(cl *cluster.Cluster, override map[touch.ContactID]float64) *ClusterScore {
	pens := make([]float64, 0, len(cl.Members))
	erasers := make([]float64, 0, len(cl.Members))
	s := &ClusterScore{}
	for _, id := range cl.Members {
		cs := c.ContactScore(id)
		p := cs.Pen
		if v, ok := override[id]; ok {
			p = v
		}
		pens = append(pens, p)
		erasers = append(erasers, cs.Eraser)
		s.Awaiting = s.Awaiting || cs.Awaiting
	}
	s.Odds = c.model.ClusterOdds(pens)
	s.Probability = OddsToProbability(s.Odds)
	s.EraserOdds = c.model.ClusterOdds(erasers)
	s.EraserProbability = OddsToProbability(s.EraserOdds)
	return s
}

type claim struct {
	cl          *cluster.Cluster
	contact     touch.ContactID
	probability float64
}

// ResolveSharedEvents finds tip-down events claimed by members of more than
// one of the given clusters and awards each to a single cluster. A cluster
// with a pen-sized contact radius beats one without when radii are known;
// otherwise the higher odds win. The winner's claiming contact takes the
// combined probability mass, losers drop to the missing-event probability
// and are marked dominated. Cached scores are updated in place.
func (c *Classifier) ResolveSharedEvents(clusters []*cluster.Cluster) {
	byEvent := make(map[uint64][]claim)
	var order []uint64
	for _, cl := range clusters {
		for _, id := range cl.Members {
			cs := c.ContactScore(id)
			if !cs.Down.OK || cs.Down.Probability < c.cfg.ClaimThreshold {
				continue
			}
			evID := cs.Down.Event.ID
			if _, seen := byEvent[evID]; !seen {
				order = append(order, evID)
			}
			byEvent[evID] = append(byEvent[evID], claim{cl: cl, contact: id, probability: cs.Down.Probability})
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	overrides := make(map[cluster.ID]map[touch.ContactID]float64)
	setOverride := func(cl *cluster.Cluster, id touch.ContactID, p float64) {
		if overrides[cl.ID] == nil {
			overrides[cl.ID] = make(map[touch.ContactID]float64)
		}
		overrides[cl.ID][id] = p
	}

	for _, evID := range order {
		claims := byEvent[evID]
		if !spansClusters(claims) {
			continue
		}
		win := 0
		for i := 1; i < len(claims); i++ {
			if c.beats(claims[i], claims[win]) {
				win = i
			}
		}
		mass := 0.0
		for _, cl := range claims {
			mass += cl.probability
		}
		winner := claims[win]
		setOverride(winner.cl, winner.contact, c.withUp(winner.contact, math.Min(1, mass)))
		for i, cl := range claims {
			if i == win || cl.cl.ID == winner.cl.ID {
				continue
			}
			setOverride(cl.cl, cl.contact, c.cfg.MissingEventProbability)
			score := c.ClusterScore(cl.cl)
			score.Dominated = true
			score.DominatedBy = winner.cl.ID
		}
	}

	for _, cl := range clusters {
		ov, ok := overrides[cl.ID]
		if !ok {
			continue
		}
		prev := c.ClusterScore(cl)
		next := c.scoreMembers(cl, ov)
		next.Dominated, next.DominatedBy = prev.Dominated, prev.DominatedBy
		c.clusterCache[cl.ID] = next
	}
}

// withUp folds the contact's matched up event into a reassigned down
// probability.
func (c *Classifier) withUp(id touch.ContactID, down float64) float64 {
	cs := c.ContactScore(id)
	if cs.Up.OK {
		return CombineDownUp(down, cs.Up.Probability)
	}
	return down
}

func spansClusters(claims []claim) bool {
	for _, cl := range claims[1:] {
		if cl.cl.ID != claims[0].cl.ID {
			return true
		}
	}
	return false
}

// beats reports whether claim a should win an event over claim b.
func (c *Classifier) beats(a, b claim) bool {
	aPen, aKnown := c.penSized(a.cl)
	bPen, bKnown := c.penSized(b.cl)
	if aKnown && bKnown && aPen != bPen {
		return aPen
	}
	oa, ob := c.ClusterScore(a.cl).Odds, c.ClusterScore(b.cl).Odds
	if oa != ob {
		return oa > ob
	}
	return a.probability > b.probability
}

func (c *Classifier) penSized(cl *cluster.Cluster) (pen, known bool) {
	if !cl.HasRadius() || c.cfg.PenRadiusMax <= 0 {
		return false, false
	}
	return cl.RadiusMean <= c.cfg.PenRadiusMax, true
}
