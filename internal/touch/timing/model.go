package timing

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Config holds event-timing parameters. Times are in seconds.
type Config struct {
	SampleInterval   float64 // one touch sample cycle
	DownDelayCycles  float64 // tip down expected this many cycles after begin
	UpLeadCycles     float64 // tip up expected this many cycles before end
	DownScale        float64 // Laplace scale for down arrival error
	UpScale          float64 // Laplace scale for up arrival error
	MaxPenEventDelay float64 // largest |arrival error| still considered

	NullPrior               float64 // prior weight of "no visible contact emitted it"
	MissingEventProbability float64 // pen probability once the down event is overdue
	OddsEpsilon             float64 // keeps the cluster odds finite
	ClaimThreshold          float64 // contact probability that counts as claiming an event
	PenRadiusMax            float64 // largest pen-sized contact radius (px)
}

// DefaultConfig returns the calibrated event-timing parameters.
func DefaultConfig() Config {
	return Config{
		SampleInterval:          1.0 / 60.0,
		DownDelayCycles:         1.5,
		UpLeadCycles:            1.0,
		DownScale:               0.02,
		UpScale:                 0.03,
		MaxPenEventDelay:        0.25,
		NullPrior:               0.05,
		MissingEventProbability: 0.05,
		OddsEpsilon:             0.001,
		ClaimThreshold:          0.3,
		PenRadiusMax:            6,
	}
}

// Model evaluates arrival-error likelihoods and posteriors.
type Model struct {
	cfg Config
}

// NewModel creates a Model.
func NewModel(cfg Config) Model { return Model{cfg: cfg} }

// ExpectedDownOffset is the expected event time minus the contact's begin.
func (m Model) ExpectedDownOffset() float64 {
	return m.cfg.DownDelayCycles * m.cfg.SampleInterval
}

// ExpectedUpOffset is the expected event time minus the contact's end.
func (m Model) ExpectedUpOffset() float64 {
	return -m.cfg.UpLeadCycles * m.cfg.SampleInterval
}

// Laplace returns the density of a zero-mean Laplace distribution with the
// given scale at x.
func Laplace(x, scale float64) float64 {
	return distuv.Laplace{Mu: 0, Scale: scale}.Prob(x)
}

// DownError is the arrival error of a tip-down at eventTime against a
// contact that began at begin.
func (m Model) DownError(eventTime, begin float64) float64 {
	return eventTime - (begin + m.ExpectedDownOffset())
}

// UpError is the arrival error of a tip-up at eventTime against a contact
// that ended at end.
func (m Model) UpError(eventTime, end float64) float64 {
	return eventTime - (end + m.ExpectedUpOffset())
}

// Eligible reports whether an arrival error is small enough for the
// contact to be a candidate at all.
func (m Model) Eligible(err float64) bool {
	return math.Abs(err) <= m.cfg.MaxPenEventDelay
}

// nullDensity is the uniform density of an event no candidate produced,
// spread over the eligibility window.
func (m Model) nullDensity() float64 {
	d := m.cfg.MaxPenEventDelay
	return distuv.Uniform{Min: -d, Max: d}.Prob(0)
}

// Candidate is one contact competing to have produced an event.
type Candidate struct {
	Error float64 // arrival error against the expected latency
	Prior float64 // prior probability the contact is the stylus
}

// Posterior returns, for each candidate, the probability that it emitted
// the event given the priors and arrival errors. The remaining mass belongs
// to the null hypothesis.
func (m Model) Posterior(scale float64, cands []Candidate) []float64 {
	out := make([]float64, len(cands))
	total := m.cfg.NullPrior * m.nullDensity()
	for i, c := range cands {
		out[i] = c.Prior * Laplace(c.Error, scale)
		total += out[i]
	}
	if total <= 0 {
		return out
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

// CombineDownUp merges matched down and up probabilities as their
// geometric mean.
func CombineDownUp(down, up float64) float64 {
	return math.Sqrt(down * up)
}

// ClusterOdds combines member pen probabilities into the cluster odds
// 0.5*(1+prod(P))/(eps+prod(1-P)).
func (m Model) ClusterOdds(penProbabilities []float64) float64 {
	if len(penProbabilities) == 0 {
		return 1
	}
	pen, palm := 1.0, 1.0
	for _, p := range penProbabilities {
		pen *= p
		palm *= 1 - p
	}
	return 0.5 * (1 + pen) / (m.cfg.OddsEpsilon + palm)
}

// OddsToProbability maps odds to a probability in [0, 1).
func OddsToProbability(odds float64) float64 {
	if math.IsInf(odds, 1) {
		return 1
	}
	return odds / (1 + odds)
}
