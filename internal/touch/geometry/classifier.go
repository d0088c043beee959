package geometry

import (
	"github.com/banshee-data/palmreject/internal/monitoring"
	"github.com/banshee-data/palmreject/internal/touch/ledger"
)

// Result is the geometry opinion about one stroke.
type Result struct {
	OK bool // false when the stroke is too short to judge

	Score     float64 // combined pen likelihood in [0, 1]
	NP        float64
	Bayes     float64
	Adaboost  float64
	PalmVotes int
	LogLength float64 // normalized log length the tables were evaluated at
	Scores    Scores
}

// Classifier scores strokes against a calibration table.
type Classifier struct {
	cal *Calibration
}

// NewClassifier creates a Classifier. A nil calibration uses the embedded
// table.
func NewClassifier(cal *Calibration) *Classifier {
	if cal == nil {
		cal = MustDefaultCalibration()
	}
	return &Classifier{cal: cal}
}

// Calibration returns the table in use.
func (c *Classifier) Calibration() *Calibration { return c.cal }

// ScoreStroke scores a stroke.
func (c *Classifier) ScoreStroke(s Stroke) Result {
	f, ok := Extract(s)
	if !ok {
		return Result{Score: 0.5}
	}
	return c.ScoreFeatures(f)
}

// ScoreFeatures scores an extracted feature vector.
func (c *Classifier) ScoreFeatures(f Features) Result {
	u := c.cal.NormalizedLogLength(f[FeatLength])
	s := Choose(f, c.cal)
	r := Result{OK: true, LogLength: u, Scores: s}
	r.NP, r.PalmVotes = c.cal.NeymanPearson(s, u)
	r.Bayes = c.cal.Bayes(s, u)
	r.Adaboost = c.cal.AdaboostConfidence(s, u)
	w := c.cal.Weights
	r.Score = w[0]*r.NP + w[1]*r.Bayes + w[2]*r.Adaboost
	return r
}

// ScoreContact scores a ledger contact's sample stream.
func (c *Classifier) ScoreContact(ct *ledger.Contact) Result {
	xs, ys, ts := ct.Points()
	r := c.ScoreStroke(NewStroke(xs, ys, ts))
	if r.OK {
		monitoring.Tracef("[geometry] contact %d score=%.3f np=%.2f bayes=%.2f ada=%.2f palm_votes=%d",
			ct.ID, r.Score, r.NP, r.Bayes, r.Adaboost, r.PalmVotes)
	}
	return r
}
