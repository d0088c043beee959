package geometry

import "math"

// votesPen reports whether score x lies on the pen side of threshold t.
func votesPen(x, t float64, penBelow bool) bool {
	if penBelow {
		return x <= t
	}
	return x >= t
}

// NeymanPearson counts per-score votes. Palm wins outright when more than
// NPVeto scores vote palm; otherwise confidence is the pen vote fraction.
func (c *Calibration) NeymanPearson(s Scores, u float64) (confidence float64, palmVotes int) {
	penVotes := 0
	for i, m := range c.Scores {
		if votesPen(s[i], m.Threshold.Eval(u), m.PenBelow) {
			penVotes++
		} else {
			palmVotes++
		}
	}
	confidence = float64(penVotes) / float64(len(c.Scores))
	if palmVotes > c.NPVeto {
		confidence *= 0.5
	}
	return confidence, palmVotes
}

func logNormal(x, mean, std float64) float64 {
	z := (x - mean) / std
	return -0.5*z*z - math.Log(std) - 0.5*math.Log(2*math.Pi)
}

// LogLikelihoodRatio sums per-score log N(pen) - log N(palm).
func (c *Calibration) LogLikelihoodRatio(s Scores, u float64) float64 {
	llr := 0.0
	for i, m := range c.Scores {
		ps := math.Max(m.PenStd.Eval(u), c.MinStd)
		qs := math.Max(m.PalmStd.Eval(u), c.MinStd)
		llr += logNormal(s[i], m.PenMean.Eval(u), ps) - logNormal(s[i], m.PalmMean.Eval(u), qs)
	}
	return llr
}

// Bayes maps the log-likelihood ratio onto [0, 1] around the cutoff.
func (c *Calibration) Bayes(s Scores, u float64) float64 {
	return sigmoid((c.LogLikelihoodRatio(s, u) - c.BayesCutoff) / c.BayesTemperature)
}

// AdaboostConfidence returns the weighted stump vote mapped from [-1, 1]
// to [0, 1].
func (c *Calibration) AdaboostConfidence(s Scores, u float64) float64 {
	if len(c.Adaboost) == 0 {
		return 0.5
	}
	h, total := 0.0, 0.0
	for _, w := range c.Adaboost {
		if votesPen(s[w.Score], w.Threshold.Eval(u), w.PenBelow) {
			h += w.Alpha
		} else {
			h -= w.Alpha
		}
		total += w.Alpha
	}
	return 0.5 * (1 + h/total)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
