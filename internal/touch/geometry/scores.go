package geometry

import "math"

// NumScores is the number of chosen scores fed to the tests.
const NumScores = 10

// Scores are the chosen log-transformed features.
type Scores [NumScores]float64

// chosen maps each score to its source feature. The offset added before
// the log comes from the calibration table.
var chosen = [NumScores]Feature{
	FeatJerkRMS,
	FeatAccelRMS,
	FeatArcSecondOrthogonalRMS,
	FeatArcThirdRMS,
	FeatLinearResidualRMS,
	FeatQuadraticResidualRMS,
	FeatArcChordRatio,
	FeatLength,
	FeatDuration,
	FeatSegmentCV,
}

// ChosenFeature returns the feature behind score i.
func ChosenFeature(i int) Feature { return chosen[i] }

// Choose computes the chosen scores from f using the calibration's log
// offsets. The arc/chord ratio is shifted by one so a straight stroke maps
// to log(offset).
func Choose(f Features, cal *Calibration) Scores {
	var s Scores
	for i, feat := range chosen {
		v := f[feat]
		if feat == FeatArcChordRatio {
			v--
		}
		s[i] = math.Log(math.Max(v, 0) + cal.Scores[i].LogOffset)
	}
	return s
}

// NormalizedLogLength maps a stroke length onto the calibration's
// polynomial domain.
func (c *Calibration) NormalizedLogLength(length float64) float64 {
	u := (math.Log(math.Max(length, 1e-6)) - c.LengthCenter) / c.LengthScale
	return math.Max(-c.LengthClamp, math.Min(c.LengthClamp, u))
}
