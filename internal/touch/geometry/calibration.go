package geometry

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
)

//go:embed calibration_v1.json
var calibrationV1 []byte

// CalibrationVersion is the table format this package reads.
const CalibrationVersion = 1

// Poly is a polynomial in normalized log length, lowest order first.
type Poly []float64

// Eval evaluates p at u.
func (p Poly) Eval(u float64) float64 {
	v := 0.0
	for i := len(p) - 1; i >= 0; i-- {
		v = v*u + p[i]
	}
	return v
}

// ScoreModel calibrates one chosen score.
type ScoreModel struct {
	Name      string  `json:"name"`
	LogOffset float64 `json:"log_offset"`

	PenMean  Poly `json:"pen_mean"`
	PenStd   Poly `json:"pen_std"`
	PalmMean Poly `json:"palm_mean"`
	PalmStd  Poly `json:"palm_std"`

	// Neyman-Pearson threshold; a score on the pen side votes pen.
	Threshold Poly `json:"np_threshold"`
	PenBelow  bool `json:"pen_below"`
}

// WeakLearner is one Adaboost stump.
type WeakLearner struct {
	Score     int     `json:"score"`
	Threshold Poly    `json:"threshold"`
	PenBelow  bool    `json:"pen_below"`
	Alpha     float64 `json:"alpha"`
}

// Calibration holds every table the tests need.
type Calibration struct {
	Version int `json:"version"`

	LengthCenter float64 `json:"length_center"`
	LengthScale  float64 `json:"length_scale"`
	LengthClamp  float64 `json:"length_clamp"`
	MinStd       float64 `json:"min_std"`

	Scores []ScoreModel `json:"scores"`

	NPVeto           int     `json:"np_veto"`
	BayesCutoff      float64 `json:"bayes_cutoff"`
	BayesTemperature float64 `json:"bayes_temperature"`

	Adaboost []WeakLearner `json:"adaboost"`

	// Convex weights for the NP, Bayes and Adaboost confidences.
	Weights [3]float64 `json:"weights"`
}

var errNoScores = errors.New("calibration has no score models")

// ParseCalibration decodes and validates a calibration table.
func ParseCalibration(data []byte) (*Calibration, error) {
	var c Calibration
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse calibration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid calibration: %w", err)
	}
	return &c, nil
}

// Validate checks that the table is complete and consistent.
func (c *Calibration) Validate() error {
	if c.Version != CalibrationVersion {
		return fmt.Errorf("unsupported version %d (want %d)", c.Version, CalibrationVersion)
	}
	if len(c.Scores) == 0 {
		return errNoScores
	}
	if len(c.Scores) != NumScores {
		return fmt.Errorf("have %d score models, want %d", len(c.Scores), NumScores)
	}
	if c.LengthScale <= 0 {
		return fmt.Errorf("length_scale must be positive, got %v", c.LengthScale)
	}
	for i, s := range c.Scores {
		if s.LogOffset <= 0 {
			return fmt.Errorf("score %d (%s): log_offset must be positive", i, s.Name)
		}
		for _, p := range []Poly{s.PenMean, s.PenStd, s.PalmMean, s.PalmStd, s.Threshold} {
			if len(p) == 0 {
				return fmt.Errorf("score %d (%s): empty polynomial", i, s.Name)
			}
		}
	}
	if c.NPVeto < 0 || c.NPVeto > NumScores {
		return fmt.Errorf("np_veto %d out of range", c.NPVeto)
	}
	if c.BayesTemperature <= 0 {
		return fmt.Errorf("bayes_temperature must be positive, got %v", c.BayesTemperature)
	}
	for i, w := range c.Adaboost {
		if w.Score < 0 || w.Score >= NumScores || len(w.Threshold) == 0 || w.Alpha <= 0 {
			return fmt.Errorf("adaboost learner %d is malformed", i)
		}
	}
	sum := 0.0
	for _, w := range c.Weights {
		if w < 0 {
			return fmt.Errorf("negative combination weight %v", w)
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("combination weights sum to %v, want 1", sum)
	}
	return nil
}

var (
	defaultOnce sync.Once
	defaultCal  *Calibration
	defaultErr  error
)

// DefaultCalibration returns the embedded calibration table.
func DefaultCalibration() (*Calibration, error) {
	defaultOnce.Do(func() {
		defaultCal, defaultErr = ParseCalibration(calibrationV1)
	})
	return defaultCal, defaultErr
}

// MustDefaultCalibration is DefaultCalibration that panics on a broken
// embedded table.
func MustDefaultCalibration() *Calibration {
	c, err := DefaultCalibration()
	if err != nil {
		panic(err)
	}
	return c
}
