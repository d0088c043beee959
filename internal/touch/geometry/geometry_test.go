package geometry

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func arcStroke(n int, radius float64) Stroke {
	xs := make([]float64, n)
	ys := make([]float64, n)
	ts := make([]float64, n)
	for i := range xs {
		th := (math.Pi / 2) * float64(i) / float64(n-1)
		xs[i] = 100 + radius*math.Cos(th)
		ys[i] = 100 + radius*math.Sin(th)
		ts[i] = float64(i) / 60
	}
	return NewStroke(xs, ys, ts)
}

func jitterStroke(r *rand.Rand, n int) Stroke {
	xs := make([]float64, n)
	ys := make([]float64, n)
	ts := make([]float64, n)
	for i := range xs {
		xs[i] = 300 + (r.Float64()*2-1)*1.5
		ys[i] = 300 + (r.Float64()*2-1)*1.5
		ts[i] = float64(i) / 60
	}
	return NewStroke(xs, ys, ts)
}

func TestDefaultCalibration(t *testing.T) {
	t.Parallel()
	cal, err := DefaultCalibration()
	require.NoError(t, err)
	assert.Equal(t, CalibrationVersion, cal.Version)
	assert.Len(t, cal.Scores, NumScores)
	for i, s := range cal.Scores {
		assert.Equal(t, ChosenFeature(i).String(), s.Name, "score %d", i)
	}
}

func TestParseCalibration_Invalid(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		name string
		data string
	}{
		{"bad json", `{`},
		{"wrong version", `{"version": 2}`},
		{"no scores", `{"version": 1, "length_scale": 1}`},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseCalibration([]byte(tc.data))
			assert.Error(t, err)
		})
	}

	cal := *MustDefaultCalibration()
	cal.Weights = [3]float64{0.5, 0.5, 0.5}
	assert.ErrorContains(t, cal.Validate(), "sum")
}

func TestPolyEval(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 1+2*3+4*9, Poly{1, 2, 4}.Eval(3), 1e-12)
	assert.Equal(t, 0.0, Poly{}.Eval(5))
}

func TestNewStroke_DropsRepeatedTimestamps(t *testing.T) {
	t.Parallel()
	s := NewStroke([]float64{0, 1, 2, 3}, []float64{0, 0, 0, 0}, []float64{0, 0.01, 0.01, 0.02})
	assert.Equal(t, 3, s.Len())
	assert.InDelta(t, 0.02, s.Duration(), 1e-12)
}

func TestExtract_Insufficient(t *testing.T) {
	t.Parallel()
	_, ok := Extract(NewStroke([]float64{0, 1, 2}, []float64{0, 0, 0}, []float64{0, 0.01, 0.02}))
	assert.False(t, ok)

	still := NewStroke([]float64{5, 5, 5, 5, 5, 5}, []float64{5, 5, 5, 5, 5, 5}, []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5})
	_, ok = Extract(still)
	assert.False(t, ok)

	r := NewClassifier(nil).ScoreStroke(still)
	assert.False(t, r.OK)
	assert.Equal(t, 0.5, r.Score)
}

func TestExtract_Arc(t *testing.T) {
	t.Parallel()
	f, ok := Extract(arcStroke(31, 200))
	require.True(t, ok)

	assert.InDelta(t, 200*math.Pi/2, f[FeatLength], 1)
	assert.InDelta(t, 0.5, f[FeatDuration], 1e-9)
	assert.InDelta(t, 200*math.Sqrt2, f[FeatChord], 1e-6)
	assert.InDelta(t, 31, f[FeatPoints], 0)
	// Unit speed circle: |q''| = L/R.
	assert.InDelta(t, math.Pi/2, f[FeatArcSecondOrthogonalRMS], 0.05)
	assert.InDelta(t, math.Pi/2, f[FeatTurningNet], 0.1)
	assert.InDelta(t, 1, f[FeatSpeedMean], 0.01)
	assert.InDelta(t, 1, f[FeatIntegratedSpeedRatio], 0.05)
	assert.Less(t, f[FeatSegmentCV], 0.01)
	assert.Less(t, f[FeatQuadraticResidualRMS], f[FeatLinearResidualRMS])
}

func TestClassifier_SeparatesPenFromPalm(t *testing.T) {
	t.Parallel()
	c := NewClassifier(nil)

	t.Run("smooth arc", func(t *testing.T) {
		t.Parallel()
		r := c.ScoreStroke(arcStroke(31, 200))
		require.True(t, r.OK)
		assert.Greater(t, r.Score, 0.9)
		assert.Greater(t, r.NP, 0.5)
		assert.Greater(t, r.Bayes, 0.5)
		assert.Greater(t, r.Adaboost, 0.5)
	})

	t.Run("straight line", func(t *testing.T) {
		t.Parallel()
		xs := make([]float64, 20)
		ys := make([]float64, 20)
		ts := make([]float64, 20)
		for i := range xs {
			xs[i], ys[i], ts[i] = 100+10*float64(i), 100+3*float64(i), float64(i)/60
		}
		r := c.ScoreStroke(NewStroke(xs, ys, ts))
		require.True(t, r.OK)
		assert.Greater(t, r.Score, 0.8)
	})

	t.Run("jitter", func(t *testing.T) {
		t.Parallel()
		rng := rand.New(rand.NewSource(3))
		for i := 0; i < 5; i++ {
			r := c.ScoreStroke(jitterStroke(rng, 12))
			require.True(t, r.OK)
			assert.Less(t, r.Score, 0.2)
			assert.Greater(t, r.PalmVotes, MustDefaultCalibration().NPVeto)
		}
	})
}

func TestClassifier_Deterministic(t *testing.T) {
	t.Parallel()
	c := NewClassifier(nil)
	s := arcStroke(25, 150)
	assert.Equal(t, c.ScoreStroke(s), c.ScoreStroke(s))
}

func TestNormalizedLogLength_Clamped(t *testing.T) {
	t.Parallel()
	cal := MustDefaultCalibration()
	assert.Equal(t, cal.LengthClamp, cal.NormalizedLogLength(1e12))
	assert.Equal(t, -cal.LengthClamp, cal.NormalizedLogLength(0))
	assert.InDelta(t, 0, cal.NormalizedLogLength(math.Exp(cal.LengthCenter)), 1e-12)
}

func TestAdaboostConfidence(t *testing.T) {
	t.Parallel()
	var s Scores
	s[0], s[1] = 1, 5

	empty := &Calibration{}
	assert.Equal(t, 0.5, empty.AdaboostConfidence(s, 0))

	cal := &Calibration{Adaboost: []WeakLearner{
		{Score: 0, Threshold: Poly{2}, PenBelow: true, Alpha: 3},
		{Score: 1, Threshold: Poly{2}, PenBelow: true, Alpha: 1},
	}}
	// 3 for pen, 1 against: (1 + 2/4) / 2.
	assert.InDelta(t, 0.75, cal.AdaboostConfidence(s, 0), 1e-12)

	cal.Adaboost[1].PenBelow = false
	assert.InDelta(t, 1.0, cal.AdaboostConfidence(s, 0), 1e-12)
}
