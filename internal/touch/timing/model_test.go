package timing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLaplace(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 1/(2*0.02), Laplace(0, 0.02), 1e-9)
	assert.InDelta(t, Laplace(0.01, 0.02), Laplace(-0.01, 0.02), 1e-12)
	assert.Less(t, Laplace(0.05, 0.02), Laplace(0.01, 0.02))
}

func TestPosterior(t *testing.T) {
	t.Parallel()
	m := NewModel(DefaultConfig())

	post := m.Posterior(0.02, []Candidate{{Error: 0.005, Prior: 0.5}})
	assert.InDelta(t, 0.99, post[0], 0.01)

	post = m.Posterior(0.02, []Candidate{{Error: 0.02, Prior: 0.5}, {Error: 0, Prior: 0.5}})
	assert.Greater(t, post[1], post[0])
	assert.Less(t, post[0]+post[1], 1.0)

	// Null hypothesis takes everything when no candidate is present.
	assert.Empty(t, m.Posterior(0.02, nil))
}

func TestExpectedOffsets(t *testing.T) {
	t.Parallel()
	m := NewModel(DefaultConfig())
	assert.InDelta(t, 0.025, m.ExpectedDownOffset(), 1e-9)
	assert.InDelta(t, -1.0/60, m.ExpectedUpOffset(), 1e-9)
	assert.InDelta(t, 0.005, m.DownError(0.03, 0), 1e-9)
	assert.True(t, m.Eligible(0.25))
	assert.False(t, m.Eligible(-0.26))
}

func TestClusterOdds(t *testing.T) {
	t.Parallel()
	m := NewModel(DefaultConfig())

	assert.Equal(t, 1.0, m.ClusterOdds(nil))
	assert.InDelta(t, 1.497, m.ClusterOdds([]float64{0.5}), 0.01)

	// One confident palm member vetoes an otherwise pen-like cluster.
	pen := m.ClusterOdds([]float64{0.95, 0.95})
	vetoed := m.ClusterOdds([]float64{0.95, 0.01})
	assert.Greater(t, pen, 100.0)
	assert.Less(t, vetoed, pen)

	assert.InDelta(t, 0.5, OddsToProbability(1), 1e-12)
	assert.Equal(t, 1.0, OddsToProbability(math.Inf(1)))
	assert.InDelta(t, 0.05, CombineDownUp(0.05, 0.05), 1e-12)
}
