package synth

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/palmreject/internal/touch"
	"github.com/banshee-data/palmreject/internal/touch/classifier"
	"github.com/banshee-data/palmreject/internal/touch/recorder"
)

func replay(t *testing.T, s *Session, onStep func(*classifier.Classifier, recorder.Step)) (*classifier.Classifier, *recorder.Result) {
	t.Helper()
	c := classifier.New(classifier.DefaultConfig())
	res, err := recorder.Replay(context.Background(), recorder.NewSliceSource(s.Records), c, recorder.Options{
		OnStep: func(st recorder.Step) {
			if onStep != nil {
				onStep(c, st)
			}
		},
	})
	require.NoError(t, err)
	return c, res
}

func TestGenerate_AllScenariosValid(t *testing.T) {
	t.Parallel()
	for _, sc := range Scenarios() {
		t.Run(string(sc), func(t *testing.T) {
			s, err := Generate(sc, Options{Seed: 1, Jitter: 0.5})
			require.NoError(t, err)
			require.NotEmpty(t, s.Records)
			assert.NotEmpty(t, s.Truth)

			prev := -1.0
			for i, rec := range s.Records {
				require.NoError(t, rec.Validate(), "record %d", i)
				assert.GreaterOrEqual(t, rec.T, prev, "record %d out of order", i)
				prev = rec.T
			}

			var buf bytes.Buffer
			_, err = recorder.WriteSession(&buf, s.Header, s.Records)
			require.NoError(t, err)
			rd, err := recorder.NewReader(&buf)
			require.NoError(t, err)
			back, err := rd.ReadAll()
			require.NoError(t, err)
			assert.Len(t, back, len(s.Records))
		})
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	t.Parallel()
	a, err := Generate(Writing, Options{Seed: 42, Jitter: 1.5})
	require.NoError(t, err)
	b, err := Generate(Writing, Options{Seed: 42, Jitter: 1.5})
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed differs (-a +b):\n%s", diff)
	}

	c, err := Generate(Writing, Options{Seed: 43, Jitter: 1.5})
	require.NoError(t, err)
	assert.False(t, cmp.Equal(a.Records, c.Records))
}

func TestParseScenario(t *testing.T) {
	t.Parallel()
	sc, err := ParseScenario("taps")
	require.NoError(t, err)
	assert.Equal(t, Taps, sc)
	_, err = ParseScenario("juggling")
	assert.Error(t, err)
	_, err = Generate("juggling", Options{})
	assert.Error(t, err)
}

func TestReplay_PenAndPalm(t *testing.T) {
	t.Parallel()
	s, err := Generate(PenAndPalm, Options{Seed: 1})
	require.NoError(t, err)
	_, res := replay(t, s, nil)

	got := res.FinalLabels()
	assert.Equal(t, touch.LabelPen, got[1])
	assert.Equal(t, touch.LabelPalm, got[2])
	assert.Equal(t, s.Truth[1], got[1])
	assert.Equal(t, s.Truth[2], got[2])
}

func TestReplay_FingerDrag(t *testing.T) {
	t.Parallel()
	s, err := Generate(FingerDrag, Options{Seed: 1})
	require.NoError(t, err)
	_, res := replay(t, s, nil)
	assert.Equal(t, touch.LabelFinger, res.FinalLabels()[1])
}

func TestReplay_CancelExpiresClusters(t *testing.T) {
	t.Parallel()
	s, err := Generate(Cancel, Options{Seed: 1})
	require.NoError(t, err)

	sawCancel := false
	replay(t, s, func(c *classifier.Classifier, st recorder.Step) {
		for _, ct := range st.Record.Contacts {
			if ct.Phase == touch.PhaseCancelled.String() {
				sawCancel = true
				assert.Equal(t, 0, c.ActiveClusters())
			}
		}
	})
	assert.True(t, sawCancel)
}

func TestReplay_WritingGlitchSuppressed(t *testing.T) {
	t.Parallel()
	s, err := Generate(Writing, Options{Seed: 3})
	require.NoError(t, err)
	_, res := replay(t, s, nil)

	assert.Equal(t, 1, res.Glitches)
	got := res.FinalLabels()
	for id := touch.ContactID(1); id <= 4; id++ {
		assert.Equal(t, touch.LabelPen, got[id], "stroke %d", id)
	}
	assert.Equal(t, touch.LabelPalm, got[10])
}
