package sqlite

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/palmreject/internal/testutil"
	"github.com/banshee-data/palmreject/internal/touch"
	"github.com/banshee-data/palmreject/internal/touch/recorder"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	db, _ := testutil.OpenTempSQLite(t)
	s, err := NewRunStore(db)
	require.NoError(t, err)
	return s
}

func sampleResult() *recorder.Result {
	return &recorder.Result{
		Steps:         40,
		Passes:        6,
		LabelChanges:  5,
		Glitches:      1,
		OffscreenHits: 0,
		Strokes: []recorder.Stroke{
			{ID: 1, Points: make([]touch.Point, 31), Begin: 0.3, End: 0.8, Label: touch.LabelPen},
			{ID: 2, Points: make([]touch.Point, 55), Radius: 30, Begin: 0, End: 0.9, Label: touch.LabelPalm},
			{ID: 1, Points: make([]touch.Point, 4), Radius: 8, Begin: 1.2, End: 1.25, Label: touch.LabelFinger},
		},
		Samples: []recorder.ClusterSample{
			{T: 0.3, Seq: 2, PenProbability: 0.5, Label: touch.LabelUnknown},
			{T: 0.3, Seq: 1, PenProbability: 0.05, Label: touch.LabelPalm},
			{T: 0.35, Seq: 2, PenProbability: 0.99, Label: touch.LabelPen},
		},
	}
}

func TestMigrateVersion(t *testing.T) {
	db, _ := testutil.OpenTempSQLite(t)

	v, dirty, err := MigrateVersion(db)
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)
	assert.False(t, dirty)

	require.NoError(t, MigrateUp(db))
	require.NoError(t, MigrateUp(db), "second run is a no-op")

	v, dirty, err = MigrateVersion(db)
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.False(t, dirty)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	_, err = NewRunStore(db)
	require.NoError(t, err)
}

func TestRunStore_SaveResult(t *testing.T) {
	s := newTestStore(t)
	cfg := json.RawMessage(`{"claim_threshold":0.3}`)
	h := recorder.Header{SessionID: "sess-1", Source: "synth:pen-and-palm"}

	run, err := s.SaveResult(h, cfg, sampleResult())
	require.NoError(t, err)
	require.NotEmpty(t, run.RunID)

	got, err := s.GetRun(run.RunID)
	require.NoError(t, err)
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("GetRun mismatch (-want +got):\n%s", diff)
	}

	labels, err := s.Labels(run.RunID)
	require.NoError(t, err)
	want := []StrokeLabel{
		{StrokeIndex: 0, ContactID: 1, Label: touch.LabelPen, Begin: 0.3, End: 0.8, Points: 31},
		{StrokeIndex: 1, ContactID: 2, Label: touch.LabelPalm, Begin: 0, End: 0.9, Points: 55, Radius: 30},
		{StrokeIndex: 2, ContactID: 1, Label: touch.LabelFinger, Begin: 1.2, End: 1.25, Points: 4, Radius: 8},
	}
	testutil.AssertEqual(t, want, labels)

	samples, err := s.Samples(run.RunID)
	require.NoError(t, err)
	wantSamples := []recorder.ClusterSample{
		{T: 0.3, Seq: 1, PenProbability: 0.05, Label: touch.LabelPalm},
		{T: 0.3, Seq: 2, PenProbability: 0.5, Label: touch.LabelUnknown},
		{T: 0.35, Seq: 2, PenProbability: 0.99, Label: touch.LabelPen},
	}
	testutil.AssertEqual(t, wantSamples, samples)
}

func TestRunStore_InsertAndList(t *testing.T) {
	s := newTestStore(t)

	a := &Run{SessionID: "a", CreatedAt: 100}
	b := &Run{SessionID: "b", CreatedAt: 200}
	c := &Run{RunID: "fixed", SessionID: "a", CreatedAt: 300}
	for _, r := range []*Run{a, b, c} {
		require.NoError(t, s.InsertRun(r))
	}
	assert.NotEmpty(t, a.RunID)
	assert.Equal(t, "fixed", c.RunID)
	assert.Nil(t, c.ConfigJSON)

	all, err := s.ListRuns("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{c.RunID, b.RunID, a.RunID}, []string{all[0].RunID, all[1].RunID, all[2].RunID})

	onlyA, err := s.ListRuns("a")
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, c.RunID, onlyA[0].RunID)

	none, err := s.ListRuns("missing")
	require.NoError(t, err)
	assert.Empty(t, none)

	err = s.InsertRun(&Run{RunID: "fixed", SessionID: "dup", CreatedAt: 1})
	assert.Error(t, err, "duplicate run id")
}

func TestRunStore_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun("nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	err = s.DeleteRun("nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestRunStore_DeleteCascades(t *testing.T) {
	s := newTestStore(t)
	run, err := s.SaveResult(recorder.Header{SessionID: "s"}, nil, sampleResult())
	require.NoError(t, err)

	require.NoError(t, s.DeleteRun(run.RunID))

	_, err = s.GetRun(run.RunID)
	assert.ErrorIs(t, err, ErrRunNotFound)

	labels, err := s.Labels(run.RunID)
	require.NoError(t, err)
	assert.Empty(t, labels)
	samples, err := s.Samples(run.RunID)
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestIsSQLiteBusy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"locked", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"busy code", errors.New("SQLITE_BUSY"), true},
		{"other", errors.New("no such table"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isSQLiteBusy(tt.err))
		})
	}
}

func TestRetryOnBusy(t *testing.T) {
	t.Run("recovers", func(t *testing.T) {
		calls := 0
		err := retryOnBusy(func() error {
			calls++
			if calls < 3 {
				return errors.New("database is locked")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		calls := 0
		err := retryOnBusy(func() error {
			calls++
			return errors.New("constraint failed")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := retryOnBusy(func() error {
			calls++
			return errors.New("SQLITE_BUSY")
		})
		assert.Error(t, err)
		assert.Equal(t, busyRetries, calls)
	})
}
