package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/palmreject/internal/touch"
	"github.com/banshee-data/palmreject/internal/touch/recorder"
)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("replay run not found")

// Run is one persisted replay of a session log.
type Run struct {
	RunID         string          `json:"run_id"`
	SessionID     string          `json:"session_id"`
	Source        string          `json:"source"`
	ConfigJSON    json.RawMessage `json:"config_json,omitempty"`
	Steps         int             `json:"steps"`
	LabelChanges  int             `json:"label_changes"`
	Glitches      int             `json:"glitches"`
	OffscreenHits int             `json:"offscreen_hits"`
	CreatedAt     int64           `json:"created_at"`
}

// StrokeLabel is the final label of one stroke within a run.
type StrokeLabel struct {
	StrokeIndex int             `json:"stroke_idx"`
	ContactID   touch.ContactID `json:"contact_id"`
	Label       touch.Label     `json:"label"`
	Begin       float64         `json:"begin_t"`
	End         float64         `json:"end_t"`
	Points      int             `json:"points"`
	Radius      float64         `json:"radius"`
}

// RunStore persists replay runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore migrates db to the latest schema and returns a store over it.
func NewRunStore(db *sql.DB) (*RunStore, error) {
	if err := MigrateUp(db); err != nil {
		return nil, err
	}
	return &RunStore{db: db}, nil
}

// InsertRun persists a new run. An empty RunID gets a UUID.
func (s *RunStore) InsertRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}

	var cfg interface{}
	if len(run.ConfigJSON) > 0 {
		cfg = string(run.ConfigJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO replay_runs (
				run_id, session_id, source, config_json,
				steps, label_changes, glitches, offscreen_hits, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.SessionID, run.Source, cfg,
			run.Steps, run.LabelChanges, run.Glitches, run.OffscreenHits, run.CreatedAt,
		)
		return err
	})
}

// SaveResult records a replay result as a new run and returns it.
// The run row, stroke labels and samples are written in one transaction.
func (s *RunStore) SaveResult(h recorder.Header, cfg json.RawMessage, res *recorder.Result) (*Run, error) {
	run := &Run{
		RunID:         uuid.New().String(),
		SessionID:     h.SessionID,
		Source:        h.Source,
		ConfigJSON:    cfg,
		Steps:         res.Steps,
		LabelChanges:  res.LabelChanges,
		Glitches:      res.Glitches,
		OffscreenHits: res.OffscreenHits,
		CreatedAt:     time.Now().UnixNano(),
	}
	var cfgStr interface{}
	if len(cfg) > 0 {
		cfgStr = string(cfg)
	}

	err := retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`
			INSERT INTO replay_runs (
				run_id, session_id, source, config_json,
				steps, label_changes, glitches, offscreen_hits, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.SessionID, run.Source, cfgStr,
			run.Steps, run.LabelChanges, run.Glitches, run.OffscreenHits, run.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		labelStmt, err := tx.Prepare(`
			INSERT INTO replay_labels (
				run_id, stroke_idx, contact_id, label, begin_t, end_t, points, radius
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare labels: %w", err)
		}
		defer labelStmt.Close()
		for i, st := range res.Strokes {
			if _, err := labelStmt.Exec(run.RunID, i, int64(st.ID), st.Label.String(),
				st.Begin, st.End, len(st.Points), st.Radius); err != nil {
				return fmt.Errorf("insert label %d: %w", i, err)
			}
		}

		sampleStmt, err := tx.Prepare(`
			INSERT INTO replay_samples (run_id, t, cluster_seq, pen_probability, label)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare samples: %w", err)
		}
		defer sampleStmt.Close()
		for _, smp := range res.Samples {
			if _, err := sampleStmt.Exec(run.RunID, smp.T, int64(smp.Seq),
				smp.PenProbability, smp.Label.String()); err != nil {
				return fmt.Errorf("insert sample: %w", err)
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetRun returns a run by id, or ErrRunNotFound.
func (s *RunStore) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, session_id, source, config_json,
		       steps, label_changes, glitches, offscreen_hits, created_at
		FROM replay_runs
		WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// ListRuns returns runs newest first. An empty sessionID lists every run.
func (s *RunStore) ListRuns(sessionID string) ([]*Run, error) {
	q := `
		SELECT run_id, session_id, source, config_json,
		       steps, label_changes, glitches, offscreen_hits, created_at
		FROM replay_runs`
	var args []interface{}
	if sessionID != "" {
		q += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	q += ` ORDER BY created_at DESC, run_id`

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Labels returns a run's stroke labels in stroke order.
func (s *RunStore) Labels(runID string) ([]StrokeLabel, error) {
	rows, err := s.db.Query(`
		SELECT stroke_idx, contact_id, label, begin_t, end_t, points, radius
		FROM replay_labels
		WHERE run_id = ?
		ORDER BY stroke_idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	var out []StrokeLabel
	for rows.Next() {
		var (
			sl    StrokeLabel
			id    int64
			label string
		)
		if err := rows.Scan(&sl.StrokeIndex, &id, &label, &sl.Begin, &sl.End, &sl.Points, &sl.Radius); err != nil {
			return nil, fmt.Errorf("scan label row: %w", err)
		}
		sl.ContactID = touch.ContactID(id)
		if sl.Label, err = touch.ParseLabel(label); err != nil {
			return nil, fmt.Errorf("stroke %d: %w", sl.StrokeIndex, err)
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}

// Samples returns a run's cluster samples ordered by time then cluster.
func (s *RunStore) Samples(runID string) ([]recorder.ClusterSample, error) {
	rows, err := s.db.Query(`
		SELECT t, cluster_seq, pen_probability, label
		FROM replay_samples
		WHERE run_id = ?
		ORDER BY t, cluster_seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var out []recorder.ClusterSample
	for rows.Next() {
		var (
			smp   recorder.ClusterSample
			seq   int64
			label string
		)
		if err := rows.Scan(&smp.T, &seq, &smp.PenProbability, &label); err != nil {
			return nil, fmt.Errorf("scan sample row: %w", err)
		}
		smp.Seq = uint64(seq)
		if smp.Label, err = touch.ParseLabel(label); err != nil {
			return nil, err
		}
		out = append(out, smp)
	}
	return out, rows.Err()
}

// DeleteRun removes a run with its labels and samples.
func (s *RunStore) DeleteRun(runID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM replay_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (*Run, error) {
	var r Run
	var cfg sql.NullString
	if err := sc.Scan(
		&r.RunID, &r.SessionID, &r.Source, &cfg,
		&r.Steps, &r.LabelChanges, &r.Glitches, &r.OffscreenHits, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	if cfg.Valid {
		r.ConfigJSON = json.RawMessage(cfg.String)
	}
	return &r, nil
}
