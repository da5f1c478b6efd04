// Package journal persists bootstrap runs and their per-step outcomes to a
// local SQLite database. The journal is what makes resume possible: a failed
// run records which steps completed so the next attempt can skip them.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run status values.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrNoRuns is returned when the journal has no recorded runs.
var ErrNoRuns = errors.New("journal: no recorded runs")

// Run is one invocation of the bootstrap sequence.
type Run struct {
	ID         string
	Kind       string // bootstrap|resume|sync
	Started    time.Time
	Finished   time.Time // zero while running
	Status     string
	FailedStep string
}

// StepRecord is the outcome of one named step within a run.
type StepRecord struct {
	RunID    string
	Step     string
	Status   string
	Duration time.Duration
	Error    string
}

// Store is a SQLite-backed journal.
// Use ":memory:" for an in-memory database, or a file path for persistence.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) the journal database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize journal schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		started INTEGER NOT NULL,
		finished INTEGER,
		status TEXT NOT NULL,
		failed_step TEXT
	);
	CREATE TABLE IF NOT EXISTS step_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		step TEXT NOT NULL,
		status TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_step_run_id ON step_records(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// BeginRun records the start of a run and returns its ID.
func (s *Store) BeginRun(ctx context.Context, kind string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, kind, started, status) VALUES (?, ?, ?, ?)",
		id, kind, time.Now().Unix(), StatusRunning,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun marks a run finished. failedStep is empty on success.
func (s *Store) FinishRun(ctx context.Context, runID, status, failedStep string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET finished = ?, status = ?, failed_step = ? WHERE id = ?",
		time.Now().Unix(), status, failedStep, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordStep appends a step outcome to a run.
func (s *Store) RecordStep(ctx context.Context, rec StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO step_records (run_id, step, status, duration_ms, error) VALUES (?, ?, ?, ?, ?)",
		rec.RunID, rec.Step, rec.Status, rec.Duration.Milliseconds(), rec.Error,
	)
	if err != nil {
		return fmt.Errorf("insert step record: %w", err)
	}
	return nil
}

// LastRun returns the most recently started run.
func (s *Store) LastRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, kind, started, COALESCE(finished, 0), status, COALESCE(failed_step, '') FROM runs ORDER BY started DESC, rowid DESC LIMIT 1")
	return scanRun(row)
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, kind, started, COALESCE(finished, 0), status, COALESCE(failed_step, '') FROM runs ORDER BY started DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRunRows(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunSteps returns the step records of a run in insertion order.
func (s *Store) RunSteps(ctx context.Context, runID string) ([]StepRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, step, status, duration_ms, COALESCE(error, '') FROM step_records WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, fmt.Errorf("query step records: %w", err)
	}
	defer rows.Close()

	var recs []StepRecord
	for rows.Next() {
		var rec StepRecord
		var durationMS int64
		if err := rows.Scan(&rec.RunID, &rec.Step, &rec.Status, &durationMS, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan step record: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// CompletedSteps returns the set of step names that succeeded in a run.
func (s *Store) CompletedSteps(ctx context.Context, runID string) (map[string]bool, error) {
	recs, err := s.RunSteps(ctx, runID)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool)
	for _, rec := range recs {
		if rec.Status == StatusSucceeded {
			done[rec.Step] = true
		}
	}
	return done, nil
}

func scanRun(row *sql.Row) (Run, error) {
	var r Run
	var started, finished int64
	err := row.Scan(&r.ID, &r.Kind, &started, &finished, &r.Status, &r.FailedStep)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.Started = time.Unix(started, 0)
	if finished > 0 {
		r.Finished = time.Unix(finished, 0)
	}
	return r, nil
}

func scanRunRows(rows *sql.Rows) (Run, error) {
	var r Run
	var started, finished int64
	if err := rows.Scan(&r.ID, &r.Kind, &started, &finished, &r.Status, &r.FailedStep); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.Started = time.Unix(started, 0)
	if finished > 0 {
		r.Finished = time.Unix(finished, 0)
	}
	return r, nil
}
