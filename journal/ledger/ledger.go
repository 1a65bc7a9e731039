// Package ledger keeps a SQLite record of distiller runs and the outcome of every request.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/theimaginaryfoundation/journal-distiller/journal"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	provider    TEXT NOT NULL DEFAULT '',
	model       TEXT NOT NULL DEFAULT '',
	input_path  TEXT NOT NULL DEFAULT '',
	out_dir     TEXT NOT NULL DEFAULT '',
	requests    INTEGER NOT NULL DEFAULT 0,
	processed   INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	errors      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS outcomes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	thread_id   TEXT NOT NULL,
	title       TEXT NOT NULL,
	status      TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	path        TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	recorded_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_thread ON outcomes(thread_id);
`

// Run is one distiller invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Provider   string
	Model      string
	InputPath  string
	OutDir     string
	Requests   int
	Stats      journal.RunStats
}

// Ledger is a journal.Recorder backed by SQLite. Outcomes are attached to the run opened by StartRun.
type Ledger struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

// Open creates or opens the ledger database at path.
func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, errors.New("ledger.Open: empty path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ledger.Open: creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger.Open: opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger.Open: pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("ledger.Open: setting pragma %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger.Open: migrate: %w", err)
	}

	return &Ledger{db: db, now: time.Now}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// StartRun inserts the run row and makes it current.
func (l *Ledger) StartRun(ctx context.Context, r Run) error {
	if r.ID == "" {
		return errors.New("ledger.StartRun: empty run id")
	}
	started := r.StartedAt
	if started.IsZero() {
		started = l.now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, provider, model, input_path, out_dir, requests) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, started.UTC().Format(time.RFC3339Nano), r.Provider, r.Model, r.InputPath, r.OutDir, r.Requests)
	if err != nil {
		return fmt.Errorf("ledger.StartRun: %w", err)
	}
	l.runID = r.ID
	return nil
}

// RecordOutcome stores one request outcome under the current run.
func (l *Ledger) RecordOutcome(ctx context.Context, o journal.Outcome) error {
	if l.runID == "" {
		return errors.New("ledger.RecordOutcome: no run started")
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO outcomes (run_id, thread_id, title, status, category, path, error, duration_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.runID, o.ThreadID, o.Title, string(o.Status), o.Category, o.Path, o.Err,
		o.Duration.Milliseconds(), l.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("ledger.RecordOutcome: %w", err)
	}
	return nil
}

// FinishRun stores the final counts of the current run.
func (l *Ledger) FinishRun(ctx context.Context, stats journal.RunStats) error {
	if l.runID == "" {
		return errors.New("ledger.FinishRun: no run started")
	}
	_, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, processed = ?, skipped = ?, errors = ? WHERE id = ?`,
		l.now().UTC().Format(time.RFC3339Nano), stats.Processed, stats.SkippedExisting, stats.Errors, l.runID)
	if err != nil {
		return fmt.Errorf("ledger.FinishRun: %w", err)
	}
	return nil
}

// LatestRunID returns the id of the most recently started run.
// It wraps sql.ErrNoRows when the ledger is empty.
func (l *Ledger) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := l.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("ledger.LatestRunID: %w", err)
	}
	return id, nil
}

// GetRun loads a run by ID.
func (l *Ledger) GetRun(ctx context.Context, id string) (Run, error) {
	var (
		r                  Run
		started            string
		finished           sql.NullString
		processed, skipped int
		errCount           int
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, provider, model, input_path, out_dir, requests, processed, skipped, errors
		 FROM runs WHERE id = ?`, id).
		Scan(&r.ID, &started, &finished, &r.Provider, &r.Model, &r.InputPath, &r.OutDir, &r.Requests, &processed, &skipped, &errCount)
	if err != nil {
		return Run{}, fmt.Errorf("ledger.GetRun: %w", err)
	}
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
	}
	r.Stats = journal.RunStats{Processed: processed, SkippedExisting: skipped, Errors: errCount}
	return r, nil
}

// Outcomes lists the outcomes of a run in insertion order.
func (l *Ledger) Outcomes(ctx context.Context, runID string) ([]journal.Outcome, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT thread_id, title, status, category, path, error, duration_ms FROM outcomes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("ledger.Outcomes: %w", err)
	}
	defer rows.Close()

	var out []journal.Outcome
	for rows.Next() {
		var (
			o      journal.Outcome
			status string
			ms     int64
		)
		if err := rows.Scan(&o.ThreadID, &o.Title, &status, &o.Category, &o.Path, &o.Err, &ms); err != nil {
			return nil, fmt.Errorf("ledger.Outcomes: scan: %w", err)
		}
		o.Status = journal.Status(status)
		o.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger.Outcomes: %w", err)
	}
	return out, nil
}
