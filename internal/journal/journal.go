// Package journal records launcher runs in SQLite. A headless failure leaves
// a queryable trace (per-step outcomes) next to the log file; `camlaunch
// history` and `camlaunch doctor` read it.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SchemaSQL is the journal schema. Single source of truth; tests apply it to
// in-memory databases.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	finished_at DATETIME,
	mode TEXT NOT NULL,
	generation INTEGER NOT NULL DEFAULT 0,
	outcome TEXT NOT NULL CHECK(outcome IN ('running', 'ok', 'fatal', 'restart')) DEFAULT 'running',
	error TEXT
);

CREATE TABLE IF NOT EXISTS run_steps (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('ok', 'skipped', 'retried', 'fatal')),
	detail TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`

// Run is one recorded launcher run.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Mode       string
	Generation int
	Outcome    string
	Error      string
}

// Step is one recorded pipeline step within a run.
type Step struct {
	ID     int64
	RunID  int64
	Name   string
	Status string
	Detail string
}

// Journal is the SQLite-backed run journal.
type Journal struct {
	db *sql.DB
}

// Open opens (and if needed creates) the journal database at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(SchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// StartRun records a new run and returns its id.
func (j *Journal) StartRun(ctx context.Context, mode string, generation int) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (mode, generation) VALUES (?, ?)`, mode, generation)
	if err != nil {
		return 0, fmt.Errorf("failed to record run start: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun closes a run with its outcome and optional error text.
func (j *Journal) FinishRun(ctx context.Context, runID int64, outcome, errMsg string) error {
	var errVal sql.NullString
	if errMsg != "" {
		errVal = sql.NullString{String: errMsg, Valid: true}
	}
	_, err := j.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = CURRENT_TIMESTAMP, outcome = ?, error = ? WHERE id = ?`,
		outcome, errVal, runID)
	if err != nil {
		return fmt.Errorf("failed to record run outcome: %w", err)
	}
	return nil
}

// RecordStep appends a step outcome to a run.
func (j *Journal) RecordStep(ctx context.Context, runID int64, name, status, detail string) error {
	var detailVal sql.NullString
	if detail != "" {
		detailVal = sql.NullString{String: detail, Valid: true}
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO run_steps (run_id, name, status, detail) VALUES (?, ?, ?, ?)`,
		runID, name, status, detailVal)
	if err != nil {
		return fmt.Errorf("failed to record step %s: %w", name, err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (j *Journal) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, mode, generation, outcome, error
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		var errMsg sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.Mode, &r.Generation, &r.Outcome, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		r.Error = errMsg.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Steps returns the recorded steps of a run in order.
func (j *Journal) Steps(ctx context.Context, runID int64) ([]Step, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, run_id, name, status, detail FROM run_steps WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var s Step
		var detail sql.NullString
		if err := rows.Scan(&s.ID, &s.RunID, &s.Name, &s.Status, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		s.Detail = detail.String
		steps = append(steps, s)
	}
	return steps, rows.Err()
}
