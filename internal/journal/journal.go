// Package journal records install, repair and uninstall runs in a local
// SQLite database so `deskdroid logs` can show what happened when, long
// after the terminal scrollback is gone.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultPath is where the run history lives.
const DefaultPath = "/var/lib/deskdroid/history.db"

// Journal is the run-history store.
type Journal struct {
	db *sql.DB
}

// Run is one reconciler invocation.
type Run struct {
	ID         string
	Kind       string // install, repair, uninstall, port-change, password-change
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string // ok, failed, or empty while in flight
}

// Step is one component action within a run.
type Step struct {
	RunID     string
	Component string
	Outcome   string // applied, failed
	Detail    string
	At        time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	outcome     TEXT
);
CREATE TABLE IF NOT EXISTS steps (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	component TEXT NOT NULL,
	outcome   TEXT NOT NULL,
	detail    TEXT,
	at        TEXT NOT NULL
);
`

// Open opens (or creates) the journal database.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// BeginRun opens a new run and returns its ID.
func (j *Journal) BeginRun(ctx context.Context, kind string) (string, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, started_at) VALUES (?, ?, ?)`,
		id, kind, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// RecordStep appends a component action to a run.
func (j *Journal) RecordStep(ctx context.Context, runID, component, outcome, detail string) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO steps (run_id, component, outcome, detail, at) VALUES (?, ?, ?, ?, ?)`,
		runID, component, outcome, detail, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record step: %w", err)
	}
	return nil
}

// FinishRun closes a run with its outcome.
func (j *Journal) FinishRun(ctx context.Context, runID, outcome string) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, outcome = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), outcome, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecentRuns returns up to n runs, newest first.
func (j *Journal) RecentRuns(ctx context.Context, n int) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, kind, started_at, COALESCE(finished_at, ''), COALESCE(outcome, '')
		 FROM runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Kind, &started, &finished, &r.Outcome); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if finished != "" {
			r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Steps returns the component actions of a run in order.
func (j *Journal) Steps(ctx context.Context, runID string) ([]Step, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, component, outcome, COALESCE(detail, ''), at
		 FROM steps WHERE run_id = ? ORDER BY at`, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var out []Step
	for rows.Next() {
		var s Step
		var at string
		if err := rows.Scan(&s.RunID, &s.Component, &s.Outcome, &s.Detail, &at); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		s.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, s)
	}
	return out, rows.Err()
}
