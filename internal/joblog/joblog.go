// Package joblog keeps a per-attempt execution log in a small SQLite
// database next to the data file. Job records themselves never carry
// captured output; this is where it goes instead.
package joblog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type Entry struct {
	JobID      string
	Attempt    int
	StartedAt  time.Time
	FinishedAt time.Time
	Success    bool
	Message    string
	Output     string
}

type Log struct {
	db *sql.DB
}

func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open execution log: %w", err)
	}

	l := &Log{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS executions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  job_id TEXT NOT NULL,
  attempt INTEGER NOT NULL,
  started_at TIMESTAMP NOT NULL,
  finished_at TIMESTAMP NOT NULL,
  success INTEGER NOT NULL,
  message TEXT,
  output TEXT
);
CREATE INDEX IF NOT EXISTS idx_executions_job ON executions(job_id, started_at);
`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate execution log: %w", err)
	}
	return nil
}

func (l *Log) Append(ctx context.Context, e Entry) error {
	_, err := l.db.ExecContext(ctx, `
INSERT INTO executions(job_id, attempt, started_at, finished_at, success, message, output)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.JobID, e.Attempt, e.StartedAt, e.FinishedAt, e.Success, e.Message, e.Output)
	return err
}

// ForJob returns the recorded attempts for a job, oldest first.
func (l *Log) ForJob(ctx context.Context, jobID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := l.db.QueryContext(ctx, `
SELECT job_id, attempt, started_at, finished_at, success, message, output
FROM executions WHERE job_id = ? ORDER BY started_at ASC, id ASC LIMIT ?`, jobID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.JobID, &e.Attempt, &e.StartedAt, &e.FinishedAt, &e.Success, &e.Message, &e.Output); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *Log) Close() error { return l.db.Close() }
