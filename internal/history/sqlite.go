package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Varunmathiazhagan/final-project-review/internal/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	start_url   TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	cancelled   INTEGER NOT NULL DEFAULT 0,
	crawled     INTEGER NOT NULL DEFAULT 0,
	queued      INTEGER NOT NULL DEFAULT 0,
	tested      INTEGER NOT NULL DEFAULT 0,
	requests    INTEGER NOT NULL DEFAULT 0,
	findings    INTEGER NOT NULL DEFAULT 0,
	visited     TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS findings (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	url         TEXT NOT NULL,
	type        TEXT NOT NULL,
	param       TEXT NOT NULL,
	location    TEXT NOT NULL,
	technique   TEXT NOT NULL,
	risk        TEXT NOT NULL,
	score       REAL NOT NULL,
	payload     TEXT NOT NULL,
	evidence    TEXT NOT NULL,
	fix_snippet TEXT NOT NULL,
	dbms        TEXT NOT NULL DEFAULT '',
	found_at    TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// SQLiteStore implements Store using SQLite via modernc.org/sqlite (pure Go).
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the archive at dbPath. Use ":memory:" for
// testing.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save archives s with its findings. An empty ID is replaced by a new
// UUID. Saving an existing ID replaces the earlier record.
func (s *SQLiteStore) Save(ctx context.Context, sum *engine.Summary) error {
	if sum.ID == "" {
		sum.ID = uuid.New().String()
	}
	visited := sum.Visited
	if visited == nil {
		visited = []string{}
	}
	visitedJSON, err := json.Marshal(visited)
	if err != nil {
		return fmt.Errorf("history: marshal visited: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, sum.ID); err != nil {
		return fmt.Errorf("history: replace run: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, start_url, started_at, finished_at, cancelled,
			crawled, queued, tested, requests, findings, visited)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID,
		sum.StartURL,
		formatTime(sum.StartedAt),
		formatTime(sum.FinishedAt),
		sum.Cancelled,
		sum.Snapshot.Crawled,
		sum.Snapshot.Queued,
		sum.Snapshot.Tested,
		sum.Snapshot.Requests,
		len(sum.Findings),
		string(visitedJSON),
	)
	if err != nil {
		return fmt.Errorf("history: save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO findings (run_id, seq, url, type, param, location, technique,
			risk, score, payload, evidence, fix_snippet, dbms, found_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("history: prepare finding insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range sum.Findings {
		_, err := stmt.ExecContext(ctx,
			sum.ID, i, f.URL, f.Type, f.Param, f.Location, string(f.Technique),
			string(f.Risk), f.Score, f.Payload, f.Evidence, f.FixSnippet, f.DBMS,
			formatTime(f.FoundAt),
		)
		if err != nil {
			return fmt.Errorf("history: save finding %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	return nil
}

// Get loads an archived run with its findings in the order they were
// found. It returns ErrNotFound for an unknown ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*engine.Summary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, start_url, started_at, finished_at, cancelled,
			crawled, queued, tested, requests, findings, visited
		FROM runs WHERE id = ?`, id)

	var (
		sum               engine.Summary
		started, finished string
		nfindings         int
		visitedJSON       string
	)
	err := row.Scan(&sum.ID, &sum.StartURL, &started, &finished, &sum.Cancelled,
		&sum.Snapshot.Crawled, &sum.Snapshot.Queued, &sum.Snapshot.Tested,
		&sum.Snapshot.Requests, &nfindings, &visitedJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("history: scan run: %w", err)
	}
	if sum.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if sum.FinishedAt, err = parseTime(finished); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(visitedJSON), &sum.Visited); err != nil {
		return nil, fmt.Errorf("history: unmarshal visited: %w", err)
	}
	sum.Snapshot.Findings = nfindings

	sum.Findings, err = s.findings(ctx, id)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

func (s *SQLiteStore) findings(ctx context.Context, runID string) ([]engine.Finding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, type, param, location, technique, risk, score, payload,
			evidence, fix_snippet, dbms, found_at
		FROM findings WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("history: query findings: %w", err)
	}
	defer rows.Close()

	findings := []engine.Finding{}
	for rows.Next() {
		var (
			f         engine.Finding
			technique string
			risk      string
			foundAt   string
		)
		if err := rows.Scan(&f.URL, &f.Type, &f.Param, &f.Location, &technique, &risk,
			&f.Score, &f.Payload, &f.Evidence, &f.FixSnippet, &f.DBMS, &foundAt); err != nil {
			return nil, fmt.Errorf("history: scan finding row: %w", err)
		}
		f.Technique = engine.Technique(technique)
		f.Risk = engine.Risk(risk)
		if f.FoundAt, err = parseTime(foundAt); err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate findings: %w", err)
	}
	return findings, nil
}

// List returns the most recent runs first. A limit <= 0 returns all runs.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_url, started_at, finished_at, cancelled, crawled, tested, findings
		FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.StartURL, &started, &finished, &r.Cancelled,
			&r.Crawled, &r.Tested, &r.Findings); err != nil {
			return nil, fmt.Errorf("history: scan run row: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate runs: %w", err)
	}
	return runs, nil
}

// Delete removes a run and its findings. Unknown IDs are not an error.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("history: delete run: %w", err)
	}
	return nil
}

// Cleanup removes runs that started more than maxAge ago and returns how
// many were deleted.
func (s *SQLiteStore) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-maxAge))
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: cleanup runs: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history: rows affected: %w", err)
	}
	return deleted, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Timestamps are stored as fixed-width UTC text so they sort correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("history: parse time %q: %w", s, err)
	}
	return t, nil
}
