// internal/runstore/store.go

// Package runstore persists finalized run results in a SQLite database so
// past runs can be listed and replayed after the process exits. The full
// result is stored as a JSON document alongside a few indexed columns for
// querying.
package runstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"

	"github.com/mjbeckett/stepflow/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id            TEXT PRIMARY KEY,
	status            TEXT NOT NULL,
	goal              TEXT,
	project_id        TEXT,
	scenario_id       TEXT,
	start_time        TEXT,
	end_time          TEXT,
	total_duration_ms INTEGER,
	document          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

// Store is a SQLite-backed run result store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath and ensures the
// schema exists.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	// WAL mode for concurrent readers while a run is being written.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveResult upserts a finalized result. Re-saving the same run id replaces
// the stored document.
func (s *Store) SaveResult(ctx context.Context, result *schemas.RunResult) error {
	doc, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal run result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, status, goal, project_id, scenario_id, start_time, end_time, total_duration_ms, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			goal = excluded.goal,
			project_id = excluded.project_id,
			scenario_id = excluded.scenario_id,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			total_duration_ms = excluded.total_duration_ms,
			document = excluded.document`,
		result.RunID, result.Status, result.Goal, result.ProjectID, result.ScenarioID,
		result.StartTime, result.EndTime, result.TotalDurationMs, string(doc))
	if err != nil {
		return fmt.Errorf("failed to save run result: %w", err)
	}
	return nil
}

// LoadResult retrieves a run by id. A missing run returns (nil, nil).
func (s *Store) LoadResult(ctx context.Context, runID string) (*schemas.RunResult, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		"SELECT document FROM runs WHERE run_id = ?", runID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	var result schemas.RunResult
	if err := json.Unmarshal([]byte(doc), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s: %w", runID, err)
	}
	return &result, nil
}

// RunSummary is one row of a run listing.
type RunSummary struct {
	RunID           string `json:"run_id"`
	Status          string `json:"status"`
	Goal            string `json:"goal,omitempty"`
	ProjectID       string `json:"project_id,omitempty"`
	ScenarioID      string `json:"scenario_id,omitempty"`
	StartTime       string `json:"start_time,omitempty"`
	TotalDurationMs int64  `json:"total_duration_ms"`
}

// ListRuns returns summaries newest-first, optionally filtered by project.
// limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, projectID string, limit int) ([]RunSummary, error) {
	query := "SELECT run_id, status, goal, project_id, scenario_id, start_time, total_duration_ms FROM runs"
	var args []interface{}
	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY start_time DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Status, &r.Goal, &r.ProjectID, &r.ScenarioID, &r.StartTime, &r.TotalDurationMs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
