// Package history persists finished runs and their output in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zjrosen/omniedit/internal/log"
	"github.com/zjrosen/omniedit/internal/runner"
)

// MemoryPath opens a private in-memory store.
const MemoryPath = ":memory:"

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	source_name  TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	started_at   INTEGER NOT NULL,
	finished_at  INTEGER NOT NULL,
	output_bytes INTEGER NOT NULL DEFAULT 0,
	transcript   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at DESC);
`

// Record is one stored run.
type Record struct {
	RunID       string
	SourceName  string
	Status      runner.Status
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
	OutputBytes int64
	Transcript  string
}

// NewRecord builds a record from a supervisor outcome and the text the
// display received.
func NewRecord(outcome runner.Outcome, sourceName, transcript string) Record {
	rec := Record{
		RunID:       outcome.RunID,
		SourceName:  sourceName,
		Status:      outcome.Status,
		StartedAt:   outcome.StartedAt,
		FinishedAt:  outcome.FinishedAt,
		OutputBytes: outcome.OutputBytes,
		Transcript:  transcript,
	}
	if outcome.Err != nil {
		rec.Error = outcome.Err.Error()
	}
	return rec
}

// Store is a run history database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn := MemoryPath
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
		dsn = "file:" + path
	}

	log.Debug(log.CatHistory, "Opening database", "path", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		log.ErrorErr(log.CatHistory, "Failed to open database", err, "path", path)
		return nil, err
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying history schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Add stores rec, replacing an earlier record with the same run ID.
func (s *Store) Add(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(run_id, source_name, status, error, started_at, finished_at, output_bytes, transcript)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.SourceName, string(rec.Status), rec.Error,
		rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli(),
		rec.OutputBytes, rec.Transcript,
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", rec.RunID, err)
	}
	log.Debug(log.CatHistory, "recorded run", "run_id", rec.RunID, "status", string(rec.Status))
	return nil
}

// Recent returns up to limit runs, newest first, without transcripts.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, source_name, status, error, started_at, finished_at, output_bytes, ''
		FROM runs
		ORDER BY started_at DESC, run_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns a run with its transcript.
func (s *Store) Get(ctx context.Context, runID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, source_name, status, error, started_at, finished_at, output_bytes, transcript
		FROM runs
		WHERE run_id = ?`, runID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%s: %w", runID, ErrNotFound)
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec               Record
		status            string
		started, finished int64
	)
	if err := sc.Scan(&rec.RunID, &rec.SourceName, &status, &rec.Error,
		&started, &finished, &rec.OutputBytes, &rec.Transcript); err != nil {
		return Record{}, err
	}
	rec.Status = runner.Status(status)
	rec.StartedAt = time.UnixMilli(started)
	rec.FinishedAt = time.UnixMilli(finished)
	return rec, nil
}
