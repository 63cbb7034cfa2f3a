// Package store records finished index runs in PostgreSQL so operators can
// see what was indexed, with which settings, and how it went.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/postgres"
)

// Schema creates the run ledger table.
const Schema = `CREATE TABLE IF NOT EXISTS index_runs (
    id          BIGSERIAL PRIMARY KEY,
    job_id      TEXT NOT NULL DEFAULT '',
    source      TEXT NOT NULL,
    workers     INTEGER NOT NULL,
    lines       INTEGER NOT NULL DEFAULT 0,
    words       INTEGER NOT NULL DEFAULT 0,
    occurrences INTEGER NOT NULL DEFAULT 0,
    skipped     INTEGER NOT NULL DEFAULT 0,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    status      TEXT NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Run is one row of the ledger.
type Run struct {
	ID          int64     `json:"id"`
	JobID       string    `json:"job_id,omitempty"`
	Source      string    `json:"source"`
	Workers     int       `json:"workers"`
	Lines       int       `json:"lines"`
	Words       int       `json:"words"`
	Occurrences int       `json:"occurrences"`
	Skipped     int       `json:"skipped"`
	DurationMS  int64     `json:"duration_ms"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists runs in the index_runs table.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New creates a run store.
func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "run-store"),
	}
}

// EnsureSchema creates the ledger table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating index_runs table: %w", err)
	}
	return nil
}

// SaveRun inserts run and fills in its ID and CreatedAt.
func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	err := s.db.DB.QueryRowContext(ctx,
		`INSERT INTO index_runs
		    (job_id, source, workers, lines, words, occurrences, skipped, duration_ms, status, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		run.JobID, run.Source, run.Workers, run.Lines, run.Words, run.Occurrences,
		run.Skipped, run.DurationMS, run.Status, run.Error, run.CreatedAt,
	).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("saving index run: %w", err)
	}
	s.logger.Debug("index run saved", "id", run.ID, "status", run.Status, "source", run.Source)
	return nil
}

// ListRuns returns the last limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, job_id, source, workers, lines, words, occurrences, skipped,
		        duration_ms, status, error, created_at
		   FROM index_runs
		  ORDER BY created_at DESC, id DESC
		  LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing index runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.JobID, &r.Source, &r.Workers, &r.Lines, &r.Words,
			&r.Occurrences, &r.Skipped, &r.DurationMS, &r.Status, &r.Error, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning index run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
