// Package history records scan and cleanup runs in PostgreSQL. It is an
// optional collaborator: enabled only when MBOXDEDUP_PG_DSN is set, and a
// failure to record never fails the scan that produced the data.
package history

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

// Enabled reports whether a DSN is configured.
func Enabled() bool {
	return strings.TrimSpace(os.Getenv("MBOXDEDUP_PG_DSN")) != ""
}

// Open connects using MBOXDEDUP_PG_DSN and ensures the schema exists.
func Open(ctx context.Context) (*Store, error) {
	dsn := strings.TrimSpace(os.Getenv("MBOXDEDUP_PG_DSN"))
	if dsn == "" {
		return nil, fmt.Errorf("MBOXDEDUP_PG_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	store := &Store{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dd_scans (
  id uuid PRIMARY KEY,
  criteria text NOT NULL,
  folders int NOT NULL,
  total_messages int NOT NULL,
  duplicate_groups int NOT NULL,
  redundant_messages int NOT NULL,
  source_errors int NOT NULL,
  started_at timestamptz NOT NULL,
  finished_at timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS dd_scans_started_idx ON dd_scans (started_at DESC);
CREATE TABLE IF NOT EXISTS dd_cleanings (
  id uuid PRIMARY KEY,
  scan_id uuid REFERENCES dd_scans(id),
  keep_policy text NOT NULL,
  deleted int NOT NULL,
  errors int NOT NULL,
  finished_at timestamptz NOT NULL
);
`)
	return err
}

func (s *Store) Close() {
	s.pool.Close()
}

// ScanRun is one recorded scan invocation.
type ScanRun struct {
	ID           uuid.UUID
	Criteria     string
	Folders      int
	Messages     int
	Groups       int
	Redundant    int
	SourceErrors int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// CleanRun is one recorded cleanup invocation, tied to the scan it acted on.
type CleanRun struct {
	ID         uuid.UUID
	ScanID     uuid.UUID
	KeepPolicy string
	Deleted    int
	Errors     int
	FinishedAt time.Time
}

func (s *Store) RecordScan(ctx context.Context, run ScanRun) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO dd_scans (id, criteria, folders, total_messages, duplicate_groups, redundant_messages, source_errors, started_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, run.ID, run.Criteria, run.Folders, run.Messages, run.Groups, run.Redundant, run.SourceErrors, run.StartedAt, run.FinishedAt)
	return err
}

func (s *Store) RecordClean(ctx context.Context, run CleanRun) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO dd_cleanings (id, scan_id, keep_policy, deleted, errors, finished_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, run.ID, run.ScanID, run.KeepPolicy, run.Deleted, run.Errors, run.FinishedAt)
	return err
}

// RecentScans lists the latest runs, newest first.
func (s *Store) RecentScans(ctx context.Context, limit int) ([]ScanRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, criteria, folders, total_messages, duplicate_groups, redundant_messages, source_errors, started_at, finished_at
FROM dd_scans
ORDER BY started_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ScanRun
	for rows.Next() {
		var run ScanRun
		if err := rows.Scan(&run.ID, &run.Criteria, &run.Folders, &run.Messages, &run.Groups,
			&run.Redundant, &run.SourceErrors, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
