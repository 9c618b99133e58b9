package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/pdfvault/internal/db"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("run not found")

// Store reads and writes ingest_runs rows.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Start inserts a running row and returns its generated id.
func (s *Store) Start(ctx context.Context, kind Kind, root string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (id, kind, root, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, string(kind), root, string(StatusRunning), time.Now().UTC().Format(time.DateTime),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return id, nil
}

// Finish records the final counters. A non-nil runErr marks the run failed.
func (s *Store) Finish(ctx context.Context, id string, c Counters, runErr error) error {
	status := StatusCompleted
	var msg sql.NullString
	if runErr != nil {
		status = StatusFailed
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE ingest_runs
		SET status = ?, finished_at = ?, archives = ?, processed = ?,
		    committed = ?, failed = ?, error = ?
		WHERE id = ?`,
		string(status), time.Now().UTC().Format(time.DateTime),
		c.Archives, c.Processed, c.Committed, c.Failed, msg, id,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns a single run.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id)
	r, err := scanInto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading run %s: %w", id, err)
	}
	return r, nil
}

// List returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := selectRuns + " ORDER BY started_at DESC, rowid DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanInto(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

const selectRuns = `
	SELECT id, kind, root, status, started_at, finished_at,
	       archives, processed, committed, failed, error
	FROM ingest_runs`

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInto(sc scanner) (*Run, error) {
	var (
		r              Run
		kind, status   string
		started        string
		finished, errS sql.NullString
	)
	err := sc.Scan(&r.ID, &kind, &r.Root, &status, &started, &finished,
		&r.Archives, &r.Processed, &r.Committed, &r.Failed, &errS)
	if err != nil {
		return nil, err
	}

	r.Kind = Kind(kind)
	r.Status = Status(status)
	r.StartedAt = parseTime(started)
	if finished.Valid {
		r.FinishedAt = parseTime(finished.String)
	}
	r.Error = errS.String
	return &r, nil
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
