// Package catalog is the document store: a metadata relation keyed by
// (container, document) and an FTS5 search index sharing its row ids.
// Both are written in one transaction, so a document is never searchable
// without being listed, nor listed without its text having been indexed.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ziadkadry99/pdfvault/internal/db"
)

// Store provides insert and lookup operations over documents and their
// search index.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// InsertBatch applies records as one atomic unit. Records whose identity
// already exists are skipped silently. It returns the number of documents
// that were newly created. On any failure the whole batch is rolled back and
// a *BatchInsertError is returned.
func (s *Store) InsertBatch(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, newBatchError(records, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	inserted := 0
	for _, r := range records {
		created, err := insertRecord(ctx, tx, r)
		if err != nil {
			return 0, newBatchError(records, err)
		}
		if created {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, newBatchError(records, fmt.Errorf("commit: %w", err))
	}
	return inserted, nil
}

// InsertOne stores a single record with the same semantics as InsertBatch.
// It reports true when the document was created and false when it already
// existed.
func (s *Store) InsertOne(ctx context.Context, r Record) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	created, err := insertRecord(ctx, tx, r)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit %s/%s: %w", r.Container, r.Document, err)
	}
	return created, nil
}

// insertRecord writes the metadata row and, only if it is new, the search
// index entry with the same rowid.
func insertRecord(ctx context.Context, tx *sql.Tx, r Record) (bool, error) {
	if r.Container == "" || r.Document == "" {
		return false, fmt.Errorf("inserting document: container and document are required (got %q, %q)", r.Container, r.Document)
	}

	metadataJSON, err := mergeMetadata(r)
	if err != nil {
		return false, fmt.Errorf("marshalling metadata for %s/%s: %w", r.Container, r.Document, err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO documents (container_path, document_name, metadata)
		VALUES (?, ?, ?)`,
		r.Container, r.Document, metadataJSON,
	)
	if err != nil {
		return false, fmt.Errorf("inserting %s/%s: %w", r.Container, r.Document, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting %s/%s: %w", r.Container, r.Document, err)
	}
	if n == 0 {
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("reading row id for %s/%s: %w", r.Container, r.Document, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO search_index (rowid, content) VALUES (?, ?)`, id, r.Text,
	); err != nil {
		return false, fmt.Errorf("indexing %s/%s: %w", r.Container, r.Document, err)
	}
	return true, nil
}

// mergeMetadata copies r.Metadata and adds file_size / pages_count.
// The caller's map is never modified.
func mergeMetadata(r Record) (string, error) {
	m := make(map[string]any, len(r.Metadata)+2)
	for k, v := range r.Metadata {
		m[k] = v
	}
	if r.Size != nil {
		m[MetaFileSize] = *r.Size
	}
	if r.Pages != nil {
		m[MetaPagesCount] = *r.Pages
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Exists reports whether a document with the given identity is stored.
func (s *Store) Exists(ctx context.Context, container, document string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM documents
		WHERE container_path = ? AND document_name = ?
		LIMIT 1`, container, document).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking %s/%s: %w", container, document, err)
	}
	return true, nil
}

// LastInserted returns the most recently created document, or nil when the
// store is empty.
func (s *Store) LastInserted(ctx context.Context) (*Checkpoint, error) {
	var cp Checkpoint
	err := s.db.QueryRowContext(ctx, `
		SELECT id, container_path, document_name
		FROM documents
		ORDER BY id DESC
		LIMIT 1`).Scan(&cp.RowID, &cp.Container, &cp.Document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading last inserted document: %w", err)
	}
	return &cp, nil
}

// Get returns the document with the given row id.
func (s *Store) Get(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, container_path, document_name, metadata, created_at
		FROM documents WHERE id = ?`, id)

	var (
		d        Document
		metadata sql.NullString
		created  string
	)
	err := row.Scan(&d.ID, &d.Container, &d.Name, &metadata, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading document %d: %w", id, err)
	}

	d.Metadata = decodeMetadata(metadata)
	d.CreatedAt = parseTime(created)
	return &d, nil
}

// Stats returns document, index and container counts.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var (
		st   Stats
		last sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT container_path), MAX(created_at)
		FROM documents`).Scan(&st.Documents, &st.Containers, &last)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_index`).Scan(&st.Indexed); err != nil {
		return nil, fmt.Errorf("counting index entries: %w", err)
	}
	if last.Valid {
		st.LastInsertedAt = parseTime(last.String)
	}
	return &st, nil
}

func decodeMetadata(raw sql.NullString) map[string]any {
	m := make(map[string]any)
	if raw.Valid && raw.String != "" {
		_ = json.Unmarshal([]byte(raw.String), &m)
	}
	return m
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}
