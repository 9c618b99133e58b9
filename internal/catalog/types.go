package catalog

import (
	"errors"
	"fmt"
	"time"
)

// Metadata keys written by the pipelines.
const (
	MetaFileSize      = "file_size"
	MetaPagesCount    = "pages_count"
	MetaRootDirectory = "root_directory"
	MetaRetry         = "retry"
)

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = errors.New("document not found")

// ErrInvalidQuery wraps full-text query syntax errors reported by SQLite.
var ErrInvalidQuery = errors.New("invalid search query")

// Record is one extracted document on its way into the store.
// Size and Pages, when set, are merged into Metadata before the row is written.
type Record struct {
	Container string
	Document  string
	Text      string
	Metadata  map[string]any
	Size      *int64
	Pages     *int
}

// Document is a stored DocumentRecord.
type Document struct {
	ID        int64          `json:"id"`
	Container string         `json:"container"`
	Name      string         `json:"document"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

// FileSize returns the file_size metadata value.
func (d Document) FileSize() (int64, bool) {
	return metaInt(d.Metadata, MetaFileSize)
}

// PagesCount returns the pages_count metadata value.
func (d Document) PagesCount() (int64, bool) {
	return metaInt(d.Metadata, MetaPagesCount)
}

func metaInt(m map[string]any, key string) (int64, bool) {
	switch v := m[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// Checkpoint identifies the most recently inserted document.
type Checkpoint struct {
	RowID     int64
	Container string
	Document  string
}

// Stats summarises the store contents.
type Stats struct {
	Documents      int64     `json:"documents"`
	Indexed        int64     `json:"indexed"`
	Containers     int64     `json:"containers"`
	LastInsertedAt time.Time `json:"last_inserted_at,omitempty"`
}

// Consistent reports whether every document has exactly one index entry.
func (s Stats) Consistent() bool { return s.Documents == s.Indexed }

// BatchInsertError reports that a whole batch was rolled back.
type BatchInsertError struct {
	Size  int
	First string
	Last  string
	Err   error
}

func newBatchError(records []Record, err error) *BatchInsertError {
	e := &BatchInsertError{Size: len(records), Err: err}
	if len(records) > 0 {
		e.First = records[0].Container + "/" + records[0].Document
		e.Last = records[len(records)-1].Container + "/" + records[len(records)-1].Document
	}
	return e
}

func (e *BatchInsertError) Error() string {
	return fmt.Sprintf("committing batch of %d documents (%s .. %s): %v", e.Size, e.First, e.Last, e.Err)
}

func (e *BatchInsertError) Unwrap() error { return e.Err }
