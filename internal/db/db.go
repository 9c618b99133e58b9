package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB with pdfvault-specific helpers.
type DB struct {
	*sql.DB
	path     string
	readOnly bool
}

// StoreInitError reports that the store could not be opened or that an
// existing store has an incompatible shape. It is always fatal for a run.
type StoreInitError struct {
	Path string
	Err  error
}

func (e *StoreInitError) Error() string {
	return fmt.Sprintf("initializing store %s: %v", e.Path, e.Err)
}

func (e *StoreInitError) Unwrap() error { return e.Err }

// ErrIncompatibleSchema is wrapped by StoreInitError when an existing table
// lacks columns the current schema needs.
var ErrIncompatibleSchema = errors.New("incompatible schema")

// writePragmas keep the writer durable: WAL with full sync, so a crash can
// only lose the batch that was in flight.
const writePragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=foreign_keys(1)"

// readPragmas are applied to search sessions only. They trade memory for
// speed and forbid writes; they never touch the writer's durability.
var readPragmas = []string{
	"PRAGMA query_only = 1",
	"PRAGMA cache_size = -262144",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA mmap_size = 1073741824",
}

// Open creates or opens the SQLite store at path for writing and runs the
// schema migration.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &StoreInitError{Path: path, Err: fmt.Errorf("creating database directory: %w", err)}
	}

	sqlDB, err := sql.Open("sqlite", path+writePragmas)
	if err != nil {
		return nil, &StoreInitError{Path: path, Err: fmt.Errorf("opening database: %w", err)}
	}
	// One writer; the pipeline is sequential.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, &StoreInitError{Path: path, Err: fmt.Errorf("pinging database: %w", err)}
	}

	d := &DB{DB: sqlDB, path: path}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, &StoreInitError{Path: path, Err: err}
	}

	return d, nil
}

// OpenReadOnly opens an existing store for searching. The schema is not
// migrated; a missing store is an error.
func OpenReadOnly(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &StoreInitError{Path: path, Err: err}
	}

	sqlDB, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &StoreInitError{Path: path, Err: fmt.Errorf("opening database: %w", err)}
	}
	// Pragmas are per connection, so keep a single one.
	sqlDB.SetMaxOpenConns(1)

	for _, p := range readPragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, &StoreInitError{Path: path, Err: fmt.Errorf("%s: %w", p, err)}
		}
	}

	d := &DB{DB: sqlDB, path: path, readOnly: true}
	if err := d.checkShape(context.Background()); err != nil {
		sqlDB.Close()
		return nil, &StoreInitError{Path: path, Err: err}
	}
	return d, nil
}

// OpenMemory creates an in-memory SQLite database (useful for testing).
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)

	d := &DB{DB: sqlDB, path: ":memory:"}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// ReadOnly reports whether the handle was opened with OpenReadOnly.
func (d *DB) ReadOnly() bool { return d.readOnly }

// migrate checks an existing store's shape, then runs all schema statements.
// It is safe on a populated store.
func (d *DB) migrate() error {
	if err := d.checkShape(context.Background()); err != nil {
		return err
	}
	if _, err := d.Exec(schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// requiredColumns lists, per table, the columns the code reads and writes.
var requiredColumns = map[string][]string{
	"documents":   {"id", "container_path", "document_name", "metadata", "created_at"},
	"ingest_runs": {"id", "kind", "root", "status", "started_at"},
}

// checkShape fails when a table already exists without the columns the
// current schema needs. Missing tables are fine; migrate creates them.
func (d *DB) checkShape(ctx context.Context) error {
	for table, cols := range requiredColumns {
		rows, err := d.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
		if err != nil {
			return fmt.Errorf("inspecting %s: %w", table, err)
		}
		have := make(map[string]bool)
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return fmt.Errorf("inspecting %s: %w", table, err)
			}
			have[name] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("inspecting %s: %w", table, err)
		}

		if len(have) == 0 {
			continue
		}
		var missing []string
		for _, c := range cols {
			if !have[c] {
				missing = append(missing, c)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: table %s lacks %s", ErrIncompatibleSchema, table, strings.Join(missing, ", "))
		}
	}
	return nil
}

// schema contains the full database schema. New tables are added here.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    container_path TEXT NOT NULL,
    document_name TEXT NOT NULL,
    metadata TEXT,
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    UNIQUE(container_path, document_name)
);

CREATE INDEX IF NOT EXISTS idx_documents_identity ON documents(container_path, document_name);

CREATE VIRTUAL TABLE IF NOT EXISTS search_index USING fts5(
    content,
    tokenize='porter unicode61 remove_diacritics 1',
    prefix='2 3 4'
);

CREATE TABLE IF NOT EXISTS ingest_runs (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL CHECK(kind IN ('ingest','retry')),
    root TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'running' CHECK(status IN ('running','completed','failed')),
    started_at DATETIME NOT NULL DEFAULT (datetime('now')),
    finished_at DATETIME,
    archives INTEGER NOT NULL DEFAULT 0,
    processed INTEGER NOT NULL DEFAULT 0,
    committed INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_started ON ingest_runs(started_at);
`
