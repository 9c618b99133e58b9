// Package ledger reads and writes the error ledger: a human-diffable text
// file listing documents that failed extraction or commit, consumed by the
// retry pipeline.
//
// The on-disk format is a sequence of blocks separated by a blank line:
//
//	zip_path: <container>
//	pdf_filename: <document>
//	error: <message>
//
// Lines starting with '#' are comments. Blocks missing any of the three
// fields are dropped when parsing.
package ledger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

const (
	keyContainer = "zip_path: "
	keyDocument  = "pdf_filename: "
	keyError     = "error: "
)

// Entry is one failed document.
type Entry struct {
	Container string `json:"container"`
	Document  string `json:"document"`
	Error     string `json:"error"`
}

// Valid reports whether all three fields are present.
func (e Entry) Valid() bool {
	return e.Container != "" && e.Document != "" && e.Error != ""
}

// Encode writes entries to w in ledger format.
func Encode(w io.Writer, entries ...Entry) error {
	for _, e := range entries {
		_, err := fmt.Fprintf(w, "%s%s\n%s%s\n%s%s\n\n",
			keyContainer, flatten(e.Container),
			keyDocument, flatten(e.Document),
			keyError, flatten(e.Error),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// flatten keeps a value on a single line so the block structure survives.
func flatten(v string) string {
	v = strings.ReplaceAll(v, "\r\n", " ")
	v = strings.ReplaceAll(v, "\n", " ")
	return strings.TrimSpace(strings.ReplaceAll(v, "\r", " "))
}

// Parse reads all well-formed entries from r.
func Parse(r io.Reader) ([]Entry, error) {
	var (
		entries []Entry
		cur     Entry
		inBlock bool
	)

	flush := func() {
		if inBlock && cur.Valid() {
			entries = append(entries, cur)
		}
		cur = Entry{}
		inBlock = false
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}

		inBlock = true
		switch {
		case strings.HasPrefix(line, keyContainer):
			cur.Container = strings.TrimSpace(line[len(keyContainer):])
		case strings.HasPrefix(line, keyDocument):
			cur.Document = strings.TrimSpace(line[len(keyDocument):])
		case strings.HasPrefix(line, keyError):
			cur.Error = strings.TrimSpace(line[len(keyError):])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	flush()

	return entries, nil
}

// ReadFile parses the ledger at path.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	return Parse(f)
}

// WriteFile replaces path with a fresh ledger holding entries, preceded by
// the given comment lines.
func WriteFile(path string, entries []Entry, comments ...string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating ledger %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	for _, c := range comments {
		fmt.Fprintf(w, "# %s\n", flatten(c))
	}
	if len(comments) > 0 {
		w.WriteString("\n")
	}
	if err := Encode(w, entries...); err != nil {
		f.Close()
		return fmt.Errorf("writing ledger %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing ledger %s: %w", path, err)
	}
	return f.Close()
}

// Writer appends entries to a ledger file. Earlier content is preserved so
// a ledger accumulates across runs until the operator clears it.
type Writer struct {
	mu    sync.Mutex
	path  string
	f     *os.File
	count int
}

// OpenWriter opens (or creates) the ledger at path for appending.
func OpenWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	return &Writer{path: path, f: f}, nil
}

// Append writes entries and syncs them to disk.
func (w *Writer) Append(entries ...Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return fmt.Errorf("ledger %s is closed", w.path)
	}
	if err := Encode(w.f, entries...); err != nil {
		return fmt.Errorf("appending to ledger %s: %w", w.path, err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("syncing ledger %s: %w", w.path, err)
	}
	w.count += len(entries)
	return nil
}

// Count returns how many entries this writer has appended.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Path returns the ledger file path.
func (w *Writer) Path() string { return w.path }

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
