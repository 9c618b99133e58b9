package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/ziadkadry99/pdfvault/internal/catalog"
	"github.com/ziadkadry99/pdfvault/internal/db"
	"github.com/ziadkadry99/pdfvault/internal/extract"
	"github.com/ziadkadry99/pdfvault/internal/ledger"
	"github.com/ziadkadry99/pdfvault/internal/source"
)

// fakeSource serves in-memory containers in the order they were added.
// Containers are keyed by their path relative to root.
type fakeSource struct {
	root     string
	order    []string
	docs     map[string][]string // container -> document names
	openErrs map[string]error
}

func newFakeSource() *fakeSource {
	return &fakeSource{docs: make(map[string][]string), openErrs: make(map[string]error)}
}

// under mounts the containers at root, so Path and RelPath differ.
func (s *fakeSource) under(root string) *fakeSource {
	s.root = root
	return s
}

func (s *fakeSource) add(container string, docs ...string) *fakeSource {
	s.order = append(s.order, container)
	s.docs[container] = docs
	return s
}

func (s *fakeSource) broken(container string) *fakeSource {
	s.order = append(s.order, container)
	s.openErrs[container] = &source.OpenError{Container: container, Err: errors.New("zip: not a valid zip file")}
	return s
}

func (s *fakeSource) Containers(ctx context.Context) ([]source.Container, error) {
	out := make([]source.Container, len(s.order))
	for i, c := range s.order {
		out[i] = source.Container{Path: c, RelPath: c}
		if s.root != "" {
			out[i].Path = s.root + "/" + c
		}
	}
	return out, nil
}

func (s *fakeSource) Open(path string) (source.Archive, error) {
	if s.root != "" {
		rel, ok := strings.CutPrefix(path, s.root+"/")
		if !ok {
			return nil, &source.OpenError{Container: path, Err: fmt.Errorf("open %s: %w", path, errNotExist)}
		}
		path = rel
	}
	if err, ok := s.openErrs[path]; ok {
		return nil, err
	}
	docs, ok := s.docs[path]
	if !ok {
		return nil, &source.OpenError{Container: path, Err: fmt.Errorf("open %s: %w", path, errNotExist)}
	}
	refs := make([]source.DocumentRef, len(docs))
	for i, d := range docs {
		refs[i] = source.DocumentRef{Name: d, DisplayName: source.DisplayName(d), Size: int64(len(d))}
	}
	return &fakeArchive{docs: refs}, nil
}

var errNotExist = errors.New("file does not exist")

type fakeArchive struct {
	docs []source.DocumentRef
}

func (a *fakeArchive) Documents() []source.DocumentRef { return a.docs }

func (a *fakeArchive) Open(d source.DocumentRef) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("text of " + d.DisplayName)), nil
}

func (a *fakeArchive) Close() error { return nil }

// fakeExtractor returns the entry bytes as text and records every call.
type fakeExtractor struct {
	mu     sync.Mutex
	fail   map[string]bool
	text   map[string]string
	calls  []string
	onCall func(name string)
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{fail: make(map[string]bool), text: make(map[string]string)}
}

func (e *fakeExtractor) Extract(ctx context.Context, name string, data []byte) (*extract.Result, error) {
	e.mu.Lock()
	e.calls = append(e.calls, name)
	fail := e.fail[name]
	text, ok := e.text[name]
	onCall := e.onCall
	e.mu.Unlock()

	if onCall != nil {
		onCall(name)
	}
	if fail {
		return nil, &extract.ExtractionError{Document: name, Err: errors.New("EOF while reading xref")}
	}
	if !ok {
		text = string(data)
	}
	return &extract.Result{Text: text, Size: int64(len(data)), Pages: 2}, nil
}

func (e *fakeExtractor) called() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// memLedger collects entries in memory.
type memLedger struct {
	entries []ledger.Entry
	err     error
}

func (l *memLedger) Append(entries ...ledger.Entry) error {
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, entries...)
	return nil
}

// recordingCatalog wraps a store, captures committed batches and can fail
// selected InsertBatch calls.
type recordingCatalog struct {
	*catalog.Store
	batches [][]catalog.Record
	failOn  map[int]bool // 1-based InsertBatch call numbers
	calls   int
}

func (c *recordingCatalog) InsertBatch(ctx context.Context, records []catalog.Record) (int, error) {
	c.calls++
	if c.failOn[c.calls] {
		return 0, &catalog.BatchInsertError{Size: len(records), Err: errors.New("database is locked")}
	}
	c.batches = append(c.batches, records)
	return c.Store.InsertBatch(ctx, records)
}

func setupStore(t *testing.T) *catalog.Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return catalog.NewStore(database)
}

func seed(t *testing.T, s *catalog.Store, pairs ...string) {
	t.Helper()
	var records []catalog.Record
	for i := 0; i+1 < len(pairs); i += 2 {
		records = append(records, catalog.Record{Container: pairs[i], Document: pairs[i+1], Text: "seeded"})
	}
	if _, err := s.InsertBatch(context.Background(), records); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func documentCount(t *testing.T, s *catalog.Store) int64 {
	t.Helper()
	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if !st.Consistent() {
		t.Errorf("store inconsistent: %d documents, %d indexed", st.Documents, st.Indexed)
	}
	return st.Documents
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sorted(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}
