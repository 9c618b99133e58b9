package indexer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ziadkadry99/pdfvault/internal/catalog"
	"github.com/ziadkadry99/pdfvault/internal/metrics"
)

func TestPipelineFreshRun(t *testing.T) {
	store := setupStore(t)
	src := newFakeSource().
		add("/data/a.zip", "1.pdf", "2.pdf", "3.pdf").
		add("/data/b.zip", "1.pdf", "2.pdf", "3.pdf")
	ex := newFakeExtractor()
	errs := &memLedger{}

	p := NewPipeline(src, ex, store, errs, Options{BatchSize: 2, RootDir: "/data", Metrics: metrics.New()})
	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if res.Containers != 2 || res.Archives != 2 {
		t.Errorf("containers/archives = %d/%d, want 2/2", res.Containers, res.Archives)
	}
	if res.Processed != 6 || res.Committed != 6 {
		t.Errorf("processed/committed = %d/%d, want 6/6", res.Processed, res.Committed)
	}
	if res.BatchesCommitted != 3 {
		t.Errorf("BatchesCommitted = %d, want 3", res.BatchesCommitted)
	}
	if n := documentCount(t, store); n != 6 {
		t.Errorf("stored documents = %d, want 6", n)
	}
	if len(errs.entries) != 0 {
		t.Errorf("ledger entries = %d, want 0", len(errs.entries))
	}

	cp, err := store.LastInserted(context.Background())
	if err != nil {
		t.Fatalf("LastInserted() error: %v", err)
	}
	doc, err := store.Get(context.Background(), cp.RowID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if doc.Metadata[catalog.MetaRootDirectory] != "/data" {
		t.Errorf("root_directory = %v, want /data", doc.Metadata[catalog.MetaRootDirectory])
	}
	if pages, _ := doc.PagesCount(); pages != 2 {
		t.Errorf("pages_count = %d, want 2", pages)
	}
}

func TestPipelineFlushesPartialBatch(t *testing.T) {
	store := setupStore(t)
	src := newFakeSource().add("/data/a.zip", "1.pdf", "2.pdf", "3.pdf")

	res, err := NewPipeline(src, newFakeExtractor(), store, &memLedger{}, Options{BatchSize: 10}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.BatchesCommitted != 1 || res.Committed != 3 {
		t.Errorf("batches/committed = %d/%d, want 1/3", res.BatchesCommitted, res.Committed)
	}
}

func TestPipelineResumeAfterCheckpoint(t *testing.T) {
	store := setupStore(t)
	// A prior run completed through a.zip/2.pdf.
	seed(t, store, "/data/a.zip", "1.pdf", "/data/a.zip", "2.pdf")

	src := newFakeSource().
		add("/data/a.zip", "1.pdf", "2.pdf", "3.pdf").
		add("/data/b.zip", "1.pdf", "2.pdf")
	ex := newFakeExtractor()

	res, err := NewPipeline(src, ex, store, &memLedger{}, Options{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []string{"3.pdf", "1.pdf", "2.pdf"}
	if got := ex.called(); !equalStrings(got, want) {
		t.Errorf("extracted %v, want %v", got, want)
	}
	if res.Resumed != 2 {
		t.Errorf("Resumed = %d, want 2", res.Resumed)
	}
	if res.Committed != 3 {
		t.Errorf("Committed = %d, want 3", res.Committed)
	}
	if n := documentCount(t, store); n != 5 {
		t.Errorf("stored documents = %d, want 5", n)
	}

	// A second run over the unchanged tree does nothing.
	ex2 := newFakeExtractor()
	res, err = NewPipeline(src, ex2, store, &memLedger{}, Options{}).Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error: %v", err)
	}
	if len(ex2.called()) != 0 || res.Committed != 0 {
		t.Errorf("second run extracted %v and committed %d, want nothing", ex2.called(), res.Committed)
	}
}

func TestPipelinePositionalSkip(t *testing.T) {
	src := newFakeSource().
		add("/data/a.zip", "1.pdf", "2.pdf").
		add("/data/b.zip", "1.pdf", "2.pdf", "3.pdf")

	tests := []struct {
		name            string
		positional      bool
		wantSkipped     int
		wantArchives    int
		wantExtractions []string
	}{
		{"identity", false, 0, 2, []string{"2.pdf", "3.pdf"}},
		{"positional", true, 1, 1, []string{"2.pdf", "3.pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupStore(t)
			seed(t, store, "/data/a.zip", "1.pdf", "/data/a.zip", "2.pdf", "/data/b.zip", "1.pdf")

			ex := newFakeExtractor()
			p := NewPipeline(src, ex, store, &memLedger{}, Options{PositionalSkip: tt.positional})
			res, err := p.Run(context.Background())
			if err != nil {
				t.Fatalf("Run() error: %v", err)
			}
			if res.ArchivesSkipped != tt.wantSkipped {
				t.Errorf("ArchivesSkipped = %d, want %d", res.ArchivesSkipped, tt.wantSkipped)
			}
			if res.Archives != tt.wantArchives {
				t.Errorf("Archives = %d, want %d", res.Archives, tt.wantArchives)
			}
			if res.Resumed != 3 {
				t.Errorf("Resumed = %d, want 3", res.Resumed)
			}
			if got := ex.called(); !equalStrings(got, tt.wantExtractions) {
				t.Errorf("extracted %v, want %v", got, tt.wantExtractions)
			}
		})
	}
}

func TestPipelinePositionalSkipStopsAtCheckpointContainer(t *testing.T) {
	store := setupStore(t)
	// Row ids run ahead of positions: seven rows from an archive that is
	// no longer in the tree precede the checkpoint at b.zip/1.pdf.
	seed(t, store,
		"a.zip", "1.pdf", "a.zip", "2.pdf",
		"old.zip", "1.pdf", "old.zip", "2.pdf", "old.zip", "3.pdf", "old.zip", "4.pdf",
		"old.zip", "5.pdf", "old.zip", "6.pdf", "old.zip", "7.pdf",
		"b.zip", "1.pdf")

	src := newFakeSource().
		add("a.zip", "1.pdf", "2.pdf").
		add("b.zip", "1.pdf", "2.pdf").
		add("c.zip", "c1.pdf", "c2.pdf", "c3.pdf", "c4.pdf", "c5.pdf", "c6.pdf")
	ex := newFakeExtractor()

	res, err := NewPipeline(src, ex, store, &memLedger{}, Options{PositionalSkip: true}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []string{"2.pdf", "c1.pdf", "c2.pdf", "c3.pdf", "c4.pdf", "c5.pdf", "c6.pdf"}
	if got := ex.called(); !equalStrings(got, want) {
		t.Errorf("extracted %v, want %v", got, want)
	}
	if res.ArchivesSkipped != 1 || res.Resumed != 3 {
		t.Errorf("skipped/resumed = %d/%d, want 1/3", res.ArchivesSkipped, res.Resumed)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "checkpoint container") {
		t.Errorf("Warnings = %v, want the checkpoint container warning", res.Warnings)
	}
	if res.Committed != 7 {
		t.Errorf("Committed = %d, want 7", res.Committed)
	}
}

func TestPipelineRootMoved(t *testing.T) {
	store := setupStore(t)
	docs := []string{"1.pdf", "2.pdf"}

	first := newFakeSource().under("/mnt/old").add("a.zip", docs...)
	if _, err := NewPipeline(first, newFakeExtractor(), store, &memLedger{}, Options{}).Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	cp, err := store.LastInserted(context.Background())
	if err != nil {
		t.Fatalf("LastInserted() error: %v", err)
	}
	if cp.Container != "a.zip" {
		t.Errorf("stored container = %q, want a.zip", cp.Container)
	}

	// The same tree mounted elsewhere resumes cleanly, with or without
	// the existence check.
	for _, skipExisting := range []bool{false, true} {
		moved := newFakeSource().under("/mnt/new").add("a.zip", docs...)
		ex := newFakeExtractor()
		res, err := NewPipeline(moved, ex, store, &memLedger{}, Options{SkipExisting: skipExisting}).Run(context.Background())
		if err != nil {
			t.Fatalf("Run(skipExisting=%v) error: %v", skipExisting, err)
		}
		if len(ex.called()) != 0 || res.Committed != 0 {
			t.Errorf("skipExisting=%v: extracted %v and committed %d, want nothing", skipExisting, ex.called(), res.Committed)
		}
		if len(res.Warnings) != 0 {
			t.Errorf("skipExisting=%v: Warnings = %v, want none", skipExisting, res.Warnings)
		}
	}
	if n := documentCount(t, store); n != 2 {
		t.Errorf("stored documents = %d, want 2", n)
	}
}

func TestPipelineLedgerKeepsDiskPath(t *testing.T) {
	store := setupStore(t)
	src := newFakeSource().under("/mnt/data").add("a.zip", "1.pdf", "bad.pdf").broken("b.zip")
	ex := newFakeExtractor()
	ex.fail["bad.pdf"] = true
	errs := &memLedger{}

	if _, err := NewPipeline(src, ex, store, errs, Options{}).Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(errs.entries) != 2 {
		t.Fatalf("ledger = %+v, want 2 entries", errs.entries)
	}
	if errs.entries[0].Container != "/mnt/data/a.zip" {
		t.Errorf("ledger container = %q, want /mnt/data/a.zip", errs.entries[0].Container)
	}
	if errs.entries[1].Container != "/mnt/data/b.zip" {
		t.Errorf("ledger container = %q, want /mnt/data/b.zip", errs.entries[1].Container)
	}
}

func TestPipelineExtractionFailureGoesToLedger(t *testing.T) {
	store := setupStore(t)
	src := newFakeSource().add("/data/a.zip", "good.pdf", "bad.pdf", "also-good.pdf")
	ex := newFakeExtractor()
	ex.fail["bad.pdf"] = true
	errs := &memLedger{}

	res, err := NewPipeline(src, ex, store, errs, Options{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Failed != 1 || res.Committed != 2 {
		t.Errorf("failed/committed = %d/%d, want 1/2", res.Failed, res.Committed)
	}
	if len(errs.entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(errs.entries))
	}
	e := errs.entries[0]
	if e.Container != "/data/a.zip" || e.Document != "bad.pdf" {
		t.Errorf("ledger entry = (%q, %q), want (/data/a.zip, bad.pdf)", e.Container, e.Document)
	}
	if !strings.Contains(e.Error, "xref") {
		t.Errorf("ledger error = %q, want the extraction error", e.Error)
	}
}

func TestPipelineContainerOpenError(t *testing.T) {
	store := setupStore(t)
	src := newFakeSource().
		broken("/data/corrupt.zip").
		add("/data/ok.zip", "1.pdf")
	errs := &memLedger{}

	res, err := NewPipeline(src, newFakeExtractor(), store, errs, Options{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.ArchivesFailed != 1 || res.Archives != 1 {
		t.Errorf("archives failed/ok = %d/%d, want 1/1", res.ArchivesFailed, res.Archives)
	}
	if res.Committed != 1 {
		t.Errorf("Committed = %d, want 1", res.Committed)
	}
	if len(errs.entries) != 1 || errs.entries[0].Document != "" || errs.entries[0].Container != "/data/corrupt.zip" {
		t.Errorf("ledger = %+v, want one container-level entry", errs.entries)
	}
}

func TestPipelineBatchFailureContinues(t *testing.T) {
	store := &recordingCatalog{Store: setupStore(t), failOn: map[int]bool{1: true}}
	src := newFakeSource().add("/data/a.zip", "1.pdf", "2.pdf", "3.pdf", "4.pdf")
	errs := &memLedger{}

	res, err := NewPipeline(src, newFakeExtractor(), store, errs, Options{BatchSize: 2}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.BatchesFailed != 1 || res.BatchesCommitted != 1 {
		t.Errorf("batches failed/committed = %d/%d, want 1/1", res.BatchesFailed, res.BatchesCommitted)
	}
	if res.Committed != 2 {
		t.Errorf("Committed = %d, want 2", res.Committed)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Warnings = %v, want one", res.Warnings)
	}

	var names []string
	for _, e := range errs.entries {
		names = append(names, e.Document)
		if e.Error != "database is locked" {
			t.Errorf("ledger error = %q, want the commit error", e.Error)
		}
	}
	if !equalStrings(names, []string{"1.pdf", "2.pdf"}) {
		t.Errorf("ledger documents = %v, want [1.pdf 2.pdf]", names)
	}
}

func TestPipelineMissingCheckpointContainer(t *testing.T) {
	store := setupStore(t)
	seed(t, store, "/old/gone.zip", "x.pdf")

	src := newFakeSource().add("/data/a.zip", "1.pdf", "2.pdf")
	ex := newFakeExtractor()

	res, err := NewPipeline(src, ex, store, &memLedger{}, Options{SkipExisting: true}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Warnings = %v, want one", res.Warnings)
	}
	if res.Committed != 2 {
		t.Errorf("Committed = %d, want 2", res.Committed)
	}
}

func TestPipelineSkipExisting(t *testing.T) {
	src := newFakeSource().
		add("/data/a.zip", "1.pdf", "2.pdf").
		add("/data/b.zip", "1.pdf", "2.pdf")

	// The checkpoint points outside the tree, so every document is
	// visited and Exists avoids re-extracting a/2.pdf.
	stray := setupStore(t)
	seed(t, stray, "/data/a.zip", "2.pdf", "/old/z.zip", "9.pdf")
	ex := newFakeExtractor()
	res, err := NewPipeline(src, ex, stray, &memLedger{}, Options{SkipExisting: true}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Existing != 1 {
		t.Errorf("Existing = %d, want 1", res.Existing)
	}
	if got := sorted(ex.called()); !equalStrings(got, []string{"1.pdf", "1.pdf", "2.pdf"}) {
		t.Errorf("extracted %v, want [1.pdf 1.pdf 2.pdf]", got)
	}

	// With the checkpoint found, documents before it are never looked at.
	store := setupStore(t)
	seed(t, store, "/data/a.zip", "2.pdf", "/data/b.zip", "1.pdf")
	ex = newFakeExtractor()
	res, err = NewPipeline(src, ex, store, &memLedger{}, Options{SkipExisting: true}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Resumed != 3 {
		t.Errorf("Resumed = %d, want 3", res.Resumed)
	}
	if got := ex.called(); !equalStrings(got, []string{"2.pdf"}) {
		t.Errorf("extracted %v, want [2.pdf]", got)
	}
}

func TestPipelineSanitizesText(t *testing.T) {
	store := &recordingCatalog{Store: setupStore(t)}
	src := newFakeSource().add("/data/a.zip", "p.pdf")
	ex := newFakeExtractor()
	ex.text["p.pdf"] = "alpha\xed\xa0\x80  \n beta " + strings.Repeat("x", 50)

	_, err := NewPipeline(src, ex, store, &memLedger{}, Options{MaxChars: 11}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(store.batches) != 1 || len(store.batches[0]) != 1 {
		t.Fatalf("batches = %v, want one record", store.batches)
	}
	if got, want := store.batches[0][0].Text, "alpha\uFFFD beta"; got != want {
		t.Errorf("stored text = %q, want %q", got, want)
	}
}

func TestPipelineCancelDropsPartialBatch(t *testing.T) {
	store := setupStore(t)
	src := newFakeSource().add("/data/a.zip", "1.pdf", "2.pdf", "3.pdf")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ex := newFakeExtractor()
	ex.onCall = func(name string) {
		if name == "2.pdf" {
			cancel()
		}
	}

	_, err := NewPipeline(src, ex, store, &memLedger{}, Options{BatchSize: 10}).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if n := documentCount(t, store); n != 0 {
		t.Errorf("stored documents = %d, want 0", n)
	}
}

func TestPipelineLedgerWriteFailureAborts(t *testing.T) {
	store := setupStore(t)
	src := newFakeSource().add("/data/a.zip", "bad.pdf")
	ex := newFakeExtractor()
	ex.fail["bad.pdf"] = true

	_, err := NewPipeline(src, ex, store, &memLedger{err: errors.New("disk full")}, Options{}).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Run() error = %v, want ledger failure", err)
	}
}

func TestPipelineProgress(t *testing.T) {
	store := setupStore(t)
	src := newFakeSource().add("a.zip", "1.pdf").add("b.zip", "1.pdf")

	var seen []string
	p := NewPipeline(src, newFakeExtractor(), store, &memLedger{}, Options{})
	p.SetProgressFunc(func(processed, total int, current string) {
		if total != 2 {
			t.Errorf("progress total = %d, want 2", total)
		}
		seen = append(seen, current)
	})
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !equalStrings(seen, []string{"a.zip", "b.zip"}) {
		t.Errorf("progress = %v, want [a.zip b.zip]", seen)
	}
}
