package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ziadkadry99/pdfvault/internal/catalog"
	"github.com/ziadkadry99/pdfvault/internal/extract"
	"github.com/ziadkadry99/pdfvault/internal/ledger"
	"github.com/ziadkadry99/pdfvault/internal/logging"
	"github.com/ziadkadry99/pdfvault/internal/metrics"
	"github.com/ziadkadry99/pdfvault/internal/source"
	"github.com/ziadkadry99/pdfvault/internal/textclean"
)

// Defaults for Options.
const (
	DefaultBatchSize     = 10
	DefaultMaxChars      = 10000
	DefaultProgressEvery = 100
)

// Options configure a Pipeline.
type Options struct {
	BatchSize      int
	MaxChars       int
	MaxBytes       int64
	PositionalSkip bool // legacy whole-container skip while resuming
	SkipExisting   bool // check the store before extracting
	RootDir        string
	ProgressEvery  int
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxChars <= 0 {
		o.MaxChars = DefaultMaxChars
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = DefaultProgressEvery
	}
	o.Logger = logging.OrDiscard(o.Logger)
	return o
}

// Pipeline orchestrates ingestion: walk -> open -> extract -> clean -> batch -> commit.
type Pipeline struct {
	src        source.Source
	extractor  extract.Extractor
	store      Catalog
	ledger     Ledger
	opts       Options
	onProgress ProgressFunc
}

// NewPipeline creates a new Pipeline.
func NewPipeline(src source.Source, extractor extract.Extractor, store Catalog, errs Ledger, opts Options) *Pipeline {
	return &Pipeline{
		src:       src,
		extractor: extractor,
		store:     store,
		ledger:    errs,
		opts:      opts.withDefaults(),
	}
}

// SetProgressFunc sets the progress callback.
func (p *Pipeline) SetProgressFunc(fn ProgressFunc) {
	p.onProgress = fn
}

// run carries the per-run state threaded through the pipeline.
type run struct {
	cursor Cursor
	batch  []queued
	result *Result
}

// queued is a record waiting for the next commit. path is where its
// container lives on disk, for the ledger.
type queued struct {
	path string
	rec  catalog.Record
}

// Run ingests every container the source yields, resuming after the last
// stored document. Per-document, per-container and per-batch failures are
// recorded and skipped; anything else aborts the run. A cancelled run does
// not commit its partial batch.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	r := &run{result: &Result{}}
	log := p.opts.Logger

	cursor, err := LoadCursor(ctx, p.store)
	if err != nil {
		return nil, err
	}
	r.cursor = cursor
	if cursor.Pending() {
		log.Info("resuming after checkpoint",
			"row_id", cursor.RowID, "container", cursor.Container, "document", cursor.Document)
	}

	containers, err := p.src.Containers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}
	r.result.Containers = len(containers)

	if r.cursor.Pending() && !hasContainer(containers, r.cursor.Container) {
		p.warn(r, "checkpoint container not found; processing every document",
			"container", r.cursor.Container)
		r.cursor.Clear()
	}

	for i, c := range containers {
		if err := ctx.Err(); err != nil {
			return p.finish(r, start), err
		}
		if err := p.processContainer(ctx, r, c); err != nil {
			return p.finish(r, start), err
		}
		if p.onProgress != nil {
			p.onProgress(i+1, len(containers), c.RelPath)
		}
	}

	if err := p.flush(ctx, r); err != nil {
		return p.finish(r, start), err
	}

	res := p.finish(r, start)
	log.Info("ingest finished",
		"archives", res.Archives, "processed", res.Processed, "committed", res.Committed,
		"failed", res.Failed, "duration", res.Duration)
	return res, nil
}

func (p *Pipeline) finish(r *run, start time.Time) *Result {
	r.result.Duration = time.Since(start)
	return r.result
}

func (p *Pipeline) processContainer(ctx context.Context, r *run, c source.Container) error {
	log := p.opts.Logger

	arc, err := p.src.Open(c.Path)
	if err != nil {
		var openErr *source.OpenError
		if !errors.As(err, &openErr) {
			return fmt.Errorf("opening %s: %w", c.Path, err)
		}
		log.Warn("skipping unreadable container", "container", c.Path, "error", err)
		r.result.ArchivesFailed++
		p.opts.Metrics.Archive(metrics.OutcomeFailed)
		// The block carries no document name, so retry ignores it.
		return p.record(ledger.Entry{Container: c.Path, Error: err.Error()})
	}
	defer arc.Close()

	docs := arc.Documents()
	if p.opts.PositionalSkip && r.cursor.SkipContainer(len(docs)) {
		if r.cursor.Container != c.RelPath {
			r.result.ArchivesSkipped++
			r.result.Resumed += len(docs)
			log.Debug("skipping container behind checkpoint", "container", c.RelPath, "documents", len(docs))
			return nil
		}
		// Row ids ran ahead of positions; the marker's own container is
		// walked document by document instead.
		p.warn(r, "positional skip reached the checkpoint container; resuming by document identity",
			"container", c.RelPath, "document", r.cursor.Document)
	}

	r.result.Archives++
	p.opts.Metrics.Archive(metrics.OutcomeProcessed)
	log.Debug("processing container", "container", c.RelPath, "documents", len(docs))

	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := documentName(d)
		if r.cursor.Skip(c.RelPath, name) {
			r.result.Resumed++
			continue
		}

		if err := p.processDocument(ctx, r, arc, c, d, name); err != nil {
			return err
		}
	}

	if r.cursor.Pending() && r.cursor.Container == c.RelPath {
		p.warn(r, "checkpoint document not found in its container; processing the rest",
			"container", c.RelPath, "document", r.cursor.Document)
		r.cursor.Clear()
	}
	return nil
}

func (p *Pipeline) processDocument(ctx context.Context, r *run, arc source.Archive, c source.Container, d source.DocumentRef, name string) error {
	if p.opts.SkipExisting {
		exists, err := p.store.Exists(ctx, c.RelPath, name)
		if err != nil {
			return err
		}
		if exists {
			r.result.Existing++
			p.opts.Metrics.Document(metrics.OutcomeSkipped)
			return nil
		}
	}

	res, err := extractEntry(ctx, p.extractor, arc, d, name, p.opts.MaxBytes)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.opts.Logger.Warn("extraction failed", "container", c.Path, "document", name, "error", err)
		r.result.Failed++
		p.opts.Metrics.Document(metrics.OutcomeFailed)
		return p.record(ledger.Entry{Container: c.Path, Document: name, Error: err.Error()})
	}

	size, pages := res.Size, res.Pages
	r.batch = append(r.batch, queued{
		path: c.Path,
		rec: catalog.Record{
			Container: c.RelPath,
			Document:  name,
			Text:      textclean.Clean(res.Text, p.opts.MaxChars),
			Metadata:  map[string]any{catalog.MetaRootDirectory: p.opts.RootDir},
			Size:      &size,
			Pages:     &pages,
		},
	})
	r.result.Processed++
	p.opts.Metrics.Document(metrics.OutcomeExtracted)

	if r.result.Processed%p.opts.ProgressEvery == 0 {
		p.opts.Logger.Info("progress",
			"processed", r.result.Processed, "archives", r.result.Archives, "committed", r.result.Committed)
	}

	if len(r.batch) >= p.opts.BatchSize {
		return p.flush(ctx, r)
	}
	return nil
}

// flush commits the pending batch. A failed commit is a warning: the
// batch's documents go to the ledger with the commit error and the run
// continues.
func (p *Pipeline) flush(ctx context.Context, r *run) error {
	if len(r.batch) == 0 {
		return nil
	}
	batch := r.batch
	r.batch = nil

	records := make([]catalog.Record, len(batch))
	for i, q := range batch {
		records[i] = q.rec
	}
	n, err := p.store.InsertBatch(ctx, records)
	if err == nil {
		r.result.Committed += n
		r.result.BatchesCommitted++
		p.opts.Metrics.Batch(metrics.OutcomeCommitted)
		p.opts.Logger.Debug("batch committed", "size", len(batch), "inserted", n)
		return nil
	}

	var batchErr *catalog.BatchInsertError
	if !errors.As(err, &batchErr) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	r.result.BatchesFailed++
	p.opts.Metrics.Batch(metrics.OutcomeFailed)
	p.warn(r, "batch commit failed; documents written to the ledger", "size", len(batch), "error", err)

	entries := make([]ledger.Entry, len(batch))
	for i, q := range batch {
		entries[i] = ledger.Entry{Container: q.path, Document: q.rec.Document, Error: batchErr.Err.Error()}
	}
	r.result.Failed += len(entries)
	return p.record(entries...)
}

func (p *Pipeline) record(entries ...ledger.Entry) error {
	if p.ledger == nil {
		return nil
	}
	if err := p.ledger.Append(entries...); err != nil {
		return fmt.Errorf("writing error ledger: %w", err)
	}
	return nil
}

func (p *Pipeline) warn(r *run, msg string, args ...any) {
	p.opts.Logger.Warn(msg, args...)
	r.result.Warnings = append(r.result.Warnings, msg)
}

// extractEntry reads one archive entry and runs the extractor over it.
func extractEntry(ctx context.Context, ex extract.Extractor, arc source.Archive, d source.DocumentRef, name string, maxBytes int64) (*extract.Result, error) {
	rc, err := arc.Open(d)
	if err != nil {
		return nil, &extract.ExtractionError{Document: name, Err: err}
	}
	data, err := extract.ReadAll(name, rc, maxBytes)
	rc.Close()
	if err != nil {
		return nil, err
	}
	return ex.Extract(ctx, name, data)
}

// documentName is the stored identity of an archive entry.
func documentName(d source.DocumentRef) string {
	return textclean.Sanitize(d.DisplayName)
}

func hasContainer(containers []source.Container, relPath string) bool {
	for _, c := range containers {
		if c.RelPath == relPath {
			return true
		}
	}
	return false
}
