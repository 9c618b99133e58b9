package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ziadkadry99/pdfvault/internal/catalog"
	"github.com/ziadkadry99/pdfvault/internal/extract"
	"github.com/ziadkadry99/pdfvault/internal/ledger"
	"github.com/ziadkadry99/pdfvault/internal/logging"
	"github.com/ziadkadry99/pdfvault/internal/metrics"
	"github.com/ziadkadry99/pdfvault/internal/source"
	"github.com/ziadkadry99/pdfvault/internal/textclean"
)

// RetryOptions configure a Retrier.
type RetryOptions struct {
	RootDir    string // recorded in metadata; derived from the ledger when empty
	RootMarker string // directory name that identifies the collection root
	MaxChars   int
	MaxBytes   int64
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Retrier re-attempts ledger entries one document at a time.
type Retrier struct {
	src        source.Source
	extractor  extract.Extractor
	store      Catalog
	opts       RetryOptions
	onProgress ProgressFunc
}

// NewRetrier creates a Retrier.
func NewRetrier(src source.Source, extractor extract.Extractor, store Catalog, opts RetryOptions) *Retrier {
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	opts.Logger = logging.OrDiscard(opts.Logger)
	return &Retrier{src: src, extractor: extractor, store: store, opts: opts}
}

// SetProgressFunc sets the per-entry progress callback.
func (r *Retrier) SetProgressFunc(fn ProgressFunc) {
	r.onProgress = fn
}

// Run retries every entry in order. Entries that still fail keep their
// original error text. Only store lookups failing for reasons other than
// the entry itself, and cancellation, abort the run.
func (r *Retrier) Run(ctx context.Context, entries []ledger.Entry) (*RetryResult, error) {
	start := time.Now()
	res := &RetryResult{Total: len(entries), Root: r.opts.RootDir}
	if res.Root == "" {
		containers := make([]string, len(entries))
		for i, e := range entries {
			containers[i] = e.Container
		}
		res.Root = DeriveRoot(containers, r.opts.RootMarker)
	}
	r.opts.Logger.Info("retrying ledger entries", "entries", len(entries), "root", res.Root)

	var (
		open     source.Archive
		openPath string
		openErr  error
	)
	defer func() {
		if open != nil {
			open.Close()
		}
	}()

	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}

		// Consecutive entries usually share a container; keep it open.
		if e.Container != openPath {
			if open != nil {
				open.Close()
				open = nil
			}
			openPath = e.Container
			open, openErr = r.src.Open(e.Container)
		}

		ok, err := r.retryOne(ctx, open, openErr, e, res)
		if err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
		if !ok {
			res.StillFailing = append(res.StillFailing, e)
			r.opts.Metrics.Retry(metrics.OutcomeFailed)
		}
		if r.onProgress != nil {
			r.onProgress(i+1, len(entries), e.Document)
		}
	}

	res.Duration = time.Since(start)
	r.opts.Logger.Info("retry finished",
		"recovered", res.Recovered, "already_indexed", res.AlreadyIndexed,
		"still_failing", len(res.StillFailing), "success_rate", fmt.Sprintf("%.1f%%", res.SuccessRate()))
	return res, nil
}

// retryOne reports whether the entry no longer needs retrying.
func (r *Retrier) retryOne(ctx context.Context, arc source.Archive, openErr error, e ledger.Entry, res *RetryResult) (bool, error) {
	log := r.opts.Logger.With("container", e.Container, "document", e.Document)

	if openErr != nil {
		var srcErr *source.OpenError
		if errors.As(openErr, &srcErr) && srcErr.NotFound() {
			log.Warn("container not found")
		} else {
			log.Warn("container still unreadable", "error", openErr)
		}
		return false, nil
	}

	d, found := findDocument(arc, e.Document)
	if !found {
		log.Warn("document not in container")
		return false, nil
	}

	ex, err := extractEntry(ctx, r.extractor, arc, d, e.Document, r.opts.MaxBytes)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		log.Warn("extraction still failing", "error", err)
		return false, nil
	}

	key := storedContainer(res.Root, e.Container)
	exists, err := r.store.Exists(ctx, key, e.Document)
	if err != nil {
		return false, err
	}
	if exists {
		res.AlreadyIndexed++
		r.opts.Metrics.Retry(metrics.OutcomeSkipped)
		log.Debug("already indexed")
		return true, nil
	}

	size, pages := ex.Size, ex.Pages
	created, err := r.store.InsertOne(ctx, catalog.Record{
		Container: key,
		Document:  e.Document,
		Text:      textclean.Clean(ex.Text, r.opts.MaxChars),
		Metadata: map[string]any{
			catalog.MetaRootDirectory: res.Root,
			catalog.MetaRetry:         true,
		},
		Size:  &size,
		Pages: &pages,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		log.Warn("insert failed", "error", err)
		return false, nil
	}
	if created {
		res.Recovered++
		r.opts.Metrics.Retry(metrics.OutcomeRecovered)
	} else {
		res.AlreadyIndexed++
		r.opts.Metrics.Retry(metrics.OutcomeSkipped)
	}
	return true, nil
}

// storedContainer turns a ledger container path, which points at the file
// on disk, into the identity ingest stored: the path relative to root.
func storedContainer(root, container string) string {
	if root == "" {
		return filepath.ToSlash(container)
	}
	rel, err := filepath.Rel(root, container)
	if err != nil {
		return filepath.ToSlash(container)
	}
	return filepath.ToSlash(rel)
}

// findDocument matches a stored document name against an archive's
// entries, by stored identity first and raw entry name second.
func findDocument(arc source.Archive, name string) (source.DocumentRef, bool) {
	docs := arc.Documents()
	for _, d := range docs {
		if documentName(d) == name {
			return d, true
		}
	}
	for _, d := range docs {
		if d.Name == name {
			return d, true
		}
	}
	return source.DocumentRef{}, false
}

// DeriveRoot returns the longest common path of the given container paths,
// then ascends until a directory holding marker is found. Without a marker,
// or when none is found, the common directory is returned.
func DeriveRoot(containers []string, marker string) string {
	common := commonDir(containers)
	if common == "" || marker == "" {
		return common
	}

	dir := common
	for {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return common
		}
		dir = parent
	}
}

// commonDir returns the deepest directory containing every path.
func commonDir(paths []string) string {
	var parts []string
	first := true
	for _, p := range paths {
		if p == "" {
			continue
		}
		dirParts := splitPath(filepath.Dir(filepath.Clean(p)))
		if first {
			parts = dirParts
			first = false
			continue
		}
		n := 0
		for n < len(parts) && n < len(dirParts) && parts[n] == dirParts[n] {
			n++
		}
		parts = parts[:n]
	}
	if first {
		return ""
	}
	return joinPath(parts)
}

func splitPath(p string) []string {
	vol := filepath.VolumeName(p)
	rest := strings.TrimPrefix(p, vol)
	parts := []string{vol}
	if strings.HasPrefix(rest, string(filepath.Separator)) {
		parts[0] += string(filepath.Separator)
	}
	for _, s := range strings.Split(rest, string(filepath.Separator)) {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

func joinPath(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		if parts[0] == "" {
			return "."
		}
		return parts[0]
	}
	return filepath.Join(parts...)
}
