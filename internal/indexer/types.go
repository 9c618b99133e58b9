package indexer

import (
	"context"
	"time"

	"github.com/ziadkadry99/pdfvault/internal/catalog"
	"github.com/ziadkadry99/pdfvault/internal/ledger"
	"github.com/ziadkadry99/pdfvault/internal/runlog"
)

// Catalog is the subset of catalog.Store the pipelines write through.
type Catalog interface {
	InsertBatch(ctx context.Context, records []catalog.Record) (int, error)
	InsertOne(ctx context.Context, r catalog.Record) (bool, error)
	Exists(ctx context.Context, container, document string) (bool, error)
	LastInserted(ctx context.Context) (*catalog.Checkpoint, error)
}

// Ledger receives entries for documents that could not be stored.
type Ledger interface {
	Append(entries ...ledger.Entry) error
}

// ProgressFunc is called after each container with the number of
// containers done, the total, and the container just finished.
type ProgressFunc func(processed int, total int, current string)

// Result summarizes one ingest run.
type Result struct {
	Containers       int // containers discovered
	Archives         int // containers opened and inspected
	ArchivesFailed   int
	ArchivesSkipped  int // skipped whole by the positional heuristic
	Processed        int // documents extracted and queued for commit
	Resumed          int // documents skipped up to and including the checkpoint
	Existing         int // documents already stored, extraction skipped
	Failed           int // documents written to the ledger
	Committed        int // rows newly created
	BatchesCommitted int
	BatchesFailed    int
	Warnings         []string
	Duration         time.Duration
}

// Counters converts the result to a run history row.
func (r *Result) Counters() runlog.Counters {
	return runlog.Counters{
		Archives:  r.Archives,
		Processed: r.Processed,
		Committed: r.Committed,
		Failed:    r.Failed,
	}
}

// RetryResult summarizes one retry run.
type RetryResult struct {
	Root           string
	Total          int
	Recovered      int // newly inserted
	AlreadyIndexed int // extracted fine but already stored
	StillFailing   []ledger.Entry
	Duration       time.Duration
}

// Succeeded is the number of entries that no longer need retrying.
func (r *RetryResult) Succeeded() int { return r.Recovered + r.AlreadyIndexed }

// SuccessRate returns the share of entries that succeeded, in percent.
func (r *RetryResult) SuccessRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Succeeded()) / float64(r.Total) * 100
}

// Counters converts the result to a run history row.
func (r *RetryResult) Counters() runlog.Counters {
	return runlog.Counters{
		Processed: r.Total,
		Committed: r.Recovered,
		Failed:    len(r.StillFailing),
	}
}
