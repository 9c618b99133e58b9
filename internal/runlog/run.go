// Package runlog records one row per ingest or retry run so operators can
// see what ran, when, and how it ended.
package runlog

import "time"

// Kind identifies which pipeline produced a run.
type Kind string

const (
	KindIngest Kind = "ingest"
	KindRetry  Kind = "retry"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Counters are the totals a run reports when it finishes.
type Counters struct {
	Archives  int `json:"archives"`
	Processed int `json:"processed"`
	Committed int `json:"committed"`
	Failed    int `json:"failed"`
}

// Run is a single ingest_runs row.
type Run struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Root       string    `json:"root"`
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Counters
	Error string `json:"error,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
