// Package extract turns document bytes into plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Defaults for PDFExtractor and ReadAll.
const (
	DefaultMaxPages       = 10
	DefaultMaxBytes int64 = 64 << 20
)

// ErrTooLarge is wrapped when a document exceeds the byte limit.
var ErrTooLarge = errors.New("document exceeds size limit")

// Result is the outcome of a successful extraction. Text is raw: it has not
// been sanitized or truncated.
type Result struct {
	Text  string
	Size  int64
	Pages int
}

// Extractor extracts text from one document.
type Extractor interface {
	Extract(ctx context.Context, name string, data []byte) (*Result, error)
}

// ExtractionError reports that a single document could not be read or
// parsed. The run continues past it.
type ExtractionError struct {
	Document string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.Document, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ReadAll reads a document entry, failing with an *ExtractionError when it
// is larger than maxBytes. maxBytes <= 0 uses DefaultMaxBytes.
func ReadAll(name string, r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, &ExtractionError{Document: name, Err: err}
	}
	if int64(len(data)) > maxBytes {
		return nil, &ExtractionError{Document: name, Err: fmt.Errorf("%w (%d bytes)", ErrTooLarge, maxBytes)}
	}
	return data, nil
}

// WithTimeout bounds every Extract call on next to d. A call that runs past
// the deadline is abandoned and reported as an *ExtractionError; its
// goroutine finishes in the background. d <= 0 returns next unchanged.
func WithTimeout(next Extractor, d time.Duration) Extractor {
	if d <= 0 {
		return next
	}
	return &timeoutExtractor{next: next, timeout: d}
}

type timeoutExtractor struct {
	next    Extractor
	timeout time.Duration
}

type extractOutcome struct {
	res *Result
	err error
}

func (t *timeoutExtractor) Extract(ctx context.Context, name string, data []byte) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan extractOutcome, 1)
	go func() {
		res, err := t.next.Extract(ctx, name, data)
		done <- extractOutcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			var exErr *ExtractionError
			if !errors.As(out.err, &exErr) {
				return nil, &ExtractionError{Document: name, Err: out.err}
			}
		}
		return out.res, out.err
	case <-ctx.Done():
		return nil, &ExtractionError{Document: name, Err: fmt.Errorf("timed out after %s: %w", t.timeout, ctx.Err())}
	}
}
