package indexer

import (
	"context"
	"fmt"
)

// Cursor is the resume position of one run, computed once from the last
// stored document. The zero Cursor has nothing to resume.
type Cursor struct {
	RowID     int64
	Container string
	Document  string

	pending   bool
	remaining int64 // documents still "behind" the checkpoint, for the positional skip
}

// LoadCursor reads the last inserted document from store.
func LoadCursor(ctx context.Context, store Catalog) (Cursor, error) {
	cp, err := store.LastInserted(ctx)
	if err != nil {
		return Cursor{}, fmt.Errorf("load cursor: %w", err)
	}
	if cp == nil {
		return Cursor{}, nil
	}
	return Cursor{
		RowID:     cp.RowID,
		Container: cp.Container,
		Document:  cp.Document,
		pending:   true,
		remaining: cp.RowID,
	}, nil
}

// Pending reports whether documents are still being skipped.
func (c *Cursor) Pending() bool { return c.pending }

// Skip reports whether the document must be skipped. While the cursor is
// pending every document is skipped; the one matching the marker is
// skipped too and clears the cursor.
func (c *Cursor) Skip(container, document string) bool {
	if !c.pending {
		return false
	}
	if container == c.Container && document == c.Document {
		c.pending = false
	}
	return true
}

// SkipContainer applies the positional heuristic: a container with fewer
// documents than are still behind the checkpoint is skipped whole.
func (c *Cursor) SkipContainer(documents int) bool {
	if !c.pending || int64(documents) >= c.remaining {
		return false
	}
	c.remaining -= int64(documents)
	return true
}

// Clear drops the marker so every following document is processed.
func (c *Cursor) Clear() { c.pending = false }
