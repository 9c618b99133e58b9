package indexer

import (
	"context"
	"testing"
)

func TestLoadCursorEmptyStore(t *testing.T) {
	c, err := LoadCursor(context.Background(), setupStore(t))
	if err != nil {
		t.Fatalf("LoadCursor() error: %v", err)
	}
	if c.Pending() {
		t.Error("cursor on empty store should not be pending")
	}
	if c.Skip("a.zip", "p.pdf") {
		t.Error("Skip() on a clear cursor should be false")
	}
}

func TestCursorSkipsThroughMarker(t *testing.T) {
	store := setupStore(t)
	seed(t, store, "a.zip", "1.pdf", "a.zip", "2.pdf")

	c, err := LoadCursor(context.Background(), store)
	if err != nil {
		t.Fatalf("LoadCursor() error: %v", err)
	}
	if c.RowID != 2 || c.Document != "2.pdf" {
		t.Fatalf("cursor = %+v, want row 2 at 2.pdf", c)
	}

	steps := []struct {
		container, document string
		skip                bool
	}{
		{"a.zip", "1.pdf", true},
		{"b.zip", "2.pdf", true}, // same name, other container
		{"a.zip", "2.pdf", true}, // the marker itself
		{"a.zip", "3.pdf", false},
	}
	for _, s := range steps {
		if got := c.Skip(s.container, s.document); got != s.skip {
			t.Errorf("Skip(%s, %s) = %v, want %v", s.container, s.document, got, s.skip)
		}
	}
}

func TestCursorSkipContainer(t *testing.T) {
	c := Cursor{RowID: 5, pending: true, remaining: 5}
	if !c.SkipContainer(3) {
		t.Error("SkipContainer(3) with 5 remaining = false, want true")
	}
	if c.SkipContainer(2) {
		t.Error("SkipContainer(2) with 2 remaining = true, want false")
	}
	c.Clear()
	if c.SkipContainer(0) {
		t.Error("SkipContainer on a clear cursor = true, want false")
	}
}
