package runlog

import (
	"context"
	"errors"
	"testing"

	"github.com/ziadkadry99/pdfvault/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestStartAndFinish(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	id, err := s.Start(ctx, KindIngest, "/data")
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if id == "" {
		t.Fatal("Start() returned empty id")
	}

	r, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if r.Status != StatusRunning {
		t.Errorf("Status = %q, want %q", r.Status, StatusRunning)
	}
	if r.Duration() != 0 {
		t.Errorf("Duration() of running run = %v, want 0", r.Duration())
	}

	c := Counters{Archives: 2, Processed: 10, Committed: 9, Failed: 1}
	if err := s.Finish(ctx, id, c, nil); err != nil {
		t.Fatalf("Finish() error: %v", err)
	}

	r, err = s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if r.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", r.Status, StatusCompleted)
	}
	if r.Counters != c {
		t.Errorf("Counters = %+v, want %+v", r.Counters, c)
	}
	if r.FinishedAt.IsZero() {
		t.Error("FinishedAt is zero")
	}
	if r.Root != "/data" || r.Kind != KindIngest {
		t.Errorf("run = (%q, %q), want (ingest, /data)", r.Kind, r.Root)
	}
}

func TestFinishFailed(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	id, err := s.Start(ctx, KindRetry, "/data")
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := s.Finish(ctx, id, Counters{}, errors.New("disk full")); err != nil {
		t.Fatalf("Finish() error: %v", err)
	}

	r, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if r.Status != StatusFailed {
		t.Errorf("Status = %q, want %q", r.Status, StatusFailed)
	}
	if r.Error != "disk full" {
		t.Errorf("Error = %q, want %q", r.Error, "disk full")
	}
}

func TestFinishUnknown(t *testing.T) {
	s := setupStore(t)
	err := s.Finish(context.Background(), "nope", Counters{}, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Finish(nope) error = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.Start(ctx, KindIngest, "/data")
		if err != nil {
			t.Fatalf("Start() error: %v", err)
		}
		ids = append(ids, id)
	}

	runs, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("List(2) returned %d runs, want 2", len(runs))
	}
	if runs[0].ID != ids[2] {
		t.Errorf("newest run = %s, want %s", runs[0].ID, ids[2])
	}

	all, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List(0) returned %d runs, want 3", len(all))
	}
}
