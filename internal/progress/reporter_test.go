package progress

import (
	"bytes"
	"testing"
)

func TestCIReporter(t *testing.T) {
	var buf bytes.Buffer
	r := &CIReporter{Out: &buf, Description: "Ingesting"}

	track := Track(r)
	track(1, 2, "a.zip")
	track(2, 2, "b.zip")
	r.Finish()

	want := "Ingesting: 2 total\n[1/2] a.zip\n[2/2] b.zip\nIngesting: done\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestNewReporterCI(t *testing.T) {
	t.Setenv("CI", "true")
	if _, ok := NewReporter(&bytes.Buffer{}, "x").(*CIReporter); !ok {
		t.Error("NewReporter() with CI set should return a CIReporter")
	}
}

func TestNewReporterTerminal(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	var buf bytes.Buffer
	r := NewReporter(&buf, "Ingesting")
	if _, ok := r.(*TerminalReporter); !ok {
		t.Fatalf("NewReporter() = %T, want *TerminalReporter", r)
	}

	// Updates before Start are ignored.
	r.Update(1, "early")
	r.Start(3)
	r.Update(1, "a.zip")
	r.Finish()
}
