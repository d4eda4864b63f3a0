package style

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mikehostetler/wreckit/internal/item"
)

// TestNew_NonTTYWriterDegradesToPlainText proves lipgloss's own
// Renderer detection strips ANSI color codes for a writer that isn't
// a terminal (a bytes.Buffer, same as piping wreckit's output to a
// file or another process), matching spec §10.1's plain-text fallback.
func TestNew_NonTTYWriterDegradesToPlainText(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	out := s.PhaseLabel(item.StateResearched)
	if out != "researched" {
		t.Errorf("PhaseLabel on a non-TTY writer = %q, want plain %q", out, "researched")
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("PhaseLabel leaked an ANSI escape sequence: %q", out)
	}
}

func TestBadge_KnownOutcomes(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	cases := map[string]string{
		"done":    "done",
		"failed":  "failed",
		"skipped": "skipped",
	}
	for outcome, want := range cases {
		got := s.Badge(outcome)
		if !strings.Contains(got, want) {
			t.Errorf("Badge(%q) = %q, want it to contain %q", outcome, got, want)
		}
	}
}

func TestBadge_UnknownOutcomeFallsBackToDim(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	got := s.Badge("aborted")
	if got != "aborted" {
		t.Errorf("Badge(%q) = %q, want plain passthrough on a non-TTY writer", "aborted", got)
	}
}

func TestID_RendersTheRawID(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	got := s.ID("001-test-item")
	if got != "001-test-item" {
		t.Errorf("ID = %q, want %q on a non-TTY writer", got, "001-test-item")
	}
}
