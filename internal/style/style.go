// Package style provides lipgloss-based terminal colorization for
// phase names, item states, and pass/fail badges in wreckit's
// command-line output. Grounded on the teacher's internal/tui/feed
// panel styles (internal/tui/feed/convoy.go's var block of
// lipgloss.NewStyle() definitions keyed to semantic colors), adapted
// from a full TUI's panel/border styling down to single-line badges
// suited to plain log output. lipgloss's own Renderer detects color
// profile from the given writer (NO_COLOR, terminfo, non-TTY) via
// termenv, so a non-terminal stdout degrades to plain text without any
// bespoke detection in this package.
package style

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/mikehostetler/wreckit/internal/item"
)

const (
	colorPrimary   = lipgloss.Color("12") // phase names
	colorSuccess   = lipgloss.Color("10") // done, completed
	colorError     = lipgloss.Color("9")  // failed
	colorWarning   = lipgloss.Color("11") // blocked, skipped
	colorHighlight = lipgloss.Color("14") // item ids
	colorDim       = lipgloss.Color("8")  // secondary detail
)

// Styles holds every style wreckit's CLI output needs, all bound to
// one lipgloss.Renderer so color detection (NO_COLOR, non-TTY,
// terminfo) happens once per output stream rather than per style.
type Styles struct {
	Phase   lipgloss.Style
	ItemID  lipgloss.Style
	Success lipgloss.Style
	Failure lipgloss.Style
	Warning lipgloss.Style
	Dim     lipgloss.Style
}

// New builds a Styles bound to w. Pass the CLI's os.Stdout (or
// os.Stderr for status lines, per spec §10.1) so lipgloss can detect
// whether w is actually a terminal.
func New(w io.Writer) *Styles {
	r := lipgloss.NewRenderer(w)
	return &Styles{
		Phase:   r.NewStyle().Bold(true).Foreground(colorPrimary),
		ItemID:  r.NewStyle().Foreground(colorHighlight),
		Success: r.NewStyle().Bold(true).Foreground(colorSuccess),
		Failure: r.NewStyle().Bold(true).Foreground(colorError),
		Warning: r.NewStyle().Bold(true).Foreground(colorWarning),
		Dim:     r.NewStyle().Foreground(colorDim),
	}
}

// PhaseLabel renders an item state as its CLI phase name, colorized
// (e.g. "researched" -> bold blue "researched").
func (s *Styles) PhaseLabel(state item.State) string {
	return s.Phase.Render(string(state))
}

// Badge renders a short pass/fail/blocked marker for one item's batch
// outcome, matching the vocabulary Summary reports: done, failed, or
// skipped (dependency-blocked or deadlock-drained).
func (s *Styles) Badge(outcome string) string {
	switch outcome {
	case "done":
		return s.Success.Render("✓ done")
	case "failed":
		return s.Failure.Render("✗ failed")
	case "skipped":
		return s.Warning.Render("– skipped")
	default:
		return s.Dim.Render(outcome)
	}
}

// ID renders an item id the way it should stand out in a status line.
func (s *Styles) ID(id string) string {
	return s.ItemID.Render(id)
}
