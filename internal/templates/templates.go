// Package templates provides the embedded phase prompt templates and
// their variable-substitution rendering (spec §4.F step 1). Grounded on
// the teacher's internal/templates package: an embed.FS of *.md.tmpl
// parsed once with text/template, with a per-repo override directory
// checked before the embedded default.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"text/template"

	"github.com/mikehostetler/wreckit/internal/item"
)

//go:embed prompts/*.md.tmpl
var promptFS embed.FS

// Templates renders phase prompts, preferring a per-repo override file
// over the embedded default.
type Templates struct {
	parsed       *template.Template
	overrideFunc func(phase string) (string, bool)
}

// New parses the embedded prompt templates.
func New() (*Templates, error) {
	t, err := template.ParseFS(promptFS, "prompts/*.md.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing prompt templates: %w", err)
	}
	return &Templates{parsed: t}, nil
}

// WithOverrides configures a lookup for per-repo prompt overrides (spec
// §6's `.wreckit/prompts/*.md` layout). overrideFunc returns the raw
// template source and true if an override exists for the given phase.
func (t *Templates) WithOverrides(overrideFunc func(phase string) (string, bool)) *Templates {
	t.overrideFunc = overrideFunc
	return t
}

// PromptData carries every substitution variable a phase template may
// reference. Phase-specific fields are left zero-valued when not
// applicable to the phase being rendered.
type PromptData struct {
	ID               string
	Title            string
	Overview         string
	CompletionSignal string
	Feedback         string

	// plan / implement / complete: MCP-capture phases
	SavePRDTool  string
	MCPSocketEnv string

	// implement
	PendingStories  []item.Story
	AllowedPaths    []string
	MaxFiles        int
	MaxLines        int
	MaxBytes        int
	StoryStatusTool string

	// pr / complete
	Branch       string
	BaseBranch   string
	CompleteTool string
}

// Render renders the named phase's template (e.g. "research", "plan").
// An override, if registered and present for this phase, takes
// precedence over the embedded default.
func (t *Templates) Render(phase string, data PromptData) (string, error) {
	if t.overrideFunc != nil {
		if src, ok := t.overrideFunc(phase); ok {
			tmpl, err := template.New(phase).Parse(src)
			if err != nil {
				return "", fmt.Errorf("parsing override template for %s: %w", phase, err)
			}
			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, data); err != nil {
				return "", fmt.Errorf("rendering override template for %s: %w", phase, err)
			}
			return buf.String(), nil
		}
	}

	templateName := phase + ".md.tmpl"
	var buf bytes.Buffer
	if err := t.parsed.ExecuteTemplate(&buf, templateName, data); err != nil {
		return "", fmt.Errorf("rendering prompt template %s: %w", templateName, err)
	}
	return buf.String(), nil
}

// ReadOverride is a ready-made overrideFunc backed by the filesystem
// path store.Store.PromptOverridePath produces, for callers that don't
// want to implement the lookup themselves.
func ReadOverride(path string) (string, bool) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is store-computed, not user input
	if err != nil {
		return "", false
	}
	return string(data), true
}
