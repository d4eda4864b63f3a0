// Package quality implements the artifact-quality validators from spec
// §4.F.1: pure, total functions over markdown/JSON artifact content that
// never panic on malformed input — they return a structured result
// instead.
package quality

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Result is the outcome of a validator: either valid, or a list of
// human-readable reasons it failed.
type Result struct {
	Valid  bool
	Errors []string
}

func fail(errs ...string) Result {
	return Result{Valid: false, Errors: errs}
}

var citationPattern = regexp.MustCompile(`\b[\w./-]+\.[\w-]+:\d+(?:-\d+)?\b`)

var researchSections = []string{
	"Header line",
	"Research Question",
	"Summary",
	"Current State Analysis",
	"Key Files",
	"Technical Considerations",
	"Risks and Mitigations",
	"Recommended Approach",
	"Open Questions",
}

// ValidateResearch checks research.md against the research-quality
// validator: >=5 file:line citations, every required section present by
// header, Summary >=100 chars, Current State Analysis >=150 chars.
func ValidateResearch(content string) Result {
	var errs []string

	if n := len(citationPattern.FindAllString(content, -1)); n < 5 {
		errs = append(errs, fmt.Sprintf("found %d file:line citations, need >=5", n))
	}

	sections := splitSections(content)
	for _, name := range researchSections {
		if _, ok := sections[name]; !ok {
			errs = append(errs, "missing required section: "+name)
		}
	}

	if body, ok := sections["Summary"]; ok && len(strings.TrimSpace(body)) < 100 {
		errs = append(errs, "Summary section must be >=100 chars")
	}
	if body, ok := sections["Current State Analysis"]; ok && len(strings.TrimSpace(body)) < 150 {
		errs = append(errs, "Current State Analysis section must be >=150 chars")
	}

	if len(errs) > 0 {
		return fail(errs...)
	}
	return Result{Valid: true}
}

var planSections = []string{
	"Header",
	"Implementation Plan Title",
	"Overview",
	"Current State",
	"Desired End State",
	"What We're NOT Doing",
	"Implementation Approach",
	"Phases",
	"Testing Strategy",
}

var phaseHeadingPattern = regexp.MustCompile(`(?m)^### `)

// ValidatePlan checks plan.md against the plan-quality validator:
// every required section present, and >=1 phase (level-3 heading) under
// the Phases section.
func ValidatePlan(content string) Result {
	var errs []string

	sections := splitSections(content)
	for _, name := range planSections {
		if _, ok := sections[name]; !ok {
			errs = append(errs, "missing required section: "+name)
		}
	}

	phasesBody, ok := sections["Phases"]
	if !ok || len(phaseHeadingPattern.FindAllString(phasesBody, -1)) < 1 {
		errs = append(errs, "Phases section must contain >=1 level-3 phase heading")
	}

	if len(errs) > 0 {
		return fail(errs...)
	}
	return Result{Valid: true}
}

// splitSections splits markdown content by level-2 ("## ") headings into
// a map of heading text -> body, matching the teacher-adjacent habit of
// treating markdown headers as the artifact's schema. A document that
// doesn't use "## " headings simply yields an empty map, so validators
// degrade to "all sections missing" rather than panicking.
func splitSections(content string) map[string]string {
	sections := make(map[string]string)
	lines := strings.Split(content, "\n")
	current := ""
	var body strings.Builder

	flush := func() {
		if current != "" {
			sections[current] = body.String()
		}
		body.Reset()
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "## ") {
			flush()
			current = strings.TrimSpace(strings.TrimPrefix(line, "## "))
			continue
		}
		if current != "" {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	flush()
	return sections
}

// PayloadLimits bounds idea-ingestion input (spec §4.F.1).
type PayloadLimits struct {
	MaxIdeas              int
	MaxTitleChars         int
	MaxDescriptionChars   int
	MaxSuccessCriteria    int
	MaxTotalBytes         int
}

// DefaultPayloadLimits matches spec §4.F.1's stated defaults.
var DefaultPayloadLimits = PayloadLimits{
	MaxIdeas:            50,
	MaxTitleChars:       120,
	MaxDescriptionChars: 2000,
	MaxSuccessCriteria:  20,
	MaxTotalBytes:       100 * 1024,
}

// IdeaPayload is the raw shape of one idea-ingestion entry.
type IdeaPayload struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	SuccessCriteria []string `json:"success_criteria"`
}

// ValidatePayload checks raw idea-ingestion JSON against PayloadLimits.
// Malformed JSON is reported as a validation error, never a panic.
func ValidatePayload(raw []byte, limits PayloadLimits) Result {
	if len(raw) > limits.MaxTotalBytes {
		return fail(fmt.Sprintf("payload is %d bytes, exceeds limit of %d", len(raw), limits.MaxTotalBytes))
	}

	var ideas []IdeaPayload
	if err := json.Unmarshal(raw, &ideas); err != nil {
		return fail("payload is not a valid JSON array of ideas: " + err.Error())
	}

	var errs []string
	if len(ideas) > limits.MaxIdeas {
		errs = append(errs, fmt.Sprintf("%d ideas exceeds limit of %d", len(ideas), limits.MaxIdeas))
	}
	for i, idea := range ideas {
		if len(idea.Title) > limits.MaxTitleChars {
			errs = append(errs, fmt.Sprintf("idea %d: title exceeds %d chars", i, limits.MaxTitleChars))
		}
		if len(idea.Description) > limits.MaxDescriptionChars {
			errs = append(errs, fmt.Sprintf("idea %d: description exceeds %d chars", i, limits.MaxDescriptionChars))
		}
		if len(idea.SuccessCriteria) > limits.MaxSuccessCriteria {
			errs = append(errs, fmt.Sprintf("idea %d: success_criteria exceeds %d items", i, limits.MaxSuccessCriteria))
		}
	}

	if len(errs) > 0 {
		return fail(errs...)
	}
	return Result{Valid: true}
}

