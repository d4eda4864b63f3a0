package quality

import (
	"strings"
	"testing"

	"github.com/mikehostetler/wreckit/internal/item"
)

func validResearchDoc() string {
	var b strings.Builder
	b.WriteString("# BUG-001 Research\n\n")
	b.WriteString("## Header line\nBUG-001: investigate X\n\n")
	b.WriteString("## Research Question\nWhy does X fail?\n\n")
	b.WriteString("## Summary\n")
	b.WriteString(strings.Repeat("word ", 30))
	b.WriteString("\n\n")
	b.WriteString("## Current State Analysis\n")
	b.WriteString(strings.Repeat("word ", 40))
	b.WriteString("\n\n")
	b.WriteString("## Key Files\ninternal/foo.go:10\ninternal/bar.go:20-30\ninternal/baz.go:5\ninternal/qux.go:1\ninternal/quux.go:99\n\n")
	b.WriteString("## Technical Considerations\ndetails\n\n")
	b.WriteString("## Risks and Mitigations\ndetails\n\n")
	b.WriteString("## Recommended Approach\ndetails\n\n")
	b.WriteString("## Open Questions\nnone\n")
	return b.String()
}

func TestValidateResearch_Valid(t *testing.T) {
	result := ValidateResearch(validResearchDoc())
	if !result.Valid {
		t.Fatalf("expected valid, got errors: %v", result.Errors)
	}
}

func TestValidateResearch_MissingSectionsAndCitations(t *testing.T) {
	result := ValidateResearch("# Title\n\n## Summary\ntoo short\n")
	if result.Valid {
		t.Fatal("expected invalid")
	}
	if len(result.Errors) == 0 {
		t.Fatal("expected specific errors")
	}
}

func TestValidateResearch_MissingHeaderLine(t *testing.T) {
	result := ValidateResearch(strings.Replace(validResearchDoc(), "## Header line\nBUG-001: investigate X\n\n", "", 1))
	if result.Valid {
		t.Fatal("expected invalid without a Header line section")
	}
}

func validPlanDoc() string {
	var b strings.Builder
	b.WriteString("# Plan\n\n")
	b.WriteString("## Header\nBUG-001: fix X\n\n")
	b.WriteString("## Implementation Plan Title\nFix X\n\n")
	b.WriteString("## Overview\ntext\n\n")
	b.WriteString("## Current State\ntext\n\n")
	b.WriteString("## Desired End State\ntext\n\n")
	b.WriteString("## What We're NOT Doing\ntext\n\n")
	b.WriteString("## Implementation Approach\ntext\n\n")
	b.WriteString("## Phases\n### Phase 1: Setup\ntext\n\n")
	b.WriteString("## Testing Strategy\ntext\n")
	return b.String()
}

func TestValidatePlan_Valid(t *testing.T) {
	result := ValidatePlan(validPlanDoc())
	if !result.Valid {
		t.Fatalf("expected valid, got errors: %v", result.Errors)
	}
}

func TestValidatePlan_NoPhases(t *testing.T) {
	result := ValidatePlan(strings.Replace(validPlanDoc(), "### Phase 1: Setup\n", "", 1))
	if result.Valid {
		t.Fatal("expected invalid without a phase heading")
	}
}

func TestValidatePlan_MissingHeaderOrTitle(t *testing.T) {
	result := ValidatePlan(strings.Replace(validPlanDoc(), "## Header\nBUG-001: fix X\n\n", "", 1))
	if result.Valid {
		t.Fatal("expected invalid without a Header section")
	}

	result = ValidatePlan(strings.Replace(validPlanDoc(), "## Implementation Plan Title\nFix X\n\n", "", 1))
	if result.Valid {
		t.Fatal("expected invalid without an Implementation Plan Title section")
	}
}

func TestValidatePayload(t *testing.T) {
	valid := []byte(`[{"title":"t","description":"d","success_criteria":["a"]}]`)
	if result := ValidatePayload(valid, DefaultPayloadLimits); !result.Valid {
		t.Fatalf("expected valid, got %v", result.Errors)
	}

	malformed := []byte(`not json`)
	if result := ValidatePayload(malformed, DefaultPayloadLimits); result.Valid {
		t.Fatal("expected invalid for malformed JSON")
	}

	tooLongTitle := []byte(`[{"title":"` + strings.Repeat("x", 200) + `","description":"d"}]`)
	if result := ValidatePayload(tooLongTitle, DefaultPayloadLimits); result.Valid {
		t.Fatal("expected invalid for oversized title")
	}
}

func TestValidateStories(t *testing.T) {
	prd := &item.PRD{Stories: []item.Story{
		{ID: "US-1", Title: "A", AcceptanceCriteria: []string{"a", "b"}, Priority: 1},
	}}
	if result := ValidateStories(prd); !result.Valid {
		t.Fatalf("expected valid, got %v", result.Errors)
	}

	empty := &item.PRD{}
	if result := ValidateStories(empty); result.Valid {
		t.Fatal("expected invalid for empty prd")
	}
}
