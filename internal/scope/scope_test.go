package scope

import (
	"testing"

	"github.com/mikehostetler/wreckit/internal/git"
)

func TestDiffPaths(t *testing.T) {
	before := []git.GitFileChange{{Code: "M", Path: "a.txt"}}
	after := []git.GitFileChange{
		{Code: "M", Path: "a.txt"},
		{Code: "A", Path: "b.txt"},
	}
	changed := DiffPaths(before, after)
	if len(changed) != 1 || changed[0] != "b.txt" {
		t.Fatalf("DiffPaths = %v, want [b.txt]", changed)
	}
}

func TestCheckAllowedPaths_ExactAndPrefix(t *testing.T) {
	allowed := []string{"items/BUG-001/plan.md", "items/BUG-001/"}
	result := CheckAllowedPaths([]string{"items/BUG-001/plan.md", "items/BUG-001/prd.json"}, allowed)
	if !result.Valid {
		t.Fatalf("expected valid, got violations %v", result.Violations)
	}
}

func TestCheckAllowedPaths_Violation(t *testing.T) {
	allowed := []string{"items/BUG-001/"}
	result := CheckAllowedPaths([]string{"items/BUG-001/plan.md", "src/main.go"}, allowed)
	if result.Valid {
		t.Fatal("expected a violation for src/main.go")
	}
	if len(result.Violations) != 1 || result.Violations[0] != "src/main.go" {
		t.Fatalf("violations = %v", result.Violations)
	}
}

func TestCheckAllowedPaths_DirectoryEntry(t *testing.T) {
	allowed := []string{"items/BUG-001/sub/file.txt"}
	result := CheckAllowedPaths([]string{"items/BUG-001/"}, allowed)
	if !result.Valid {
		t.Fatalf("expected a directory entry that prefixes an allowed path to be allowed, got %v", result.Violations)
	}
}

func TestCheckStoryLimits(t *testing.T) {
	limits := Limits{MaxFiles: 10, MaxLines: 100, MaxBytes: 5000}

	result := CheckStoryLimits(5, 50, 2000, limits)
	if !result.Valid || len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings at half usage, got %+v", result)
	}

	result = CheckStoryLimits(9, 95, 4900, limits)
	if !result.Valid {
		t.Fatal("expected valid but warned near the limit")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warnings near the limit")
	}

	result = CheckStoryLimits(11, 50, 2000, limits)
	if result.Valid {
		t.Fatal("expected a violation when exceeding MaxFiles")
	}
}

func TestExcludeMatching(t *testing.T) {
	paths := []string{"go.sum", "main.go", "vendor/lib.go"}
	kept := ExcludeMatching(paths, []string{"*.sum", "vendor/"})
	if len(kept) != 1 || kept[0] != "main.go" {
		t.Fatalf("kept = %v, want [main.go]", kept)
	}
}
