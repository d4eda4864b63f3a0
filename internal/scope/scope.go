// Package scope implements the Scope Enforcer (spec §4.C): it checks
// that a phase only touched the paths it was allowed to, and that a
// story's diff stays within configured size limits.
package scope

import (
	"strings"

	"github.com/mikehostetler/wreckit/internal/git"
)

// Policy is the kind of path restriction a phase declares.
type Policy struct {
	Kind         PolicyKind
	AllowedPaths []string // used by DesignOnly and Scoped
	StoryLimits  *Limits  // used by Scoped
}

// PolicyKind names the scope policy a phase runs under.
type PolicyKind string

const (
	ReadOnly    PolicyKind = "readOnly"
	DesignOnly  PolicyKind = "designOnly"
	Scoped      PolicyKind = "scoped"
	Unrestricted PolicyKind = "unrestricted"
)

// Limits bounds a story's diff size.
type Limits struct {
	MaxFiles         int
	MaxLines         int
	MaxBytes         int
	WarnThreshold    float64 // fraction of a limit that triggers a warning, default 0.8
	ExcludePatterns  []string
}

// CheckResult is the outcome of enforcing a policy against a before/
// after snapshot.
type CheckResult struct {
	Valid      bool
	Violations []string
	Warnings   []string
}

// DiffPaths computes the set of paths present in after but not before —
// i.e. the paths a phase actually touched.
func DiffPaths(before, after []git.GitFileChange) []string {
	seen := make(map[string]bool, len(before))
	for _, c := range before {
		seen[c.Path] = true
	}
	var changed []string
	for _, c := range after {
		if !seen[c.Path] {
			changed = append(changed, c.Path)
		}
	}
	return changed
}

// CheckAllowedPaths validates each changed path against the allowed-
// paths list using the rules from spec §4.C: exact match; prefix match
// on a trailing-slash directory (after normalizing leading/trailing
// slashes); for git-reported directory entries (ending in "/"), the
// directory is allowed if it is a prefix of any allowed path.
func CheckAllowedPaths(changed []string, allowed []string) CheckResult {
	result := CheckResult{Valid: true}
	for _, path := range changed {
		if !pathAllowed(path, allowed) {
			result.Valid = false
			result.Violations = append(result.Violations, path)
		}
	}
	return result
}

func pathAllowed(path string, allowed []string) bool {
	normalizedPath := strings.Trim(path, "/")
	isDir := strings.HasSuffix(path, "/")

	for _, a := range allowed {
		normalizedAllowed := strings.Trim(a, "/")

		if normalizedPath == normalizedAllowed {
			return true
		}
		if strings.HasSuffix(a, "/") && strings.HasPrefix(normalizedPath, normalizedAllowed+"/") {
			return true
		}
		if isDir && strings.HasPrefix(normalizedAllowed, normalizedPath) {
			return true
		}
	}
	return false
}

// CheckStoryLimits enforces diff-size limits over a story's changes,
// excluding paths matching any ExcludePatterns (e.g. lockfiles).
func CheckStoryLimits(filesChanged, linesChanged, bytesChanged int, limits Limits) CheckResult {
	result := CheckResult{Valid: true}
	if limits.WarnThreshold == 0 {
		limits.WarnThreshold = 0.8
	}

	check := func(name string, value, max int) {
		if max <= 0 {
			return
		}
		if value > max {
			result.Valid = false
			result.Violations = append(result.Violations, name)
			return
		}
		if float64(value) >= float64(max)*limits.WarnThreshold {
			result.Warnings = append(result.Warnings, name)
		}
	}

	check("files", filesChanged, limits.MaxFiles)
	check("lines", linesChanged, limits.MaxLines)
	check("bytes", bytesChanged, limits.MaxBytes)

	return result
}

// ExcludeMatching filters out paths matching any of the given glob-ish
// prefix/suffix patterns (e.g. "*.lock", "vendor/").
func ExcludeMatching(paths []string, patterns []string) []string {
	var kept []string
	for _, p := range paths {
		excluded := false
		for _, pattern := range patterns {
			if matchPattern(p, pattern) {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, p)
		}
	}
	return kept
}

func matchPattern(path, pattern string) bool {
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(path, strings.TrimPrefix(pattern, "*"))
	}
	if strings.HasSuffix(pattern, "/") {
		return strings.HasPrefix(path, pattern)
	}
	return path == pattern
}
