package git

import "strings"

// GitFileChange is one line of `git status --porcelain=v1` output, split
// into its status code and path. Renames carry both the old and new
// path; every other code carries just Path.
type GitFileChange struct {
	Code    string // e.g. "M", "A", "D", "R", "C", "??", "!!"
	Path    string
	OldPath string // set only for R/C entries
}

// IsUntracked reports whether this entry is an untracked file or
// directory (code "??").
func (c GitFileChange) IsUntracked() bool {
	return c.Code == "??"
}

// GetGitStatus runs `git status --porcelain=v1` and parses every line,
// preserving rename/copy old-path information that a plain
// `diff --name-only` would discard. Grounded on the teacher's Status()
// porcelain parser, extended to surface the raw two-letter code instead
// of collapsing it into fixed Modified/Added/Deleted buckets.
func (g *Git) GetGitStatus() ([]GitFileChange, error) {
	out, err := g.run("status", "--porcelain=v1")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}

	var changes []GitFileChange
	for _, line := range strings.Split(out, "\n") {
		if line == "" || len(line) < 4 {
			continue
		}
		code := strings.TrimRight(line[:2], " ")
		if code == "" {
			continue
		}
		rest := line[3:]

		change := GitFileChange{Code: code}
		if code == "R" || code == "C" || strings.HasPrefix(line[:2], "R") || strings.HasPrefix(line[:2], "C") {
			if parts := strings.SplitN(rest, " -> ", 2); len(parts) == 2 {
				change.OldPath = parts[0]
				change.Path = parts[1]
			} else {
				change.Path = rest
			}
		} else {
			change.Path = rest
		}
		changes = append(changes, change)
	}
	return changes, nil
}

// ChangedPaths collapses a GetGitStatus() result to the plain path list
// a scope check needs (old and new paths both included for renames, so
// a rule matching either side of a move still fires).
func ChangedPaths(changes []GitFileChange) []string {
	var paths []string
	for _, c := range changes {
		if c.OldPath != "" {
			paths = append(paths, c.OldPath)
		}
		paths = append(paths, c.Path)
	}
	return paths
}
