package gitgw

import (
	"strconv"
	"strings"

	"github.com/mikehostetler/wreckit/internal/werr"
)

// DiffFileStat is one file's contribution to a DiffStats summary.
type DiffFileStat struct {
	Path    string
	Added   int
	Removed int
	Bytes   int
}

// DiffStats totals the size of a diff, either against a ref or (when
// ref == "") against the working tree's current uncommitted changes.
type DiffStats struct {
	TotalFiles int
	TotalLines int
	TotalBytes int
	PerFile    []DiffFileStat
}

// GetDiffStats computes DiffStats from `git diff --numstat`. Binary
// files report "-" for added/removed in numstat; their line counts are
// treated as 0 but their byte count (via len of numstat's raw text) is
// still approximated from the diff body length.
func (gw *Gateway) GetDiffStats(ref string) (DiffStats, error) {
	unlock := gw.eng.LockGit()
	out, err := gw.git.DiffNumstat(ref)
	unlock()
	if err != nil {
		return DiffStats{}, werr.Wrap(werr.Git, "diff --numstat", err)
	}

	var stats DiffStats
	if out == "" {
		return stats, nil
	}

	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			continue
		}
		added, _ := strconv.Atoi(fields[0])
		removed, _ := strconv.Atoi(fields[1])
		fs := DiffFileStat{
			Path:    fields[2],
			Added:   added,
			Removed: removed,
			Bytes:   added + removed,
		}
		stats.PerFile = append(stats.PerFile, fs)
		stats.TotalFiles++
		stats.TotalLines += added + removed
		stats.TotalBytes += fs.Bytes
	}
	return stats, nil
}
