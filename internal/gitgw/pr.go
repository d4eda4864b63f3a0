package gitgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/mikehostetler/wreckit/internal/werr"
)

// runGh runs a gh subcommand against the gateway's working directory.
// gh invocations are never serialized by the git lock — they talk to
// GitHub's API, not the local working tree, and can safely run
// concurrently with git commands and with each other.
func (gw *Gateway) runGh(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	cmd.Dir = gw.git.WorkDir()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("gh %v: %s: %w", args, stderr.String(), err)
	}
	return stdout.String(), nil
}

// PrInfo is the subset of `gh pr view` fields the gateway cares about.
type PrInfo struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	State  string `json:"state"`
}

// GetPrByBranch returns the open PR for branch, or (nil, nil) if none.
func (gw *Gateway) GetPrByBranch(ctx context.Context, branch string) (*PrInfo, error) {
	out, err := gw.runGh(ctx, "pr", "view", branch, "--json", "number,url,state")
	if err != nil {
		// gh exits non-zero when there is no PR for the branch; that is
		// not a gateway failure, just an absent result.
		return nil, nil
	}
	var info PrInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		return nil, werr.Wrap(werr.PrCreationError, "parsing gh pr view output", err)
	}
	return &info, nil
}

// CreateOrUpdatePr creates a PR for branch into base if none exists, or
// updates title/body on the existing one.
func (gw *Gateway) CreateOrUpdatePr(ctx context.Context, branch, base, title, body string) (*PrInfo, error) {
	existing, err := gw.GetPrByBranch(ctx, branch)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if _, err := gw.runGh(ctx, "pr", "edit", branch, "--title", title, "--body", body); err != nil {
			return nil, werr.Wrap(werr.PrCreationError, "gh pr edit", err)
		}
		return gw.GetPrByBranch(ctx, branch)
	}

	if _, err := gw.runGh(ctx, "pr", "create", "--base", base, "--head", branch, "--title", title, "--body", body); err != nil {
		return nil, werr.Wrap(werr.PrCreationError, "gh pr create", err)
	}
	return gw.GetPrByBranch(ctx, branch)
}

// Mergeability reports GitHub's merge-readiness verdict for a PR.
// GitHub computes mergeability asynchronously, so Determined can be
// false even on a successful call — callers must not treat that as an
// error, only as "not yet known".
type Mergeability struct {
	Mergeable  bool
	Determined bool
}

// CheckPrMergeability polls `gh pr view` once for mergeStateStatus.
func (gw *Gateway) CheckPrMergeability(ctx context.Context, branch string) (Mergeability, error) {
	out, err := gw.runGh(ctx, "pr", "view", branch, "--json", "mergeable")
	if err != nil {
		return Mergeability{}, werr.Wrap(werr.PrCreationError, "gh pr view mergeable", err)
	}
	var resp struct {
		Mergeable string `json:"mergeable"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		return Mergeability{}, werr.Wrap(werr.PrCreationError, "parsing mergeable field", err)
	}
	switch resp.Mergeable {
	case "MERGEABLE":
		return Mergeability{Mergeable: true, Determined: true}, nil
	case "CONFLICTING":
		return Mergeability{Mergeable: false, Determined: true}, nil
	default: // "UNKNOWN" or empty — GitHub is still computing
		return Mergeability{Mergeable: false, Determined: false}, nil
	}
}

// CheckMergeConflicts performs a local dry-run merge of branch into
// base to detect conflicts git-side (independent of GitHub's
// mergeStateStatus, which can lag). It always aborts the merge and
// always restores the original branch, even on error, and the whole
// sequence runs under a single lock acquisition so nothing else can
// observe the repo mid-dry-run.
func (gw *Gateway) CheckMergeConflicts(branch, base string) ([]string, error) {
	unlock := gw.eng.LockGit()
	defer unlock()

	original, err := gw.git.CurrentBranch()
	if err != nil {
		return nil, werr.Wrap(werr.Git, "reading current branch", err)
	}

	restore := func() {
		_ = gw.git.AbortMerge()
		_ = gw.git.Checkout(original)
	}

	if err := gw.git.Checkout(base); err != nil {
		restore()
		return nil, werr.Wrap(werr.Git, "checkout base for conflict check", err)
	}

	mergeErr := gw.git.MergeNoFF(branch, "conflict check (discarded)")
	conflicts, confErr := gw.git.GetConflictingFiles()
	restore()

	if confErr != nil {
		return nil, werr.Wrap(werr.Git, "reading conflicting files", confErr)
	}
	if mergeErr == nil && len(conflicts) == 0 {
		return nil, nil
	}
	return conflicts, nil
}

// PrDetails is the subset of PR fields the complete phase verifies.
type PrDetails struct {
	Merged         bool
	BaseRefName    string
	HeadRefName    string
	MergeCommitOid string
	MergedAt       time.Time
	ChecksPassed   bool
}

// GetPrDetails fetches the full detail set needed to verify delivery.
func (gw *Gateway) GetPrDetails(ctx context.Context, branch string) (*PrDetails, error) {
	out, err := gw.runGh(ctx, "pr", "view", branch,
		"--json", "mergedAt,baseRefName,headRefName,mergeCommit,statusCheckRollup")
	if err != nil {
		return nil, werr.Wrap(werr.PrCreationError, "gh pr view details", err)
	}

	var resp struct {
		MergedAt    *time.Time `json:"mergedAt"`
		BaseRefName string     `json:"baseRefName"`
		HeadRefName string     `json:"headRefName"`
		MergeCommit *struct {
			Oid string `json:"oid"`
		} `json:"mergeCommit"`
		StatusCheckRollup []struct {
			Conclusion string `json:"conclusion"`
		} `json:"statusCheckRollup"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		return nil, werr.Wrap(werr.PrCreationError, "parsing pr details", err)
	}

	details := &PrDetails{
		BaseRefName: resp.BaseRefName,
		HeadRefName: resp.HeadRefName,
	}
	if resp.MergedAt != nil {
		details.Merged = true
		details.MergedAt = *resp.MergedAt
	}
	if resp.MergeCommit != nil {
		details.MergeCommitOid = resp.MergeCommit.Oid
	}

	details.ChecksPassed = true
	for _, check := range resp.StatusCheckRollup {
		if check.Conclusion != "" && check.Conclusion != "SUCCESS" && check.Conclusion != "NEUTRAL" && check.Conclusion != "SKIPPED" {
			details.ChecksPassed = false
			break
		}
	}

	return details, nil
}
