package gitgw

import (
	"fmt"

	"github.com/mikehostetler/wreckit/internal/werr"
)

// PreflightIssue is one problem found by CheckGitPreflight, carrying
// enough detail for a caller to act on it without re-deriving it.
type PreflightIssue struct {
	Code          werr.Code
	Message       string
	RecoverySteps []string
}

// CheckGitPreflight runs every preflight check and returns every issue
// found (not just the first), so a CLI or agent can surface them all at
// once instead of iterating one fix at a time.
func (gw *Gateway) CheckGitPreflight(base string) ([]PreflightIssue, error) {
	var issues []PreflightIssue

	if !gw.IsRepo() {
		issues = append(issues, PreflightIssue{
			Code:    werr.NotGitRepo,
			Message: "working directory is not a git repository",
			RecoverySteps: []string{
				"run `git init` or `cd` into the correct repository",
			},
		})
		return issues, nil
	}

	unlock := gw.eng.LockGit()
	branch, branchErr := gw.git.CurrentBranch()
	changes, statusErr := gw.git.GetGitStatus()
	remotes, remoteErr := gw.git.Remotes()
	unlock()

	if branchErr != nil || branch == "HEAD" {
		issues = append(issues, PreflightIssue{
			Code:    werr.DetachedHead,
			Message: "repository is in a detached HEAD state",
			RecoverySteps: []string{
				fmt.Sprintf("run `git checkout %s`", base),
			},
		})
	}

	if statusErr == nil && len(changes) > 0 {
		issues = append(issues, PreflightIssue{
			Code:    werr.UncommittedChanges,
			Message: fmt.Sprintf("%d uncommitted change(s) in working tree", len(changes)),
			RecoverySteps: []string{
				"commit or stash local changes before running wreckit",
			},
		})
	}

	if remoteErr != nil || len(remotes) == 0 {
		issues = append(issues, PreflightIssue{
			Code:    werr.NoRemote,
			Message: "no git remote is configured",
			RecoverySteps: []string{
				fmt.Sprintf("run `git remote add %s <url>`", gw.remoteName),
			},
		})
	} else {
		url, err := gw.git.RemoteURL(gw.remoteName)
		if err != nil {
			issues = append(issues, PreflightIssue{
				Code:    werr.NoRemote,
				Message: fmt.Sprintf("remote %q is not configured", gw.remoteName),
			})
		} else if err := gw.ValidateRemoteURL(url); err != nil {
			issues = append(issues, PreflightIssue{
				Code:    werr.InvalidRemoteURL,
				Message: err.Error(),
				RecoverySteps: []string{
					"add the remote to the configured allow-list, or point the remote at an allowed URL",
				},
			})
		}
	}

	if branchErr == nil && branch != "" && branch != "HEAD" {
		diverged, err := gw.checkDiverged(branch, base)
		if err == nil && diverged {
			issues = append(issues, PreflightIssue{
				Code:    werr.BranchDiverged,
				Message: fmt.Sprintf("branch %q has diverged from %q and cannot fast-forward", branch, base),
				RecoverySteps: []string{
					fmt.Sprintf("rebase or merge %q onto %q manually", branch, base),
				},
			})
		}
	}

	return issues, nil
}

// checkDiverged reports whether branch has remote commits on base it
// does not contain — i.e. a fast-forward pull of base would fail.
func (gw *Gateway) checkDiverged(branch, base string) (bool, error) {
	unlock := gw.eng.LockGit()
	defer unlock()

	remoteExists, err := gw.git.RemoteBranchExists(gw.remoteName, base)
	if err != nil || !remoteExists {
		return false, err
	}
	remoteRef := gw.remoteName + "/" + base
	isAncestor, err := gw.git.IsAncestor(remoteRef, branch)
	if err != nil {
		return false, err
	}
	return !isAncestor, nil
}
