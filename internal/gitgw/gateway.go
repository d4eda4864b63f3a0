// Package gitgw is the Git Gateway: the single module owning all access
// to the git and gh binaries. Every git invocation it makes is
// serialized by the Engine's process-wide FIFO lock (gh calls are not —
// they hit GitHub's API, not the local working tree). It composes
// internal/git's low-level wrapper rather than talking to subprocesses
// directly.
package gitgw

import (
	"fmt"
	"strings"

	"github.com/mikehostetler/wreckit/internal/engine"
	"github.com/mikehostetler/wreckit/internal/git"
	"github.com/mikehostetler/wreckit/internal/werr"
)

// Gateway is the sole entry point for git/gh operations against one
// working tree.
type Gateway struct {
	git           *git.Git
	eng           *engine.Engine
	remoteName    string
	branchPrefix  string
	remoteAllow   []string
	qualityGates  []string
	secretScan    bool
}

// Config controls gateway behavior that varies per repo/config file.
type Config struct {
	RemoteName      string   // default "origin"
	BranchPrefix    string   // default "item/"
	RemoteAllowlist []string // empty = allow any remote URL
	QualityGates    []string // shell commands run in order by RunQualityGates
	SecretScan      bool
}

// New constructs a Gateway over workDir, sharing eng's git lock with
// every other Gateway in the process.
func New(workDir string, eng *engine.Engine, cfg Config) *Gateway {
	if cfg.RemoteName == "" {
		cfg.RemoteName = "origin"
	}
	if cfg.BranchPrefix == "" {
		cfg.BranchPrefix = "item/"
	}
	return &Gateway{
		git:          git.NewGit(workDir),
		eng:          eng,
		remoteName:   cfg.RemoteName,
		branchPrefix: cfg.BranchPrefix,
		remoteAllow:  cfg.RemoteAllowlist,
		qualityGates: cfg.QualityGates,
		secretScan:   cfg.SecretScan,
	}
}

// IsRepo reports whether the gateway's working directory is a git repo.
// Unlocked: a single read-only call, not part of a compound sequence.
func (gw *Gateway) IsRepo() bool {
	return gw.git.IsRepo()
}

// CurrentBranch returns the current branch name.
func (gw *Gateway) CurrentBranch() (string, error) {
	unlock := gw.eng.LockGit()
	defer unlock()
	branch, err := gw.git.CurrentBranch()
	if err != nil {
		return "", werr.Wrap(werr.Git, "current branch", err)
	}
	return branch, nil
}

// BranchName returns the branch name for an item id under the
// configured prefix (e.g. "item/BUG-001").
func (gw *Gateway) BranchName(id string) string {
	return gw.branchPrefix + id
}

// EnsureBranchResult reports whether ensureBranch created a new branch
// or found one already checked out.
type EnsureBranchResult struct {
	Name    string
	Created bool
}

// EnsureBranch checks out base, fast-forward-pulls it if a remote
// tracking ref exists, then creates (or reuses) and checks out
// "<prefix><slug>". The whole sequence runs under one lock acquisition
// so no other goroutine's git call can interleave mid-switch.
func (gw *Gateway) EnsureBranch(base, slug string) (EnsureBranchResult, error) {
	unlock := gw.eng.LockGit()
	defer unlock()

	name := gw.branchPrefix + slug

	exists, err := gw.git.BranchExists(name)
	if err != nil {
		return EnsureBranchResult{}, werr.Wrap(werr.Git, "checking branch existence", err)
	}
	if exists {
		if err := gw.git.Checkout(name); err != nil {
			return EnsureBranchResult{}, werr.Wrap(werr.Git, "checkout existing branch", err)
		}
		return EnsureBranchResult{Name: name, Created: false}, nil
	}

	if err := gw.git.Checkout(base); err != nil {
		return EnsureBranchResult{}, werr.Wrap(werr.Git, "checkout base branch", err)
	}
	if remoteExists, _ := gw.git.RemoteBranchExists(gw.remoteName, base); remoteExists {
		_ = gw.git.PullFastForward(gw.remoteName, base)
	}
	if err := gw.git.CheckoutNewBranchFrom(name, base); err != nil {
		return EnsureBranchResult{}, werr.Wrap(werr.Git, "create item branch", err)
	}
	return EnsureBranchResult{Name: name, Created: true}, nil
}

// BranchExists reports whether a local branch exists.
func (gw *Gateway) BranchExists(name string) (bool, error) {
	unlock := gw.eng.LockGit()
	defer unlock()
	exists, err := gw.git.BranchExists(name)
	if err != nil {
		return false, werr.Wrap(werr.Git, "branch exists", err)
	}
	return exists, nil
}

// CleanupBranch deletes the local branch and, if deleteRemote is set,
// the remote tracking branch. A missing remote ref is never an error —
// cleanup is idempotent.
func (gw *Gateway) CleanupBranch(name string, deleteRemote bool) error {
	unlock := gw.eng.LockGit()
	defer unlock()

	if err := gw.git.DeleteBranch(name, true); err != nil {
		return werr.Wrap(werr.Git, "delete local branch", err)
	}
	if deleteRemote {
		if err := gw.git.DeleteRemoteBranch(gw.remoteName, name); err != nil {
			return werr.Wrap(werr.Git, "delete remote branch", err)
		}
	}
	return nil
}

// CommitAll stages every change and commits it with message. Returns
// (false, nil) rather than an error when there is nothing to commit.
func (gw *Gateway) CommitAll(message string) (bool, error) {
	unlock := gw.eng.LockGit()
	defer unlock()

	clean, err := gw.git.HasNothingToCommit()
	if err != nil {
		return false, werr.Wrap(werr.Git, "checking working tree", err)
	}
	if clean {
		return false, nil
	}
	if err := gw.git.CommitAll(message); err != nil {
		return false, werr.Wrap(werr.Git, "commit", err)
	}
	return true, nil
}

// PushBranch pushes the named branch to the configured remote, setting
// upstream tracking if it isn't already configured.
func (gw *Gateway) PushBranch(name string) error {
	unlock := gw.eng.LockGit()
	defer unlock()
	if err := gw.git.PushWithUpstream(gw.remoteName, name); err != nil {
		return werr.Wrap(werr.Git, "push branch", err)
	}
	return nil
}

// MergeAndPushToBase checks out base, fast-forward pulls it, merges
// branch with --no-ff, and pushes base — the sequence spec §4.B names
// as mergeAndPushToBase, held under a single lock for atomicity.
func (gw *Gateway) MergeAndPushToBase(base, branch string) error {
	unlock := gw.eng.LockGit()
	defer unlock()

	if err := gw.git.Checkout(base); err != nil {
		return werr.Wrap(werr.Git, "checkout base", err)
	}
	if remoteExists, _ := gw.git.RemoteBranchExists(gw.remoteName, base); remoteExists {
		if err := gw.git.PullFastForward(gw.remoteName, base); err != nil {
			return werr.Wrap(werr.BranchDiverged, "fast-forward pull of base failed", err)
		}
	}
	msg := fmt.Sprintf("Merge branch '%s' into %s", branch, base)
	if err := gw.git.MergeNoFF(branch, msg); err != nil {
		_ = gw.git.AbortMerge()
		return werr.Wrap(werr.MergeConflict, "merge "+branch+" into "+base, err)
	}
	if err := gw.git.Push(gw.remoteName, base, false); err != nil {
		return werr.Wrap(werr.Git, "push base", err)
	}
	return nil
}

// GetGitStatus returns the current porcelain status.
func (gw *Gateway) GetGitStatus() ([]git.GitFileChange, error) {
	unlock := gw.eng.LockGit()
	defer unlock()
	changes, err := gw.git.GetGitStatus()
	if err != nil {
		return nil, werr.Wrap(werr.Git, "git status", err)
	}
	return changes, nil
}

// NormalizeRemoteURL strips protocol and ".git" suffix, and converts
// scp-style "git@host:org/repo" into "host/org/repo", so both forms of
// the same remote compare equal against the allow-list.
func NormalizeRemoteURL(url string) string {
	u := strings.TrimSpace(url)
	u = strings.TrimSuffix(u, ".git")
	u = strings.TrimSuffix(u, "/")

	if strings.HasPrefix(u, "git@") {
		u = strings.TrimPrefix(u, "git@")
		u = strings.Replace(u, ":", "/", 1)
		return u
	}

	for _, scheme := range []string{"https://", "http://", "ssh://", "git://"} {
		if strings.HasPrefix(u, scheme) {
			u = strings.TrimPrefix(u, scheme)
			break
		}
	}
	if idx := strings.Index(u, "@"); idx >= 0 && strings.Contains(u[:idx], ":") == false {
		u = u[idx+1:]
	}
	return u
}

// ValidateRemoteURL normalizes url and prefix-matches it against the
// configured allow-list. An empty allow-list allows everything. A
// mismatch fails closed.
func (gw *Gateway) ValidateRemoteURL(url string) error {
	if len(gw.remoteAllow) == 0 {
		return nil
	}
	normalized := NormalizeRemoteURL(url)
	for _, pattern := range gw.remoteAllow {
		if strings.HasPrefix(normalized, NormalizeRemoteURL(pattern)) {
			return nil
		}
	}
	return werr.New(werr.InvalidRemoteURL, fmt.Sprintf("remote URL %q is not in the configured allow-list", url))
}

// RemoteURL returns the URL configured for the gateway's remote.
func (gw *Gateway) RemoteURL() (string, error) {
	unlock := gw.eng.LockGit()
	defer unlock()
	url, err := gw.git.RemoteURL(gw.remoteName)
	if err != nil {
		return "", werr.Wrap(werr.NoRemote, "reading remote url", err)
	}
	return url, nil
}
