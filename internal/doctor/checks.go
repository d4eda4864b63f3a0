package doctor

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mikehostetler/wreckit/internal/config"
	"github.com/mikehostetler/wreckit/internal/git"
)

// GitBinaryCheck verifies the git binary every Git Gateway call shells
// out to is on PATH.
type GitBinaryCheck struct {
	BaseCheck
}

func (c *GitBinaryCheck) Run(_ *CheckContext) *CheckResult {
	path, err := exec.LookPath("git")
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "git not found on PATH",
			FixHint: "Install git and ensure it is on PATH",
		}
	}
	return &CheckResult{Name: c.Name(), Status: StatusOK, Message: "found at " + path}
}

// GhBinaryCheck verifies gh is on PATH. Unlike git, its absence is only
// a warning: every phase but pr/complete runs without it.
type GhBinaryCheck struct {
	BaseCheck
}

func (c *GhBinaryCheck) Run(_ *CheckContext) *CheckResult {
	path, err := exec.LookPath("gh")
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: "gh not found on PATH",
			Details: []string{"the pr and complete phases call gh to open and check pull requests"},
			FixHint: "Install the GitHub CLI (gh) and run 'gh auth login'",
		}
	}
	return &CheckResult{Name: c.Name(), Status: StatusOK, Message: "found at " + path}
}

// RepoCheck verifies the current directory is inside a git working
// tree and records its root into ctx.RepoRoot for later checks.
type RepoCheck struct {
	BaseCheck
}

func (c *RepoCheck) Run(ctx *CheckContext) *CheckResult {
	g := git.NewGit(ctx.Cwd)
	if !g.IsRepo() {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "not inside a git repository",
			FixHint: "Run wreckit from inside a git working tree, or 'git init' one",
		}
	}
	root, err := g.Toplevel()
	if err != nil {
		return &CheckResult{Name: c.Name(), Status: StatusError, Message: "could not resolve repository root: " + err.Error()}
	}
	ctx.RepoRoot = root
	return &CheckResult{Name: c.Name(), Status: StatusOK, Message: "repository root: " + root}
}

// WreckitDirCheck verifies .wreckit exists (or that the repo root is
// writable so `wreckit init` could create it).
type WreckitDirCheck struct {
	BaseCheck
}

func (c *WreckitDirCheck) Run(ctx *CheckContext) *CheckResult {
	if ctx.RepoRoot == "" {
		return &CheckResult{Name: c.Name(), Status: StatusWarning, Message: "skipped: repository root not resolved"}
	}
	dir := filepath.Join(ctx.RepoRoot, ".wreckit")
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: ".wreckit directory does not exist yet",
			FixHint: "Create .wreckit/items and .wreckit/prompts before running a batch",
		}
	}
	if err != nil {
		return &CheckResult{Name: c.Name(), Status: StatusError, Message: "could not stat .wreckit: " + err.Error()}
	}
	if !info.IsDir() {
		return &CheckResult{Name: c.Name(), Status: StatusError, Message: ".wreckit exists but is not a directory"}
	}
	return &CheckResult{Name: c.Name(), Status: StatusOK, Message: dir}
}

// ConfigCheck verifies wreckit.toml, if present, parses cleanly.
type ConfigCheck struct {
	BaseCheck
}

func (c *ConfigCheck) Run(ctx *CheckContext) *CheckResult {
	if ctx.RepoRoot == "" {
		return &CheckResult{Name: c.Name(), Status: StatusWarning, Message: "skipped: repository root not resolved"}
	}
	path := filepath.Join(ctx.RepoRoot, "wreckit.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &CheckResult{Name: c.Name(), Status: StatusOK, Message: "no wreckit.toml (using defaults)"}
	}
	if _, err := config.Load(path); err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "wreckit.toml failed to parse: " + err.Error(),
			FixHint: "Fix the [git]/[dispatch]/[batch]/[scope] tables in wreckit.toml",
		}
	}
	return &CheckResult{Name: c.Name(), Status: StatusOK, Message: "wreckit.toml parses cleanly"}
}
