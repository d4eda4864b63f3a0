package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikehostetler/wreckit/internal/config"
	"github.com/mikehostetler/wreckit/internal/dispatch"
	"github.com/mikehostetler/wreckit/internal/engine"
	"github.com/mikehostetler/wreckit/internal/git"
	"github.com/mikehostetler/wreckit/internal/gitgw"
	"github.com/mikehostetler/wreckit/internal/item"
	"github.com/mikehostetler/wreckit/internal/phase"
	"github.com/mikehostetler/wreckit/internal/scope"
	"github.com/mikehostetler/wreckit/internal/store"
	"github.com/mikehostetler/wreckit/internal/templates"
	"github.com/mikehostetler/wreckit/internal/workflow"
)

// runContext bundles the fully wired engine stack one command
// invocation drives: every subsystem from spec §4 constructed once,
// in dependency order, from the repository's wreckit.toml (or its
// defaults). Every wreckit command builds exactly one of these.
type runContext struct {
	Config *config.Config
	Engine *engine.Engine
	Store  *store.Store
	Gateway *gitgw.Gateway
	Driver *workflow.Driver
	RepoRoot string
}

// newRunContext resolves the git repository root from cwd, loads
// wreckit.toml, and wires the full subsystem stack. Any failure here
// is an invocation error (spec §6 exit code 2): a missing repo, an
// unparseable config file, or a broken prompt template set.
func newRunContext(dryRun bool) (*runContext, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}

	g := git.NewGit(cwd)
	if !g.IsRepo() {
		return nil, fmt.Errorf("not inside a git repository: %s", cwd)
	}
	root, err := g.Toplevel()
	if err != nil {
		return nil, fmt.Errorf("resolving repository root: %w", err)
	}

	cfg, err := config.Load(filepath.Join(root, "wreckit.toml"))
	if err != nil {
		return nil, fmt.Errorf("loading wreckit.toml: %w", err)
	}

	eng := engine.New()
	st := store.New(root)
	gw := gitgw.New(root, eng, gitgw.Config{
		RemoteName:      cfg.Git.RemoteName,
		BranchPrefix:    cfg.Git.BranchPrefix,
		RemoteAllowlist: cfg.Git.RemoteAllowlist,
		QualityGates:    cfg.QualityGates,
		SecretScan:      cfg.SecretScan,
	})

	backend := &dispatch.SubprocessBackend{
		BinaryPath: cfg.Dispatch.BinaryPath,
		BuildArgs:  buildClaudeArgs(cfg.Dispatch.CompletionSentinel),
	}
	dispatcher := dispatch.New(backend, eng)

	tmpl, err := templates.New()
	if err != nil {
		return nil, fmt.Errorf("loading prompt templates: %w", err)
	}
	tmpl = tmpl.WithOverrides(func(phaseName string) (string, bool) {
		path := st.PromptOverridePath(phaseName)
		data, readErr := os.ReadFile(path) //nolint:gosec // G304: phaseName is one of six fixed constants
		if readErr != nil {
			return "", false
		}
		return string(data), true
	})

	storyLimits := scope.Limits{
		MaxFiles:        cfg.Scope.MaxFiles,
		MaxLines:        cfg.Scope.MaxLines,
		MaxBytes:        cfg.Scope.MaxBytes,
		WarnThreshold:   cfg.Scope.WarnThreshold,
		ExcludePatterns: cfg.Scope.ExcludePatterns,
	}
	executor := phase.New(st, gw, dispatcher, tmpl, storyLimits, cfg.Dispatch.MaxAttempts)
	executor.DryRun = dryRun

	driver := workflow.New(st, executor, cfg.Git.BaseBranch)

	return &runContext{
		Config:   cfg,
		Engine:   eng,
		Store:    st,
		Gateway:  gw,
		Driver:   driver,
		RepoRoot: root,
	}, nil
}

// buildClaudeArgs translates a rendered prompt and an allowed-tools
// set into the backend binary's argv, the way the teacher's agent
// spawn commands build claude's -p/--allowedTools invocation.
func buildClaudeArgs(completionSentinel string) func(prompt string, allowedTools []string) []string {
	return func(prompt string, allowedTools []string) []string {
		args := []string{"-p", prompt}
		if len(allowedTools) > 0 {
			args = append(args, "--allowedTools", joinComma(allowedTools))
		}
		_ = completionSentinel // matched by the Dispatcher's own scan, not an argv flag
		return args
	}
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

// dependencyGraphError wraps item.ValidateDependencyGraph's failure
// with the invocation-error framing the CLI layer expects.
func validateGraph(items map[string]*item.Item) error {
	if err := item.ValidateDependencyGraph(items); err != nil {
		return fmt.Errorf("invalid depends_on graph: %w", err)
	}
	return nil
}
