// Package phase implements the Phase Executor (spec §4.F), the heart of
// Wreckit: given an item and a phase, it renders a prompt, dispatches an
// agent invocation, verifies the resulting artifact against the phase's
// scope policy and quality validators, and applies the item's state
// transition on success. Grounded on the teacher's internal/refinery
// attempt-and-retry loop shape, generalized from a single fixed workflow
// into one parameterized by the six phase specifics in spec §4.F.2.
package phase

import (
	"context"
	"strings"
	"time"

	"github.com/mikehostetler/wreckit/internal/dispatch"
	"github.com/mikehostetler/wreckit/internal/git"
	"github.com/mikehostetler/wreckit/internal/gitgw"
	"github.com/mikehostetler/wreckit/internal/item"
	"github.com/mikehostetler/wreckit/internal/permissions"
	"github.com/mikehostetler/wreckit/internal/scope"
	"github.com/mikehostetler/wreckit/internal/statemachine"
	"github.com/mikehostetler/wreckit/internal/store"
	"github.com/mikehostetler/wreckit/internal/templates"
	"github.com/mikehostetler/wreckit/internal/werr"
)

const defaultMaxAttempts = 3

// MCPSocketEnv is the environment variable a dispatched agent's MCP
// client reads to find the phase's structured-capture socket.
const MCPSocketEnv = "WRECKIT_MCP_SOCKET"

// Executor runs phases for items in one working tree. One Executor is
// shared across every item a Batch Orchestrator run drives.
type Executor struct {
	Store       *store.Store
	Gateway     *gitgw.Gateway
	Dispatcher  *dispatch.Dispatcher
	Templates   *templates.Templates
	MaxAttempts int
	StoryLimits scope.Limits
	DryRun      bool
}

// New constructs an Executor with defaulted MaxAttempts.
func New(st *store.Store, gw *gitgw.Gateway, d *dispatch.Dispatcher, tmpl *templates.Templates, storyLimits scope.Limits, maxAttempts int) *Executor {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Executor{
		Store:       st,
		Gateway:     gw,
		Dispatcher:  d,
		Templates:   tmpl,
		MaxAttempts: maxAttempts,
		StoryLimits: storyLimits,
	}
}

// Result is the outcome of running one phase to completion or exhaustion
// of its retry budget (spec §4.F step 10).
type Result struct {
	Success  bool
	Item     *item.Item
	Attempts int
	Errors   []string
}

// attemptOutcome is what one attempt closure reports back to runLoop.
type attemptOutcome struct {
	accepted bool
	errs     []string
	timedOut bool
}

// runLoop drives the READY -> PROMPTING -> ... -> ACCEPTED|exhausted
// state machine from spec §4.F.3 generically: it calls attempt with
// accumulated feedback from the previous round, stopping on acceptance,
// on a hard timeout, or once maxAttempts is exhausted. Spec §4.F step 5
// treats these as distinct terminal outcomes (retry-and-exhaust vs.
// stop-immediately-on-timeout), so the timed-out return is reported
// separately rather than folded into the same "exhausted" signal.
func runLoop(maxAttempts int, attempt func(attemptNum int, feedback string) attemptOutcome) (accepted bool, timedOut bool, attempts int, errs []string) {
	feedback := ""
	var lastErrs []string
	for n := 1; n <= maxAttempts; n++ {
		outcome := attempt(n, feedback)
		if outcome.accepted {
			return true, false, n, nil
		}
		lastErrs = outcome.errs
		if outcome.timedOut {
			return false, true, n, append([]string{"agent invocation timed out"}, outcome.errs...)
		}
		feedback = strings.Join(outcome.errs, "\n")
	}
	return false, false, maxAttempts, lastErrs
}

// basePromptData seeds the substitution fields every phase template
// references, so call sites only need to set their own phase-specific
// fields on top of it.
func basePromptData(it *item.Item, feedback string) templates.PromptData {
	return templates.PromptData{
		ID:               it.ID,
		Title:            it.Title,
		Overview:         it.Overview,
		Feedback:         feedback,
		CompletionSignal: dispatch.DefaultCompletionSentinel,
	}
}

// resolveTools computes the effective tool set for a phase, narrowed by
// an optional skill-declared subset (spec §4.I). A nil/empty skillTools
// leaves the phase allowlist unchanged.
func resolveTools(ph permissions.Phase, skillTools []string) (permissions.ToolSet, error) {
	phaseSet, err := permissions.ForPhase(ph)
	if err != nil {
		return nil, err
	}
	return permissions.Intersect(phaseSet, skillTools), nil
}

// runAgent renders and dispatches one attempt's prompt, returning the raw
// dispatch result. Callers interpret Success/TimedOut/FailureClass.
func (e *Executor) runAgent(ctx context.Context, prompt string, tools permissions.ToolSet, timeout time.Duration) (dispatch.Result, error) {
	return e.runAgentWithSocket(ctx, prompt, tools, timeout, "")
}

// runAgentWithSocket is runAgent for phases that also need to tell the
// agent where to dial its MCP capture server.
func (e *Executor) runAgentWithSocket(ctx context.Context, prompt string, tools permissions.ToolSet, timeout time.Duration, socketPath string) (dispatch.Result, error) {
	req := dispatch.Request{
		WorkDir:      e.Store.RepoRoot(),
		Prompt:       prompt,
		AllowedTools: []string(tools),
		Timeout:      timeout,
		DryRun:       e.DryRun,
	}
	if socketPath != "" {
		req.Env = map[string]string{MCPSocketEnv: socketPath}
	}
	return e.Dispatcher.Run(ctx, req)
}

// scopeCheck diffs before/after git status against a policy's allowed
// paths, applying exclude patterns first. Scoped's diff-size limits need
// numstat detail this function doesn't have; callers under a scoped
// policy additionally call gitgw.GetDiffStats and scope.CheckStoryLimits.
func scopeCheck(policy scope.Policy, before, after []git.GitFileChange, excludePatterns []string) scope.CheckResult {
	if policy.Kind == scope.Unrestricted {
		return scope.CheckResult{Valid: true}
	}
	changed := scope.DiffPaths(before, after)
	changed = scope.ExcludeMatching(changed, excludePatterns)
	return scope.CheckAllowedPaths(changed, policy.AllowedPaths)
}

// persistTransition applies the state machine's guarded transition and
// atomically writes the resulting item, never mutating it in place on
// failure (statemachine.ApplyStateTransition's own guarantee).
func persistTransition(st *store.Store, it *item.Item, tctx statemachine.TransitionContext, now time.Time) (*item.Item, error) {
	updated, err := statemachine.ApplyStateTransition(it, tctx, now)
	if err != nil {
		return nil, err
	}
	if err := st.WriteItem(updated); err != nil {
		return nil, werr.Wrap(werr.Git, "persisting item after phase transition", err)
	}
	return updated, nil
}
