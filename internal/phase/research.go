package phase

import (
	"context"
	"time"

	"github.com/mikehostetler/wreckit/internal/item"
	"github.com/mikehostetler/wreckit/internal/permissions"
	"github.com/mikehostetler/wreckit/internal/quality"
	"github.com/mikehostetler/wreckit/internal/scope"
	"github.com/mikehostetler/wreckit/internal/statemachine"
	"github.com/mikehostetler/wreckit/internal/store"
	"github.com/mikehostetler/wreckit/internal/werr"
)

// readOnlyAllowedPaths is the single file the research phase's readOnly
// policy permits to change (spec §4.F.2: "read-only except research.md").
func readOnlyAllowedPaths(st *store.Store, id string) []string {
	return []string{relPath(st, st.ResearchMDPath(id))}
}

func relPath(st *store.Store, abs string) string {
	root := st.RepoRoot()
	if len(abs) > len(root) && abs[:len(root)] == root {
		rel := abs[len(root):]
		for len(rel) > 0 && rel[0] == '/' {
			rel = rel[1:]
		}
		return rel
	}
	return abs
}

// RunResearch drives the research phase: read-only except research.md,
// quality-gated by quality.ValidateResearch, advancing the item to
// researched on success.
func (e *Executor) RunResearch(ctx context.Context, it *item.Item, skillTools []string, timeout time.Duration, now time.Time) (Result, error) {
	tools, err := resolveTools(permissions.PhaseResearch, skillTools)
	if err != nil {
		return Result{}, err
	}
	policy := scope.Policy{Kind: scope.ReadOnly, AllowedPaths: readOnlyAllowedPaths(e.Store, it.ID)}

	ok, timedOut, attempts, errs := runLoop(e.MaxAttempts, func(_ int, feedback string) attemptOutcome {
		prompt, rerr := e.Templates.Render("research", basePromptData(it, feedback))
		if rerr != nil {
			return attemptOutcome{errs: []string{rerr.Error()}}
		}

		before, _ := e.Gateway.GetGitStatus()
		result, derr := e.runAgent(ctx, prompt, tools, timeout)
		if derr != nil {
			return attemptOutcome{errs: []string{derr.Error()}}
		}
		if result.TimedOut {
			return attemptOutcome{timedOut: true}
		}
		if !result.Success {
			return attemptOutcome{errs: []string{"agent invocation failed: " + string(result.FailureClass)}}
		}

		if !store.Exists(e.Store.ResearchMDPath(it.ID)) {
			return attemptOutcome{errs: []string{"research.md was not created"}}
		}
		after, _ := e.Gateway.GetGitStatus()
		if sc := scopeCheck(policy, before, after, nil); !sc.Valid {
			return attemptOutcome{errs: appendPrefixed("scope violation: ", sc.Violations)}
		}

		content, rerr := store.ReadMarkdown(e.Store.ResearchMDPath(it.ID))
		if rerr != nil {
			return attemptOutcome{errs: []string{rerr.Error()}}
		}
		if qr := quality.ValidateResearch(content); !qr.Valid {
			return attemptOutcome{errs: qr.Errors}
		}
		return attemptOutcome{accepted: true}
	})

	if timedOut {
		return Result{Success: false, Item: it, Attempts: attempts, Errors: errs},
			werr.New(werr.PhaseTimedOut, "research phase timed out")
	}
	if !ok {
		return Result{Success: false, Item: it, Attempts: attempts, Errors: errs},
			werr.New(werr.PhaseFailed, "research phase exhausted its retry budget")
	}

	updated, terr := persistTransition(e.Store, it, statemachine.TransitionContext{HasResearchMD: true}, now)
	if terr != nil {
		return Result{Success: false, Item: it, Attempts: attempts, Errors: []string{terr.Error()}}, terr
	}
	return Result{Success: true, Item: updated, Attempts: attempts}, nil
}

func appendPrefixed(prefix string, items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = prefix + s
	}
	return out
}
