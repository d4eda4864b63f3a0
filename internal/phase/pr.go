package phase

import (
	"context"
	"time"

	"github.com/mikehostetler/wreckit/internal/item"
	"github.com/mikehostetler/wreckit/internal/permissions"
	"github.com/mikehostetler/wreckit/internal/statemachine"
	"github.com/mikehostetler/wreckit/internal/werr"
)

// RunPR drives the pr phase: preflight before dispatch, then an agent
// invocation with Bash access runs the project's quality gates, pushes
// the branch, and creates or updates the pull request via `gh` itself
// (spec §4.F.2) — the Phase Executor verifies the result rather than
// performing the gh calls itself, then polls mergeability once
// (undetermined is tolerated) before advancing the item.
func (e *Executor) RunPR(ctx context.Context, it *item.Item, skillTools []string, timeout time.Duration, base string, now time.Time) (Result, error) {
	tools, err := resolveTools(permissions.PhasePR, skillTools)
	if err != nil {
		return Result{}, err
	}
	prd, err := e.Store.ReadPRD(it.ID)
	if err != nil {
		return Result{}, werr.Wrap(werr.ArtifactNotCreated, "reading prd.json for pr phase", err)
	}
	branch := e.Gateway.BranchName(it.ID)

	if issues, perr := e.Gateway.CheckGitPreflight(base); perr == nil && len(issues) > 0 {
		var msgs []string
		for _, iss := range issues {
			msgs = append(msgs, string(iss.Code)+": "+iss.Message)
		}
		return Result{Success: false, Item: it, Errors: msgs}, werr.New(werr.PhaseFailed, "git preflight failed for pr phase")
	}

	var prURL string
	var prNumber int
	ok, timedOut, attempts, errs := runLoop(e.MaxAttempts, func(_ int, feedback string) attemptOutcome {
		data := basePromptData(it, feedback)
		data.Branch, data.BaseBranch = branch, base
		prompt, rerr := e.Templates.Render("pr", data)
		if rerr != nil {
			return attemptOutcome{errs: []string{rerr.Error()}}
		}

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

		prInfo, perr := e.Gateway.GetPrByBranch(ctx, branch)
		if perr != nil || prInfo == nil {
			return attemptOutcome{errs: []string{"no pull request found for branch " + branch + " after the pr phase ran"}}
		}
		prURL, prNumber = prInfo.URL, prInfo.Number
		return attemptOutcome{accepted: true}
	})

	if timedOut {
		return Result{Success: false, Item: it, Attempts: attempts, Errors: errs},
			werr.New(werr.PhaseTimedOut, "pr phase timed out")
	}
	if !ok {
		return Result{Success: false, Item: it, Attempts: attempts, Errors: errs},
			werr.New(werr.PhaseFailed, "pr phase exhausted its retry budget")
	}

	// Mergeability is polled once and tolerated as undetermined; it does
	// not gate advancement to in_pr.
	_, _ = e.Gateway.CheckPrMergeability(ctx, branch)

	it.PRURL = prURL
	it.PRNumber = prNumber
	updated, terr := persistTransition(e.Store, it, statemachine.TransitionContext{PRD: prd, HasPR: true}, now)
	if terr != nil {
		return Result{Success: false, Item: it, Attempts: attempts, Errors: []string{terr.Error()}}, terr
	}
	return Result{Success: true, Item: updated, Attempts: attempts}, nil
}
