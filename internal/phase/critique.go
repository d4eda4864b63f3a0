package phase

import (
	"context"
	"strings"
	"time"

	"github.com/mikehostetler/wreckit/internal/item"
	"github.com/mikehostetler/wreckit/internal/permissions"
	"github.com/mikehostetler/wreckit/internal/scope"
	"github.com/mikehostetler/wreckit/internal/statemachine"
	"github.com/mikehostetler/wreckit/internal/store"
	"github.com/mikehostetler/wreckit/internal/werr"
)

// blockingLinePrefix marks a critique.md line flagging a defect that
// must block advancement (per the rendered critique prompt's
// instructions). Its absence means the critique cleared.
const blockingLinePrefix = "BLOCKING:"

// RunCritique drives the critique phase: read-only except critique.md,
// an adversarial review of the completed stories. A non-empty "Blocking
// Issues" section stops advancement without exhausting the retry budget
// as a failure — the critique itself succeeded at its job of finding a
// defect, so it is reported as a non-accepting, non-retried outcome.
func (e *Executor) RunCritique(ctx context.Context, it *item.Item, skillTools []string, timeout time.Duration, now time.Time) (Result, bool, error) {
	tools, err := resolveTools(permissions.PhaseCritique, skillTools)
	if err != nil {
		return Result{}, false, err
	}
	policy := scope.Policy{Kind: scope.ReadOnly, AllowedPaths: []string{relPath(e.Store, e.Store.CritiqueMDPath(it.ID))}}

	prd, err := e.Store.ReadPRD(it.ID)
	if err != nil {
		return Result{}, false, werr.Wrap(werr.ArtifactNotCreated, "reading prd.json for critique phase", err)
	}

	blocked := false
	ok, timedOut, attempts, errs := runLoop(e.MaxAttempts, func(_ int, feedback string) attemptOutcome {
		prompt, rerr := e.Templates.Render("critique", basePromptData(it, feedback))
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

		if !store.Exists(e.Store.CritiqueMDPath(it.ID)) {
			return attemptOutcome{errs: []string{"critique.md was not created"}}
		}
		after, _ := e.Gateway.GetGitStatus()
		if sc := scopeCheck(policy, before, after, nil); !sc.Valid {
			return attemptOutcome{errs: appendPrefixed("scope violation: ", sc.Violations)}
		}

		content, rerr := store.ReadMarkdown(e.Store.CritiqueMDPath(it.ID))
		if rerr != nil {
			return attemptOutcome{errs: []string{rerr.Error()}}
		}
		if hasBlockingIssues(content) {
			blocked = true
		}
		return attemptOutcome{accepted: true}
	})

	if timedOut {
		return Result{Success: false, Item: it, Attempts: attempts, Errors: errs}, false,
			werr.New(werr.PhaseTimedOut, "critique phase timed out")
	}
	if !ok {
		return Result{Success: false, Item: it, Attempts: attempts, Errors: errs}, false,
			werr.New(werr.PhaseFailed, "critique phase exhausted its retry budget")
	}
	if blocked {
		return Result{Success: false, Item: it, Attempts: attempts, Errors: []string{"critique flagged a blocking defect"}}, true, nil
	}

	updated, terr := persistTransition(e.Store, it, statemachine.TransitionContext{PRD: prd}, now)
	if terr != nil {
		return Result{Success: false, Item: it, Attempts: attempts, Errors: []string{terr.Error()}}, false, terr
	}
	return Result{Success: true, Item: updated, Attempts: attempts}, false, nil
}

// hasBlockingIssues reports whether any line of critique.md starts with
// blockingLinePrefix.
func hasBlockingIssues(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), blockingLinePrefix) {
			return true
		}
	}
	return false
}
