package phase

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/mikehostetler/wreckit/internal/item"
	"github.com/mikehostetler/wreckit/internal/mcp"
	"github.com/mikehostetler/wreckit/internal/permissions"
	"github.com/mikehostetler/wreckit/internal/statemachine"
	"github.com/mikehostetler/wreckit/internal/werr"
)

// RunComplete drives the complete phase: dispatches an agent (read-only
// tools plus the structured complete tool) to assert verified delivery,
// then independently confirms against GitHub's own PR state — PR
// merged, base branch matches config, head matches the item branch,
// mergeCommitOid populated, checks passed when available (spec §4.F.2)
// — before cleaning up the feature branch. The agent's self-reported
// completion record is a second signal, not a substitute, for the gh
// lookup: gh's answer wins whenever the two disagree.
func (e *Executor) RunComplete(ctx context.Context, it *item.Item, skillTools []string, timeout time.Duration, base string, deleteRemote bool, now time.Time) (Result, error) {
	tools, err := resolveTools(permissions.PhaseComplete, skillTools)
	if err != nil {
		return Result{}, err
	}
	branch := e.Gateway.BranchName(it.ID)

	ok, timedOut, attempts, errs := runLoop(e.MaxAttempts, func(_ int, feedback string) attemptOutcome {
		socketPath := filepath.Join(os.TempDir(), "wreckit-mcp-"+it.ID+"-complete.sock")
		_ = os.Remove(socketPath)
		srv, merr := mcp.New(socketPath)
		if merr != nil {
			return attemptOutcome{errs: []string{merr.Error()}}
		}
		defer srv.Close()
		go srv.Serve() //nolint:errcheck // listener close on defer ends Serve's Accept loop

		data := basePromptData(it, feedback)
		data.Branch, data.BaseBranch = branch, base
		data.CompleteTool = mcp.ToolComplete
		data.MCPSocketEnv = MCPSocketEnv
		prompt, rerr := e.Templates.Render("complete", data)
		if rerr != nil {
			return attemptOutcome{errs: []string{rerr.Error()}}
		}

		result, derr := e.runAgentWithSocket(ctx, prompt, tools, timeout, srv.SocketPath())
		if derr != nil {
			return attemptOutcome{errs: []string{derr.Error()}}
		}
		if result.TimedOut {
			return attemptOutcome{timedOut: true}
		}
		if !result.Success {
			return attemptOutcome{errs: []string{"agent invocation failed: " + string(result.FailureClass)}}
		}
		if !srv.WasCalled(mcp.ToolComplete) {
			return attemptOutcome{errs: []string{werr.New(werr.McpToolNotCalled, "complete tool was never invoked").Error()}}
		}

		details, derr2 := e.Gateway.GetPrDetails(ctx, branch)
		if derr2 != nil {
			return attemptOutcome{errs: []string{derr2.Error()}}
		}
		var verifyErrs []string
		if !details.Merged {
			verifyErrs = append(verifyErrs, "pr is not merged")
		}
		if details.BaseRefName != base {
			verifyErrs = append(verifyErrs, "pr base branch "+details.BaseRefName+" does not match configured base "+base)
		}
		if details.HeadRefName != branch {
			verifyErrs = append(verifyErrs, "pr head branch "+details.HeadRefName+" does not match item branch "+branch)
		}
		if details.MergeCommitOid == "" {
			verifyErrs = append(verifyErrs, "pr has no merge commit oid")
		}
		if !details.ChecksPassed {
			verifyErrs = append(verifyErrs, "pr checks have not all passed")
		}
		if len(verifyErrs) > 0 {
			return attemptOutcome{errs: verifyErrs}
		}
		return attemptOutcome{accepted: true}
	})

	if timedOut {
		return Result{Success: false, Item: it, Attempts: attempts, Errors: errs},
			werr.New(werr.PhaseTimedOut, "complete phase timed out")
	}
	if !ok {
		return Result{Success: false, Item: it, Attempts: attempts, Errors: errs},
			werr.New(werr.PhaseFailed, "complete phase exhausted its retry budget")
	}

	updated, terr := persistTransition(e.Store, it, statemachine.TransitionContext{PRMerged: true}, now)
	if terr != nil {
		return Result{Success: false, Item: it, Attempts: attempts, Errors: []string{terr.Error()}}, terr
	}

	if cerr := e.Gateway.CleanupBranch(branch, deleteRemote); cerr != nil {
		return Result{Success: true, Item: updated, Attempts: attempts, Errors: []string{"branch cleanup: " + cerr.Error()}}, nil
	}
	return Result{Success: true, Item: updated, Attempts: attempts}, nil
}
