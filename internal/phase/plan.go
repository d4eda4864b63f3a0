package phase

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/mikehostetler/wreckit/internal/item"
	"github.com/mikehostetler/wreckit/internal/mcp"
	"github.com/mikehostetler/wreckit/internal/permissions"
	"github.com/mikehostetler/wreckit/internal/quality"
	"github.com/mikehostetler/wreckit/internal/scope"
	"github.com/mikehostetler/wreckit/internal/statemachine"
	"github.com/mikehostetler/wreckit/internal/store"
	"github.com/mikehostetler/wreckit/internal/werr"
)

// designOnlyAllowedPaths is plan.md and prd.json within the item
// directory (spec §4.F.2: "design-only").
func designOnlyAllowedPaths(st *store.Store, id string) []string {
	return []string{relPath(st, st.PlanMDPath(id)), relPath(st, st.PRDJSONPath(id))}
}

// RunPlan drives the plan phase: design-only scope, plan.md written to
// disk but prd.json persisted only through a structured save_prd tool
// call captured via internal/mcp — parsing a file the agent wrote
// instead is forbidden per spec §4.F.2.
func (e *Executor) RunPlan(ctx context.Context, it *item.Item, skillTools []string, timeout time.Duration, now time.Time) (Result, error) {
	tools, err := resolveTools(permissions.PhasePlan, skillTools)
	if err != nil {
		return Result{}, err
	}
	policy := scope.Policy{Kind: scope.DesignOnly, AllowedPaths: designOnlyAllowedPaths(e.Store, it.ID)}

	var capturedPRD *item.PRD

	ok, timedOut, attempts, errs := runLoop(e.MaxAttempts, func(_ int, feedback string) attemptOutcome {
		socketPath := filepath.Join(os.TempDir(), "wreckit-mcp-"+it.ID+"-plan.sock")
		_ = os.Remove(socketPath)
		srv, merr := mcp.New(socketPath)
		if merr != nil {
			return attemptOutcome{errs: []string{merr.Error()}}
		}
		defer srv.Close()
		go srv.Serve() //nolint:errcheck // listener close on defer ends Serve's Accept loop

		data := basePromptData(it, feedback)
		data.SavePRDTool = mcp.ToolSavePRD
		data.MCPSocketEnv = MCPSocketEnv
		prompt, rerr := e.Templates.Render("plan", data)
		if rerr != nil {
			return attemptOutcome{errs: []string{rerr.Error()}}
		}

		before, _ := e.Gateway.GetGitStatus()
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

		if !store.Exists(e.Store.PlanMDPath(it.ID)) {
			return attemptOutcome{errs: []string{"plan.md was not created"}}
		}
		if !srv.WasCalled(mcp.ToolSavePRD) {
			return attemptOutcome{errs: []string{werr.New(werr.McpToolNotCalled, "save_prd was never invoked; prd.json must be captured via the structured tool, not written or parsed from disk").Error()}}
		}
		prd, _ := srv.PRD()
		if prd == nil {
			return attemptOutcome{errs: []string{"save_prd was called but no PRD payload was captured"}}
		}

		after, _ := e.Gateway.GetGitStatus()
		if sc := scopeCheck(policy, before, after, nil); !sc.Valid {
			return attemptOutcome{errs: appendPrefixed("scope violation: ", sc.Violations)}
		}

		planContent, rerr := store.ReadMarkdown(e.Store.PlanMDPath(it.ID))
		if rerr != nil {
			return attemptOutcome{errs: []string{rerr.Error()}}
		}
		var combinedErrs []string
		if qr := quality.ValidatePlan(planContent); !qr.Valid {
			combinedErrs = append(combinedErrs, qr.Errors...)
		}
		if qr := quality.ValidateStories(prd); !qr.Valid {
			combinedErrs = append(combinedErrs, qr.Errors...)
		}
		if len(combinedErrs) > 0 {
			return attemptOutcome{errs: combinedErrs}
		}

		capturedPRD = prd
		return attemptOutcome{accepted: true}
	})

	if timedOut {
		return Result{Success: false, Item: it, Attempts: attempts, Errors: errs},
			werr.New(werr.PhaseTimedOut, "plan phase timed out")
	}
	if !ok {
		return Result{Success: false, Item: it, Attempts: attempts, Errors: errs},
			werr.New(werr.PhaseFailed, "plan phase exhausted its retry budget")
	}

	if err := e.Store.WritePRD(it.ID, capturedPRD); err != nil {
		return Result{Success: false, Item: it, Attempts: attempts, Errors: []string{err.Error()}}, err
	}

	updated, terr := persistTransition(e.Store, it, statemachine.TransitionContext{
		HasPlanMD: true,
		PRD:       capturedPRD,
	}, now)
	if terr != nil {
		return Result{Success: false, Item: it, Attempts: attempts, Errors: []string{terr.Error()}}, terr
	}
	return Result{Success: true, Item: updated, Attempts: attempts}, nil
}
