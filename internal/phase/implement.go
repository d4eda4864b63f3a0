package phase

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/mikehostetler/wreckit/internal/item"
	"github.com/mikehostetler/wreckit/internal/mcp"
	"github.com/mikehostetler/wreckit/internal/permissions"
	"github.com/mikehostetler/wreckit/internal/scope"
	"github.com/mikehostetler/wreckit/internal/statemachine"
	"github.com/mikehostetler/wreckit/internal/werr"
)

// RunImplement drives the implement phase: iterates pending stories one
// at a time, each a sub-run scoped by story diff-size limits (spec
// §4.F.2). A story flips to done only via a structured
// update_story_status tool call captured through internal/mcp, after a
// soft verification that the story exists and still carries acceptance
// criteria. The phase completes once every story is done; the item
// itself transitions planned -> implementing on entry and stays there
// (critique is a separate phase call driven by the Item Workflow).
func (e *Executor) RunImplement(ctx context.Context, it *item.Item, skillTools []string, timeout time.Duration, now time.Time) (Result, error) {
	tools, err := resolveTools(permissions.PhaseImplement, skillTools)
	if err != nil {
		return Result{}, err
	}

	prd, err := e.Store.ReadPRD(it.ID)
	if err != nil {
		return Result{}, werr.Wrap(werr.ArtifactNotCreated, "reading prd.json for implement phase", err)
	}

	if it.State != item.StateImplementing {
		updated, terr := persistTransition(e.Store, it, statemachine.TransitionContext{PRD: prd}, now)
		if terr != nil {
			return Result{Success: false, Item: it}, terr
		}
		it = updated
	}

	totalAttempts := 0
	for _, pending := range prd.PendingStories() {
		storyResult, serr := e.runStory(ctx, it, prd, pending, tools, timeout)
		totalAttempts += storyResult.Attempts
		if serr != nil {
			return Result{Success: false, Item: it, Attempts: totalAttempts, Errors: storyResult.Errors}, serr
		}
	}

	return Result{Success: true, Item: it, Attempts: totalAttempts}, nil
}

func (e *Executor) runStory(ctx context.Context, it *item.Item, prd *item.PRD, story item.Story, tools permissions.ToolSet, timeout time.Duration) (Result, error) {
	ok, timedOut, attempts, errs := runLoop(e.MaxAttempts, func(_ int, feedback string) attemptOutcome {
		socketPath := filepath.Join(os.TempDir(), "wreckit-mcp-"+it.ID+"-"+story.ID+".sock")
		_ = os.Remove(socketPath)
		srv, merr := mcp.New(socketPath)
		if merr != nil {
			return attemptOutcome{errs: []string{merr.Error()}}
		}
		defer srv.Close()
		go srv.Serve() //nolint:errcheck // listener close on defer ends Serve's Accept loop

		data := basePromptData(it, feedback)
		data.PendingStories = []item.Story{story}
		data.StoryStatusTool = mcp.ToolUpdateStoryStatus
		data.MaxFiles = e.StoryLimits.MaxFiles
		data.MaxLines = e.StoryLimits.MaxLines
		data.MaxBytes = e.StoryLimits.MaxBytes
		data.MCPSocketEnv = MCPSocketEnv
		prompt, rerr := e.Templates.Render("implement", data)
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

		if !srv.WasCalled(mcp.ToolUpdateStoryStatus) {
			return attemptOutcome{errs: []string{werr.New(werr.McpToolNotCalled, "update_story_status was never invoked for story "+story.ID).Error()}}
		}
		if !anyMarksDone(srv.StoryUpdates(), story.ID) {
			return attemptOutcome{errs: []string{"update_story_status was called but did not mark " + story.ID + " done"}}
		}

		// Soft verification: the story still exists and still carries
		// acceptance criteria, not a re-derivation of full story quality.
		current := prd.FindStory(story.ID)
		if current == nil || len(current.AcceptanceCriteria) == 0 {
			return attemptOutcome{errs: []string{"story " + story.ID + " lost its acceptance criteria before completion"}}
		}

		if diffStats, derr2 := e.Gateway.GetDiffStats("HEAD"); derr2 == nil {
			if sc := scope.CheckStoryLimits(diffStats.TotalFiles, diffStats.TotalLines, diffStats.TotalBytes, e.StoryLimits); !sc.Valid {
				return attemptOutcome{errs: appendPrefixed("scope violation: ", sc.Violations)}
			}
		}

		current.Status = item.StoryDone
		if err := e.Store.WritePRD(it.ID, prd); err != nil {
			return attemptOutcome{errs: []string{err.Error()}}
		}
		if _, cerr := e.Gateway.CommitAll("wreckit: complete " + story.ID); cerr != nil {
			return attemptOutcome{errs: []string{cerr.Error()}}
		}
		return attemptOutcome{accepted: true}
	})

	if timedOut {
		return Result{Attempts: attempts, Errors: errs}, werr.New(werr.PhaseTimedOut, "story "+story.ID+" timed out")
	}
	if !ok {
		return Result{Attempts: attempts, Errors: errs}, werr.New(werr.PhaseFailed, "story "+story.ID+" exhausted its retry budget")
	}
	return Result{Attempts: attempts}, nil
}

func anyMarksDone(updates []mcp.StoryStatusUpdate, storyID string) bool {
	for _, u := range updates {
		if u.StoryID == storyID && u.Status == item.StoryDone {
			return true
		}
	}
	return false
}
