package phase

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/mikehostetler/wreckit/internal/dispatch"
	"github.com/mikehostetler/wreckit/internal/item"
	"github.com/mikehostetler/wreckit/internal/mcp"
	"github.com/mikehostetler/wreckit/internal/store"
)

// dialAndCall connects to the socket a phase handed the agent through
// the MCPSocketEnv environment variable and sends one structured tool
// call, the same wire shape internal/mcp's own tests use.
func dialAndCall(t *testing.T, socketPath, tool string, params interface{}) {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial %s: %v", socketPath, err)
	}
	defer conn.Close()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}
	line, err := json.Marshal(struct {
		Tool   string          `json:"tool"`
		Params json.RawMessage `json:"params"`
	}{Tool: tool, Params: raw})
	if err != nil {
		t.Fatal(err)
	}
	line = append(line, '\n')
	if _, err := conn.Write(line); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 4096)
	_, _ = conn.Read(buf)
}

func validPlanMD() string {
	return "## Overview\nDo the thing.\n\n" +
		"## Current State\nToday.\n\n" +
		"## Desired End State\nTomorrow.\n\n" +
		"## What We're NOT Doing\nNothing else.\n\n" +
		"## Implementation Approach\nStraightforward.\n\n" +
		"## Phases\n### Phase 1: Build it\nSteps.\n\n" +
		"## Testing Strategy\nUnit tests.\n"
}

func samplePRD() item.PRD {
	return item.PRD{Stories: []item.Story{
		{ID: "US-1", Title: "Story one", AcceptanceCriteria: []string{"a", "b"}, Priority: 1, Status: item.StoryPending},
	}}
}

func TestRunPlan_Success(t *testing.T) {
	dir := initTestRepo(t)
	st := store.New(dir)
	it := testItem("researched")

	backend := &fakeBackend{run: func(_ context.Context, req dispatch.Request) (dispatch.Result, error) {
		if err := store.WriteMarkdown(st.PlanMDPath(it.ID), validPlanMD()); err != nil {
			t.Fatalf("write plan.md: %v", err)
		}
		dialAndCall(t, req.Env[MCPSocketEnv], mcp.ToolSavePRD, samplePRD())
		return dispatch.Result{Success: true, CompletionDetected: true}, nil
	}}
	e := newTestExecutor(t, dir, backend)

	result, err := e.RunPlan(context.Background(), it, nil, time.Second, fixedNow())
	if err != nil {
		t.Fatalf("RunPlan: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
	if result.Item.State != "planned" {
		t.Errorf("state = %q, want planned", result.Item.State)
	}
}

func TestRunPlan_MCPToolNeverCalledFails(t *testing.T) {
	dir := initTestRepo(t)
	st := store.New(dir)
	it := testItem("researched")

	backend := &fakeBackend{run: func(_ context.Context, _ dispatch.Request) (dispatch.Result, error) {
		if err := store.WriteMarkdown(st.PlanMDPath(it.ID), validPlanMD()); err != nil {
			t.Fatalf("write plan.md: %v", err)
		}
		// save_prd is never invoked.
		return dispatch.Result{Success: true, CompletionDetected: true}, nil
	}}
	e := newTestExecutor(t, dir, backend)

	result, err := e.RunPlan(context.Background(), it, nil, time.Second, fixedNow())
	if err == nil {
		t.Fatal("expected failure when save_prd is never called")
	}
	if result.Success {
		t.Fatal("expected failure")
	}
}
