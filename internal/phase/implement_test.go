package phase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mikehostetler/wreckit/internal/dispatch"
	"github.com/mikehostetler/wreckit/internal/item"
	"github.com/mikehostetler/wreckit/internal/mcp"
	"github.com/mikehostetler/wreckit/internal/scope"
	"github.com/mikehostetler/wreckit/internal/store"
)

func setupImplementingItem(t *testing.T, st *store.Store, it *item.Item) *item.PRD {
	t.Helper()
	prd := samplePRD()
	if err := st.WritePRD(it.ID, &prd); err != nil {
		t.Fatalf("WritePRD: %v", err)
	}
	return &prd
}

func TestRunImplement_Success(t *testing.T) {
	dir := initTestRepo(t)
	st := store.New(dir)
	it := testItem("planned")
	setupImplementingItem(t, st, it)
	if err := st.WriteItem(it); err != nil {
		t.Fatalf("WriteItem: %v", err)
	}

	backend := &fakeBackend{run: func(_ context.Context, req dispatch.Request) (dispatch.Result, error) {
		if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Test\nOne more line.\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		dialAndCall(t, req.Env[MCPSocketEnv], mcp.ToolUpdateStoryStatus, struct {
			StoryID string          `json:"story_id"`
			Status  item.StoryStatus `json:"status"`
		}{StoryID: "US-1", Status: item.StoryDone})
		return dispatch.Result{Success: true, CompletionDetected: true}, nil
	}}
	e := newTestExecutor(t, dir, backend)

	result, err := e.RunImplement(context.Background(), it, nil, time.Second, fixedNow())
	if err != nil {
		t.Fatalf("RunImplement: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}

	prd, rerr := st.ReadPRD(it.ID)
	if rerr != nil {
		t.Fatalf("ReadPRD: %v", rerr)
	}
	if !prd.AllDone() {
		t.Error("expected every story to be done")
	}
}

func TestRunImplement_DiffLimitViolationFails(t *testing.T) {
	dir := initTestRepo(t)
	st := store.New(dir)
	it := testItem("planned")
	setupImplementingItem(t, st, it)
	if err := st.WriteItem(it); err != nil {
		t.Fatalf("WriteItem: %v", err)
	}

	backend := &fakeBackend{run: func(_ context.Context, req dispatch.Request) (dispatch.Result, error) {
		lines := strings.Repeat("line\n", 50)
		if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte(lines), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		dialAndCall(t, req.Env[MCPSocketEnv], mcp.ToolUpdateStoryStatus, struct {
			StoryID string          `json:"story_id"`
			Status  item.StoryStatus `json:"status"`
		}{StoryID: "US-1", Status: item.StoryDone})
		return dispatch.Result{Success: true, CompletionDetected: true}, nil
	}}
	e := newTestExecutorWithLimits(t, dir, backend, scope.Limits{MaxFiles: 10, MaxLines: 5, MaxBytes: 50_000})

	result, err := e.RunImplement(context.Background(), it, nil, time.Second, fixedNow())
	if err == nil {
		t.Fatal("expected the story's diff-size limit to be exceeded")
	}
	if result.Success {
		t.Fatal("expected failure")
	}
}
