package phase

import (
	"context"
	"testing"
	"time"

	"github.com/mikehostetler/wreckit/internal/dispatch"
	"github.com/mikehostetler/wreckit/internal/store"
)

func TestRunCritique_CleanReviewAdvances(t *testing.T) {
	dir := initTestRepo(t)
	st := store.New(dir)
	it := testItem("implementing")
	prd := samplePRD()
	prd.Stories[0].Status = "done"
	if err := st.WritePRD(it.ID, &prd); err != nil {
		t.Fatalf("WritePRD: %v", err)
	}

	backend := &fakeBackend{run: func(_ context.Context, _ dispatch.Request) (dispatch.Result, error) {
		if err := store.WriteMarkdown(st.CritiqueMDPath(it.ID), "No issues found.\n"); err != nil {
			t.Fatalf("write critique.md: %v", err)
		}
		return dispatch.Result{Success: true, CompletionDetected: true}, nil
	}}
	e := newTestExecutor(t, dir, backend)

	result, blocked, err := e.RunCritique(context.Background(), it, nil, time.Second, fixedNow())
	if err != nil {
		t.Fatalf("RunCritique: %v", err)
	}
	if blocked {
		t.Fatal("expected not blocked")
	}
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
	if result.Item.State != "critique" {
		t.Errorf("state = %q, want critique", result.Item.State)
	}
}

func TestRunCritique_BlockingDefectDoesNotAdvance(t *testing.T) {
	dir := initTestRepo(t)
	st := store.New(dir)
	it := testItem("implementing")
	prd := samplePRD()
	prd.Stories[0].Status = "done"
	if err := st.WritePRD(it.ID, &prd); err != nil {
		t.Fatalf("WritePRD: %v", err)
	}

	backend := &fakeBackend{run: func(_ context.Context, _ dispatch.Request) (dispatch.Result, error) {
		if err := store.WriteMarkdown(st.CritiqueMDPath(it.ID), "BLOCKING: acceptance criteria not met for US-1\n"); err != nil {
			t.Fatalf("write critique.md: %v", err)
		}
		return dispatch.Result{Success: true, CompletionDetected: true}, nil
	}}
	e := newTestExecutor(t, dir, backend)

	result, blocked, err := e.RunCritique(context.Background(), it, nil, time.Second, fixedNow())
	if err != nil {
		t.Fatalf("RunCritique: %v", err)
	}
	if !blocked {
		t.Fatal("expected a blocking defect")
	}
	if result.Success {
		t.Fatal("expected Success=false when blocked")
	}
	if result.Item.State != "implementing" {
		t.Errorf("state = %q, want implementing (unchanged)", result.Item.State)
	}
}
