package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/mikehostetler/wreckit/internal/engine"
)

type fakeBackend struct {
	restrict bool
	result   Result
	err      error
}

func (f *fakeBackend) SupportsToolRestriction() bool { return f.restrict }
func (f *fakeBackend) Run(ctx context.Context, req Request) (Result, error) {
	return f.result, f.err
}

func TestRun_DryRunShortCircuits(t *testing.T) {
	d := New(&fakeBackend{}, engine.New())
	result, err := d.Run(context.Background(), Request{Prompt: "hello", DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Fatal("expected dry-run to report success")
	}
}

func TestRun_RestrictedToolsFailFastWithoutSupport(t *testing.T) {
	d := New(&fakeBackend{restrict: false}, engine.New())
	_, err := d.Run(context.Background(), Request{Prompt: "hi", AllowedTools: []string{"Read"}})
	if err == nil {
		t.Fatal("expected a configuration error when backend cannot restrict tools")
	}
}

func TestRun_RegistersAndUnregistersAgent(t *testing.T) {
	eng := engine.New()
	backend := &fakeBackend{restrict: true, result: Result{Success: true}}
	d := New(backend, eng)

	if _, err := d.Run(context.Background(), Request{Prompt: "hi"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if count := eng.ActiveAgentCount(); count != 0 {
		t.Fatalf("expected agent to be unregistered after completion, got %d active", count)
	}
}

func TestRun_TimeoutSurfacesTimedOut(t *testing.T) {
	eng := engine.New()
	d := New(&timeoutBackend{}, eng)

	result, err := d.Run(context.Background(), Request{Prompt: "hi", Timeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.TimedOut {
		t.Fatal("expected TimedOut=true when the deadline fires before a terminal event")
	}
}

type timeoutBackend struct{}

func (timeoutBackend) SupportsToolRestriction() bool { return true }
func (timeoutBackend) Run(ctx context.Context, req Request) (Result, error) {
	<-ctx.Done()
	return Result{}, nil
}
