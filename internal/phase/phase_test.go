package phase

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikehostetler/wreckit/internal/dispatch"
	"github.com/mikehostetler/wreckit/internal/engine"
	"github.com/mikehostetler/wreckit/internal/gitgw"
	"github.com/mikehostetler/wreckit/internal/item"
	"github.com/mikehostetler/wreckit/internal/scope"
	"github.com/mikehostetler/wreckit/internal/store"
	"github.com/mikehostetler/wreckit/internal/templates"
)

// initTestRepo creates a fresh git repo with one commit, the same
// minimal fixture internal/gitgw's own tests use.
func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init"},
		{"config", "user.email", "test@test.com"},
		{"config", "user.name", "Test User"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if err := cmd.Run(); err != nil {
			t.Fatalf("git %v: %v", args, err)
		}
	}
	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("# Test\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	for _, args := range [][]string{{"add", "."}, {"commit", "-m", "initial"}} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if err := cmd.Run(); err != nil {
			t.Fatalf("git %v: %v", args, err)
		}
	}
	return dir
}

// fakeBackend lets each test control exactly what one agent invocation
// reports back, mirroring internal/dispatch's own test fake.
type fakeBackend struct {
	run func(ctx context.Context, req dispatch.Request) (dispatch.Result, error)
}

func (f *fakeBackend) SupportsToolRestriction() bool { return true }
func (f *fakeBackend) Run(ctx context.Context, req dispatch.Request) (dispatch.Result, error) {
	return f.run(ctx, req)
}

func succeed(_ context.Context, _ dispatch.Request) (dispatch.Result, error) {
	return dispatch.Result{Success: true, CompletionDetected: true}, nil
}

func newTestExecutor(t *testing.T, dir string, backend dispatch.Backend) *Executor {
	t.Helper()
	return newTestExecutorWithLimits(t, dir, backend, scope.Limits{MaxFiles: 10, MaxLines: 500, MaxBytes: 50_000})
}

func newTestExecutorWithLimits(t *testing.T, dir string, backend dispatch.Backend, limits scope.Limits) *Executor {
	t.Helper()
	st := store.New(dir)
	eng := engine.New()
	gw := gitgw.New(dir, eng, gitgw.Config{})
	d := dispatch.New(backend, eng)
	tmpl, err := templates.New()
	if err != nil {
		t.Fatalf("templates.New: %v", err)
	}
	return New(st, gw, d, tmpl, limits, 3)
}

func testItem(state item.State) *item.Item {
	return &item.Item{
		SchemaVersion: 1,
		ID:            "001-test-item",
		Title:         "Test item",
		Overview:      "A test item.",
		State:         state,
		CreatedAt:     fixedNow(),
		UpdatedAt:     fixedNow(),
	}
}

func fixedNow() time.Time {
	return time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
}

// addTestRemote gives a preflight-checked repo an origin so
// CheckGitPreflight's no-remote rule doesn't fire in pr/complete tests.
func addTestRemote(t *testing.T, dir string) {
	t.Helper()
	cmd := exec.Command("git", "remote", "add", "origin", "https://example.invalid/acme/repo.git")
	cmd.Dir = dir
	if err := cmd.Run(); err != nil {
		t.Fatalf("git remote add: %v", err)
	}
}

// stubGh installs a fake `gh` executable at the front of PATH for the
// duration of the test, printing fixedOutput for any invocation.
func stubGh(t *testing.T, fixedOutput string) {
	t.Helper()
	bin := t.TempDir()
	script := "#!/bin/sh\ncat <<'EOF'\n" + fixedOutput + "\nEOF\n"
	path := filepath.Join(bin, "gh")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake gh: %v", err)
	}
	t.Setenv("PATH", bin)
}
