package progress

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikehostetler/wreckit/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".wreckit"), 0o755); err != nil {
		t.Fatal(err)
	}
	return store.New(root)
}

func TestReadWrite_RoundTrip(t *testing.T) {
	s := newStore(t)
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	rec := New(2, []string{"US-1", "US-2"}, now)

	if err := Write(s, rec, now); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := Read(s)
	if got == nil {
		t.Fatal("expected a record")
	}
	if got.SessionID != rec.SessionID || got.Parallel != 2 {
		t.Fatalf("unexpected round trip: %+v", got)
	}
}

func TestRead_MissingFileReturnsNil(t *testing.T) {
	s := newStore(t)
	if got := Read(s); got != nil {
		t.Fatalf("expected nil for missing file, got %+v", got)
	}
}

func TestRead_WrongSchemaVersionReturnsNil(t *testing.T) {
	s := newStore(t)
	if err := os.WriteFile(s.BatchProgressPath(), []byte(`{"schema_version": 99}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Read(s); got != nil {
		t.Fatalf("expected nil for unknown schema version, got %+v", got)
	}
}

func TestClear_IdempotentOnMissingFile(t *testing.T) {
	s := newStore(t)
	if err := Clear(s); err != nil {
		t.Fatalf("Clear on absent file should not error: %v", err)
	}
}

func TestIsStale_AgedOut(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	rec := New(1, nil, now.Add(-25*time.Hour))
	rec.PID = os.Getpid()
	if !IsStale(rec, now) {
		t.Fatal("expected a 25h-old record to be stale")
	}
}

func TestIsStale_DeadPID(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	rec := New(1, nil, now)
	rec.PID = deadPID(t)
	if !IsStale(rec, now) {
		t.Fatal("expected a record owned by a dead pid to be stale")
	}
}

func TestIsStale_LiveRecentIsNotStale(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	rec := New(1, nil, now)
	rec.PID = os.Getpid()
	if IsStale(rec, now) {
		t.Fatal("expected a fresh record owned by this process to not be stale")
	}
}

// deadPID returns a PID very unlikely to be live: start a trivial
// process, wait for it to exit, and reuse its former PID.
func deadPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("true")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start helper process: %v", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Wait()
	return pid
}
