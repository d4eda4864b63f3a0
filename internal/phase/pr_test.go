package phase

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/mikehostetler/wreckit/internal/dispatch"
	"github.com/mikehostetler/wreckit/internal/store"
)

func TestRunPR_NoPrFoundAfterAgentExhaustsRetries(t *testing.T) {
	dir := initTestRepo(t)
	addTestRemote(t, dir)
	st := store.New(dir)
	it := testItem("critique")
	prd := samplePRD()
	prd.Stories[0].Status = "done"
	if err := st.WritePRD(it.ID, &prd); err != nil {
		t.Fatalf("WritePRD: %v", err)
	}
	// No `gh` on PATH (git stays reachable): GetPrByBranch treats every
	// call as "no PR found".
	t.Setenv("PATH", t.TempDir()+string(os.PathListSeparator)+os.Getenv("PATH"))

	backend := &fakeBackend{run: succeed}
	e := newTestExecutor(t, dir, backend)
	base, berr := e.Gateway.CurrentBranch()
	if berr != nil {
		t.Fatalf("CurrentBranch: %v", berr)
	}

	result, err := e.RunPR(context.Background(), it, nil, time.Second, base, fixedNow())
	if err == nil {
		t.Fatal("expected pr phase to exhaust its retry budget when gh reports no PR")
	}
	if result.Success {
		t.Fatal("expected failure")
	}
}
