package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikehostetler/wreckit/internal/batch"
	"github.com/mikehostetler/wreckit/internal/style"
)

var batchOpts batch.Options

// registerBatchFlags attaches the bare-invocation batch flags (spec
// §6's CLI contract) to the root command.
func registerBatchFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&batchOpts.Parallel, "parallel", 1, "number of items to drive concurrently")
	cmd.Flags().BoolVar(&batchOpts.NoResume, "no-resume", false, "ignore any existing batch-progress.json and start fresh")
	cmd.Flags().BoolVar(&batchOpts.RetryFailed, "retry-failed", false, "requeue items a prior resumed run marked failed")
	cmd.Flags().BoolVar(&batchOpts.DryRun, "dry-run", false, "render prompts and validate scope without dispatching an agent or writing git history")
}

// runBatch is the root command's RunE: it drives every eligible item
// through the Item Workflow with a bounded worker pool.
func runBatch(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unknown command %q\n\nRun '%s --help' for available commands", args[0], buildCommandPath(cmd))
	}

	rc, err := newRunContext(batchOpts.DryRun)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return NewSilentExit(ExitInvocationError)
	}

	allItems, loadErrs := rc.Store.LoadAllItems()
	for _, e := range loadErrs {
		fmt.Fprintln(os.Stderr, "warning:", e)
	}
	if err := validateGraph(allItems); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return NewSilentExit(ExitInvocationError)
	}

	if batchOpts.Parallel <= 0 {
		batchOpts.Parallel = rc.Config.Batch.Parallel
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nreceived interrupt, cancelling in-flight agent invocations...")
			rc.Engine.CancelAllAgents()
			cancel()
		case <-ctx.Done():
		}
	}()

	orch := batch.New(rc.Store, rc.Engine, rc.Driver)
	summary, runErr := orch.Run(ctx, batchOpts, rc.Config.Dispatch.Timeout(), time.Now)

	printSummary(summary)
	if runErr != nil {
		return NewSilentExit(ExitItemsFailed)
	}
	if len(summary.Failed) > 0 {
		return NewSilentExit(ExitItemsFailed)
	}
	return nil
}

func printSummary(s batch.Summary) {
	st := style.New(os.Stdout)
	for _, id := range s.Completed {
		fmt.Printf("%s %s\n", st.ID(id), st.Badge("done"))
	}
	for _, id := range s.Failed {
		fmt.Printf("%s %s\n", st.ID(id), st.Badge("failed"))
	}
	for _, id := range s.Skipped {
		fmt.Printf("%s %s\n", st.ID(id), st.Badge("skipped"))
	}
	fmt.Printf("\n%d completed, %d failed, %d skipped\n", len(s.Completed), len(s.Failed), len(s.Skipped))
	if s.Aborted {
		fmt.Println("run aborted: progress saved, rerun to resume")
	}
}
