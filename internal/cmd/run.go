package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikehostetler/wreckit/internal/style"
)

var runDryRun bool

var runCmd = &cobra.Command{
	Use:   "run <id>",
	Short: "Drive one item through every remaining phase",
	Args:  cobra.ExactArgs(1),
	RunE:  runSingleItem,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "render prompts and validate scope without dispatching an agent or writing git history")
}

func runSingleItem(cmd *cobra.Command, args []string) error {
	id := args[0]

	rc, err := newRunContext(runDryRun)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return NewSilentExit(ExitInvocationError)
	}

	it, err := rc.Store.ReadItem(id)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return NewSilentExit(ExitInvocationError)
	}

	allItems, loadErrs := rc.Store.LoadAllItems()
	for _, e := range loadErrs {
		fmt.Fprintln(os.Stderr, "warning:", e)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			rc.Engine.CancelAllAgents()
			cancel()
		case <-ctx.Done():
		}
	}()

	outcome, runErr := rc.Driver.Run(ctx, it, allItems, rc.Config.Dispatch.Timeout(), time.Now)
	printOutcome(id, outcome.Blocked, runErr)
	if outcome.Blocked {
		fmt.Fprintf(os.Stderr, "%s is blocked on an unfinished dependency\n", id)
		return NewSilentExit(ExitItemsFailed)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, "error:", runErr)
		return NewSilentExit(ExitItemsFailed)
	}
	return nil
}

func printOutcome(id string, blocked bool, err error) {
	st := style.New(os.Stdout)
	switch {
	case blocked:
		fmt.Printf("%s %s\n", st.ID(id), st.Badge("skipped"))
	case err != nil:
		fmt.Printf("%s %s\n", st.ID(id), st.Badge("failed"))
	default:
		fmt.Printf("%s %s\n", st.ID(id), st.Badge("done"))
	}
}
