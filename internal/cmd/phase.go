package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikehostetler/wreckit/internal/item"
	"github.com/mikehostetler/wreckit/internal/phase"
	"github.com/mikehostetler/wreckit/internal/style"
)

// phaseRunner drives exactly one named phase for one item, returning
// the updated item, whether it was blocked (critique only), and any
// error. needsBranch reports whether this phase writes to the working
// tree and therefore must run on the item's branch rather than base.
type phaseRunner struct {
	name       string
	needsBranch bool
	run        func(ex *phase.Executor, ctx context.Context, it *item.Item, base string, timeout time.Duration, now time.Time) (*item.Item, bool, error)
}

var phaseRunners = []phaseRunner{
	{
		name: "research",
		run: func(ex *phase.Executor, ctx context.Context, it *item.Item, base string, timeout time.Duration, now time.Time) (*item.Item, bool, error) {
			res, err := ex.RunResearch(ctx, it, nil, timeout, now)
			return res.Item, false, err
		},
	},
	{
		name:        "plan",
		needsBranch: true,
		run: func(ex *phase.Executor, ctx context.Context, it *item.Item, base string, timeout time.Duration, now time.Time) (*item.Item, bool, error) {
			res, err := ex.RunPlan(ctx, it, nil, timeout, now)
			return res.Item, false, err
		},
	},
	{
		name:        "implement",
		needsBranch: true,
		run: func(ex *phase.Executor, ctx context.Context, it *item.Item, base string, timeout time.Duration, now time.Time) (*item.Item, bool, error) {
			res, err := ex.RunImplement(ctx, it, nil, timeout, now)
			return res.Item, false, err
		},
	},
	{
		name:        "critique",
		needsBranch: true,
		run: func(ex *phase.Executor, ctx context.Context, it *item.Item, base string, timeout time.Duration, now time.Time) (*item.Item, bool, error) {
			res, blocked, err := ex.RunCritique(ctx, it, nil, timeout, now)
			return res.Item, blocked, err
		},
	},
	{
		name:        "pr",
		needsBranch: true,
		run: func(ex *phase.Executor, ctx context.Context, it *item.Item, base string, timeout time.Duration, now time.Time) (*item.Item, bool, error) {
			res, err := ex.RunPR(ctx, it, nil, timeout, base, now)
			return res.Item, false, err
		},
	},
	{
		name:        "complete",
		needsBranch: true,
		run: func(ex *phase.Executor, ctx context.Context, it *item.Item, base string, timeout time.Duration, now time.Time) (*item.Item, bool, error) {
			res, err := ex.RunComplete(ctx, it, nil, timeout, base, true, now)
			return res.Item, false, err
		},
	},
}

// phaseCommands builds the six single-phase subcommands (spec §6:
// `wreckit <phase> <id>` drives exactly one phase).
func phaseCommands() []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(phaseRunners))
	for _, r := range phaseRunners {
		r := r
		var dryRun bool
		c := &cobra.Command{
			Use:   r.name + " <id>",
			Short: "Run the " + r.name + " phase for one item",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOnePhase(cmd, args[0], r, dryRun)
			},
		}
		c.Flags().BoolVar(&dryRun, "dry-run", false, "render the prompt and validate scope without dispatching an agent or writing git history")
		cmds = append(cmds, c)
	}
	return cmds
}

func runOnePhase(cmd *cobra.Command, id string, r phaseRunner, dryRun bool) error {
	rc, err := newRunContext(dryRun)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return NewSilentExit(ExitInvocationError)
	}

	it, err := rc.Store.ReadItem(id)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return NewSilentExit(ExitInvocationError)
	}

	if r.needsBranch {
		if _, err := rc.Gateway.EnsureBranch(rc.Config.Git.BaseBranch, it.ID); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return NewSilentExit(ExitItemsFailed)
		}
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

	updated, blocked, runErr := r.run(rc.Driver.Executor, ctx, it, rc.Config.Git.BaseBranch, rc.Config.Dispatch.Timeout(), time.Now())
	if updated != nil {
		if writeErr := rc.Store.WriteItem(updated); writeErr != nil {
			fmt.Fprintln(os.Stderr, "warning: failed to persist item state:", writeErr)
		}
	}

	st := style.New(os.Stdout)
	switch {
	case blocked:
		fmt.Printf("%s %s\n", st.ID(id), st.Badge("failed"))
		fmt.Fprintf(os.Stderr, "%s's critique found a blocking defect\n", id)
		return NewSilentExit(ExitItemsFailed)
	case runErr != nil:
		fmt.Printf("%s %s\n", st.ID(id), st.Badge("failed"))
		fmt.Fprintln(os.Stderr, "error:", runErr)
		return NewSilentExit(ExitItemsFailed)
	default:
		fmt.Printf("%s %s\n", st.ID(id), st.Badge("done"))
		return nil
	}
}
