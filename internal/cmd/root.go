// Package cmd provides wreckit's cobra command tree.
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikehostetler/wreckit/internal/cli"
	"github.com/mikehostetler/wreckit/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "wreckit", // overridden in init() from WRECKIT_COMMAND
	Short:   "Drive work items through research, plan, implement, critique, and PR",
	Version: version.String(),
	Long:    "",
	RunE:    runBatch,
}

func init() {
	cmdName := cli.Name()
	rootCmd.Use = cmdName
	rootCmd.Long = fmt.Sprintf(`%s drives one or more work items through a fixed sequence of
agent-run phases — research, plan, implement, critique, pr, complete —
recording progress so a killed run can resume without redoing finished
work.

Invoked with no subcommand, it batches over every eligible item.`, cmdName)

	registerBatchFlags(rootCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(phaseCommands()...)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command and returns the process exit code.
// The caller (main) should pass this straight to os.Exit.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if code, ok := IsSilentExit(err); ok {
			return code
		}
		// cobra has already printed the error.
		return ExitInvocationError
	}
	return ExitClean
}

// buildCommandPath walks the command hierarchy to build the full
// invocation path, e.g. "wreckit research", for error messages.
func buildCommandPath(cmd *cobra.Command) string {
	var parts []string
	for c := cmd; c != nil; c = c.Parent() {
		parts = append([]string{c.Name()}, parts...)
	}
	return strings.Join(parts, " ")
}
