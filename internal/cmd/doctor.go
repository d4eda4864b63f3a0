package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mikehostetler/wreckit/internal/doctor"
	"github.com/mikehostetler/wreckit/internal/style"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that git/gh are available and the repository is set up for wreckit",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return NewSilentExit(ExitInvocationError)
	}

	ctx := &doctor.CheckContext{Cwd: cwd}
	results := doctor.Run(ctx)

	st := style.New(os.Stdout)
	for _, r := range results {
		var badge string
		switch r.Status {
		case doctor.StatusOK:
			badge = st.Badge("done")
		case doctor.StatusWarning:
			badge = st.Badge("skipped")
		default:
			badge = st.Badge("failed")
		}
		fmt.Printf("%s %-16s %s\n", badge, r.Name, r.Message)
		for _, d := range r.Details {
			fmt.Printf("    %s\n", d)
		}
		if r.FixHint != "" {
			fmt.Printf("    hint: %s\n", r.FixHint)
		}
	}

	if doctor.WorstStatus(results) == doctor.StatusError {
		return NewSilentExit(ExitItemsFailed)
	}
	return nil
}
