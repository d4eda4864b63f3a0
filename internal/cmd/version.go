package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mikehostetler/wreckit/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the wreckit version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.String())
		return nil
	},
}
