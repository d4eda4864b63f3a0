// Command wreckit drives work items through wreckit's research, plan,
// implement, critique, pr, and complete phases.
package main

import (
	"os"

	"github.com/mikehostetler/wreckit/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
