// Package cli provides CLI configuration utilities.
package cli

import (
	"os"
	"sync"
)

var (
	name     string
	nameOnce sync.Once
)

// Name returns the wreckit CLI command name.
// Defaults to "wreckit", but can be overridden with the WRECKIT_COMMAND
// env var so it can be invoked under an alias without its help text and
// error messages going stale.
func Name() string {
	nameOnce.Do(func() {
		name = os.Getenv("WRECKIT_COMMAND")
		if name == "" {
			name = "wreckit"
		}
	})
	return name
}
