// Package config loads Wreckit's optional engine configuration file,
// wreckit.toml, at the repository root. Grounded on the teacher's
// internal/formula.ParseFile: read the file, toml.Decode into a typed
// struct, validate, return a typed error rather than panicking.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is Wreckit's engine-wide configuration. Every field has a
// documented default so an absent wreckit.toml is equivalent to
// Default().
type Config struct {
	// Git is the [git] table.
	Git GitConfig `toml:"git"`
	// Dispatch is the [dispatch] table.
	Dispatch DispatchConfig `toml:"dispatch"`
	// Batch is the [batch] table.
	Batch BatchConfig `toml:"batch"`
	// Scope is the [scope] table.
	Scope ScopeConfig `toml:"scope"`
	// QualityGates is the ordered shell commands run during the pr phase.
	QualityGates []string `toml:"quality_gates"`
	// SecretScan enables the added-line secret scan during the pr phase.
	SecretScan bool `toml:"secret_scan"`
}

// GitConfig configures the Git Gateway.
type GitConfig struct {
	RemoteName      string   `toml:"remote_name"`
	BranchPrefix    string   `toml:"branch_prefix"`
	BaseBranch      string   `toml:"base_branch"`
	RemoteAllowlist []string `toml:"remote_allowlist"`
}

// DispatchConfig configures the Agent Dispatcher.
type DispatchConfig struct {
	BinaryPath         string `toml:"binary_path"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	CompletionSentinel string `toml:"completion_sentinel"`
	DryRun             bool   `toml:"dry_run"`
	MaxAttempts        int    `toml:"max_attempts"`
}

// Timeout returns DispatchConfig.TimeoutSeconds as a time.Duration,
// falling back to the package default when unset.
func (d DispatchConfig) Timeout() time.Duration {
	if d.TimeoutSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// BatchConfig configures the Batch Orchestrator's defaults (overridable
// by CLI flags).
type BatchConfig struct {
	Parallel int `toml:"parallel"`
}

// ScopeConfig configures default story-scope limits (spec §4.C); a
// phase or item may still declare tighter limits.
type ScopeConfig struct {
	MaxFiles         int      `toml:"max_files"`
	MaxLines         int      `toml:"max_lines"`
	MaxBytes         int      `toml:"max_bytes"`
	WarnThreshold    float64  `toml:"warn_threshold"`
	ExcludePatterns  []string `toml:"exclude_patterns"`
}

// Default returns the configuration Wreckit runs with when no
// wreckit.toml is present.
func Default() *Config {
	return &Config{
		Git: GitConfig{
			RemoteName:   "origin",
			BranchPrefix: "item/",
			BaseBranch:   "main",
		},
		Dispatch: DispatchConfig{
			BinaryPath:         "claude",
			TimeoutSeconds:     3600,
			CompletionSentinel: "<promise>COMPLETE</promise>",
			MaxAttempts:        3,
		},
		Batch: BatchConfig{
			Parallel: 1,
		},
		Scope: ScopeConfig{
			MaxFiles:        25,
			MaxLines:        800,
			MaxBytes:        200 * 1024,
			WarnThreshold:   0.8,
			ExcludePatterns: []string{"*.lock", "go.sum", "package-lock.json"},
		},
		SecretScan: true,
	}
}

// Load reads wreckit.toml at path, merging over Default() so a partial
// file only overrides the tables it declares. A missing file is not an
// error: it returns Default() unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is caller-provided, not from untrusted input
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the few invariants that would otherwise surface as
// confusing failures deep in the engine.
func (c *Config) Validate() error {
	if c.Batch.Parallel < 1 {
		return fmt.Errorf("batch.parallel must be >=1, got %d", c.Batch.Parallel)
	}
	if c.Dispatch.MaxAttempts < 1 {
		return fmt.Errorf("dispatch.max_attempts must be >=1, got %d", c.Dispatch.MaxAttempts)
	}
	if c.Scope.WarnThreshold <= 0 || c.Scope.WarnThreshold > 1 {
		return fmt.Errorf("scope.warn_threshold must be in (0,1], got %v", c.Scope.WarnThreshold)
	}
	return nil
}
