// Package store provides atomic, schema-validated reads and writes of
// the Wreckit filesystem layout under <repo>/.wreckit/, and path
// helpers for every known location. Grounded on the teacher's
// internal/util.AtomicWriteJSON write-tmp-then-rename protocol.
package store

import "path/filepath"

// Store resolves paths under a repository's .wreckit directory and
// performs atomic reads/writes against them.
type Store struct {
	repoRoot string
}

// New creates a Store rooted at repoRoot (the git repository root, not
// the .wreckit directory itself).
func New(repoRoot string) *Store {
	return &Store{repoRoot: repoRoot}
}

// RepoRoot returns the repository root this store was opened against.
func (s *Store) RepoRoot() string {
	return s.repoRoot
}

// WreckitDir returns <repo>/.wreckit.
func (s *Store) WreckitDir() string {
	return filepath.Join(s.repoRoot, ".wreckit")
}

// ItemsDir returns <repo>/.wreckit/items.
func (s *Store) ItemsDir() string {
	return filepath.Join(s.WreckitDir(), "items")
}

// ItemDir returns <repo>/.wreckit/items/<id>.
func (s *Store) ItemDir(id string) string {
	return filepath.Join(s.ItemsDir(), id)
}

// ItemJSONPath returns the path to an item's item.json.
func (s *Store) ItemJSONPath(id string) string {
	return filepath.Join(s.ItemDir(id), "item.json")
}

// ResearchMDPath returns the path to an item's research.md.
func (s *Store) ResearchMDPath(id string) string {
	return filepath.Join(s.ItemDir(id), "research.md")
}

// PlanMDPath returns the path to an item's plan.md.
func (s *Store) PlanMDPath(id string) string {
	return filepath.Join(s.ItemDir(id), "plan.md")
}

// PRDJSONPath returns the path to an item's prd.json.
func (s *Store) PRDJSONPath(id string) string {
	return filepath.Join(s.ItemDir(id), "prd.json")
}

// CritiqueMDPath returns the path to an item's critique.md.
func (s *Store) CritiqueMDPath(id string) string {
	return filepath.Join(s.ItemDir(id), "critique.md")
}

// IndexJSONPath returns <repo>/.wreckit/index.json.
func (s *Store) IndexJSONPath() string {
	return filepath.Join(s.WreckitDir(), "index.json")
}

// BatchProgressPath returns <repo>/.wreckit/batch-progress.json.
func (s *Store) BatchProgressPath() string {
	return filepath.Join(s.WreckitDir(), "batch-progress.json")
}

// SkillsJSONPath returns <repo>/.wreckit/skills.json.
func (s *Store) SkillsJSONPath() string {
	return filepath.Join(s.WreckitDir(), "skills.json")
}

// PromptsDir returns <repo>/.wreckit/prompts.
func (s *Store) PromptsDir() string {
	return filepath.Join(s.WreckitDir(), "prompts")
}

// PromptOverridePath returns the override path for a named prompt
// template, e.g. PromptOverridePath("research") -> prompts/research.md.
func (s *Store) PromptOverridePath(name string) string {
	return filepath.Join(s.PromptsDir(), name+".md")
}
