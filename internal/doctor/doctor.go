// Package doctor implements environment precondition checks for
// wreckit: is git/gh on PATH, is the current directory inside a git
// repository, does .wreckit exist or look writable, does wreckit.toml
// parse. Grounded on the teacher's internal/doctor check shape
// (CheckResult's Name/Status/Message/Details/FixHint fields, a
// BaseCheck embedding a name/description/category, a FixableCheck
// adding an optional auto-remediation), narrowed from the teacher's
// town/rig/beads domain down to wreckit's single-repo preconditions.
package doctor

// Status is a check's outcome severity.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Category groups related checks for display.
type Category string

const (
	CategoryTooling Category = "tooling"
	CategoryRepo    Category = "repo"
	CategoryConfig  Category = "config"
)

// CheckResult is what a Check reports.
type CheckResult struct {
	Name    string
	Status  Status
	Message string
	Details []string
	FixHint string
}

// CheckContext carries the facts every check needs: the directory
// wreckit was invoked from, and the git repository root once resolved
// (empty if RepoCheck hasn't run yet or found none).
type CheckContext struct {
	Cwd      string
	RepoRoot string
}

// Check is one diagnosable precondition.
type Check interface {
	Name() string
	Category() Category
	Run(ctx *CheckContext) *CheckResult
}

// BaseCheck provides the Name/Category boilerplate every Check embeds.
type BaseCheck struct {
	CheckName     string
	CheckCategory Category
}

func (b BaseCheck) Name() string         { return b.CheckName }
func (b BaseCheck) Category() Category   { return b.CheckCategory }

// FixableCheck is a Check that also knows how to repair what it finds.
type FixableCheck struct {
	BaseCheck
}

// Fixer is implemented by checks whose failure can be auto-remediated.
type Fixer interface {
	Fix(ctx *CheckContext) error
}

// All returns every registered check, in the order `wreckit doctor`
// reports them.
func All() []Check {
	return []Check{
		&GitBinaryCheck{BaseCheck: BaseCheck{CheckName: "git-binary", CheckCategory: CategoryTooling}},
		&GhBinaryCheck{BaseCheck: BaseCheck{CheckName: "gh-binary", CheckCategory: CategoryTooling}},
		&RepoCheck{BaseCheck: BaseCheck{CheckName: "git-repo", CheckCategory: CategoryRepo}},
		&WreckitDirCheck{BaseCheck: BaseCheck{CheckName: "wreckit-dir", CheckCategory: CategoryRepo}},
		&ConfigCheck{BaseCheck: BaseCheck{CheckName: "wreckit-config", CheckCategory: CategoryConfig}},
	}
}

// Run executes every check in order, stopping early only when an
// earlier check recorded the repo root a later one needs (RepoCheck
// populates ctx.RepoRoot for WreckitDirCheck and ConfigCheck).
func Run(ctx *CheckContext) []*CheckResult {
	var results []*CheckResult
	for _, c := range All() {
		results = append(results, c.Run(ctx))
	}
	return results
}

// WorstStatus returns the most severe status among results, for the
// CLI's doctor exit code.
func WorstStatus(results []*CheckResult) Status {
	worst := StatusOK
	for _, r := range results {
		switch r.Status {
		case StatusError:
			return StatusError
		case StatusWarning:
			worst = StatusWarning
		}
	}
	return worst
}
