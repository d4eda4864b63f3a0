// Package item defines the Wreckit data model: the Item record that
// tracks a single unit of work through the phase state machine, its
// structured intake hints, and the derived repository-wide index.
package item

import (
	"fmt"
	"regexp"
	"time"
)

// State is a stage in the linear item lifecycle.
type State string

const (
	StateIdea         State = "idea"
	StateResearched   State = "researched"
	StatePlanned      State = "planned"
	StateImplementing State = "implementing"
	StateCritique     State = "critique"
	StateInPR         State = "in_pr"
	StateDone         State = "done"
)

// idPattern matches the canonical item id: zero-padded sequence number,
// hyphen, lowercased slug up to 50 chars.
var idPattern = regexp.MustCompile(`^\d{3,}-[a-z0-9-]+$`)

// ValidID reports whether id matches the canonical NNN-slug format.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Item is the unit of work, persisted as item.json under
// .wreckit/items/<id>/.
type Item struct {
	SchemaVersion int    `json:"schema_version"`
	ID            string `json:"id"`
	Title         string `json:"title"`
	Overview      string `json:"overview"`
	Section       string `json:"section,omitempty"`
	Campaign      string `json:"campaign,omitempty"`
	DependsOn     []string `json:"depends_on,omitempty"`

	State State `json:"state"`

	Branch   string `json:"branch,omitempty"`
	PRURL    string `json:"pr_url,omitempty"`
	PRNumber int    `json:"pr_number,omitempty"`
	LastError string `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Structured intake hints, populated by idea ingestion (out of scope
	// for this module; the core only reads and preserves these fields).
	ProblemStatement     string   `json:"problem_statement,omitempty"`
	Motivation           string   `json:"motivation,omitempty"`
	SuccessCriteria      []string `json:"success_criteria,omitempty"`
	TechnicalConstraints []string `json:"technical_constraints,omitempty"`
	ScopeIn              []string `json:"scope_in,omitempty"`
	OutOfScope           []string `json:"out_of_scope,omitempty"`
	PriorityHint         string   `json:"priority_hint,omitempty"`
	UrgencyHint          string   `json:"urgency_hint,omitempty"`
}

// Validate checks the item-level invariants that do not depend on
// sibling items (id format). DAG validation over depends_on is a
// collection-level concern handled by ValidateDependencyGraph.
func (it *Item) Validate() error {
	if !ValidID(it.ID) {
		return fmt.Errorf("invalid item id %q: must match ^\\d{3,}-[a-z0-9-]+$", it.ID)
	}
	switch it.State {
	case StateIdea, StateResearched, StatePlanned, StateImplementing, StateCritique, StateInPR, StateDone:
	default:
		return fmt.Errorf("invalid item state %q", it.State)
	}
	return nil
}

// ValidateDependencyGraph checks that depends_on forms a DAG across the
// given set of items (keyed by id). Grounded on the teacher's
// formula.checkCycles DFS-with-recursion-stack approach.
func ValidateDependencyGraph(items map[string]*Item) error {
	visited := make(map[string]bool)
	inStack := make(map[string]bool)

	var visit func(id string) error
	visit = func(id string) error {
		if inStack[id] {
			return fmt.Errorf("cycle detected involving item: %s", id)
		}
		if visited[id] {
			return nil
		}
		visited[id] = true
		inStack[id] = true

		it, ok := items[id]
		if ok {
			for _, dep := range it.DependsOn {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		inStack[id] = false
		return nil
	}

	for id := range items {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// DependenciesSatisfied reports whether every dependency of it is done.
func DependenciesSatisfied(it *Item, items map[string]*Item) bool {
	for _, dep := range it.DependsOn {
		d, ok := items[dep]
		if !ok || d.State != StateDone {
			return false
		}
	}
	return true
}

// IndexEntry is one row of the derived index.json.
type IndexEntry struct {
	ID        string   `json:"id"`
	State     State    `json:"state"`
	Title     string   `json:"title"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// Index is the derived, rebuildable listing of every scanned item.
type Index struct {
	SchemaVersion int          `json:"schema_version"`
	GeneratedAt   time.Time    `json:"generated_at"`
	Items         []IndexEntry `json:"items"`
}

// BuildIndex derives an Index from a set of items. Readers must tolerate
// staleness; this is a pure, recomputable projection.
func BuildIndex(items []*Item, generatedAt time.Time) *Index {
	entries := make([]IndexEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, IndexEntry{
			ID:        it.ID,
			State:     it.State,
			Title:     it.Title,
			DependsOn: it.DependsOn,
		})
	}
	return &Index{
		SchemaVersion: 1,
		GeneratedAt:   generatedAt,
		Items:         entries,
	}
}
