// Package permissions implements the Tool Allowlist (spec §4.I): a
// static phase -> tool-name-set mapping, narrowed by an optional
// per-phase skill set via intersection. Skills can only narrow, never
// widen, what a phase allows.
package permissions

import "github.com/mikehostetler/wreckit/internal/werr"

// Phase names the tool allowlist is keyed on. Distinct from item.State:
// several phases (idea, strategy, learn) have no corresponding state.
type Phase string

const (
	PhaseIdea     Phase = "idea"
	PhaseResearch Phase = "research"
	PhasePlan     Phase = "plan"
	PhaseImplement Phase = "implement"
	PhaseCritique Phase = "critique"
	PhasePR       Phase = "pr"
	PhaseComplete Phase = "complete"
	PhaseStrategy Phase = "strategy"
	PhaseLearn    Phase = "learn"
)

// structuredCaptureOnly marks phases whose only permitted tool is the
// structured-capture mechanism (no general-purpose file or shell tools).
const structuredCaptureTool = "mcp__wreckit__capture"

var phaseTools = map[Phase]map[string]bool{
	PhaseIdea:     set(structuredCaptureTool),
	PhaseResearch: set("Read", "Write", "Glob", "Grep"),
	PhasePlan:     set("Read", "Write", "Edit", "Glob", "Grep", "mcp__wreckit__save_prd"),
	PhaseImplement: set("Read", "Write", "Edit", "Glob", "Grep", "Bash", "mcp__wreckit__update_story_status"),
	// Not enumerated in the original allowlist table alongside the other
	// six phases; given critique.md's read-the-implementation,
	// write-a-review shape, it is given the same set as research.
	PhaseCritique: set("Read", "Write", "Glob", "Grep"),
	PhasePR:       set("Read", "Glob", "Grep", "Bash"),
	PhaseComplete: set("Read", "Glob", "Grep", "mcp__wreckit__complete"),
	PhaseStrategy: set("Read", "Write", "Glob", "Grep"),
	PhaseLearn:    set("Read", "Write", "Glob", "Grep"),
}

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// ToolSet is the ordered, de-duplicated set of tool names resolved for
// one phase invocation.
type ToolSet []string

// ForPhase returns the static allowlist for a phase. Returns an error
// for an unrecognized phase rather than silently granting nothing.
func ForPhase(p Phase) (ToolSet, error) {
	tools, ok := phaseTools[p]
	if !ok {
		return nil, werr.New(werr.GenericWreckit, "no tool allowlist defined for phase: "+string(p))
	}
	return toSortedSlice(tools), nil
}

// Intersect computes the effective tool set for a phase narrowed by an
// optional skill-declared tool set. A nil or empty skillTools leaves the
// phase set unchanged; a populated one can only remove names, never add
// one the phase doesn't already grant.
func Intersect(phaseTools ToolSet, skillTools []string) ToolSet {
	if len(skillTools) == 0 {
		return phaseTools
	}
	allowed := make(map[string]bool, len(skillTools))
	for _, t := range skillTools {
		allowed[t] = true
	}
	var out ToolSet
	for _, t := range phaseTools {
		if allowed[t] {
			out = append(out, t)
		}
	}
	return out
}

// Allows reports whether tool is permitted in the resolved set.
func (ts ToolSet) Allows(tool string) bool {
	for _, t := range ts {
		if t == tool {
			return true
		}
	}
	return false
}

func toSortedSlice(m map[string]bool) ToolSet {
	out := make(ToolSet, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	// Stable order matters for deterministic prompt rendering and tests;
	// a simple insertion sort is plenty for allowlists this small.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
