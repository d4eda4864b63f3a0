// Package statemachine is the single source of truth for item state
// ordering (spec §4.E): a linear progression with one guarded
// transition function.
package statemachine

import (
	"time"

	"github.com/mikehostetler/wreckit/internal/item"
	"github.com/mikehostetler/wreckit/internal/werr"
)

var order = []item.State{
	item.StateIdea,
	item.StateResearched,
	item.StatePlanned,
	item.StateImplementing,
	item.StateCritique,
	item.StateInPR,
	item.StateDone,
}

// NextState returns the immediate successor of s, or "" if s is
// terminal or unrecognized.
func NextState(s item.State) item.State {
	for i, st := range order {
		if st == s && i+1 < len(order) {
			return order[i+1]
		}
	}
	return ""
}

// AllowedNextStates returns the 0-or-1-element set of states s may
// transition to — the progression is strictly linear, never branching.
func AllowedNextStates(s item.State) []item.State {
	next := NextState(s)
	if next == "" {
		return nil
	}
	return []item.State{next}
}

// TransitionContext carries the facts a transition guard needs, derived
// from the phase that just ran. Only the fields relevant to the
// attempted transition need to be populated.
type TransitionContext struct {
	HasResearchMD bool
	HasPlanMD     bool
	PRD           *item.PRD
	HasPR         bool
	PRMerged      bool
}

// ApplyStateTransition validates the guard for it.State's successor and,
// if satisfied, returns a new *item.Item with State advanced and
// UpdatedAt refreshed. It never mutates it in place and never returns a
// partially-applied result: either the full transition succeeds or a
// typed error is returned and the caller's original item is untouched.
func ApplyStateTransition(it *item.Item, ctx TransitionContext, now time.Time) (*item.Item, error) {
	next := NextState(it.State)
	if next == "" {
		return nil, werr.New(werr.GenericWreckit, "item "+it.ID+" has no next state from "+string(it.State))
	}

	if err := checkGuard(next, ctx); err != nil {
		return nil, err
	}

	updated := *it
	updated.State = next
	updated.UpdatedAt = now
	return &updated, nil
}

func checkGuard(next item.State, ctx TransitionContext) error {
	switch next {
	case item.StateResearched:
		if !ctx.HasResearchMD {
			return werr.New(werr.ArtifactNotCreated, "research.md must exist to advance to researched")
		}
	case item.StatePlanned:
		if !ctx.HasPlanMD {
			return werr.New(werr.ArtifactNotCreated, "plan.md must exist to advance to planned")
		}
		if ctx.PRD == nil {
			return werr.New(werr.ArtifactNotCreated, "prd.json must parse to advance to planned")
		}
		if len(ctx.PRD.PendingStories()) == 0 {
			return werr.New(werr.StoryQuality, "prd.json must have >=1 pending story to advance to planned")
		}
	case item.StateImplementing:
		if ctx.PRD == nil || len(ctx.PRD.PendingStories()) == 0 {
			return werr.New(werr.StoryQuality, "prd must have >=1 story with status=pending to advance to implementing")
		}
	case item.StateCritique:
		if ctx.PRD == nil || !ctx.PRD.AllDone() {
			return werr.New(werr.StoryQuality, "every prd story must be done to advance to critique")
		}
	case item.StateInPR:
		if ctx.PRD == nil || !ctx.PRD.AllDone() {
			return werr.New(werr.StoryQuality, "every prd story must be done to advance to in_pr")
		}
		if !ctx.HasPR {
			return werr.New(werr.PrCreationError, "a pr must exist for the current branch to advance to in_pr")
		}
	case item.StateDone:
		if !ctx.PRMerged {
			return werr.New(werr.PrCreationError, "pr must be merged to advance to done")
		}
	}
	return nil
}
