// Package workflow implements the Item Workflow (spec §4.G): given one
// item, repeatedly compute its next phase from the state machine,
// create or switch to the item's branch before the first
// write-producing phase, and call into the Phase Executor until the
// item reaches a terminal state or a phase fails. Grounded on the
// teacher's internal/refinery.Manager.completeMR: persist outcome,
// fold non-fatal warnings into the result rather than aborting, return
// rather than loop forever on error.
package workflow

import (
	"context"
	"time"

	"github.com/mikehostetler/wreckit/internal/item"
	"github.com/mikehostetler/wreckit/internal/phase"
	"github.com/mikehostetler/wreckit/internal/statemachine"
	"github.com/mikehostetler/wreckit/internal/store"
	"github.com/mikehostetler/wreckit/internal/werr"
)

// firstWriteProducingPhase is the earliest phase that edits the
// working tree and therefore needs a dedicated branch (spec §4.G
// step 3); idea->research only reads and writes research.md under
// .wreckit, so it runs on the base branch.
const firstWriteProducingPhase = item.StatePlanned

// Driver runs one item's phases sequentially to completion or failure.
// One Driver is shared across every item a Batch Orchestrator run
// drives; it holds no per-item state of its own.
type Driver struct {
	Store                  *store.Store
	Executor               *phase.Executor
	Base                   string
	DeleteRemoteOnComplete bool
}

// New constructs a Driver.
func New(st *store.Store, ex *phase.Executor, base string) *Driver {
	return &Driver{Store: st, Executor: ex, Base: base}
}

// Outcome is what Run reports back to the Batch Orchestrator.
type Outcome struct {
	Item      *item.Item
	Blocked   bool
	Done      bool
	Attempts  int
	LastError string
}

// Run drives it through its remaining phases, one at a time, until it
// reaches StateDone, a dependency blocks it, or a phase fails. It never
// runs two phases of the same item concurrently — callers must not
// invoke Run twice for the same item id in parallel (spec §4.G
// ordering guarantee; enforced by the Batch Orchestrator's per-item
// eligibility check, not by this package).
func (d *Driver) Run(ctx context.Context, it *item.Item, items map[string]*item.Item, timeout time.Duration, now func() time.Time) (Outcome, error) {
	if !item.DependenciesSatisfied(it, items) {
		return Outcome{Item: it, Blocked: true}, nil
	}

	totalAttempts := 0
	for {
		if it.State == item.StateDone {
			return Outcome{Item: it, Done: true, Attempts: totalAttempts}, nil
		}

		next := statemachine.NextState(it.State)
		if next == "" {
			return Outcome{Item: it, Attempts: totalAttempts}, werr.New(werr.GenericWreckit, "item "+it.ID+" has no next phase from state "+string(it.State))
		}

		moment := now()
		if needsBranch(next) {
			if _, err := d.Executor.Gateway.EnsureBranch(d.Base, it.ID); err != nil {
				return d.recordFailure(it, totalAttempts, moment, err)
			}
		}

		result, attempts, err := d.runOnePhase(ctx, it, next, timeout, moment)
		totalAttempts += attempts
		if err != nil {
			return d.recordFailure(it, totalAttempts, moment, err)
		}
		it = result
	}
}

// needsBranch reports whether advancing to s requires a dedicated item
// branch rather than running against the base branch.
func needsBranch(s item.State) bool {
	order := []item.State{
		item.StateIdea, item.StateResearched, item.StatePlanned,
		item.StateImplementing, item.StateCritique, item.StateInPR, item.StateDone,
	}
	var firstIdx, sIdx int
	for i, st := range order {
		if st == firstWriteProducingPhase {
			firstIdx = i
		}
		if st == s {
			sIdx = i
		}
	}
	return sIdx >= firstIdx
}

// runOnePhase dispatches the single Phase Executor call that advances
// it from its current state to next, returning the updated item.
func (d *Driver) runOnePhase(ctx context.Context, it *item.Item, next item.State, timeout time.Duration, now time.Time) (*item.Item, int, error) {
	switch next {
	case item.StateResearched:
		res, err := d.Executor.RunResearch(ctx, it, nil, timeout, now)
		return res.Item, res.Attempts, err
	case item.StatePlanned:
		res, err := d.Executor.RunPlan(ctx, it, nil, timeout, now)
		return res.Item, res.Attempts, err
	case item.StateImplementing:
		res, err := d.Executor.RunImplement(ctx, it, nil, timeout, now)
		return res.Item, res.Attempts, err
	case item.StateCritique:
		res, blocked, err := d.Executor.RunCritique(ctx, it, nil, timeout, now)
		if blocked {
			return res.Item, res.Attempts, werr.New(werr.StoryQuality, "critique phase found a blocking defect for "+it.ID)
		}
		return res.Item, res.Attempts, err
	case item.StateInPR:
		res, err := d.Executor.RunPR(ctx, it, nil, timeout, d.Base, now)
		return res.Item, res.Attempts, err
	case item.StateDone:
		res, err := d.Executor.RunComplete(ctx, it, nil, timeout, d.Base, d.DeleteRemoteOnComplete, now)
		return res.Item, res.Attempts, err
	default:
		return it, 0, werr.New(werr.GenericWreckit, "unrecognized next phase "+string(next)+" for "+it.ID)
	}
}

// recordFailure persists it.LastError and returns the non-blocked,
// non-done outcome the Batch Orchestrator records as a failed item.
func (d *Driver) recordFailure(it *item.Item, attempts int, now time.Time, cause error) (Outcome, error) {
	failed := *it
	failed.LastError = cause.Error()
	failed.UpdatedAt = now
	if writeErr := d.Store.WriteItem(&failed); writeErr != nil {
		// Persisting the failure note is best-effort: the original
		// error is what the caller needs to see either way.
		return Outcome{Item: it, Attempts: attempts, LastError: cause.Error()}, cause
	}
	return Outcome{Item: &failed, Attempts: attempts, LastError: cause.Error()}, cause
}
