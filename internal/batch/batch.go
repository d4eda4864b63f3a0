// Package batch implements the Batch Orchestrator (spec §4.H): selects
// eligible items, resumes or starts a fresh batch-progress.json,
// drives a bounded worker pool of Item Workflow runs, and persists
// progress after every item so a killed session can resume without
// double-processing. Grounded on the teacher's cmd/convoy.go rig-query
// fan-out (spawn one goroutine per unit of work, collect through a
// channel, sync.WaitGroup to know when every goroutine has finished),
// adapted from an unbounded one-goroutine-per-rig fan-out into a
// bounded worker pool pulling from a shared queue.
package batch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mikehostetler/wreckit/internal/engine"
	"github.com/mikehostetler/wreckit/internal/item"
	"github.com/mikehostetler/wreckit/internal/progress"
	"github.com/mikehostetler/wreckit/internal/store"
	"github.com/mikehostetler/wreckit/internal/workflow"
)

// Options configures one batch run (spec §4.H inputs). DryRun is not
// read by Orchestrator.Run itself — the CLI layer sets
// phase.Executor.DryRun on the Executor backing this run's Driver
// before calling Run, since dry-run is a dispatch-level concern.
type Options struct {
	Parallel    int
	NoResume    bool
	RetryFailed bool
	DryRun      bool
}

// Orchestrator drives a batch run over every eligible item in one
// repository. One Orchestrator is constructed per `wreckit batch`
// invocation.
type Orchestrator struct {
	Store  *store.Store
	Engine *engine.Engine
	Driver *workflow.Driver
}

// New constructs an Orchestrator.
func New(st *store.Store, eng *engine.Engine, driver *workflow.Driver) *Orchestrator {
	return &Orchestrator{Store: st, Engine: eng, Driver: driver}
}

// Summary is what Run reports back to the caller (and ultimately the
// CLI's exit code, per spec §6).
type Summary struct {
	Completed []string
	Failed    []string
	Skipped   []string
	Aborted   bool
}

// queueState is the shared, mutex-protected view of remaining work
// every worker goroutine pulls from.
type queueState struct {
	mu      sync.Mutex
	items   map[string]*item.Item
	pending []string
	rec     *progress.Record

	idle int // workers currently polling because nothing is eligible yet
}

// Run selects eligible items, resumes or creates batch-progress.json,
// and drains the queue with a bounded worker pool of size
// opts.Parallel. ctx's cancellation (wired by the caller to
// SIGINT/SIGTERM) stops new work from starting and cancels in-flight
// agent invocations via the Engine, but lets any git operation already
// in progress finish; the progress file is preserved on an aborted run
// and removed only on a clean drain.
func (o *Orchestrator) Run(ctx context.Context, opts Options, timeout time.Duration, now func() time.Time) (Summary, error) {
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}

	allItems, _ := o.Store.LoadAllItems()
	rec, queued := o.resume(allItems, opts, now())

	qs := &queueState{items: allItems, pending: queued, rec: rec}

	var wg sync.WaitGroup
	for i := 0; i < opts.Parallel; i++ {
		wg.Add(1)
		go o.worker(ctx, &wg, qs, opts, timeout, now)
	}
	wg.Wait()

	summary := Summary{Completed: rec.Completed, Failed: rec.Failed, Skipped: rec.Skipped}
	select {
	case <-ctx.Done():
		summary.Aborted = true
		_ = progress.Write(o.Store, rec, now())
		return summary, ctx.Err()
	default:
	}

	if len(qs.pending) == 0 {
		_ = progress.Clear(o.Store)
	} else {
		_ = progress.Write(o.Store, rec, now())
	}
	return summary, nil
}

// resume implements spec §4.H's resume logic: read the existing
// progress record unless absent, noResume, or stale, in which case a
// fresh one is started; otherwise drop already-completed ids from the
// queue and re-queue failed ids only when retryFailed is set.
func (o *Orchestrator) resume(allItems map[string]*item.Item, opts Options, now time.Time) (*progress.Record, []string) {
	eligible := eligibleIDs(allItems)

	existing := progress.Read(o.Store)
	if opts.NoResume || existing == nil || progress.IsStale(existing, now) {
		rec := progress.New(opts.Parallel, eligible, now)
		return rec, append([]string(nil), eligible...)
	}

	done := make(map[string]bool, len(existing.Completed))
	for _, id := range existing.Completed {
		done[id] = true
	}
	var queued []string
	for _, id := range eligible {
		if done[id] {
			continue
		}
		queued = append(queued, id)
	}
	if opts.RetryFailed {
		for _, id := range existing.Failed {
			if !contains(queued, id) {
				queued = append(queued, id)
			}
		}
		existing.Failed = nil
	}
	existing.QueuedItems = queued
	existing.Parallel = opts.Parallel
	return existing, queued
}

// eligibleIDs returns every non-done item id, sorted, regardless of
// whether its dependencies are currently satisfied — dependency
// gating happens per-pop in queueState.pop so a dependency that
// finishes mid-run unblocks its dependents within the same batch.
func eligibleIDs(items map[string]*item.Item) []string {
	var ids []string
	for id, it := range items {
		if it.State != item.StateDone {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// pollInterval is how long a worker waits before rechecking the queue
// when every remaining item is blocked on a dependency another worker
// is still processing.
const pollInterval = 50 * time.Millisecond

// worker pops eligible items off the shared queue until it is empty or
// ctx is cancelled, driving each through the Item Workflow and
// recording the outcome. An item blocked on an in-flight dependency is
// not a reason to exit: the worker waits and rechecks, since that
// dependency may complete under a different worker.
func (o *Orchestrator) worker(ctx context.Context, wg *sync.WaitGroup, qs *queueState, opts Options, timeout time.Duration, now func() time.Time) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		id, it, ok, remaining := qs.pop(opts.Parallel == 1)
		if !ok {
			if remaining == 0 {
				return
			}
			if qs.enterIdle(opts.Parallel) {
				// Every worker was simultaneously idle with items
				// still pending: none of them can ever become
				// eligible (an unresolved or cyclic dependency).
				// qs.enterIdle already drained them as skipped.
				continue
			}
			select {
			case <-ctx.Done():
				qs.exitIdle()
				return
			case <-time.After(pollInterval):
			}
			qs.exitIdle()
			continue
		}

		outcome, err := o.Driver.Run(ctx, it, qs.snapshot(), timeout, now)
		qs.complete(id, outcome, err, opts.Parallel == 1, now())
		_ = progress.Write(o.Store, qs.rec, now())
	}
}

// pop removes and returns the next eligible, not-yet-blocked item from
// the queue, plus how many items are still pending when it finds none
// immediately eligible (0 means the queue is truly drained; >0 means
// every remaining item is waiting on an in-flight dependency).
func (qs *queueState) pop(sequential bool) (string, *item.Item, bool, int) {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	for attempts := 0; attempts < len(qs.pending); attempts++ {
		id := qs.pending[0]
		qs.pending = qs.pending[1:]
		it, ok := qs.items[id]
		if !ok {
			continue
		}
		if !item.DependenciesSatisfied(it, qs.items) {
			qs.pending = append(qs.pending, id)
			continue
		}
		if sequential {
			qs.rec.CurrentItem = &id
		}
		return id, it, true, 0
	}
	return "", nil, false, len(qs.pending)
}

// enterIdle marks the calling worker as idle-waiting because the last
// pop found only items blocked on an in-flight dependency. If every
// one of total workers is idle at once while items are still pending,
// none of them can ever become eligible (a dependency id missing from
// the item set, or a cycle that slipped past upstream validation), so
// enterIdle drains the remaining pending ids into rec.Skipped and
// reports true; the caller must not also wait out pollInterval in that
// case. Otherwise it reports false and the caller sleeps before
// calling exitIdle.
func (qs *queueState) enterIdle(total int) bool {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	qs.idle++
	if qs.idle < total || len(qs.pending) == 0 {
		return false
	}

	qs.rec.Skipped = append(qs.rec.Skipped, qs.pending...)
	qs.pending = nil
	qs.idle = 0
	return true
}

// exitIdle clears the calling worker's idle-waiting mark after it
// wakes from its poll sleep (or ctx cancellation) without having
// triggered a drain.
func (qs *queueState) exitIdle() {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	if qs.idle > 0 {
		qs.idle--
	}
}

// snapshot returns the current item map for a dependency check. The
// caller holds no lock across the workflow run itself — items are
// mutated only by their owning worker, per spec §5's one-worker-per-item
// invariant, so reading the shared map without a lock is safe in
// practice for dependency lookups performed before and after (not
// during) another worker's run.
func (qs *queueState) snapshot() map[string]*item.Item {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	out := make(map[string]*item.Item, len(qs.items))
	for k, v := range qs.items {
		out[k] = v
	}
	return out
}

// complete records one item's outcome into the progress record and
// updates the shared item map so later dependency checks see its
// latest state.
func (qs *queueState) complete(id string, outcome workflow.Outcome, err error, sequential bool, now time.Time) {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	if outcome.Item != nil {
		qs.items[id] = outcome.Item
	}
	switch {
	case outcome.Blocked:
		qs.rec.Skipped = append(qs.rec.Skipped, id)
	case err != nil:
		qs.rec.Failed = append(qs.rec.Failed, id)
	default:
		qs.rec.Completed = append(qs.rec.Completed, id)
	}
	if sequential {
		qs.rec.CurrentItem = nil
	}
}
