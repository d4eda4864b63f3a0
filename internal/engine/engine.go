// Package engine holds the process-wide state that must be threaded
// explicitly through Wreckit's components rather than hidden behind
// package-level globals: the git serialization lock and the registry of
// in-flight agent invocations that a signal handler cancels on
// shutdown. One Engine is constructed at startup and passed down
// through the Batch Orchestrator, Item Workflow, Phase Executor, Agent
// Dispatcher, and Git Gateway.
package engine

import (
	"context"
	"sync"
)

// Engine bundles the cross-cutting concurrency primitives shared by a
// single Wreckit run.
type Engine struct {
	gitMu sync.Mutex

	agentsMu sync.Mutex
	agents   map[string]context.CancelFunc
}

// New constructs an Engine ready for use.
func New() *Engine {
	return &Engine{agents: make(map[string]context.CancelFunc)}
}

// LockGit acquires the process-wide git serialization lock and returns
// an unlock function. Hold it for the full duration of any sequence
// that must appear atomic to other goroutines (e.g. checkout + compare
// + restore), not just a single git invocation.
func (e *Engine) LockGit() func() {
	e.gitMu.Lock()
	return e.gitMu.Unlock
}

// RegisterAgent records an in-flight agent invocation's cancel func
// under id (typically "<itemID>/<phase>/<attempt>"), so CancelAll can
// reach it on shutdown.
func (e *Engine) RegisterAgent(id string, cancel context.CancelFunc) {
	e.agentsMu.Lock()
	defer e.agentsMu.Unlock()
	e.agents[id] = cancel
}

// UnregisterAgent removes an invocation once it has completed, whether
// it succeeded, failed, or was cancelled.
func (e *Engine) UnregisterAgent(id string) {
	e.agentsMu.Lock()
	defer e.agentsMu.Unlock()
	delete(e.agents, id)
}

// CancelAllAgents cancels every currently registered agent invocation.
// Called from the signal handler on SIGINT/SIGTERM; it does not touch
// in-flight git operations, which are left to finish so the working
// tree is never left mid-mutation.
func (e *Engine) CancelAllAgents() {
	e.agentsMu.Lock()
	defer e.agentsMu.Unlock()
	for _, cancel := range e.agents {
		cancel()
	}
}

// ActiveAgentCount reports how many agent invocations are currently
// registered, mainly for tests and diagnostics.
func (e *Engine) ActiveAgentCount() int {
	e.agentsMu.Lock()
	defer e.agentsMu.Unlock()
	return len(e.agents)
}
