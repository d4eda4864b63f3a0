// Package progress implements the Progress Store (spec §4.J): a
// crash-safe batch-progress.json with stale-session detection so a
// killed batch run can resume without double-processing an item.
// Grounded on internal/doltserver.go's PID-liveness check (os.FindProcess
// + Signal(syscall.Signal(0))), generalized from "is the dolt server
// daemon still alive" to "is the batch session that owns this progress
// file still alive".
package progress

import (
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/mikehostetler/wreckit/internal/store"
	"github.com/mikehostetler/wreckit/internal/werr"
)

const staleAfter = 24 * time.Hour

// Record is batch-progress.json's schema (spec §6, normative).
type Record struct {
	SchemaVersion int       `json:"schema_version"`
	SessionID     string    `json:"session_id"`
	PID           int       `json:"pid"`
	StartedAt     time.Time `json:"started_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Parallel      int       `json:"parallel"`
	QueuedItems   []string  `json:"queued_items"`
	CurrentItem   *string   `json:"current_item"`
	Completed     []string  `json:"completed"`
	Failed        []string  `json:"failed"`
	Skipped       []string  `json:"skipped"`
}

// New constructs a fresh Record for a new batch session.
func New(parallel int, queued []string, now time.Time) *Record {
	return &Record{
		SchemaVersion: 1,
		SessionID:     uuid.NewString(),
		PID:           os.Getpid(),
		StartedAt:     now,
		UpdatedAt:     now,
		Parallel:      parallel,
		QueuedItems:   queued,
	}
}

// Read loads batch-progress.json, returning (nil, nil) if the file is
// absent, unreadable, or fails schema validation — per spec §4.J, none
// of those are fatal, they just mean "start fresh".
func Read(s *store.Store) *Record {
	var rec Record
	if err := store.ReadJSON(s.BatchProgressPath(), &rec); err != nil {
		return nil
	}
	if rec.SchemaVersion != 1 {
		return nil
	}
	return &rec
}

// Write atomically persists rec, refreshing UpdatedAt to now.
func Write(s *store.Store, rec *Record, now time.Time) error {
	rec.UpdatedAt = now
	return store.WriteJSON(s.BatchProgressPath(), rec, nil)
}

// Clear removes the progress file. Idempotent: removing an
// already-absent file is not an error.
func Clear(s *store.Store) error {
	clearLockFile(s.BatchProgressPath())
	err := os.Remove(s.BatchProgressPath())
	if err != nil && !os.IsNotExist(err) {
		return werr.Wrap(werr.GenericWreckit, "clearing batch progress", err)
	}
	return nil
}

// IsStale reports whether rec should be ignored and a fresh session
// started: either its age exceeds staleAfter, or its owning PID is not
// a live process on this host.
func IsStale(rec *Record, now time.Time) bool {
	if now.Sub(rec.UpdatedAt) > staleAfter {
		return true
	}
	return !pidIsLive(rec.PID)
}

// pidIsLive reports whether pid names a running process on this host.
// Grounded on doltserver.go: os.FindProcess always succeeds on Unix, so
// liveness is determined by sending the null signal and checking for an
// error.
func pidIsLive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
