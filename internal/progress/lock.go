package progress

import (
	"context"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/mikehostetler/wreckit/internal/werr"
)

const lockAcquireTimeout = 2 * time.Second

// Lock is the cross-process advisory lock guarding batch-progress.json.
// A batch resume and a still-running prior batch session both open the
// same Store, so writes go through this lock rather than relying on the
// atomic-rename alone to prevent a torn read-modify-write.
type Lock struct {
	fl *flock.Flock
}

// lockPath derives the sidecar lock file path from the progress file
// path, e.g. ".wreckit/batch-progress.json" -> ".wreckit/batch-progress.json.lock".
func lockPath(progressPath string) string {
	return progressPath + ".lock"
}

// AcquireLock blocks (up to lockAcquireTimeout) until the batch-progress
// lock is obtained, or returns an error if another live session holds it.
func AcquireLock(progressPath string) (*Lock, error) {
	ctx, cancel := context.WithTimeout(context.Background(), lockAcquireTimeout)
	defer cancel()

	fl := flock.New(lockPath(progressPath))
	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, werr.Wrap(werr.GenericWreckit, "acquiring batch progress lock", err)
	}
	if !locked {
		return nil, werr.New(werr.GenericWreckit, "another wreckit batch session holds the progress lock")
	}
	return &Lock{fl: fl}, nil
}

// Release unlocks and removes the sidecar lock file.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}

// clearLockFile removes a stale lock sidecar left by a dead session.
// Called by Clear alongside removing the progress file itself.
func clearLockFile(progressPath string) {
	_ = os.Remove(lockPath(progressPath))
}
