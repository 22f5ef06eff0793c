// Package locking provides advisory, cross-process file locking for one
// public make/migrate/status call, grounded on the teacher's flock usage in its
// sync workflow.
package locking

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// FileName is the lock file created inside a migrations directory.
const FileName = ".ddlsync.lock"

// Lock wraps a held advisory lock; Unlock releases it.
type Lock struct {
	flock *flock.Flock
}

// Acquire blocks, up to timeout, for an exclusive lock on
// <migrationsDir>/.ddlsync.lock. The lock is advisory: two Migrator
// instances that use the same migrations path but talk to different
// live databases are not prevented from racing, only warned about
// elsewhere (spec.md §5); this only serializes concurrent callers
// against the *same* migrations directory.
func Acquire(migrationsDir string, timeout time.Duration) (*Lock, error) {
	path := filepath.Join(migrationsDir, FileName)
	fl := flock.New(path)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ok, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("locking: acquiring %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("locking: %s is held by another process", path)
	}
	return &Lock{flock: fl}, nil
}

// Unlock releases the lock. It is safe to call on a nil *Lock.
func (l *Lock) Unlock() error {
	if l == nil || l.flock == nil {
		return nil
	}
	return l.flock.Unlock()
}
