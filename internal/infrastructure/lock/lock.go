// Package lock provides run-level mutual exclusion for sync jobs.
package lock

import (
	"context"
	"errors"
)

// ErrLockHeld is returned when another run holds a non-stale lock
var ErrLockHeld = errors.New("lock: held by another run")

// Lease is a held lock. Release is safe to call more than once.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker acquires the run lock
type Locker interface {
	Acquire(ctx context.Context) (Lease, error)
}
