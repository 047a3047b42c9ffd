package lock

import (
	"context"
	"errors"
	"time"
)

var ErrNotAcquired = errors.New("lock not acquired within wait window")

// Handle is proof of holding a lock. Token is unique per acquisition.
type Handle struct {
	Key   string
	Token string
}

type Locker interface {
	// Acquire blocks until the lock is taken, maxWait elapses (ErrNotAcquired)
	// or ctx is done.
	Acquire(ctx context.Context, key string, lease, maxWait time.Duration) (*Handle, error)
	// Release removes the lock only while h still owns it. Safe to call more
	// than once and with a nil handle.
	Release(ctx context.Context, h *Handle) error
}
