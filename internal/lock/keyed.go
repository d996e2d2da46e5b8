package lock

import (
	"context"
	"time"
)

// Keyed grants mutual exclusion per logical resource key. WithLock acquires
// an exclusive lease on key, runs fn while it is held, and releases the
// lease when fn returns (or panics unwinding past the defer). If the lease
// cannot be acquired within timeout it fails with domain.ErrLockTimeout and
// fn is never called. Distinct keys never block each other.
//
// Re-entrant use is not supported: fn must not call WithLock on the same key.
type Keyed interface {
	WithLock(ctx context.Context, key string, timeout time.Duration, fn func(ctx context.Context) error) error
}
