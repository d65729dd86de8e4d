package driven

import (
	"context"
	"time"
)

// DistributedLock serialises ticks across coordinator instances.
// When several instances share a state store, only the lock holder polls
// the upstream sources for a given tick.
type DistributedLock interface {
	// Acquire tries to take the named lock for ttl without blocking.
	// acquired is false when another instance holds it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release gives the lock back. Releasing a lock that expired or is
	// held elsewhere is not an error.
	Release(ctx context.Context, name string) error

	// Extend pushes the expiry of a lock held by this instance. The
	// coordinator calls it every half TTL while a tick runs.
	// Backends without expiry treat it as a no-op.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks the lock backend.
	Ping(ctx context.Context) error
}
