// Package locks provides per-entity mutual exclusion so all state
// transitions for one subscription/stream/recording id run strictly
// one-at-a-time, while different ids proceed concurrently.
package locks

import (
	"context"
	"errors"
)

// ErrLockTimeout is returned when the lock cannot be acquired before the
// context deadline.
var ErrLockTimeout = errors.New("entity lock acquisition timed out")

// Coordinator serializes mutations per entity id. WithLock runs fn while
// holding the lock for entityID and guarantees release on every exit path,
// including fn returning an error or panicking.
type Coordinator interface {
	WithLock(ctx context.Context, entityID string, fn func(ctx context.Context) error) error
}
