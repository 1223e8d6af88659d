package locks

import (
	"context"
	"sync"
)

// MemoryCoordinator implements Coordinator with in-process mutexes. Used in
// tests and single-node development.
type MemoryCoordinator struct {
	mu    sync.Mutex
	locks map[string]*entityLock
}

type entityLock struct {
	sync.Mutex
	refs int
}

// NewMemoryCoordinator creates an in-process lock coordinator.
func NewMemoryCoordinator() *MemoryCoordinator {
	return &MemoryCoordinator{locks: make(map[string]*entityLock)}
}

// WithLock serializes fn per entityID. Lock entries are reference-counted so
// the map does not grow with every id ever seen.
func (c *MemoryCoordinator) WithLock(ctx context.Context, entityID string, fn func(ctx context.Context) error) error {
	c.mu.Lock()
	l, ok := c.locks[entityID]
	if !ok {
		l = &entityLock{}
		c.locks[entityID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.Lock()
	defer func() {
		l.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, entityID)
		}
		c.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

var _ Coordinator = (*MemoryCoordinator)(nil)
