// Package dedupe guards against concurrent runs over the same dataset.
package dedupe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Sentinel errors returned by Acquire.
var (
	ErrInFlight = errors.New("a run for this dataset is already in flight")
	ErrCapacity = errors.New("too many runs in flight")
)

// Guard tracks in-flight (user, dataset) runs so at most one runs at a time.
type Guard interface {
	// Acquire atomically claims key. It returns ErrInFlight when key is
	// already claimed and ErrCapacity when the guard is full.
	Acquire(ctx context.Context, key string) error

	// Release frees key so a later run may claim it. Releasing an unclaimed
	// key is a no-op.
	Release(ctx context.Context, key string)

	// Size returns the number of claimed keys.
	Size() int64
}

// Key builds the guard key for a user's target dataset.
func Key(userID, dataset string) string {
	return userID + "\x00" + dataset
}

// inMemoryGuard implements Guard with a mutex-protected set.
type inMemoryGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
	maxSize  int // 0 or negative = unbounded
	size     atomic.Int64
}

// NewInMemoryGuard creates a guard with configuration options.
func NewInMemoryGuard(opts ...Option) Guard {
	g := &inMemoryGuard{
		maxSize: 1024,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.inFlight = make(map[string]struct{})
	return g
}

func (g *inMemoryGuard) Acquire(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.inFlight[key]; ok {
		return ErrInFlight
	}
	if g.maxSize > 0 && len(g.inFlight) >= g.maxSize {
		return ErrCapacity
	}
	g.inFlight[key] = struct{}{}
	g.size.Add(1)
	return nil
}

func (g *inMemoryGuard) Release(_ context.Context, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.inFlight[key]; ok {
		delete(g.inFlight, key)
		g.size.Add(-1)
	}
}

func (g *inMemoryGuard) Size() int64 {
	return g.size.Load()
}
