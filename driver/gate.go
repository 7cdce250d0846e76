package driver

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultGateCapacity bounds concurrent backend calls when no gate is given.
const DefaultGateCapacity = 4

// Gate limits how many backend calls are in flight. Share one Gate between
// drivers to bound them together.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int
	inFlight atomic.Int64
}

// NewGate returns a gate admitting n callers; n < 1 means DefaultGateCapacity.
func NewGate(n int) *Gate {
	if n < 1 {
		n = DefaultGateCapacity
	}
	return &Gate{sem: semaphore.NewWeighted(int64(n)), capacity: n}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.inFlight.Add(1)
	return nil
}

func (g *Gate) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

func (g *Gate) Capacity() int { return g.capacity }

// InFlight reports the slots currently held.
func (g *Gate) InFlight() int { return int(g.inFlight.Load()) }
