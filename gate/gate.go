// Package gate provides a counted concurrency gate bounding how many task
// executions may be in flight simultaneously. Additional callers block in
// Acquire until a permit frees. The gate is context-aware and fails fast
// once closed, so shutdown never strands waiters.
package gate

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrGateClosed is returned by Acquire after Close has been called.
var ErrGateClosed = errors.New("gate: closed")

// Gate bounds the number of concurrently held permits. Permits are handed
// out through a buffered channel, so waiter wakeup order follows channel
// semantics: no strict FIFO, but every waiter is eventually served.
type Gate struct {
	permits  chan struct{}
	closed   chan struct{}
	inFlight atomic.Int64
}

// New creates a gate with the given maximum number of simultaneous permits.
// A max below 1 is treated as 1.
func New(max int) *Gate {
	if max < 1 {
		max = 1
	}
	return &Gate{
		permits: make(chan struct{}, max),
		closed:  make(chan struct{}),
	}
}

// Acquire blocks until a permit is available, the context is cancelled, or
// the gate is closed.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case <-g.closed:
		return ErrGateClosed
	default:
	}

	select {
	case g.permits <- struct{}{}:
		g.inFlight.Add(1)
		return nil
	case <-g.closed:
		return ErrGateClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a permit without blocking. It reports false when the
// gate is full or closed.
func (g *Gate) TryAcquire() bool {
	select {
	case <-g.closed:
		return false
	default:
	}

	select {
	case g.permits <- struct{}{}:
		g.inFlight.Add(1)
		return true
	default:
		return false
	}
}

// Release frees a previously acquired permit. Releasing without a matching
// Acquire is a programming error and panics.
func (g *Gate) Release() {
	select {
	case <-g.permits:
		g.inFlight.Add(-1)
	default:
		panic("gate: release without acquire")
	}
}

// InFlight returns the number of currently held permits. The value is a
// snapshot and may be stale by the time the caller acts on it.
func (g *Gate) InFlight() int {
	return int(g.inFlight.Load())
}

// Capacity returns the maximum number of simultaneous permits.
func (g *Gate) Capacity() int { return cap(g.permits) }

// Close fails all current and future Acquire calls with ErrGateClosed.
// Held permits may still be released. Close is idempotent.
func (g *Gate) Close() {
	select {
	case <-g.closed:
	default:
		close(g.closed)
	}
}
