// Package pool manages a bounded set of reusable resource handles. It
// eagerly creates a minimum number of handles on first use, grows lazily to
// a maximum, recycles released handles, and closes everything on shutdown.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrPoolClosed is returned by Acquire after Shutdown. It is returned
	// immediately; a closed pool never blocks callers.
	ErrPoolClosed = errors.New("pool: closed")

	// ErrAcquireTimeout is returned when an acquire timeout is configured
	// via WithAcquireTimeout and elapses before a handle frees.
	ErrAcquireTimeout = errors.New("pool: acquire timed out")
)

// Options configures a Pool.
type Options struct {
	// AcquireTimeout bounds how long Acquire waits for a free handle once
	// the pool is at capacity. Zero (the default) waits indefinitely,
	// subject only to context cancellation.
	AcquireTimeout time.Duration
}

// WithAcquireTimeout sets an upper bound on Acquire waiting time.
func WithAcquireTimeout(d time.Duration) func(o *Options) {
	return func(o *Options) { o.AcquireTimeout = d }
}

// Pool is a bounded resource pool. Invariant: the number of idle plus
// in-use handles never exceeds the configured maximum.
type Pool struct {
	factory Factory
	min     int
	max     int
	opts    Options

	idle   chan *Resource
	closed chan struct{}

	mu    sync.Mutex
	total int // handles currently owned by pool or callers
	down  bool

	warmOnce sync.Once
}

// New creates a pool bounded between min and max handles. min below zero is
// treated as zero; max below one is raised to one; max below min is raised
// to min. The minimum is created eagerly on first use, not at construction.
func New(factory Factory, min, max int, optFns ...func(o *Options)) *Pool {
	if factory == nil {
		factory = StubFactory{}
	}
	if min < 0 {
		min = 0
	}
	if max < 1 {
		max = 1
	}
	if max < min {
		max = min
	}

	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Pool{
		factory: factory,
		min:     min,
		max:     max,
		opts:    opts,
		idle:    make(chan *Resource, max),
		closed:  make(chan struct{}),
	}
}

// Acquire returns a handle, creating one if the pool has room, or blocking
// until a release frees one. It fails immediately with ErrPoolClosed after
// Shutdown.
func (p *Pool) Acquire(ctx context.Context) (*Resource, error) {
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	default:
	}

	var warmErr error
	p.warmOnce.Do(func() { warmErr = p.warm(ctx) })
	if warmErr != nil {
		return nil, fmt.Errorf("pool: eager create failed: %w", warmErr)
	}

	// Fast path: reuse an idle handle.
	select {
	case r := <-p.idle:
		return r, nil
	default:
	}

	// Grow lazily while under the maximum.
	if r, grown, err := p.grow(ctx); grown {
		return r, err
	}

	// At capacity: wait for a release.
	var timeout <-chan time.Time
	if p.opts.AcquireTimeout > 0 {
		timer := time.NewTimer(p.opts.AcquireTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r := <-p.idle:
		return r, nil
	case <-p.closed:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, ErrAcquireTimeout
	}
}

// Release returns a handle to the idle queue. Once the pool is shutting
// down the handle is closed and discarded instead.
func (p *Pool) Release(r *Resource) {
	if r == nil {
		return
	}

	// The down-check and the re-queue happen under one mutex hold so a
	// concurrent Shutdown cannot drain idle between them and strand an
	// unclosed handle. The send never blocks: idle has capacity for every
	// handle the pool owns.
	p.mu.Lock()
	if !p.down {
		select {
		case p.idle <- r:
			p.mu.Unlock()
			return
		default:
		}
	}
	p.total--
	p.mu.Unlock()
	_ = r.Close()
}

// Shutdown closes every idle handle and marks the pool closed. Handles
// still held by callers are closed when released. Pending Acquire calls
// fail with ErrPoolClosed. Shutdown is idempotent.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.down {
		p.mu.Unlock()
		return
	}
	p.down = true
	p.mu.Unlock()

	close(p.closed)

	for {
		select {
		case r := <-p.idle:
			_ = r.Close()
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
		default:
			return
		}
	}
}

// Size returns the number of handles currently owned by the pool or by
// callers (idle plus active).
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Active returns the number of handles currently held by callers.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total - len(p.idle)
}

// Idle returns the number of handles waiting in the pool.
func (p *Pool) Idle() int { return len(p.idle) }

// Max returns the configured maximum pool size.
func (p *Pool) Max() int { return p.max }

// warm eagerly creates the minimum number of handles. Called exactly once,
// from the first Acquire.
func (p *Pool) warm(ctx context.Context) error {
	for i := 0; i < p.min; i++ {
		r, err := p.factory.New(ctx)
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.total++
		p.mu.Unlock()
		p.idle <- r
	}
	return nil
}

// grow creates a fresh handle when the pool is under its maximum. The
// second return value reports whether growth was attempted; when false the
// caller must wait for a release instead.
func (p *Pool) grow(ctx context.Context) (*Resource, bool, error) {
	p.mu.Lock()
	if p.down {
		p.mu.Unlock()
		return nil, true, ErrPoolClosed
	}
	if p.total >= p.max {
		p.mu.Unlock()
		return nil, false, nil
	}
	p.total++ // reserve the slot before the (possibly slow) factory call
	p.mu.Unlock()

	r, err := p.factory.New(ctx)
	if err != nil {
		p.mu.Lock()
		p.total--
		p.mu.Unlock()
		return nil, true, fmt.Errorf("pool: create resource: %w", err)
	}
	return r, true, nil
}
