package pool

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Resource is one pooled handle (a logical connection). While idle it is
// owned exclusively by the pool; Acquire transfers ownership to a single
// caller for the duration of one task, Release returns it. A resource is
// never shared by concurrent users.
type Resource struct {
	id        string
	createdAt time.Time

	mu     sync.Mutex
	closed bool
}

// ID returns the opaque resource identifier.
func (r *Resource) ID() string { return r.id }

// CreatedAt returns the creation timestamp.
func (r *Resource) CreatedAt() time.Time { return r.createdAt }

// Closed reports whether the resource has been closed.
func (r *Resource) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close marks the resource closed. Closing twice is a no-op.
func (r *Resource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Factory creates pooled resources. Production implementations dial real
// connections; tests supply a stub. The pool never validates resource
// health; a handle stays usable until the pool closes it.
type Factory interface {
	New(ctx context.Context) (*Resource, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context) (*Resource, error)

// New implements Factory.
func (f FactoryFunc) New(ctx context.Context) (*Resource, error) { return f(ctx) }

// StubFactory creates plain in-memory resources. It is the default factory
// and sufficient wherever the handle only needs identity, e.g. demos and
// tests.
type StubFactory struct{}

// New implements Factory.
func (StubFactory) New(context.Context) (*Resource, error) {
	return &Resource{id: uuid.NewString(), createdAt: time.Now()}, nil
}
