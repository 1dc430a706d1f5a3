package core

import "context"

// Executor is the external capability that actually fulfils a task. The
// engine treats it as opaque: it does not retry on its behalf and does not
// impose a timeout; callers that need one wrap the context they pass in.
//
// Implementations must be safe for concurrent use; the engine invokes
// Execute from multiple goroutines up to its configured concurrency bound.
type Executor interface {
	Execute(ctx context.Context, task Task) (TaskResult, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, task Task) (TaskResult, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, task Task) (TaskResult, error) {
	return f(ctx, task)
}
