// Package swarmexec provides a high-level façade over the core Engine and
// its supporting services (resource pool, result cache, execution history
// and asynchronous file output). Most applications interact with this
// package by:
//  1. Creating a SwarmExec via New() around an executor (model-backed or custom)
//  2. Running tasks one at a time (Run) or in bounded parallel batches (RunBatch)
//  3. Inspecting Metrics() and calling Shutdown() when done
//
// The façade delegates orchestration to engine.Engine while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply a real resource
// factory and a structured logger.
package swarmexec

import (
	"context"
	"time"

	"github.com/hupe1980/swarmexec/core"
	"github.com/hupe1980/swarmexec/engine"
	"github.com/hupe1980/swarmexec/filemanager"
	"github.com/hupe1980/swarmexec/logging"
	"github.com/hupe1980/swarmexec/pool"
)

// Options configures the SwarmExec instance.
type Options struct {
	// EngineConfig contains operational parameters (pool sizing, cache TTL,
	// concurrency limit, history depth).
	EngineConfig engine.Config

	// Factory creates pooled resources. Defaults to an in-memory stub.
	Factory pool.Factory

	// FileManager handles asynchronous record output. Defaults to a fresh
	// manager owned by the engine.
	FileManager *filemanager.Manager

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// Clock overrides the cache time source, mainly for tests.
	Clock func() time.Time
}

// SwarmExec is the high-level façade aggregating the underlying engine and
// services.
type SwarmExec struct {
	opts   Options
	engine *engine.Engine
}

// New creates a new SwarmExec instance wrapping the given executor with
// optional overrides. Any unset service is initialized with an in-memory
// implementation.
func New(executor core.Executor, optFns ...func(o *Options)) *SwarmExec {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	engineOpts := []func(o *engine.Options){
		engine.WithConfig(opts.EngineConfig),
		engine.WithLogger(opts.Logger),
	}
	if opts.Factory != nil {
		engineOpts = append(engineOpts, engine.WithFactory(opts.Factory))
	}
	if opts.FileManager != nil {
		engineOpts = append(engineOpts, engine.WithFileManager(opts.FileManager))
	}
	if opts.Clock != nil {
		engineOpts = append(engineOpts, engine.WithClock(opts.Clock))
	}

	return &SwarmExec{opts: opts, engine: engine.New(executor, engineOpts...)}
}

// Run executes a single task through the cache, gate and pool.
func (s *SwarmExec) Run(ctx context.Context, task core.Task) (core.TaskResult, error) {
	return s.engine.Run(ctx, task)
}

// RunBatch executes tasks in sequential chunks of batchSize, each chunk in
// parallel. Results are returned in input order.
func (s *SwarmExec) RunBatch(ctx context.Context, tasks []core.Task, batchSize int) ([]core.TaskResult, error) {
	return s.engine.RunBatch(ctx, tasks, batchSize)
}

// Metrics returns a point-in-time snapshot of engine counters and gauges.
func (s *SwarmExec) Metrics() engine.Metrics { return s.engine.Metrics() }

// Engine exposes the underlying engine for advanced integrations such as
// metrics exporters.
func (s *SwarmExec) Engine() *engine.Engine { return s.engine }

// Shutdown drains in-flight work and releases all held resources. It is
// idempotent and safe to call from multiple goroutines.
func (s *SwarmExec) Shutdown(ctx context.Context) error { return s.engine.Shutdown(ctx) }
