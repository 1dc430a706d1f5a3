package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/swarmexec/cache"
	"github.com/hupe1980/swarmexec/core"
	"github.com/hupe1980/swarmexec/filemanager"
	"github.com/hupe1980/swarmexec/gate"
	"github.com/hupe1980/swarmexec/history"
	"github.com/hupe1980/swarmexec/logging"
	"github.com/hupe1980/swarmexec/pool"
)

// ErrEmptyBatch is returned by RunBatch when no tasks are supplied.
var ErrEmptyBatch = errors.New("engine: empty batch")

// ErrShutdown is returned for runs attempted after Shutdown.
var ErrShutdown = errors.New("engine: shut down")

// Options configures an Engine instance using the functional options
// pattern. All services have reasonable defaults suitable for development
// and testing scenarios.
type Options struct {
	// Config contains operational parameters for the engine behavior.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// Factory creates pooled resources. Defaults to an in-memory stub;
	// production supplies a factory dialing real connections.
	Factory pool.Factory

	// FileManager handles durable record/text output. Defaults to a fresh
	// manager; the engine drains it on shutdown either way.
	FileManager *filemanager.Manager

	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger

	// Clock supplies the cache's time source. Overridden in tests for
	// deterministic TTL expiry; defaults to time.Now.
	Clock func() time.Time

	// CacheSweepInterval controls the cache's background expiry sweep.
	CacheSweepInterval time.Duration
}

// WithConfig sets the engine configuration.
func WithConfig(cfg Config) func(o *Options) {
	return func(o *Options) { o.Config = cfg }
}

// WithFactory injects the resource factory used by the pool.
func WithFactory(f pool.Factory) func(o *Options) {
	return func(o *Options) { o.Factory = f }
}

// WithFileManager injects a shared file manager.
func WithFileManager(m *filemanager.Manager) func(o *Options) {
	return func(o *Options) { o.FileManager = m }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithClock injects the cache time source.
func WithClock(now func() time.Time) func(o *Options) {
	return func(o *Options) { o.Clock = now }
}

// Engine orchestrates cached, pooled, concurrency-bounded task execution
// around an external executor. Public methods are safe for concurrent use.
type Engine struct {
	executor core.Executor
	config   Config
	logger   logging.Logger

	pool    *pool.Pool
	cache   *cache.Cache
	history *history.Buffer
	gate    *gate.Gate
	files   *filemanager.Manager

	mu            sync.Mutex
	executions    uint64
	parallelRuns  uint64
	totalExecTime time.Duration
	down          bool

	inflight     sync.WaitGroup
	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates an Engine wrapping the given executor with optional
// overrides. The engine owns the pool, cache, gate and history it creates;
// Shutdown tears them down.
func New(executor core.Executor, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:  DefaultConfig,
		Factory: pool.StubFactory{},
		Logger:  logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := opts.Config.withDefaults()

	if opts.FileManager == nil {
		opts.FileManager = filemanager.New(filemanager.WithLogger(opts.Logger))
	}

	var cacheOpts []func(o *cache.Options)
	if opts.Clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(opts.Clock))
	}
	if opts.CacheSweepInterval > 0 {
		cacheOpts = append(cacheOpts, cache.WithSweepInterval(opts.CacheSweepInterval))
	}

	return &Engine{
		executor: executor,
		config:   cfg,
		logger:   opts.Logger,
		pool:     pool.New(opts.Factory, cfg.MinConnections, cfg.MaxConnections),
		cache:    cache.New(cfg.CacheMaxSize, cfg.CacheTTL, cacheOpts...),
		history:  history.New(cfg.HistorySize),
		gate:     gate.New(cfg.MaxConcurrency),
		files:    opts.FileManager,
	}
}

// Config returns the normalized engine configuration.
func (e *Engine) Config() Config { return e.config }

// FileManager exposes the engine's asynchronous file manager so callers can
// persist results alongside execution.
func (e *Engine) FileManager() *filemanager.Manager { return e.files }

// History exposes the execution history ring.
func (e *Engine) History() *history.Buffer { return e.history }

// Run executes a single task.
//
// A cache hit returns the previously produced result without touching the
// pool or the executor and without appending a history record. A miss
// acquires a concurrency permit and a pooled resource, delegates to the
// executor, records the outcome in the history ring, caches successful
// results for the configured TTL and returns.
//
// A failed execution yields a failed TaskResult together with a
// *core.ExecutionError; the failure is recorded in the history but never
// cached. Lifecycle errors (shutdown, cancelled context) return a zero
// result and the error alone.
func (e *Engine) Run(ctx context.Context, task core.Task) (core.TaskResult, error) {
	if e.executor == nil {
		return core.TaskResult{}, errors.New("engine: no executor configured")
	}

	e.mu.Lock()
	if e.down {
		e.mu.Unlock()
		return core.TaskResult{}, ErrShutdown
	}
	e.inflight.Add(1)
	e.mu.Unlock()
	defer e.inflight.Done()

	key := Key(task)
	if cached, ok := e.cache.Get(key); ok {
		e.logger.Debug("cache hit", "task_id", task.ID)
		return cached.(core.TaskResult), nil
	}
	e.logger.Debug("cache miss", "task_id", task.ID)

	if err := e.gate.Acquire(ctx); err != nil {
		if errors.Is(err, gate.ErrGateClosed) {
			return core.TaskResult{}, ErrShutdown
		}
		return core.TaskResult{}, fmt.Errorf("engine: acquire slot: %w", err)
	}
	defer e.gate.Release()

	res, err := e.pool.Acquire(ctx)
	if err != nil {
		if errors.Is(err, pool.ErrPoolClosed) {
			return core.TaskResult{}, ErrShutdown
		}
		return core.TaskResult{}, fmt.Errorf("engine: acquire resource: %w", err)
	}

	start := time.Now()
	result, execErr := e.executor.Execute(ctx, task)
	duration := time.Since(start)

	e.pool.Release(res)

	if execErr != nil {
		result = core.TaskResult{
			TaskID:     task.ID,
			Status:     core.TaskStatusFailure,
			Error:      execErr.Error(),
			Duration:   duration,
			ResourceID: res.ID(),
		}
	} else {
		if result.TaskID == "" {
			result.TaskID = task.ID
		}
		if result.Status == "" {
			result.Status = core.TaskStatusSuccess
		}
		result.Duration = duration
		result.ResourceID = res.ID()
	}

	// Failures are recorded but never cached.
	e.history.Push(result)
	if execErr == nil && result.Succeeded() {
		e.cache.SetTTL(key, result, e.config.CacheTTL)
	}

	e.mu.Lock()
	e.executions++
	e.totalExecTime += duration
	e.mu.Unlock()

	e.logger.Info("task executed",
		"task_id", task.ID,
		"resource_id", res.ID(),
		"duration", duration,
		"success", execErr == nil,
	)

	if execErr != nil {
		return result, core.NewExecutionError(task.ID, execErr)
	}
	return result, nil
}

// RunBatch executes tasks in chunks of at most batchSize. Within a chunk
// all runs are issued concurrently and awaited together; chunks proceed
// sequentially to bound peak resource usage. The returned slice always
// holds one result per input task in input order; a single task's failure
// is captured as its failed TaskResult and never aborts siblings. An empty
// task list is the only input rejected outright.
func (e *Engine) RunBatch(ctx context.Context, tasks []core.Task, batchSize int) ([]core.TaskResult, error) {
	if len(tasks) == 0 {
		return nil, ErrEmptyBatch
	}
	if batchSize < 1 {
		batchSize = len(tasks)
	}

	results := make([]core.TaskResult, len(tasks))

	for startIdx := 0; startIdx < len(tasks); startIdx += batchSize {
		endIdx := min(startIdx+batchSize, len(tasks))

		var wg sync.WaitGroup
		for i := startIdx; i < endIdx; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = e.runCaptured(ctx, tasks[idx])
			}(i)
		}
		wg.Wait()

		e.mu.Lock()
		e.parallelRuns += uint64(endIdx - startIdx)
		e.mu.Unlock()
	}

	return results, nil
}

// runCaptured converts any Run error into a failed TaskResult so batch
// callers always receive one result per input.
func (e *Engine) runCaptured(ctx context.Context, task core.Task) core.TaskResult {
	result, err := e.Run(ctx, task)
	if err == nil {
		return result
	}

	var execErr *core.ExecutionError
	if errors.As(err, &execErr) {
		// Run already produced the failed result for executor errors.
		return result
	}

	return core.TaskResult{
		TaskID: task.ID,
		Status: core.TaskStatusFailure,
		Error:  err.Error(),
	}
}

// Metrics returns an aggregate snapshot. It remains callable after
// Shutdown.
func (e *Engine) Metrics() Metrics {
	cacheStats := e.cache.Stats()

	e.mu.Lock()
	executions := e.executions
	parallel := e.parallelRuns
	total := e.totalExecTime
	e.mu.Unlock()

	var avg time.Duration
	if executions > 0 {
		avg = total / time.Duration(executions)
	}

	return Metrics{
		Executions:          executions,
		CacheHits:           cacheStats.Hits,
		CacheMisses:         cacheStats.Misses,
		CacheHitRate:        cacheStats.HitRate(),
		ParallelTasksRun:    parallel,
		AverageExecution:    avg,
		PoolSize:            e.pool.Size(),
		ActiveConnections:   e.pool.Active(),
		CacheSize:           cacheStats.Size,
		CacheMaxSize:        cacheStats.MaxSize,
		HistorySize:         e.history.Size(),
		TotalHistoryWritten: e.history.TotalWritten(),
		PendingFileWrites:   e.files.Pending(),
	}
}

// Shutdown stops intake, waits for in-flight work, shuts the pool down,
// drains outstanding file writes and clears the cache. It is idempotent;
// Metrics stays usable afterwards.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.shutdownOnce.Do(func() {
		e.mu.Lock()
		e.down = true
		e.mu.Unlock()

		// Fail new and queued acquires fast, then wait out work already
		// holding a permit.
		e.gate.Close()
		e.inflight.Wait()

		e.pool.Shutdown()

		if err := e.files.Drain(ctx); err != nil {
			e.shutdownErr = fmt.Errorf("engine: drain file writes: %w", err)
		}

		e.cache.Close()

		e.logger.Info("engine shut down")
	})
	return e.shutdownErr
}
