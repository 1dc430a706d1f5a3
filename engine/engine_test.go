package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/swarmexec/core"
	"github.com/hupe1980/swarmexec/gate"
	"github.com/hupe1980/swarmexec/internal/testutil"
)

// countingExecutor records invocations and tracks how many run at once.
type countingExecutor struct {
	delay   time.Duration
	failFor map[string]error

	calls   atomic.Int64
	current atomic.Int64
	peak    atomic.Int64
}

func (x *countingExecutor) Execute(ctx context.Context, task core.Task) (core.TaskResult, error) {
	x.calls.Add(1)

	n := x.current.Add(1)
	for {
		p := x.peak.Load()
		if n <= p || x.peak.CompareAndSwap(p, n) {
			break
		}
	}
	defer x.current.Add(-1)

	if x.delay > 0 {
		select {
		case <-time.After(x.delay):
		case <-ctx.Done():
			return core.TaskResult{}, ctx.Err()
		}
	}

	if err, ok := x.failFor[task.ID]; ok {
		return core.TaskResult{}, err
	}

	return core.TaskResult{
		TaskID: task.ID,
		Status: core.TaskStatusSuccess,
		Output: "output for " + task.Objective,
	}, nil
}

// fakeClock drives cache expiry deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestKey_StableAndIdentitySensitive(t *testing.T) {
	a := core.Task{ID: "t1", Objective: "analyze", Parameters: map[string]any{"a": 1, "b": "x"}}
	b := core.Task{ID: "t1", Objective: "analyze", Parameters: map[string]any{"b": "x", "a": 1}}
	assert.Equal(t, Key(a), Key(b), "parameter order must not change the key")

	c := core.Task{ID: "t1", Objective: "analyze", Parameters: map[string]any{"a": 2, "b": "x"}}
	assert.NotEqual(t, Key(a), Key(c))

	d := a
	d.Metadata = map[string]any{"trace": "abc"}
	assert.Equal(t, Key(a), Key(d), "metadata must not influence the key")
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultConfig.MaxConnections, cfg.MaxConnections)
	assert.Equal(t, DefaultConfig.CacheTTL, cfg.CacheTTL)
	assert.Equal(t, DefaultConfig.CacheMaxSize, cfg.CacheMaxSize)
	assert.Equal(t, DefaultConfig.HistorySize, cfg.HistorySize)

	cfg = Config{MinConnections: 8, MaxConnections: 3}.withDefaults()
	assert.Equal(t, 8, cfg.MaxConnections, "max raised to min")
}

func TestEngine_RunCachesResult(t *testing.T) {
	x := &countingExecutor{}
	e := New(x)
	defer e.Shutdown(context.Background())

	task := core.Task{ID: "t1", Objective: "analyze repo"}

	first, err := e.Run(context.Background(), task)
	require.NoError(t, err)
	assert.True(t, first.Succeeded())
	assert.NotEmpty(t, first.ResourceID)

	second, err := e.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, first.Output, second.Output)

	assert.Equal(t, int64(1), x.calls.Load(), "hit must not reach the executor")

	m := e.Metrics()
	assert.Equal(t, uint64(1), m.Executions)
	assert.Equal(t, uint64(1), m.CacheHits)
	assert.Equal(t, uint64(1), m.CacheMisses)
	assert.Equal(t, uint64(1), m.TotalHistoryWritten, "hits do not append history")
}

func TestEngine_FailureRecordedNotCached(t *testing.T) {
	cause := errors.New("swarm unavailable")
	x := &countingExecutor{failFor: map[string]error{"bad": cause}}
	e := New(x)
	defer e.Shutdown(context.Background())

	task := core.Task{ID: "bad", Objective: "doomed"}

	result, err := e.Run(context.Background(), task)
	require.Error(t, err)

	var execErr *core.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "bad", execErr.TaskID)
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, core.TaskStatusFailure, result.Status)
	assert.Contains(t, result.Error, "swarm unavailable")

	// The failure reached the history ring but not the cache: a retry
	// executes again.
	assert.Equal(t, uint64(1), e.History().TotalWritten())
	_, err = e.Run(context.Background(), task)
	require.Error(t, err)
	assert.Equal(t, int64(2), x.calls.Load())
	assert.Equal(t, uint64(2), e.History().TotalWritten())
}

func TestEngine_ConcurrencyBound(t *testing.T) {
	const maxConcurrency = 3
	x := &countingExecutor{delay: 20 * time.Millisecond}
	e := New(x, WithConfig(Config{
		MaxConcurrency: maxConcurrency,
		MaxConnections: 10,
	}))
	defer e.Shutdown(context.Background())

	tasks := testutil.NewTaskBuilder().ID("t").Objective("job").Tasks(maxConcurrency * 3)

	_, err := e.RunBatch(context.Background(), tasks, len(tasks))
	require.NoError(t, err)

	assert.LessOrEqual(t, x.peak.Load(), int64(maxConcurrency),
		"never more than MaxConcurrency tasks inside the executor")
	assert.Equal(t, int64(len(tasks)), x.calls.Load())
}

func TestEngine_BatchOrderingPositional(t *testing.T) {
	// Later tasks finish earlier: t0 is the slowest.
	x := core.ExecutorFunc(func(ctx context.Context, task core.Task) (core.TaskResult, error) {
		var d time.Duration
		switch task.ID {
		case "t0":
			d = 40 * time.Millisecond
		case "t1":
			d = 20 * time.Millisecond
		}
		time.Sleep(d)
		return core.TaskResult{TaskID: task.ID, Status: core.TaskStatusSuccess, Output: task.ID}, nil
	})

	e := New(x)
	defer e.Shutdown(context.Background())

	tasks := []core.Task{
		{ID: "t0", Objective: "slow"},
		{ID: "t1", Objective: "medium"},
		{ID: "t2", Objective: "fast"},
	}

	results, err := e.RunBatch(context.Background(), tasks, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, tasks[i].ID, r.TaskID, "result order must match input order")
	}
}

func TestEngine_BatchFailureIsolation(t *testing.T) {
	x := &countingExecutor{failFor: map[string]error{"t1": errors.New("boom")}}
	e := New(x)
	defer e.Shutdown(context.Background())

	tasks := []core.Task{
		{ID: "t0", Objective: "ok"},
		{ID: "t1", Objective: "fails"},
		{ID: "t2", Objective: "ok"},
	}

	results, err := e.RunBatch(context.Background(), tasks, 2)
	require.NoError(t, err, "a task failure must not fail the batch")
	require.Len(t, results, 3)

	assert.True(t, results[0].Succeeded())
	assert.False(t, results[1].Succeeded())
	assert.Contains(t, results[1].Error, "boom")
	assert.True(t, results[2].Succeeded())
}

func TestEngine_BatchChunksSequential(t *testing.T) {
	x := &countingExecutor{delay: 10 * time.Millisecond}
	e := New(x, WithConfig(Config{MaxConcurrency: 10, MaxConnections: 10}))
	defer e.Shutdown(context.Background())

	tasks := testutil.NewTaskBuilder().ID("t").Objective("job").Tasks(6)

	_, err := e.RunBatch(context.Background(), tasks, 2)
	require.NoError(t, err)

	// Chunk size caps concurrency below the gate's limit.
	assert.LessOrEqual(t, x.peak.Load(), int64(2))
	assert.Equal(t, uint64(6), e.Metrics().ParallelTasksRun)
}

func TestEngine_EmptyBatchRejected(t *testing.T) {
	e := New(&countingExecutor{})
	defer e.Shutdown(context.Background())

	_, err := e.RunBatch(context.Background(), nil, 4)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestEngine_EndToEndScenario(t *testing.T) {
	clk := newFakeClock()
	x := &countingExecutor{}
	e := New(x,
		WithConfig(Config{
			CacheTTL:     time.Second,
			CacheMaxSize: 2,
			HistorySize:  5,
		}),
		WithClock(clk.Now),
	)
	defer e.Shutdown(context.Background())

	taskA := core.Task{ID: "a", Objective: "analyze"}

	// Miss: executes and caches.
	_, err := e.Run(context.Background(), taskA)
	require.NoError(t, err)

	// Hit within the TTL: no new execution, no new history record.
	_, err = e.Run(context.Background(), taskA)
	require.NoError(t, err)
	m := e.Metrics()
	assert.Equal(t, uint64(1), m.CacheHits)
	assert.Equal(t, uint64(1), m.TotalHistoryWritten)

	// TTL elapses: miss again, second execution, second history record.
	clk.Advance(time.Second)
	_, err = e.Run(context.Background(), taskA)
	require.NoError(t, err)

	m = e.Metrics()
	assert.Equal(t, uint64(2), m.Executions)
	assert.Equal(t, uint64(2), m.CacheMisses)
	assert.Equal(t, uint64(2), m.TotalHistoryWritten)
	assert.Equal(t, int64(2), x.calls.Load())
}

func TestEngine_MetricsSnapshot(t *testing.T) {
	x := &countingExecutor{}
	e := New(x, WithConfig(Config{MinConnections: 1, MaxConnections: 4, MaxConcurrency: 2}))
	defer e.Shutdown(context.Background())

	_, err := e.Run(context.Background(), core.Task{ID: "m1", Objective: "probe"})
	require.NoError(t, err)

	m := e.Metrics()
	assert.Equal(t, uint64(1), m.Executions)
	assert.GreaterOrEqual(t, m.PoolSize, 1)
	assert.Equal(t, 0, m.ActiveConnections)
	assert.Equal(t, 1, m.CacheSize)
	assert.Equal(t, 1, m.HistorySize)
	assert.Zero(t, m.PendingFileWrites)
	assert.InDelta(t, 0.0, m.CacheHitRate, 1e-9)
}

func TestEngine_ShutdownIdempotentAndFailsFast(t *testing.T) {
	e := New(&countingExecutor{})

	require.NoError(t, e.Shutdown(context.Background()))
	require.NoError(t, e.Shutdown(context.Background()))

	_, err := e.Run(context.Background(), core.Task{ID: "late", Objective: "too late"})
	assert.ErrorIs(t, err, ErrShutdown)

	// Metrics stays callable after shutdown, and the rejected run must not
	// leak into the cache counters.
	m := e.Metrics()
	assert.Zero(t, m.Executions)
	assert.Zero(t, m.CacheMisses)
	assert.Zero(t, m.CacheHits)
}

func TestEngine_ShutdownWaitsForInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	x := core.ExecutorFunc(func(ctx context.Context, task core.Task) (core.TaskResult, error) {
		close(started)
		<-release
		return core.TaskResult{TaskID: task.ID, Status: core.TaskStatusSuccess}, nil
	})

	e := New(x)

	done := make(chan core.TaskResult, 1)
	go func() {
		r, _ := e.Run(context.Background(), core.Task{ID: "slow", Objective: "long haul"})
		done <- r
	}()
	<-started

	shutdownDone := make(chan struct{})
	go func() {
		_ = e.Shutdown(context.Background())
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		t.Fatal("shutdown completed while a task was still executing")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)

	select {
	case <-shutdownDone:
	case <-time.After(time.Second):
		t.Fatal("shutdown never completed")
	}

	r := <-done
	assert.True(t, r.Succeeded(), "in-flight task completes across shutdown")
}

func TestEngine_GateClosedMapsToShutdown(t *testing.T) {
	e := New(&countingExecutor{})
	require.NoError(t, e.Shutdown(context.Background()))
	_, err := e.Run(context.Background(), core.Task{ID: "x", Objective: "y"})
	assert.ErrorIs(t, err, ErrShutdown)
	assert.NotErrorIs(t, err, gate.ErrGateClosed)
}
