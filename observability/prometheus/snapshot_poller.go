// Package prometheus exports engine metrics snapshots as Prometheus
// collectors. The poller pulls Metrics() from registered engines on a fixed
// interval and mirrors the values into gauges, so the engine itself stays
// free of metrics dependencies.
package prometheus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/swarmexec/engine"
)

// MetricsProvider provides current engine metrics snapshots.
type MetricsProvider interface {
	Metrics() engine.Metrics
}

var _ MetricsProvider = (*engine.Engine)(nil)

// SnapshotPoller periodically exports engine Metrics() snapshots into
// Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	enginesMu sync.RWMutex
	engines   map[string]MetricsProvider

	executions     *prom.GaugeVec
	cacheHits      *prom.GaugeVec
	cacheMisses    *prom.GaugeVec
	cacheHitRate   *prom.GaugeVec
	cacheSize      *prom.GaugeVec
	parallelTasks  *prom.GaugeVec
	avgExecSeconds *prom.GaugeVec
	poolSize       *prom.GaugeVec
	poolActive     *prom.GaugeVec
	historySize    *prom.GaugeVec
	historyWritten *prom.GaugeVec
	pendingWrites  *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "swarmexec",
			Name:      name,
			Help:      help,
		}, []string{"engine"})
	}

	p := &SnapshotPoller{
		interval:       interval,
		engines:        make(map[string]MetricsProvider),
		executions:     gauge("executions_total", "Total executions that reached the executor."),
		cacheHits:      gauge("cache_hits_total", "Cache hit count snapshot."),
		cacheMisses:    gauge("cache_misses_total", "Cache miss count snapshot."),
		cacheHitRate:   gauge("cache_hit_rate", "Cache hit rate in [0,1]."),
		cacheSize:      gauge("cache_size", "Live cache entries."),
		parallelTasks:  gauge("parallel_tasks_run_total", "Tasks executed through batch runs."),
		avgExecSeconds: gauge("average_execution_seconds", "Mean executor latency in seconds."),
		poolSize:       gauge("pool_size", "Resources currently owned by the pool."),
		poolActive:     gauge("pool_active", "Resources currently checked out of the pool."),
		historySize:    gauge("history_size", "Records currently retained in the history ring."),
		historyWritten: gauge("history_written_total", "Records ever pushed to the history ring."),
		pendingWrites:  gauge("pending_file_writes", "File writes enqueued but not yet flushed."),
	}

	collectors := []**prom.GaugeVec{
		&p.executions, &p.cacheHits, &p.cacheMisses, &p.cacheHitRate, &p.cacheSize,
		&p.parallelTasks, &p.avgExecSeconds, &p.poolSize, &p.poolActive,
		&p.historySize, &p.historyWritten, &p.pendingWrites,
	}
	for _, c := range collectors {
		registered, err := registerCollector(reg, *c)
		if err != nil {
			return nil, err
		}
		*c = registered
	}

	return p, nil
}

// AddEngine adds or replaces a metrics provider by name.
func (p *SnapshotPoller) AddEngine(name string, provider MetricsProvider) {
	if p == nil || provider == nil {
		return
	}
	if name == "" {
		name = "engine"
	}
	p.enginesMu.Lock()
	p.engines[name] = provider
	p.enginesMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.CollectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.CollectOnce()
		}
	}
}

// CollectOnce snapshots every registered engine immediately. The polling
// loop calls it on each tick; tests call it directly.
func (p *SnapshotPoller) CollectOnce() {
	p.enginesMu.RLock()
	defer p.enginesMu.RUnlock()

	for name, provider := range p.engines {
		m := provider.Metrics()
		p.executions.WithLabelValues(name).Set(float64(m.Executions))
		p.cacheHits.WithLabelValues(name).Set(float64(m.CacheHits))
		p.cacheMisses.WithLabelValues(name).Set(float64(m.CacheMisses))
		p.cacheHitRate.WithLabelValues(name).Set(m.CacheHitRate)
		p.cacheSize.WithLabelValues(name).Set(float64(m.CacheSize))
		p.parallelTasks.WithLabelValues(name).Set(float64(m.ParallelTasksRun))
		p.avgExecSeconds.WithLabelValues(name).Set(m.AverageExecution.Seconds())
		p.poolSize.WithLabelValues(name).Set(float64(m.PoolSize))
		p.poolActive.WithLabelValues(name).Set(float64(m.ActiveConnections))
		p.historySize.WithLabelValues(name).Set(float64(m.HistorySize))
		p.historyWritten.WithLabelValues(name).Set(float64(m.TotalHistoryWritten))
		p.pendingWrites.WithLabelValues(name).Set(float64(m.PendingFileWrites))
	}
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
