package engine

import "time"

// Metrics is a read-only aggregate snapshot combining the engine's internal
// counters with pool occupancy, cache statistics and history state. It is
// suitable for logging or serialization by an external reporting layer.
type Metrics struct {
	// Executions counts real executor invocations (cache misses that ran).
	Executions uint64 `json:"executions"`

	// CacheHits and CacheMisses count result cache lookups.
	CacheHits   uint64 `json:"cache_hits"`
	CacheMisses uint64 `json:"cache_misses"`

	// CacheHitRate is hits / (hits + misses), zero before any lookup.
	CacheHitRate float64 `json:"cache_hit_rate"`

	// ParallelTasksRun counts tasks processed through batch chunks.
	ParallelTasksRun uint64 `json:"parallel_tasks_run"`

	// AverageExecution is the mean executor call duration.
	AverageExecution time.Duration `json:"average_execution"`

	// PoolSize is the number of handles currently owned by the pool or by
	// running tasks; ActiveConnections counts only the latter.
	PoolSize          int `json:"pool_size"`
	ActiveConnections int `json:"active_connections"`

	// CacheSize is the current cache entry count.
	CacheSize    int `json:"cache_size"`
	CacheMaxSize int `json:"cache_max_size"`

	// HistorySize is the ring occupancy; TotalHistoryWritten never
	// decreases.
	HistorySize         int    `json:"history_size"`
	TotalHistoryWritten uint64 `json:"total_history_written"`

	// PendingFileWrites counts in-flight asynchronous file writes.
	PendingFileWrites int `json:"pending_file_writes"`
}
