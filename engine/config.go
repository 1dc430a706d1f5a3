package engine

import "time"

// Config defines tuning parameters for the Engine's operational behavior.
//
// Zero values take the documented defaults; out-of-range combinations are
// normalized rather than rejected (e.g. a maximum below the minimum is
// raised to it), so a partially filled Config is always usable.
type Config struct {
	// MinConnections is the number of pooled resources created eagerly on
	// first use.
	MinConnections int

	// MaxConnections bounds the resource pool. Once reached, task
	// executions wait for a release instead of growing the pool.
	MaxConnections int

	// MaxConcurrency limits simultaneously executing tasks regardless of
	// how many are requested in a batch.
	MaxConcurrency int

	// CacheTTL is how long a successful result stays retrievable.
	CacheTTL time.Duration

	// CacheMaxSize bounds the result cache entry count; the least recently
	// used entry is evicted beyond it.
	CacheMaxSize int

	// HistorySize is the capacity of the execution history ring.
	HistorySize int
}

// DefaultConfig provides production-ready default configuration values.
var DefaultConfig = Config{
	MinConnections: 2,
	MaxConnections: 10,
	MaxConcurrency: 5,
	CacheTTL:       time.Hour,
	CacheMaxSize:   1000,
	HistorySize:    1000,
}

// withDefaults fills zero fields from DefaultConfig and normalizes
// out-of-range values.
func (c Config) withDefaults() Config {
	if c.MinConnections < 0 {
		c.MinConnections = 0
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = DefaultConfig.MaxConnections
	}
	if c.MaxConnections < c.MinConnections {
		c.MaxConnections = c.MinConnections
	}
	if c.MaxConcurrency < 1 {
		c.MaxConcurrency = DefaultConfig.MaxConcurrency
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultConfig.CacheTTL
	}
	if c.CacheMaxSize < 1 {
		c.CacheMaxSize = DefaultConfig.CacheMaxSize
	}
	if c.HistorySize < 1 {
		c.HistorySize = DefaultConfig.HistorySize
	}
	return c
}
