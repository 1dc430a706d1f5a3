// Package config loads engine configuration from YAML files. Values left
// unset fall back to the engine defaults, so a minimal file only needs the
// knobs it wants to change. Environment variables referenced as ${NAME} are
// expanded before parsing, which keeps API keys out of checked-in files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/swarmexec/engine"
)

// Config is the root of a swarmexec YAML configuration file.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Executor ExecutorConfig `yaml:"executor"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// EngineConfig mirrors engine.Config with YAML tags and duration parsing.
type EngineConfig struct {
	MinConnections int           `yaml:"min_connections"`
	MaxConnections int           `yaml:"max_connections"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	CacheMaxSize   int           `yaml:"cache_max_size"`
	HistorySize    int           `yaml:"history_size"`
}

// ExecutorConfig selects and tunes the model provider backing the engine.
type ExecutorConfig struct {
	// Provider is "anthropic" or "openai".
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
	APIKey      string  `yaml:"api_key"`
	System      string  `yaml:"system"`
}

// OutputConfig controls where task results are written.
type OutputConfig struct {
	// Dir is the directory for per-task result records. Empty disables
	// record output.
	Dir string `yaml:"dir"`
}

// LoggingConfig tunes the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config: path cannot be empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	return LoadBytes(data)
}

// LoadBytes parses YAML configuration data. ${NAME} references are expanded
// from the environment before parsing.
func LoadBytes(data []byte) (*Config, error) {
	expanded := os.Expand(string(data), func(name string) string {
		return os.Getenv(name)
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Executor.Temperature == 0 {
		c.Executor.Temperature = 0.7
	}
	if c.Executor.MaxTokens == 0 {
		c.Executor.MaxTokens = 4096
	}
}

// Validate rejects configurations the engine could not run with.
func (c *Config) Validate() error {
	if c.Engine.MinConnections < 0 {
		return fmt.Errorf("config: engine.min_connections must not be negative")
	}
	if c.Engine.MaxConnections < 0 {
		return fmt.Errorf("config: engine.max_connections must not be negative")
	}
	if c.Engine.MaxConnections > 0 && c.Engine.MinConnections > c.Engine.MaxConnections {
		return fmt.Errorf("config: engine.min_connections (%d) exceeds engine.max_connections (%d)",
			c.Engine.MinConnections, c.Engine.MaxConnections)
	}
	if c.Engine.CacheTTL < 0 {
		return fmt.Errorf("config: engine.cache_ttl must not be negative")
	}

	switch c.Executor.Provider {
	case "", "anthropic", "openai":
	default:
		return fmt.Errorf("config: unknown executor provider %q", c.Executor.Provider)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown logging level %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown logging format %q", c.Logging.Format)
	}

	return nil
}

// EngineConfig converts the YAML block into the engine's config struct.
// Zero values fall through to the engine defaults.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		MinConnections: c.Engine.MinConnections,
		MaxConnections: c.Engine.MaxConnections,
		MaxConcurrency: c.Engine.MaxConcurrency,
		CacheTTL:       c.Engine.CacheTTL,
		CacheMaxSize:   c.Engine.CacheMaxSize,
		HistorySize:    c.Engine.HistorySize,
	}
}
