package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled
// from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger defines the minimal logging interface for swarmexec. This allows
// users to provide their own logger implementation or use the built-in
// adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// NoOpLogger discards all log messages. Useful for testing or when logging
// is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// EngineLogger wraps slog.Logger adding contextual cloning helpers and
// domain convenience methods. It is cheap to copy via With* methods.
type EngineLogger struct {
	logger    *slog.Logger
	level     LogLevel
	context   map[string]any
	component string
	engineID  string
	batchID   string
}

// LoggerConfig configures construction of an EngineLogger.
type LoggerConfig struct {
	Level       LogLevel
	Format      string // json or text
	Output      io.Writer
	AddSource   bool
	Component   string
	EngineID    string
	CustomAttrs map[string]any
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stdout, CustomAttrs: map[string]any{}}
}

// NewLogger builds an EngineLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *EngineLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return &EngineLogger{logger: slog.New(handler), level: cfg.Level, context: map[string]any{}, component: cfg.Component, engineID: cfg.EngineID}
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *EngineLogger) clone() *EngineLogger {
	nl := *l
	nl.context = map[string]any{}
	for k, v := range l.context {
		nl.context[k] = v
	}
	return &nl
}

// WithContext adds a key/value attribute attached to every log entry.
func (l *EngineLogger) WithContext(key string, value any) *EngineLogger {
	nl := l.clone()
	nl.context[key] = value
	return nl
}

// WithComponent sets the logical component (engine, pool, cache, etc.).
func (l *EngineLogger) WithComponent(c string) *EngineLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithBatch attaches a batch run identifier.
func (l *EngineLogger) WithBatch(batchID string) *EngineLogger {
	nl := l.clone()
	nl.batchID = batchID
	return nl
}

func (l *EngineLogger) buildAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(l.context)+4)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.engineID != "" {
		attrs = append(attrs, slog.String("engine_id", l.engineID))
	}
	if l.batchID != "" {
		attrs = append(attrs, slog.String("batch_id", l.batchID))
	}
	for k, v := range l.context {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func (l *EngineLogger) log(level slog.Level, allowed bool, msg string, args ...any) {
	if !allowed {
		return
	}
	logger := l.logger
	// Contextual attrs go through the handler so the variadic args keep
	// their slog key-value semantics.
	if attrs := l.buildAttrs(); len(attrs) > 0 {
		logger = slog.New(logger.Handler().WithAttrs(attrs))
	}
	logger.Log(context.Background(), level, msg, args...)
}

// Debug logs at debug level.
func (l *EngineLogger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, l.level <= LogLevelDebug, msg, args...)
}

// Info logs at info level.
func (l *EngineLogger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, l.level <= LogLevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *EngineLogger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, l.level <= LogLevelWarn, msg, args...)
}

// Error logs at error level.
func (l *EngineLogger) Error(msg string, args ...any) {
	l.log(slog.LevelError, l.level <= LogLevelError, msg, args...)
}

// LogTaskExecution records execution details for a single task run.
func (l *EngineLogger) LogTaskExecution(taskID, resourceID string, dur time.Duration, success bool, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.String("task_id", taskID), slog.String("resource_id", resourceID), slog.Duration("duration", dur), slog.Bool("success", success))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	level := slog.LevelInfo
	msg := "Task execution completed"
	if !success {
		level = slog.LevelError
		msg = "Task execution failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogCacheEvent records a cache hit or miss for a task key.
func (l *EngineLogger) LogCacheEvent(taskID string, hit bool) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.String("task_id", taskID), slog.Bool("cache_hit", hit))
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, "Cache lookup", attrs...)
}

// LogPoolState records pool occupancy for debugging saturation.
func (l *EngineLogger) LogPoolState(size, active, idle int) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.Int("pool_size", size), slog.Int("pool_active", active), slog.Int("pool_idle", idle))
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, "Pool state", attrs...)
}

// StartTimer returns a closure that logs the elapsed duration when invoked.
func (l *EngineLogger) StartTimer(op string) func() {
	start := time.Now()
	return func() {
		attrs := l.buildAttrs()
		attrs = append(attrs, slog.String("operation", op), slog.Duration("duration", time.Since(start)))
		l.logger.LogAttrs(context.Background(), slog.LevelInfo, "Operation completed", attrs...)
	}
}
