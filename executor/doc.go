// Package executor provides adapters that turn plain functions and model
// provider clients into core.Executor implementations consumable by the
// engine. Provider-specific adapters live in subpackages (anthropic,
// openai); this package holds the shared prompt rendering and the generic
// function adapter.
package executor
