// Package core provides the foundational domain types and interfaces used by
// swarmexec. It defines the core abstractions for:
//
//   - Tasks (immutable units of caller-supplied work)
//   - TaskResults (the single record produced per execution)
//   - Executors (the external capability that actually fulfils a task)
//   - Execution errors (typed failures carrying task identity)
//
// The package intentionally keeps implementation concerns (pooling, caching,
// orchestration, concrete executors) out of scope, exposing small types to
// enable custom backends and extensions.
package core
