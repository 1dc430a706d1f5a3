package core

import (
	"time"

	"github.com/google/uuid"
)

// Task is an immutable unit of caller-supplied work. The engine never
// mutates a task; it only derives a cache key from its identity and hands
// it to an Executor.
type Task struct {
	// ID uniquely identifies the task. Tasks sharing an ID (and objective
	// and parameters) share a cache entry.
	ID string

	// Objective describes what the executor should accomplish.
	Objective string

	// Parameters carries structured executor inputs. Part of the task
	// identity: two tasks with different parameters never share a cache key.
	Parameters map[string]any

	// Metadata is an optional free-form extension field. It is NOT part of
	// the task identity and never influences caching.
	Metadata map[string]any
}

// NewTask constructs a task with a generated UUID.
func NewTask(objective string, params map[string]any) Task {
	return Task{ID: uuid.NewString(), Objective: objective, Parameters: params}
}

// TaskStatus reports whether an execution succeeded.
type TaskStatus string

const (
	// TaskStatusSuccess marks a completed execution.
	TaskStatusSuccess TaskStatus = "success"
	// TaskStatusFailure marks an execution that returned an error.
	TaskStatusFailure TaskStatus = "failure"
)

// TaskResult is produced exactly once per execution and is the unit stored
// in both the result cache and the history buffer.
type TaskResult struct {
	// TaskID identifies the task this result belongs to.
	TaskID string

	// Status is success or failure.
	Status TaskStatus

	// Output is the executor's produced result. Empty on failure.
	Output string

	// Error holds the failure message when Status is failure.
	Error string

	// Duration is the wall time the executor call took.
	Duration time.Duration

	// ResourceID names the pooled resource the execution ran on. Empty for
	// results served from the cache.
	ResourceID string
}

// Succeeded reports whether the result represents a successful execution.
func (r TaskResult) Succeeded() bool { return r.Status == TaskStatusSuccess }
