package testutil

import (
	"fmt"
	"time"

	"github.com/hupe1980/swarmexec/core"
)

// TaskBuilder provides a fluent helper for constructing tasks in tests.
// Example:
//
//	task := NewTaskBuilder().ID("t-1").Objective("summarize").Param("depth", 2).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type TaskBuilder struct {
	id        string
	objective string
	params    map[string]any
	metadata  map[string]any
}

// NewTaskBuilder creates a builder with default objective "test objective".
func NewTaskBuilder() *TaskBuilder {
	return &TaskBuilder{id: "task-1", objective: "test objective"}
}

// ID overrides the task ID (chainable).
func (b *TaskBuilder) ID(id string) *TaskBuilder { b.id = id; return b }

// Objective sets the task objective (chainable).
func (b *TaskBuilder) Objective(o string) *TaskBuilder { b.objective = o; return b }

// Param adds a single parameter (chainable).
func (b *TaskBuilder) Param(key string, value any) *TaskBuilder {
	if b.params == nil {
		b.params = map[string]any{}
	}
	b.params[key] = value
	return b
}

// Meta adds a single metadata entry (chainable).
func (b *TaskBuilder) Meta(key string, value any) *TaskBuilder {
	if b.metadata == nil {
		b.metadata = map[string]any{}
	}
	b.metadata[key] = value
	return b
}

// Build materializes the task.
func (b *TaskBuilder) Build() core.Task {
	return core.Task{
		ID:         b.id,
		Objective:  b.objective,
		Parameters: b.params,
		Metadata:   b.metadata,
	}
}

// Tasks produces n distinct tasks using the builder as a template, suffixing
// the ID and objective with the index.
func (b *TaskBuilder) Tasks(n int) []core.Task {
	tasks := make([]core.Task, n)
	for i := range tasks {
		t := b.Build()
		t.ID = fmt.Sprintf("%s-%d", b.id, i)
		t.Objective = fmt.Sprintf("%s %d", b.objective, i)
		tasks[i] = t
	}
	return tasks
}

// SuccessResult builds a successful result for the given task.
func SuccessResult(task core.Task, output string) core.TaskResult {
	return core.TaskResult{
		TaskID:   task.ID,
		Status:   core.TaskStatusSuccess,
		Output:   output,
		Duration: 10 * time.Millisecond,
	}
}

// FailureResult builds a failed result for the given task.
func FailureResult(task core.Task, errMsg string) core.TaskResult {
	return core.TaskResult{
		TaskID:   task.ID,
		Status:   core.TaskStatusFailure,
		Error:    errMsg,
		Duration: 10 * time.Millisecond,
	}
}
