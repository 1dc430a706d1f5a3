package executor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/swarmexec/core"
)

// Func adapts a string-producing function into a core.Executor. The engine
// fills in timing and resource attribution, so the adapter only reports
// output and status.
type Func func(ctx context.Context, task core.Task) (string, error)

// Execute implements core.Executor.
func (f Func) Execute(ctx context.Context, task core.Task) (core.TaskResult, error) {
	output, err := f(ctx, task)
	if err != nil {
		return core.TaskResult{}, err
	}

	return core.TaskResult{
		TaskID: task.ID,
		Status: core.TaskStatusSuccess,
		Output: output,
	}, nil
}

var _ core.Executor = (Func)(nil)

// RenderPrompt flattens a task into a single prompt string: the objective
// followed by its parameters in sorted key order, so identical tasks render
// identically across runs.
func RenderPrompt(task core.Task) string {
	if len(task.Parameters) == 0 {
		return task.Objective
	}

	keys := make([]string, 0, len(task.Parameters))
	for k := range task.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(task.Objective)
	b.WriteString("\n\nParameters:")
	for _, k := range keys {
		fmt.Fprintf(&b, "\n- %s: %v", k, task.Parameters[k])
	}

	return b.String()
}
