package core

import "fmt"

// ExecutionError reports a failed executor invocation for a single task.
// Batch execution converts it into a failed TaskResult for that task only;
// it never aborts sibling tasks.
type ExecutionError struct {
	// TaskID identifies the failed task.
	TaskID string
	// Err is the underlying executor failure.
	Err error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed for task %s: %v", e.TaskID, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *ExecutionError) Unwrap() error { return e.Err }

// NewExecutionError wraps an executor failure with the task identity.
func NewExecutionError(taskID string, err error) *ExecutionError {
	return &ExecutionError{TaskID: taskID, Err: err}
}
