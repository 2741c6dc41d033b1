package tool

import (
	"errors"
	"fmt"
)

var ErrNotRegistered = errors.New("tool is not registered")

// ValidationError reports tool input that failed its schema. It is reported
// back to the model as a tool error so the model can retry with corrected
// input; the executor is never invoked.
type ValidationError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("tool %q: invalid input: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("tool %q: invalid input field %q: %s", e.Tool, e.Field, e.Reason)
}

// ExecutionError reports a tool handler that failed or panicked. It aborts
// the tool call but is recoverable at the conversation level.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %q failed: %s", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
