package factor

import (
	"errors"
	"fmt"
)

// ErrMissingFactorColumn reports calculation logic that completed without
// assigning the factor column the rest of the pipeline requires.
var ErrMissingFactorColumn = errors.New("calculation logic did not assign a 'factor' column")

// ExecutionError wraps any failure raised while parsing or evaluating
// calculation logic. It is the only error shape (besides
// ErrMissingFactorColumn) that escapes
// the evaluator; the host process never sees a panic.
type ExecutionError struct {
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("factor execution error: %v", e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

func execErrorf(format string, args ...interface{}) error {
	return &ExecutionError{Cause: fmt.Errorf(format, args...)}
}
