package backtest

import "fmt"

// InputValidationError rejects a request before any evaluation happens:
// missing price data or missing required columns.
type InputValidationError struct {
	Reason string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("invalid backtest input: %s", e.Reason)
}

func validationErrorf(format string, args ...interface{}) error {
	return &InputValidationError{Reason: fmt.Sprintf(format, args...)}
}
