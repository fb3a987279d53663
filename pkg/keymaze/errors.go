package keymaze

import "fmt"

// OperationError reports an operation the engine refused to apply and why.
// It lets callers distinguish bad player input from internal failures.
type OperationError struct {
	Op     Operation
	Reason string
	Err    error
}

func (e *OperationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("operation %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("operation %s: %s", e.Op, e.Reason)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// NewOperationError creates a new OperationError.
func NewOperationError(op Operation, reason string, err error) *OperationError {
	return &OperationError{
		Op:     op,
		Reason: reason,
		Err:    err,
	}
}
