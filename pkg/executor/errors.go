package executor

import (
	"errors"
	"fmt"
)

var (
	// ErrPlatformNotFound means none of the node's valid platforms is
	// offered by the assignment's project.
	ErrPlatformNotFound = errors.New("no compatible platform")

	// ErrExecutionFailed matches every *ExecutionError
	ErrExecutionFailed = errors.New("execution failed")
)

// ExecutionError reports an assignment whose binary did not exit with
// status 0. The captured output is kept for logging.
type ExecutionError struct {
	AssignmentID int64
	ExitCode     int
	Stdout       []byte
	Stderr       []byte
	// Err is set when no exit status could be obtained
	Err error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("assignment %d: %s: %v", e.AssignmentID, ErrExecutionFailed, e.Err)
	}
	return fmt.Sprintf("assignment %d: %s: exit status %d", e.AssignmentID, ErrExecutionFailed, e.ExitCode)
}

// Is makes errors.Is(err, ErrExecutionFailed) hold
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecutionFailed
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
