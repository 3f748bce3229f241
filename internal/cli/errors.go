package cli

import "fmt"

// ExitError signals a specific process exit code from a Cobra RunE function
// without calling os.Exit directly, so the command tree stays testable.
//
// Gate commands use the full exit-code contract (0 PASS, 1 FAIL, 2 PENDING,
// 3 BLOCKED); [RunWithConfig] extracts the code with [IsExitError] and only
// [Execute] terminates the process.
type ExitError struct {
	// Code is the exit code to return to the shell.
	Code int
}

// Error returns "exit status N", matching the os/exec convention.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewExitError creates an [ExitError] with the given exit code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError reports whether err is an [ExitError] and extracts its code.
// Returns (0, false) for nil or other error types.
func IsExitError(err error) (int, bool) {
	if exitErr, ok := err.(*ExitError); ok {
		return exitErr.Code, true
	}
	return 0, false
}
