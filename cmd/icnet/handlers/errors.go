package handlers

import "errors"

// Exit codes for the launcher's fatal error classes. Each class gets a
// distinct status so supervising tooling can tell a bad flag from a dead
// server without parsing the diagnostic line.
const (
	ExitGeneric      = 1
	ExitConfig       = 2
	ExitSpawn        = 3
	ExitProvisioning = 4
	ExitTimeout      = 5
)

// ExitError carries the exit status for a fatal launcher error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError wraps err with an exit status; nil stays nil.
func NewExitError(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

func exitErr(code int, err error) error {
	return NewExitError(code, err)
}

// ExitCode extracts the exit status from an error chain, defaulting to the
// generic failure status.
func ExitCode(err error) int {
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return ExitGeneric
}
