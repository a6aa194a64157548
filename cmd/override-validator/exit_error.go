package main

import (
	"errors"
	"fmt"
)

// Process exit codes. Walker failures use 1..maxFailureCode.
const (
	exitOK         = 0
	maxFailureCode = 254
	exitFatal      = 255
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// fatal wraps an invocation error.
func fatal(err error) error {
	return &ExitError{Code: exitFatal, Err: err}
}

// failures converts a failing-root count into an exit error.
func failures(n int) error {
	if n <= 0 {
		return nil
	}
	return &ExitError{Code: min(n, maxFailureCode), Err: fmt.Errorf("%d module(s) failed override validation", n)}
}

// exitCode maps a command error to the process status. Errors that are not
// an ExitError come from cobra itself (unknown flags, bad arguments) and are
// invocation errors.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return exitFatal
}
