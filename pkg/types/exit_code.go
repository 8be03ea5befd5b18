// SPDX-License-Identifier: MPL-2.0

// Package types holds small value types shared across packages.
package types

import (
	"errors"
	"fmt"
	"strconv"
)

// Process exit codes reported by the buildmatrix CLI.
const (
	ExitSuccess ExitCode = 0
	// ExitFailed is returned when the job status is failed.
	ExitFailed ExitCode = 1
	// ExitUnstable is returned when the job status is unstable.
	ExitUnstable ExitCode = 2
	// ExitConfig is returned for configuration and usage errors detected
	// before any variant is dispatched.
	ExitConfig ExitCode = 3

	// ExitCommandNotFound is the shell's status for an unknown command.
	ExitCommandNotFound ExitCode = 127
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode is a process exit status in the range 0-255. Zero is success.
	ExitCode int

	// InvalidExitCodeError is returned by Validate for out-of-range codes.
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate rejects codes outside 0-255.
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

func (c ExitCode) IsSuccess() bool { return c == 0 }

// IsRetryable reports whether rerunning the command may succeed. A missing
// command will stay missing.
func (c ExitCode) IsRetryable() bool {
	return c != 0 && c != ExitCommandNotFound
}

func (c ExitCode) String() string { return strconv.Itoa(int(c)) }
