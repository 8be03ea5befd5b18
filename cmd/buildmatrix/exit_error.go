// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/invowk/buildmatrix/pkg/matrix"
	"github.com/invowk/buildmatrix/pkg/types"
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCodeFor maps a job verdict to the process exit code. A skipped job
// exits successfully.
func exitCodeFor(job matrix.JobResult) types.ExitCode {
	if job.Skipped {
		return types.ExitSuccess
	}
	switch job.Status {
	case matrix.StatusStable:
		return types.ExitSuccess
	case matrix.StatusUnstable:
		return types.ExitUnstable
	default:
		return types.ExitFailed
	}
}
