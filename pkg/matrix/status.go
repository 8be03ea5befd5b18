// SPDX-License-Identifier: MPL-2.0

package matrix

import (
	"errors"
	"fmt"
)

const (
	// StatusStable means the failure count stayed below the unstable threshold.
	StatusStable Status = "stable"
	// StatusUnstable means the failure count reached the unstable threshold
	// but stayed below the failure threshold.
	StatusUnstable Status = "unstable"
	// StatusFailed means the failure count reached the failure threshold.
	StatusFailed Status = "failed"
	// StatusBuildError means the variant never reached its test phase: a build
	// command failed or the infrastructure (provisioning, checkout, install) did.
	StatusBuildError Status = "buildError"
)

// ErrInvalidStatus is returned when a Status value is not recognized.
var ErrInvalidStatus = errors.New("invalid status")

type (
	// Status is the outcome tier of a variant or a job.
	Status string

	// InvalidStatusError is returned when a Status value is not recognized.
	// It wraps ErrInvalidStatus for errors.Is() compatibility.
	InvalidStatusError struct {
		Value Status
	}
)

// String returns the string representation of the Status.
func (s Status) String() string { return string(s) }

// IsValid returns whether the Status is one of the defined tiers.
func (s Status) IsValid() (bool, []error) {
	switch s {
	case StatusStable, StatusUnstable, StatusFailed, StatusBuildError:
		return true, nil
	default:
		return false, []error{&InvalidStatusError{Value: s}}
	}
}

// UnmarshalText decodes a status and rejects values outside the defined
// tiers, so JSON job results read back from disk carry only known statuses.
func (s *Status) UnmarshalText(text []byte) error {
	st := Status(text)
	if valid, errs := st.IsValid(); !valid {
		return errs[0]
	}
	*s = st
	return nil
}

// Severity orders statuses: stable < unstable < failed == buildError.
// Unknown statuses are treated as failed.
func (s Status) Severity() int {
	switch s {
	case StatusStable:
		return 0
	case StatusUnstable:
		return 1
	default:
		return 2
	}
}

// Worse returns whichever of s and other is more severe. On equal severity
// s is returned.
func (s Status) Worse(other Status) Status {
	if other.Severity() > s.Severity() {
		return other
	}
	return s
}

// Error implements the error interface for InvalidStatusError.
func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status %q (valid: stable, unstable, failed, buildError)", e.Value)
}

// Unwrap returns ErrInvalidStatus for errors.Is() compatibility.
func (e *InvalidStatusError) Unwrap() error { return ErrInvalidStatus }
