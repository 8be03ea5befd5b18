// SPDX-License-Identifier: MPL-2.0

package matrix

import (
	"errors"
	"fmt"
)

// ErrEmptyMatrix is returned when a run is requested without any variant.
// It wraps ErrConfiguration.
var ErrEmptyMatrix = fmt.Errorf("%w: matrix has no variants", ErrConfiguration)

type (
	// DuplicateVariantNameError is returned when two variants share a name.
	DuplicateVariantNameError struct {
		Name        VariantName
		FirstIndex  int
		SecondIndex int
	}
)

// Error implements the error interface for DuplicateVariantNameError.
func (e *DuplicateVariantNameError) Error() string {
	return fmt.Sprintf("duplicate variant name %q at positions %d and %d", e.Name, e.FirstIndex, e.SecondIndex)
}

// Unwrap returns ErrConfiguration for errors.Is() compatibility.
func (e *DuplicateVariantNameError) Unwrap() error { return ErrConfiguration }

// ValidateMatrix checks the whole matrix before dispatch: it must be
// non-empty, every config must be valid, and names must be unique.
// All violations are joined; every one of them wraps ErrConfiguration.
func ValidateMatrix(configs []BuildConfig) error {
	if len(configs) == 0 {
		return ErrEmptyMatrix
	}

	var errs []error
	seen := make(map[VariantName]int, len(configs))
	for i, c := range configs {
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
		}
		if first, dup := seen[c.Name]; dup {
			errs = append(errs, &DuplicateVariantNameError{Name: c.Name, FirstIndex: first, SecondIndex: i})
			continue
		}
		seen[c.Name] = i
	}
	return errors.Join(errs...)
}
