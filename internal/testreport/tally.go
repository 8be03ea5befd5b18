// SPDX-License-Identifier: MPL-2.0

package testreport

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/invowk/buildmatrix/pkg/types"
)

type (
	// Collection is the result of reading every report of a variant.
	Collection struct {
		Counts
		// Files lists the report files that were parsed successfully.
		Files []string
		// Unparsable maps report files that could not be read to the reason.
		Unparsable map[string]error
	}

	// Tally is the outcome a variant's test phase is judged by.
	Tally struct {
		FailureCount int
		ErrorCount   int
	}
)

// Found reports whether any report file matched, readable or not.
func (c Collection) Found() bool {
	return len(c.Files) > 0 || len(c.Unparsable) > 0
}

// Collect parses every file under dir matching one of patterns. Patterns use
// filepath.Match syntax relative to dir. A file matched by several patterns
// is read once.
func Collect(dir string, patterns []string) (Collection, error) {
	var matches []string
	for _, pattern := range patterns {
		found, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return Collection{}, fmt.Errorf("invalid report pattern %q: %w", pattern, err)
		}
		matches = append(matches, found...)
	}
	slices.Sort(matches)
	matches = slices.Compact(matches)

	var col Collection
	for _, path := range matches {
		c, err := ParseFile(path)
		if err != nil {
			if col.Unparsable == nil {
				col.Unparsable = make(map[string]error)
			}
			col.Unparsable[path] = err
			continue
		}
		col.Counts = col.Counts.Add(c)
		col.Files = append(col.Files, path)
	}
	return col, nil
}

// Compute applies the counting rule. With reports, their failures and errors
// count, each unparsable file adds an error, and when the reports hold no
// failures or errors every non-zero test command adds an error. Without
// reports, every non-zero test command counts as one failure.
func Compute(col Collection, testExitCodes []types.ExitCode) Tally {
	nonZero := 0
	for _, code := range testExitCodes {
		if !code.IsSuccess() {
			nonZero++
		}
	}

	if !col.Found() {
		return Tally{FailureCount: nonZero}
	}

	t := Tally{
		FailureCount: col.Failures,
		ErrorCount:   col.Errors + len(col.Unparsable),
	}
	if col.Failures == 0 && col.Errors == 0 {
		t.ErrorCount += nonZero
	}
	return t
}
