// SPDX-License-Identifier: MPL-2.0

package matrix

import (
	"fmt"
	"strings"
)

type (
	// EnvVar is a single KEY=VALUE environment entry.
	EnvVar string

	// InvalidEnvVarError is returned when an EnvVar is not of the form KEY=VALUE
	// with a non-empty key.
	InvalidEnvVarError struct {
		Value EnvVar
	}
)

// String returns the string representation of the EnvVar.
func (v EnvVar) String() string { return string(v) }

// Split returns the key and value of the entry. ok is false when the entry
// has no '=' separator.
func (v EnvVar) Split() (key, value string, ok bool) {
	return strings.Cut(string(v), "=")
}

// IsValid returns whether the EnvVar is KEY=VALUE with a non-empty key.
func (v EnvVar) IsValid() (bool, []error) {
	key, _, ok := v.Split()
	if !ok || strings.TrimSpace(key) == "" {
		return false, []error{&InvalidEnvVarError{Value: v}}
	}
	return true, nil
}

// Error implements the error interface for InvalidEnvVarError.
func (e *InvalidEnvVarError) Error() string {
	return fmt.Sprintf("invalid env var %q: must be KEY=VALUE with a non-empty key", e.Value)
}

// Unwrap returns ErrConfiguration for errors.Is() compatibility.
func (e *InvalidEnvVarError) Unwrap() error { return ErrConfiguration }

// MergeEnv applies vars on top of base (both KEY=VALUE lists) and returns a new
// list. A later entry for an existing key replaces the earlier value in place,
// so the result holds each key once, in order of first appearance.
// Malformed entries are skipped.
func MergeEnv(base []string, vars ...EnvVar) []string {
	out := make([]string, 0, len(base)+len(vars))
	index := make(map[string]int, len(base)+len(vars))

	put := func(entry string) {
		key, _, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			return
		}
		if i, seen := index[key]; seen {
			out[i] = entry
			return
		}
		index[key] = len(out)
		out = append(out, entry)
	}

	for _, e := range base {
		put(e)
	}
	for _, v := range vars {
		put(string(v))
	}
	return out
}

// EnvVarsFromMap converts a map to EnvVar entries sorted by key.
func EnvVarsFromMap(m map[string]string) []EnvVar {
	keys := sortedKeys(m)
	out := make([]EnvVar, 0, len(keys))
	for _, k := range keys {
		out = append(out, EnvVar(k+"="+m[k]))
	}
	return out
}
