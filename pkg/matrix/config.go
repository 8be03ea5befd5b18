// SPDX-License-Identifier: MPL-2.0

package matrix

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfiguration is the sentinel wrapped by every configuration error.
// Configuration errors are detected before any variant is dispatched.
var ErrConfiguration = errors.New("configuration error")

type (
	// VariantName is the human-readable label of a variant.
	// It must be non-empty and unique within one matrix run.
	VariantName string

	// NodeType selects the kind of execution environment a variant requests
	// (for example an OS or platform tag).
	NodeType string

	// BuildConfig describes one cell of the matrix.
	// Treat values as immutable once submitted for execution; derive new
	// variants with Clone and the Set* methods.
	BuildConfig struct {
		Name              VariantName
		NodeType          NodeType
		EnvVars           []EnvVar
		Channels          []string
		Packages          []string
		BuildCommands     []string
		TestCommands      []string
		TestReports       []string
		UnstableThreshold int
		FailureThreshold  int
	}

	// Option configures a BuildConfig created by NewBuildConfig.
	Option func(*BuildConfig)

	// InvalidVariantNameError is returned when a VariantName is empty or whitespace-only.
	InvalidVariantNameError struct {
		Value VariantName
	}

	// InvalidThresholdsError is returned when thresholds are negative or
	// FailureThreshold is lower than UnstableThreshold.
	InvalidThresholdsError struct {
		Unstable int
		Failure  int
	}

	// InvalidEntryError is returned when a sequence field holds an empty entry.
	InvalidEntryError struct {
		Field string
		Index int
	}

	// InvalidBuildConfigError collects field-level validation errors of one BuildConfig.
	InvalidBuildConfigError struct {
		Name        VariantName
		FieldErrors []error
	}
)

// NewBuildConfig creates a validated BuildConfig.
func NewBuildConfig(name VariantName, nodeType NodeType, opts ...Option) (BuildConfig, error) {
	cfg := BuildConfig{Name: name, NodeType: nodeType}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return BuildConfig{}, err
	}
	return cfg, nil
}

// WithEnvVars sets the KEY=VALUE environment entries.
func WithEnvVars(vars ...EnvVar) Option {
	return func(c *BuildConfig) { c.EnvVars = append([]EnvVar(nil), vars...) }
}

// WithChannels sets the package sources, highest priority first.
func WithChannels(channels ...string) Option {
	return func(c *BuildConfig) { c.Channels = append([]string(nil), channels...) }
}

// WithPackages sets the dependency specifiers to install before the build.
func WithPackages(packages ...string) Option {
	return func(c *BuildConfig) { c.Packages = append([]string(nil), packages...) }
}

// WithBuildCommands sets the build commands.
func WithBuildCommands(commands ...string) Option {
	return func(c *BuildConfig) { c.BuildCommands = append([]string(nil), commands...) }
}

// WithTestCommands sets the test commands.
func WithTestCommands(commands ...string) Option {
	return func(c *BuildConfig) { c.TestCommands = append([]string(nil), commands...) }
}

// WithTestReports sets the JUnit report glob patterns.
func WithTestReports(patterns ...string) Option {
	return func(c *BuildConfig) { c.TestReports = append([]string(nil), patterns...) }
}

// WithThresholds sets the unstable and failure thresholds.
func WithThresholds(unstable, failure int) Option {
	return func(c *BuildConfig) {
		c.UnstableThreshold = unstable
		c.FailureThreshold = failure
	}
}

// String returns the string representation of the VariantName.
func (n VariantName) String() string { return string(n) }

// IsValid returns whether the VariantName is non-empty.
func (n VariantName) IsValid() (bool, []error) {
	if strings.TrimSpace(string(n)) == "" {
		return false, []error{&InvalidVariantNameError{Value: n}}
	}
	return true, nil
}

// String returns the string representation of the NodeType.
func (t NodeType) String() string { return string(t) }

// IsValid returns whether the BuildConfig satisfies every field constraint.
func (c BuildConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Name.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.UnstableThreshold < 0 || c.FailureThreshold < 0 || c.FailureThreshold < c.UnstableThreshold {
		errs = append(errs, &InvalidThresholdsError{Unstable: c.UnstableThreshold, Failure: c.FailureThreshold})
	}
	for i, v := range c.EnvVars {
		if valid, fieldErrs := v.IsValid(); !valid {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Errorf("env_vars[%d]: %w", i, fe))
			}
		}
	}
	errs = append(errs, checkEntries("channels", c.Channels)...)
	errs = append(errs, checkEntries("packages", c.Packages)...)
	errs = append(errs, checkEntries("build", c.BuildCommands)...)
	errs = append(errs, checkEntries("test", c.TestCommands)...)
	errs = append(errs, checkEntries("test_reports", c.TestReports)...)
	if len(errs) > 0 {
		return false, []error{&InvalidBuildConfigError{Name: c.Name, FieldErrors: errs}}
	}
	return true, nil
}

// Validate returns nil when the BuildConfig is valid, or the
// *InvalidBuildConfigError describing every violation.
func (c BuildConfig) Validate() error {
	if valid, errs := c.IsValid(); !valid {
		return errs[0]
	}
	return nil
}

func checkEntries(field string, entries []string) []error {
	var errs []error
	for i, e := range entries {
		if strings.TrimSpace(e) == "" {
			errs = append(errs, &InvalidEntryError{Field: field, Index: i})
		}
	}
	return errs
}

// Error implements the error interface for InvalidVariantNameError.
func (e *InvalidVariantNameError) Error() string {
	return fmt.Sprintf("invalid variant name %q: must be non-empty", e.Value)
}

// Unwrap returns ErrConfiguration for errors.Is() compatibility.
func (e *InvalidVariantNameError) Unwrap() error { return ErrConfiguration }

// Error implements the error interface for InvalidThresholdsError.
func (e *InvalidThresholdsError) Error() string {
	return fmt.Sprintf(
		"invalid thresholds unstable=%d failure=%d: both must be non-negative and failure >= unstable",
		e.Unstable, e.Failure,
	)
}

// Unwrap returns ErrConfiguration for errors.Is() compatibility.
func (e *InvalidThresholdsError) Unwrap() error { return ErrConfiguration }

// Error implements the error interface for InvalidEntryError.
func (e *InvalidEntryError) Error() string {
	return fmt.Sprintf("%s[%d]: entry must be non-empty", e.Field, e.Index)
}

// Unwrap returns ErrConfiguration for errors.Is() compatibility.
func (e *InvalidEntryError) Unwrap() error { return ErrConfiguration }

// Error implements the error interface for InvalidBuildConfigError.
func (e *InvalidBuildConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, fe := range e.FieldErrors {
		msgs[i] = fe.Error()
	}
	return fmt.Sprintf("invalid build config %q: %s", e.Name, strings.Join(msgs, "; "))
}

// Unwrap exposes ErrConfiguration and the individual field errors to
// errors.Is and errors.As.
func (e *InvalidBuildConfigError) Unwrap() []error {
	return append([]error{ErrConfiguration}, e.FieldErrors...)
}
