// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/invowk/buildmatrix/pkg/matrix"
)

// Supported document formats.
const (
	FormatCUE  Format = "cue"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatHCL  Format = "hcl"
)

var (
	// ErrUnsupportedFormat is returned for file extensions without a decoder.
	ErrUnsupportedFormat = errors.New("unsupported matrix file format")

	// ErrDecode wraps syntax and schema errors from the format decoders.
	ErrDecode = fmt.Errorf("%w: invalid matrix file", matrix.ErrConfiguration)
)

type (
	// Format names a document encoding.
	Format string

	// Matrix is a fully resolved build matrix.
	Matrix struct {
		// Policy is nil when the document has no policy block.
		Policy  *matrix.JobPolicy
		Configs []matrix.BuildConfig
	}

	// UnknownVariantError reports a reference to a variant that does not exist.
	UnknownVariantError struct {
		Name matrix.VariantName
		// Referrer is the variant whose extends points at Name. It is empty
		// when the reference came from a name filter.
		Referrer matrix.VariantName
	}

	document struct {
		Policy   *policySpec   `json:"policy,omitempty" yaml:"policy" toml:"policy" hcl:"policy,block"`
		Variants []variantSpec `json:"variants" yaml:"variants" toml:"variants" hcl:"variant,block"`
	}

	policySpec struct {
		PostSummary bool `json:"post_summary" yaml:"post_summary" toml:"post_summary" hcl:"post_summary,optional"`
	}

	variantSpec struct {
		Name              string        `json:"name" yaml:"name" toml:"name" hcl:"name,label"`
		Extends           string        `json:"extends,omitempty" yaml:"extends" toml:"extends" hcl:"extends,optional"`
		Abstract          bool          `json:"abstract,omitempty" yaml:"abstract" toml:"abstract" hcl:"abstract,optional"`
		NodeType          *string       `json:"node_type,omitempty" yaml:"node_type" toml:"node_type" hcl:"node_type,optional"`
		EnvVars           []string      `json:"env_vars,omitempty" yaml:"env_vars" toml:"env_vars" hcl:"env_vars,optional"`
		Channels          []string      `json:"channels,omitempty" yaml:"channels" toml:"channels" hcl:"channels,optional"`
		Packages          []string      `json:"packages,omitempty" yaml:"packages" toml:"packages" hcl:"packages,optional"`
		Build             []string      `json:"build,omitempty" yaml:"build" toml:"build" hcl:"build,optional"`
		Test              []string      `json:"test,omitempty" yaml:"test" toml:"test" hcl:"test,optional"`
		TestReports       []string      `json:"test_reports,omitempty" yaml:"test_reports" toml:"test_reports" hcl:"test_reports,optional"`
		UnstableThreshold *int          `json:"unstable_threshold,omitempty" yaml:"unstable_threshold" toml:"unstable_threshold" hcl:"unstable_threshold,optional"`
		FailureThreshold  *int          `json:"failure_threshold,omitempty" yaml:"failure_threshold" toml:"failure_threshold" hcl:"failure_threshold,optional"`
		Axes              []matrix.Axis `json:"axes,omitempty" yaml:"axes" toml:"axes" hcl:"axis,block"`
	}
)

func (f Format) String() string { return string(f) }

// IsValid reports whether f has a decoder.
func (f Format) IsValid() (bool, []error) {
	switch f {
	case FormatCUE, FormatYAML, FormatTOML, FormatHCL:
		return true, nil
	default:
		return false, []error{fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))}
	}
}

// FormatFromPath picks a format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return FormatCUE, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", fmt.Errorf("%w: %s (expected .cue, .yaml, .yml, .toml or .hcl)", ErrUnsupportedFormat, path)
	}
}

// Load reads, decodes and resolves the matrix file at path.
func Load(path string) (*Matrix, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read matrix file: %w", err)
	}
	return Parse(data, format, filepath.Base(path))
}

// Parse decodes data in the given format and resolves it. filename only
// appears in error messages.
func Parse(data []byte, format Format, filename string) (*Matrix, error) {
	var (
		doc *document
		err error
	)
	switch format {
	case FormatCUE:
		doc, err = decodeCUE(data, filename)
	case FormatYAML:
		doc, err = decodeYAML(data, filename)
	case FormatTOML:
		doc, err = decodeTOML(data, filename)
	case FormatHCL:
		doc, err = decodeHCL(data, filename)
	default:
		_, errs := format.IsValid()
		return nil, errs[0]
	}
	if err != nil {
		return nil, err
	}
	return doc.resolve()
}

// Names returns the variant names in run order.
func (m *Matrix) Names() []matrix.VariantName {
	out := make([]matrix.VariantName, len(m.Configs))
	for i, c := range m.Configs {
		out[i] = c.Name
	}
	return out
}

// Only returns a copy of m restricted to the named variants, keeping the
// file order. Naming a variant that is not in m is an error.
func (m *Matrix) Only(names ...matrix.VariantName) (*Matrix, error) {
	if len(names) == 0 {
		return m, nil
	}
	have := m.Names()
	for _, n := range names {
		if !slices.Contains(have, n) {
			return nil, &UnknownVariantError{Name: n}
		}
	}
	out := &Matrix{Policy: m.Policy}
	for _, c := range m.Configs {
		if slices.Contains(names, c.Name) {
			out.Configs = append(out.Configs, c.Clone())
		}
	}
	return out, nil
}

func (e *UnknownVariantError) Error() string {
	if e.Referrer != "" {
		return fmt.Sprintf("variant %q extends unknown variant %q", e.Referrer, e.Name)
	}
	return fmt.Sprintf("unknown variant %q", e.Name)
}

func (e *UnknownVariantError) Unwrap() error { return matrix.ErrConfiguration }

func decodeError(filename string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDecode, filename, err)
}
