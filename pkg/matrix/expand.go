// SPDX-License-Identifier: MPL-2.0

package matrix

import (
	"fmt"
	"strings"
)

type (
	// Axis is one dimension of a matrix expansion, such as a runtime version.
	Axis struct {
		Name   string   `json:"name" yaml:"name" toml:"name" hcl:"name,label"`
		Values []string `json:"values" yaml:"values" toml:"values" hcl:"values"`
	}

	// InvalidAxisError is returned when an axis has no name, no values, or a
	// name that is reused within one expansion.
	InvalidAxisError struct {
		Axis   string
		Reason string
	}
)

// Error implements the error interface for InvalidAxisError.
func (e *InvalidAxisError) Error() string {
	return fmt.Sprintf("invalid axis %q: %s", e.Axis, e.Reason)
}

// Unwrap returns ErrConfiguration for errors.Is() compatibility.
func (e *InvalidAxisError) Unwrap() error { return ErrConfiguration }

// Expand derives one variant per cell of the cartesian product of axes.
// Each cell is a clone of tmpl named "<name>-<v1>-<v2>...", carries one
// AXIS=value env var per axis (axis name upper-cased), and has ${axis}
// references substituted in its node type, channels and packages.
// Cells are returned in row-major order (the last axis varies fastest).
// Without axes the template itself is returned.
func Expand(tmpl BuildConfig, axes []Axis) ([]BuildConfig, error) {
	if len(axes) == 0 {
		return []BuildConfig{Clone(tmpl)}, nil
	}

	seen := make(map[string]bool, len(axes))
	for _, a := range axes {
		switch {
		case strings.TrimSpace(a.Name) == "":
			return nil, &InvalidAxisError{Axis: a.Name, Reason: "name must be non-empty"}
		case len(a.Values) == 0:
			return nil, &InvalidAxisError{Axis: a.Name, Reason: "at least one value is required"}
		case seen[a.Name]:
			return nil, &InvalidAxisError{Axis: a.Name, Reason: "axis declared twice"}
		}
		seen[a.Name] = true
	}

	cells := [][]string{{}}
	for _, a := range axes {
		next := make([][]string, 0, len(cells)*len(a.Values))
		for _, cell := range cells {
			for _, v := range a.Values {
				row := append(append(make([]string, 0, len(cell)+1), cell...), v)
				next = append(next, row)
			}
		}
		cells = next
	}

	out := make([]BuildConfig, 0, len(cells))
	for _, cell := range cells {
		values := make(map[string]string, len(axes))
		for i, a := range axes {
			values[a.Name] = cell[i]
		}
		out = append(out, expandCell(tmpl, axes, cell, values))
	}
	return out, nil
}

func expandCell(tmpl BuildConfig, axes []Axis, cell []string, values map[string]string) BuildConfig {
	c := Clone(tmpl)

	nameParts := append([]string{string(tmpl.Name)}, cell...)
	c.SetName(VariantName(strings.Join(nameParts, "-")))
	c.SetNodeType(NodeType(substitute(string(tmpl.NodeType), values)))
	c.SetChannels(substituteAll(tmpl.Channels, values))
	c.SetPackages(substituteAll(tmpl.Packages, values))

	vars := make([]EnvVar, 0, len(axes))
	for i, a := range axes {
		vars = append(vars, EnvVar(axisEnvName(a.Name)+"="+cell[i]))
	}
	c.AppendEnvVars(vars...)
	return c
}

// substitute replaces ${axis} and $axis references of known axes. Every
// other byte, including references to other variables, is kept verbatim.
func substitute(s string, values map[string]string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '$' {
			if name, width := reference(s[i+1:]); width > 0 {
				if v, ok := values[name]; ok {
					b.WriteString(v)
					i += 1 + width
					continue
				}
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// reference parses the variable reference following a '$': either a braced
// ${name} or a bare identifier. width is the number of bytes consumed, 0
// when s does not start with a reference.
func reference(s string) (name string, width int) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return "", 0
		}
		return s[1:end], end + 1
	}
	n := 0
	for n < len(s) && isNameByte(s[n]) {
		n++
	}
	return s[:n], n
}

func isNameByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func substituteAll(in []string, values map[string]string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = substitute(s, values)
	}
	return out
}

func axisEnvName(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name))
}
