// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"errors"
	"fmt"

	"github.com/invowk/buildmatrix/internal/dag"
	"github.com/invowk/buildmatrix/pkg/matrix"
)

// resolve materializes inheritance and axes and validates the result.
func (d *document) resolve() (*Matrix, error) {
	if len(d.Variants) == 0 {
		return nil, matrix.ErrEmptyMatrix
	}

	var errs []error
	index := make(map[matrix.VariantName]int, len(d.Variants))
	g := dag.New[matrix.VariantName]()
	for i := range d.Variants {
		name := matrix.VariantName(d.Variants[i].Name)
		if first, dup := index[name]; dup {
			errs = append(errs, &matrix.DuplicateVariantNameError{Name: name, FirstIndex: first, SecondIndex: i})
			continue
		}
		index[name] = i
		g.AddNode(name)
	}
	for i := range d.Variants {
		v := &d.Variants[i]
		if v.Extends == "" {
			continue
		}
		base := matrix.VariantName(v.Extends)
		if !g.Has(base) {
			errs = append(errs, &UnknownVariantError{Name: base, Referrer: matrix.VariantName(v.Name)})
			continue
		}
		g.AddEdge(base, matrix.VariantName(v.Name))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("%w: extends: %w", matrix.ErrConfiguration, err)
	}

	resolved := make(map[matrix.VariantName]matrix.BuildConfig, len(order))
	for _, name := range order {
		v := &d.Variants[index[name]]
		var cfg matrix.BuildConfig
		if v.Extends != "" {
			cfg = resolved[matrix.VariantName(v.Extends)].Clone()
		}
		v.applyTo(&cfg)
		resolved[name] = cfg
	}

	m := &Matrix{}
	if d.Policy != nil {
		m.Policy = &matrix.JobPolicy{PostSummary: d.Policy.PostSummary}
	}
	for i := range d.Variants {
		v := &d.Variants[i]
		if v.Abstract {
			continue
		}
		name := matrix.VariantName(v.Name)
		cells, err := matrix.Expand(resolved[name], v.Axes)
		if err != nil {
			errs = append(errs, fmt.Errorf("variant %q: %w", name, err))
			continue
		}
		m.Configs = append(m.Configs, cells...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := matrix.ValidateMatrix(m.Configs); err != nil {
		return nil, err
	}
	return m, nil
}

// applyTo overrides cfg with every field set on v. Environment variables
// are appended so that later entries win.
func (v *variantSpec) applyTo(cfg *matrix.BuildConfig) {
	cfg.SetName(matrix.VariantName(v.Name))
	if v.NodeType != nil {
		cfg.SetNodeType(matrix.NodeType(*v.NodeType))
	}
	if v.EnvVars != nil {
		vars := make([]matrix.EnvVar, len(v.EnvVars))
		for i, e := range v.EnvVars {
			vars[i] = matrix.EnvVar(e)
		}
		cfg.AppendEnvVars(vars...)
	}
	if v.Channels != nil {
		cfg.SetChannels(v.Channels)
	}
	if v.Packages != nil {
		cfg.SetPackages(v.Packages)
	}
	if v.Build != nil {
		cfg.SetBuildCommands(v.Build)
	}
	if v.Test != nil {
		cfg.SetTestCommands(v.Test)
	}
	if v.TestReports != nil {
		cfg.SetTestReports(v.TestReports)
	}
	unstable, failure := cfg.UnstableThreshold, cfg.FailureThreshold
	if v.UnstableThreshold != nil {
		unstable = *v.UnstableThreshold
	}
	if v.FailureThreshold != nil {
		failure = *v.FailureThreshold
	}
	cfg.SetThresholds(unstable, failure)
}
