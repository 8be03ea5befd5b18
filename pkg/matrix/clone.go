// SPDX-License-Identifier: MPL-2.0

package matrix

import (
	"slices"

	"golang.org/x/exp/maps"
)

// Clone returns a deep copy of src. Every sequence is copied, so mutating
// the result never affects src and vice versa.
func Clone(src BuildConfig) BuildConfig {
	dst := src
	dst.EnvVars = slices.Clone(src.EnvVars)
	dst.Channels = slices.Clone(src.Channels)
	dst.Packages = slices.Clone(src.Packages)
	dst.BuildCommands = slices.Clone(src.BuildCommands)
	dst.TestCommands = slices.Clone(src.TestCommands)
	dst.TestReports = slices.Clone(src.TestReports)
	return dst
}

// Clone returns a deep copy of the BuildConfig.
func (c BuildConfig) Clone() BuildConfig { return Clone(c) }

// Equal reports whether a and b hold the same values field-for-field.
// A nil sequence equals an empty one.
func Equal(a, b BuildConfig) bool {
	return a.Name == b.Name &&
		a.NodeType == b.NodeType &&
		a.UnstableThreshold == b.UnstableThreshold &&
		a.FailureThreshold == b.FailureThreshold &&
		slices.Equal(a.EnvVars, b.EnvVars) &&
		slices.Equal(a.Channels, b.Channels) &&
		slices.Equal(a.Packages, b.Packages) &&
		slices.Equal(a.BuildCommands, b.BuildCommands) &&
		slices.Equal(a.TestCommands, b.TestCommands) &&
		slices.Equal(a.TestReports, b.TestReports)
}

// SetName overrides the variant name.
func (c *BuildConfig) SetName(name VariantName) { c.Name = name }

// SetNodeType overrides the node type.
func (c *BuildConfig) SetNodeType(nodeType NodeType) { c.NodeType = nodeType }

// SetEnvVars replaces the env var list with a copy of vars.
func (c *BuildConfig) SetEnvVars(vars []EnvVar) { c.EnvVars = slices.Clone(vars) }

// AppendEnvVars appends vars; with later-wins semantics they override
// earlier entries for the same key.
func (c *BuildConfig) AppendEnvVars(vars ...EnvVar) {
	c.EnvVars = append(slices.Clip(c.EnvVars), vars...)
}

// SetChannels replaces the channel list with a copy of channels.
func (c *BuildConfig) SetChannels(channels []string) { c.Channels = slices.Clone(channels) }

// SetPackages replaces the package list with a copy of packages.
func (c *BuildConfig) SetPackages(packages []string) { c.Packages = slices.Clone(packages) }

// SetBuildCommands replaces the build commands with a copy of commands.
func (c *BuildConfig) SetBuildCommands(commands []string) {
	c.BuildCommands = slices.Clone(commands)
}

// SetTestCommands replaces the test commands with a copy of commands.
func (c *BuildConfig) SetTestCommands(commands []string) {
	c.TestCommands = slices.Clone(commands)
}

// SetTestReports replaces the report patterns with a copy of patterns.
func (c *BuildConfig) SetTestReports(patterns []string) {
	c.TestReports = slices.Clone(patterns)
}

// SetThresholds overrides both thresholds.
func (c *BuildConfig) SetThresholds(unstable, failure int) {
	c.UnstableThreshold = unstable
	c.FailureThreshold = failure
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
