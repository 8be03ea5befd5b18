// SPDX-License-Identifier: MPL-2.0

package matrix_test

import (
	"testing"

	"github.com/invowk/buildmatrix/pkg/matrix"
)

func stableBase(t *testing.T) matrix.BuildConfig {
	t.Helper()
	cfg, err := matrix.NewBuildConfig("stable", "linux",
		matrix.WithEnvVars("PYTHONHASHSEED=0"),
		matrix.WithChannels("conda-forge", "defaults"),
		matrix.WithPackages("python=3.11", "numpy"),
		matrix.WithBuildCommands("make build"),
		matrix.WithTestCommands("make test"),
		matrix.WithTestReports("reports/*.xml"),
		matrix.WithThresholds(1, 6),
	)
	if err != nil {
		t.Fatalf("NewBuildConfig() error = %v", err)
	}
	return cfg
}

func TestClone_EqualImmediately(t *testing.T) {
	t.Parallel()

	base := stableBase(t)
	clone := matrix.Clone(base)
	if !matrix.Equal(base, clone) {
		t.Fatalf("Clone() = %+v, want %+v", clone, base)
	}
}

func TestClone_MutatingCloneLeavesSource(t *testing.T) {
	t.Parallel()

	base := stableBase(t)
	snapshot := matrix.Clone(base)

	dev := base.Clone()
	dev.SetName("dev")
	dev.SetNodeType("macos")
	dev.Packages[0] = "python=3.13"
	dev.Channels[1] = "nightly"
	dev.EnvVars[0] = "PYTHONHASHSEED=1"
	dev.BuildCommands[0] = "make dev"
	dev.TestCommands[0] = "make dev-test"
	dev.TestReports[0] = "other/*.xml"
	dev.AppendEnvVars("EXTRA=1")
	dev.SetThresholds(0, 0)

	if !matrix.Equal(base, snapshot) {
		t.Fatalf("source changed after mutating clone: %+v", base)
	}
}

func TestClone_MutatingSourceLeavesClone(t *testing.T) {
	t.Parallel()

	base := stableBase(t)
	clone := base.Clone()
	snapshot := clone.Clone()

	base.Packages[1] = "scipy"
	base.EnvVars = append(base.EnvVars, "LATE=1")
	base.SetChannels([]string{"x"})

	if !matrix.Equal(clone, snapshot) {
		t.Fatalf("clone changed after mutating source: %+v", clone)
	}
}

func TestSetters_CopyTheirInput(t *testing.T) {
	t.Parallel()

	pkgs := []string{"a", "b"}
	var cfg matrix.BuildConfig
	cfg.SetPackages(pkgs)
	pkgs[0] = "mutated"
	if cfg.Packages[0] != "a" {
		t.Errorf("SetPackages aliases its argument: %v", cfg.Packages)
	}
}

func TestAppendEnvVars_DoesNotAliasSharedBacking(t *testing.T) {
	t.Parallel()

	shared := make([]matrix.EnvVar, 1, 4)
	shared[0] = "A=1"
	a := matrix.BuildConfig{Name: "a", EnvVars: shared}
	b := matrix.BuildConfig{Name: "b", EnvVars: shared}

	a.AppendEnvVars("X=1")
	b.AppendEnvVars("Y=2")

	if a.EnvVars[1] != "X=1" || b.EnvVars[1] != "Y=2" {
		t.Errorf("appends interfere: a=%v b=%v", a.EnvVars, b.EnvVars)
	}
}
