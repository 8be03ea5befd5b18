// SPDX-License-Identifier: MPL-2.0

package matrix_test

import (
	"errors"
	"testing"

	"github.com/invowk/buildmatrix/pkg/matrix"
)

func TestNewBuildConfig_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		variant matrix.VariantName
		opts    []matrix.Option
		wantErr bool
	}{
		{name: "minimal", variant: "py311", wantErr: false},
		{name: "equal thresholds", variant: "py311", opts: []matrix.Option{matrix.WithThresholds(3, 3)}, wantErr: false},
		{name: "ordered thresholds", variant: "py311", opts: []matrix.Option{matrix.WithThresholds(1, 6)}, wantErr: false},
		{name: "empty name", variant: "", wantErr: true},
		{name: "whitespace name", variant: "  ", wantErr: true},
		{name: "failure below unstable", variant: "py311", opts: []matrix.Option{matrix.WithThresholds(5, 2)}, wantErr: true},
		{name: "negative unstable", variant: "py311", opts: []matrix.Option{matrix.WithThresholds(-1, 2)}, wantErr: true},
		{name: "negative both", variant: "py311", opts: []matrix.Option{matrix.WithThresholds(-2, -1)}, wantErr: true},
		{name: "malformed env var", variant: "py311", opts: []matrix.Option{matrix.WithEnvVars("NOEQUALS")}, wantErr: true},
		{name: "empty env key", variant: "py311", opts: []matrix.Option{matrix.WithEnvVars("=value")}, wantErr: true},
		{name: "empty value allowed", variant: "py311", opts: []matrix.Option{matrix.WithEnvVars("EMPTY=")}, wantErr: false},
		{name: "empty package", variant: "py311", opts: []matrix.Option{matrix.WithPackages("numpy", "")}, wantErr: true},
		{name: "empty channel", variant: "py311", opts: []matrix.Option{matrix.WithChannels(" ")}, wantErr: true},
		{name: "empty build command", variant: "py311", opts: []matrix.Option{matrix.WithBuildCommands("")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := matrix.NewBuildConfig(tt.variant, "linux", tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewBuildConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if !errors.Is(err, matrix.ErrConfiguration) {
				t.Errorf("error %v does not wrap ErrConfiguration", err)
			}
			var cfgErr *matrix.InvalidBuildConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("error %T is not *InvalidBuildConfigError", err)
			}
		})
	}
}

func TestBuildConfig_FailureBelowUnstableAlwaysRejected(t *testing.T) {
	t.Parallel()

	for unstable := range 8 {
		for failure := range unstable {
			cfg := matrix.BuildConfig{Name: "v", UnstableThreshold: unstable, FailureThreshold: failure}
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() accepted unstable=%d failure=%d", unstable, failure)
			}
			var thrErr *matrix.InvalidThresholdsError
			if !errors.As(err, &thrErr) {
				// InvalidBuildConfigError carries the field errors.
				var cfgErr *matrix.InvalidBuildConfigError
				if !errors.As(err, &cfgErr) || len(cfgErr.FieldErrors) == 0 {
					t.Fatalf("unexpected error shape %v", err)
				}
				if !errors.As(cfgErr.FieldErrors[0], &thrErr) {
					t.Fatalf("field error %v is not *InvalidThresholdsError", cfgErr.FieldErrors[0])
				}
			}
		}
	}
}

func TestBuildConfig_CollectsAllFieldErrors(t *testing.T) {
	t.Parallel()

	cfg := matrix.BuildConfig{
		Name:              "",
		UnstableThreshold: 4,
		FailureThreshold:  1,
		EnvVars:           []matrix.EnvVar{"BAD"},
		Packages:          []string{""},
	}
	valid, errs := cfg.IsValid()
	if valid {
		t.Fatal("IsValid() = true, want false")
	}
	var cfgErr *matrix.InvalidBuildConfigError
	if !errors.As(errs[0], &cfgErr) {
		t.Fatalf("IsValid() error %T, want *InvalidBuildConfigError", errs[0])
	}
	if got := len(cfgErr.FieldErrors); got != 4 {
		t.Errorf("FieldErrors = %d (%v), want 4", got, cfgErr.FieldErrors)
	}
}

func TestEnvVar_Split(t *testing.T) {
	t.Parallel()

	key, value, ok := matrix.EnvVar("A=b=c").Split()
	if !ok || key != "A" || value != "b=c" {
		t.Errorf("Split() = %q, %q, %v; want A, b=c, true", key, value, ok)
	}
	if _, _, ok := matrix.EnvVar("novalue").Split(); ok {
		t.Error("Split() ok = true for entry without '='")
	}
}

func TestMergeEnv_LaterWins(t *testing.T) {
	t.Parallel()

	got := matrix.MergeEnv(
		[]string{"PATH=/usr/bin", "HOME=/root"},
		"CI=true", "HOME=/work", "CI=1", "broken",
	)
	want := []string{"PATH=/usr/bin", "HOME=/work", "CI=1"}
	if len(got) != len(want) {
		t.Fatalf("MergeEnv() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MergeEnv()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEnvVarsFromMap_Sorted(t *testing.T) {
	t.Parallel()

	got := matrix.EnvVarsFromMap(map[string]string{"B": "2", "A": "1"})
	if len(got) != 2 || got[0] != "A=1" || got[1] != "B=2" {
		t.Errorf("EnvVarsFromMap() = %v, want [A=1 B=2]", got)
	}
}
