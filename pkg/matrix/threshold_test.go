// SPDX-License-Identifier: MPL-2.0

package matrix_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/invowk/buildmatrix/pkg/matrix"
)

func thresholds(unstable, failure int) matrix.BuildConfig {
	return matrix.BuildConfig{Name: "v", UnstableThreshold: unstable, FailureThreshold: failure}
}

func TestEvaluate_Tiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      matrix.BuildConfig
		failures int
		errors   int
		want     matrix.Status
	}{
		{name: "zero counts", cfg: thresholds(1, 6), want: matrix.StatusStable},
		{name: "at unstable boundary", cfg: thresholds(1, 6), failures: 1, want: matrix.StatusUnstable},
		{name: "between thresholds", cfg: thresholds(1, 6), failures: 3, want: matrix.StatusUnstable},
		{name: "just below failure", cfg: thresholds(1, 6), failures: 5, want: matrix.StatusUnstable},
		{name: "at failure boundary", cfg: thresholds(1, 6), failures: 6, want: matrix.StatusFailed},
		{name: "above failure", cfg: thresholds(1, 6), failures: 40, want: matrix.StatusFailed},
		{name: "errors are summed", cfg: thresholds(1, 6), failures: 3, errors: 3, want: matrix.StatusFailed},
		{name: "errors alone", cfg: thresholds(2, 4), errors: 2, want: matrix.StatusUnstable},
		{name: "equal thresholds resolve to failed", cfg: thresholds(3, 3), failures: 3, want: matrix.StatusFailed},
		{name: "equal thresholds below", cfg: thresholds(3, 3), failures: 2, want: matrix.StatusStable},
		{name: "zero thresholds always failed", cfg: thresholds(0, 0), want: matrix.StatusFailed},
		{name: "zero unstable", cfg: thresholds(0, 2), want: matrix.StatusUnstable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := matrix.Evaluate(tt.cfg, tt.failures, tt.errors); got != tt.want {
				t.Errorf("Evaluate(%d, %d) = %s, want %s", tt.failures, tt.errors, got, tt.want)
			}
		})
	}
}

func TestEvaluate_Monotonic(t *testing.T) {
	t.Parallel()

	for unstable := range 6 {
		for failure := unstable; failure < 8; failure++ {
			cfg := thresholds(unstable, failure)
			prev := -1
			for total := range 12 {
				for split := 0; split <= total; split++ {
					sev := matrix.Evaluate(cfg, split, total-split).Severity()
					if sev < prev {
						t.Fatalf("severity decreased at total=%d (unstable=%d failure=%d)", total, unstable, failure)
					}
				}
				prev = matrix.Evaluate(cfg, total, 0).Severity()
			}
		}
	}
}

func TestThresholdEvaluator_Weights(t *testing.T) {
	t.Parallel()

	cfg := thresholds(2, 4)
	ev := matrix.ThresholdEvaluator{FailureWeight: 1, ErrorWeight: 0}
	if got := ev.Evaluate(cfg, 1, 10); got != matrix.StatusStable {
		t.Errorf("errors ignored: Evaluate() = %s, want stable", got)
	}
	ev = matrix.ThresholdEvaluator{FailureWeight: 1, ErrorWeight: 4}
	if got := ev.Evaluate(cfg, 0, 1); got != matrix.StatusFailed {
		t.Errorf("weighted errors: Evaluate() = %s, want failed", got)
	}
	if got := ev.Total(-3, 1); got != 4 {
		t.Errorf("Total(-3, 1) = %d, want 4", got)
	}
}

func TestStatus_Severity(t *testing.T) {
	t.Parallel()

	if matrix.StatusBuildError.Severity() != matrix.StatusFailed.Severity() {
		t.Error("buildError must be as severe as failed")
	}
	if !(matrix.StatusStable.Severity() < matrix.StatusUnstable.Severity() &&
		matrix.StatusUnstable.Severity() < matrix.StatusFailed.Severity()) {
		t.Error("severity order must be stable < unstable < failed")
	}
	if valid, _ := matrix.Status("weird").IsValid(); valid {
		t.Error("IsValid() accepted an unknown status")
	}
}

func TestThresholdEvaluator_NegativeWeightsStayMonotonic(t *testing.T) {
	t.Parallel()

	evaluators := []matrix.ThresholdEvaluator{
		{FailureWeight: 1, ErrorWeight: -2},
		{FailureWeight: -1, ErrorWeight: 1},
		{FailureWeight: -3, ErrorWeight: -3},
	}
	cfg := thresholds(1, 3)
	for _, ev := range evaluators {
		prev := -1
		for errs := range 8 {
			sev := ev.Evaluate(cfg, 1, errs).Severity()
			if sev < prev {
				t.Fatalf("%+v: severity decreased at errors=%d", ev, errs)
			}
			prev = sev
		}
		if got := ev.Total(2, 2); got < 0 {
			t.Errorf("%+v: Total(2, 2) = %d, want >= 0", ev, got)
		}
	}
}

func TestStatus_UnmarshalText(t *testing.T) {
	t.Parallel()

	var r matrix.VariantResult
	if err := json.Unmarshal([]byte(`{"name":"a","status":"unstable"}`), &r); err != nil {
		t.Fatalf("Unmarshal(unstable) error = %v", err)
	}
	if r.Status != matrix.StatusUnstable {
		t.Errorf("Status = %q, want unstable", r.Status)
	}

	err := json.Unmarshal([]byte(`{"name":"a","status":"green"}`), &r)
	if !errors.Is(err, matrix.ErrInvalidStatus) {
		t.Errorf("Unmarshal(green) error = %v, want ErrInvalidStatus", err)
	}
}
