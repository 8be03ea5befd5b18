// SPDX-License-Identifier: MPL-2.0

package matrix

// ThresholdEvaluator maps failure and error counts to a Status tier.
// The two counts are combined as FailureWeight*failures + ErrorWeight*errors
// before being compared with the variant's thresholds.
type ThresholdEvaluator struct {
	FailureWeight int
	ErrorWeight   int
}

// DefaultThresholdEvaluator sums failures and errors with equal weight.
var DefaultThresholdEvaluator = ThresholdEvaluator{FailureWeight: 1, ErrorWeight: 1}

// Evaluate classifies the counts with DefaultThresholdEvaluator.
func Evaluate(cfg BuildConfig, failureCount, errorCount int) Status {
	return DefaultThresholdEvaluator.Evaluate(cfg, failureCount, errorCount)
}

// Evaluate returns StatusFailed when the weighted total reaches
// cfg.FailureThreshold, StatusUnstable when it reaches cfg.UnstableThreshold,
// and StatusStable otherwise. Thresholds are inclusive lower bounds, so a
// total equal to a threshold always lands in the worse tier.
func (e ThresholdEvaluator) Evaluate(cfg BuildConfig, failureCount, errorCount int) Status {
	total := e.Total(failureCount, errorCount)
	switch {
	case total >= cfg.FailureThreshold:
		return StatusFailed
	case total >= cfg.UnstableThreshold:
		return StatusUnstable
	default:
		return StatusStable
	}
}

// Total returns the weighted count compared against thresholds.
// Negative counts and weights are clamped to zero, so the total never
// decreases when a count grows.
func (e ThresholdEvaluator) Total(failureCount, errorCount int) int {
	return max(e.FailureWeight, 0)*max(failureCount, 0) + max(e.ErrorWeight, 0)*max(errorCount, 0)
}
