// SPDX-License-Identifier: MPL-2.0

package matrix

import "time"

const (
	// PhaseProvision is the execution-context provisioning step.
	PhaseProvision Phase = "provision"
	// PhaseCheckout populates sources into the execution context.
	PhaseCheckout Phase = "checkout"
	// PhaseInstall resolves and installs packages.
	PhaseInstall Phase = "install"
	// PhaseBuild runs one build command.
	PhaseBuild Phase = "build"
	// PhaseTest runs one test command.
	PhaseTest Phase = "test"
	// PhaseReport collects machine-readable test reports.
	PhaseReport Phase = "report"
	// PhaseRelease tears the execution context down.
	PhaseRelease Phase = "release"
)

type (
	// Phase names a step of a variant's lifecycle.
	Phase string

	// JobPolicy holds cross-cutting settings of one run. A nil *JobPolicy
	// means every setting takes its zero value.
	JobPolicy struct {
		// PostSummary requests a consolidated summary once every variant completed.
		PostSummary bool `json:"post_summary"`
	}

	// StepLog records one step executed for a variant.
	StepLog struct {
		Phase    Phase         `json:"phase"`
		Command  string        `json:"command,omitempty"`
		ExitCode int           `json:"exit_code"`
		Stdout   string        `json:"stdout,omitempty"`
		Stderr   string        `json:"stderr,omitempty"`
		Err      string        `json:"error,omitempty"`
		// Skipped marks a step that was requested but not carried out.
		Skipped  bool          `json:"skipped,omitempty"`
		Duration time.Duration `json:"duration_ns"`
	}

	// VariantResult is the terminal outcome of one variant.
	VariantResult struct {
		Name         VariantName   `json:"name"`
		NodeType     NodeType      `json:"node_type"`
		Status       Status        `json:"status"`
		FailureCount int           `json:"failure_count"`
		ErrorCount   int           `json:"error_count"`
		Logs         []StepLog     `json:"logs"`
		Duration     time.Duration `json:"duration_ns"`
	}

	// JobResult is the aggregated verdict of a run.
	JobResult struct {
		// RunID identifies the run for reporting.
		RunID string `json:"run_id,omitempty"`
		// Status is the worst variant status; buildError is reported as failed.
		Status   Status          `json:"status"`
		Variants []VariantResult `json:"variants"`
		// Skipped is set when checkout honored a skip directive and nothing ran.
		Skipped bool `json:"skipped,omitempty"`
		// Summary is the rendered markdown summary, set only when the policy
		// asked for one.
		Summary string `json:"summary,omitempty"`
	}
)

// WantsSummary reports whether the policy requests a summary. Safe on nil.
func (p *JobPolicy) WantsSummary() bool {
	return p != nil && p.PostSummary
}
