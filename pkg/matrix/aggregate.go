// SPDX-License-Identifier: MPL-2.0

package matrix

import (
	"fmt"
	"strings"
)

// Aggregate folds per-variant results into a job verdict. The job status is
// the most severe variant status, with buildError reported as failed; an
// empty result set is stable. When policy requests a summary, the rendered
// markdown is attached to the result. The summary never influences Status.
func Aggregate(results []VariantResult, policy *JobPolicy) JobResult {
	status := StatusStable
	for _, r := range results {
		status = status.Worse(r.Status)
	}
	if status == StatusBuildError {
		status = StatusFailed
	}

	job := JobResult{
		Status:   status,
		Variants: results,
	}
	if policy.WantsSummary() {
		job.Summary = RenderSummary(job)
	}
	return job
}

// RenderSummary renders a markdown table of variant statuses and counts.
func RenderSummary(job JobResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Build matrix: %s\n\n", job.Status)
	if job.RunID != "" {
		fmt.Fprintf(&b, "Run `%s`\n\n", job.RunID)
	}
	if job.Skipped {
		b.WriteString("Checkout requested a skip; no variant was run.\n")
		return b.String()
	}

	b.WriteString("| Variant | Node | Status | Failures | Errors |\n")
	b.WriteString("|---|---|---|---:|---:|\n")

	var failures, errs int
	counts := make(map[Status]int)
	for _, r := range job.Variants {
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %d |\n",
			escapeCell(string(r.Name)), escapeCell(string(r.NodeType)), r.Status, r.FailureCount, r.ErrorCount)
		failures += r.FailureCount
		errs += r.ErrorCount
		counts[r.Status]++
	}

	fmt.Fprintf(&b, "\n**%d variant(s)**: ", len(job.Variants))
	parts := make([]string, 0, len(counts))
	for _, s := range []Status{StatusStable, StatusUnstable, StatusFailed, StatusBuildError} {
		if counts[s] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[s], s))
		}
	}
	b.WriteString(strings.Join(parts, ", "))
	fmt.Fprintf(&b, "; %d failure(s), %d error(s) in total.\n", failures, errs)

	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// WithRunID returns a copy of j stamped with the run identifier. An existing
// summary is re-rendered so it names the run.
func (j JobResult) WithRunID(id string) JobResult {
	j.RunID = id
	if j.Summary != "" {
		j.Summary = RenderSummary(j)
	}
	return j
}
