// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/invowk/buildmatrix/internal/report"
	"github.com/invowk/buildmatrix/pkg/matrix"
	"github.com/invowk/buildmatrix/pkg/types"
)

const stableMatrix = `variants:
  - name: py310
    node_type: linux
    env_vars: ["PYTHON=3.10"]
    packages: ["python=3.10"]
    build: ["echo building $PYTHON"]
    test: ["echo testing"]
    unstable_threshold: 1
    failure_threshold: 3
  - name: py312
    extends: py310
    env_vars: ["PYTHON=3.12"]
    packages: ["python=3.12"]
`

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		job  matrix.JobResult
		want types.ExitCode
	}{
		{name: "stable", job: matrix.JobResult{Status: matrix.StatusStable}, want: types.ExitSuccess},
		{name: "unstable", job: matrix.JobResult{Status: matrix.StatusUnstable}, want: types.ExitUnstable},
		{name: "failed", job: matrix.JobResult{Status: matrix.StatusFailed}, want: types.ExitFailed},
		{name: "build error", job: matrix.JobResult{Status: matrix.StatusBuildError}, want: types.ExitFailed},
		{name: "skipped", job: matrix.JobResult{Status: matrix.StatusStable, Skipped: true}, want: types.ExitSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeFor(tt.job); got != tt.want {
				t.Errorf("exitCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPrintJob(t *testing.T) {
	t.Parallel()

	job := matrix.JobResult{
		RunID:  "run-1",
		Status: matrix.StatusBuildError,
		Variants: []matrix.VariantResult{
			{Name: "ok", Status: matrix.StatusStable, Duration: time.Second},
			{
				Name:         "broken",
				Status:       matrix.StatusBuildError,
				FailureCount: 1,
				Logs: []matrix.StepLog{
					{Phase: matrix.PhaseBuild, Command: "echo fine"},
					{Phase: matrix.PhaseBuild, Command: "make", ExitCode: 2, Err: "no rule"},
				},
			},
		},
	}

	var quiet, verbose bytes.Buffer
	printJob(&quiet, job, false)
	printJob(&verbose, job, true)

	for _, want := range []string{"ok", "broken", "failures: 1", "run-1", string(matrix.StatusBuildError)} {
		if !strings.Contains(quiet.String(), want) {
			t.Errorf("output missing %q:\n%s", want, quiet.String())
		}
	}
	if strings.Contains(quiet.String(), "no rule") {
		t.Errorf("non-verbose output shows step details:\n%s", quiet.String())
	}
	if !strings.Contains(verbose.String(), "make exited 2: no rule") {
		t.Errorf("verbose output missing the failing step:\n%s", verbose.String())
	}

	var skipped bytes.Buffer
	printJob(&skipped, matrix.JobResult{Skipped: true}, false)
	if !strings.Contains(skipped.String(), "Skipped") {
		t.Errorf("skipped output = %q", skipped.String())
	}
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		path := writeMatrix(t, "matrix.yaml", stableMatrix)

		stdout, _, err := execute(t, testConfig(t), "validate", path)
		if err != nil {
			t.Fatalf("validate error = %v", err)
		}
		if !strings.Contains(stdout, "2 variant(s) valid") {
			t.Errorf("stdout = %q", stdout)
		}
	})

	t.Run("duplicate names", func(t *testing.T) {
		t.Parallel()
		path := writeMatrix(t, "matrix.yaml", "variants:\n  - name: a\n  - name: a\n")

		_, stderr, err := execute(t, testConfig(t), "validate", path)
		if got := exitCode(t, err); got != types.ExitConfig {
			t.Errorf("exit code = %d, want %d", got, types.ExitConfig)
		}
		if !strings.Contains(stderr, "duplicate variant name") {
			t.Errorf("stderr = %q", stderr)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "absent.yaml")

		_, stderr, err := execute(t, testConfig(t), "validate", path)
		if got := exitCode(t, err); got != types.ExitConfig {
			t.Errorf("exit code = %d, want %d", got, types.ExitConfig)
		}
		if !strings.Contains(stderr, "absent.yaml") {
			t.Errorf("stderr = %q, want the missing path", stderr)
		}
	})
}

func TestPlanCommand(t *testing.T) {
	t.Parallel()
	path := writeMatrix(t, "matrix.yaml", stableMatrix)

	stdout, _, err := execute(t, testConfig(t), "plan", path)
	if err != nil {
		t.Fatalf("plan error = %v", err)
	}
	for _, want := range []string{"VARIANT", "py310", "py312", "PYTHON=3.12", "python=3.12", "1/3", "2 variant(s)", "summary: off"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("plan output missing %q:\n%s", want, stdout)
		}
	}

	stdout, _, err = execute(t, testConfig(t), "plan", "--only", "py312", path)
	if err != nil {
		t.Fatalf("plan --only error = %v", err)
	}
	if strings.Contains(stdout, "py310 ") || !strings.Contains(stdout, "1 variant(s)") {
		t.Errorf("plan --only output:\n%s", stdout)
	}

	_, _, err = execute(t, testConfig(t), "plan", "--only", "nope", path)
	if got := exitCode(t, err); got != types.ExitConfig {
		t.Errorf("unknown --only exit code = %d, want %d", got, types.ExitConfig)
	}
}

func TestRunCommand_ExitCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		matrix     string
		wantCode   types.ExitCode
		wantStatus matrix.Status
	}{
		{
			name:       "stable",
			matrix:     stableMatrix,
			wantCode:   types.ExitSuccess,
			wantStatus: matrix.StatusStable,
		},
		{
			name: "unstable",
			matrix: `variants:
  - name: flaky
    build: ["echo ok"]
    test: ["exit 1", "echo second"]
    unstable_threshold: 1
    failure_threshold: 3
`,
			wantCode:   types.ExitUnstable,
			wantStatus: matrix.StatusUnstable,
		},
		{
			name: "failed",
			matrix: `variants:
  - name: red
    test: ["exit 1", "exit 1"]
    unstable_threshold: 1
    failure_threshold: 2
`,
			wantCode:   types.ExitFailed,
			wantStatus: matrix.StatusFailed,
		},
		{
			name: "build error",
			matrix: `variants:
  - name: ok
    build: ["echo ok"]
    unstable_threshold: 1
    failure_threshold: 2
  - name: broken
    build: ["exit 7", "echo unreachable"]
    unstable_threshold: 1
    failure_threshold: 2
`,
			wantCode:   types.ExitFailed,
			wantStatus: matrix.StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeMatrix(t, "matrix.yaml", tt.matrix)

			stdout, _, err := execute(t, testConfig(t), "run", "--json", path)
			if got := exitCode(t, err); got != tt.wantCode {
				t.Errorf("exit code = %d, want %d", got, tt.wantCode)
			}

			var job matrix.JobResult
			if err := json.Unmarshal([]byte(stdout), &job); err != nil {
				t.Fatalf("stdout is not a JSON job: %v\n%s", err, stdout)
			}
			if job.Status != tt.wantStatus {
				t.Errorf("job status = %q, want %q", job.Status, tt.wantStatus)
			}
			if job.RunID == "" {
				t.Error("job has no run ID")
			}
		})
	}
}

func TestRunCommand_VariantEnvironment(t *testing.T) {
	t.Parallel()
	path := writeMatrix(t, "matrix.yaml", stableMatrix)

	stdout, _, err := execute(t, testConfig(t), "run", "--json", "--only", "py312", path)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}

	var job matrix.JobResult
	if err := json.Unmarshal([]byte(stdout), &job); err != nil {
		t.Fatalf("stdout is not a JSON job: %v", err)
	}
	if len(job.Variants) != 1 || job.Variants[0].Name != "py312" {
		t.Fatalf("variants = %+v, want only py312", job.Variants)
	}
	var built bool
	for _, step := range job.Variants[0].Logs {
		if step.Phase == matrix.PhaseBuild && strings.Contains(step.Stdout, "building 3.12") {
			built = true
		}
	}
	if !built {
		t.Errorf("build step did not see PYTHON=3.12: %+v", job.Variants[0].Logs)
	}
}

func TestRunCommand_ReportDir(t *testing.T) {
	t.Parallel()
	path := writeMatrix(t, "matrix.yaml", stableMatrix)
	dir := filepath.Join(t.TempDir(), "reports")

	stdout, _, err := execute(t, testConfig(t), "run", "--post-summary", "--report-dir", dir, path)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	if !strings.Contains(stdout, "Job status:") {
		t.Errorf("stdout = %q", stdout)
	}

	summary, err := os.ReadFile(filepath.Join(dir, report.SummaryMarkdown))
	if err != nil {
		t.Fatalf("summary not written: %v", err)
	}
	if !strings.Contains(string(summary), "py310") {
		t.Errorf("summary = %q", summary)
	}
	if _, err := os.Stat(filepath.Join(dir, report.SummaryJSON)); err != nil {
		t.Errorf("summary.json not written: %v", err)
	}
}

func TestRunCommand_NoSummaryWithoutPolicy(t *testing.T) {
	t.Parallel()
	path := writeMatrix(t, "matrix.yaml", stableMatrix)
	dir := filepath.Join(t.TempDir(), "reports")

	if _, _, err := execute(t, testConfig(t), "run", "--report-dir", dir, path); err != nil {
		t.Fatalf("run error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, report.SummaryMarkdown)); !os.IsNotExist(err) {
		t.Errorf("summary written without post_summary: stat error = %v", err)
	}
}

func TestRunCommand_InvalidRuntime(t *testing.T) {
	t.Parallel()
	path := writeMatrix(t, "matrix.yaml", stableMatrix)

	_, _, err := execute(t, testConfig(t), "run", "--runtime", "teleport", path)
	if got := exitCode(t, err); got != types.ExitConfig {
		t.Errorf("exit code = %d, want %d", got, types.ExitConfig)
	}
}

func TestConfigShow(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.MaxParallel = 4
	stdout, stderr, err := execute(t, cfg, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, want := range []string{`runtime: "virtual"`, "max_parallel: 4", "terminal: false"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("config show missing %q:\n%s", want, stdout)
		}
	}
	if !strings.Contains(stderr, "using defaults") {
		t.Errorf("stderr = %q, want the defaults notice", stderr)
	}
}

func TestRunCommand_CheckoutFailure(t *testing.T) {
	t.Parallel()
	path := writeMatrix(t, "matrix.yaml", stableMatrix)

	cfg := testConfig(t)
	cfg.Checkout.Repository = filepath.Join(t.TempDir(), "no-such-repo")
	cfg.Checkout.CacheDir = t.TempDir()

	stdout, stderr, err := execute(t, cfg, "run", path)
	if got := exitCode(t, err); got != types.ExitFailed {
		t.Errorf("exit code = %d, want %d", got, types.ExitFailed)
	}
	if !strings.Contains(stderr, "failed to check out sources") {
		t.Errorf("stderr = %q, want the checkout warning", stderr)
	}
	if !strings.Contains(stdout, "py310 buildError") {
		t.Errorf("stdout = %q, want every variant as buildError", stdout)
	}
}
