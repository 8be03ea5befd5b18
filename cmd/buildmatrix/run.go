// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/invowk/buildmatrix/internal/checkout"
	"github.com/invowk/buildmatrix/internal/config"
	"github.com/invowk/buildmatrix/internal/executor"
	"github.com/invowk/buildmatrix/internal/install"
	"github.com/invowk/buildmatrix/internal/issue"
	"github.com/invowk/buildmatrix/internal/report"
	"github.com/invowk/buildmatrix/internal/runtime"
	"github.com/invowk/buildmatrix/pkg/matrix"
	"github.com/invowk/buildmatrix/pkg/matrixfile"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// runFlags are the options of `buildmatrix run`.
type runFlags struct {
	runtime     string
	parallel    int
	postSummary bool
	reportDir   string
	skipMarked  bool
	only        []string
	json        bool
}

func newRunCommand(app *App) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <matrix-file>",
		Short: "Run every variant of a matrix file",
		Long: `Run every variant of a matrix file.

Each variant is provisioned its own execution context, populated from the
configured checkout, and runs its install, build and test steps in order.
Variants run concurrently. The exit code reflects the job status.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, args[0], flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.runtime, "runtime", "", "execution runtime: virtual, native or container (overrides config)")
	f.IntVar(&flags.parallel, "parallel", 0, "maximum number of variants running at once (0 = all)")
	f.BoolVar(&flags.postSummary, "post-summary", false, "publish a summary even if the matrix policy does not ask for one")
	f.StringVar(&flags.reportDir, "report-dir", "", "write summary.md and summary.json to this directory")
	f.BoolVar(&flags.skipMarked, "skip-marked", false, "skip the job when the checked-out commit carries a skip marker")
	f.StringSliceVar(&flags.only, "only", nil, "run only the named variants (repeatable)")
	f.BoolVar(&flags.json, "json", false, "print the job result as JSON")

	return cmd
}

func (a *App) run(cmd *cobra.Command, path string, flags *runFlags) error {
	ctx := cmd.Context()
	s := sessionFrom(ctx)
	cfg := *s.cfg

	if flags.runtime != "" {
		cfg.Runtime = config.RuntimeMode(flags.runtime)
	}
	if cmd.Flags().Changed("parallel") {
		cfg.MaxParallel = flags.parallel
	}
	if flags.reportDir != "" {
		cfg.Report.Dir = flags.reportDir
	}
	if flags.json {
		cfg.Report.Terminal = false
	}
	if err := cfg.Validate(); err != nil {
		return usageError(cmd, err, s.verbose)
	}

	m, err := loadMatrix(path)
	if err != nil {
		return usageError(cmd, err, s.verbose)
	}
	m, err = m.Only(variantNames(flags.only)...)
	if err != nil {
		return usageError(cmd, err, s.verbose)
	}

	policy := m.Policy
	if flags.postSummary {
		forced := matrix.JobPolicy{}
		if policy != nil {
			forced = *policy
		}
		forced.PostSummary = true
		policy = &forced
	}

	exec, err := a.newExecutor(cmd, &cfg)
	if err != nil {
		return usageError(cmd, err, s.verbose)
	}

	job, err := exec.RunJob(ctx, m.Configs, policy, executor.JobOptions{SkipIfMarkedSkip: flags.skipMarked})
	if err != nil {
		if errors.Is(err, matrix.ErrConfiguration) || errors.Is(err, executor.ErrProvisionerUnavailable) {
			return usageError(cmd, err, s.verbose)
		}
		// The verdict stands when only publishing failed.
		warn := issue.NewErrorContext().
			WithOperation("publish summary").
			WithSuggestion("Check report.dir and report.object_store in the configuration").
			WithIssue(issue.ReportPublishFailedId).
			Wrap(err).
			Build()
		fmt.Fprintln(cmd.ErrOrStderr(), WarningStyle.Render("Warning: ")+warn.Format(s.verbose))
	}

	if step, ok := checkoutFault(job); ok {
		warn := issue.NewErrorContext().
			WithOperation("check out sources").
			WithResource(cfg.Checkout.Repository).
			WithSuggestion("Check checkout.repository and checkout.ref in the configuration").
			WithIssue(issue.CheckoutFailedId).
			Wrap(errors.New(step.Err)).
			Build()
		stderr := cmd.ErrOrStderr()
		fmt.Fprintln(stderr, WarningStyle.Render("Warning: ")+warn.Format(s.verbose))
		if s.verbose {
			printIssueGuide(stderr, warn)
		}
	}

	out := cmd.OutOrStdout()
	if flags.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(job); err != nil {
			return err
		}
	} else {
		printJob(out, job, s.verbose)
	}

	if code := exitCodeFor(job); !code.IsSuccess() {
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return &ExitError{Code: code}
	}
	return nil
}

// newExecutor wires the configured runtime, checkout, installer and
// reporters into an executor.
func (a *App) newExecutor(cmd *cobra.Command, cfg *config.Config) (*executor.Executor, error) {
	logger := log.FromContext(cmd.Context())

	built := runtime.BuildRegistry(cfg)
	for _, d := range built.Diagnostics {
		logger.Warn(d.Message, "code", d.Code)
	}
	rt, err := built.Registry.GetAvailable(built.Selected)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("select runtime").
			WithResource(string(built.Selected)).
			WithSuggestion("Start Docker to use the container runtime").
			WithSuggestion("Pick another runtime with --runtime virtual or --runtime native").
			WithIssue(issue.RuntimeUnavailableId).
			Wrap(err).
			BuildError()
	}

	reporters, err := report.New(cfg.Report, cmd.OutOrStdout())
	if err != nil {
		return nil, err
	}

	return &executor.Executor{
		Provisioner: rt,
		Runner:      rt,
		Checkout:    checkout.New(cfg.Checkout),
		Installer:   install.New(cfg.Installer, rt),
		Reporter:    reporters,
		MaxParallel: cfg.MaxParallel,
	}, nil
}

// loadMatrix reads a matrix file and attaches user-facing guidance to errors.
func loadMatrix(path string) (*matrixfile.Matrix, error) {
	m, err := matrixfile.Load(path)
	if err == nil {
		return m, nil
	}

	ec := issue.NewErrorContext().
		WithOperation("load matrix file").
		WithResource(path)
	if errors.Is(err, fs.ErrNotExist) {
		ec.WithIssue(issue.MatrixFileNotFoundId).
			WithSuggestion("Check the path passed on the command line")
	} else {
		ec.WithIssue(issue.MatrixFileInvalidId).
			WithSuggestion("Run 'buildmatrix validate " + path + "' to list every problem").
			WithSuggestion("Supported formats are .cue, .yaml, .yml, .toml and .hcl")
	}
	return nil, ec.Wrap(err).BuildError()
}

func variantNames(names []string) []matrix.VariantName {
	out := make([]matrix.VariantName, len(names))
	for i, n := range names {
		out[i] = matrix.VariantName(n)
	}
	return out
}

// printJob writes one line per variant and the job verdict. Verbose output
// adds the failing step of every variant that did not pass.
func printJob(w io.Writer, job matrix.JobResult, verbose bool) {
	if job.Skipped {
		fmt.Fprintln(w, SubtitleStyle.Render("Skipped: the checked-out commit carries a skip marker"))
		return
	}

	for _, v := range job.Variants {
		fmt.Fprintf(w, "%s %s %s (failures: %d, errors: %d, %s)\n",
			statusIcon(v.Status),
			CmdStyle.Render(string(v.Name)),
			statusStyle(v.Status).Render(string(v.Status)),
			v.FailureCount, v.ErrorCount,
			v.Duration.Round(time.Millisecond))

		if verbose && v.Status != matrix.StatusStable {
			if step, ok := failingStep(v); ok {
				fmt.Fprintf(w, "    %s %s exited %d", step.Phase, step.Command, step.ExitCode)
				if step.Err != "" {
					fmt.Fprintf(w, ": %s", step.Err)
				}
				fmt.Fprintln(w)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", TitleStyle.Render("Job status:"), statusStyle(job.Status).Render(string(job.Status)))
	if job.RunID != "" {
		fmt.Fprintf(w, "%s %s\n", SubtitleStyle.Render("Run:"), job.RunID)
	}
}

func failingStep(v matrix.VariantResult) (matrix.StepLog, bool) {
	for _, step := range v.Logs {
		if step.Phase != matrix.PhaseRelease && (step.ExitCode != 0 || step.Err != "") {
			return step, true
		}
	}
	return matrix.StepLog{}, false
}

// checkoutFault returns the first checkout step that failed.
func checkoutFault(job matrix.JobResult) (matrix.StepLog, bool) {
	for _, v := range job.Variants {
		for _, step := range v.Logs {
			if step.Phase == matrix.PhaseCheckout && step.Err != "" {
				return step, true
			}
		}
	}
	return matrix.StepLog{}, false
}
