// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/invowk/buildmatrix/internal/install"
	"github.com/invowk/buildmatrix/internal/runtime"
	"github.com/invowk/buildmatrix/internal/testreport"
	"github.com/invowk/buildmatrix/pkg/matrix"
	"github.com/invowk/buildmatrix/pkg/types"

	"github.com/charmbracelet/log"
)

// ErrVariantPanic wraps a panic raised by a collaborator while a variant ran.
var ErrVariantPanic = errors.New("variant panicked")

// variantRun accumulates the result of one variant.
type variantRun struct {
	cfg    matrix.BuildConfig
	result matrix.VariantResult
	logger *log.Logger
	// phase is the lifecycle step in progress.
	phase matrix.Phase
}

// runVariant takes cfg through its whole lifecycle and always returns a
// terminal status. A panic in a collaborator is recorded as an
// infrastructure fault of the phase it happened in.
func (e *Executor) runVariant(ctx context.Context, cfg matrix.BuildConfig) matrix.VariantResult {
	start := time.Now()
	logger := log.FromContext(ctx).With("variant", cfg.Name, "node_type", cfg.NodeType)
	ctx = log.WithContext(ctx, logger)

	v := &variantRun{
		cfg:    cfg,
		result: matrix.VariantResult{Name: cfg.Name, NodeType: cfg.NodeType},
		logger: logger,
	}
	v.guard(ctx, e)
	v.result.Duration = time.Since(start)

	logger.Info("variant finished", "status", v.result.Status,
		"failures", v.result.FailureCount, "errors", v.result.ErrorCount, "duration", v.result.Duration.Round(time.Millisecond))
	return v.result
}

func (v *variantRun) guard(ctx context.Context, e *Executor) {
	defer func() {
		if r := recover(); r != nil {
			v.infraFault(v.phase, fmt.Errorf("%w: %v", ErrVariantPanic, r), 0)
		}
	}()
	v.execute(ctx, e)
}

func (v *variantRun) execute(ctx context.Context, e *Executor) {
	v.phase = matrix.PhaseProvision
	if err := ctx.Err(); err != nil {
		v.infraFault(matrix.PhaseProvision, err, 0)
		return
	}

	began := time.Now()
	ec, err := e.Provisioner.Provision(ctx, v.cfg.NodeType)
	if err != nil {
		v.infraFault(matrix.PhaseProvision, err, time.Since(began))
		return
	}
	v.record(matrix.StepLog{Phase: matrix.PhaseProvision, Duration: time.Since(began)})
	defer v.release(ctx, e.Provisioner, ec)

	v.phase = matrix.PhaseCheckout
	began = time.Now()
	if err := e.checkout().Populate(ctx, ec); err != nil {
		v.infraFault(matrix.PhaseCheckout, err, time.Since(began))
		return
	}
	v.record(matrix.StepLog{Phase: matrix.PhaseCheckout, Duration: time.Since(began)})

	ec.ApplyEnv(v.cfg.EnvVars...)

	if len(v.cfg.Packages) > 0 {
		v.phase = matrix.PhaseInstall
		began = time.Now()
		step := matrix.StepLog{Phase: matrix.PhaseInstall, Command: strings.Join(v.cfg.Packages, " ")}
		err := e.installer().Install(ctx, v.cfg.Channels, v.cfg.Packages, ec)
		switch {
		case errors.Is(err, install.ErrNoManager):
			v.logger.Warn("packages not installed", "packages", v.cfg.Packages, "reason", err)
			step.Skipped = true
			step.Stderr = err.Error()
		case err != nil:
			v.installFault(err, time.Since(began))
			return
		}
		step.Duration = time.Since(began)
		v.record(step)
	}

	v.phase = matrix.PhaseBuild
	for _, command := range v.cfg.BuildCommands {
		if code := v.exec(ctx, e.Runner, ec, matrix.PhaseBuild, command); !code.IsSuccess() {
			v.logger.Warn("build command failed", "command", command, "exit_code", code)
			v.result.Status = matrix.StatusBuildError
			v.result.FailureCount = 1
			return
		}
	}

	v.phase = matrix.PhaseTest
	codes := make([]types.ExitCode, 0, len(v.cfg.TestCommands))
	for _, command := range v.cfg.TestCommands {
		codes = append(codes, v.exec(ctx, e.Runner, ec, matrix.PhaseTest, command))
	}

	v.phase = matrix.PhaseReport
	tally := testreport.Compute(v.collect(ec), codes)
	v.result.FailureCount = tally.FailureCount
	v.result.ErrorCount = tally.ErrorCount
	v.result.Status = e.evaluator().Evaluate(v.cfg, tally.FailureCount, tally.ErrorCount)
}

// exec runs one command and records it. A result carrying an error but no
// exit status counts as ExitFailed.
func (v *variantRun) exec(ctx context.Context, runner runtime.Runner, ec *runtime.ExecutionContext, phase matrix.Phase, command string) types.ExitCode {
	v.logger.Debug("running command", "phase", phase, "command", command)

	began := time.Now()
	res := runner.Exec(ctx, ec, command)
	code := res.ExitCode
	if !res.Success() && code.IsSuccess() {
		code = types.ExitFailed
	}

	step := matrix.StepLog{
		Phase:    phase,
		Command:  command,
		ExitCode: int(code),
		Stdout:   res.Output,
		Stderr:   res.ErrOutput,
		Duration: time.Since(began),
	}
	if res.Error != nil {
		step.Err = res.Error.Error()
	}
	v.record(step)
	return code
}

// collect reads the variant's JUnit reports. Unreadable files are logged;
// the tally counts them.
func (v *variantRun) collect(ec *runtime.ExecutionContext) testreport.Collection {
	if len(v.cfg.TestReports) == 0 {
		return testreport.Collection{}
	}

	began := time.Now()
	col, err := testreport.Collect(ec.Dir, v.cfg.TestReports)
	step := matrix.StepLog{Phase: matrix.PhaseReport, Command: strings.Join(v.cfg.TestReports, " "), Duration: time.Since(began)}
	if err != nil {
		step.Err = err.Error()
		v.logger.Warn("failed to collect test reports", "err", err)
	}
	for path, perr := range col.Unparsable {
		v.logger.Warn("unreadable test report", "path", path, "err", perr)
	}
	v.record(step)
	return col
}

// release tears ec down with a context that outlives cancellation of the run.
func (v *variantRun) release(ctx context.Context, p runtime.Provisioner, ec *runtime.ExecutionContext) {
	began := time.Now()
	step := matrix.StepLog{Phase: matrix.PhaseRelease}
	if err := p.Release(context.WithoutCancel(ctx), ec); err != nil {
		v.logger.Warn("failed to release execution context", "context", ec.ID, "err", err)
		step.Err = err.Error()
	}
	step.Duration = time.Since(began)
	v.record(step)
}

// infraFault ends the variant with one infrastructure error.
func (v *variantRun) infraFault(phase matrix.Phase, err error, took time.Duration) {
	v.logger.Error("variant aborted", "phase", phase, "err", err)
	v.record(matrix.StepLog{Phase: phase, Err: err.Error(), Duration: took})
	v.result.Status = matrix.StatusBuildError
	v.result.ErrorCount = 1
}

func (v *variantRun) installFault(err error, took time.Duration) {
	v.logger.Error("variant aborted", "phase", matrix.PhaseInstall, "err", err)
	step := matrix.StepLog{
		Phase:    matrix.PhaseInstall,
		Command:  strings.Join(v.cfg.Packages, " "),
		Err:      err.Error(),
		Duration: took,
	}
	var installErr *install.InstallError
	if errors.As(err, &installErr) {
		step.ExitCode = int(installErr.ExitCode)
		step.Stdout = installErr.Output
	}
	v.record(step)
	v.result.Status = matrix.StatusBuildError
	v.result.ErrorCount = 1
}

func (v *variantRun) record(step matrix.StepLog) {
	v.result.Logs = append(v.result.Logs, step)
}
