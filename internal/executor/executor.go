// SPDX-License-Identifier: MPL-2.0

// Package executor dispatches the variants of a build matrix to isolated
// execution contexts and collects their results.
//
// Every variant runs in its own goroutine with an exclusively owned context:
// provision, checkout, environment, install, build, test, report collection
// and threshold evaluation happen strictly in that order, and the context is
// released on every exit path. A failing variant is recorded as data; Run
// only returns an error when the matrix is rejected before dispatch.
package executor

import (
	"context"
	"errors"

	"github.com/invowk/buildmatrix/internal/checkout"
	"github.com/invowk/buildmatrix/internal/install"
	"github.com/invowk/buildmatrix/internal/report"
	"github.com/invowk/buildmatrix/internal/runtime"
	"github.com/invowk/buildmatrix/pkg/matrix"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrProvisionerUnavailable is returned before dispatch when no execution
// context can be provisioned on this host.
var ErrProvisionerUnavailable = errors.New("execution-context provisioner is unavailable")

type (
	// Executor runs build matrices. The zero value is not usable: Provisioner
	// and Runner are required.
	Executor struct {
		Provisioner runtime.Provisioner
		Runner      runtime.Runner
		// Checkout populates sources; nil means none.
		Checkout checkout.Checkout
		// Installer installs packages; nil installs nothing.
		Installer install.Installer
		// Reporter receives the job result when the policy asks for a summary.
		Reporter report.Reporter
		// MaxParallel bounds concurrently running variants; 0 runs them all at once.
		MaxParallel int
		// Evaluator classifies counts; the zero value uses matrix.DefaultThresholdEvaluator.
		Evaluator matrix.ThresholdEvaluator
	}

	// JobOptions control RunJob.
	JobOptions struct {
		// RunID names the run; empty generates a random one.
		RunID string
		// SkipIfMarkedSkip lets the checkout skip the whole job.
		SkipIfMarkedSkip bool
	}
)

// New returns an executor provisioning and running commands with rt.
func New(rt runtime.Runtime) *Executor {
	return &Executor{Provisioner: rt, Runner: rt}
}

// Run executes every config and returns one result per config, in input
// order. The matrix is validated and the provisioner checked before any
// context is provisioned; those are the only errors Run returns. The
// checkout is prepared once before dispatch and never skips; a preparation
// failure is recorded as an infrastructure fault of every variant.
func (e *Executor) Run(ctx context.Context, configs []matrix.BuildConfig, policy *matrix.JobPolicy) ([]matrix.VariantResult, error) {
	if err := e.gate(configs); err != nil {
		return nil, err
	}

	logger := log.FromContext(ctx)
	if _, err := e.checkout().Prepare(ctx, checkout.Options{}); err != nil {
		logger.Error("checkout failed", "err", err)
		return faultAll(configs, err), nil
	}

	logger.Info("dispatching matrix",
		"variants", len(configs), "max_parallel", e.MaxParallel, "post_summary", policy.WantsSummary())
	return e.dispatch(ctx, configs), nil
}

// RunJob prepares the checkout, runs the matrix, aggregates the results and,
// when policy asks for a summary, publishes them. A checkout that honors a
// skip marker ends the job before dispatch with Skipped set. A publishing
// failure is returned alongside a complete job result.
func (e *Executor) RunJob(ctx context.Context, configs []matrix.BuildConfig, policy *matrix.JobPolicy, opts JobOptions) (matrix.JobResult, error) {
	if err := e.gate(configs); err != nil {
		return matrix.JobResult{}, err
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := log.FromContext(ctx).With("run_id", runID)
	ctx = log.WithContext(ctx, logger)

	var results []matrix.VariantResult
	skipped, err := e.checkout().Prepare(ctx, checkout.Options{SkipIfMarkedSkip: opts.SkipIfMarkedSkip})
	switch {
	case err != nil:
		logger.Error("checkout failed", "err", err)
		results = faultAll(configs, err)
	case skipped:
		logger.Info("checkout requested a skip, no variant dispatched")
		return matrix.JobResult{RunID: runID, Status: matrix.StatusStable, Skipped: true}, nil
	default:
		logger.Info("dispatching matrix", "variants", len(configs), "max_parallel", e.MaxParallel)
		results = e.dispatch(ctx, configs)
	}

	job := matrix.Aggregate(results, policy).WithRunID(runID)
	logger.Info("job finished", "status", job.Status)

	if policy.WantsSummary() && e.Reporter != nil {
		if err := e.Reporter.Publish(ctx, job); err != nil {
			logger.Error("failed to publish summary", "err", err)
			return job, err
		}
	}
	return job, nil
}

// gate rejects the matrix before any context is provisioned.
func (e *Executor) gate(configs []matrix.BuildConfig) error {
	if err := matrix.ValidateMatrix(configs); err != nil {
		return err
	}
	if e.Provisioner == nil || e.Runner == nil || !e.Provisioner.Available() {
		return ErrProvisionerUnavailable
	}
	return nil
}

// dispatch runs one goroutine per config. Each goroutine writes only its own
// index of the result slice. The group never cancels siblings: variant
// goroutines always return nil.
func (e *Executor) dispatch(ctx context.Context, configs []matrix.BuildConfig) []matrix.VariantResult {
	results := make([]matrix.VariantResult, len(configs))

	var g errgroup.Group
	if e.MaxParallel > 0 {
		g.SetLimit(e.MaxParallel)
	}
	for i, cfg := range configs {
		g.Go(func() error {
			results[i] = e.runVariant(ctx, cfg)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *Executor) checkout() checkout.Checkout {
	if e.Checkout == nil {
		return checkout.None{}
	}
	return e.Checkout
}

func (e *Executor) installer() install.Installer {
	if e.Installer == nil {
		return install.Nop{}
	}
	return e.Installer
}

func (e *Executor) evaluator() matrix.ThresholdEvaluator {
	if e.Evaluator == (matrix.ThresholdEvaluator{}) {
		return matrix.DefaultThresholdEvaluator
	}
	return e.Evaluator
}

// faultAll records err as an infrastructure fault of every config.
func faultAll(configs []matrix.BuildConfig, err error) []matrix.VariantResult {
	results := make([]matrix.VariantResult, len(configs))
	for i, cfg := range configs {
		results[i] = matrix.VariantResult{
			Name:       cfg.Name,
			NodeType:   cfg.NodeType,
			Status:     matrix.StatusBuildError,
			ErrorCount: 1,
			Logs:       []matrix.StepLog{{Phase: matrix.PhaseCheckout, Err: err.Error()}},
		}
	}
	return results
}
