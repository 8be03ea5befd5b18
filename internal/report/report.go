// SPDX-License-Identifier: MPL-2.0

// Package report publishes the summary of a finished job to the terminal, a
// directory and an S3-compatible object store.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/invowk/buildmatrix/internal/config"
	"github.com/invowk/buildmatrix/pkg/matrix"
)

const (
	// SummaryMarkdown is the file name of the rendered summary.
	SummaryMarkdown = "summary.md"
	// SummaryJSON is the file name of the machine-readable job result.
	SummaryJSON = "summary.json"
)

// ErrPublish is wrapped by every error returned from Publish.
var ErrPublish = errors.New("failed to publish summary")

type (
	// Reporter consumes a job result and renders it externally.
	Reporter interface {
		Publish(ctx context.Context, job matrix.JobResult) error
	}

	// Multi publishes to every reporter and joins their errors. One failing
	// reporter does not stop the others.
	Multi []Reporter

	// documents are the rendered forms of one job result.
	documents struct {
		markdown []byte
		json     []byte
	}
)

// Publish implements Reporter.
func (m Multi) Publish(ctx context.Context, job matrix.JobResult) error {
	var errs []error
	for _, r := range m {
		if err := r.Publish(ctx, job); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds the reporters enabled by cfg. Terminal output goes to out.
func New(cfg config.ReportConfig, out io.Writer) (Multi, error) {
	var reporters Multi
	if cfg.Terminal && out != nil {
		reporters = append(reporters, &Terminal{Out: out})
	}
	if cfg.Dir != "" {
		reporters = append(reporters, &Files{Dir: cfg.Dir})
	}
	if cfg.ObjectStore.Endpoint != "" {
		store, err := NewObjectStore(cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
		reporters = append(reporters, store)
	}
	return reporters, nil
}

// render produces the markdown and JSON forms of job. The markdown is the
// summary attached by aggregation, rendered on demand when absent.
func render(job matrix.JobResult) (documents, error) {
	summary := job.Summary
	if summary == "" {
		summary = matrix.RenderSummary(job)
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return documents{}, fmt.Errorf("%w: encode result: %w", ErrPublish, err)
	}
	return documents{markdown: []byte(summary), json: append(data, '\n')}, nil
}
