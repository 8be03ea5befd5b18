// SPDX-License-Identifier: MPL-2.0

// Package checkout fetches the sources a job builds and copies them into
// every variant's execution context.
package checkout

import (
	"context"
	"errors"
	"os"

	"github.com/invowk/buildmatrix/internal/config"
	"github.com/invowk/buildmatrix/internal/runtime"
)

var (
	// ErrCheckout is wrapped by every error returned from Prepare or Populate.
	ErrCheckout = errors.New("checkout failed")
	// ErrNotPrepared is returned by Populate when Prepare did not succeed.
	ErrNotPrepared = errors.New("checkout not prepared")
)

type (
	// Options control Prepare.
	Options struct {
		// SkipIfMarkedSkip makes Prepare report skipped when the revision
		// carries a skip marker.
		SkipIfMarkedSkip bool
	}

	// Checkout prepares sources once per job and populates each execution
	// context with them. Populate may be called concurrently.
	Checkout interface {
		Prepare(ctx context.Context, opts Options) (skipped bool, err error)
		Populate(ctx context.Context, ec *runtime.ExecutionContext) error
	}

	// None is used when no source is configured.
	None struct{}
)

// Prepare never skips.
func (None) Prepare(context.Context, Options) (bool, error) { return false, nil }

// Populate leaves the context empty.
func (None) Populate(context.Context, *runtime.ExecutionContext) error { return nil }

// New selects the checkout for cfg. An empty repository yields None. A local
// directory without a ref is copied as-is (uncommitted changes included);
// anything else is treated as a git repository.
func New(cfg config.CheckoutConfig) Checkout {
	if cfg.Repository == "" {
		return None{}
	}
	if cfg.Ref == "" {
		if info, err := os.Stat(cfg.Repository); err == nil && info.IsDir() {
			return &Local{Dir: cfg.Repository}
		}
	}
	return &Git{
		Repository:  cfg.Repository,
		Ref:         cfg.Ref,
		CacheDir:    cfg.CacheDir,
		SkipMarkers: cfg.SkipMarkers,
	}
}
