// SPDX-License-Identifier: MPL-2.0

package checkout

import (
	"context"
	"fmt"
	"os"

	"github.com/invowk/buildmatrix/internal/runtime"
)

// Local copies a directory tree into each context.
type Local struct {
	Dir string
}

// Prepare checks that the directory exists. It never skips.
func (l *Local) Prepare(_ context.Context, _ Options) (bool, error) {
	info, err := os.Stat(l.Dir)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrCheckout, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%w: %s is not a directory", ErrCheckout, l.Dir)
	}
	return false, nil
}

// Populate copies the directory into ec.Dir.
func (l *Local) Populate(ctx context.Context, ec *runtime.ExecutionContext) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCheckout, err)
	}
	if err := os.CopyFS(ec.Dir, os.DirFS(l.Dir)); err != nil {
		return fmt.Errorf("%w: copy %s: %w", ErrCheckout, l.Dir, err)
	}
	return nil
}
