// SPDX-License-Identifier: MPL-2.0

package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invowk/buildmatrix/pkg/matrix"

	"github.com/charmbracelet/log"
)

// Files writes summary.md and summary.json into Dir, creating it if needed.
// Existing summaries are overwritten.
type Files struct {
	Dir string
}

// Publish implements Reporter.
func (f *Files) Publish(ctx context.Context, job matrix.JobResult) error {
	docs, err := render(job)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}

	for name, data := range map[string][]byte{SummaryMarkdown: docs.markdown, SummaryJSON: docs.json} {
		path := filepath.Join(f.Dir, name)
		if err := writeFileAtomic(path, data); err != nil {
			return fmt.Errorf("%w: write %s: %w", ErrPublish, path, err)
		}
	}

	log.FromContext(ctx).Info("summary written", "dir", f.Dir)
	return nil
}

// writeFileAtomic replaces path with data through a temp file in the same
// directory.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // No-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
