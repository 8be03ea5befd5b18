// SPDX-License-Identifier: MPL-2.0

package report

import (
	"context"
	"fmt"
	"io"

	"github.com/invowk/buildmatrix/pkg/matrix"

	"github.com/charmbracelet/glamour"
)

// Terminal renders the markdown summary with glamour.
type Terminal struct {
	Out io.Writer
	// Width wraps the output; zero keeps glamour's default.
	Width int
	// Style is a glamour standard style ("dark", "light", "notty", ...).
	// Empty detects the style from the terminal.
	Style string
}

// Publish implements Reporter.
func (t *Terminal) Publish(_ context.Context, job matrix.JobResult) error {
	docs, err := render(job)
	if err != nil {
		return err
	}

	var opts []glamour.TermRendererOption
	if t.Style != "" {
		opts = append(opts, glamour.WithStandardStyle(t.Style))
	} else {
		opts = append(opts, glamour.WithAutoStyle())
	}
	if t.Width > 0 {
		opts = append(opts, glamour.WithWordWrap(t.Width))
	}

	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	out, err := renderer.RenderBytes(docs.markdown)
	if err != nil {
		return fmt.Errorf("%w: render summary: %w", ErrPublish, err)
	}
	if _, err := t.Out.Write(out); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return nil
}
