// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/invowk/buildmatrix/pkg/matrix"
	"github.com/invowk/buildmatrix/pkg/types"

	"github.com/spf13/cobra"
)

func newValidateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <matrix-file>",
		Short: "Check a matrix file without running it",
		Long: `Check a matrix file without running it.

The file is decoded, every extends chain and axis is resolved, and the
resulting variants are validated: names must be unique and non-empty,
thresholds non-negative with failure_threshold >= unstable_threshold.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.validate(cmd, args[0])
		},
	}
}

func (a *App) validate(cmd *cobra.Command, path string) error {
	s := sessionFrom(cmd.Context())

	m, err := loadMatrix(path)
	if err == nil {
		err = matrix.ValidateMatrix(m.Configs)
	}
	if err != nil {
		stderr := cmd.ErrOrStderr()
		fmt.Fprintf(stderr, "%s %s\n", ErrorStyle.Render("✗"), path)
		for _, line := range strings.Split(formatErrorForDisplay(err, s.verbose), "\n") {
			fmt.Fprintf(stderr, "  %s\n", line)
		}
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return &ExitError{Code: types.ExitConfig, Err: err}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d variant(s) valid\n", SuccessStyle.Render("✓"), path, len(m.Configs))
	return nil
}
