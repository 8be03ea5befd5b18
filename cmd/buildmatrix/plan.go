// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/invowk/buildmatrix/pkg/matrix"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func newPlanCommand(app *App) *cobra.Command {
	var only []string

	cmd := &cobra.Command{
		Use:   "plan <matrix-file>",
		Short: "Show the variants a matrix file expands to",
		Long: `Show the variants a matrix file expands to.

Axes and extends chains are resolved exactly as for 'run', but nothing is
provisioned or executed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.plan(cmd, args[0], only)
		},
	}
	cmd.Flags().StringSliceVar(&only, "only", nil, "show only the named variants (repeatable)")

	return cmd
}

func (a *App) plan(cmd *cobra.Command, path string, only []string) error {
	s := sessionFrom(cmd.Context())

	m, err := loadMatrix(path)
	if err != nil {
		return usageError(cmd, err, s.verbose)
	}
	m, err = m.Only(variantNames(only)...)
	if err != nil {
		return usageError(cmd, err, s.verbose)
	}
	if err := matrix.ValidateMatrix(m.Configs); err != nil {
		return usageError(cmd, err, s.verbose)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, planTable(m.Configs))

	summary := "summary: off"
	if m.Policy.WantsSummary() {
		summary = "summary: on"
	}
	fmt.Fprintf(out, "%s %s\n", SubtitleStyle.Render(fmt.Sprintf("%d variant(s),", len(m.Configs))), SubtitleStyle.Render(summary))
	return nil
}

func planTable(configs []matrix.BuildConfig) *table.Table {
	rows := make([][]string, 0, len(configs))
	for i := range configs {
		c := &configs[i]
		env := make([]string, len(c.EnvVars))
		for j, e := range c.EnvVars {
			env[j] = e.String()
		}
		rows = append(rows, []string{
			string(c.Name),
			string(c.NodeType),
			cell(env),
			cell(c.Packages),
			strconv.Itoa(len(c.BuildCommands)),
			strconv.Itoa(len(c.TestCommands)),
			fmt.Sprintf("%d/%d", c.UnstableThreshold, c.FailureThreshold),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorMuted)).
		Headers("VARIANT", "NODE", "ENV", "PACKAGES", "BUILD", "TEST", "THRESHOLDS").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
}

func cell(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, " ")
}
