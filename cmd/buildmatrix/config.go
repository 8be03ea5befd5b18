// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/invowk/buildmatrix/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `buildmatrix config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect buildmatrix configuration",
		Long: `Inspect buildmatrix configuration.

Configuration is read from config.cue in:
  - Linux: ~/.config/buildmatrix/
  - macOS: ~/Library/Application Support/buildmatrix/
  - Windows: %APPDATA%\buildmatrix\

Every setting can be overridden with a BUILDMATRIX_ environment variable,
for example BUILDMATRIX_RUNTIME=native or BUILDMATRIX_LOG_LEVEL=debug.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.showConfig(cmd)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(cmd)
		},
	})

	return cfgCmd
}

func (a *App) showConfig(cmd *cobra.Command) error {
	cfg := sessionFrom(cmd.Context()).cfg
	out := cmd.OutOrStdout()

	if cfg.Source == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), SubtitleStyle.Render("No config file found (using defaults)"))
	}
	fmt.Fprint(out, config.GenerateCUE(cfg))
	return nil
}

func showConfigPath(cmd *cobra.Command) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(out, "Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
	return nil
}
