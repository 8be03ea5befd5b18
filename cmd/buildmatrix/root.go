// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for buildmatrix.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/invowk/buildmatrix/internal/config"
	"github.com/invowk/buildmatrix/internal/issue"
	"github.com/invowk/buildmatrix/pkg/types"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

type (
	sessionContextKey struct{}

	// App wires CLI services and shared dependencies. Every command handler
	// receives the App and reads its configuration through it.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}

	// rootFlags are the persistent flags shared by every command.
	rootFlags struct {
		configPath string
		verbose    bool
		logLevel   string
		logFormat  string
	}

	// session is the per-invocation state set up before a command runs.
	session struct {
		cfg     *config.Config
		verbose bool
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	return &App{Config: deps.Config, stdout: deps.Stdout, stderr: deps.Stderr}, nil
}

// NewRootCommand builds the command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "buildmatrix",
		Short: "Run build and test commands across a matrix of isolated environments",
		Long: TitleStyle.Render("buildmatrix") + SubtitleStyle.Render(" - build and test across a variant matrix") + `

buildmatrix expands a matrix file into build variants, runs every variant in
its own execution context (temporary directory, host shell or container),
and classifies the results with per-variant unstable/failure thresholds.

` + SubtitleStyle.Render("Exit codes:") + `
  0  stable (or skipped by a commit marker)
  1  failed
  2  unstable
  3  configuration or usage error

` + SubtitleStyle.Render("Examples:") + `
  buildmatrix validate matrix.yaml     Check a matrix file
  buildmatrix plan matrix.cue          Show the expanded variants
  buildmatrix run matrix.toml          Run every variant
  buildmatrix config show              Show the effective configuration`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup(cmd, flags)
		},
	}
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/buildmatrix/config.cue)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output and debug logging")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: text, json or logfmt")

	root.AddCommand(
		newRunCommand(app),
		newValidateCommand(app),
		newPlanCommand(app),
		newConfigCommand(app),
	)
	return root
}

// Execute runs the CLI and exits with the command's exit code.
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// fang overrides rootCmd.Version, so the version is passed explicitly.
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// setup loads the configuration, applies flag overrides and installs the
// logger into the command context.
func (a *App) setup(cmd *cobra.Command, flags *rootFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		return usageError(cmd, err, flags.verbose)
	}
	if flags.logLevel != "" {
		cfg.Log.Level = config.LogLevel(flags.logLevel)
	}
	if flags.logFormat != "" {
		cfg.Log.Format = config.LogFormat(flags.logFormat)
	}
	if err := cfg.Validate(); err != nil {
		return usageError(cmd, err, flags.verbose)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Log, flags.verbose)
	ctx = log.WithContext(ctx, logger)
	ctx = context.WithValue(ctx, sessionContextKey{}, &session{cfg: cfg, verbose: flags.verbose})
	cmd.SetContext(ctx)

	if cfg.Source != "" {
		logger.Debug("configuration loaded", "path", cfg.Source)
	}
	return nil
}

// sessionFrom returns the invocation state installed by setup, or defaults.
func sessionFrom(ctx context.Context) *session {
	if s, ok := ctx.Value(sessionContextKey{}).(*session); ok {
		return s
	}
	return &session{cfg: config.DefaultConfig()}
}

// newLogger builds the structured logger. Verbose output forces debug level.
func newLogger(w io.Writer, cfg config.LogConfig, verbose bool) *log.Logger {
	level, err := log.ParseLevel(string(cfg.Level))
	if err != nil {
		level = log.InfoLevel
	}
	if verbose {
		level = log.DebugLevel
	}

	formatter := log.TextFormatter
	switch cfg.Format {
	case config.LogFormatJSON:
		formatter = log.JSONFormatter
	case config.LogFormatLogfmt:
		formatter = log.LogfmtFormatter
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		Prefix:          config.AppName,
	})
}

// usageError renders err on stderr and turns it into a configuration exit.
func usageError(cmd *cobra.Command, err error, verbose bool) error {
	stderr := cmd.ErrOrStderr()
	fmt.Fprintln(stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
	if verbose {
		printIssueGuide(stderr, err)
	}
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return &ExitError{Code: types.ExitConfig, Err: err}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// printIssueGuide renders the catalogued guide for the issue attached to
// err, if any.
func printIssueGuide(w io.Writer, err error) {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || ae.Issue == 0 {
		return
	}
	guide := issue.Get(ae.Issue)
	if guide == nil {
		return
	}
	if rendered, renderErr := guide.Render("dark"); renderErr == nil {
		fmt.Fprint(w, rendered)
	}
}
