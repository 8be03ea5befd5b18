// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/invowk/buildmatrix/internal/config"
	"github.com/invowk/buildmatrix/internal/testutil"
	"github.com/invowk/buildmatrix/pkg/types"
)

type staticProvider struct {
	cfg *config.Config
	err error
}

func (p staticProvider) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	if p.err != nil {
		return nil, p.err
	}
	cfg := *p.cfg
	return &cfg, nil
}

// testConfig returns a configuration that runs variants in the virtual
// runtime under a per-test workspace and keeps the terminal report quiet.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Runtime = config.RuntimeVirtual
	cfg.WorkspaceRoot = t.TempDir()
	cfg.Report.Terminal = false
	return cfg
}

// execute runs the command tree with args and returns what it printed.
func execute(t *testing.T, cfg *config.Config, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, errOut bytes.Buffer
	app, err := NewApp(Dependencies{
		Config: staticProvider{cfg: cfg},
		Stdout: &out,
		Stderr: &errOut,
	})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}

	root := NewRootCommand(app)
	root.SetArgs(args)
	err = root.ExecuteContext(t.Context())
	return out.String(), errOut.String(), err
}

func writeMatrix(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	testutil.MustWriteFile(t, path, content)
	return path
}

func exitCode(t *testing.T, err error) types.ExitCode {
	t.Helper()
	if err == nil {
		return types.ExitSuccess
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error %v is not an *ExitError", err)
	}
	return exitErr.Code
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2026-06-15T10:00:00Z"

		got := getVersionString()
		want := "v1.2.3 (commit: abc1234, built: 2026-06-15T10:00:00Z)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got, want := getVersionString(), "dev (built from source)"; got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})
}

func TestSetup_ConfigLoadFailure(t *testing.T) {
	t.Parallel()

	var errOut bytes.Buffer
	app, err := NewApp(Dependencies{
		Config: staticProvider{err: errors.New("config.cue: syntax error")},
		Stdout: &bytes.Buffer{},
		Stderr: &errOut,
	})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	root := NewRootCommand(app)
	root.SetArgs([]string{"config", "show"})

	err = root.ExecuteContext(t.Context())
	if got := exitCode(t, err); got != types.ExitConfig {
		t.Errorf("exit code = %d, want %d", got, types.ExitConfig)
	}
	if !bytes.Contains(errOut.Bytes(), []byte("syntax error")) {
		t.Errorf("stderr = %q, want the load error", errOut.String())
	}
}

func TestSetup_FlagOverrides(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "valid level and format", args: []string{"--log-level", "debug", "--log-format", "json", "config", "show"}},
		{name: "unknown level", args: []string{"--log-level", "loud", "config", "show"}, wantErr: true},
		{name: "unknown format", args: []string{"--log-format", "xml", "config", "show"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := execute(t, testConfig(t), tt.args...)
			if tt.wantErr {
				if got := exitCode(t, err); got != types.ExitConfig {
					t.Errorf("exit code = %d, want %d", got, types.ExitConfig)
				}
				return
			}
			if err != nil {
				t.Errorf("Execute() error = %v", err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Level: config.LogLevelWarn, Format: config.LogFormatJSON}, false)
	logger.Info("hidden")
	logger.Warn("shown", "variant", "py310")

	out := buf.String()
	if bytes.Contains(buf.Bytes(), []byte("hidden")) {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"variant":"py310"`)) {
		t.Errorf("output %q is not JSON with the variant key", out)
	}

	buf.Reset()
	verbose := newLogger(&buf, config.LogConfig{Level: config.LogLevelError, Format: config.LogFormatText}, true)
	verbose.Debug("details")
	if !bytes.Contains(buf.Bytes(), []byte("details")) {
		t.Errorf("verbose logger dropped a debug message: %q", buf.String())
	}
}
