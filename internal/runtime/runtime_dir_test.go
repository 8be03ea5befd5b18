// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"testing"
	"time"

	"github.com/invowk/buildmatrix/internal/testutil"
)

// dirRuntimes returns the runtimes that provision plain directories and can
// run POSIX shell commands on this host.
func dirRuntimes(t *testing.T, opts Options) []Runtime {
	t.Helper()
	rts := []Runtime{NewVirtualRuntime(opts)}
	if goruntime.GOOS != "windows" {
		rts = append(rts, NewNativeRuntime(opts, ""))
	}
	return rts
}

func TestDirRuntimes_ProvisionRelease(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, rt := range dirRuntimes(t, Options{WorkspaceRoot: root}) {
		t.Run(rt.Name(), func(t *testing.T) {
			t.Parallel()

			a, err := rt.Provision(t.Context(), "linux/amd64")
			if err != nil {
				t.Fatalf("Provision() error = %v", err)
			}
			b, err := rt.Provision(t.Context(), "linux/amd64")
			if err != nil {
				t.Fatalf("Provision() error = %v", err)
			}
			if a.Dir == b.Dir || a.ID == b.ID {
				t.Errorf("contexts share a directory: %s", a.Dir)
			}
			if !filepath.IsAbs(a.Dir) || filepath.Dir(a.Dir) != root {
				t.Errorf("Dir = %s, want a child of %s", a.Dir, root)
			}
			if strings.Contains(filepath.Base(a.Dir), "/") {
				t.Errorf("node type leaked a separator into %s", a.Dir)
			}

			testutil.MustWriteFile(t, filepath.Join(a.Dir, "src.txt"), "x")
			for _, ec := range []*ExecutionContext{a, b} {
				if err := rt.Release(t.Context(), ec); err != nil {
					t.Errorf("Release() error = %v", err)
				}
				if _, err := os.Stat(ec.Dir); !os.IsNotExist(err) {
					t.Errorf("%s still exists after Release", ec.Dir)
				}
			}
		})
	}
}

func TestDirRuntimes_Exec(t *testing.T) {
	t.Parallel()

	for _, rt := range dirRuntimes(t, Options{WorkspaceRoot: t.TempDir(), InheritEnv: []string{"PATH"}}) {
		t.Run(rt.Name(), func(t *testing.T) {
			t.Parallel()

			ec, err := rt.Provision(t.Context(), "linux")
			if err != nil {
				t.Fatalf("Provision() error = %v", err)
			}
			t.Cleanup(func() { _ = rt.Release(context.Background(), ec) })
			ec.ApplyEnv("GREETING=hello", "GREETING=hi")

			res := rt.Exec(t.Context(), ec, `echo "$GREETING" > out.txt && cat out.txt && echo warn >&2`)
			if !res.Success() {
				t.Fatalf("Exec() = %+v", res)
			}
			if strings.TrimSpace(res.Output) != "hi" {
				t.Errorf("Output = %q, want hi", res.Output)
			}
			if strings.TrimSpace(res.ErrOutput) != "warn" {
				t.Errorf("ErrOutput = %q, want warn", res.ErrOutput)
			}
			if got := testutil.MustReadFile(t, filepath.Join(ec.Dir, "out.txt")); strings.TrimSpace(got) != "hi" {
				t.Errorf("out.txt = %q; command did not run in the context directory", got)
			}

			res = rt.Exec(t.Context(), ec, "exit 3")
			if res.ExitCode != 3 || res.Error != nil {
				t.Errorf("exit 3: Exec() = %+v", res)
			}
		})
	}
}

func TestDirRuntimes_CommandTimeout(t *testing.T) {
	t.Parallel()

	opts := Options{WorkspaceRoot: t.TempDir(), InheritEnv: []string{"PATH"}, CommandTimeout: 200 * time.Millisecond}
	for _, rt := range dirRuntimes(t, opts) {
		t.Run(rt.Name(), func(t *testing.T) {
			t.Parallel()

			ec, err := rt.Provision(t.Context(), "linux")
			if err != nil {
				t.Fatalf("Provision() error = %v", err)
			}
			t.Cleanup(func() { _ = rt.Release(context.Background(), ec) })

			start := time.Now()
			res := rt.Exec(t.Context(), ec, "sleep 10")
			if time.Since(start) > 5*time.Second {
				t.Errorf("Exec() took %s despite the timeout", time.Since(start))
			}
			if res.ExitCode != ExitTimeout || !errors.Is(res.Error, ErrCommandTimeout) {
				t.Errorf("Exec() = %+v, want timeout", res)
			}
		})
	}
}

func TestVirtualRuntime_ParseError(t *testing.T) {
	t.Parallel()

	rt := NewVirtualRuntime(Options{})
	if err := rt.Validate("echo ("); err == nil {
		t.Error("Validate() accepted a malformed command")
	}
	res := rt.Exec(t.Context(), &ExecutionContext{WorkDir: t.TempDir()}, "if then")
	if res.Success() || res.Error == nil {
		t.Errorf("Exec() = %+v, want parse error", res)
	}
}

func TestNativeRuntime_ShellArgs(t *testing.T) {
	t.Parallel()

	rt := NewNativeRuntime(Options{}, "")
	tests := []struct {
		shell string
		want  string
	}{
		{shell: "sh", want: "-c"},
		{shell: "/bin/bash", want: "-c"},
		{shell: "cmd.exe", want: "/c"},
		{shell: "CMD", want: "/c"},
		{shell: "pwsh", want: "-NoProfile"},
	}
	for _, tt := range tests {
		if got := rt.shellArgs(tt.shell, "true"); got[0] != tt.want {
			t.Errorf("shellArgs(%s) = %v, want first arg %s", tt.shell, got, tt.want)
		}
	}
}
