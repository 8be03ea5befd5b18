// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"time"

	"github.com/invowk/buildmatrix/pkg/matrix"
	"github.com/invowk/buildmatrix/pkg/types"

	"github.com/charmbracelet/log"
)

const waitDelay = 2 * time.Second

// NativeRuntime executes commands using the host shell.
type NativeRuntime struct {
	opts Options
	// Shell overrides the default shell
	Shell string
}

// NewNativeRuntime creates a new native runtime. An empty shell selects sh,
// or cmd on Windows.
func NewNativeRuntime(opts Options, shell string) *NativeRuntime {
	return &NativeRuntime{opts: opts, Shell: shell}
}

// Name returns the runtime name
func (r *NativeRuntime) Name() string {
	return string(RuntimeTypeNative)
}

// Available returns whether the shell can be found.
func (r *NativeRuntime) Available() bool {
	_, err := exec.LookPath(r.shell())
	return err == nil
}

// Provision creates a private directory for the variant. Every node type is
// accepted.
func (r *NativeRuntime) Provision(ctx context.Context, nodeType matrix.NodeType) (*ExecutionContext, error) {
	ec, err := newDirContext(r.opts, nodeType)
	if err != nil {
		return nil, err
	}
	log.FromContext(ctx).Debug("provisioned context", "runtime", r.Name(), "node_type", nodeType, "dir", ec.Dir)
	return ec, nil
}

// Release removes the context directory.
func (r *NativeRuntime) Release(_ context.Context, ec *ExecutionContext) error {
	return releaseDir(ec)
}

// Exec runs command with the shell in ec and captures its output. The
// process sees only ec.Env.
func (r *NativeRuntime) Exec(ctx context.Context, ec *ExecutionContext, command string) *Result {
	cmdCtx, cancel := r.opts.commandContext(ctx)
	defer cancel()

	shell := r.shell()
	cmd := exec.CommandContext(cmdCtx, shell, r.shellArgs(shell, command)...)
	cmd.Dir = ec.WorkDir
	cmd.Env = append([]string{}, ec.Env...)
	// Grandchildren holding the pipes open must not outlive the timeout.
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if res, timedOut := r.opts.timeoutResult(ctx, cmdCtx, command, stdout.String(), stderr.String()); timedOut {
		return res
	}

	result := &Result{Output: stdout.String(), ErrOutput: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			result.ExitCode = types.ExitCode(exitErr.ExitCode())
			return result
		}
		result.ExitCode = 1
		result.Error = fmt.Errorf("failed to execute command: %w", err)
	}
	return result
}

func (r *NativeRuntime) shell() string {
	if r.Shell != "" {
		return r.Shell
	}
	if goruntime.GOOS == "windows" {
		return "cmd"
	}
	return "sh"
}

// shellArgs returns the arguments that make shell run command.
func (r *NativeRuntime) shellArgs(shell, command string) []string {
	name := strings.TrimSuffix(strings.ToLower(filepath.Base(shell)), ".exe")
	switch name {
	case "cmd":
		return []string{"/c", command}
	case "powershell", "pwsh":
		return []string{"-NoProfile", "-Command", command}
	default:
		return []string{"-c", command}
	}
}
