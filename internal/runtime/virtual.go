// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/invowk/buildmatrix/pkg/matrix"
	"github.com/invowk/buildmatrix/pkg/types"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// VirtualRuntime executes commands using the mvdan/sh interpreter. External
// programs are still resolved through the context's PATH.
type VirtualRuntime struct {
	opts Options
}

// NewVirtualRuntime creates a new virtual runtime
func NewVirtualRuntime(opts Options) *VirtualRuntime {
	return &VirtualRuntime{opts: opts}
}

// Name returns the runtime name
func (r *VirtualRuntime) Name() string {
	return string(RuntimeTypeVirtual)
}

// Available returns whether this runtime is available
func (r *VirtualRuntime) Available() bool {
	// Virtual runtime is always available as it's built-in
	return true
}

// Provision creates a private directory for the variant. Every node type is
// accepted.
func (r *VirtualRuntime) Provision(ctx context.Context, nodeType matrix.NodeType) (*ExecutionContext, error) {
	ec, err := newDirContext(r.opts, nodeType)
	if err != nil {
		return nil, err
	}
	log.FromContext(ctx).Debug("provisioned context", "runtime", r.Name(), "node_type", nodeType, "dir", ec.Dir)
	return ec, nil
}

// Release removes the context directory.
func (r *VirtualRuntime) Release(_ context.Context, ec *ExecutionContext) error {
	return releaseDir(ec)
}

// Validate checks that command parses as a shell program.
func (r *VirtualRuntime) Validate(command string) error {
	if _, err := syntax.NewParser().Parse(strings.NewReader(command), "command"); err != nil {
		return fmt.Errorf("command syntax error: %w", err)
	}
	return nil
}

// Exec runs command in ec and captures its output.
func (r *VirtualRuntime) Exec(ctx context.Context, ec *ExecutionContext, command string) *Result {
	prog, err := syntax.NewParser().Parse(strings.NewReader(command), "command")
	if err != nil {
		return NewErrorResult(2, fmt.Errorf("failed to parse command: %w", err))
	}

	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.Dir(ec.WorkDir),
		interp.Env(expand.ListEnviron(ec.Env...)),
		interp.StdIO(nil, &stdout, &stderr),
	)
	if err != nil {
		return NewErrorResult(1, fmt.Errorf("failed to create interpreter: %w", err))
	}

	cmdCtx, cancel := r.opts.commandContext(ctx)
	defer cancel()

	err = runner.Run(cmdCtx, prog)
	if res, timedOut := r.opts.timeoutResult(ctx, cmdCtx, command, stdout.String(), stderr.String()); timedOut {
		return res
	}

	result := &Result{}
	if err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			result.ExitCode = types.ExitCode(exitStatus)
		} else {
			result.ExitCode = 1
			result.Error = fmt.Errorf("command execution failed: %w", err)
		}
	}
	result.Output = stdout.String()
	result.ErrOutput = stderr.String()
	return result
}
