// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/invowk/buildmatrix/pkg/matrix"
)

var unsafeDirChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// makeContextDir creates a fresh directory under root (or the system temp
// directory) and returns its absolute path.
func makeContextDir(root string, nodeType matrix.NodeType) (string, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return "", fmt.Errorf("failed to create workspace root: %w", err)
		}
	}
	label := unsafeDirChars.ReplaceAllString(string(nodeType), "_")
	if label == "" {
		label = "node"
	}
	dir, err := os.MkdirTemp(root, "buildmatrix-"+label+"-")
	if err != nil {
		return "", fmt.Errorf("failed to create context directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		_ = os.RemoveAll(dir) // Best-effort cleanup on error path
		return "", fmt.Errorf("failed to resolve context directory: %w", err)
	}
	return abs, nil
}

// newDirContext provisions a directory-backed context for the virtual and
// native runtimes.
func newDirContext(opts Options, nodeType matrix.NodeType) (*ExecutionContext, error) {
	dir, err := makeContextDir(opts.WorkspaceRoot, nodeType)
	if err != nil {
		return nil, err
	}
	return &ExecutionContext{
		ID:       filepath.Base(dir),
		NodeType: nodeType,
		Dir:      dir,
		WorkDir:  dir,
		Env:      hostEnv(opts.InheritEnv, os.LookupEnv),
	}, nil
}

func releaseDir(ec *ExecutionContext) error {
	if ec == nil || ec.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(ec.Dir); err != nil {
		return fmt.Errorf("failed to remove context directory %s: %w", ec.Dir, err)
	}
	return nil
}

// hostEnv returns NAME=value entries for the allow-listed host variables
// that are set. Names are matched exactly.
func hostEnv(names []string, lookup func(string) (string, bool)) []string {
	env := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if val, ok := lookup(name); ok {
			env = append(env, name+"="+val)
		}
	}
	return env
}

// commandContext applies the command timeout to ctx.
func (o Options) commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.CommandTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.CommandTimeout)
}

// timeoutResult returns a timeout Result when cmdCtx expired because of the
// command timeout rather than cancellation of the parent.
func (o Options) timeoutResult(parent, cmdCtx context.Context, command, stdout, stderr string) (*Result, bool) {
	if o.CommandTimeout <= 0 || parent.Err() != nil {
		return nil, false
	}
	if !errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
		return nil, false
	}
	return &Result{
		ExitCode:  ExitTimeout,
		Error:     &CommandTimeoutError{Command: command, Timeout: o.CommandTimeout},
		Output:    stdout,
		ErrOutput: stderr,
	}, true
}
