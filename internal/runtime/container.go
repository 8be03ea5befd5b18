// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/invowk/buildmatrix/pkg/matrix"
	"github.com/invowk/buildmatrix/pkg/types"

	"github.com/charmbracelet/log"
	"github.com/docker/docker/api/types/container"
	"github.com/testcontainers/testcontainers-go"
	tcexec "github.com/testcontainers/testcontainers-go/exec"
)

// DefaultContainerWorkDir is where the variant directory is mounted when no
// work directory is configured.
const DefaultContainerWorkDir = "/workspace"

// ContainerRuntime provisions one long-lived container per variant and runs
// commands in it with "sh -c".
type ContainerRuntime struct {
	opts Options
	// images maps lower-cased node types to images.
	images  map[string]string
	workDir string
}

// NewContainerRuntime creates a container runtime. Node types are matched
// against images case-insensitively.
func NewContainerRuntime(opts Options, images map[string]string, workDir string) *ContainerRuntime {
	normalized := make(map[string]string, len(images))
	for node, image := range images {
		normalized[strings.ToLower(node)] = image
	}
	if workDir == "" {
		workDir = DefaultContainerWorkDir
	}
	return &ContainerRuntime{opts: opts, images: normalized, workDir: workDir}
}

// Name returns the runtime name
func (r *ContainerRuntime) Name() string {
	return string(RuntimeTypeContainer)
}

// Available reports whether a container provider answers a health check.
// Provider detection can panic when no engine socket exists, so the check
// recovers.
func (r *ContainerRuntime) Available() (available bool) {
	defer func() {
		if rec := recover(); rec != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return provider.Health(ctx) == nil
}

// Image returns the image configured for nodeType.
func (r *ContainerRuntime) Image(nodeType matrix.NodeType) (string, bool) {
	image, ok := r.images[strings.ToLower(string(nodeType))]
	return image, ok
}

// Provision starts a container from the node type's image with a fresh host
// directory bind-mounted at the work directory. The container idles on
// "sleep infinity" until released.
func (r *ContainerRuntime) Provision(ctx context.Context, nodeType matrix.NodeType) (*ExecutionContext, error) {
	image, ok := r.Image(nodeType)
	if !ok {
		return nil, &UnknownNodeTypeError{Runtime: RuntimeTypeContainer, NodeType: nodeType}
	}

	dir, err := makeContextDir(r.opts.WorkspaceRoot, nodeType)
	if err != nil {
		return nil, err
	}

	req := testcontainers.ContainerRequest{
		Image:      image,
		Entrypoint: []string{"sleep"},
		Cmd:        []string{"infinity"},
		WorkingDir: r.workDir,
		HostConfigModifier: func(hc *container.HostConfig) {
			hc.Binds = append(hc.Binds, dir+":"+r.workDir)
		},
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if c != nil {
			_ = c.Terminate(context.WithoutCancel(ctx)) // Best-effort cleanup on error path
		}
		_ = releaseDir(&ExecutionContext{Dir: dir}) // Best-effort cleanup on error path
		return nil, fmt.Errorf("failed to start %s container for node type %q: %w", image, nodeType, err)
	}

	log.FromContext(ctx).Debug("provisioned context", "runtime", r.Name(), "node_type", nodeType,
		"image", image, "container", c.GetContainerID())

	return &ExecutionContext{
		ID:        c.GetContainerID(),
		NodeType:  nodeType,
		Dir:       dir,
		WorkDir:   r.workDir,
		Env:       nil,
		container: c,
	}, nil
}

// Release terminates the container and removes the host directory.
func (r *ContainerRuntime) Release(ctx context.Context, ec *ExecutionContext) error {
	if ec == nil {
		return nil
	}
	var errs []error
	if ec.container != nil {
		// Files written by root inside the container must stay removable
		// from the host.
		_, _, _ = ec.container.Exec(ctx, []string{"chmod", "-R", "a+rwX", r.workDir}) // Best-effort
		if err := ec.container.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to terminate container %s: %w", ec.ID, err))
		}
		ec.container = nil
	}
	if err := releaseDir(ec); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Exec runs command with "sh -c" in the context's container. Stdout and
// stderr are returned together in Output.
func (r *ContainerRuntime) Exec(ctx context.Context, ec *ExecutionContext, command string) *Result {
	if ec.container == nil {
		return NewErrorResult(1, fmt.Errorf("%w: context %s has no container", ErrRuntimeNotAvailable, ec.ID))
	}

	cmdCtx, cancel := r.opts.commandContext(ctx)
	defer cancel()

	code, reader, err := ec.container.Exec(cmdCtx, []string{"sh", "-c", command},
		tcexec.Multiplexed(),
		tcexec.WithWorkingDir(ec.WorkDir),
		tcexec.WithEnv(ec.Env),
	)
	var output string
	if reader != nil {
		data, _ := io.ReadAll(reader) //nolint:errcheck // partial output is still useful
		output = string(data)
	}
	if res, timedOut := r.opts.timeoutResult(ctx, cmdCtx, command, output, ""); timedOut {
		return res
	}
	if err != nil {
		return &Result{ExitCode: 1, Error: fmt.Errorf("failed to exec in container %s: %w", ec.ID, err), Output: output}
	}
	return &Result{ExitCode: types.ExitCode(code), Output: output}
}
