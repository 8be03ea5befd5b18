// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/invowk/buildmatrix/pkg/matrix"
	"github.com/invowk/buildmatrix/pkg/types"

	"github.com/testcontainers/testcontainers-go"
	"golang.org/x/exp/maps"
)

// Runtime type constants for different execution environments.
const (
	RuntimeTypeNative    RuntimeType = "native"
	RuntimeTypeVirtual   RuntimeType = "virtual"
	RuntimeTypeContainer RuntimeType = "container"

	// ExitTimeout is reported for a command killed by the command timeout.
	ExitTimeout types.ExitCode = 124
)

var (
	// ErrRuntimeNotAvailable is returned when a runtime is not registered or
	// cannot be used on this host.
	ErrRuntimeNotAvailable = errors.New("runtime not available")
	// ErrUnknownNodeType is the sentinel error wrapped by UnknownNodeTypeError.
	ErrUnknownNodeType = errors.New("unknown node type")
	// ErrCommandTimeout is the sentinel error wrapped by CommandTimeoutError.
	ErrCommandTimeout = errors.New("command timed out")
	// ErrInvalidRuntimeType is the sentinel error wrapped by InvalidRuntimeTypeError.
	ErrInvalidRuntimeType = errors.New("invalid runtime type")
)

type (
	// RuntimeType identifies the type of runtime.
	//
	//nolint:revive // RuntimeType is more descriptive than Type for external callers
	RuntimeType string

	// InvalidRuntimeTypeError is returned when a RuntimeType value is not recognized.
	InvalidRuntimeTypeError struct {
		Value RuntimeType
	}

	// UnknownNodeTypeError is returned by a provisioner that has no
	// environment for the requested node type.
	UnknownNodeTypeError struct {
		Runtime  RuntimeType
		NodeType matrix.NodeType
	}

	// CommandTimeoutError is reported in Result.Error when a command exceeded
	// the configured timeout.
	CommandTimeoutError struct {
		Command string
		Timeout time.Duration
	}

	// ExecutionContext is an isolated environment owned by one variant for the
	// duration of its run.
	ExecutionContext struct {
		// ID is unique among live contexts.
		ID string
		// NodeType is the node type the context was provisioned for.
		NodeType matrix.NodeType
		// Dir is the context's directory on the host. Checkout writes sources
		// here and test reports are read from here.
		Dir string
		// WorkDir is the working directory of commands as they see it. It
		// equals Dir except in containers.
		WorkDir string
		// Env is the KEY=VALUE environment of every command run in the context.
		Env []string

		container testcontainers.Container
	}

	// Result contains the result of a command execution
	Result struct {
		// ExitCode is the exit code of the command
		ExitCode types.ExitCode
		// Error contains any error that prevented the command from running
		// to completion (start failure, timeout, cancellation)
		Error error
		// Output contains captured stdout
		Output string
		// ErrOutput contains captured stderr
		ErrOutput string
	}

	// Provisioner creates and destroys execution contexts.
	Provisioner interface {
		// Provision creates a fresh context for nodeType.
		Provision(ctx context.Context, nodeType matrix.NodeType) (*ExecutionContext, error)
		// Release destroys ec. It is called exactly once per provisioned context.
		Release(ctx context.Context, ec *ExecutionContext) error
		// Available reports whether contexts can be provisioned on this host.
		Available() bool
	}

	// Runner executes a shell command inside an execution context.
	Runner interface {
		Exec(ctx context.Context, ec *ExecutionContext, command string) *Result
	}

	// Runtime is a provisioner that can also run commands in the contexts it
	// provisions.
	Runtime interface {
		Provisioner
		Runner
		// Name returns the runtime name
		Name() string
	}

	// Options are shared by every runtime.
	Options struct {
		// WorkspaceRoot is the parent of per-variant directories. Empty uses
		// the system temp directory.
		WorkspaceRoot string
		// InheritEnv names host variables copied into every new context.
		InheritEnv []string
		// CommandTimeout bounds each Exec call; 0 disables it.
		CommandTimeout time.Duration
	}

	// Registry holds all available runtimes
	Registry struct {
		runtimes map[RuntimeType]Runtime
	}
)

func (t RuntimeType) String() string { return string(t) }

// IsValid returns whether the RuntimeType is one of the defined types.
func (t RuntimeType) IsValid() (bool, []error) {
	switch t {
	case RuntimeTypeNative, RuntimeTypeVirtual, RuntimeTypeContainer:
		return true, nil
	default:
		return false, []error{&InvalidRuntimeTypeError{Value: t}}
	}
}

func (e *InvalidRuntimeTypeError) Error() string {
	return fmt.Sprintf("invalid runtime type %q (valid: native, virtual, container)", e.Value)
}

func (e *InvalidRuntimeTypeError) Unwrap() error { return ErrInvalidRuntimeType }

func (e *UnknownNodeTypeError) Error() string {
	return fmt.Sprintf("%s runtime has no environment for node type %q", e.Runtime, e.NodeType)
}

func (e *UnknownNodeTypeError) Unwrap() error { return ErrUnknownNodeType }

func (e *CommandTimeoutError) Error() string {
	return fmt.Sprintf("command timed out after %s: %s", e.Timeout, e.Command)
}

func (e *CommandTimeoutError) Unwrap() error { return ErrCommandTimeout }

// ApplyEnv merges vars into the context environment; later entries win.
func (ec *ExecutionContext) ApplyEnv(vars ...matrix.EnvVar) {
	ec.Env = matrix.MergeEnv(ec.Env, vars...)
}

// Success returns true if the command executed successfully
func (r *Result) Success() bool {
	return r.ExitCode == 0 && r.Error == nil
}

// NewRegistry creates a new runtime registry
func NewRegistry() *Registry {
	return &Registry{
		runtimes: make(map[RuntimeType]Runtime),
	}
}

// Register adds a runtime to the registry
func (r *Registry) Register(typ RuntimeType, rt Runtime) {
	r.runtimes[typ] = rt
}

// Get returns a runtime by type
func (r *Registry) Get(typ RuntimeType) (Runtime, error) {
	rt, ok := r.runtimes[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not registered", ErrRuntimeNotAvailable, typ)
	}
	return rt, nil
}

// GetAvailable returns a runtime by type if it is registered and usable.
func (r *Registry) GetAvailable(typ RuntimeType) (Runtime, error) {
	rt, err := r.Get(typ)
	if err != nil {
		return nil, err
	}
	if !rt.Available() {
		return nil, fmt.Errorf("%w: %s", ErrRuntimeNotAvailable, typ)
	}
	return rt, nil
}

// Types returns the registered runtime types, sorted.
func (r *Registry) Types() []RuntimeType {
	return slices.Sorted(maps.Keys(r.runtimes))
}
