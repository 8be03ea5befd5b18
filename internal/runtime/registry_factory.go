// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"

	"github.com/invowk/buildmatrix/internal/config"
)

const (
	// CodeContainerNoImages indicates the container runtime was selected
	// without any node images, so every variant would fail to provision.
	CodeContainerNoImages InitDiagnosticCode = "container_no_node_images"
)

// ErrInvalidInitDiagnosticCode is the sentinel error wrapped by InvalidInitDiagnosticCodeError.
var ErrInvalidInitDiagnosticCode = errors.New("invalid init diagnostic code")

type (
	// InitDiagnosticCode categorizes non-fatal runtime initialization diagnostics.
	InitDiagnosticCode string

	// InvalidInitDiagnosticCodeError is returned when an InitDiagnosticCode value
	// is not one of the defined diagnostic codes.
	InvalidInitDiagnosticCodeError struct {
		Value InitDiagnosticCode
	}

	// InitDiagnostic reports non-fatal runtime initialization details.
	InitDiagnostic struct {
		Code    InitDiagnosticCode
		Message string
	}

	// RegistryBuildResult contains the built registry, the runtime selected
	// by configuration and any diagnostics.
	RegistryBuildResult struct {
		Registry    *Registry
		Selected    RuntimeType
		Diagnostics []InitDiagnostic
	}
)

// Error implements the error interface.
func (e *InvalidInitDiagnosticCodeError) Error() string {
	return fmt.Sprintf("invalid init diagnostic code %q (valid: %s)", e.Value, CodeContainerNoImages)
}

// Unwrap returns ErrInvalidInitDiagnosticCode so callers can use errors.Is for programmatic detection.
func (e *InvalidInitDiagnosticCodeError) Unwrap() error { return ErrInvalidInitDiagnosticCode }

// String returns the string representation of the InitDiagnosticCode.
func (c InitDiagnosticCode) String() string { return string(c) }

// Validate returns nil if the InitDiagnosticCode is one of the defined diagnostic codes,
// or a validation error if it is not.
func (c InitDiagnosticCode) Validate() error {
	switch c {
	case CodeContainerNoImages:
		return nil
	default:
		return &InvalidInitDiagnosticCodeError{Value: c}
	}
}

// OptionsFromConfig extracts the options shared by every runtime.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		WorkspaceRoot:  cfg.WorkspaceRoot,
		InheritEnv:     cfg.InheritEnv,
		CommandTimeout: cfg.CommandTimeout,
	}
}

// BuildRegistry creates and populates the runtime registry. All three
// runtimes are registered; whether the container runtime can be used is only
// checked when it is requested.
func BuildRegistry(cfg *config.Config) RegistryBuildResult {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	opts := OptionsFromConfig(cfg)

	result := RegistryBuildResult{
		Registry: NewRegistry(),
		Selected: RuntimeType(cfg.Runtime),
	}
	result.Registry.Register(RuntimeTypeVirtual, NewVirtualRuntime(opts))
	result.Registry.Register(RuntimeTypeNative, NewNativeRuntime(opts, cfg.Native.Shell))
	result.Registry.Register(RuntimeTypeContainer,
		NewContainerRuntime(opts, cfg.Container.NodeImages, cfg.Container.WorkDir))

	if result.Selected == RuntimeTypeContainer && len(cfg.Container.NodeImages) == 0 {
		result.Diagnostics = append(result.Diagnostics, InitDiagnostic{
			Code:    CodeContainerNoImages,
			Message: "container runtime selected but container.node_images is empty",
		})
	}
	return result
}
