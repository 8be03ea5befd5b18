// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

const (
	// RuntimeVirtual runs commands in the embedded mvdan/sh interpreter.
	RuntimeVirtual RuntimeMode = "virtual"
	// RuntimeNative runs commands with the host shell.
	RuntimeNative RuntimeMode = "native"
	// RuntimeContainer runs each variant in its own container.
	RuntimeContainer RuntimeMode = "container"

	// ManagerNone skips package installation.
	ManagerNone InstallerManager = "none"
	// ManagerPip installs packages with pip; channels become package indexes.
	ManagerPip InstallerManager = "pip"
	// ManagerConda installs packages with conda; channels are conda channels.
	ManagerConda InstallerManager = "conda"
	// ManagerApt installs packages with apt-get; channels are ignored.
	ManagerApt InstallerManager = "apt"

	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"

	LogFormatText   LogFormat = "text"
	LogFormatJSON   LogFormat = "json"
	LogFormatLogfmt LogFormat = "logfmt"
)

var (
	// ErrInvalidRuntimeMode is returned when a RuntimeMode value is not recognized.
	ErrInvalidRuntimeMode = errors.New("invalid runtime mode")
	// ErrInvalidInstallerManager is returned when an InstallerManager value is not recognized.
	ErrInvalidInstallerManager = errors.New("invalid installer manager")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat is returned when a LogFormat value is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format")
	// ErrInvalidSetting is the sentinel error wrapped by InvalidSettingError.
	ErrInvalidSetting = errors.New("invalid setting")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// RuntimeMode selects how execution contexts are provisioned.
	RuntimeMode string

	// InvalidRuntimeModeError wraps ErrInvalidRuntimeMode.
	InvalidRuntimeModeError struct {
		Value RuntimeMode
	}

	// InstallerManager selects the package manager used to install a
	// variant's packages.
	InstallerManager string

	// InvalidInstallerManagerError wraps ErrInvalidInstallerManager.
	InvalidInstallerManagerError struct {
		Value InstallerManager
	}

	// LogLevel is the minimum level written by the logger.
	LogLevel string

	// InvalidLogLevelError wraps ErrInvalidLogLevel.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// LogFormat selects the logger's output encoding.
	LogFormat string

	// InvalidLogFormatError wraps ErrInvalidLogFormat.
	InvalidLogFormatError struct {
		Value LogFormat
	}

	// InvalidSettingError reports a key whose value is outside its domain.
	InvalidSettingError struct {
		Key    string
		Reason string
	}

	// InvalidConfigError collects every field error of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Runtime selects the provisioner and command runner.
		Runtime RuntimeMode `json:"runtime" mapstructure:"runtime"`
		// MaxParallel bounds concurrently running variants; 0 runs all at once.
		MaxParallel int `json:"max_parallel" mapstructure:"max_parallel"`
		// WorkspaceRoot is where per-variant directories are created; empty
		// uses the system temp directory.
		WorkspaceRoot string `json:"workspace_root" mapstructure:"workspace_root"`
		// CommandTimeout caps each build, test and install command; 0 disables it.
		CommandTimeout time.Duration `json:"command_timeout" mapstructure:"command_timeout"`
		// InheritEnv lists host variables passed into every execution context.
		InheritEnv []string `json:"inherit_env" mapstructure:"inherit_env"`

		Native    NativeConfig    `json:"native" mapstructure:"native"`
		Container ContainerConfig `json:"container" mapstructure:"container"`
		Installer InstallerConfig `json:"installer" mapstructure:"installer"`
		Checkout  CheckoutConfig  `json:"checkout" mapstructure:"checkout"`
		Report    ReportConfig    `json:"report" mapstructure:"report"`
		Log       LogConfig       `json:"log" mapstructure:"log"`

		// Source is the file the configuration was read from, empty when only
		// defaults and environment overrides apply.
		Source string `json:"-" mapstructure:"-"`
	}

	// NativeConfig configures the native runtime.
	NativeConfig struct {
		// Shell replaces the platform default (sh, or cmd on Windows). It is
		// invoked as "<shell> -c <command>".
		Shell string `json:"shell" mapstructure:"shell"`
	}

	// ContainerConfig configures the container runtime.
	ContainerConfig struct {
		// NodeImages maps node types to container images. Keys are matched
		// case-insensitively.
		NodeImages map[string]string `json:"node_images" mapstructure:"node_images"`
		// WorkDir is where the variant directory is mounted in the container.
		WorkDir string `json:"workdir" mapstructure:"workdir"`
	}

	// InstallerConfig configures package installation.
	InstallerConfig struct {
		Manager     InstallerManager `json:"manager" mapstructure:"manager"`
		MaxAttempts int              `json:"max_attempts" mapstructure:"max_attempts"`
		// Backoff is the delay before the second attempt; it doubles after that.
		Backoff time.Duration `json:"backoff" mapstructure:"backoff"`
	}

	// CheckoutConfig selects the source that populates each context.
	// Repository may be a git URL or a local directory; empty disables checkout.
	CheckoutConfig struct {
		Repository  string   `json:"repository" mapstructure:"repository"`
		Ref         string   `json:"ref" mapstructure:"ref"`
		CacheDir    string   `json:"cache_dir" mapstructure:"cache_dir"`
		SkipMarkers []string `json:"skip_markers" mapstructure:"skip_markers"`
	}

	// ReportConfig configures where the job summary is published.
	ReportConfig struct {
		// Dir receives summary.md and summary.json; empty disables file output.
		Dir         string            `json:"dir" mapstructure:"dir"`
		Terminal    bool              `json:"terminal" mapstructure:"terminal"`
		ObjectStore ObjectStoreConfig `json:"object_store" mapstructure:"object_store"`
	}

	// ObjectStoreConfig points at an S3-compatible bucket. An empty Endpoint
	// disables upload.
	ObjectStoreConfig struct {
		Endpoint  string `json:"endpoint" mapstructure:"endpoint"`
		Bucket    string `json:"bucket" mapstructure:"bucket"`
		Prefix    string `json:"prefix" mapstructure:"prefix"`
		AccessKey string `json:"access_key" mapstructure:"access_key"`
		SecretKey string `json:"secret_key" mapstructure:"secret_key"`
		UseSSL    bool   `json:"use_ssl" mapstructure:"use_ssl"`
	}

	// LogConfig configures the logger.
	LogConfig struct {
		Level  LogLevel  `json:"level" mapstructure:"level"`
		Format LogFormat `json:"format" mapstructure:"format"`
	}
)

func (m RuntimeMode) String() string { return string(m) }

// IsValid returns whether the RuntimeMode is one of the defined modes.
func (m RuntimeMode) IsValid() (bool, []error) {
	switch m {
	case RuntimeVirtual, RuntimeNative, RuntimeContainer:
		return true, nil
	default:
		return false, []error{&InvalidRuntimeModeError{Value: m}}
	}
}

func (e *InvalidRuntimeModeError) Error() string {
	return fmt.Sprintf("invalid runtime mode %q (valid: virtual, native, container)", e.Value)
}

func (e *InvalidRuntimeModeError) Unwrap() error { return ErrInvalidRuntimeMode }

func (m InstallerManager) String() string { return string(m) }

// IsValid returns whether the InstallerManager is one of the defined managers.
func (m InstallerManager) IsValid() (bool, []error) {
	switch m {
	case ManagerNone, ManagerPip, ManagerConda, ManagerApt:
		return true, nil
	default:
		return false, []error{&InvalidInstallerManagerError{Value: m}}
	}
}

func (e *InvalidInstallerManagerError) Error() string {
	return fmt.Sprintf("invalid installer manager %q (valid: none, pip, conda, apt)", e.Value)
}

func (e *InvalidInstallerManagerError) Unwrap() error { return ErrInvalidInstallerManager }

func (l LogLevel) String() string { return string(l) }

func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

func (f LogFormat) String() string { return string(f) }

func (f LogFormat) IsValid() (bool, []error) {
	switch f {
	case LogFormatText, LogFormatJSON, LogFormatLogfmt:
		return true, nil
	default:
		return false, []error{&InvalidLogFormatError{Value: f}}
	}
}

func (e *InvalidLogFormatError) Error() string {
	return fmt.Sprintf("invalid log format %q (valid: text, json, logfmt)", e.Value)
}

func (e *InvalidLogFormatError) Unwrap() error { return ErrInvalidLogFormat }

func (e *InvalidSettingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Reason)
}

func (e *InvalidSettingError) Unwrap() error { return ErrInvalidSetting }

// IsValid checks every field, including the constraints the CUE schema
// cannot see because they come from defaults or environment overrides.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	add := func(valid bool, fieldErrs []error) {
		if !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	setting := func(key, reason string) {
		errs = append(errs, &InvalidSettingError{Key: key, Reason: reason})
	}

	add(c.Runtime.IsValid())
	add(c.Installer.Manager.IsValid())
	add(c.Log.Level.IsValid())
	add(c.Log.Format.IsValid())

	if c.MaxParallel < 0 {
		setting("max_parallel", "must not be negative")
	}
	if c.CommandTimeout < 0 {
		setting("command_timeout", "must not be negative")
	}
	if c.Installer.MaxAttempts < 1 {
		setting("installer.max_attempts", "must be at least 1")
	}
	if c.Installer.Backoff < 0 {
		setting("installer.backoff", "must not be negative")
	}
	if c.Container.WorkDir != "" && !path.IsAbs(c.Container.WorkDir) {
		setting("container.workdir", "must be an absolute path")
	}
	for node, image := range c.Container.NodeImages {
		if strings.TrimSpace(image) == "" {
			setting("container.node_images."+node, "image must be non-empty")
		}
	}
	if c.Report.ObjectStore.Endpoint != "" && c.Report.ObjectStore.Bucket == "" {
		setting("report.object_store.bucket", "required when an endpoint is set")
	}

	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Validate returns the first error reported by IsValid.
func (c Config) Validate() error {
	if valid, errs := c.IsValid(); !valid {
		return errs[0]
	}
	return nil
}

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, fe := range e.FieldErrors {
		msgs[i] = fe.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap exposes ErrInvalidConfig and the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
