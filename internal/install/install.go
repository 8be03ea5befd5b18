// SPDX-License-Identifier: MPL-2.0

package install

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/invowk/buildmatrix/internal/config"
	"github.com/invowk/buildmatrix/internal/runtime"
	"github.com/invowk/buildmatrix/pkg/types"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/syntax"
)

var (
	// ErrInstall is the sentinel error wrapped by InstallError.
	ErrInstall = errors.New("package installation failed")
	// ErrNoManager is returned by Nop when packages were requested but no
	// package manager is configured.
	ErrNoManager = errors.New("no package manager configured")
)

type (
	// Installer installs packages into an execution context.
	Installer interface {
		Install(ctx context.Context, channels, packages []string, ec *runtime.ExecutionContext) error
	}

	// InstallError describes a failed installation. Err holds the underlying
	// cause when the command could not run to completion.
	//
	//nolint:revive // InstallError is clearer than Error at call sites
	InstallError struct {
		Manager  config.InstallerManager
		Packages []string
		ExitCode types.ExitCode
		Output   string
		Err      error
	}

	// CommandInstaller runs the package manager through a runtime.Runner
	// inside the execution context.
	CommandInstaller struct {
		Manager config.InstallerManager
		Runner  runtime.Runner
		// MaxAttempts bounds the number of tries; values below 1 mean one try.
		MaxAttempts int
		// Backoff is the delay before the second try; it doubles after that.
		Backoff time.Duration
	}

	// Nop installs nothing. It is used when installer.manager is none.
	Nop struct{}
)

func (e *InstallError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s install of %d package(s) failed", e.Manager, len(e.Packages))
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " with exit code %d", e.ExitCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes ErrInstall and the underlying cause.
func (e *InstallError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInstall}
	}
	return []error{ErrInstall, e.Err}
}

// New returns the installer for cfg, running commands with runner.
func New(cfg config.InstallerConfig, runner runtime.Runner) Installer {
	if cfg.Manager == config.ManagerNone || cfg.Manager == "" {
		return Nop{}
	}
	return &CommandInstaller{
		Manager:     cfg.Manager,
		Runner:      runner,
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     cfg.Backoff,
	}
}

// Install reports ErrNoManager for a non-empty package list and does
// nothing otherwise.
func (Nop) Install(_ context.Context, _, packages []string, _ *runtime.ExecutionContext) error {
	if len(packages) > 0 {
		return ErrNoManager
	}
	return nil
}

// Install renders the manager command and runs it in ec. An empty package
// list is a no-op. Exit status 127 (manager missing) is not retried.
func (i *CommandInstaller) Install(ctx context.Context, channels, packages []string, ec *runtime.ExecutionContext) error {
	if len(packages) == 0 || i.Manager == config.ManagerNone {
		return nil
	}
	command, err := Command(i.Manager, channels, packages)
	if err != nil {
		return &InstallError{Manager: i.Manager, Packages: packages, Err: err}
	}

	logger := log.FromContext(ctx).With("manager", i.Manager)
	logger.Debug("installing packages", "packages", len(packages), "command", command)

	return RetryWithBackoff(ctx, i.MaxAttempts, i.Backoff, func(attempt int) (bool, error) {
		res := i.Runner.Exec(ctx, ec, command)
		if res.Success() {
			return false, nil
		}
		installErr := &InstallError{
			Manager:  i.Manager,
			Packages: packages,
			ExitCode: res.ExitCode,
			Output:   strings.TrimSpace(res.Output + "\n" + res.ErrOutput),
			Err:      res.Error,
		}
		retry := ctx.Err() == nil && res.ExitCode.IsRetryable()
		if retry {
			logger.Warn("install attempt failed", "attempt", attempt+1, "exit_code", res.ExitCode)
		}
		return retry, installErr
	})
}

// Command renders the install command for manager. Channels are passed in
// priority order: the first is the primary index or channel. apt ignores
// channels.
func Command(manager config.InstallerManager, channels, packages []string) (string, error) {
	var args []string
	switch manager {
	case config.ManagerPip:
		args = []string{"pip", "install"}
		for i, ch := range channels {
			if i == 0 {
				args = append(args, "--index-url", ch)
			} else {
				args = append(args, "--extra-index-url", ch)
			}
		}
	case config.ManagerConda:
		args = []string{"conda", "install", "-y"}
		if len(channels) > 0 {
			args = append(args, "--override-channels")
		}
		for _, ch := range channels {
			args = append(args, "-c", ch)
		}
	case config.ManagerApt:
		args = []string{"apt-get", "install", "-y"}
	default:
		_, errs := manager.IsValid()
		if len(errs) == 0 {
			return "", fmt.Errorf("manager %q does not install packages", manager)
		}
		return "", errs[0]
	}
	args = append(args, packages...)

	quoted := make([]string, len(args))
	for i, arg := range args {
		q, err := syntax.Quote(arg, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("cannot quote %q: %w", arg, err)
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " "), nil
}
