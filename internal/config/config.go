// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/invowk/buildmatrix/internal/issue"
	"github.com/invowk/buildmatrix/pkg/cueutil"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
	"golang.org/x/exp/maps"
)

const (
	// AppName is the application name.
	AppName = "buildmatrix"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "BUILDMATRIX"
)

//go:embed config_schema.cue
var configSchema string

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Runtime:        RuntimeVirtual,
		MaxParallel:    0,
		CommandTimeout: 30 * time.Minute,
		InheritEnv:     []string{"PATH", "HOME", "LANG"},
		Container: ContainerConfig{
			NodeImages: map[string]string{},
			WorkDir:    "/workspace",
		},
		Installer: InstallerConfig{
			Manager:     ManagerNone,
			MaxAttempts: 3,
			Backoff:     2 * time.Second,
		},
		Checkout: CheckoutConfig{
			SkipMarkers: []string{"[skip ci]", "[ci skip]"},
		},
		Report: ReportConfig{
			Terminal: true,
			ObjectStore: ObjectStoreConfig{
				UseSSL: true,
			},
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
	}
}

// ConfigDir returns the buildmatrix configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// newViper returns a Viper instance carrying every default and the
// environment binding. Every key needs a default, otherwise AutomaticEnv
// cannot see it during Unmarshal.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("runtime", string(defaults.Runtime))
	v.SetDefault("max_parallel", defaults.MaxParallel)
	v.SetDefault("workspace_root", defaults.WorkspaceRoot)
	v.SetDefault("command_timeout", defaults.CommandTimeout)
	v.SetDefault("inherit_env", defaults.InheritEnv)
	v.SetDefault("native.shell", defaults.Native.Shell)
	v.SetDefault("container.node_images", defaults.Container.NodeImages)
	v.SetDefault("container.workdir", defaults.Container.WorkDir)
	v.SetDefault("installer.manager", string(defaults.Installer.Manager))
	v.SetDefault("installer.max_attempts", defaults.Installer.MaxAttempts)
	v.SetDefault("installer.backoff", defaults.Installer.Backoff)
	v.SetDefault("checkout.repository", defaults.Checkout.Repository)
	v.SetDefault("checkout.ref", defaults.Checkout.Ref)
	v.SetDefault("checkout.cache_dir", defaults.Checkout.CacheDir)
	v.SetDefault("checkout.skip_markers", defaults.Checkout.SkipMarkers)
	v.SetDefault("report.dir", defaults.Report.Dir)
	v.SetDefault("report.terminal", defaults.Report.Terminal)
	v.SetDefault("report.object_store.endpoint", defaults.Report.ObjectStore.Endpoint)
	v.SetDefault("report.object_store.bucket", defaults.Report.ObjectStore.Bucket)
	v.SetDefault("report.object_store.prefix", defaults.Report.ObjectStore.Prefix)
	v.SetDefault("report.object_store.access_key", defaults.Report.ObjectStore.AccessKey)
	v.SetDefault("report.object_store.secret_key", defaults.Report.ObjectStore.SecretKey)
	v.SetDefault("report.object_store.use_ssl", defaults.Report.ObjectStore.UseSSL)
	v.SetDefault("log.level", string(defaults.Log.Level))
	v.SetDefault("log.format", string(defaults.Log.Format))
	return v
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()

	resolvedPath, err := resolveConfigPath(opts)
	if err != nil {
		return nil, err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'buildmatrix config show' to see the effective configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Source = resolvedPath
	cfg.Container.NodeImages = lowerKeys(cfg.Container.NodeImages)

	if err := cfg.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check environment overrides with the " + EnvPrefix + "_ prefix").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}

	return &cfg, nil
}

// resolveConfigPath returns the file to load, or "" when none exists and
// defaults apply. An explicit ConfigFilePath that does not exist is an error.
func resolveConfigPath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		cfgDir = dir
	}

	name := ConfigFileName + "." + ConfigFileExt
	if p := filepath.Join(cfgDir, name); fileExists(p) {
		return p, nil
	}
	if fileExists(name) {
		return name, nil
	}
	return "", nil
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// Note: This uses manual CUE parsing instead of cueutil.ParseAndDecode because
// the config decodes to map[string]any for Viper, and every field is optional
// so validation runs with Concrete(false).
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	// Merge into Viper (preserves defaults, allows env overrides)
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// lowerKeys normalizes node image keys. Viper already lowercases keys read
// from files, but values set programmatically keep their case.
func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, val := range m {
		out[strings.ToLower(k)] = val
	}
	return out
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// GenerateCUE renders cfg as a CUE document accepted by the #Config schema.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// buildmatrix configuration\n")
	if cfg.Source != "" {
		fmt.Fprintf(&sb, "// loaded from %s\n", cfg.Source)
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "runtime: %q\n", cfg.Runtime)
	fmt.Fprintf(&sb, "max_parallel: %d\n", cfg.MaxParallel)
	if cfg.WorkspaceRoot != "" {
		fmt.Fprintf(&sb, "workspace_root: %q\n", cfg.WorkspaceRoot)
	}
	fmt.Fprintf(&sb, "command_timeout: %q\n", cfg.CommandTimeout.String())
	writeList(&sb, "", "inherit_env", cfg.InheritEnv)

	if cfg.Native.Shell != "" {
		sb.WriteString("\nnative: {\n")
		fmt.Fprintf(&sb, "\tshell: %q\n", cfg.Native.Shell)
		sb.WriteString("}\n")
	}

	sb.WriteString("\ncontainer: {\n")
	if len(cfg.Container.NodeImages) > 0 {
		sb.WriteString("\tnode_images: {\n")
		for _, node := range slices.Sorted(maps.Keys(cfg.Container.NodeImages)) {
			fmt.Fprintf(&sb, "\t\t%q: %q\n", node, cfg.Container.NodeImages[node])
		}
		sb.WriteString("\t}\n")
	}
	if cfg.Container.WorkDir != "" {
		fmt.Fprintf(&sb, "\tworkdir: %q\n", cfg.Container.WorkDir)
	}
	sb.WriteString("}\n")

	sb.WriteString("\ninstaller: {\n")
	fmt.Fprintf(&sb, "\tmanager: %q\n", cfg.Installer.Manager)
	fmt.Fprintf(&sb, "\tmax_attempts: %d\n", cfg.Installer.MaxAttempts)
	fmt.Fprintf(&sb, "\tbackoff: %q\n", cfg.Installer.Backoff.String())
	sb.WriteString("}\n")

	sb.WriteString("\ncheckout: {\n")
	if cfg.Checkout.Repository != "" {
		fmt.Fprintf(&sb, "\trepository: %q\n", cfg.Checkout.Repository)
	}
	if cfg.Checkout.Ref != "" {
		fmt.Fprintf(&sb, "\tref: %q\n", cfg.Checkout.Ref)
	}
	if cfg.Checkout.CacheDir != "" {
		fmt.Fprintf(&sb, "\tcache_dir: %q\n", cfg.Checkout.CacheDir)
	}
	writeList(&sb, "\t", "skip_markers", cfg.Checkout.SkipMarkers)
	sb.WriteString("}\n")

	sb.WriteString("\nreport: {\n")
	if cfg.Report.Dir != "" {
		fmt.Fprintf(&sb, "\tdir: %q\n", cfg.Report.Dir)
	}
	fmt.Fprintf(&sb, "\tterminal: %v\n", cfg.Report.Terminal)
	if store := cfg.Report.ObjectStore; store.Endpoint != "" {
		sb.WriteString("\tobject_store: {\n")
		fmt.Fprintf(&sb, "\t\tendpoint: %q\n", store.Endpoint)
		fmt.Fprintf(&sb, "\t\tbucket: %q\n", store.Bucket)
		if store.Prefix != "" {
			fmt.Fprintf(&sb, "\t\tprefix: %q\n", store.Prefix)
		}
		// Credentials are never echoed back.
		fmt.Fprintf(&sb, "\t\tuse_ssl: %v\n", store.UseSSL)
		sb.WriteString("\t}\n")
	}
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	fmt.Fprintf(&sb, "\tformat: %q\n", cfg.Log.Format)
	sb.WriteString("}\n")

	return sb.String()
}

func writeList(sb *strings.Builder, indent, key string, values []string) {
	if len(values) == 0 {
		return
	}
	quoted := make([]string, len(values))
	for i, val := range values {
		quoted[i] = fmt.Sprintf("%q", val)
	}
	fmt.Fprintf(sb, "%s%s: [%s]\n", indent, key, strings.Join(quoted, ", "))
}
