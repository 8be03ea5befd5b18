// SPDX-License-Identifier: MPL-2.0

// Package config loads the buildmatrix runtime configuration with Viper,
// using CUE as the file format.
//
// The file is looked up at ~/.config/buildmatrix/config.cue (XDG on Linux,
// ~/Library/Application Support/buildmatrix/config.cue on macOS,
// %APPDATA%\buildmatrix\config.cue on Windows), then ./config.cue. An
// explicit path given with --config replaces the lookup. The file is
// validated against the embedded config_schema.cue before it is merged over
// the defaults, and every key can be overridden from the environment with a
// BUILDMATRIX_ prefix (BUILDMATRIX_INSTALLER_MANAGER=pip).
package config
