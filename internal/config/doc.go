// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/tapkit/config.cue (or the XDG equivalent on Linux,
// ~/Library/Application Support/tapkit/config.cue on macOS, %APPDATA%\tapkit\config.cue
// on Windows). Every key can be overridden from the environment with a TAPKIT_ prefix,
// dots replaced by underscores (TAPKIT_HTTP_TIMEOUT=2m).
//
// Files are validated against the embedded CUE schema (config_schema.cue) before they
// are merged over the defaults.
package config
