// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride replaces ConfigDir's platform lookup when non-empty.
// os.UserHomeDir ignores HOME on some platforms, so tests pin the directory
// here instead.
var configDirOverride string

// Reset clears the directory override.
func Reset() {
	configDirOverride = ""
}

// SetConfigDirOverride makes ConfigDir, ConfigPath and CreateDefaultConfig
// use dir. Tests call Reset in cleanup.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}
