// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities: GOOS name
// constants and the Windows reserved file names that formula and executable
// names must avoid.
package platform
