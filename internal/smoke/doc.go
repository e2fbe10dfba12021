// SPDX-License-Identifier: MPL-2.0

// Package smoke runs a formula's smoke test against an installed keg.
//
// A smoke test is a shell snippet plus an expected exit code and an expected
// output substring. Snippets run in an embedded POSIX shell interpreter, so
// the host needs no /bin/sh; tests that need a terminal run under a
// pseudo-terminal instead. Tests are never retried.
package smoke
