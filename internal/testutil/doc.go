// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by tapkit's tests: in-memory
// release archives (ToolArchive, TarGzBytes, ZipBytes), a fake command-line
// tool script, environment and directory helpers that fail the test on error,
// and the semaphore that bounds concurrent container tests.
package testutil
