// SPDX-License-Identifier: MPL-2.0

// Package checksum computes and verifies SHA-256 digests of downloaded
// archives, and reads digests published in sha256sum format.
package checksum
