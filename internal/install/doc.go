// SPDX-License-Identifier: MPL-2.0

// Package install implements formula installation and removal.
//
// An install downloads the formula's archive, verifies its SHA-256 against
// the formula, unpacks it into a staging directory inside the Cellar, copies
// the listed executables into the staging bin/ directory, and only then
// renames the staging directory into place and links it into <prefix>/bin.
// A checksum mismatch therefore aborts before anything is written under the
// prefix, and an interrupted install never leaves a half-populated keg.
package install
