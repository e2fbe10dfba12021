// SPDX-License-Identifier: MPL-2.0

// Package archive unpacks formula source archives.
//
// The format is sniffed from the file's magic bytes rather than trusted from
// the URL, and every entry is checked so that nothing is written outside the
// destination directory.
package archive
