// SPDX-License-Identifier: MPL-2.0

// Package fetch downloads formula archives into a local cache.
//
// Downloads are streamed into a temporary file next to the cache entry and
// renamed into place once complete, so an interrupted transfer never leaves a
// truncated archive behind. Auth tokens are only sent to GitHub hosts.
package fetch
