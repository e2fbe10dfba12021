// SPDX-License-Identifier: MPL-2.0

// Package keg manages the on-disk install layout.
//
// Every installed version lives in its own keg, <prefix>/Cellar/<name>/<version>,
// with its executables under bin/. Installing a formula links those
// executables into <prefix>/bin, which is the directory users put on PATH.
// Each keg carries an INSTALL_RECEIPT.json describing how it was installed.
package keg
