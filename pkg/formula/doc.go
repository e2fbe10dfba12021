// SPDX-License-Identifier: MPL-2.0

// Package formula defines the tapkit package manifest.
//
// A formula names one third-party tool and says where its source archive
// lives, which SHA-256 digest the archive must have, which files to install
// and how to smoke-test the result. Formulas are written in CUE, TOML or YAML;
// all three are checked against the embedded #Formula schema.
package formula
