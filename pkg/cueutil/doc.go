// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides the CUE parsing helpers shared by the formula and
// config loaders.
//
// Both loaders follow the same flow:
//
//  1. Compile the embedded schema
//  2. Compile (or encode) the user data and unify it with the schema
//  3. Validate and decode to a Go struct
//
// # Usage
//
//	//go:embed formula_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.ParseAndDecode[Formula](
//	    schemaBytes,
//	    userFileBytes,
//	    "#Formula",
//	    cueutil.WithFilename("safe-squash.cue"),
//	)
//	if err != nil {
//	    return nil, err  // Error includes the CUE path of the bad field
//	}
//	return result.Value, nil
//
// Manifests written in TOML or YAML are decoded to a generic map first and then
// handed to EncodeAndDecode, so every format is checked by the same schema.
package cueutil
