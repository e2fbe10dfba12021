// SPDX-License-Identifier: MPL-2.0

package formula

import (
	"strings"
)

// knownLicenses is the subset of the SPDX license list that shows up in
// command-line tool formulas.
var knownLicenses = map[string]bool{
	"0BSD": true, "AGPL-3.0-only": true, "AGPL-3.0-or-later": true,
	"Apache-2.0": true, "Artistic-2.0": true, "BSD-2-Clause": true,
	"BSD-3-Clause": true, "BSL-1.0": true, "CC0-1.0": true,
	"EPL-2.0": true, "GPL-2.0-only": true, "GPL-2.0-or-later": true,
	"GPL-3.0-only": true, "GPL-3.0-or-later": true, "ISC": true,
	"LGPL-2.1-only": true, "LGPL-2.1-or-later": true, "LGPL-3.0-only": true,
	"LGPL-3.0-or-later": true, "MIT": true, "MIT-0": true, "MPL-2.0": true,
	"Unlicense": true, "WTFPL": true, "Zlib": true,
}

// LicenseIDs splits an SPDX expression such as "MIT OR Apache-2.0" into its
// identifiers. Parentheses and WITH exceptions are dropped.
func LicenseIDs(expr string) []string {
	replacer := strings.NewReplacer("(", " ", ")", " ")
	fields := strings.Fields(replacer.Replace(expr))

	var ids []string
	skipNext := false
	for _, field := range fields {
		if skipNext {
			skipNext = false
			continue
		}
		switch strings.ToUpper(field) {
		case "AND", "OR":
			continue
		case "WITH":
			skipNext = true
			continue
		}
		ids = append(ids, field)
	}
	return ids
}

// IsKnownLicense reports whether id is in the built-in SPDX subset.
func IsKnownLicense(id string) bool {
	return knownLicenses[strings.TrimSuffix(id, "+")]
}
