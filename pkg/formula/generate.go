// SPDX-License-Identifier: MPL-2.0

package formula

import (
	"fmt"
	"strings"
)

// GenerateCUE renders f as a CUE formula file. Optional blocks are omitted
// when empty, so Parse(GenerateCUE(f)) yields an equivalent formula.
func GenerateCUE(f *Formula) string {
	var sb strings.Builder

	sb.WriteString("// Formula for " + f.Name + ", installed with tapkit.\n\n")

	fmt.Fprintf(&sb, "name:     %q\n", f.Name)
	fmt.Fprintf(&sb, "desc:     %q\n", f.Desc)
	fmt.Fprintf(&sb, "homepage: %q\n", f.Homepage)
	fmt.Fprintf(&sb, "url:      %q\n", f.URL)
	fmt.Fprintf(&sb, "sha256:   %q\n", f.SHA256)
	fmt.Fprintf(&sb, "license:  %q\n", f.License)
	if f.Version != "" {
		fmt.Fprintf(&sb, "version:  %q\n", f.Version)
	}

	if f.Install != nil && len(f.Install.Bin) > 0 {
		sb.WriteString("\ninstall: bin: [")
		for i, bin := range f.Install.Bin {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%q", bin)
		}
		sb.WriteString("]\n")
	}

	if f.Test != nil {
		sb.WriteString("\ntest: {\n")
		fmt.Fprintf(&sb, "\tcommand: %q\n", f.Test.Command)
		if f.Test.Match != "" {
			fmt.Fprintf(&sb, "\tmatch:   %q\n", f.Test.Match)
		}
		if f.Test.ExitCode != 0 {
			fmt.Fprintf(&sb, "\texit_code: %d\n", f.Test.ExitCode)
		}
		if f.Test.TTY {
			sb.WriteString("\ttty: true\n")
		}
		sb.WriteString("}\n")
	}

	return sb.String()
}
