// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jadnohra/tapkit/internal/keg"
	"github.com/jadnohra/tapkit/pkg/formula"
)

// newInfoCommand creates the `tapkit info` command.
func newInfoCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "info NAME|FORMULA",
		Short: "Describe a formula and its installed versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.newSession(cmd.Context(), flags)
			if err != nil {
				return app.fail(nil, err)
			}

			f, err := loadFormula(args[0])
			if err != nil && !formula.IsPathRef(args[0]) {
				// Fall back to the copy stored with an installed keg.
				var instErr error
				if f, _, instErr = s.resolveInstalled(args[0]); instErr == nil {
					err = nil
				}
			}
			if err != nil {
				return app.fail(s, err)
			}

			kegs, err := s.prefix.Kegs(f.Name)
			if err != nil {
				return app.fail(s, err)
			}

			rendered, err := renderMarkdown(infoMarkdown(f, kegs), s.style)
			if err != nil {
				return app.fail(s, fmt.Errorf("rendering info: %w", err))
			}
			fmt.Fprint(app.stdout, rendered)
			return nil
		},
	}
}

// infoMarkdown describes f and its installed kegs as markdown.
func infoMarkdown(f *formula.Formula, kegs []keg.Keg) string {
	var sb strings.Builder

	version, err := f.ResolveVersion()
	if err != nil {
		version = "unknown version"
	}
	fmt.Fprintf(&sb, "# %s %s\n\n%s\n\n", f.Name, version, f.Desc)

	sb.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Homepage | %s |\n", f.Homepage)
	fmt.Fprintf(&sb, "| License | %s |\n", f.License)
	fmt.Fprintf(&sb, "| Source | %s |\n", f.URL)
	fmt.Fprintf(&sb, "| SHA-256 | `%s` |\n", f.SHA256)
	fmt.Fprintf(&sb, "| Installs | `%s` |\n", strings.Join(f.Bins(), "`, `"))

	test := f.SmokeTest()
	fmt.Fprintf(&sb, "\n## Test\n\n~~~sh\n%s\n~~~\n\nPasses when the exit code is %d", test.Command, test.ExitCode)
	if test.Match != "" {
		fmt.Fprintf(&sb, " and the output contains `%s`", test.Match)
	}
	sb.WriteString(".\n")

	sb.WriteString("\n## Installed\n\n")
	if len(kegs) == 0 {
		sb.WriteString("Not installed.\n")
		return sb.String()
	}
	for _, k := range kegs {
		fmt.Fprintf(&sb, "- %s `%s`", k.Version, k.Path)
		if receipt, err := k.Receipt(); err == nil {
			fmt.Fprintf(&sb, " (installed %s)", receipt.InstalledAt.Format("2006-01-02"))
		} else {
			sb.WriteString(" (no receipt)")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
