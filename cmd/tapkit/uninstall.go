// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newUninstallCommand creates the `tapkit uninstall` command.
func newUninstallCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall NAME",
		Aliases: []string{"remove", "rm"},
		Short:   "Remove every installed version of a formula",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.newSession(cmd.Context(), flags)
			if err != nil {
				return app.fail(nil, err)
			}
			removed, err := s.installer.Uninstall(cmd.Context(), args[0])
			if err != nil {
				return app.fail(s, err)
			}
			for _, k := range removed {
				fmt.Fprintf(app.stdout, "%s uninstalled %s %s\n", SuccessStyle.Render("✓"),
					TitleStyle.Render(k.Name+" "+k.Version), SubtitleStyle.Render(k.Path))
			}
			return nil
		},
	}
}
