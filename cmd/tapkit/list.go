// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"

	"github.com/jadnohra/tapkit/internal/keg"
)

// newListCommand creates the `tapkit list` command.
func newListCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var paths bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed formulas",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.newSession(cmd.Context(), flags)
			if err != nil {
				return app.fail(nil, err)
			}
			kegs, err := s.prefix.List()
			if err != nil {
				return app.fail(s, err)
			}

			if paths {
				for _, k := range kegs {
					fmt.Fprintln(app.stdout, k.Path)
				}
				return nil
			}
			for _, line := range listLines(kegs) {
				fmt.Fprintln(app.stdout, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&paths, "paths", false, "print keg paths instead of names")

	return cmd
}

// listLines renders one "name version..." line per formula, names sorted,
// versions in the oldest-first order Prefix.List returns them.
func listLines(kegs []keg.Keg) []string {
	byName := make(map[string][]string)
	for _, k := range kegs {
		byName[k.Name] = append(byName[k.Name], k.Version)
	}

	lines := make([]string, 0, len(byName))
	for _, name := range slices.Sorted(maps.Keys(byName)) {
		lines = append(lines, TitleStyle.Render(name)+" "+strings.Join(byName[name], " "))
	}
	return lines
}
