// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newFetchCommand creates the `tapkit fetch` command.
func newFetchCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch FORMULA",
		Short: "Download and verify a formula's archive without installing it",
		Long: `Download the formula's archive into the cache and verify its sha256.

The checksum and the cached path are printed in sha256sum format. An archive
that fails verification is deleted from the cache.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.newSession(cmd.Context(), flags)
			if err != nil {
				return app.fail(nil, err)
			}
			f, err := loadFormula(args[0])
			if err != nil {
				return app.fail(s, err)
			}
			path, err := s.installer.Fetch(cmd.Context(), f)
			if err != nil {
				return app.fail(s, err)
			}
			fmt.Fprintf(app.stdout, "%s  %s\n", f.SHA256, path)
			return nil
		},
	}
}
