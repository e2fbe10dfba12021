// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jadnohra/tapkit/internal/issue"
	"github.com/jadnohra/tapkit/internal/keg"
	"github.com/jadnohra/tapkit/pkg/formula"
)

// newTestCommand creates the `tapkit test` command.
func newTestCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "test NAME|FORMULA",
		Short: "Run a formula's smoke test against the installed executable",
		Long: `Run the smoke test of an installed formula.

NAME uses the formula stored with the newest installed version. A path to a
formula file tests the version that file describes. The test passes when the
command exits with the expected code and its combined output contains the
expected text. A failing test exits with status 2.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.newSession(cmd.Context(), flags)
			if err != nil {
				return app.fail(nil, err)
			}
			f, k, err := s.resolveInstalled(args[0])
			if err != nil {
				return app.fail(s, err)
			}
			res, err := s.runner.Run(cmd.Context(), f, k)
			if err != nil {
				return app.fail(s, err)
			}
			printTestResult(app.stdout, f.Name, res)
			return nil
		},
	}
}

// resolveInstalled finds the formula and keg a command should act on. A path
// selects the keg of the version it describes; a bare name selects the newest
// installed keg and the formula copy stored inside it.
func (s *session) resolveInstalled(ref string) (*formula.Formula, keg.Keg, error) {
	if formula.IsPathRef(ref) {
		f, err := loadFormula(ref)
		if err != nil {
			return nil, keg.Keg{}, err
		}
		version, err := f.ResolveVersion()
		if err != nil {
			return nil, keg.Keg{}, err
		}
		k := s.prefix.Keg(f.Name, version)
		if !k.Exists() {
			return nil, keg.Keg{}, fmt.Errorf("%s %s: %w", f.Name, version, keg.ErrNotInstalled)
		}
		return f, k, nil
	}

	k, err := s.prefix.Installed(ref)
	if err != nil {
		return nil, keg.Keg{}, err
	}
	f, err := formula.Load(k.FormulaPath())
	if err != nil {
		return nil, keg.Keg{}, issue.NewErrorContext().
			WithOperation("load installed formula").
			WithResource(k.FormulaPath()).
			WithSuggestion("Reinstall with 'tapkit install --force'").
			WithIssue(issue.FormulaParseErrorId).
			Wrap(err).
			BuildError()
	}
	return f, k, nil
}
