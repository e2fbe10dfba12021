// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jadnohra/tapkit/internal/license"
	"github.com/jadnohra/tapkit/pkg/formula"
)

// newAuditCommand creates the `tapkit audit` command.
func newAuditCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "audit FORMULA",
		Short: "Check a formula for style and correctness problems",
		Long: `Check a formula against the formula style rules.

Errors make the formula uninstallable and exit with status 1; warnings are
reported only. With --strict the archive is downloaded and unpacked, the
declared license is compared with the license files it contains, and every
install.bin entry must exist in it.`,
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

			opts := formula.AuditOptions{Strict: strict}
			var extra []formula.Problem
			if strict {
				if extra, err = s.inspectArchive(cmd.Context(), f, &opts); err != nil {
					return app.fail(s, err)
				}
			}

			problems := append(formula.Audit(f, opts), extra...)
			printProblems(app.stdout, f, problems)
			if formula.HasErrors(problems) {
				return app.fail(s, fmt.Errorf("%s: audit found errors: %w", f.Name, formula.ErrInvalidFormula))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "download the archive and check its contents")

	return cmd
}

// inspectArchive unpacks the archive, records the licenses it declares in
// opts, and reports install.bin entries missing from it. Formulas that cannot
// be fetched yet (placeholder checksum) are left to the static checks.
func (s *session) inspectArchive(ctx context.Context, f *formula.Formula, opts *formula.AuditOptions) ([]formula.Problem, error) {
	if err := f.Validate(); err != nil {
		slog.Debug("skipping archive checks", "formula", f.Name, "reason", err)
		return nil, nil
	}

	root, cleanup, err := s.installer.Unpack(ctx, f)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	findings, err := license.Detect(root)
	if err != nil {
		return nil, err
	}
	opts.DetectedLicenses = license.IDs(findings)
	for _, finding := range findings {
		slog.Debug("license file", "path", finding.Path, "ids", finding.IDs, "coverage", finding.Coverage)
	}

	var problems []formula.Problem
	for i, bin := range f.Bins() {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(bin)))
		if err != nil || info.IsDir() {
			problems = append(problems, formula.Problem{
				Severity: formula.SeverityError,
				Field:    fmt.Sprintf("install.bin[%d]", i),
				Message:  fmt.Sprintf("%q is not a file in the archive", bin),
			})
		}
	}
	return problems, nil
}

func printProblems(w io.Writer, f *formula.Formula, problems []formula.Problem) {
	if len(problems) == 0 {
		fmt.Fprintf(w, "%s %s: no problems found\n", SuccessStyle.Render("✓"), TitleStyle.Render(f.Name))
		return
	}

	errorCount := 0
	for _, p := range problems {
		label := WarningStyle.Render(p.Severity.String())
		if p.Severity == formula.SeverityError {
			label = ErrorStyle.Render(p.Severity.String())
			errorCount++
		}
		fmt.Fprintf(w, "%-7s %s: %s\n", label, CmdStyle.Render(p.Field), p.Message)
	}
	fmt.Fprintf(w, "\n%s: %d problems (%d errors, %d warnings)\n",
		TitleStyle.Render(f.Name), len(problems), errorCount, len(problems)-errorCount)
}
