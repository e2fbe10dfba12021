// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jadnohra/tapkit/internal/install"
	"github.com/jadnohra/tapkit/internal/smoke"
)

// newInstallCommand creates the `tapkit install` command.
func newInstallCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var force, runTest bool

	cmd := &cobra.Command{
		Use:   "install FORMULA",
		Short: "Download, verify and install a formula",
		Long: `Download the formula's archive, verify its sha256 and install its
executables into <prefix>/bin.

FORMULA is a path to a .cue, .toml or .yaml file, or a bare name looked up
in ./Formula. A checksum mismatch aborts before anything is written under the
prefix. Installing the same version twice leaves the existing keg in place.`,
		Example: `  tapkit install Formula/safe-squash.cue
  tapkit install safe-squash --test
  tapkit install --prefix /opt/tools safe-squash`,
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

			res, err := s.installer.Install(cmd.Context(), f, install.Options{Force: force})
			if err != nil {
				return app.fail(s, err)
			}
			printInstallResult(app.stdout, res)

			if runTest {
				tres, err := s.runner.Run(cmd.Context(), f, res.Keg)
				if err != nil {
					return app.fail(s, err)
				}
				printTestResult(app.stdout, f.Name, tres)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "reinstall even when the same version is installed")
	cmd.Flags().BoolVar(&runTest, "test", false, "run the formula's smoke test after installing")

	return cmd
}

func printInstallResult(w io.Writer, res *install.Result) {
	label := TitleStyle.Render(res.Keg.Name + " " + res.Keg.Version)
	if res.AlreadyInstalled {
		fmt.Fprintf(w, "%s %s is already installed\n", SuccessStyle.Render("✓"), label)
	} else {
		fmt.Fprintf(w, "%s installed %s %s\n", SuccessStyle.Render("✓"), label, SubtitleStyle.Render(res.Keg.Path))
	}
	for _, link := range res.Links {
		fmt.Fprintf(w, "  %s %s\n", CmdStyle.Render(filepath.Base(link)), SubtitleStyle.Render(link))
	}
}

func printTestResult(w io.Writer, name string, res *smoke.Result) {
	fmt.Fprintf(w, "%s %s test passed %s\n", SuccessStyle.Render("✓"), TitleStyle.Render(name),
		SubtitleStyle.Render(fmt.Sprintf("(%s)", res.Duration.Round(time.Millisecond))))
}
