// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for tapkit.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/jadnohra/tapkit/internal/issue"
	"github.com/jadnohra/tapkit/pkg/types"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "tapkit",
		Short: "Install single-binary tools from declarative formulas",
		Long: TitleStyle.Render("tapkit") + SubtitleStyle.Render(" - install single-binary tools from declarative formulas") + `

A formula names a release archive and its sha256. tapkit downloads the
archive, refuses it if the checksum does not match, copies the executable
into <prefix>/bin and runs the formula's smoke test.

` + SubtitleStyle.Render("Examples:") + `
  tapkit create https://github.com/jadnohra/safe-squash/archive/refs/tags/v1.0.0.tar.gz -o Formula/safe-squash.cue
  tapkit install Formula/safe-squash.cue --test
  tapkit test safe-squash
  tapkit audit --strict Formula/safe-squash.cue`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/tapkit/config.cue)")
	rootCmd.PersistentFlags().StringVar(&flags.prefix, "prefix", "", "install prefix (default from config, then $XDG_DATA_HOME/tapkit)")

	rootCmd.AddCommand(
		newInstallCommand(app, flags),
		newUninstallCommand(app, flags),
		newTestCommand(app, flags),
		newFetchCommand(app, flags),
		newAuditCommand(app, flags),
		newInfoCommand(app, flags),
		newListCommand(app, flags),
		newCreateCommand(app, flags),
		newConfigCommand(app, flags),
	)

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the classified exit code.
// This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})

	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(errorHandler),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(int(types.ExitUserError))
	}
}

// errorHandler leaves ExitErrors alone, since App.fail already printed them,
// and defers everything else (usage errors, unknown flags) to fang.
func errorHandler(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
