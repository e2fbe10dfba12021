// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jadnohra/tapkit/internal/config"
)

// newConfigCommand creates the `tapkit config` command tree.
// Subcommands that read configuration use the App's ConfigProvider.
func newConfigCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage tapkit configuration",
		Long: `Manage tapkit configuration.

Configuration is stored in:
  - Linux: ~/.config/tapkit/config.cue
  - macOS: ~/Library/Application Support/tapkit/config.cue
  - Windows: %APPDATA%\tapkit\config.cue

Every key can be overridden with a TAPKIT_* environment variable, for example
TAPKIT_LOG_LEVEL=debug or TAPKIT_HTTP_TIMEOUT=30m.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app, flags)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, created, err := config.CreateDefaultConfig("")
			if err != nil {
				return app.fail(nil, err)
			}
			if !created {
				fmt.Fprintf(app.stdout, "%s %s\n", WarningStyle.Render("Configuration already exists:"), path)
				return nil
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("Created"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.configPath != "" {
				fmt.Fprintln(app.stdout, flags.configPath)
				return nil
			}
			path, err := config.ConfigPath()
			if err != nil {
				return app.fail(nil, err)
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: flags.configPath, Environ: app.environ})
			if err != nil {
				return app.fail(nil, withConfigIssue(err))
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App, flags *rootFlagValues) error {
	cfg, source, err := app.Config.LoadWithSource(ctx, config.LoadOptions{ConfigFilePath: flags.configPath, Environ: app.environ})
	if err != nil {
		return app.fail(nil, withConfigIssue(err))
	}

	prefix := flags.prefix
	if prefix == "" {
		if prefix, err = cfg.ResolvedPrefix(); err != nil {
			return app.fail(nil, err)
		}
	}

	w := app.stdout
	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if source == "" {
		source = SubtitleStyle.Render("(using defaults)")
	}
	printSetting(w, "Config file", source)
	fmt.Fprintln(w)

	printSetting(w, "prefix", SuccessStyle.Render(prefix))
	printSetting(w, "cache_dir", SuccessStyle.Render(orDefault(cfg.CacheDir)))
	printSetting(w, "log_level", SuccessStyle.Render(cfg.LogLevel.String()))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", CmdStyle.Render("http"))
	fmt.Fprintf(w, "  timeout: %s\n", SuccessStyle.Render(cfg.HTTP.Timeout.String()))
	fmt.Fprintf(w, "  user_agent: %s\n", SuccessStyle.Render(orDefault(cfg.HTTP.UserAgent)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", CmdStyle.Render("smoke"))
	fmt.Fprintf(w, "  timeout: %s\n", SuccessStyle.Render(cfg.Smoke.Timeout.String()))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", CmdStyle.Render("ui"))
	fmt.Fprintf(w, "  color_scheme: %s\n", SuccessStyle.Render(cfg.UI.ColorScheme.String()))
	fmt.Fprintf(w, "  verbose: %s\n", SuccessStyle.Render(fmt.Sprintf("%v", cfg.UI.Verbose)))
	fmt.Fprintf(w, "  progress: %s\n", SuccessStyle.Render(fmt.Sprintf("%v", cfg.UI.Progress)))

	return nil
}

func printSetting(w io.Writer, key, value string) {
	fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render(key), value)
}

func orDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}
