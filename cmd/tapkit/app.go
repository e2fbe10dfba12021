// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jadnohra/tapkit/internal/config"
	"github.com/jadnohra/tapkit/internal/fetch"
	"github.com/jadnohra/tapkit/internal/install"
	"github.com/jadnohra/tapkit/internal/issue"
	"github.com/jadnohra/tapkit/internal/keg"
	"github.com/jadnohra/tapkit/internal/logging"
	"github.com/jadnohra/tapkit/internal/smoke"
	"github.com/jadnohra/tapkit/pkg/formula"
)

// formulaDirs are searched, relative to the working directory, when a
// command is given a bare formula name.
var formulaDirs = []string{"Formula", "."}

type (
	// App wires CLI services and shared dependencies. It is the composition root
	// for the CLI layer; every Cobra handler receives an App reference.
	App struct {
		Config     ConfigProvider
		HTTPClient *http.Client
		environ    []string
		stdout     io.Writer
		stderr     io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		// HTTPClient replaces the download client; its Timeout is left as is.
		HTTPClient *http.Client
		// Environ replaces os.Environ for TAPKIT_* and GITHUB_TOKEN lookups.
		Environ []string
		Stdout  io.Writer
		Stderr  io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
		LoadWithSource(ctx context.Context, opts config.LoadOptions) (*config.Config, string, error)
	}

	// rootFlagValues holds the persistent flags shared by every command.
	rootFlagValues struct {
		verbose    bool
		configPath string
		prefix     string
	}

	// session is the per-invocation view of the configuration: the resolved
	// prefix plus the services built from it.
	session struct {
		cfg       *config.Config
		verbose   bool
		prefix    keg.Prefix
		fetcher   *fetch.Client
		installer *install.Installer
		runner    *smoke.Runner
		style     string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}

	return &App{
		Config:     deps.Config,
		HTTPClient: deps.HTTPClient,
		environ:    deps.Environ,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
	}
}

// getenv reads from the injected environment when one was supplied.
func (a *App) getenv(key string) string {
	if a.environ == nil {
		return os.Getenv(key)
	}
	for _, kv := range a.environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v
		}
	}
	return ""
}

// newSession loads configuration, installs the logger and builds the
// download, install and smoke test services.
func (a *App) newSession(ctx context.Context, flags *rootFlagValues) (*session, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath, Environ: a.environ})
	if err != nil {
		return nil, withConfigIssue(err)
	}

	verbose := flags.verbose || cfg.UI.Verbose
	logging.Install(a.stderr, logging.Options{Level: string(cfg.LogLevel), Verbose: verbose})

	prefix := flags.prefix
	if prefix == "" {
		if prefix, err = cfg.ResolvedPrefix(); err != nil {
			return nil, err
		}
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = install.DefaultCacheDir()
	}

	httpClient := a.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTP.Timeout}
	}
	userAgent := cfg.HTTP.UserAgent
	if userAgent == "" {
		userAgent = "tapkit/" + Version
	}
	fetchOpts := []fetch.Option{fetch.WithHTTPClient(httpClient), fetch.WithUserAgent(userAgent)}
	// A token raises the GitHub rate limit from 60 to 5000 requests per hour.
	if token := a.getenv("GITHUB_TOKEN"); token != "" {
		fetchOpts = append(fetchOpts, fetch.WithToken(token))
	}
	if cfg.UI.Progress && isTerminal(a.stderr) {
		fetchOpts = append(fetchOpts, fetch.WithProgress(a.stderr))
	}
	fetcher := fetch.New(fetchOpts...)

	runnerOpts := []smoke.Option{smoke.WithTimeout(cfg.Smoke.Timeout)}
	if verbose {
		runnerOpts = append(runnerOpts, smoke.WithEcho(a.stderr))
	}

	p := keg.Prefix(prefix)
	slog.Debug("session ready", "prefix", prefix, "cache", cacheDir)

	return &session{
		cfg:       cfg,
		verbose:   verbose,
		prefix:    p,
		fetcher:   fetcher,
		installer: install.New(p, install.WithFetcher(fetcher), install.WithCacheDir(cacheDir), install.WithVersion(Version)),
		runner:    smoke.New(runnerOpts...),
		style:     glamourStyle(cfg.UI.ColorScheme, a.stdout),
	}, nil
}

// loadFormula resolves ref as a path or a name under formulaDirs and parses it.
func loadFormula(ref string) (*formula.Formula, error) {
	path, err := formula.Find(ref, formulaDirs...)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("find formula").
			WithResource(ref).
			WithSuggestion("Pass the path to a .cue, .toml or .yaml formula file").
			WithIssue(issue.FormulaNotFoundId).
			Wrap(err).
			BuildError()
	}
	f, err := formula.Load(path)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load formula").
			WithResource(path).
			WithIssue(issue.FormulaParseErrorId).
			Wrap(err).
			BuildError()
	}
	return f, nil
}

// fail prints err with its remediation help and returns the ExitError that
// carries the matching exit code.
func (a *App) fail(s *session, err error) error {
	code, issueID := classifyError(err)

	verbose, style := false, "notty"
	if s != nil {
		verbose, style = s.verbose, s.style
	}

	fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
	if issueID != 0 {
		if entry := issue.Get(issueID); entry != nil {
			rendered, renderErr := entry.Render(style)
			if renderErr != nil {
				slog.Warn("failed to render issue catalog entry", "issueID", issueID, "error", renderErr)
			} else {
				fmt.Fprint(a.stderr, rendered)
			}
		}
	}
	return &ExitError{Code: code, Err: err}
}

// withConfigIssue tags a configuration error with its catalog entry.
func withConfigIssue(err error) error {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		if ae.IssueID == 0 {
			ae.IssueID = issue.ConfigLoadFailedId
		}
		return err
	}
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(err).
		BuildError()
}

// glamourStyle picks the markdown style for the configured color scheme.
// Output that is not a terminal is rendered without ANSI escapes.
func glamourStyle(scheme config.ColorScheme, w io.Writer) string {
	if !isTerminal(w) {
		return "notty"
	}
	switch scheme {
	case config.ColorSchemeLight:
		return "light"
	default:
		return "dark"
	}
}

func renderMarkdown(md, style string) (string, error) {
	return glamour.Render(md, style)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
