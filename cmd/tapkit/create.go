// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jadnohra/tapkit/internal/archive"
	"github.com/jadnohra/tapkit/internal/checksum"
	"github.com/jadnohra/tapkit/internal/issue"
	"github.com/jadnohra/tapkit/internal/license"
	"github.com/jadnohra/tapkit/pkg/formula"
)

// errLicenseUndetermined is returned by create when --license is missing and
// the archive does not declare exactly one license.
var errLicenseUndetermined = errors.New("cannot determine license; pass --license")

type createOptions struct {
	name      string
	desc      string
	homepage  string
	license   string
	version   string
	bins      []string
	checksums string
	output    string
}

// newCreateCommand creates the `tapkit create` command.
func newCreateCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var opts createOptions

	cmd := &cobra.Command{
		Use:   "create URL",
		Short: "Generate a formula for a release archive",
		Long: `Download a release archive, compute its sha256 and print a CUE formula.

For GitHub archive and release URLs the name and homepage are derived from
the repository. Without --license the archive's license files are scanned;
exactly one license must be found. With --checksums the archive digest is
also checked against a published sha256sum file.`,
		Example: `  tapkit create https://github.com/jadnohra/safe-squash/archive/refs/tags/v1.0.0.tar.gz -o Formula/safe-squash.cue`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.newSession(cmd.Context(), flags)
			if err != nil {
				return app.fail(nil, err)
			}
			f, err := s.createFormula(cmd.Context(), args[0], opts)
			if err != nil {
				return app.fail(s, err)
			}

			for _, p := range formula.Audit(f, formula.AuditOptions{}) {
				fmt.Fprintf(app.stderr, "%s %s\n", WarningStyle.Render(p.Severity.String()+":"), p)
			}

			content := formula.GenerateCUE(f)
			if opts.output == "" {
				fmt.Fprint(app.stdout, content)
				return nil
			}
			if err := writeNewFile(opts.output, content); err != nil {
				return app.fail(s, err)
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("Wrote"), opts.output)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "formula name (default: derived from the URL)")
	cmd.Flags().StringVar(&opts.desc, "desc", "", "one-line description")
	cmd.Flags().StringVar(&opts.homepage, "homepage", "", "project homepage (default: derived from the URL)")
	cmd.Flags().StringVar(&opts.license, "license", "", "SPDX license expression (default: detected from the archive)")
	cmd.Flags().StringVar(&opts.version, "version", "", "version, when the URL does not contain one")
	cmd.Flags().StringArrayVar(&opts.bins, "bin", nil, "path of an executable inside the archive (repeatable)")
	cmd.Flags().StringVar(&opts.checksums, "checksums", "", "URL of a sha256sum file that must list the archive")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the formula to this file instead of stdout")

	return cmd
}

// createFormula downloads rawURL and fills in every field the options leave
// empty.
func (s *session) createFormula(ctx context.Context, rawURL string, opts createOptions) (*formula.Formula, error) {
	repo, isGitHub := githubRepo(rawURL)

	f := &formula.Formula{
		Name:     opts.name,
		Desc:     opts.desc,
		Homepage: opts.homepage,
		URL:      rawURL,
		License:  opts.license,
		Version:  opts.version,
	}
	if f.Name == "" && isGitHub {
		f.Name = strings.ToLower(path.Base(repo))
	}
	if f.Name == "" {
		return nil, issue.NewErrorContext().
			WithOperation("create formula").
			WithResource(rawURL).
			WithSuggestion("Pass --name for archives not hosted on GitHub").
			WithIssue(issue.InvalidFormulaId).
			Wrap(&formula.FieldError{Field: "name", Reason: "cannot be derived from the URL"}).
			BuildError()
	}
	if f.Homepage == "" && isGitHub {
		f.Homepage = "https://github.com/" + repo
	}
	if f.Desc == "" {
		f.Desc = "Command-line tool"
		if isGitHub {
			f.Desc += " from github.com/" + repo
		}
	}
	if len(opts.bins) > 0 {
		f.Install = &formula.Install{Bin: opts.bins}
	}

	archivePath, err := s.fetcher.Download(ctx, rawURL, s.installer.CacheDir())
	if err != nil {
		return nil, err
	}
	if f.SHA256, err = checksum.ComputeFileHash(archivePath); err != nil {
		return nil, err
	}
	slog.Debug("computed archive checksum", "path", archivePath, "sha256", f.SHA256)

	if opts.checksums != "" {
		if err := s.verifyPublishedSum(ctx, opts.checksums, rawURL, archivePath, f.SHA256); err != nil {
			return nil, err
		}
	}

	if f.License == "" {
		if f.License, err = detectLicense(archivePath); err != nil {
			return nil, err
		}
	}

	if err := f.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("create formula").
			WithResource(rawURL).
			WithIssue(issue.InvalidFormulaId).
			Wrap(err).
			BuildError()
	}
	return f, nil
}

// verifyPublishedSum compares got with the entry for the archive in the
// sums file at sumsURL. The cached archive is removed on a mismatch.
func (s *session) verifyPublishedSum(ctx context.Context, sumsURL, rawURL, archivePath, got string) error {
	body, _, err := s.fetcher.Open(ctx, sumsURL)
	if err != nil {
		return err
	}
	defer body.Close()

	entries, err := checksum.ParseSums(body)
	if err != nil {
		return fmt.Errorf("%s: %w", sumsURL, err)
	}
	filename := archiveFileName(rawURL)
	want, err := checksum.Lookup(entries, filename)
	if err != nil {
		return err
	}
	if !strings.EqualFold(want, got) {
		if rmErr := os.Remove(archivePath); rmErr != nil {
			slog.Warn("could not remove archive with bad checksum", "path", archivePath, "error", rmErr)
		}
		return &checksum.ChecksumError{Filename: filename, Expected: strings.ToLower(want), Got: got}
	}
	return nil
}

// detectLicense unpacks the archive and returns the single license it
// declares.
func detectLicense(archivePath string) (string, error) {
	tmp, err := os.MkdirTemp("", "tapkit-create-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmp)

	if _, err := archive.Extract(archivePath, tmp); err != nil {
		return "", err
	}
	root, err := archive.StripSingleRoot(tmp)
	if err != nil {
		return "", err
	}
	findings, err := license.Detect(root)
	if err != nil {
		return "", err
	}

	ids := license.IDs(findings)
	if len(ids) != 1 {
		found := "none"
		if len(ids) > 0 {
			found = strings.Join(ids, ", ")
		}
		return "", issue.NewErrorContext().
			WithOperation("detect license").
			WithResource(archivePath).
			WithSuggestion("Licenses found: " + found).
			WithIssue(issue.InvalidFormulaId).
			Wrap(errLicenseUndetermined).
			BuildError()
	}
	return ids[0], nil
}

// githubRepo returns "owner/repo" for github.com archive and release URLs.
func githubRepo(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.EqualFold(u.Host, "github.com") {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" {
		return "", false
	}
	switch parts[2] {
	case "archive", "releases":
		return parts[0] + "/" + parts[1], true
	}
	return "", false
}

func archiveFileName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}

// writeNewFile writes content to name, refusing to replace an existing file.
func writeNewFile(name, content string) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
