// SPDX-License-Identifier: MPL-2.0

package formula

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// maxDescRunes matches the description limit enforced by Homebrew's audit.
const maxDescRunes = 80

const (
	// SeverityWarning marks style problems; the formula still installs.
	SeverityWarning Severity = iota
	// SeverityError marks problems that block installation or publication.
	SeverityError
)

var githubTagArchive = regexp.MustCompile(`^/[^/]+/[^/]+/archive/refs/tags/[^/]+\.(tar\.gz|zip)$`)

type (
	// Severity ranks an audit problem.
	Severity int

	// Problem is a single audit finding.
	Problem struct {
		Severity Severity
		Field    string
		Message  string
	}

	// AuditOptions tunes Audit.
	AuditOptions struct {
		// Strict enables checks that need the unpacked archive.
		Strict bool
		// DetectedLicenses are the SPDX identifiers found in the archive's
		// license files. Only consulted when Strict is set.
		DetectedLicenses []string
	}
)

// String returns "error" or "warning".
func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// String formats the problem as "field: message".
func (p Problem) String() string {
	return fmt.Sprintf("%s: %s", p.Field, p.Message)
}

// HasErrors reports whether any problem has SeverityError.
func HasErrors(problems []Problem) bool {
	return slices.ContainsFunc(problems, func(p Problem) bool { return p.Severity == SeverityError })
}

// Audit lints f the way a formula reviewer would. Problems come back in field
// order; an empty result means the formula is clean.
func Audit(f *Formula, opts AuditOptions) []Problem {
	var problems []Problem
	add := func(sev Severity, field, format string, args ...any) {
		problems = append(problems, Problem{Severity: sev, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !namePattern.MatchString(f.Name) {
		add(SeverityError, "name", "%q is not a valid formula name", f.Name)
	}

	auditDesc(f, add)
	auditURLs(f, add)

	switch {
	case f.HasPlaceholderChecksum():
		add(SeverityError, "sha256", "checksum is a placeholder; run 'tapkit create' or 'tapkit fetch' to compute it")
	case !sha256Pattern.MatchString(f.SHA256):
		add(SeverityError, "sha256", "must be 64 lowercase hex characters")
	}

	auditLicense(f, opts, add)

	derived, derr := VersionFromURL(f.URL)
	switch {
	case f.Version == "" && derr != nil:
		add(SeverityError, "version", "%v", derr)
	case f.Version != "" && derr == nil && derived == f.Version:
		add(SeverityWarning, "version", "version %s is redundant with the version in the url", f.Version)
	}

	if err := f.Validate(); err != nil {
		var fe *FieldError
		for _, e := range unwrapJoined(err) {
			if errors.As(e, &fe) && strings.HasPrefix(fe.Field, "install.") {
				add(SeverityError, fe.Field, "%s", fe.Reason)
			}
		}
	}

	switch {
	case f.Test == nil:
		add(SeverityWarning, "test", "no test block; the default '--help' test will be used")
	case !strings.Contains(f.Test.Command, "$BIN") && !strings.Contains(f.Test.Command, "${BIN}"):
		add(SeverityWarning, "test.command", "command does not reference $BIN, so it may not exercise the installed file")
	}

	return problems
}

func auditDesc(f *Formula, add func(Severity, string, string, ...any)) {
	desc := strings.TrimSpace(f.Desc)
	if desc == "" {
		add(SeverityError, "desc", "description is empty")
		return
	}
	if n := utf8.RuneCountInString(desc); n > maxDescRunes {
		add(SeverityError, "desc", "description is %d characters, limit is %d", n, maxDescRunes)
	}
	lower := strings.ToLower(desc)
	if f.Name != "" && strings.HasPrefix(lower, f.Name) {
		add(SeverityWarning, "desc", "description should not start with the formula name")
	}
	for _, article := range []string{"a ", "an ", "the "} {
		if strings.HasPrefix(lower, article) {
			add(SeverityWarning, "desc", "description should not start with an article")
			break
		}
	}
	if strings.HasSuffix(desc, ".") {
		add(SeverityWarning, "desc", "description should not end with a period")
	}
}

func auditURLs(f *Formula, add func(Severity, string, string, ...any)) {
	if u, err := url.Parse(f.Homepage); err != nil || u.Host == "" {
		add(SeverityError, "homepage", "%q is not a valid URL", f.Homepage)
	} else if u.Scheme != "https" {
		add(SeverityWarning, "homepage", "use https instead of %s", u.Scheme)
	}

	if err := validateURL("url", f.URL); err != nil {
		add(SeverityError, "url", "%v", err)
		return
	}
	u, _ := url.Parse(f.URL) //nolint:errcheck // validated above
	if u.Scheme != "https" {
		add(SeverityWarning, "url", "use https instead of %s", u.Scheme)
	}
	if strings.EqualFold(u.Host, "github.com") && strings.Contains(u.Path, "/archive/") &&
		!githubTagArchive.MatchString(u.Path) {
		add(SeverityWarning, "url", "GitHub archives should use https://github.com/<org>/<repo>/archive/refs/tags/<tag>.tar.gz")
	}
}

func auditLicense(f *Formula, opts AuditOptions, add func(Severity, string, string, ...any)) {
	ids := LicenseIDs(f.License)
	if len(ids) == 0 {
		add(SeverityError, "license", "license is empty")
		return
	}
	for _, id := range ids {
		if !IsKnownLicense(id) {
			add(SeverityWarning, "license", "%q is not a recognised SPDX identifier", id)
		}
	}

	if !opts.Strict {
		return
	}
	if len(opts.DetectedLicenses) == 0 {
		add(SeverityWarning, "license", "no license file found in the archive")
		return
	}
	for _, id := range ids {
		if slices.ContainsFunc(opts.DetectedLicenses, func(d string) bool { return strings.EqualFold(d, id) }) {
			return
		}
	}
	add(SeverityError, "license", "declared %s but the archive's license files match %s",
		f.License, strings.Join(opts.DetectedLicenses, ", "))
}

func unwrapJoined(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
