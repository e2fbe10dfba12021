// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

type Id int

const (
	FormulaNotFoundId Id = iota + 1
	FormulaParseErrorId
	InvalidFormulaId
	ChecksumMismatchId
	DownloadFailedId
	RateLimitedId
	UnsupportedArchiveId
	MissingBinaryId
	LinkConflictId
	SmokeTestFailedId
	NotInstalledId
	ConfigLoadFailedId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // project documentation for this issue
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Markdown returns the message followed by a "See also" list of links.
func (i *Issue) Markdown() string {
	var sb strings.Builder
	sb.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		sb.WriteString("\n\n## See also\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			sb.WriteString("- <" + string(link) + ">\n")
		}
	}
	return sb.String()
}

// Render renders the issue with the named glamour style ("dark", "light",
// "notty", or a path to a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

const docsBase = "https://github.com/jadnohra/tapkit/blob/main/docs/"

var (
	render = glamour.Render

	formulaNotFoundIssue = &Issue{
		id: FormulaNotFoundId,
		mdMsg: `
# Formula not found!

tapkit looks for formulas by path first, then by name in the ` + "`Formula/`" + ` directory
of the current working directory.

## Things you can try:
- Pass the path to the formula file directly:
~~~
$ tapkit install ./Formula/safe-squash.cue
~~~
- Generate a formula for a release archive:
~~~
$ tapkit create https://github.com/org/tool/archive/refs/tags/v1.0.0.tar.gz --name tool --license MIT
~~~`,
		docLinks: []HttpLink{docsBase + "formula.md"},
	}

	formulaParseErrorIssue = &Issue{
		id: FormulaParseErrorId,
		mdMsg: `
# Failed to parse the formula!

The formula file could not be read or does not match the formula schema.
Formulas may be written in CUE, TOML or YAML; every format is checked against
the same schema.

## Things you can try:
- Check the file for syntax errors near the reported line
- Remove fields the schema does not know about
- Compare with the reference formula:
~~~cue
name:     "safe-squash"
desc:     "Simple, robust tool to squash all commits on your branch into one"
homepage: "https://github.com/jadnohra/safe-squash"
url:      "https://github.com/jadnohra/safe-squash/archive/refs/tags/v1.0.0.tar.gz"
sha256:   "<64 hex characters>"
license:  "MIT"
~~~`,
		docLinks: []HttpLink{docsBase + "formula.md"},
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	invalidFormulaIssue = &Issue{
		id: InvalidFormulaId,
		mdMsg: `
# The formula is not installable!

The formula parsed, but one or more fields would make the install unsafe or
impossible, for example a missing or placeholder sha256.

## Things you can try:
- Run the audit to see every problem at once:
~~~
$ tapkit audit ./Formula/safe-squash.cue
~~~
- Compute the checksum of the release archive:
~~~
$ curl -sL <url> | sha256sum
~~~`,
		docLinks: []HttpLink{docsBase + "formula.md"},
	}

	checksumMismatchIssue = &Issue{
		id: ChecksumMismatchId,
		mdMsg: `
# Checksum mismatch!

The downloaded archive does not match the sha256 recorded in the formula.
Nothing was installed and the downloaded file was deleted.

## Things you can try:
- Retry: a truncated download produces a different hash
- If the upstream tag was moved, the archive changed; verify the new release
  and update the formula's sha256
- Never copy a hash from the error message without checking the release`,
		docLinks: []HttpLink{docsBase + "security.md"},
	}

	downloadFailedIssue = &Issue{
		id: DownloadFailedId,
		mdMsg: `
# Download failed!

The source archive could not be downloaded.

## Things you can try:
- Check your network connection and retry
- Open the formula's url in a browser to confirm it exists
- Increase the timeout: ` + "`TAPKIT_HTTP_TIMEOUT=30m`",
	}

	rateLimitedIssue = &Issue{
		id: RateLimitedId,
		mdMsg: `
# GitHub rate limit exceeded!

Unauthenticated requests to GitHub are limited to 60 per hour.

## Things you can try:
- Set a GitHub token to raise the limit to 5000 per hour:
~~~
$ export GITHUB_TOKEN=ghp_...
~~~
- Wait until the limit resets and retry`,
		extLinks: []HttpLink{"https://docs.github.com/en/rest/using-the-rest-api/rate-limits-for-the-rest-api"},
	}

	unsupportedArchiveIssue = &Issue{
		id: UnsupportedArchiveId,
		mdMsg: `
# Unsupported archive!

tapkit unpacks tar (optionally gzip, xz, zstd or bzip2 compressed) and zip
archives. The downloaded file is none of these, or contains unsafe paths.

## Things you can try:
- Check that the url points at a source or release archive, not an HTML page
- Report archives with absolute or ` + "`..`" + ` paths to the upstream project`,
	}

	missingBinaryIssue = &Issue{
		id: MissingBinaryId,
		mdMsg: `
# Executable not found in the archive!

The archive unpacked, but a file listed in ` + "`install.bin`" + ` does not exist.

## Things you can try:
- Download the archive and inspect its contents; ` + "`tapkit fetch`" + ` prints
  the path of the cached file:
~~~
$ tapkit fetch ./Formula/safe-squash.cue
~~~
- Set ` + "`install: bin: [...]`" + ` to the relative path of the executable`,
		docLinks: []HttpLink{docsBase + "formula.md"},
	}

	linkConflictIssue = &Issue{
		id: LinkConflictId,
		mdMsg: `
# Link conflict!

A file in the prefix bin directory already exists and was not created by tapkit.
tapkit never overwrites files it does not own.

## Things you can try:
- Remove or rename the conflicting file, then rerun the install
- Install into a different prefix with ` + "`--prefix`",
	}

	smokeTestFailedIssue = &Issue{
		id: SmokeTestFailedId,
		mdMsg: `
# Smoke test failed!

The installed executable did not pass the formula's test: either it exited with
an unexpected status, or its output did not contain the expected text.

## Things you can try:
- Run the test with full output:
~~~
$ tapkit test -v safe-squash
~~~
- Check that the executable runs on this platform
- Update the formula's ` + "`test`" + ` block if the upstream help text changed`,
	}

	notInstalledIssue = &Issue{
		id: NotInstalledId,
		mdMsg: `
# Formula not installed!

No keg for this formula exists in the prefix.

## Things you can try:
- List installed formulas:
~~~
$ tapkit list
~~~
- Install it first:
~~~
$ tapkit install ./Formula/safe-squash.cue
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or failed schema validation.

## Things you can try:
- Show the effective configuration:
~~~
$ tapkit config show
~~~
- Write a fresh default file:
~~~
$ tapkit config init
~~~
- Check ` + "`TAPKIT_*`" + ` environment variables for invalid values`,
		docLinks: []HttpLink{docsBase + "configuration.md"},
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

tapkit could not write to the prefix or cache directory.

## Things you can try:
- Install into a prefix you own: ` + "`tapkit install --prefix ~/.local/share/tapkit ...`" + `
- Check ownership of the prefix directory`,
	}

	issues = map[Id]*Issue{
		formulaNotFoundIssue.Id():    formulaNotFoundIssue,
		formulaParseErrorIssue.Id():  formulaParseErrorIssue,
		invalidFormulaIssue.Id():     invalidFormulaIssue,
		checksumMismatchIssue.Id():   checksumMismatchIssue,
		downloadFailedIssue.Id():     downloadFailedIssue,
		rateLimitedIssue.Id():        rateLimitedIssue,
		unsupportedArchiveIssue.Id(): unsupportedArchiveIssue,
		missingBinaryIssue.Id():      missingBinaryIssue,
		linkConflictIssue.Id():       linkConflictIssue,
		smokeTestFailedIssue.Id():    smokeTestFailedIssue,
		notInstalledIssue.Id():       notInstalledIssue,
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		permissionDeniedIssue.Id():   permissionDeniedIssue,
	}
)

// Values returns every catalog entry ordered by ID.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

func Get(id Id) *Issue {
	return issues[id]
}
