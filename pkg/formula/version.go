// SPDX-License-Identifier: MPL-2.0

package formula

import (
	"errors"
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrVersionNotFound is returned when a formula has no version field and none
// can be read from its URL.
var ErrVersionNotFound = errors.New("cannot determine version from url; set the version field")

var (
	archiveExtensions = []string{".tar.gz", ".tgz", ".tar.xz", ".txz", ".tar.zst", ".tar.bz2", ".tbz2", ".tar", ".zip"}

	trailingVersion = regexp.MustCompile(`v?(\d+(?:\.\d+)+(?:-[0-9A-Za-z.]+)?)$`)
)

// ResolveVersion returns the explicit version, or the version embedded in the
// archive URL (".../archive/refs/tags/v1.0.0.tar.gz" yields "1.0.0").
func (f *Formula) ResolveVersion() (string, error) {
	if f.Version != "" {
		return f.Version, nil
	}
	return VersionFromURL(f.URL)
}

// VersionFromURL extracts the version from the last path element of rawURL.
func VersionFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ErrVersionNotFound
	}

	base := path.Base(u.Path)
	lower := strings.ToLower(base)
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(lower, ext) {
			base = base[:len(base)-len(ext)]
			break
		}
	}

	m := trailingVersion.FindStringSubmatch(base)
	if m == nil {
		return "", ErrVersionNotFound
	}
	return m[1], nil
}

// CompareVersions orders two formula versions. Semantic versions are
// compared with semver rules; anything else falls back to string order.
func CompareVersions(a, b string) int {
	va, vb := "v"+strings.TrimPrefix(a, "v"), "v"+strings.TrimPrefix(b, "v")
	if semver.IsValid(va) && semver.IsValid(vb) {
		return semver.Compare(va, vb)
	}
	return strings.Compare(a, b)
}
