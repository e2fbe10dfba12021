// SPDX-License-Identifier: MPL-2.0

// Package license finds license files in an unpacked archive and identifies
// them, so a formula's declared license can be checked against the source.
package license

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/google/licensecheck"
)

// maxLicenseBytes bounds how much of a candidate file is scanned.
const maxLicenseBytes = 256 << 10

// minCoverage is the share of a file (in percent) that must be recognised
// license text before its matches are trusted.
const minCoverage = 40.0

// licenseFileName matches the base names projects use for license texts:
// LICENSE, LICENSE.md, LICENSE-MIT, COPYING, UNLICENSE and so on.
var licenseFileName = regexp.MustCompile(`(?i)^((un)?licen[cs]es?|copy(ing|right)|legal)([-_.].*)?$`)

// Finding is one identified license file.
type Finding struct {
	// Path is relative to the scanned directory.
	Path     string
	IDs      []string
	Coverage float64
}

// Detect scans the license files at the top of dir and one level below it.
// Findings are sorted by path.
func Detect(dir string) ([]Finding, error) {
	var findings []Finding

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			if rel != "." && strings.Count(rel, string(filepath.Separator)) >= 1 {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !licenseFileName.MatchString(d.Name()) {
			return nil
		}

		f, ok, scanErr := scanFile(path)
		if scanErr != nil {
			return scanErr
		}
		if ok {
			f.Path = rel
			findings = append(findings, f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s for licenses: %w", dir, err)
	}
	return findings, nil
}

// IDs returns the distinct license identifiers across findings, sorted.
func IDs(findings []Finding) []string {
	var ids []string
	for _, f := range findings {
		for _, id := range f.IDs {
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	slices.Sort(ids)
	return ids
}

func scanFile(path string) (Finding, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return Finding{}, false, err
	}
	defer func() { _ = f.Close() }() // read-only handle

	data, err := io.ReadAll(io.LimitReader(f, maxLicenseBytes))
	if err != nil {
		return Finding{}, false, fmt.Errorf("reading %s: %w", path, err)
	}

	cov := licensecheck.Scan(data)
	if cov.Percent < minCoverage {
		return Finding{}, false, nil
	}

	var ids []string
	for _, m := range cov.Match {
		if m.IsURL || slices.Contains(ids, m.ID) {
			continue
		}
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return Finding{}, false, nil
	}
	return Finding{IDs: ids, Coverage: cov.Percent}, true, nil
}
