// SPDX-License-Identifier: MPL-2.0

package license

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/jadnohra/tapkit/internal/testutil"
)

func TestDetect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFile(t, dir, "LICENSE", []byte(testutil.MITLicense))
	testutil.WriteFile(t, dir, "README.md", []byte(testutil.MITLicense))
	testutil.WriteFile(t, dir, "main.sh", []byte("echo hi\n"))
	testutil.WriteFile(t, dir, filepath.Join("third_party", "COPYING.txt"), []byte(testutil.MITLicense))
	testutil.WriteFile(t, dir, filepath.Join("a", "b", "LICENSE"), []byte(testutil.MITLicense))

	findings, err := Detect(dir)
	if err != nil {
		t.Fatalf("Detect() unexpected error: %v", err)
	}

	var paths []string
	for _, f := range findings {
		paths = append(paths, f.Path)
	}
	want := []string{"LICENSE", filepath.Join("third_party", "COPYING.txt")}
	if !slices.Equal(paths, want) {
		t.Errorf("found %v, want %v", paths, want)
	}
	if got := IDs(findings); !slices.Equal(got, []string{"MIT"}) {
		t.Errorf("IDs() = %v, want [MIT]", got)
	}
	if findings[0].Coverage < minCoverage {
		t.Errorf("Coverage = %.1f, want at least %.1f", findings[0].Coverage, minCoverage)
	}
}

func TestDetect_IgnoresUnrecognisedText(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFile(t, dir, "LICENSE", []byte("All rights reserved. Ask before using.\n"))

	findings, err := Detect(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 0 {
		t.Errorf("Detect() = %+v, want nothing for unrecognised text", findings)
	}
}

func TestDetect_Empty(t *testing.T) {
	t.Parallel()

	findings, err := Detect(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 0 || len(IDs(findings)) != 0 {
		t.Errorf("Detect() on empty dir = %+v", findings)
	}
}

func TestLicenseFileName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"LICENSE", "license.md", "LICENCE.txt", "LICENSE-MIT", "COPYING", "UNLICENSE", "Copyright"} {
		if !licenseFileName.MatchString(name) {
			t.Errorf("%q should be treated as a license file", name)
		}
	}
	for _, name := range []string{"README.md", "licensed_code.go.bak", "main.go", "NOTICE"} {
		if licenseFileName.MatchString(name) {
			t.Errorf("%q should not be treated as a license file", name)
		}
	}
}
