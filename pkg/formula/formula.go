// SPDX-License-Identifier: MPL-2.0

package formula

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/jadnohra/tapkit/pkg/platform"
)

// ChecksumPlaceholder is the value formula templates carry before the
// archive digest has been computed.
const ChecksumPlaceholder = "REPLACE_WITH_SHA256"

var (
	// ErrInvalidFormula is the sentinel wrapped by every FieldError.
	ErrInvalidFormula = errors.New("invalid formula")

	// ErrInvalidChecksum indicates the sha256 field is not a usable digest.
	ErrInvalidChecksum = errors.New("invalid sha256 checksum")

	namePattern   = regexp.MustCompile(`^[a-z0-9][a-z0-9._+-]*$`)
	sha256Pattern = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

type (
	// Formula is a parsed package manifest.
	Formula struct {
		Name     string   `json:"name"`
		Desc     string   `json:"desc"`
		Homepage string   `json:"homepage"`
		URL      string   `json:"url"`
		SHA256   string   `json:"sha256"`
		License  string   `json:"license"`
		Version  string   `json:"version,omitempty"`
		Install  *Install `json:"install,omitempty"`
		Test     *Test    `json:"test,omitempty"`

		// Path is the file the formula was loaded from, empty for formulas
		// built in code.
		Path string `json:"-"`
	}

	// Install lists the files copied out of the unpacked archive.
	Install struct {
		Bin []string `json:"bin"`
	}

	// Test is the smoke test run against an installed formula. The command is
	// a shell snippet; $BIN and $PREFIX point at the install locations.
	Test struct {
		Command  string `json:"command"`
		Match    string `json:"match,omitempty"`
		ExitCode int    `json:"exit_code,omitempty"`
		TTY      bool   `json:"tty,omitempty"`
	}

	// FieldError describes one invalid formula field.
	FieldError struct {
		Field  string
		Value  string
		Reason string
		// Err is the sentinel returned by Unwrap; ErrInvalidFormula when unset.
		Err error
	}
)

// Error implements the error interface.
func (e *FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}

// Unwrap returns the field's sentinel error.
func (e *FieldError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidFormula
}

// Is lets errors.Is(err, ErrInvalidFormula) match checksum errors too.
func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidFormula
}

// Bins returns the files the install step copies into the bin directory.
// A formula without an install block installs a single file named after it.
func (f *Formula) Bins() []string {
	if f.Install == nil || len(f.Install.Bin) == 0 {
		return []string{f.Name}
	}
	return f.Install.Bin
}

// SmokeTest returns the formula's test block, or the default test that runs
// the first installed binary with --help and expects its name in the output.
// A test block without a match expects the binary's name too, so output is
// always checked.
func (f *Formula) SmokeTest() Test {
	bin := path.Base(f.Bins()[0])
	if f.Test != nil {
		test := *f.Test
		if test.Match == "" {
			test.Match = bin
		}
		return test
	}
	return Test{
		Command: fmt.Sprintf("%q --help", "$BIN/"+bin),
		Match:   bin,
	}
}

// HasPlaceholderChecksum reports whether the sha256 field was never filled in.
func (f *Formula) HasPlaceholderChecksum() bool {
	s := strings.TrimSpace(f.SHA256)
	return s == "" || strings.EqualFold(s, ChecksumPlaceholder)
}

// Validate reports problems that make the formula impossible to install.
// All problems are returned joined; each one is a *FieldError.
func (f *Formula) Validate() error {
	var errs []error

	switch {
	case !namePattern.MatchString(f.Name):
		errs = append(errs, &FieldError{Field: "name", Value: f.Name,
			Reason: "must be lowercase letters, digits, '.', '_', '+' or '-'"})
	case platform.IsWindowsReservedName(f.Name):
		errs = append(errs, &FieldError{Field: "name", Value: f.Name, Reason: "is a reserved device name on Windows"})
	}

	if err := validateURL("url", f.URL); err != nil {
		errs = append(errs, err)
	}

	switch {
	case f.HasPlaceholderChecksum():
		errs = append(errs, &FieldError{Field: "sha256", Value: f.SHA256,
			Reason: "checksum has not been filled in", Err: ErrInvalidChecksum})
	case !sha256Pattern.MatchString(f.SHA256):
		errs = append(errs, &FieldError{Field: "sha256", Value: f.SHA256,
			Reason: "must be 64 lowercase hex characters", Err: ErrInvalidChecksum})
	}

	seen := make(map[string]bool)
	for i, bin := range f.Bins() {
		field := fmt.Sprintf("install.bin[%d]", i)
		clean := path.Clean(bin)
		if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			errs = append(errs, &FieldError{Field: field, Value: bin, Reason: "must be a relative path inside the archive"})
			continue
		}
		name := path.Base(clean)
		if platform.IsWindowsReservedName(name) {
			errs = append(errs, &FieldError{Field: field, Value: bin, Reason: "is a reserved device name on Windows"})
		}
		if seen[name] {
			errs = append(errs, &FieldError{Field: field, Value: bin, Reason: "installs a second file named " + name})
		}
		seen[name] = true
	}

	if _, err := f.ResolveVersion(); err != nil {
		errs = append(errs, &FieldError{Field: "version", Reason: err.Error()})
	}

	return errors.Join(errs...)
}

func validateURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return &FieldError{Field: field, Reason: "must not be empty"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &FieldError{Field: field, Value: raw, Reason: "not a valid URL"}
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return &FieldError{Field: field, Value: raw, Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &FieldError{Field: field, Value: raw, Reason: "missing host"}
	}
	return nil
}
