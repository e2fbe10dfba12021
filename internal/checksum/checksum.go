// SPDX-License-Identifier: MPL-2.0

package checksum

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrChecksumMismatch indicates the computed SHA-256 does not match the
	// digest recorded in the formula.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrEntryNotFound indicates a sums file has no line for the requested file.
	ErrEntryNotFound = errors.New("file not listed in checksums")

	errNoValidEntries = errors.New("no valid checksum entries found")
)

type (
	// Entry is one line of a sha256sum-style file.
	Entry struct {
		Hash     string
		Filename string
	}

	// ChecksumError reports a digest mismatch. It wraps ErrChecksumMismatch.
	ChecksumError struct {
		Filename string
		Expected string
		Got      string
	}
)

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum verification failed for %s\nExpected: %s\nGot:      %s", e.Filename, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch so callers can use errors.Is.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// VerifyFile hashes the file at path and compares it with expected,
// ignoring case. A mismatch is returned as *ChecksumError.
func VerifyFile(path, expected string) error {
	got, err := ComputeFileHash(path)
	if err != nil {
		return err
	}

	if !strings.EqualFold(got, expected) {
		return &ChecksumError{
			Filename: path,
			Expected: strings.ToLower(expected),
			Got:      got,
		}
	}
	return nil
}

// ComputeFileHash streams the file at path through SHA-256 and returns the
// lowercase hex digest.
func ComputeFileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }() // read-only handle

	return ComputeHash(f)
}

// ComputeHash returns the lowercase hex SHA-256 of everything read from r.
func ComputeHash(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ParseSums reads "<hash>  <filename>" lines as written by sha256sum.
// Blank and malformed lines are skipped; a file with no valid line is an error.
func ParseSums(r io.Reader) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		hash, filename, ok := strings.Cut(line, "  ")
		if !ok {
			continue
		}
		// sha256sum -b marks binary mode with a leading '*'.
		filename = strings.TrimPrefix(strings.TrimSpace(filename), "*")
		if filename == "" || !IsValidHexHash(hash) {
			continue
		}

		entries = append(entries, Entry{Hash: strings.ToLower(hash), Filename: filename})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading checksums: %w", err)
	}
	if len(entries) == 0 {
		return nil, errNoValidEntries
	}
	return entries, nil
}

// Lookup returns the hash recorded for filename.
func Lookup(entries []Entry, filename string) (string, error) {
	for _, e := range entries {
		if e.Filename == filename {
			return e.Hash, nil
		}
	}
	return "", fmt.Errorf("%s: %w", filename, ErrEntryNotFound)
}

// IsValidHexHash reports whether s is 64 hex characters, in either case.
func IsValidHexHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
