// SPDX-License-Identifier: MPL-2.0

package checksum

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// sha256 of "hello world\n"
const helloHash = "a948904f2f0f479b8f8197694b30184b0d2ed1c1cd2a1ec0fb85d299a192a447"

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.tar.gz")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestComputeFileHash(t *testing.T) {
	t.Parallel()

	got, err := ComputeFileHash(writeFile(t, "hello world\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != helloHash {
		t.Errorf("got %q, want %q", got, helloHash)
	}
}

func TestComputeFileHash_Missing(t *testing.T) {
	t.Parallel()

	_, err := ComputeFileHash(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("got %v, want os.ErrNotExist", err)
	}
}

func TestVerifyFile(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "hello world\n")

	if err := VerifyFile(path, helloHash); err != nil {
		t.Errorf("matching hash: unexpected error: %v", err)
	}
	if err := VerifyFile(path, strings.ToUpper(helloHash)); err != nil {
		t.Errorf("uppercase hash: unexpected error: %v", err)
	}

	wrong := strings.Repeat("0", 64)
	err := VerifyFile(path, wrong)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("got %v, want ErrChecksumMismatch", err)
	}

	var ce *ChecksumError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ChecksumError, got %T", err)
	}
	if ce.Expected != wrong || ce.Got != helloHash || ce.Filename != path {
		t.Errorf("unexpected error fields: %+v", ce)
	}
	if !strings.Contains(err.Error(), helloHash) {
		t.Errorf("error message should show the actual hash: %q", err.Error())
	}
}

func TestParseSums(t *testing.T) {
	t.Parallel()

	input := strings.NewReader(
		helloHash + "  safe-squash-1.0.0.tar.gz\n" +
			"\n" +
			"abcdef  short.tar.gz\n" +
			helloHash + " single-space.tar.gz\n" +
			strings.Repeat("z", 64) + "  bad-hex.tar.gz\n" +
			strings.ToUpper(helloHash) + "  *binary-mode.zip\n",
	)

	entries, err := ParseSums(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	if entries[1].Filename != "binary-mode.zip" || entries[1].Hash != helloHash {
		t.Errorf("entry[1] = %+v, want lowercased hash for binary-mode.zip", entries[1])
	}

	hash, err := Lookup(entries, "safe-squash-1.0.0.tar.gz")
	if err != nil || hash != helloHash {
		t.Errorf("Lookup() = %q, %v", hash, err)
	}
	if _, err := Lookup(entries, "other.tar.gz"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Lookup(missing) = %v, want ErrEntryNotFound", err)
	}
}

func TestParseSums_NoEntries(t *testing.T) {
	t.Parallel()

	if _, err := ParseSums(strings.NewReader("\n# nothing here\n")); err == nil {
		t.Error("expected error for a file without entries")
	}
}

func TestIsValidHexHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{helloHash, true},
		{strings.ToUpper(helloHash), true},
		{helloHash[:63], false},
		{helloHash + "0", false},
		{strings.Repeat("g", 64), false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidHexHash(tt.in); got != tt.want {
			t.Errorf("IsValidHexHash(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
