// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// ArchiveEntry describes one member of a test archive. Entries with Link set
// become symlinks; names ending in "/" become directories.
type ArchiveEntry struct {
	Name string
	Body string
	Mode int64
	Link string
}

// TarBytes returns an uncompressed tar stream holding entries.
func TarBytes(t testing.TB, entries ...ArchiveEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	WriteTar(t, &buf, entries...)
	return buf.Bytes()
}

// WriteTar writes entries as a tar stream to w.
func WriteTar(t testing.TB, w io.Writer, entries ...ArchiveEntry) {
	t.Helper()

	tw := tar.NewWriter(w)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: e.Mode}
		switch {
		case e.Link != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.Link
		case len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/':
			hdr.Typeflag = tar.TypeDir
			if hdr.Mode == 0 {
				hdr.Mode = 0o755
			}
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.Body))
			if hdr.Mode == 0 {
				hdr.Mode = 0o644
			}
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("writing tar header %s: %v", e.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.Body)); err != nil {
				t.Fatalf("writing tar entry %s: %v", e.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar writer: %v", err)
	}
}

// TarGzBytes returns a gzip-compressed tar stream holding entries.
func TarGzBytes(t testing.TB, entries ...ArchiveEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	WriteTar(t, gz, entries...)
	if err := gz.Close(); err != nil {
		t.Fatalf("closing gzip writer: %v", err)
	}
	return buf.Bytes()
}

// ZipBytes returns a zip archive holding the regular-file entries.
func ZipBytes(t testing.TB, entries ...ArchiveEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		fh := &zip.FileHeader{Name: e.Name, Method: zip.Deflate}
		mode := os.FileMode(e.Mode)
		if mode == 0 {
			mode = 0o644
		}
		fh.SetMode(mode)
		w, err := zw.CreateHeader(fh)
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", e.Name, err)
		}
		if _, err := w.Write([]byte(e.Body)); err != nil {
			t.Fatalf("writing zip entry %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
	return buf.Bytes()
}

// WriteFile writes data to dir/name and returns the path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	MustMkdirAll(t, filepath.Dir(path), 0o755)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// FakeTool returns a POSIX shell script that prints a usage line naming the
// tool when called with --help and exits 2 otherwise, like a typical CLI.
func FakeTool(name string) string {
	return "#!/bin/sh\n" +
		"if [ \"$1\" = \"--help\" ]; then\n" +
		"  echo \"usage: " + name + " [--help] <base-branch>\"\n" +
		"  echo \"" + name + " squashes every commit on the current branch into one\" >&2\n" +
		"  exit 0\n" +
		"fi\n" +
		"echo \"" + name + ": missing base branch\" >&2\n" +
		"exit 2\n"
}

// ToolArchive returns a GitHub-style tag archive for a fake tool:
// a single "<name>-<version>/" root holding an executable script, a README
// and an MIT license.
func ToolArchive(t testing.TB, name, version string) []byte {
	t.Helper()

	root := name + "-" + version + "/"
	return TarGzBytes(t,
		ArchiveEntry{Name: root},
		ArchiveEntry{Name: root + name, Body: FakeTool(name), Mode: 0o755},
		ArchiveEntry{Name: root + "README.md", Body: "# " + name + "\n"},
		ArchiveEntry{Name: root + "LICENSE", Body: MITLicense},
	)
}

// MITLicense is the MIT license text, for license detection tests.
const MITLicense = `MIT License

Copyright (c) 2024 Jad Nohra

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
`
