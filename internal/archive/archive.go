// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// DefaultMaxFileBytes caps a single extracted file (500 MB) so a
// decompression bomb cannot fill the disk.
const DefaultMaxFileBytes int64 = 500 << 20

// Supported formats. Compressed formats always wrap a tar stream.
const (
	FormatUnknown Format = ""
	FormatTarGz   Format = "tar.gz"
	FormatTarXz   Format = "tar.xz"
	FormatTarZst  Format = "tar.zst"
	FormatTarBz2  Format = "tar.bz2"
	FormatTar     Format = "tar"
	FormatZip     Format = "zip"
)

var (
	// ErrUnsupportedFormat is returned for files that are not a known archive.
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	// ErrUnsafePath is returned for entries that would land outside the
	// destination: absolute names, ".." components, escaping links.
	ErrUnsafePath = errors.New("archive entry escapes destination")

	// ErrFileTooLarge is returned when an entry exceeds the size cap.
	ErrFileTooLarge = errors.New("archive entry too large")
)

// extFormats maps file name suffixes to formats, used when sniffing fails
// (old v7 tar files carry no magic).
var extFormats = []struct {
	suffix string
	format Format
}{
	{".tar.gz", FormatTarGz}, {".tgz", FormatTarGz},
	{".tar.xz", FormatTarXz}, {".txz", FormatTarXz},
	{".tar.zst", FormatTarZst},
	{".tar.bz2", FormatTarBz2}, {".tbz2", FormatTarBz2},
	{".tar", FormatTar},
	{".zip", FormatZip},
}

type (
	// Format names an archive container and compression.
	Format string

	// Option configures Extract.
	Option func(*options)

	options struct {
		maxFileBytes int64
	}
)

// WithMaxFileBytes overrides DefaultMaxFileBytes.
func WithMaxFileBytes(n int64) Option {
	return func(o *options) { o.maxFileBytes = n }
}

// Detect identifies the archive format of the file at path from its magic
// bytes, falling back to the file name.
func Detect(path string) (Format, error) {
	kind, err := filetype.MatchFile(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("reading %s: %w", path, err)
	}

	switch kind.Extension {
	case "gz":
		return FormatTarGz, nil
	case "xz":
		return FormatTarXz, nil
	case "zst":
		return FormatTarZst, nil
	case "bz2":
		return FormatTarBz2, nil
	case "tar":
		return FormatTar, nil
	case "zip":
		return FormatZip, nil
	}

	lower := strings.ToLower(filepath.Base(path))
	for _, ef := range extFormats {
		if strings.HasSuffix(lower, ef.suffix) {
			return ef.format, nil
		}
	}
	return FormatUnknown, fmt.Errorf("%s (detected %q): %w", filepath.Base(path), kind.Extension, ErrUnsupportedFormat)
}

// Extract unpacks the archive at path into dest, creating dest if needed.
// Regular files keep their permission bits. It returns the detected format.
func Extract(path, dest string, opts ...Option) (Format, error) {
	o := options{maxFileBytes: DefaultMaxFileBytes}
	for _, opt := range opts {
		opt(&o)
	}

	format, err := Detect(path)
	if err != nil {
		return format, err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return format, fmt.Errorf("creating %s: %w", dest, err)
	}
	slog.Debug("extracting archive", "path", path, "format", format, "dest", dest)

	if format == FormatZip {
		return format, extractZip(path, dest, o)
	}

	f, err := os.Open(path)
	if err != nil {
		return format, fmt.Errorf("opening archive: %w", err)
	}
	defer func() { _ = f.Close() }() // read-only handle

	r, closeFn, err := decompressor(format, f)
	if err != nil {
		return format, fmt.Errorf("reading %s: %w", format, err)
	}
	defer closeFn()

	return format, extractTar(tar.NewReader(r), dest, o)
}

func decompressor(format Format, r io.Reader) (io.Reader, func(), error) {
	noop := func() {}
	switch format {
	case FormatTarGz:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, noop, err
		}
		return gz, func() { _ = gz.Close() }, nil
	case FormatTarXz:
		x, err := xz.NewReader(r)
		if err != nil {
			return nil, noop, err
		}
		return x, noop, nil
	case FormatTarZst:
		z, err := zstd.NewReader(r)
		if err != nil {
			return nil, noop, err
		}
		return z, z.Close, nil
	case FormatTarBz2:
		return bzip2.NewReader(r), noop, nil
	case FormatTar:
		return r, noop, nil
	default:
		return nil, noop, ErrUnsupportedFormat
	}
}

func extractTar(tr *tar.Reader, dest string, o options) error {
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		switch hdr.Typeflag {
		case tar.TypeXGlobalHeader, tar.TypeXHeader:
			// GitHub archives start with a pax header carrying the commit id.
			continue
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, fs.FileMode(hdr.Mode).Perm(), o.maxFileBytes, hdr.Name); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := writeSymlink(dest, target, hdr.Linkname, hdr.Name); err != nil {
				return err
			}
		case tar.TypeLink:
			source, err := safeJoin(dest, hdr.Linkname)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Link(source, target); err != nil {
				return fmt.Errorf("linking %s: %w", hdr.Name, err)
			}
		default:
			slog.Debug("skipping archive entry", "name", hdr.Name, "type", string(hdr.Typeflag))
		}
	}
}

func extractZip(path, dest string, o options) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("opening zip: %w", err)
	}
	defer func() { _ = zr.Close() }()

	for _, zf := range zr.File {
		target, err := safeJoin(dest, zf.Name)
		if err != nil {
			return err
		}

		mode := zf.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case mode&fs.ModeSymlink != 0:
			linkname, err := readZipEntry(zf, 4096)
			if err != nil {
				return err
			}
			if err := writeSymlink(dest, target, linkname, zf.Name); err != nil {
				return err
			}
		default:
			rc, err := zf.Open()
			if err != nil {
				return fmt.Errorf("opening %s: %w", zf.Name, err)
			}
			err = writeFile(target, rc, mode.Perm(), o.maxFileBytes, zf.Name)
			_ = rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func readZipEntry(zf *zip.File, limit int64) (string, error) {
	rc, err := zf.Open()
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", zf.Name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", zf.Name, err)
	}
	return string(data), nil
}

func writeFile(target string, r io.Reader, perm fs.FileMode, maxBytes int64, name string) (err error) {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	n, err := io.Copy(f, io.LimitReader(r, maxBytes+1))
	if err != nil {
		return fmt.Errorf("extracting %s: %w", name, err)
	}
	if n > maxBytes {
		return fmt.Errorf("%s: %w (limit %d bytes)", name, ErrFileTooLarge, maxBytes)
	}
	// OpenFile applies the umask; set the archived bits explicitly.
	return os.Chmod(target, perm)
}

func writeSymlink(dest, target, linkname, name string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("%s -> %s: %w", name, linkname, ErrUnsafePath)
	}
	resolved := filepath.Join(filepath.Dir(target), linkname)
	if !within(dest, resolved) {
		return fmt.Errorf("%s -> %s: %w", name, linkname, ErrUnsafePath)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.Symlink(linkname, target)
}

// safeJoin resolves an entry name inside dest. The name must not pass
// through a symlink extracted earlier: the textual check below cannot see
// where such a link points on disk.
func safeJoin(dest, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%s: %w", name, ErrUnsafePath)
	}
	target := filepath.Join(dest, name)
	if !within(dest, target) {
		return "", fmt.Errorf("%s: %w", name, ErrUnsafePath)
	}
	if err := checkNoSymlinks(dest, target); err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return target, nil
}

// checkNoSymlinks walks target's path below dest and fails on the first
// existing element that is a symlink. Elements that do not exist yet end the
// walk.
func checkNoSymlinks(dest, target string) error {
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == "." {
		return err
	}
	current := dest
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%s is a symlink: %w", current, ErrUnsafePath)
		}
	}
	return nil
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// StripSingleRoot returns the only top-level directory inside dir, or dir
// itself when the archive had several top-level entries. GitHub tag archives
// unpack into a single "<repo>-<version>/" directory.
func StripSingleRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var roots []fs.DirEntry
	for _, e := range entries {
		if e.Name() == "__MACOSX" {
			continue
		}
		roots = append(roots, e)
	}
	if len(roots) == 1 && roots[0].IsDir() {
		return filepath.Join(dir, roots[0].Name()), nil
	}
	return dir, nil
}
