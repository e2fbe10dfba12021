// SPDX-License-Identifier: MPL-2.0

package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jadnohra/tapkit/internal/archive"
	"github.com/jadnohra/tapkit/internal/checksum"
	"github.com/jadnohra/tapkit/internal/fetch"
	"github.com/jadnohra/tapkit/internal/keg"
	"github.com/jadnohra/tapkit/pkg/formula"
)

// ErrMissingBinary is returned when a file named in install.bin is not in
// the unpacked archive.
var ErrMissingBinary = errors.New("file listed in install.bin not found in archive")

type (
	// Fetcher downloads a URL into a directory and returns the file path.
	// *fetch.Client is the production implementation.
	Fetcher interface {
		Download(ctx context.Context, rawURL, dir string) (string, error)
	}

	// Installer installs formulas into a prefix.
	Installer struct {
		prefix   keg.Prefix
		cacheDir string
		fetcher  Fetcher
		version  string
		now      func() time.Time
	}

	// Option configures an Installer.
	Option func(*Installer)

	// Options control a single Install call.
	Options struct {
		// Force reinstalls even when the same version and checksum are
		// already installed.
		Force bool
	}

	// Result describes a completed install.
	Result struct {
		Keg              keg.Keg
		Receipt          *keg.Receipt
		Links            []string
		ArchivePath      string
		AlreadyInstalled bool
	}
)

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f Fetcher) Option {
	return func(i *Installer) { i.fetcher = f }
}

// WithCacheDir sets where archives are downloaded. Defaults to
// DefaultCacheDir. The cache must live outside the prefix.
func WithCacheDir(dir string) Option {
	return func(i *Installer) { i.cacheDir = dir }
}

// WithVersion sets the tapkit version recorded in receipts.
func WithVersion(v string) Option {
	return func(i *Installer) { i.version = v }
}

// WithClock overrides the time source used for receipts.
func WithClock(now func() time.Time) Option {
	return func(i *Installer) { i.now = now }
}

// New creates an Installer for prefix.
func New(prefix keg.Prefix, opts ...Option) *Installer {
	i := &Installer{
		prefix:   prefix,
		cacheDir: DefaultCacheDir(),
		fetcher:  fetch.New(),
		version:  "dev",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// DefaultCacheDir is the per-user download cache.
func DefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "tapkit", "downloads")
}

// CacheDir returns where archives are downloaded.
func (i *Installer) CacheDir() string { return i.cacheDir }

// Prefix returns the install prefix.
func (i *Installer) Prefix() keg.Prefix { return i.prefix }

// Fetch downloads the formula's archive into the cache and verifies it.
// An archive with the wrong digest is deleted from the cache.
func (i *Installer) Fetch(ctx context.Context, f *formula.Formula) (string, error) {
	if err := f.Validate(); err != nil {
		return "", fmt.Errorf("%s: %w", f.Name, err)
	}

	archivePath, err := i.fetcher.Download(ctx, f.URL, i.cacheDir)
	if err != nil {
		return "", err
	}
	if err := checksum.VerifyFile(archivePath, f.SHA256); err != nil {
		if errors.Is(err, checksum.ErrChecksumMismatch) {
			// A corrupt or replaced upstream archive must not be reused.
			if rmErr := os.Remove(archivePath); rmErr != nil {
				slog.Warn("could not remove archive with bad checksum", "path", archivePath, "error", rmErr)
			}
		}
		return "", err
	}
	return archivePath, nil
}

// Unpack fetches and verifies the archive, then extracts it into a temporary
// directory. It returns the source root and a cleanup function.
func (i *Installer) Unpack(ctx context.Context, f *formula.Formula) (string, func(), error) {
	archivePath, err := i.Fetch(ctx, f)
	if err != nil {
		return "", func() {}, err
	}

	tmp, err := os.MkdirTemp("", "tapkit-"+f.Name+"-")
	if err != nil {
		return "", func() {}, err
	}
	cleanup := func() { _ = os.RemoveAll(tmp) }

	if _, err := archive.Extract(archivePath, tmp); err != nil {
		cleanup()
		return "", func() {}, err
	}
	root, err := archive.StripSingleRoot(tmp)
	if err != nil {
		cleanup()
		return "", func() {}, err
	}
	return root, cleanup, nil
}

// Install installs f into the prefix. Reinstalling a version whose receipt
// records the same checksum only refreshes the bin links and reports
// AlreadyInstalled, unless opts.Force is set.
func (i *Installer) Install(ctx context.Context, f *formula.Formula, opts Options) (_ *Result, err error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	version, err := f.ResolveVersion()
	if err != nil {
		return nil, err
	}
	k := i.prefix.Keg(f.Name, version)
	log := slog.With("formula", f.Name, "version", version)

	lock, err := acquireLock(i.cacheDir)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	if !opts.Force && k.Exists() {
		if receipt, rerr := k.Receipt(); rerr == nil && strings.EqualFold(receipt.SHA256, f.SHA256) {
			links, lerr := k.Link(i.prefix)
			if lerr != nil {
				return nil, lerr
			}
			log.Info("already installed", "keg", k.Path)
			return &Result{Keg: k, Receipt: receipt, Links: links, AlreadyInstalled: true}, nil
		}
	}

	archivePath, err := i.Fetch(ctx, f)
	if err != nil {
		return nil, err
	}
	log.Debug("archive verified", "path", archivePath)

	// Nothing has been written under the prefix up to this point.
	formulaDir := filepath.Dir(k.Path)
	if err := os.MkdirAll(formulaDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", formulaDir, err)
	}
	staging, err := os.MkdirTemp(formulaDir, ".staging-")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(staging)
			// Leave no empty Cellar/<name> behind after a failed first install.
			_ = os.Remove(formulaDir)
		}
	}()

	files, err := i.stage(f, archivePath, staging)
	if err != nil {
		return nil, err
	}

	receipt := &keg.Receipt{
		ID:            uuid.NewString(),
		Name:          f.Name,
		Version:       version,
		SHA256:        strings.ToLower(f.SHA256),
		URL:           f.URL,
		Files:         files,
		InstalledAt:   i.now().UTC(),
		TapkitVersion: i.version,
	}
	if err := keg.WriteReceipt(staging, receipt); err != nil {
		return nil, err
	}

	if err := replaceDir(staging, k); err != nil {
		return nil, err
	}

	links, err := k.Link(i.prefix)
	if err != nil {
		return nil, err
	}

	log.Info("installed", "keg", k.Path, "install_id", receipt.ID)
	return &Result{Keg: k, Receipt: receipt, Links: links, ArchivePath: archivePath}, nil
}

// stage unpacks the archive into staging/src, copies the formula's
// executables into staging/bin and stores the formula. It returns the keg
// relative paths of the installed files.
func (i *Installer) stage(f *formula.Formula, archivePath, staging string) ([]string, error) {
	src := filepath.Join(staging, "src")
	if _, err := archive.Extract(archivePath, src); err != nil {
		return nil, err
	}
	root, err := archive.StripSingleRoot(src)
	if err != nil {
		return nil, err
	}

	binDir := filepath.Join(staging, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return nil, err
	}

	var files []string
	for _, bin := range f.Bins() {
		from := filepath.Join(root, filepath.FromSlash(bin))
		name := path.Base(bin)
		if err := copyExecutable(from, filepath.Join(binDir, name)); err != nil {
			return nil, fmt.Errorf("installing %s: %w", bin, err)
		}
		files = append(files, "bin/"+name)
	}

	if err := os.RemoveAll(src); err != nil {
		return nil, err
	}

	metaDir := filepath.Join(staging, ".tapkit")
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(metaDir, "formula.cue"), []byte(formula.GenerateCUE(f)), 0o644); err != nil {
		return nil, fmt.Errorf("storing formula: %w", err)
	}
	return files, nil
}

// copyExecutable copies a regular file and marks it executable (0755).
func copyExecutable(from, to string) (err error) {
	info, err := os.Stat(from)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrMissingBinary
	}
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", filepath.Base(from))
	}

	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return os.Chmod(to, 0o755)
}

// replaceDir moves staging to k.Path. An existing keg of the same version is
// moved aside first and removed once the new one is in place.
func replaceDir(staging string, k keg.Keg) error {
	if !k.Exists() {
		if err := os.Rename(staging, k.Path); err != nil {
			return fmt.Errorf("moving keg into place: %w", err)
		}
		return nil
	}

	old := staging + ".old"
	if err := os.Rename(k.Path, old); err != nil {
		return fmt.Errorf("moving previous keg aside: %w", err)
	}
	if err := os.Rename(staging, k.Path); err != nil {
		_ = os.Rename(old, k.Path)
		return fmt.Errorf("moving keg into place: %w", err)
	}
	if err := os.RemoveAll(old); err != nil {
		slog.Warn("could not remove previous keg", "path", old, "error", err)
	}
	return nil
}

// Uninstall unlinks and removes every installed version of name.
func (i *Installer) Uninstall(_ context.Context, name string) ([]keg.Keg, error) {
	kegs, err := i.prefix.Kegs(name)
	if err != nil {
		return nil, err
	}
	if len(kegs) == 0 {
		return nil, fmt.Errorf("%s: %w", name, keg.ErrNotInstalled)
	}

	lock, err := acquireLock(i.cacheDir)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	for _, k := range kegs {
		if err := k.Unlink(i.prefix); err != nil {
			return nil, err
		}
		if err := k.Remove(); err != nil {
			return nil, err
		}
		slog.Info("uninstalled", "formula", k.Name, "version", k.Version)
	}
	return kegs, nil
}
