// SPDX-License-Identifier: MPL-2.0

package keg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jadnohra/tapkit/pkg/formula"
)

var (
	// ErrNotInstalled is returned when no keg exists for a formula.
	ErrNotInstalled = errors.New("formula is not installed")

	// ErrLinkConflict is returned when <prefix>/bin already holds a file that
	// tapkit did not create.
	ErrLinkConflict = errors.New("file already exists in bin directory")
)

type (
	// Prefix is the root of an install tree.
	Prefix string

	// Keg is one installed version of a formula.
	Keg struct {
		Name    string
		Version string
		Path    string
	}

	// ConflictError reports the bin entry that blocked linking.
	ConflictError struct {
		Path string
	}
)

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: not a tapkit link; remove it or install with a different prefix", e.Path)
}

// Unwrap returns ErrLinkConflict.
func (e *ConflictError) Unwrap() error { return ErrLinkConflict }

// Cellar returns the directory holding every keg.
func (p Prefix) Cellar() string { return filepath.Join(string(p), "Cellar") }

// Bin returns the directory executables are linked into.
func (p Prefix) Bin() string { return filepath.Join(string(p), "bin") }

// Keg returns the keg for name at version. It may not exist yet.
func (p Prefix) Keg(name, version string) Keg {
	return Keg{Name: name, Version: version, Path: filepath.Join(p.Cellar(), name, version)}
}

// Kegs lists the installed versions of name, oldest first.
func (p Prefix) Kegs(name string) ([]Keg, error) {
	entries, err := os.ReadDir(filepath.Join(p.Cellar(), name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var kegs []Keg
	for _, e := range entries {
		// Staging directories start with a dot.
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		kegs = append(kegs, p.Keg(name, e.Name()))
	}
	slices.SortFunc(kegs, func(a, b Keg) int { return formula.CompareVersions(a.Version, b.Version) })
	return kegs, nil
}

// Installed returns the newest installed keg of name.
func (p Prefix) Installed(name string) (Keg, error) {
	kegs, err := p.Kegs(name)
	if err != nil {
		return Keg{}, err
	}
	if len(kegs) == 0 {
		return Keg{}, fmt.Errorf("%s: %w", name, ErrNotInstalled)
	}
	return kegs[len(kegs)-1], nil
}

// List returns every installed keg ordered by name, then version.
func (p Prefix) List() ([]Keg, error) {
	entries, err := os.ReadDir(p.Cellar())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var all []Keg
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		kegs, err := p.Kegs(e.Name())
		if err != nil {
			return nil, err
		}
		all = append(all, kegs...)
	}
	return all, nil
}

// BinDir is the keg's executable directory.
func (k Keg) BinDir() string { return filepath.Join(k.Path, "bin") }

// FormulaPath is where the formula used for the install is kept.
func (k Keg) FormulaPath() string { return filepath.Join(k.Path, ".tapkit", "formula.cue") }

// Exists reports whether the keg directory is present.
func (k Keg) Exists() bool {
	info, err := os.Stat(k.Path)
	return err == nil && info.IsDir()
}

// Remove deletes the keg directory, and the formula's Cellar directory once
// it is empty.
func (k Keg) Remove() error {
	if err := os.RemoveAll(k.Path); err != nil {
		return fmt.Errorf("removing %s: %w", k.Path, err)
	}
	// Fails harmlessly while other versions remain.
	_ = os.Remove(filepath.Dir(k.Path))
	return nil
}

// Link symlinks every file in the keg's bin directory into p.Bin() and
// returns the created link paths. Links that point into the Cellar, for
// example at an older version, are replaced. Anything else is a conflict and
// nothing is linked.
func (k Keg) Link(p Prefix) ([]string, error) {
	entries, err := os.ReadDir(k.BinDir())
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", k.BinDir(), err)
	}
	if err := os.MkdirAll(p.Bin(), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", p.Bin(), err)
	}

	for _, e := range entries {
		dst := filepath.Join(p.Bin(), e.Name())
		if _, err := os.Lstat(dst); err == nil && !p.ownsLink(dst) {
			return nil, &ConflictError{Path: dst}
		}
	}

	links := make([]string, 0, len(entries))
	for _, e := range entries {
		src := filepath.Join(k.BinDir(), e.Name())
		dst := filepath.Join(p.Bin(), e.Name())

		target, err := filepath.Rel(p.Bin(), src)
		if err != nil {
			target = src
		}
		if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return links, fmt.Errorf("replacing %s: %w", dst, err)
		}
		if err := os.Symlink(target, dst); err != nil {
			return links, fmt.Errorf("linking %s: %w", dst, err)
		}
		links = append(links, dst)
	}
	return links, nil
}

// Unlink removes the links in p.Bin() that point into this keg.
func (k Keg) Unlink(p Prefix) error {
	entries, err := os.ReadDir(p.Bin())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, e := range entries {
		dst := filepath.Join(p.Bin(), e.Name())
		target, ok := resolveLink(dst)
		if !ok || !within(k.Path, target) {
			continue
		}
		if err := os.Remove(dst); err != nil {
			return fmt.Errorf("unlinking %s: %w", dst, err)
		}
	}
	return nil
}

func (p Prefix) ownsLink(path string) bool {
	target, ok := resolveLink(path)
	return ok && within(p.Cellar(), target)
}

// resolveLink returns the absolute target of the symlink at path.
func resolveLink(path string) (string, bool) {
	target, err := os.Readlink(path)
	if err != nil {
		return "", false
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return filepath.Clean(target), true
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
