// SPDX-License-Identifier: MPL-2.0

package formula

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jadnohra/tapkit/pkg/cueutil"
)

const schemaPath = "#Formula"

//go:embed formula_schema.cue
var schema []byte

// Extensions lists the manifest formats Load understands, in lookup order.
var Extensions = []string{".cue", ".toml", ".yaml", ".yml"}

// Load reads and parses the formula at path. The format is chosen from the
// file extension.
func Load(path string) (*Formula, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading formula: %w", err)
	}

	f, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	f.Path = path
	return f, nil
}

// Parse decodes a formula from data. filename selects the format and is used
// in error messages.
func Parse(data []byte, filename string) (*Formula, error) {
	opts := []cueutil.Option{cueutil.WithFilename(filename)}

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".cue", "":
		res, err := cueutil.ParseAndDecode[Formula](schema, data, schemaPath, opts...)
		if err != nil {
			return nil, err
		}
		return res.Value, nil

	case ".toml":
		if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, filename); err != nil {
			return nil, err
		}
		var doc map[string]any
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		return decodeDocument(doc, opts)

	case ".yaml", ".yml":
		if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, filename); err != nil {
			return nil, err
		}
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		return decodeDocument(doc, opts)

	default:
		return nil, fmt.Errorf("%s: unsupported formula format %q (want one of %s)",
			filename, ext, strings.Join(Extensions, ", "))
	}
}

func decodeDocument(doc map[string]any, opts []cueutil.Option) (*Formula, error) {
	if doc == nil {
		doc = map[string]any{}
	}
	res, err := cueutil.EncodeAndDecode[Formula](schema, doc, schemaPath, opts...)
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

// IsPathRef reports whether ref names a manifest file rather than a formula.
// Names may contain dots, so only a directory separator or one of Extensions
// marks a path.
func IsPathRef(ref string) bool {
	if strings.ContainsRune(ref, os.PathSeparator) || strings.ContainsRune(ref, '/') {
		return true
	}
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(ref)))
}

// Find resolves a formula reference. ref is either a path to a manifest or a
// bare name looked up as <dir>/<name><ext> in each of dirs.
func Find(ref string, dirs ...string) (string, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return ref, nil
	}
	if IsPathRef(ref) {
		return "", fmt.Errorf("formula file %s: %w", ref, os.ErrNotExist)
	}

	for _, dir := range dirs {
		for _, ext := range Extensions {
			candidate := filepath.Join(dir, ref+ext)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("no formula named %q in %s: %w", ref, strings.Join(dirs, ", "), os.ErrNotExist)
}
