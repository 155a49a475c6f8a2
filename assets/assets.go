// Package assets implements static assets: files concatenated into
// a single output file named by hash of its content.
package assets

import (
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dchest/minibundle/filters"
)

// Asset describes a single output file made of one or more
// source files.
type Asset struct {
	Name          string          `yaml:"name"`
	Filter        string          `yaml:"filter,omitempty"`
	FilterOptions filters.Options `yaml:"filter_options,omitempty"`
	Files         []string        `yaml:"files"`
	Separator     string          `yaml:"separator,omitempty"`
	OutName       string          `yaml:"outname"`

	filter filters.Filter
}

// Load checks assets and makes their filters.
func Load(assets []*Asset) error {
	names := make(map[string]bool)
	for _, a := range assets {
		if a.Name == "" {
			return fmt.Errorf("asset without name")
		}
		if names[a.Name] {
			return fmt.Errorf("duplicate asset name %q", a.Name)
		}
		names[a.Name] = true
		if len(a.Files) == 0 {
			return fmt.Errorf("asset %q has no files", a.Name)
		}
		if a.Filter != "" {
			f, err := filters.Make(a.Filter, a.FilterOptions)
			if err != nil {
				return fmt.Errorf("asset %q: %w", a.Name, err)
			}
			a.filter = f
		}
	}
	return nil
}

// fillTemplate replaces ":hash" in template with base32 characters
// of hash and returns the result.
func fillTemplate(template string, hash []byte) string {
	// 10 bytes of hash is enough to avoid accidental collisions.
	hs := strings.ToLower(base32.StdEncoding.EncodeToString(hash[:10]))
	return strings.ReplaceAll(template, ":hash", hs)
}

func concatFiles(filenames []string, separator string) (out []byte, err error) {
	sep := []byte(separator)
	for i, f := range filenames {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
		if i != len(filenames)-1 {
			out = append(out, sep...)
		}
	}
	return out, nil
}

// Process concatenates asset files relative to baseDir and filters the
// result. It returns the slash-separated output name and the content.
func (a *Asset) Process(baseDir string) (name string, data []byte, err error) {
	files := make([]string, len(a.Files))
	for i, f := range a.Files {
		files[i] = filepath.Join(baseDir, filepath.FromSlash(f))
	}
	data, err = concatFiles(files, a.Separator)
	if err != nil {
		return "", nil, err
	}
	if a.filter != nil {
		data, err = a.filter.Apply(data)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", a.filter.Name(), err)
		}
	}
	hash := sha256.Sum256(data)
	name = fillTemplate(a.OutName, hash[:])
	if name == "" {
		// Use hash with extension of the first file.
		name = fillTemplate(":hash", hash[:]) + filepath.Ext(a.Files[0])
	}
	return name, data, nil
}
