// Copyright 2013 Dmitry Chestnykh. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package utils contains utility functions.
package utils

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAMLFile reads YAML file and unmarshals it into data.
func UnmarshalYAMLFile(filename string, data interface{}) error {
	b, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, data)
}

// StripEndSlash returns a string with ending slash removed,
// or if there was no slash, returns the original string.
func StripEndSlash(s string) string {
	if len(s) > 0 && (s[len(s)-1] == '/' || s[len(s)-1] == filepath.Separator) {
		s = s[:len(s)-1]
	}
	return s
}

// DirExist returns true if the given directory exists.
func DirExist(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.IsDir()
}

// HasFileExt returns true if filename has one of the given extensions.
// Extensions must start with dot. Comparison is case-insensitive.
func HasFileExt(filename string, extensions []string) bool {
	ext := filepath.Ext(filename)
	for _, v := range extensions {
		if strings.EqualFold(v, ext) {
			return true
		}
	}
	return false
}

// IsInDir returns true if path is dir or is inside it.
func IsInDir(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// IsIgnoredFile returns true if filename should be ignored when
// watching for changes.
func IsIgnoredFile(filename string) bool {
	base := filepath.Base(filename)
	// Files ending with ~ are considered temporary.
	if strings.HasSuffix(base, "~") {
		return true
	}
	// Crap from OS X Finder.
	if base == ".DS_Store" {
		return true
	}
	return false
}
