// Copyright 2013 Dmitry Chestnykh. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package locator finds and parses tool configuration files.
//
// For a module named "terser", Search looks in each directory, starting
// from the given one and walking up to the stop directory, for:
//
//	package.json          ("terser" property)
//	.terserrc             (YAML or JSON)
//	.terserrc.json
//	.terserrc.yaml
//	.terserrc.yml
//	.terserrc.toml
//	terser.config.json
//	terser.config.yaml
//	terser.config.yml
//	terser.config.toml
//
// The first file that exists and has content wins.
package locator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Result is a found configuration.
type Result struct {
	// Config is the parsed content: map[string]any for objects,
	// but any other YAML, JSON or TOML value is possible.
	Config any
	// Filepath is the absolute path to the file.
	Filepath string
	// RelativePath is the path relative to the locator's base directory.
	RelativePath string
}

type loader func(data []byte, module string) (any, bool, error)

// Locator searches for configuration files.
type Locator struct {
	baseDir string
	stopDir string
}

// New returns a locator which starts searching in dir and stops
// at stopDir. Paths in results are relative to dir. If stopDir is
// empty, the search doesn't go above dir.
func New(dir, stopDir string) (*Locator, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if stopDir == "" {
		stopDir = dir
	}
	stopDir, err = filepath.Abs(stopDir)
	if err != nil {
		return nil, err
	}
	return &Locator{baseDir: dir, stopDir: stopDir}, nil
}

// SearchPlaces returns file names checked in each directory.
func SearchPlaces(module string) []string {
	return []string{
		"package.json",
		"." + module + "rc",
		"." + module + "rc.json",
		"." + module + "rc.yaml",
		"." + module + "rc.yml",
		"." + module + "rc.toml",
		module + ".config.json",
		module + ".config.yaml",
		module + ".config.yml",
		module + ".config.toml",
	}
}

func loaderFor(name string) loader {
	switch filepath.Ext(name) {
	case ".json":
		if name == "package.json" {
			return loadPackageProp
		}
		return loadJSON
	case ".yaml", ".yml":
		return loadYAML
	case ".toml":
		return loadTOML
	}
	// rc file without extension.
	return loadYAML
}

// Search returns the first configuration found for module,
// or nil if there's none. Files that fail to parse return an error
// with message prepended.
func (l *Locator) Search(module, message string) (*Result, error) {
	if message == "" {
		message = fmt.Sprintf("failed to load %s config", module)
	}
	dir := l.baseDir
	for {
		for _, name := range SearchPlaces(module) {
			filename := filepath.Join(dir, name)
			data, err := os.ReadFile(filename)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				return nil, fmt.Errorf("%s: %w", message, err)
			}
			if len(bytes.TrimSpace(data)) == 0 {
				continue
			}
			config, ok, err := loaderFor(name)(data, module)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", message, l.rel(filename), err)
			}
			if !ok {
				continue
			}
			return &Result{
				Config:       config,
				Filepath:     filename,
				RelativePath: l.rel(filename),
			}, nil
		}
		if dir == l.stopDir {
			return nil, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

func (l *Locator) rel(filename string) string {
	rel, err := filepath.Rel(l.baseDir, filename)
	if err != nil {
		return filename
	}
	return filepath.ToSlash(rel)
}

func loadJSON(data []byte, _ string) (any, bool, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func loadYAML(data []byte, _ string) (any, bool, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func loadTOML(data []byte, _ string) (any, bool, error) {
	var v map[string]any
	if err := toml.Unmarshal(data, &v); err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// loadPackageProp returns the module property of package.json.
// Missing property means the file doesn't hold configuration.
func loadPackageProp(data []byte, module string) (any, bool, error) {
	var pkg map[string]json.RawMessage
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, false, err
	}
	raw, ok := pkg[module]
	if !ok {
		return nil, false, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false, err
	}
	return v, true, nil
}
