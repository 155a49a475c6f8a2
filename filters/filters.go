// Copyright 2013 Dmitry Chestnykh. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package filters implements minifying filters.
package filters

import (
	"fmt"
	"sort"
	"strings"
)

// Filter is an interface declaring a filter.
type Filter interface {
	Name() string
	Apply([]byte) ([]byte, error)
}

// Options are filter options addressed by name.
type Options map[string]any

// Maker is a type of function which accepts options
// for filter and returns a new instance of the filter.
type Maker func(Options) (Filter, error)

// makers stores builtin filter makers addressed by their names.
var makers = make(map[string]Maker)

// Register registers a new filter maker.
func Register(name string, maker Maker) {
	makers[name] = maker
}

// Names returns sorted names of registered filters.
func Names() []string {
	names := make([]string, 0, len(makers))
	for k := range makers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Make creates a new filter by name with the given options.
func Make(name string, opts Options) (Filter, error) {
	maker := makers[name]
	if maker == nil {
		return nil, fmt.Errorf("filter %s not found", name)
	}
	return maker(opts)
}

// Collection is a collection of filters addressed by file extension.
type Collection struct {
	filters map[string]Filter
}

// NewCollection returns a new collection.
func NewCollection() *Collection {
	return &Collection{
		filters: make(map[string]Filter),
	}
}

// Add makes a filter and adds it to collection to be addressable
// by each of the given extensions. Extensions must start with dot.
func (c *Collection) Add(filterName string, opts Options, extensions ...string) error {
	f, err := Make(filterName, opts)
	if err != nil {
		return err
	}
	c.Set(f, extensions...)
	return nil
}

// Set adds filter to collection to be addressable by each of the
// given extensions.
func (c *Collection) Set(f Filter, extensions ...string) {
	for _, ext := range extensions {
		c.filters[strings.ToLower(ext)] = f
	}
}

// Get returns a filter for extension.
// It returns nil if the filter wasn't found.
func (c *Collection) Get(ext string) Filter {
	return c.filters[strings.ToLower(ext)]
}

// ApplyFilter applies a filter found by extension to the given data.
// If the filter wasn't found, returns the original data.
func (c *Collection) ApplyFilter(ext string, in []byte) (out []byte, err error) {
	f := c.Get(ext)
	if f == nil {
		return in, nil
	}
	return f.Apply(in)
}
