// Copyright 2013 Dmitry Chestnykh. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package filters

// `esbuild` minifies JavaScript with esbuild. It accepts options in
// terser vocabulary (compress, mangle, ecma, module, format) and maps
// them to esbuild transform options. Options without an esbuild
// equivalent, such as compress.passes, are accepted and ignored.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

func init() {
	Register("esbuild", func(opts Options) (Filter, error) {
		return NewESBuild(opts)
	})
}

// ESBuild is a JavaScript minifier filter.
type ESBuild struct {
	opts api.TransformOptions
}

// NewESBuild returns a new filter configured from terser-style options.
func NewESBuild(opts Options) (*ESBuild, error) {
	to, err := transformOptions(opts)
	if err != nil {
		return nil, err
	}
	return &ESBuild{opts: to}, nil
}

func (f *ESBuild) Name() string { return "esbuild" }

// TransformOptions returns a copy of options passed to esbuild.
func (f *ESBuild) TransformOptions() api.TransformOptions { return f.opts }

// WithFormat returns a copy of the filter producing output in format.
func (f *ESBuild) WithFormat(format api.Format) *ESBuild {
	opts := f.opts
	opts.Format = format
	return &ESBuild{opts: opts}
}

func (f *ESBuild) Apply(in []byte) (out []byte, err error) {
	code, _, err := f.Transform("", in)
	return code, err
}

// Transform minifies source and returns code and, if enabled with
// sourceMap option, the external source map.
func (f *ESBuild) Transform(filename string, in []byte) (code, sourceMap []byte, err error) {
	opts := f.opts
	opts.Sourcefile = filename
	result := api.Transform(string(in), opts)
	if len(result.Errors) > 0 {
		return nil, nil, messagesError(result.Errors)
	}
	return result.Code, result.Map, nil
}

func messagesError(msgs []api.Message) error {
	errs := make([]error, len(msgs))
	for i, m := range msgs {
		if m.Location != nil {
			errs[i] = fmt.Errorf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
		} else {
			errs[i] = errors.New(m.Text)
		}
	}
	return errors.Join(errs...)
}

func transformOptions(opts Options) (to api.TransformOptions, err error) {
	to.Loader = api.LoaderJS
	to.LegalComments = api.LegalCommentsInline

	compress, compressOpts, err := enabledSection(opts, "compress")
	if err != nil {
		return to, err
	}
	if compress {
		to.MinifySyntax = true
		to.MinifyWhitespace = true
		// terser drops debugger statements unless told otherwise.
		if v, _ := optBool(compressOpts, "drop_debugger", true); v {
			to.Drop |= api.DropDebugger
		}
		if v, _ := optBool(compressOpts, "drop_console", false); v {
			to.Drop |= api.DropConsole
		}
		if to.Pure, err = optStrings(compressOpts, "pure_funcs"); err != nil {
			return to, err
		}
	}

	mangle, mangleOpts, err := enabledSection(opts, "mangle")
	if err != nil {
		return to, err
	}
	if mangle {
		to.MinifyIdentifiers = true
		if props, ok := mangleOpts["properties"].(map[string]any); ok {
			if re, ok := props["regex"].(string); ok {
				to.MangleProps = re
			}
		}
	}

	for _, section := range []Options{opts, compressOpts, mangleOpts} {
		for _, name := range []string{"keep_fnames", "keep_classnames"} {
			if v, _ := optBool(section, name, false); v {
				to.KeepNames = true
			}
		}
	}

	if v, ok := opts["ecma"]; ok {
		n, ok := toInt(v)
		if !ok {
			return to, fmt.Errorf("ecma: expected number, got %T", v)
		}
		if to.Target, err = ecmaTarget(n); err != nil {
			return to, err
		}
	}

	module, err := optBool(opts, "module", false)
	if err != nil {
		return to, err
	}
	if module {
		to.Format = api.FormatESModule
	}

	for _, name := range []string{"format", "output"} {
		section, ok := opts[name].(map[string]any)
		if !ok {
			continue
		}
		switch c := section["comments"].(type) {
		case bool:
			if !c {
				to.LegalComments = api.LegalCommentsNone
			}
		case string:
			if c == "false" {
				to.LegalComments = api.LegalCommentsNone
			}
		}
	}

	if v, ok := opts["sourceMap"]; ok && truthy(v) {
		to.Sourcemap = api.SourceMapExternal
	}
	return to, nil
}

// enabledSection interprets an option which can be either a boolean
// or an object with sub-options. Objects mean enabled. Missing options
// are enabled, as in terser.
func enabledSection(opts Options, name string) (bool, Options, error) {
	v, ok := opts[name]
	if !ok || v == nil {
		return true, nil, nil
	}
	switch x := v.(type) {
	case bool:
		return x, nil, nil
	case map[string]any:
		return true, Options(x), nil
	case Options:
		return true, x, nil
	default:
		return false, nil, fmt.Errorf("%s: expected boolean or object, got %T", name, v)
	}
}

func ecmaTarget(n int) (api.Target, error) {
	switch {
	case n == 5:
		return api.ES5, nil
	case n == 6 || n == 2015:
		return api.ES2015, nil
	case n == 2016:
		return api.ES2016, nil
	case n == 2017:
		return api.ES2017, nil
	case n == 2018:
		return api.ES2018, nil
	case n == 2019:
		return api.ES2019, nil
	case n == 2020:
		return api.ES2020, nil
	case n == 2021:
		return api.ES2021, nil
	case n == 2022:
		return api.ES2022, nil
	case n > 2022:
		return api.ESNext, nil
	}
	return api.DefaultTarget, fmt.Errorf("ecma: unsupported version %d", n)
}

func optBool(opts Options, name string, def bool) (bool, error) {
	v, ok := opts[name]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return def, fmt.Errorf("%s: expected boolean, got %T", name, v)
	}
	return b, nil
}

func optStrings(opts Options, name string) ([]string, error) {
	v, ok := opts[name]
	if !ok || v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case string:
		return []string{x}, nil
	case []string:
		return x, nil
	case []any:
		out := make([]string, len(x))
		for i, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%s: not an array of strings", name)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s: expected string or array, got %T", name, v)
}

// toInt converts numbers produced by JSON, YAML and TOML decoders.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != "" && !strings.EqualFold(x, "false")
	case nil:
		return false
	}
	return true
}
