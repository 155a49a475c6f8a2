// Copyright 2013 Dmitry Chestnykh. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package plugin declares the contract between the bundler host
// and its plugins.
package plugin

import (
	"context"
	"log/slog"
)

// Event names a lifecycle event a plugin can handle.
type Event string

const (
	// EventOutputPluginMain asks for output plugins of the main target.
	EventOutputPluginMain Event = "getOutputPlugin:main"
	// EventOutputPluginNPM asks for output plugins of the npm target.
	EventOutputPluginNPM Event = "getOutputPlugin:npm"
)

// Target is a build target.
type Target string

const (
	TargetMain Target = "main"
	TargetNPM  Target = "npm"
)

// OutputPluginEvent returns the event used to request output plugins
// for the target.
func (t Target) OutputPluginEvent() Event {
	if t == TargetNPM {
		return EventOutputPluginNPM
	}
	return EventOutputPluginMain
}

// Flags holds resolved command-line flag values addressed by flag name.
type Flags map[string]any

// Bool returns true only if the flag holds the boolean true.
func (f Flags) Bool(name string) bool {
	v, ok := f[name].(bool)
	return ok && v
}

// BuildContext is passed to output plugin handlers for each build.
type BuildContext struct {
	BuildID  string
	Target   Target
	CLIFlags Flags
}

// Chunk is a single output file produced by the bundler.
type Chunk struct {
	FileName string
	Code     []byte
	Map      []byte
}

// OutputPlugin transforms output chunks before they are written.
type OutputPlugin interface {
	Name() string
	RenderChunk(ctx context.Context, chunk Chunk) (Chunk, error)
}

// OutputPluginFunc returns an output plugin for the build,
// or nil if the plugin has nothing to contribute.
type OutputPluginFunc func(ctx context.Context, bc BuildContext) (OutputPlugin, error)

// FlagSpec describes a boolean command-line flag.
type FlagSpec struct {
	Name    string
	Usage   string
	Default bool
	// Negatable flags also accept --no-<name>.
	Negatable bool
}

// FlagRegistry accepts flags for the command being loaded.
type FlagRegistry interface {
	RegisterFlag(spec FlagSpec)
}

// ConfigRequest asks the host to locate a configuration file.
type ConfigRequest struct {
	ModuleName   string
	ErrorMessage string
}

// ConfigResult is a located configuration file.
type ConfigResult struct {
	// Config is the parsed file content. It's not necessarily an object.
	Config       any
	RelativePath string
}

// ConfigRequester locates user configuration files.
// RequestConfig returns nil result and nil error if nothing was found.
type ConfigRequester interface {
	RequestConfig(ctx context.Context, req ConfigRequest) (*ConfigResult, error)
}

// Host is the handle plugins receive on load.
type Host interface {
	FlagRegistry
	ConfigRequester
	HandleOutputPlugin(event Event, fn OutputPluginFunc)
	Logger() *slog.Logger
}

// LoadEvent is dispatched to every plugin once per process.
type LoadEvent struct {
	CommandID string
	Host      Host
}

// Plugin is implemented by host plugins.
type Plugin interface {
	ID() string
	OnLoad(ev LoadEvent)
}
