// Copyright 2013 Dmitry Chestnykh. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package minify implements the output minification plugin.
//
// The plugin contributes the --compress flag to the bundle command and
// returns a minifying transform for main and npm build targets. Minifier
// options are read from a user "terser" configuration file located by
// the host, or taken from DefaultConfig.
package minify

import (
	"context"
	"log/slog"
	"os"

	"github.com/dchest/minibundle/plugin"
)

const (
	// ID is the plugin identifier.
	ID = "minify"

	// ConfigModuleName is the name of configuration looked up by the host.
	ConfigModuleName = "terser"

	// BundleCommand is the only command the plugin adds flags to.
	BundleCommand = "bundle"

	FlagCompress          = "compress"
	FlagIgnoreLocalConfig = "ignore-local-config"

	DefaultEnvPrefix = "MINIBUNDLE"
)

// Config is a set of minifier options in terser vocabulary.
type Config map[string]any

// DefaultConfig returns a new copy of the built-in configuration.
func DefaultConfig() Config {
	return Config{
		"compress": map[string]any{
			"booleans_as_integers": true,
			"passes":               3,
		},
		"mangle": map[string]any{
			"toplevel": true,
		},
		"ecma":   2020,
		"module": true,
	}
}

// Options configure the plugin.
type Options struct {
	// EnvPrefix is prepended to environment variable names
	// (EnvPrefix + "_COMPRESS"). Defaults to DefaultEnvPrefix.
	EnvPrefix string

	// Getenv looks up environment variables. Defaults to os.Getenv.
	Getenv func(string) string

	// Logger is used until the host provides its own on load.
	Logger *slog.Logger
}

// Plugin is the minification plugin.
type Plugin struct {
	envPrefix string
	getenv    func(string) string
	logger    *slog.Logger
	host      plugin.ConfigRequester
}

// New returns a new plugin.
func New(opts Options) *Plugin {
	p := &Plugin{
		envPrefix: opts.EnvPrefix,
		getenv:    opts.Getenv,
		logger:    opts.Logger,
	}
	if p.envPrefix == "" {
		p.envPrefix = DefaultEnvPrefix
	}
	if p.getenv == nil {
		p.getenv = os.Getenv
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

func (p *Plugin) ID() string { return ID }

// OnLoad registers output plugin handlers for both targets
// and adds flags for the loaded command.
func (p *Plugin) OnLoad(ev plugin.LoadEvent) {
	p.host = ev.Host
	if l := ev.Host.Logger(); l != nil {
		p.logger = l.With("plugin", ID)
	}
	ev.Host.HandleOutputPlugin(plugin.EventOutputPluginMain, p.OutputPlugin)
	ev.Host.HandleOutputPlugin(plugin.EventOutputPluginNPM, p.OutputPlugin)
	p.AddFlags(ev.CommandID, ev.Host)
}

// CompressEnv returns the name of environment variable
// holding default value of the compress flag.
func (p *Plugin) CompressEnv() string {
	return p.envPrefix + "_COMPRESS"
}

// compressDefault is true unless the environment variable is exactly "false".
func (p *Plugin) compressDefault() bool {
	switch p.getenv(p.CompressEnv()) {
	case "true":
		return true
	case "false":
		return false
	default:
		return true
	}
}

// AddFlags registers the compress flag for the bundle command.
func (p *Plugin) AddFlags(commandID string, reg plugin.FlagRegistry) {
	if commandID != BundleCommand {
		return
	}
	reg.RegisterFlag(plugin.FlagSpec{
		Name:      FlagCompress,
		Usage:     "minify output (default from $" + p.CompressEnv() + ")",
		Default:   p.compressDefault(),
		Negatable: true,
	})
}

// OutputPlugin returns a minifying transform, or nil if compression
// wasn't requested.
func (p *Plugin) OutputPlugin(ctx context.Context, bc plugin.BuildContext) (plugin.OutputPlugin, error) {
	if !bc.CLIFlags.Bool(FlagCompress) {
		return nil, nil
	}
	return NewTransform(p.ResolveConfig(ctx, bc.CLIFlags)).forTarget(bc.Target), nil
}

// ResolveConfig returns configuration from the user's local terser
// configuration file, or the default one if the file is ignored,
// missing, or unusable.
func (p *Plugin) ResolveConfig(ctx context.Context, flags plugin.Flags) Config {
	if flags.Bool(FlagIgnoreLocalConfig) {
		return DefaultConfig()
	}
	if p.host == nil {
		p.logger.Warn("No config locator available, using default config")
		return DefaultConfig()
	}
	res, err := p.host.RequestConfig(ctx, plugin.ConfigRequest{
		ModuleName:   ConfigModuleName,
		ErrorMessage: "Failed to load local terser config",
	})
	if err != nil {
		p.logger.Warn("Local terser config not loaded, using default config", "error", err)
		return DefaultConfig()
	}
	if res == nil {
		p.logger.Warn("No local terser config found, using default config")
		return DefaultConfig()
	}
	config, ok := res.Config.(map[string]any)
	if !ok {
		p.logger.Warn("Local terser config is not an object, using default config", "path", res.RelativePath)
		return DefaultConfig()
	}
	if len(config) == 0 {
		p.logger.Warn("Local terser config is empty, using default config", "path", res.RelativePath)
		return DefaultConfig()
	}
	p.logger.Info("Using local terser config", "path", res.RelativePath)
	return Config(config)
}
