// Copyright 2013 Dmitry Chestnykh. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package host implements the bundler host: the plugin manager,
// project configuration and the build itself.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dchest/minibundle/locator"
	"github.com/dchest/minibundle/plugin"
)

// ConfigLocator finds configuration files for plugins.
// It's implemented by *locator.Locator.
type ConfigLocator interface {
	Search(module, message string) (*locator.Result, error)
}

// Manager loads plugins and dispatches lifecycle events to them.
type Manager struct {
	logger  *slog.Logger
	locator ConfigLocator

	mu       sync.Mutex
	plugins  []plugin.Plugin
	loaded   bool
	command  string
	flags    []plugin.FlagSpec
	handlers map[plugin.Event][]plugin.OutputPluginFunc
}

// NewManager returns a new plugin manager. Configuration requests
// are answered with loc; if it's nil, nothing is ever found.
func NewManager(logger *slog.Logger, loc ConfigLocator) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:   logger,
		locator:  loc,
		handlers: make(map[plugin.Event][]plugin.OutputPluginFunc),
	}
}

// SetLocator replaces the configuration locator. Plugins may be
// loaded before the project directory is known.
func (m *Manager) SetLocator(loc ConfigLocator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locator = loc
}

// Register adds plugins. Plugins must be registered before Load.
func (m *Manager) Register(plugins ...plugin.Plugin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return ErrAlreadyLoaded
	}
	for _, p := range plugins {
		for _, q := range m.plugins {
			if q.ID() == p.ID() {
				return fmt.Errorf("plugin %q already registered", p.ID())
			}
		}
		m.plugins = append(m.plugins, p)
	}
	return nil
}

// Load dispatches the load event for commandID to every plugin.
// It can be called once per process.
func (m *Manager) Load(commandID string) error {
	m.mu.Lock()
	if m.loaded {
		m.mu.Unlock()
		return ErrAlreadyLoaded
	}
	m.loaded = true
	m.command = commandID
	plugins := append([]plugin.Plugin(nil), m.plugins...)
	m.mu.Unlock()

	for _, p := range plugins {
		m.logger.Debug("Loading plugin", "plugin", p.ID(), "command", commandID)
		p.OnLoad(plugin.LoadEvent{
			CommandID: commandID,
			Host:      &pluginHost{m: m, id: p.ID()},
		})
	}
	return nil
}

// Command returns the command plugins were loaded for.
func (m *Manager) Command() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.command
}

// Flags returns flags registered by plugins for the loaded command.
func (m *Manager) Flags() []plugin.FlagSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]plugin.FlagSpec(nil), m.flags...)
}

// OutputPlugins asks plugins for output plugins of the build target.
// Plugins that return nothing are skipped.
func (m *Manager) OutputPlugins(ctx context.Context, bc plugin.BuildContext) ([]plugin.OutputPlugin, error) {
	m.mu.Lock()
	handlers := append([]plugin.OutputPluginFunc(nil), m.handlers[bc.Target.OutputPluginEvent()]...)
	m.mu.Unlock()

	var out []plugin.OutputPlugin
	for _, fn := range handlers {
		op, err := fn(ctx, bc)
		if err != nil {
			return nil, err
		}
		if op != nil {
			out = append(out, op)
		}
	}
	return out, nil
}

// RequestConfig locates configuration with the manager's locator.
func (m *Manager) RequestConfig(ctx context.Context, req plugin.ConfigRequest) (*plugin.ConfigResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	loc := m.locator
	m.mu.Unlock()
	if loc == nil {
		return nil, nil
	}
	res, err := loc.Search(req.ModuleName, req.ErrorMessage)
	if err != nil || res == nil {
		return nil, err
	}
	return &plugin.ConfigResult{Config: res.Config, RelativePath: res.RelativePath}, nil
}

// pluginHost is the handle given to a single plugin.
type pluginHost struct {
	m  *Manager
	id string
}

func (h *pluginHost) RegisterFlag(spec plugin.FlagSpec) {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	for _, f := range h.m.flags {
		if f.Name == spec.Name {
			h.m.logger.Warn("Flag already registered, ignoring", "flag", spec.Name, "plugin", h.id)
			return
		}
	}
	h.m.flags = append(h.m.flags, spec)
}

func (h *pluginHost) RequestConfig(ctx context.Context, req plugin.ConfigRequest) (*plugin.ConfigResult, error) {
	return h.m.RequestConfig(ctx, req)
}

func (h *pluginHost) HandleOutputPlugin(ev plugin.Event, fn plugin.OutputPluginFunc) {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	h.m.handlers[ev] = append(h.m.handlers[ev], fn)
}

func (h *pluginHost) Logger() *slog.Logger {
	return h.m.logger
}
