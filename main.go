// Copyright 2013 Dmitry Chestnykh. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/dchest/minibundle/hashcache"
	"github.com/dchest/minibundle/host"
	"github.com/dchest/minibundle/locator"
	"github.com/dchest/minibundle/logging"
	"github.com/dchest/minibundle/minify"
	"github.com/dchest/minibundle/plugin"
)

// Version is set during build using ldflags.
var Version = "dev"

const envPrefix = minify.DefaultEnvPrefix

const (
	flagDir      = "dir"
	flagConfig   = "config"
	flagLogLevel = "log-level"
	flagWatch    = "watch"
	flagNoClean  = "noclean"
)

// valueFlags are global flags that take a value.
var valueFlags = map[string]bool{
	flagDir:      true,
	"C":          true,
	flagConfig:   true,
	"c":          true,
	flagLogLevel: true,
}

// scanArgs returns the command name and the log level given in
// command line arguments (without program name). Plugins add flags
// to commands, so the command must be known before parsing.
func scanArgs(args []string) (command, logLevel string) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			if i+1 < len(args) {
				command = args[i+1]
			}
			return
		}
		if !strings.HasPrefix(a, "-") || a == "-" {
			return a, logLevel
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !valueFlags[name] || hasValue {
			if name == flagLogLevel {
				logLevel = value
			}
			continue
		}
		if i+1 < len(args) {
			i++
			if name == flagLogLevel {
				logLevel = args[i]
			}
		}
	}
	return
}

// app is the command line application.
type app struct {
	manager *host.Manager
	logger  *slog.Logger
}

// newApp loads plugins for the command in args and returns
// the application.
func newApp(args []string, getenv func(string) string, stderr io.Writer) (*app, error) {
	command, level := scanArgs(args)
	if level == "" {
		level = getenv(envPrefix + "_LOG_LEVEL")
	}
	logger := logging.New(level, stderr)

	m := host.NewManager(logger, nil)
	err := m.Register(minify.New(minify.Options{
		EnvPrefix: envPrefix,
		Getenv:    getenv,
	}))
	if err != nil {
		return nil, err
	}
	if err := m.Load(command); err != nil {
		return nil, err
	}
	return &app{manager: m, logger: logger}, nil
}

// pluginFlags converts flags registered by plugins to command flags.
func pluginFlags(specs []plugin.FlagSpec) []cli.Flag {
	flags := make([]cli.Flag, 0, len(specs))
	for _, s := range specs {
		if s.Negatable {
			flags = append(flags, &cli.BoolWithInverseFlag{Name: s.Name, Usage: s.Usage, Value: s.Default})
		} else {
			flags = append(flags, &cli.BoolFlag{Name: s.Name, Usage: s.Usage, Value: s.Default})
		}
	}
	return flags
}

func (a *app) command(stdout, stderr io.Writer) *cli.Command {
	root := &cli.Command{
		Name:      "minibundle",
		Version:   Version,
		Usage:     "bundle and minify JavaScript",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagDir,
				Aliases: []string{"C"},
				Usage:   "project directory",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "project configuration file (default: " + host.ConfigFileName + " in project directory)",
			},
			&cli.StringFlag{
				Name:    flagLogLevel,
				Usage:   "log level (" + strings.Join(logging.Levels, ", ") + ")",
				Value:   "info",
				Sources: cli.EnvVars(envPrefix + "_LOG_LEVEL"),
				Validator: func(level string) error {
					if !slices.Contains(logging.Levels, strings.ToLower(level)) {
						return fmt.Errorf("unknown log level %q", level)
					}
					return nil
				},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  minify.BundleCommand,
				Usage: "bundle entries and write output files",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: minify.FlagIgnoreLocalConfig, Usage: "don't look for local minifier configuration"},
					&cli.BoolFlag{Name: flagWatch, Usage: "watch for changes and rebuild"},
					&cli.BoolFlag{Name: flagNoClean, Usage: "don't delete output directories before building"},
				},
				Action: a.bundle,
			},
			{
				Name:   "clean",
				Usage:  "remove output directories and cache",
				Action: a.clean,
			},
			{
				Name:  "version",
				Usage: "print version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Fprintf(cmd.Root().Writer, "minibundle version %s\n", cmd.Root().Version)
					return nil
				},
			},
		},
	}
	for _, c := range root.Commands {
		if c.Name != a.manager.Command() {
			continue
		}
		for _, f := range pluginFlags(a.manager.Flags()) {
			if hasFlag(c, f.Names()[0]) {
				a.logger.Warn("Plugin flag conflicts with command flag, ignoring", "flag", f.Names()[0])
				continue
			}
			c.Flags = append(c.Flags, f)
		}
	}
	return root
}

func hasFlag(c *cli.Command, name string) bool {
	for _, f := range c.Flags {
		for _, n := range f.Names() {
			if n == name {
				return true
			}
		}
	}
	return false
}

// cliFlags returns values of command flags passed to plugins.
func (a *app) cliFlags(cmd *cli.Command) plugin.Flags {
	flags := plugin.Flags{
		minify.FlagIgnoreLocalConfig: cmd.Bool(minify.FlagIgnoreLocalConfig),
		flagWatch:                    cmd.Bool(flagWatch),
		flagNoClean:                  cmd.Bool(flagNoClean),
	}
	for _, s := range a.manager.Flags() {
		if _, ok := flags[s.Name]; ok {
			continue
		}
		flags[s.Name] = cmd.Value(s.Name)
	}
	return flags
}

func readConfig(cmd *cli.Command) (*host.Config, error) {
	dir, err := filepath.Abs(cmd.String(flagDir))
	if err != nil {
		return nil, err
	}
	filename := cmd.String(flagConfig)
	if filename == "" {
		return host.ReadConfig(dir)
	}
	return host.ReadConfigFile(dir, filename)
}

func (a *app) bundle(ctx context.Context, cmd *cli.Command) error {
	c, err := readConfig(cmd)
	if err != nil {
		return err
	}
	loc, err := locator.New(c.BaseDir, "")
	if err != nil {
		return err
	}
	a.manager.SetLocator(loc)

	b, err := host.NewBuilder(c, a.manager, a.logger)
	if err != nil {
		return err
	}
	b.SetCleanBeforeBuilding(!cmd.Bool(flagNoClean))
	flags := a.cliFlags(cmd)

	if !cmd.Bool(flagWatch) {
		return b.Build(ctx, flags)
	}
	cache, err := hashcache.Open(filepath.Join(c.BaseDir, host.CacheFileName))
	if err != nil {
		a.logger.Warn("Cannot open output cache", "error", err)
		cache, _ = hashcache.Open("")
	}
	b.SetCache(cache)
	if err := b.Build(ctx, flags); err != nil {
		a.logger.Error("Build failed", "error", err)
	}
	// Cleaning would reset the cache on every change.
	b.SetCleanBeforeBuilding(false)
	return host.NewWatcher(c, a.logger).Watch(ctx, func(ctx context.Context) error {
		return b.Build(ctx, flags)
	})
}

func (a *app) clean(ctx context.Context, cmd *cli.Command) error {
	c, err := readConfig(cmd)
	if err != nil {
		return err
	}
	b, err := host.NewBuilder(c, a.manager, a.logger)
	if err != nil {
		return err
	}
	if err := b.Clean(); err != nil {
		return err
	}
	err = os.Remove(filepath.Join(c.BaseDir, host.CacheFileName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) error {
	a, err := newApp(args[1:], getenv, stderr)
	if err != nil {
		return err
	}
	return a.command(stdout, stderr).Run(ctx, args)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "! Cannot load .env: %s\n", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args, os.Getenv, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "! %s\n", err)
		os.Exit(1)
	}
}
