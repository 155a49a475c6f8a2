package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dchest/minibundle/filewriter"
	"github.com/dchest/minibundle/hashcache"
	"github.com/dchest/minibundle/plugin"
)

// Builder bundles project entries for every target and passes
// output through plugins.
type Builder struct {
	config  *Config
	manager *Manager
	writer  *filewriter.FileWriter
	cache   *hashcache.Cache
	logger  *slog.Logger

	cleanBeforeBuilding bool
}

// NewBuilder returns a new builder for the project.
func NewBuilder(c *Config, m *Manager, logger *slog.Logger) (*Builder, error) {
	w, err := filewriter.New(c.Precompress)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		config:  c,
		manager: m,
		writer:  w,
		logger:  logger,
	}, nil
}

// SetCache enables skipping of unchanged output files.
func (b *Builder) SetCache(c *hashcache.Cache) {
	b.cache = c
}

func (b *Builder) SetCleanBeforeBuilding(clean bool) {
	b.cleanBeforeBuilding = clean
}

type target struct {
	name   plugin.Target
	outDir string
	format api.Format
}

func (b *Builder) targets() []target {
	dirs := b.config.OutDirs()
	t := []target{{name: plugin.TargetMain, outDir: dirs[0], format: api.FormatESModule}}
	if len(dirs) > 1 {
		t = append(t, target{name: plugin.TargetNPM, outDir: dirs[1], format: api.FormatCommonJS})
	}
	return t
}

// Build builds every target concurrently with the given resolved flags.
func (b *Builder) Build(ctx context.Context, flags plugin.Flags) error {
	if len(b.config.Entries) == 0 {
		return ErrNoEntries
	}
	t := time.Now()
	buildID := uuid.NewString()
	logger := b.logger.With("build", buildID)
	defer func() {
		logger.Info("Build finished", "duration", time.Since(t).Round(time.Millisecond))
	}()

	if b.cleanBeforeBuilding {
		if err := b.Clean(); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, tg := range b.targets() {
		tg := tg
		g.Go(func() error {
			bc := plugin.BuildContext{BuildID: buildID, Target: tg.name, CLIFlags: flags}
			if err := b.buildTarget(ctx, tg, bc, logger.With("target", string(tg.name))); err != nil {
				return fmt.Errorf("%s target: %w", tg.name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if b.cache != nil {
		if err := b.cache.Save(); err != nil {
			logger.Warn("Cannot save output cache", "error", err)
		}
	}
	return nil
}

func platform(name string) api.Platform {
	switch name {
	case "node":
		return api.PlatformNode
	case "neutral":
		return api.PlatformNeutral
	}
	return api.PlatformBrowser
}

func (b *Builder) bundle(tg target) ([]plugin.Chunk, error) {
	opts := api.BuildOptions{
		EntryPoints:   b.config.Entries,
		AbsWorkingDir: b.config.BaseDir,
		Outdir:        tg.outDir,
		Bundle:        true,
		Write:         false,
		Format:        tg.format,
		Platform:      platform(b.config.Platform),
		External:      b.config.External,
		LogLevel:      api.LogLevelSilent,
	}
	if b.config.Sourcemap {
		opts.Sourcemap = api.SourceMapExternal
	}
	result := api.Build(opts)
	for _, w := range result.Warnings {
		b.logger.Warn("Bundler warning", "message", w.Text)
	}
	if len(result.Errors) > 0 {
		errs := make([]error, len(result.Errors))
		for i, m := range result.Errors {
			errs[i] = errors.New(m.Text)
		}
		return nil, errors.Join(errs...)
	}
	chunks := make([]plugin.Chunk, 0, len(result.OutputFiles))
	for _, f := range result.OutputFiles {
		chunks = append(chunks, plugin.Chunk{FileName: f.Path, Code: f.Contents})
	}
	return chunks, nil
}

// assets returns static assets as chunks of the target.
func (b *Builder) assets(tg target) ([]plugin.Chunk, error) {
	chunks := make([]plugin.Chunk, 0, len(b.config.Assets))
	for _, a := range b.config.Assets {
		name, data, err := a.Process(b.config.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", a.Name, err)
		}
		chunks = append(chunks, plugin.Chunk{
			FileName: filepath.Join(tg.outDir, filepath.FromSlash(name)),
			Code:     data,
		})
	}
	return chunks, nil
}

func (b *Builder) buildTarget(ctx context.Context, tg target, bc plugin.BuildContext, logger *slog.Logger) error {
	chunks, err := b.bundle(tg)
	if err != nil {
		return err
	}
	if tg.name == plugin.TargetMain {
		assets, err := b.assets(tg)
		if err != nil {
			return err
		}
		chunks = append(chunks, assets...)
	}
	plugins, err := b.manager.OutputPlugins(ctx, bc)
	if err != nil {
		return err
	}

	// Bundler source maps are separate chunks. They are written only
	// if plugins left the code they describe unchanged.
	maps := make(map[string][]byte)
	code := chunks[:0]
	for _, chunk := range chunks {
		if strings.HasSuffix(chunk.FileName, ".map") {
			maps[chunk.FileName] = chunk.Code
		} else {
			code = append(code, chunk)
		}
	}
	for _, chunk := range code {
		orig := chunk.Code
		for _, p := range plugins {
			chunk, err = p.RenderChunk(ctx, chunk)
			if err != nil {
				return fmt.Errorf("%s: %w", p.Name(), err)
			}
		}
		if err := b.write(chunk.FileName, chunk.Code, logger); err != nil {
			return err
		}
		mapName := chunk.FileName + ".map"
		sourceMap, ok := maps[mapName]
		switch {
		case len(chunk.Map) > 0:
			sourceMap = chunk.Map
		case ok && !bytes.Equal(orig, chunk.Code):
			logger.Warn("Source map doesn't match transformed output, skipping", "file", filepath.Base(mapName))
			continue
		case !ok:
			continue
		}
		if err := b.write(mapName, sourceMap, logger); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) write(filename string, data []byte, logger *slog.Logger) error {
	rel, err := filepath.Rel(b.config.BaseDir, filename)
	if err != nil {
		rel = filename
	}
	if b.cache != nil && b.cache.Seen(filename, data) {
		if _, err := os.Stat(filename); err == nil {
			logger.Debug("Unchanged", "file", rel)
			return nil
		}
	}
	logger.Info("Writing", "file", rel, "size", len(data))
	return b.writer.WriteFile(filename, data)
}

// Clean removes output directories.
func (b *Builder) Clean() error {
	b.logger.Info("Cleaning")
	if b.cache != nil {
		b.cache.Reset()
	}
	for _, dir := range b.config.OutDirs() {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return nil
}
