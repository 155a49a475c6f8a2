package minify

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/dchest/minibundle/filters"
	"github.com/dchest/minibundle/plugin"
)

var (
	scriptExtensions = []string{".js", ".mjs", ".cjs"}
	styleExtensions  = []string{".css"}
	htmlExtensions   = []string{".html", ".htm"}
	jsonExtensions   = []string{".json"}
)

// Transform minifies output chunks. Scripts are minified with esbuild
// configured by Config; stylesheets, HTML and JSON by their own filters.
type Transform struct {
	config    Config
	script    *filters.ESBuild
	scriptErr error
	filters   *filters.Collection
}

// NewTransform returns a new transform configured with config.
// Invalid options are reported by RenderChunk for script chunks.
func NewTransform(config Config) *Transform {
	t := &Transform{config: config, filters: filters.NewCollection()}
	t.script, t.scriptErr = filters.NewESBuild(filters.Options(config))
	t.filters.Set(filters.CSSMin(0), styleExtensions...)
	t.filters.Set(filters.NewHTMLMin(true), htmlExtensions...)
	t.filters.Set(filters.JSMin(0), jsonExtensions...)
	return t
}

// forTarget returns a transform keeping the module format of target output.
func (t *Transform) forTarget(target plugin.Target) *Transform {
	if target != plugin.TargetNPM || t.script == nil {
		return t
	}
	c := *t
	c.script = t.script.WithFormat(api.FormatCommonJS)
	return &c
}

func (t *Transform) Name() string { return ID }

// Config returns configuration the transform was created with.
func (t *Transform) Config() Config { return t.config }

func isScript(ext string) bool {
	for _, v := range scriptExtensions {
		if v == ext {
			return true
		}
	}
	return false
}

// RenderChunk minifies the chunk according to its file extension.
// Chunks of unknown types are returned unchanged.
func (t *Transform) RenderChunk(ctx context.Context, chunk plugin.Chunk) (plugin.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return chunk, err
	}
	ext := filepath.Ext(chunk.FileName)
	if isScript(ext) {
		if t.scriptErr != nil {
			return chunk, fmt.Errorf("minify %s: invalid minifier config: %w", chunk.FileName, t.scriptErr)
		}
		code, sm, err := t.script.Transform(filepath.Base(chunk.FileName), chunk.Code)
		if err != nil {
			return chunk, fmt.Errorf("minify %s: %w", chunk.FileName, err)
		}
		chunk.Code = code
		if len(sm) > 0 {
			chunk.Map = sm
		}
		return chunk, nil
	}
	code, err := t.filters.ApplyFilter(ext, chunk.Code)
	if err != nil {
		return chunk, fmt.Errorf("minify %s: %w", chunk.FileName, err)
	}
	chunk.Code = code
	return chunk, nil
}
