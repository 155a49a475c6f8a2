package minify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dchest/minibundle/plugin"
)

type fakeHost struct {
	mu       sync.Mutex
	flags    []plugin.FlagSpec
	handlers map[plugin.Event][]plugin.OutputPluginFunc
	requests []plugin.ConfigRequest
	result   *plugin.ConfigResult
	err      error
	logger   *slog.Logger
	logs     *bytes.Buffer
}

func newFakeHost() *fakeHost {
	var buf bytes.Buffer
	return &fakeHost{
		handlers: make(map[plugin.Event][]plugin.OutputPluginFunc),
		logger:   slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
		logs:     &buf,
	}
}

func (h *fakeHost) RegisterFlag(spec plugin.FlagSpec) {
	h.flags = append(h.flags, spec)
}

func (h *fakeHost) RequestConfig(ctx context.Context, req plugin.ConfigRequest) (*plugin.ConfigResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, req)
	return h.result, h.err
}

func (h *fakeHost) HandleOutputPlugin(ev plugin.Event, fn plugin.OutputPluginFunc) {
	h.handlers[ev] = append(h.handlers[ev], fn)
}

func (h *fakeHost) Logger() *slog.Logger { return h.logger }

func (h *fakeHost) numRequests() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.requests)
}

func loaded(t *testing.T, commandID string, env map[string]string) (*Plugin, *fakeHost) {
	t.Helper()
	p := New(Options{
		EnvPrefix: "TEST",
		Getenv:    func(k string) string { return env[k] },
	})
	h := newFakeHost()
	p.OnLoad(plugin.LoadEvent{CommandID: commandID, Host: h})
	return p, h
}

func TestDefaultConfig(t *testing.T) {
	expected := Config{
		"compress": map[string]any{"booleans_as_integers": true, "passes": 3},
		"mangle":   map[string]any{"toplevel": true},
		"ecma":     2020,
		"module":   true,
	}
	assert.Equal(t, expected, DefaultConfig())

	// Each call returns a fresh copy.
	c := DefaultConfig()
	c["compress"].(map[string]any)["passes"] = 1
	assert.Equal(t, expected, DefaultConfig())
}

func TestAddFlagsOtherCommands(t *testing.T) {
	for _, id := range []string{"", "clean", "version", "Bundle", "bundle2"} {
		_, h := loaded(t, id, nil)
		assert.Empty(t, h.flags, id)
	}
}

func TestAddFlagsCompressDefault(t *testing.T) {
	var tests = []struct {
		name     string
		env      map[string]string
		expected bool
	}{
		{"unset", nil, true},
		{"empty", map[string]string{"TEST_COMPRESS": ""}, true},
		{"true", map[string]string{"TEST_COMPRESS": "true"}, true},
		{"false", map[string]string{"TEST_COMPRESS": "false"}, false},
		{"uppercase false", map[string]string{"TEST_COMPRESS": "FALSE"}, true},
		{"zero", map[string]string{"TEST_COMPRESS": "0"}, true},
		{"padded false", map[string]string{"TEST_COMPRESS": " false"}, true},
		{"other prefix", map[string]string{"MINIBUNDLE_COMPRESS": "false"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := loaded(t, BundleCommand, tt.env)
			require.Len(t, h.flags, 1)
			f := h.flags[0]
			assert.Equal(t, FlagCompress, f.Name)
			assert.True(t, f.Negatable)
			assert.Equal(t, tt.expected, f.Default)
		})
	}
}

func TestAddFlagsUsesProcessEnvironment(t *testing.T) {
	t.Setenv("MINIBUNDLE_COMPRESS", "false")
	p := New(Options{})
	h := newFakeHost()
	p.AddFlags(BundleCommand, h)
	require.Len(t, h.flags, 1)
	assert.False(t, h.flags[0].Default)
	assert.Equal(t, "MINIBUNDLE_COMPRESS", p.CompressEnv())
}

func TestOnLoadRegistersBothTargets(t *testing.T) {
	_, h := loaded(t, BundleCommand, nil)
	assert.Len(t, h.handlers[plugin.EventOutputPluginMain], 1)
	assert.Len(t, h.handlers[plugin.EventOutputPluginNPM], 1)
	assert.Len(t, h.handlers, 2)
}

func TestOutputPluginCompressOff(t *testing.T) {
	var tests = []plugin.Flags{
		nil,
		{},
		{FlagCompress: false},
		{FlagCompress: "true"},
		{FlagCompress: 1},
		{FlagCompress: false, FlagIgnoreLocalConfig: true},
	}
	for i, flags := range tests {
		p, h := loaded(t, BundleCommand, nil)
		h.result = &plugin.ConfigResult{Config: map[string]any{"ecma": 2015}, RelativePath: "x"}
		op, err := p.OutputPlugin(context.Background(), plugin.BuildContext{CLIFlags: flags})
		require.NoError(t, err)
		assert.Nil(t, op, "%d", i)
		assert.Zero(t, h.numRequests(), "%d", i)
	}
}

func TestOutputPluginIgnoreLocalConfig(t *testing.T) {
	p, h := loaded(t, BundleCommand, nil)
	h.result = &plugin.ConfigResult{Config: map[string]any{"ecma": 2015}, RelativePath: "x"}
	op, err := p.OutputPlugin(context.Background(), plugin.BuildContext{
		CLIFlags: plugin.Flags{FlagCompress: true, FlagIgnoreLocalConfig: true},
	})
	require.NoError(t, err)
	require.NotNil(t, op)
	assert.Equal(t, ID, op.Name())
	assert.Equal(t, DefaultConfig(), op.(*Transform).Config())
	assert.Zero(t, h.numRequests())
}

func TestResolveConfig(t *testing.T) {
	var tests = []struct {
		name     string
		result   *plugin.ConfigResult
		err      error
		expected Config
		level    string
		path     string
	}{
		{
			name:     "not found",
			expected: DefaultConfig(),
			level:    "WARN",
		},
		{
			name:     "locator error",
			err:      errors.New("Failed to load local terser config: bad yaml"),
			expected: DefaultConfig(),
			level:    "WARN",
		},
		{
			name:     "empty object",
			result:   &plugin.ConfigResult{Config: map[string]any{}, RelativePath: "x"},
			expected: DefaultConfig(),
			level:    "WARN",
			path:     "x",
		},
		{
			name:     "not an object",
			result:   &plugin.ConfigResult{Config: "not-an-object", RelativePath: "z"},
			expected: DefaultConfig(),
			level:    "WARN",
			path:     "z",
		},
		{
			name:     "array",
			result:   &plugin.ConfigResult{Config: []any{"ecma"}, RelativePath: "a"},
			expected: DefaultConfig(),
			level:    "WARN",
			path:     "a",
		},
		{
			name:     "null",
			result:   &plugin.ConfigResult{Config: nil, RelativePath: "n"},
			expected: DefaultConfig(),
			level:    "WARN",
			path:     "n",
		},
		{
			name:     "object",
			result:   &plugin.ConfigResult{Config: map[string]any{"ecma": 2015}, RelativePath: "y"},
			expected: Config{"ecma": 2015},
			level:    "INFO",
			path:     "y",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, h := loaded(t, BundleCommand, nil)
			h.result, h.err = tt.result, tt.err

			config := p.ResolveConfig(context.Background(), plugin.Flags{FlagCompress: true})
			assert.Equal(t, tt.expected, config)

			require.Len(t, h.requests, 1)
			assert.Equal(t, ConfigModuleName, h.requests[0].ModuleName)
			assert.NotEmpty(t, h.requests[0].ErrorMessage)

			logs := h.logs.String()
			assert.Contains(t, logs, "level="+tt.level)
			if tt.level == "INFO" {
				assert.NotContains(t, logs, "level=WARN")
			}
			if tt.path != "" {
				assert.Contains(t, logs, "path="+tt.path)
			}
		})
	}
}

func TestOutputPluginUsesLocalConfig(t *testing.T) {
	p, h := loaded(t, BundleCommand, nil)
	h.result = &plugin.ConfigResult{Config: map[string]any{"ecma": 2015}, RelativePath: "y"}
	op, err := p.OutputPlugin(context.Background(), plugin.BuildContext{
		Target:   plugin.TargetNPM,
		CLIFlags: plugin.Flags{FlagCompress: true, FlagIgnoreLocalConfig: false},
	})
	require.NoError(t, err)
	require.NotNil(t, op)
	assert.Equal(t, Config{"ecma": 2015}, op.(*Transform).Config())
	assert.Equal(t, 1, h.numRequests())
}

func TestOutputPluginInvalidLocalConfig(t *testing.T) {
	var tests = []map[string]any{
		{"ecma": "2015"},
		{"module": "true"},
		{"ecma": 3},
		{"compress": "yes"},
	}
	for _, config := range tests {
		p, h := loaded(t, BundleCommand, nil)
		h.result = &plugin.ConfigResult{Config: config, RelativePath: "y"}
		for _, target := range []plugin.Target{plugin.TargetMain, plugin.TargetNPM} {
			op, err := p.OutputPlugin(context.Background(), plugin.BuildContext{
				Target:   target,
				CLIFlags: plugin.Flags{FlagCompress: true},
			})
			require.NoError(t, err, "%v", config)
			require.NotNil(t, op, "%v", config)
			assert.Equal(t, Config(config), op.(*Transform).Config())

			_, err = op.RenderChunk(context.Background(), plugin.Chunk{FileName: "index.js", Code: []byte("export const a = 1;\n")})
			assert.ErrorContains(t, err, "invalid minifier config", "%v", config)
		}
	}
}

func TestOutputPluginConcurrent(t *testing.T) {
	p, h := loaded(t, BundleCommand, nil)
	h.result = &plugin.ConfigResult{Config: map[string]any{"ecma": 2015}, RelativePath: "y"}

	var wg sync.WaitGroup
	results := make([]plugin.OutputPlugin, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			op, err := p.OutputPlugin(context.Background(), plugin.BuildContext{
				CLIFlags: plugin.Flags{FlagCompress: true},
			})
			assert.NoError(t, err)
			results[i] = op
		}(i)
	}
	wg.Wait()

	// No caching: every call resolves and builds its own transform.
	assert.Equal(t, len(results), h.numRequests())
	for i := 1; i < len(results); i++ {
		assert.NotSame(t, results[0], results[i])
	}
}

func TestResolveConfigWithoutHost(t *testing.T) {
	var buf bytes.Buffer
	p := New(Options{Logger: slog.New(slog.NewTextHandler(&buf, nil))})
	assert.Equal(t, DefaultConfig(), p.ResolveConfig(context.Background(), nil))
	assert.True(t, strings.Contains(buf.String(), "level=WARN"))
}
