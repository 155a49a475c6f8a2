package host

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dchest/minibundle/assets"
	"github.com/dchest/minibundle/filewriter"
	"github.com/dchest/minibundle/utils"
)

const (
	ConfigFileName = "minibundle.yml"
	CacheFileName  = ".minibundle-cache"

	DefaultOutDir   = "dist"
	DefaultPlatform = "browser"
)

// Config is the project configuration.
type Config struct {
	// Loadable from YAML.
	Entries     []string                   `yaml:"entries"`
	OutDir      string                     `yaml:"outdir"`
	NPMOutDir   string                     `yaml:"npm_outdir"`
	Platform    string                     `yaml:"platform"`
	External    []string                   `yaml:"external"`
	Sourcemap   bool                       `yaml:"sourcemap"`
	Precompress *filewriter.CompressConfig `yaml:"precompress"`
	Assets      []*assets.Asset            `yaml:"assets"`

	// Generated.
	BaseDir string `yaml:"-"`
}

// ReadConfig reads project configuration from dir. A missing
// configuration file is not an error: defaults are used.
func ReadConfig(dir string) (*Config, error) {
	return ReadConfigFile(dir, filepath.Join(dir, ConfigFileName))
}

// ReadConfigFile reads project configuration from filename
// for project in dir.
func ReadConfigFile(dir, filename string) (*Config, error) {
	var c Config
	if err := utils.UnmarshalYAMLFile(filename, &c); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", filename, err)
		}
	}
	c.BaseDir = dir
	// Set defaults.
	if c.OutDir == "" {
		c.OutDir = DefaultOutDir
	}
	if c.Platform == "" {
		c.Platform = DefaultPlatform
	}
	// Some cleanup.
	c.OutDir = utils.StripEndSlash(c.OutDir)
	c.NPMOutDir = utils.StripEndSlash(c.NPMOutDir)
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch c.Platform {
	case "browser", "node", "neutral":
	default:
		return fmt.Errorf("unknown platform %q", c.Platform)
	}
	if c.NPMOutDir != "" && c.NPMOutDir == c.OutDir {
		return fmt.Errorf("npm_outdir must differ from outdir")
	}
	return assets.Load(c.Assets)
}

// OutDirs returns absolute output directories.
func (c *Config) OutDirs() []string {
	dirs := []string{c.abs(c.OutDir)}
	if c.NPMOutDir != "" {
		dirs = append(dirs, c.abs(c.NPMOutDir))
	}
	return dirs
}

func (c *Config) abs(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.BaseDir, name)
}
