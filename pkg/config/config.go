// Package config handles transformerscope configuration loading.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
)

// Config is the root configuration structure.
type Config struct {
	// Snapshot is the payload snapshot served or explored when no path is
	// given on the command line.
	Snapshot string       `yaml:"snapshot"`
	Server   ServerConfig `yaml:"server"`
	Site     SiteConfig   `yaml:"site"`
	Render   RenderConfig `yaml:"render"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	CORSOrigins   []string      `yaml:"cors_origins"`
	EnableLogging bool          `yaml:"enable_logging"`
}

// SiteConfig holds static site generation settings.
type SiteConfig struct {
	OutputDir string `yaml:"output_dir"`
	// Workers bounds concurrent layer rendering; 0 uses all CPUs.
	Workers  int  `yaml:"workers"`
	Progress bool `yaml:"progress"`
}

// RenderConfig holds page rendering settings.
type RenderConfig struct {
	Title        string  `yaml:"title"`
	HeatmapScale float32 `yaml:"heatmap_scale"`
	// IndexTopK limits neurons listed per layer on the index page; 0 lists all.
	IndexTopK int `yaml:"index_top_k"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Snapshot: "payload.tsp",
		Server: ServerConfig{
			Host:          "127.0.0.1",
			Port:          8080,
			ReadTimeout:   15 * time.Second,
			WriteTimeout:  60 * time.Second,
			IdleTimeout:   60 * time.Second,
			CORSOrigins:   []string{"*"},
			EnableLogging: true,
		},
		Site: SiteConfig{
			OutputDir: "site",
			Progress:  true,
		},
		Render: RenderConfig{
			Title:        "Transformer Scope",
			HeatmapScale: 10,
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return tserrors.ConfigErrorf(tserrors.ErrConfigInvalid, "server.port %d is out of range", c.Server.Port)
	case c.Site.Workers < 0:
		return tserrors.ConfigErrorf(tserrors.ErrConfigInvalid, "site.workers must not be negative")
	case c.Render.HeatmapScale < 0:
		return tserrors.ConfigErrorf(tserrors.ErrConfigInvalid, "render.heatmap_scale must not be negative")
	case c.Render.IndexTopK < 0:
		return tserrors.ConfigErrorf(tserrors.ErrConfigInvalid, "render.index_top_k must not be negative")
	}
	return nil
}

// Load loads configuration from a file. Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, tserrors.ConfigNotFound(path)
		}
		return nil, tserrors.WrapIO(err, tserrors.ErrIOReadFailed, "failed to read config").
			WithContext("path", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, tserrors.AttachSuggestions(
			tserrors.WrapConfig(err, tserrors.ErrConfigParseFailed, "failed to parse config").
				WithContext("path", path))
	}
	if err := cfg.Validate(); err != nil {
		if te, ok := tserrors.AsTScopeError(err); ok {
			te.WithContext("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads config from path, or returns default if not found.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Save saves configuration to a file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return tserrors.WrapConfig(err, tserrors.ErrConfigWriteFailed, "failed to create config directory")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return tserrors.WrapConfig(err, tserrors.ErrConfigWriteFailed, "failed to marshal config")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return tserrors.WrapConfig(err, tserrors.ErrConfigWriteFailed, "failed to write config file").
			WithContext("path", path)
	}
	return nil
}

// DefaultConfigPath returns the config file path: tscope.yaml in the working
// directory, then config/tscope.yaml, falling back to tscope.yaml.
func DefaultConfigPath() string {
	for _, p := range []string{"tscope.yaml", filepath.Join("config", "tscope.yaml")} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return "tscope.yaml"
}

// InitConfig creates a default config file if it doesn't exist.
// It reports whether a file was written.
func InitConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	return true, Default().Save(path)
}
