// Package config provides engine configuration loaded from TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level engine configuration.
type Config struct {
	Log    LogConfig    `toml:"log"`
	Cache  CacheConfig  `toml:"cache"`
	Render RenderConfig `toml:"render"`
	Sixel  SixelConfig  `toml:"sixel"`
	Draw   DrawConfig   `toml:"draw"`
}

// LogConfig configures engine logging.
type LogConfig struct {
	// Level is the minimum level written: debug, info, warn, error.
	Level string `toml:"level"`

	// File is the log destination. Empty means stderr.
	File string `toml:"file"`
}

// CacheConfig configures the render cache.
type CacheConfig struct {
	// Capacity is the maximum number of cached render entries. Least
	// recently used entries beyond the bound are evicted.
	Capacity int `toml:"capacity"`

	// WatchFiles enables invalidation of file-backed entries when the
	// underlying file changes on disk.
	WatchFiles bool `toml:"watch_files"`
}

// RenderConfig configures the external renderer.
type RenderConfig struct {
	// Workers bounds the number of concurrent external renders.
	Workers int `toml:"workers"`

	// ArtifactDir holds intermediate tex/dvi/svg artifacts keyed by
	// fingerprint so renders survive restarts.
	ArtifactDir string `toml:"artifact_dir"`

	// Latex, Dvisvgm, and Gnuplot override the binary names resolved
	// from PATH.
	Latex   string `toml:"latex"`
	Dvisvgm string `toml:"dvisvgm"`
	Gnuplot string `toml:"gnuplot"`
}

// SixelConfig configures the graphics encoder.
type SixelConfig struct {
	// ChunkRows is the height in text rows of one transmission chunk.
	ChunkRows int `toml:"chunk_rows"`

	// MaxChunks caps the number of chunks per block. Bitmaps needing
	// more are truncated with a warning.
	MaxChunks int `toml:"max_chunks"`
}

// DrawConfig configures the incremental draw loop.
type DrawConfig struct {
	// Budget is the number of chunks transmitted per draw tick.
	Budget int `toml:"budget"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level: "error",
		},
		Cache: CacheConfig{
			Capacity:   128,
			WatchFiles: true,
		},
		Render: RenderConfig{
			Workers:     4,
			ArtifactDir: filepath.Join(os.TempDir(), "termart"),
			Latex:       "latex",
			Dvisvgm:     "dvisvgm",
			Gnuplot:     "gnuplot",
		},
		Sixel: SixelConfig{
			ChunkRows: 16,
			MaxChunks: 64,
		},
		Draw: DrawConfig{
			Budget: 1,
		},
	}
}

// Load reads a TOML configuration file and merges it over the
// defaults. A missing path returns the defaults without error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ParseError{Path: path, Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("%w: cache.capacity must be positive", ErrInvalidValue)
	}
	if c.Render.Workers <= 0 {
		return fmt.Errorf("%w: render.workers must be positive", ErrInvalidValue)
	}
	if c.Sixel.ChunkRows <= 0 {
		return fmt.Errorf("%w: sixel.chunk_rows must be positive", ErrInvalidValue)
	}
	if c.Sixel.MaxChunks <= 0 {
		return fmt.Errorf("%w: sixel.max_chunks must be positive", ErrInvalidValue)
	}
	if c.Draw.Budget <= 0 {
		return fmt.Errorf("%w: draw.budget must be positive", ErrInvalidValue)
	}
	return nil
}
