package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Cache.Capacity <= 0 {
		t.Error("default cache capacity should be positive")
	}
	if cfg.Render.Workers <= 0 {
		t.Error("default worker count should be positive")
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.toml"))
	if err != nil {
		t.Fatalf("missing file should return defaults, got error: %v", err)
	}
	if cfg.Cache.Capacity != Default().Cache.Capacity {
		t.Error("missing file should return defaults")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[cache]
capacity = 16

[sixel]
chunk_rows = 8

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Cache.Capacity != 16 {
		t.Errorf("cache.capacity = %d, want 16", cfg.Cache.Capacity)
	}
	if cfg.Sixel.ChunkRows != 8 {
		t.Errorf("sixel.chunk_rows = %d, want 8", cfg.Sixel.ChunkRows)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q, want debug", cfg.Log.Level)
	}
	// Untouched sections keep defaults.
	if cfg.Draw.Budget != Default().Draw.Budget {
		t.Error("unset sections should keep defaults")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[cache\ncapacity="), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("invalid TOML should fail")
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("error should be a *ParseError, got %T", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Sixel.ChunkRows = 0

	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Validate() = %v, want ErrInvalidValue", err)
	}
}
