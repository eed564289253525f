package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestReadTOML calls ReadTOML with a known test config, checking that the
// file overrides some keys and the defaults fill in the rest.
func TestReadTOML(t *testing.T) {
	cfg, err := ReadTOML("testConf.toml")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Address != "127.0.0.1:9999" {
		t.Fatalf(`Server.Address = %q, want %q`, cfg.Server.Address, "127.0.0.1:9999")
	}
	if cfg.Server.TickPeriod() != 15*time.Millisecond {
		t.Fatalf(`Server.TickPeriod() = %v, want 15ms`, cfg.Server.TickPeriod())
	}
	if len(cfg.Server.OriginPatterns) != 2 || cfg.Server.OriginPatterns[0] != "example.com" {
		t.Fatalf(`Server.OriginPatterns = %v`, cfg.Server.OriginPatterns)
	}
	if cfg.World.Width != 640 || cfg.World.Height != 480 {
		t.Fatalf(`World size = %dx%d, want 640x480`, cfg.World.Width, cfg.World.Height)
	}
	if cfg.World.MaxFood != 12 {
		t.Fatalf(`World.MaxFood = %d, want 12`, cfg.World.MaxFood)
	}
	if !AlmostEqual(cfg.World.EatMargin, 1.25, cfg.Math.Float64EqualityThreshold) {
		t.Fatalf(`World.EatMargin = %v, want 1.25`, cfg.World.EatMargin)
	}

	defaults := DefaultConfig()
	if cfg.Server.WriteTimeoutMs != defaults.Server.WriteTimeoutMs {
		t.Fatalf(`Server.WriteTimeoutMs = %d, want default %d`, cfg.Server.WriteTimeoutMs, defaults.Server.WriteTimeoutMs)
	}
	if cfg.World.Speed != defaults.World.Speed {
		t.Fatalf(`World.Speed = %v, want default %v`, cfg.World.Speed, defaults.World.Speed)
	}
}

func TestReadTOMLMissingFile(t *testing.T) {
	if _, err := ReadTOML("does-not-exist.toml"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf(`ReadTOML(missing) = %v, want os.ErrNotExist`, err)
	}
}

func TestReadTOMLRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[world]\neat_margin = 0.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadTOML(path); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf(`ReadTOML(bad) = %v, want ErrInvalidConfig`, err)
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
}
