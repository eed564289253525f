package utils

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Address         string   `toml:"address"`
	TickPeriodMs    int      `toml:"tick_period_ms"`
	WriteTimeoutMs  int      `toml:"write_timeout_ms"`
	OriginPatterns  []string `toml:"origin_patterns"`
	JournalPath     string   `toml:"journal_path"`
	DetectDeadlocks bool     `toml:"detect_deadlocks"`
}

type WorldConfig struct {
	Width        int     `toml:"width"`
	Height       int     `toml:"height"`
	InitialFood  int     `toml:"initial_food"`
	MaxFood      int     `toml:"max_food"`
	FoodMass     float64 `toml:"food_mass"`
	Speed        float64 `toml:"speed"`
	EatMargin    float64 `toml:"eat_margin"`
	MaxDirection float64 `toml:"max_direction"`
	Seed         int64   `toml:"seed"`
}

type MathConfig struct {
	Float64EqualityThreshold float64 `toml:"float64_equality_threshold"`
}

type Config struct {
	Server ServerConfig `toml:"server"`
	World  WorldConfig  `toml:"world"`
	Math   MathConfig   `toml:"math"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        "localhost:4242",
			TickPeriodMs:   30,
			WriteTimeoutMs: 250,
		},
		World: WorldConfig{
			Width:        1000,
			Height:       1000,
			InitialFood:  100,
			MaxFood:      150,
			FoodMass:     100,
			Speed:        2,
			EatMargin:    1.1,
			MaxDirection: 1,
		},
		Math: MathConfig{
			Float64EqualityThreshold: 1e-9,
		},
	}
}

// ReadTOML loads fileName over the defaults, so a file only needs the keys
// it changes.
func ReadTOML(fileName string) (*Config, error) {
	file, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(file, config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", fileName, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	return config, nil
}

var ErrInvalidConfig = errors.New("invalid config")

func (c *Config) Validate() error {
	switch {
	case c.Server.TickPeriodMs <= 0:
		return fmt.Errorf("%w: server.tick_period_ms must be positive", ErrInvalidConfig)
	case c.Server.WriteTimeoutMs <= 0:
		return fmt.Errorf("%w: server.write_timeout_ms must be positive", ErrInvalidConfig)
	case c.World.Width <= 0 || c.World.Height <= 0:
		return fmt.Errorf("%w: world size must be positive", ErrInvalidConfig)
	case c.World.MaxFood < 0 || c.World.InitialFood < 0:
		return fmt.Errorf("%w: food counts must not be negative", ErrInvalidConfig)
	case c.World.FoodMass <= 0:
		return fmt.Errorf("%w: world.food_mass must be positive", ErrInvalidConfig)
	case c.World.Speed < 0:
		return fmt.Errorf("%w: world.speed must not be negative", ErrInvalidConfig)
	case c.World.EatMargin < 1:
		return fmt.Errorf("%w: world.eat_margin must be at least 1", ErrInvalidConfig)
	case c.World.MaxDirection < 0:
		return fmt.Errorf("%w: world.max_direction must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Origins returns the websocket origin patterns, defaulting to localhost.
func (c *ServerConfig) Origins() []string {
	if len(c.OriginPatterns) == 0 {
		return []string{"localhost:*", "127.0.0.1:*"}
	}
	return c.OriginPatterns
}

func (c *ServerConfig) TickPeriod() time.Duration {
	return time.Duration(c.TickPeriodMs) * time.Millisecond
}

func (c *ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMs) * time.Millisecond
}

func AlmostEqual(a, b, threshold float64) bool {
	return math.Abs(a-b) <= threshold
}
