// Package config loads salvo configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/salvo/pkg/engine"
	"gopkg.in/yaml.v3"
)

// Config holds all salvo configuration.
type Config struct {
	Game       GameConfig       `yaml:"game"`
	MonteCarlo MonteCarloConfig `yaml:"montecarlo"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// GameConfig describes the board and the targeting heuristic.
type GameConfig struct {
	BoardSize            int     `yaml:"board_size"`
	Fleet                []int   `yaml:"fleet,flow"`
	Skew                 bool    `yaml:"skew"`        // Boost density around hits
	SkewFactor           float64 `yaml:"skew_factor"` // Multiplier around hits
	MaxPlacementAttempts int     `yaml:"max_placement_attempts"`
	CacheSize            int     `yaml:"cache_size"` // Density cache entries, 0 disables
}

// MonteCarloConfig sets the headless evaluation defaults.
type MonteCarloConfig struct {
	Trials  int   `yaml:"trials"`  // 0 = engine default for the skew setting
	Workers int   `yaml:"workers"` // 0 = GOMAXPROCS
	Seed    int64 `yaml:"seed"`    // 0 = random
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxFastWorkers int           `yaml:"max_fast_workers"`
	MaxSlowWorkers int           `yaml:"max_slow_workers"`
	MaxGames       int           `yaml:"max_games"`     // Live games kept by the registry
	GameTTL        time.Duration `yaml:"game_ttl"`      // Idle games are dropped after this
	ExternalAddr   string        `yaml:"external_addr"` // TCP agent protocol, empty = disabled
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the canonical game: 5x5 board, 4-3-2-1 fleet, skew
// factor 2.
func DefaultConfig() *Config {
	return &Config{
		Game: GameConfig{
			BoardSize:            engine.DefaultBoardSize,
			Fleet:                []int(engine.CanonicalFleet.Clone()),
			Skew:                 true,
			SkewFactor:           engine.DefaultSkewFactor,
			MaxPlacementAttempts: engine.DefaultMaxPlacementAttempts,
			CacheSize:            engine.DefaultCacheSize,
		},
		Server: ServerConfig{
			Host:           "localhost",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   60 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxFastWorkers: 100,
			MaxSlowWorkers: 4,
			MaxGames:       1024,
			GameTTL:        30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path. A missing file yields the defaults;
// an empty path skips the file. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies SALVO_* environment variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("SALVO_BOARD_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SALVO_BOARD_SIZE: %w", err)
		}
		c.Game.BoardSize = n
	}
	if v := os.Getenv("SALVO_FLEET"); v != "" {
		fleet, err := ParseFleet(v)
		if err != nil {
			return fmt.Errorf("SALVO_FLEET: %w", err)
		}
		c.Game.Fleet = fleet
	}
	if v := os.Getenv("SALVO_SKEW"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SALVO_SKEW: %w", err)
		}
		c.Game.Skew = b
	}
	if v := os.Getenv("SALVO_SKEW_FACTOR"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SALVO_SKEW_FACTOR: %w", err)
		}
		c.Game.SkewFactor = f
	}
	if v := os.Getenv("SALVO_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SALVO_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SALVO_PORT: %w", err)
		}
		c.Server.Port = n
	}
	if v := os.Getenv("SALVO_EXTERNAL_ADDR"); v != "" {
		c.Server.ExternalAddr = v
	}
	if v := os.Getenv("SALVO_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// ParseFleet parses a comma separated list of ship lengths, e.g. "4,3,2,1".
func ParseFleet(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	fleet := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid ship length %q: %w", p, err)
		}
		fleet = append(fleet, n)
	}
	if len(fleet) == 0 {
		return nil, fmt.Errorf("empty fleet %q", s)
	}
	return fleet, nil
}

// EngineOptions converts the game section into engine options.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		BoardSize:            c.Game.BoardSize,
		Fleet:                engine.Fleet(c.Game.Fleet).Clone(),
		SkewEnabled:          c.Game.Skew,
		SkewFactor:           c.Game.SkewFactor,
		MaxPlacementAttempts: c.Game.MaxPlacementAttempts,
		CacheSize:            c.Game.CacheSize,
	}
}

// MonteCarloOptions converts the montecarlo section into engine options.
func (c *Config) MonteCarloOptions() engine.MonteCarloOptions {
	return engine.MonteCarloOptions{
		Trials:  c.MonteCarlo.Trials,
		Workers: c.MonteCarlo.Workers,
		Seed:    c.MonteCarlo.Seed,
	}
}

// Validate checks that the game section describes a playable fleet.
func (c *Config) Validate() error {
	if err := engine.ValidateFleet(engine.Fleet(c.Game.Fleet), c.Game.BoardSize); err != nil {
		return err
	}
	if c.Game.SkewFactor < 0 {
		return fmt.Errorf("%w: skew factor %v is negative", engine.ErrInvalidConfiguration, c.Game.SkewFactor)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	return nil
}
