// Package config loads server settings from the environment, with an optional .env file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"github.com/DoyleJ11/roster-sync/internal/engine"
)

const (
	TransportMemory = "memory"
	TransportNATS   = "nats"
)

type Config struct {
	Addr          string        `env:"ADDR"           envDefault:":8080"`
	MaxPlayers    int           `env:"MAX_PLAYERS"    envDefault:"80"`
	TeleportDelay time.Duration `env:"TELEPORT_DELAY" envDefault:"3s"`
	ModeratorIDs  []int         `env:"MODERATOR_IDS"  envSeparator:","`
	CreatorIDs    []int         `env:"CREATOR_IDS"    envSeparator:","`
	MapFile       string        `env:"MAP_FILE"`
	Transport     string        `env:"TRANSPORT"      envDefault:"memory"`
	NATSURL       string        `env:"NATS_URL"       envDefault:"nats://127.0.0.1:4222"`
	DatabaseURL   string        `env:"DATABASE_URL"`
	LogLevel      string        `env:"LOG_LEVEL"      envDefault:"info"`
	// Authority marks the one process per shared channel that applies commands. The others
	// run with AUTHORITY=false and only issue.
	Authority bool `env:"AUTHORITY" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads files (default ".env") into the environment without overriding variables that
// are already set, then parses and validates Config. Missing files are skipped.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.MaxPlayers <= 0 {
		return fmt.Errorf("MAX_PLAYERS must be positive, got %d", c.MaxPlayers)
	}
	if c.TeleportDelay < 0 {
		return fmt.Errorf("TELEPORT_DELAY must not be negative, got %s", c.TeleportDelay)
	}
	switch c.Transport {
	case TransportMemory, TransportNATS:
	default:
		return fmt.Errorf("TRANSPORT must be %q or %q, got %q", TransportMemory, TransportNATS, c.Transport)
	}
	if !c.Authority && c.Transport == TransportMemory {
		return errors.New("AUTHORITY=false needs a shared TRANSPORT; nothing would apply commands")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

func (c Config) Level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

// LoadLayout reads the region/anchor layout from path, or returns the built-in layout when
// path is empty.
func LoadLayout(path string) (engine.Layout, error) {
	if path == "" {
		return engine.DefaultLayout(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Layout{}, fmt.Errorf("read map file: %w", err)
	}
	var layout engine.Layout
	if err := json.Unmarshal(data, &layout); err != nil {
		return engine.Layout{}, fmt.Errorf("parse map file %s: %w", path, err)
	}
	for i, r := range layout.Regions {
		if !r.TeamID.Valid() {
			return engine.Layout{}, fmt.Errorf("map file %s: region %d: %w: %d", path, i, engine.ErrInvalidTeam, r.TeamID)
		}
	}
	return layout, nil
}
