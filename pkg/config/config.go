package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP listen address, e.g. ":8080"
	Address         string        `env:"ADDRESS" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Log     Log
	Storage Storage
	Image   Image
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"` // "console" or "json"
}

type Storage struct {
	// Per-session quota of the fast tier.
	FastCapacity ByteSize `env:"FAST_TIER_CAPACITY" envDefault:"5MiB"`
	// Values above this size skip the fast tier. Zero disables the check.
	FastThreshold ByteSize      `env:"FAST_TIER_THRESHOLD" envDefault:"0"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	DatabasePath  string        `env:"DATABASE_PATH" envDefault:"posemaster.db"`
}

type Image struct {
	MaxWidth    int `env:"IMAGE_MAX_WIDTH" envDefault:"1200"`
	JPEGQuality int `env:"IMAGE_JPEG_QUALITY" envDefault:"80"`
}

// ByteSize is a byte count parsed from human readable strings like "5MiB".
type ByteSize int64

func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := humanize.ParseBytes(string(text))
	if err != nil {
		return fmt.Errorf("parse byte size %q: %w", text, err)
	}
	*b = ByteSize(n)
	return nil
}

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Load loads .env (if present) and parses environment variables into Config.
func Load() (Config, error) {
	// Load .env if available; ignore error if file does not exist
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the storage and compression layers cannot work with.
func (c Config) Validate() error {
	if c.Storage.FastCapacity <= 0 {
		return fmt.Errorf("FAST_TIER_CAPACITY must be positive")
	}
	if c.Storage.FastThreshold < 0 {
		return fmt.Errorf("FAST_TIER_THRESHOLD must not be negative")
	}
	if c.Storage.SessionTTL < 0 {
		return fmt.Errorf("SESSION_TTL must not be negative")
	}
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.Image.MaxWidth <= 0 {
		return fmt.Errorf("IMAGE_MAX_WIDTH must be positive")
	}
	if c.Image.JPEGQuality < 1 || c.Image.JPEGQuality > 100 {
		return fmt.Errorf("IMAGE_JPEG_QUALITY must be within 1..100")
	}
	return nil
}
