package params

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// SimMode decides when the background simulation runs.
type SimMode string

const (
	// SimOnDemand runs activities only while a view is mounted.
	SimOnDemand SimMode = "on_demand"
	// SimAlways mounts every view for the whole process lifetime.
	SimAlways SimMode = "always"
)

type API struct {
	Addr           string   `env:"API_ADDR"`
	AllowedOrigins []string `env:"API_ALLOWED_ORIGINS" envSeparator:","`
}

type Feed struct {
	Enabled        bool          `env:"FEED_ENABLED"`
	URL            string        `env:"FEED_URL"`
	ReconnectDelay time.Duration `env:"FEED_RECONNECT_DELAY"` // fixed, no backoff
}

type Generator struct {
	Interval time.Duration `env:"GENERATOR_INTERVAL"`
	// Seed for the random source; 0 seeds from the clock
	Seed int64 `env:"GENERATOR_SEED"`
}

type Sim struct {
	Mode                 SimMode       `env:"SIM_MODE"`
	VolumeSampleInterval time.Duration `env:"VOLUME_SAMPLE_INTERVAL"`
}

type Log struct {
	Level string `env:"LOG_LEVEL"`
	// File, when set, receives a copy of every log line
	File string `env:"LOG_FILE"`
}

type Config struct {
	API       API
	Feed      Feed
	Generator Generator
	Sim       Sim
	Log       Log
}

func Default() Config {
	return Config{
		API: API{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		Feed: Feed{
			Enabled:        true,
			URL:            "wss://stream.binance.com:9443/ws/btcusdt@trade",
			ReconnectDelay: 3 * time.Second,
		},
		Generator: Generator{
			Interval: 5 * time.Second,
		},
		Sim: Sim{
			Mode:                 SimOnDemand,
			VolumeSampleInterval: 5 * time.Second,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	// Unset variables keep their defaults
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Sim.Mode {
	case SimOnDemand, SimAlways:
	default:
		errs = append(errs, fmt.Errorf("SIM_MODE must be %s or %s, got %q", SimOnDemand, SimAlways, c.Sim.Mode))
	}
	if c.Generator.Interval <= 0 {
		errs = append(errs, errors.New("GENERATOR_INTERVAL must be positive"))
	}
	if c.Sim.VolumeSampleInterval <= 0 {
		errs = append(errs, errors.New("VOLUME_SAMPLE_INTERVAL must be positive"))
	}
	if c.Feed.ReconnectDelay <= 0 {
		errs = append(errs, errors.New("FEED_RECONNECT_DELAY must be positive"))
	}
	if c.Feed.Enabled && c.Feed.URL == "" {
		errs = append(errs, errors.New("FEED_URL is required when the feed is enabled"))
	}
	if c.API.Addr == "" {
		errs = append(errs, errors.New("API_ADDR is required"))
	}
	return errors.Join(errs...)
}
