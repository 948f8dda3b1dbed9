package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	defaultTickRate   = 30
	minTickRate       = 1
	maxTickRate       = 240
	defaultAPIPort    = 8080
	defaultStaleAfter = 30 * time.Second
)

// EngineConfig is engine.yaml. Environment variables override the file.
type EngineConfig struct {
	Version int `yaml:"version"`
	Engine  struct {
		TickRate int    `yaml:"tick_rate" env:"SENTIENT_TICK_RATE"`
		Scene    string `yaml:"scene" env:"SENTIENT_SCENE"`
	} `yaml:"engine"`
	Network struct {
		APIPort    int    `yaml:"api_port" env:"SENTIENT_API_PORT"`
		MQTTURL    string `yaml:"mqtt_url" env:"MQTT_URL"`
		FrameTopic string `yaml:"frame_topic" env:"SENTIENT_FRAME_TOPIC"`
	} `yaml:"network"`
	Store struct {
		Driver string `yaml:"driver" env:"SENTIENT_STORE_DRIVER"`
		DSN    string `yaml:"dsn" env:"SENTIENT_STORE_DSN"`
	} `yaml:"store"`
	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig maps an MQTT topic filter onto a state path.
type SourceConfig struct {
	ID         string `yaml:"id"`
	Topic      string `yaml:"topic"`
	Path       string `yaml:"path"`
	StaleAfter string `yaml:"stale_after"`
}

// TickRate returns the target ticks per second, defaulting to 30 and
// clamped to [1, 240].
func (c *EngineConfig) TickRate() int {
	switch r := c.Engine.TickRate; {
	case r == 0:
		return defaultTickRate
	case r < minTickRate:
		return minTickRate
	case r > maxTickRate:
		return maxTickRate
	default:
		return r
	}
}

// APIPort returns the configured API port, defaulting to 8080 if not set.
func (c *EngineConfig) APIPort() int {
	if c.Network.APIPort == 0 {
		return defaultAPIPort
	}
	return c.Network.APIPort
}

// Stale returns how long a source may stay silent before it is
// flagged stale.
func (s SourceConfig) Stale() (time.Duration, error) {
	if s.StaleAfter == "" {
		return defaultStaleAfter, nil
	}
	d, err := time.ParseDuration(s.StaleAfter)
	if err != nil {
		return 0, fmt.Errorf("source %s stale_after: %w", s.ID, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("source %s stale_after must be positive", s.ID)
	}
	return d, nil
}

// StoreDSN returns the data source for the configured store. A postgres
// DSN is built from the PG* variables when none is configured, with the
// password read through ResolveSecret.
func (c *EngineConfig) StoreDSN() (string, error) {
	if c.Store.DSN != "" {
		return c.Store.DSN, nil
	}
	switch c.Store.Driver {
	case "sqlite":
		return "sentient.db", nil
	case "postgres":
		password, err := ResolveSecret("PGPASSWORD")
		if err != nil {
			return "", err
		}
		dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
			getEnv("PGHOST", "127.0.0.1"), getEnv("PGPORT", "5432"),
			getEnv("PGUSER", "sentient"), getEnv("PGDATABASE", "sentient"))
		if password != "" {
			dsn += " password=" + password
		}
		return dsn, nil
	}
	return "", nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Validate checks values the accessors cannot default.
func (c *EngineConfig) Validate() error {
	switch c.Store.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported store driver: %q", c.Store.Driver)
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for _, s := range c.Sources {
		if s.ID == "" || s.Topic == "" {
			return fmt.Errorf("source needs an id and a topic: %+v", s)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("duplicate source id: %s", s.ID)
		}
		seen[s.ID] = struct{}{}
		if _, err := s.Stale(); err != nil {
			return err
		}
	}
	return nil
}

// Default returns the configuration used when no engine.yaml is given.
func Default() *EngineConfig {
	return &EngineConfig{Version: 1}
}

func LoadEngineConfig(path string) (*EngineConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg EngineConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported engine.yaml version: %d", cfg.Version)
	}

	return &cfg, nil
}

// ApplyEnv overrides cfg with any SENTIENT_* / MQTT_URL variables set.
func ApplyEnv(cfg *EngineConfig) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads path (or the defaults when path is empty), applies the
// environment and validates the result.
func Load(path string) (*EngineConfig, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadEngineConfig(path); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
