// Package config reads waypoint settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every WAYPOINT_* setting. Command-line flags override it.
type Config struct {
	AuthorityURL string        `env:"WAYPOINT_AUTHORITY_URL" envDefault:"http://localhost:8087"`
	DB           string        `env:"WAYPOINT_DB"            envDefault:"waypoint.db"`
	Story        string        `env:"WAYPOINT_STORY"`
	Listen       string        `env:"WAYPOINT_LISTEN"        envDefault:":8087"`
	PIN          string        `env:"WAYPOINT_PIN"`
	HTTPTimeout  time.Duration `env:"WAYPOINT_HTTP_TIMEOUT"  envDefault:"10s"`
	Lockout      time.Duration `env:"WAYPOINT_LOCKOUT"       envDefault:"30m"`
	MaxAttempts  int           `env:"WAYPOINT_MAX_ATTEMPTS"  envDefault:"5"`
}

// Load parses the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the guard and transport cannot work with.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("WAYPOINT_MAX_ATTEMPTS must be at least 1, got %d", c.MaxAttempts)
	}
	if c.Lockout <= 0 {
		return fmt.Errorf("WAYPOINT_LOCKOUT must be positive, got %s", c.Lockout)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("WAYPOINT_HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	return nil
}
