// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Fallback policy names accepted by DOCTRAN_FALLBACK_POLICY.
const (
	FallbackFailFast       = "fail_fast"
	FallbackFillWithSource = "fill_with_source"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DBPath         string `envconfig:"DOCTRAN_DB_PATH" default:"./data/doctran.db"`
	DefaultEngine  string `envconfig:"TRANSLATION_ENGINE" default:""`
	Workers        int    `envconfig:"DOCTRAN_WORKERS" default:"5"`
	FallbackPolicy string `envconfig:"DOCTRAN_FALLBACK_POLICY" default:"fail_fast"`

	TerminologyCacheTTLSeconds int `envconfig:"TERMINOLOGY_CACHE_TTL_SECONDS" default:"300"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("DOCTRAN_DB_PATH is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("DOCTRAN_WORKERS must be >= 1")
	}
	if c.TerminologyCacheTTLSeconds < 0 {
		return fmt.Errorf("TERMINOLOGY_CACHE_TTL_SECONDS must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(c.FallbackPolicy)) {
	case FallbackFailFast, FallbackFillWithSource:
	default:
		return fmt.Errorf("DOCTRAN_FALLBACK_POLICY must be %q or %q, got %q", FallbackFailFast, FallbackFillWithSource, c.FallbackPolicy)
	}
	return nil
}

// TerminologyCacheTTL returns the terminology cache lifetime.
func (c *Config) TerminologyCacheTTL() time.Duration {
	if c == nil {
		return 0
	}
	return time.Duration(c.TerminologyCacheTTLSeconds) * time.Second
}
