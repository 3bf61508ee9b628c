// Package config loads the engine configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Engine struct {
		InstanceID               string `yaml:"instance_id"`
		ResidualMarkSeconds      int    `yaml:"residual_mark_seconds"`
		PauseFulfillPostChoreDOD bool   `yaml:"pause_fulfill_post_chore_dod"`
		SweepCron                string `yaml:"sweep_cron"`
	} `yaml:"engine"`
	Limits struct {
		// Decimal strings; empty or "0" disables the check.
		MaxPerSecurityNotional string `yaml:"max_per_security_notional"`
		MaxPerIssuerNotional   string `yaml:"max_per_issuer_notional"`
	} `yaml:"limits"`
	// FXRates maps security symbol to its local-per-USD rate (decimal
	// strings). Refreshed out-of-band in production; seeded here.
	FXRates  map[string]string `yaml:"fx_rates"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error; env and defaults
// still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("INSTANCE_ID"); v != "" {
		cfg.Engine.InstanceID = v
	}
	if v := os.Getenv("RESIDUAL_MARK_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Engine.ResidualMarkSeconds = secs
		}
	}
	if v := os.Getenv("PAUSE_FULFILL_POST_CHORE_DOD"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Engine.PauseFulfillPostChoreDOD = b
		}
	}
	if v := os.Getenv("SWEEP_CRON"); v != "" {
		cfg.Engine.SweepCron = v
	}

	// Defaults
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Engine.InstanceID == "" {
		cfg.Engine.InstanceID = "chorex-1"
	}
	if cfg.Engine.SweepCron == "" {
		cfg.Engine.SweepCron = "@every 30s"
	}

	return cfg, nil
}

// DecimalRates converts the configured FX rate strings to decimals. Rates
// that do not parse are dropped; the converter treats a missing rate as a
// fatal configuration error at use time.
func (c *Config) DecimalRates() map[string]decimal.Decimal {
	rates := make(map[string]decimal.Decimal, len(c.FXRates))
	for sym, raw := range c.FXRates {
		if rate, err := decimal.NewFromString(raw); err == nil {
			rates[sym] = rate
		}
	}
	return rates
}

// DecimalLimit parses a limit string; empty or malformed means disabled.
func DecimalLimit(raw string) decimal.Decimal {
	limit, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return limit
}
