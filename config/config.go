package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Budget     BudgetConfig     `yaml:"budget"`
	Batch      BatchConfig      `yaml:"batch"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// BudgetConfig holds the daily session budget settings. The reset
// time-of-day is interpreted in the configured timezone, not UTC.
type BudgetConfig struct {
	DailyLimitSeconds int            `yaml:"daily_limit_seconds"`
	ResetHour         int            `yaml:"reset_hour"`
	ResetMinute       int            `yaml:"reset_minute"`
	Timezone          string         `yaml:"timezone"`
	Location          *time.Location `yaml:"-"` // Resolved from Timezone at load time
}

// BatchConfig holds the batch assignment policy constants. OverflowThreshold
// is deployment-wide; DefaultCapacity is the fallback for events created
// without an explicit per-batch capacity.
type BatchConfig struct {
	OverflowThreshold int `yaml:"overflow_threshold"`
	DefaultCapacity   int `yaml:"default_capacity"`
}

// WorkerPoolConfig holds the configuration for the reassignment worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	if cfg.Budget.DailyLimitSeconds <= 0 {
		cfg.Budget.DailyLimitSeconds = 21 * 60
	}
	if cfg.Budget.ResetHour < 0 || cfg.Budget.ResetHour > 23 {
		return nil, fmt.Errorf("budget.reset_hour %d out of range", cfg.Budget.ResetHour)
	}
	if cfg.Budget.ResetMinute < 0 || cfg.Budget.ResetMinute > 59 {
		return nil, fmt.Errorf("budget.reset_minute %d out of range", cfg.Budget.ResetMinute)
	}
	if cfg.Budget.Timezone == "" {
		cfg.Budget.Timezone = "Local"
	}
	loc, err := time.LoadLocation(cfg.Budget.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid budget.timezone %q: %w", cfg.Budget.Timezone, err)
	}
	cfg.Budget.Location = loc

	if cfg.Batch.OverflowThreshold <= 0 {
		cfg.Batch.OverflowThreshold = 6
	}
	if cfg.Batch.DefaultCapacity <= 0 {
		cfg.Batch.DefaultCapacity = 21
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
