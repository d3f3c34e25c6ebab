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
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Alert      AlertConfig      `yaml:"alert"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the HTTP server configuration.
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
	EnableTimescale        bool   `yaml:"enable_timescale"`
}

// SchedulerConfig controls the periodic maintenance check loop and the
// daily usage rollup job.
type SchedulerConfig struct {
	Enabled             bool          `yaml:"enabled"`
	IntervalMinutes     int           `yaml:"interval_minutes"`
	Interval            time.Duration `yaml:"-"` // Derived from IntervalMinutes
	StartupDelaySeconds int           `yaml:"startup_delay_seconds"`
	StartupDelay        time.Duration `yaml:"-"`
	RollupHour          int           `yaml:"rollup_hour"`
	RollupMinute        int           `yaml:"rollup_minute"`
	Timezone            string        `yaml:"timezone"`
}

// Location resolves the configured timezone. It is shared by the daily
// rollup and the usage-window queries so both bucket days on the same
// midnight. An unparseable zone falls back to the process-local one.
func (c *SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// AlertConfig holds the thresholds used by the alert decision engine.
// Zero values are replaced with defaults in Load.
type AlertConfig struct {
	ApproachingDays   float64       `yaml:"approaching_days"`
	UsageFraction     float64       `yaml:"usage_fraction"`
	ApproachingUnits  float64       `yaml:"approaching_units"`
	WarningUnits      float64       `yaml:"warning_units"`
	SuppressionHours  int           `yaml:"suppression_hours"`
	SuppressionWindow time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path and applies defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields with their documented defaults.
// Exposed so tests can build a Config without a file on disk.
func (cfg *Config) ApplyDefaults() {
	if cfg.Scheduler.IntervalMinutes <= 0 {
		cfg.Scheduler.IntervalMinutes = 60
	}
	cfg.Scheduler.Interval = time.Duration(cfg.Scheduler.IntervalMinutes) * time.Minute

	if cfg.Scheduler.StartupDelaySeconds <= 0 {
		cfg.Scheduler.StartupDelaySeconds = 10
	}
	cfg.Scheduler.StartupDelay = time.Duration(cfg.Scheduler.StartupDelaySeconds) * time.Second

	if cfg.Scheduler.RollupHour == 0 && cfg.Scheduler.RollupMinute == 0 {
		cfg.Scheduler.RollupMinute = 5
	}
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "Local"
	}

	if cfg.Alert.ApproachingDays <= 0 {
		cfg.Alert.ApproachingDays = 5
	}
	if cfg.Alert.UsageFraction <= 0 {
		cfg.Alert.UsageFraction = 0.80
	}
	if cfg.Alert.ApproachingUnits <= 0 {
		cfg.Alert.ApproachingUnits = 24
	}
	if cfg.Alert.WarningUnits <= 0 {
		cfg.Alert.WarningUnits = 100
	}
	if cfg.Alert.SuppressionHours <= 0 {
		cfg.Alert.SuppressionHours = 24
	}
	cfg.Alert.SuppressionWindow = time.Duration(cfg.Alert.SuppressionHours) * time.Hour

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}
}
