// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	Browser BrowserConfig `mapstructure:"browser"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Poll    PollConfig    `mapstructure:"poll"`
	Listing ListingConfig `mapstructure:"listing"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Events  EventsConfig  `mapstructure:"events"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the read API server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DBConfig controls access to the snapshot database. An empty DSN selects
// the in-memory store (local development only).
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// BrowserConfig governs the session pool and per-attempt timeouts.
type BrowserConfig struct {
	PoolSize          int    `mapstructure:"pool_size"`
	AcquireTimeoutSec int    `mapstructure:"acquire_timeout_seconds"`
	NavTimeoutSec     int    `mapstructure:"nav_timeout_seconds"`
	SectionTimeoutSec int    `mapstructure:"section_timeout_seconds"`
	AttemptTimeoutSec int    `mapstructure:"attempt_timeout_seconds"`
	UserAgent         string `mapstructure:"user_agent"`
}

// RetryConfig configures transient failure handling.
type RetryConfig struct {
	MaxRetries         int `mapstructure:"max_retries"`
	BackoffBaseMs      int `mapstructure:"backoff_base_ms"`
	BackoffCeilingSec  int `mapstructure:"backoff_ceiling_seconds"`
	StructuralDeferMin int `mapstructure:"structural_defer_minutes"`
}

// PollConfig sets the per-lifecycle-state scrape cadence.
type PollConfig struct {
	UpcomingMin int `mapstructure:"upcoming_minutes"`
	LiveSec     int `mapstructure:"live_seconds"`
	TickMs      int `mapstructure:"tick_ms"`
}

// ListingConfig points at the fixtures page that seeds the match registry.
type ListingConfig struct {
	URL         string `mapstructure:"url"`
	IntervalMin int    `mapstructure:"interval_minutes"`
}

// ArchiveConfig controls raw-DOM archival of structural failures.
type ArchiveConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Provider string `mapstructure:"provider"`
	Dir      string `mapstructure:"dir"`
	Bucket   string `mapstructure:"bucket"`
}

// EventsConfig holds metadata for written-snapshot notifications.
type EventsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRICSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("browser.pool_size", 3)
	v.SetDefault("browser.acquire_timeout_seconds", 15)
	v.SetDefault("browser.nav_timeout_seconds", 25)
	v.SetDefault("browser.section_timeout_seconds", 10)
	v.SetDefault("browser.attempt_timeout_seconds", 60)
	v.SetDefault("browser.user_agent", "cricsync-bot/0.1")
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.backoff_base_ms", 2000)
	v.SetDefault("retry.backoff_ceiling_seconds", 300)
	v.SetDefault("retry.structural_defer_minutes", 20)
	v.SetDefault("poll.upcoming_minutes", 30)
	v.SetDefault("poll.live_seconds", 30)
	v.SetDefault("poll.tick_ms", 1000)
	v.SetDefault("listing.url", "https://crex.live/fixtures/match-list")
	v.SetDefault("listing.interval_minutes", 15)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.provider", "local")
	v.SetDefault("archive.dir", "./archive")
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.topic", "cricsync-snapshots")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Browser.PoolSize <= 0 {
		return fmt.Errorf("browser.pool_size must be > 0")
	}
	if c.Browser.AttemptTimeoutSec <= 0 {
		return fmt.Errorf("browser.attempt_timeout_seconds must be > 0")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0")
	}
	if c.Poll.LiveSec <= 0 || c.Poll.UpcomingMin <= 0 {
		return fmt.Errorf("poll intervals must be > 0")
	}
	if c.Listing.URL == "" {
		return fmt.Errorf("listing.url is required")
	}
	if c.Archive.Enabled && c.Archive.Provider == "gcs" && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket must be set when archive.provider is gcs")
	}
	if c.Events.Enabled && c.Events.ProjectID == "" {
		return fmt.Errorf("events.project_id must be set when events are enabled")
	}
	return nil
}

// AcquireTimeout returns the session acquisition wait as a duration.
func (c BrowserConfig) AcquireTimeout() time.Duration {
	return time.Duration(c.AcquireTimeoutSec) * time.Second
}

// NavTimeout returns the page load wait as a duration.
func (c BrowserConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// SectionTimeout returns the section marker wait as a duration.
func (c BrowserConfig) SectionTimeout() time.Duration {
	return time.Duration(c.SectionTimeoutSec) * time.Second
}

// AttemptTimeout returns the overall per-attempt budget as a duration.
func (c BrowserConfig) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutSec) * time.Second
}

// BackoffBase returns the transient retry base delay.
func (c RetryConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMs) * time.Millisecond
}

// BackoffCeiling returns the maximum reschedule delay after exhausted retries.
func (c RetryConfig) BackoffCeiling() time.Duration {
	return time.Duration(c.BackoffCeilingSec) * time.Second
}

// StructuralDefer returns the reschedule delay after structural failures.
func (c RetryConfig) StructuralDefer() time.Duration {
	return time.Duration(c.StructuralDeferMin) * time.Minute
}

// UpcomingInterval returns the info/squads cadence for upcoming matches.
func (c PollConfig) UpcomingInterval() time.Duration {
	return time.Duration(c.UpcomingMin) * time.Minute
}

// LiveInterval returns the live/scorecard cadence for live matches.
func (c PollConfig) LiveInterval() time.Duration {
	return time.Duration(c.LiveSec) * time.Second
}

// TickInterval returns the scheduler tick cadence for the process driver.
func (c PollConfig) TickInterval() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// ListingInterval returns the fixtures refresh cadence.
func (c ListingConfig) ListingInterval() time.Duration {
	return time.Duration(c.IntervalMin) * time.Minute
}
