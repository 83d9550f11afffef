package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Beacon configuration. Values come from an optional YAML
// file (BEACON_CONFIG) with environment variables layered on top.
type Config struct {
	// HTTP
	Addr string

	// Stream limits
	MaxClients  int           // hard cap on concurrent stream connections
	MaxHistory  int           // replay buffer capacity
	IdleTimeout time.Duration // per-connection idle watchdog
	ChunkDelay  time.Duration // delay between chunked broadcast steps

	// Auth
	TokenSecret   string // HMAC signing secret; empty = ephemeral secret at startup
	TokenTTL      time.Duration
	AdminUser     string
	AdminPassword string // empty = skip first-run admin bootstrap

	// Storage
	DBPath string

	// Metrics
	MetricsTextfile string // node_exporter textfile path; empty = disabled

	// Logging
	LogJSON  bool
	LogDebug bool
}

// fileConfig mirrors Config for YAML decoding. Durations are strings so the
// file can say "30m" rather than nanosecond integers.
type fileConfig struct {
	Addr            *string `yaml:"addr"`
	MaxClients      *int    `yaml:"max_clients"`
	MaxHistory      *int    `yaml:"max_history"`
	IdleTimeout     *string `yaml:"idle_timeout"`
	ChunkDelay      *string `yaml:"chunk_delay"`
	TokenSecret     *string `yaml:"token_secret"`
	TokenTTL        *string `yaml:"token_ttl"`
	AdminUser       *string `yaml:"admin_user"`
	AdminPassword   *string `yaml:"admin_password"`
	DBPath          *string `yaml:"db_path"`
	MetricsTextfile *string `yaml:"metrics_textfile"`
	LogJSON         *bool   `yaml:"log_json"`
	LogDebug        *bool   `yaml:"log_debug"`
}

// Load builds the configuration: defaults, then the YAML file named by
// BEACON_CONFIG (if any), then environment variable overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:        ":8080",
		MaxClients:  100,
		MaxHistory:  100,
		IdleTimeout: 30 * time.Minute,
		ChunkDelay:  100 * time.Millisecond,
		TokenTTL:    time.Hour,
		AdminUser:   "admin",
		DBPath:      "/data/beacon.db",
		LogJSON:     true,
	}

	if path := os.Getenv("BEACON_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setDur := func(dst *time.Duration, src *string, key string) error {
		if src == nil {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q", key, *src)
		}
		*dst = d
		return nil
	}

	setStr(&c.Addr, fc.Addr)
	setInt(&c.MaxClients, fc.MaxClients)
	setInt(&c.MaxHistory, fc.MaxHistory)
	setStr(&c.TokenSecret, fc.TokenSecret)
	setStr(&c.AdminUser, fc.AdminUser)
	setStr(&c.AdminPassword, fc.AdminPassword)
	setStr(&c.DBPath, fc.DBPath)
	setStr(&c.MetricsTextfile, fc.MetricsTextfile)
	setBool(&c.LogJSON, fc.LogJSON)
	setBool(&c.LogDebug, fc.LogDebug)

	return errors.Join(
		setDur(&c.IdleTimeout, fc.IdleTimeout, "idle_timeout"),
		setDur(&c.ChunkDelay, fc.ChunkDelay, "chunk_delay"),
		setDur(&c.TokenTTL, fc.TokenTTL, "token_ttl"),
	)
}

func (c *Config) applyEnv() {
	c.Addr = envStr("BEACON_ADDR", c.Addr)
	c.MaxClients = envInt("BEACON_MAX_CLIENTS", c.MaxClients)
	c.MaxHistory = envInt("BEACON_MAX_HISTORY", c.MaxHistory)
	c.IdleTimeout = envDuration("BEACON_IDLE_TIMEOUT", c.IdleTimeout)
	c.ChunkDelay = envDuration("BEACON_CHUNK_DELAY", c.ChunkDelay)
	c.TokenSecret = envStr("BEACON_TOKEN_SECRET", c.TokenSecret)
	c.TokenTTL = envDuration("BEACON_TOKEN_TTL", c.TokenTTL)
	c.AdminUser = envStr("BEACON_ADMIN_USER", c.AdminUser)
	c.AdminPassword = envStr("BEACON_ADMIN_PASSWORD", c.AdminPassword)
	c.DBPath = envStr("BEACON_DB_PATH", c.DBPath)
	c.MetricsTextfile = envStr("BEACON_METRICS_TEXTFILE", c.MetricsTextfile)
	c.LogJSON = envBool("BEACON_LOG_JSON", c.LogJSON)
	c.LogDebug = envBool("BEACON_LOG_DEBUG", c.LogDebug)
}

// Validate checks configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxClients <= 0 {
		errs = append(errs, fmt.Errorf("BEACON_MAX_CLIENTS must be > 0, got %d", c.MaxClients))
	}
	if c.MaxHistory <= 0 {
		errs = append(errs, fmt.Errorf("BEACON_MAX_HISTORY must be > 0, got %d", c.MaxHistory))
	}
	if c.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("BEACON_IDLE_TIMEOUT must be > 0, got %s", c.IdleTimeout))
	}
	if c.ChunkDelay < 0 {
		errs = append(errs, fmt.Errorf("BEACON_CHUNK_DELAY must be >= 0, got %s", c.ChunkDelay))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("BEACON_TOKEN_TTL must be > 0, got %s", c.TokenTTL))
	}
	return errors.Join(errs...)
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
