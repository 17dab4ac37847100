package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/law-makers/shelf/internal/utils/headers"
	"github.com/law-makers/shelf/pkg/models"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string `yaml:"log_level"`
	JSONLog  bool   `yaml:"json_log"`

	// Fetching
	Mode         models.ScraperMode `yaml:"mode"`
	Marker       string             `yaml:"marker"`
	FetchTimeout time.Duration      `yaml:"fetch_timeout"`
	UserAgent    string             `yaml:"user_agent"`
	Proxies      []string           `yaml:"proxies"`
	Headers      map[string]string  `yaml:"headers"`

	// Harvesting
	Concurrency     int `yaml:"concurrency"`
	ListingAttempts int `yaml:"listing_attempts"`

	// Rate Limiting
	StaticRateLimitRPS    float64 `yaml:"static_rate_limit_rps"`
	StaticRateLimitBurst  int     `yaml:"static_rate_limit_burst"`
	DynamicRateLimitRPS   float64 `yaml:"dynamic_rate_limit_rps"`
	DynamicRateLimitBurst int     `yaml:"dynamic_rate_limit_burst"`

	// Browser Pool
	BrowserPoolSize int           `yaml:"browser_pool_size"`
	BrowserHeadless bool          `yaml:"browser_headless"`
	ChromePath      string        `yaml:"chrome_path"`
	PoolAcquireTTL  time.Duration `yaml:"pool_acquire_ttl"`

	// Caching
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	CacheMaxSizeBytes int64         `yaml:"cache_max_size_bytes"`

	// Output
	PostgresDSN   string `yaml:"postgres_dsn"`
	PostgresTable string `yaml:"postgres_table"`
}

// Defaults returns a Config populated with the default constants.
func Defaults() *Config {
	return &Config{
		LogLevel:              DefaultLogLevel,
		JSONLog:               DefaultJSONLog,
		Mode:                  DefaultMode,
		Marker:                DefaultMarker,
		FetchTimeout:          DefaultFetchTimeout,
		UserAgent:             DefaultUserAgent,
		Concurrency:           DefaultConcurrency,
		ListingAttempts:       DefaultListingAttempts,
		StaticRateLimitRPS:    DefaultStaticRateLimitRPS,
		StaticRateLimitBurst:  DefaultStaticRateLimitBurst,
		DynamicRateLimitRPS:   DefaultDynamicRateLimitRPS,
		DynamicRateLimitBurst: DefaultDynamicRateLimitBurst,
		BrowserPoolSize:       DefaultBrowserPoolSize,
		BrowserHeadless:       DefaultBrowserHeadless,
		PoolAcquireTTL:        DefaultPoolAcquireTTL,
		CacheTTL:              DefaultCacheTTL,
		CacheMaxSizeBytes:     DefaultCacheMaxSizeBytes,
		PostgresTable:         DefaultPostgresTable,
	}
}

// Load builds a Config by combining defaults, an optional config file, environment variables, and CLI flags.
// Caller should pass the executing *cobra.Command so both persistent and local flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := Defaults()

	if cmd != nil {
		if f := cmd.Flags().Lookup("config"); f != nil && f.Value.String() != "" {
			if err := loadFile(cfg, f.Value.String()); err != nil {
				return nil, err
			}
		}
	}

	// Override from environment variables (simple helpers)
	if v := os.Getenv("SHELF_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("SHELF_PROXY"); v != "" {
		cfg.Proxies = strings.Split(v, ",")
	}
	if v := os.Getenv("SHELF_CHROME_PATH"); v != "" {
		cfg.ChromePath = v
	}
	if v := os.Getenv("SHELF_PG_DSN"); v != "" {
		cfg.PostgresDSN = v
	}

	// Read CLI flags if provided
	if cmd != nil {
		if err := applyFlags(cmd, cfg); err != nil {
			return nil, err
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyFlags(cmd *cobra.Command, cfg *Config) error {
	flags := cmd.Flags()

	if f := flags.Lookup("user-agent"); f != nil {
		if s := f.Value.String(); s != "" {
			cfg.UserAgent = s
		}
	}
	if f := flags.Lookup("proxy"); f != nil && f.Changed {
		if proxies, err := flags.GetStringSlice("proxy"); err == nil {
			cfg.Proxies = proxies
		}
	}
	if f := flags.Lookup("timeout"); f != nil && f.Changed {
		d, err := time.ParseDuration(f.Value.String())
		if err != nil {
			return fmt.Errorf("--timeout %q: %w (use a unit, e.g. 10s)", f.Value.String(), err)
		}
		cfg.FetchTimeout = d
	}
	if f := flags.Lookup("mode"); f != nil && f.Changed {
		cfg.Mode = models.ScraperMode(strings.ToLower(f.Value.String()))
	}
	if f := flags.Lookup("marker"); f != nil {
		if s := f.Value.String(); s != "" {
			cfg.Marker = s
		}
	}
	if f := flags.Lookup("concurrency"); f != nil && f.Changed {
		if n, err := flags.GetInt("concurrency"); err == nil {
			cfg.Concurrency = n
		}
	}
	if f := flags.Lookup("header"); f != nil && f.Changed {
		if hs, err := flags.GetStringArray("header"); err == nil {
			if cfg.Headers == nil {
				cfg.Headers = make(map[string]string)
			}
			for k, v := range headers.ParseHeaders(hs) {
				cfg.Headers[k] = v
			}
		}
	}
	if f := flags.Lookup("pg-dsn"); f != nil {
		if s := f.Value.String(); s != "" {
			cfg.PostgresDSN = s
		}
	}
	if f := flags.Lookup("headful"); f != nil && f.Value.String() == "true" {
		cfg.BrowserHeadless = false
	}
	if f := flags.Lookup("json"); f != nil {
		if f.Value.String() == "true" {
			cfg.JSONLog = true
		}
	}
	if f := flags.Lookup("quiet"); f != nil {
		if f.Value.String() == "true" {
			cfg.LogLevel = "error"
		}
	}
	if f := flags.Lookup("verbose"); f != nil {
		if f.Value.String() == "true" {
			cfg.LogLevel = "debug"
		}
	}

	// A browser context per concurrent worker keeps the pool from becoming the bottleneck.
	if cfg.BrowserPoolSize < cfg.Concurrency && cfg.Concurrency <= DefaultMaxBrowserPoolSize {
		cfg.BrowserPoolSize = cfg.Concurrency
	}
	return nil
}
