package config

import (
	"fmt"

	"github.com/law-makers/shelf/pkg/models"
)

func validate(c *Config) error {
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be > 0")
	}
	if c.Concurrency <= 0 || c.Concurrency > DefaultMaxConcurrency {
		return fmt.Errorf("concurrency must be between 1 and %d", DefaultMaxConcurrency)
	}
	if c.BrowserPoolSize <= 0 || c.BrowserPoolSize > DefaultMaxBrowserPoolSize {
		return fmt.Errorf("browser pool size must be between 1 and %d", DefaultMaxBrowserPoolSize)
	}
	if c.CacheMaxSizeBytes <= 0 {
		return fmt.Errorf("cache max size must be > 0")
	}
	if c.ListingAttempts <= 0 {
		return fmt.Errorf("listing attempts must be > 0")
	}
	if _, ok := models.ParseMode(string(c.Mode)); !ok {
		return fmt.Errorf("invalid mode: %s (must be auto, static, or spa)", c.Mode)
	}
	if c.Marker == "" {
		return fmt.Errorf("readiness marker must not be empty")
	}
	return nil
}
