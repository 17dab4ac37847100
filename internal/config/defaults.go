package config

import (
	"time"

	"github.com/law-makers/shelf/pkg/models"
)

// Default constants for application configuration
const (
	DefaultLogLevel              = "info"
	DefaultJSONLog               = false
	DefaultUserAgent             = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"
	DefaultMode                  = models.ModeSPA
	DefaultMarker                = models.DefaultMarker
	DefaultFetchTimeout          = 10 * time.Second
	DefaultConcurrency           = 10
	DefaultMaxConcurrency        = 50
	DefaultCacheTTL              = 5 * time.Minute
	DefaultStaticRateLimitRPS    = 5.0
	DefaultStaticRateLimitBurst  = 10
	DefaultDynamicRateLimitRPS   = 3.0
	DefaultDynamicRateLimitBurst = 10
	DefaultBrowserPoolSize       = 10
	DefaultMaxBrowserPoolSize    = 20
	DefaultBrowserHeadless       = true
	DefaultCacheMaxSizeBytes     = 100 * 1024 * 1024 // 100MB
	DefaultListingAttempts       = 3
	DefaultPoolAcquireTTL        = 30 * time.Second
	DefaultPostgresTable         = "books"
)
