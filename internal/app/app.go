// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/shelf/internal/cache"
	"github.com/law-makers/shelf/internal/config"
	"github.com/law-makers/shelf/internal/downloader"
	"github.com/law-makers/shelf/internal/engine"
	"github.com/law-makers/shelf/internal/engine/dynamic"
	"github.com/law-makers/shelf/internal/engine/hybrid"
	"github.com/law-makers/shelf/internal/engine/static"
	"github.com/law-makers/shelf/internal/proxy"
	"github.com/law-makers/shelf/internal/ratelimit"
	"github.com/law-makers/shelf/pkg/models"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once per command invocation. Use Close() to release the
// browser pool and cache.
type Application struct {
	Config         *config.Config
	Logger         *zerolog.Logger
	Cache          *cache.MemoryCache
	BrowserPool    *dynamic.BrowserPool
	poolMu         sync.Mutex
	Proxies        *proxy.Pool
	HTTPClient     *http.Client
	StaticScraper  *static.Scraper
	DynamicScraper *dynamic.Scraper
	HybridScraper  *hybrid.Scraper
	Downloader     *downloader.Downloader
	startTime      time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures logging based on the provided config
//   - Creates the in-memory page cache
//   - Creates per-domain rate limiters for HTTP and browser fetches
//   - Initializes the HTTP client with proxy rotation
//   - Creates the static, browser and hybrid fetchers
//
// The browser pool is not started here; see EnsureBrowserPool.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := NewLogger(cfg, os.Stderr)

	memCache := cache.NewMemoryCache(cfg.CacheMaxSizeBytes)
	logger.Debug().
		Int64("max_size_bytes", cfg.CacheMaxSizeBytes).
		Dur("ttl", cfg.CacheTTL).
		Msg("Memory cache initialized")

	staticLimiter := ratelimit.NewHostLimiter(cfg.StaticRateLimitRPS, cfg.StaticRateLimitBurst)
	dynamicLimiter := ratelimit.NewHostLimiter(cfg.DynamicRateLimitRPS, cfg.DynamicRateLimitBurst)
	logger.Debug().
		Float64("static_rps", cfg.StaticRateLimitRPS).
		Float64("dynamic_rps", cfg.DynamicRateLimitRPS).
		Msg("Rate limiters initialized")

	proxies := proxy.NewPool(cfg.Proxies)

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:               proxy.Transport,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: cfg.Concurrency,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	logger.Debug().
		Int("proxies", proxies.Len()).
		Msg("HTTP client initialized")

	staticScraper := static.New(static.Options{
		Cache:     memCache,
		CacheTTL:  cfg.CacheTTL,
		Limiter:   staticLimiter,
		Client:    httpClient,
		Proxies:   proxies,
		Timeout:   cfg.FetchTimeout,
		UserAgent: cfg.UserAgent,
	})

	// No pool yet; it is attached on first browser use.
	dynamicScraper := dynamic.New(dynamic.Options{
		Cache:      memCache,
		CacheTTL:   cfg.CacheTTL,
		Limiter:    dynamicLimiter,
		Browser:    browserOptions(cfg, proxies),
		Timeout:    cfg.FetchTimeout,
		AcquireTTL: cfg.PoolAcquireTTL,
	})

	app := &Application{
		Config:         cfg,
		Logger:         &logger,
		Cache:          memCache,
		Proxies:        proxies,
		HTTPClient:     httpClient,
		StaticScraper:  staticScraper,
		DynamicScraper: dynamicScraper,
		Downloader:     downloader.NewDownloader(httpClient, cfg.FetchTimeout, cfg.UserAgent),
		startTime:      time.Now(),
	}
	app.HybridScraper = hybrid.New(staticScraper, &pooledBrowser{app: app})

	logger.Debug().Msg("Application initialized")
	return app, nil
}

// NewLogger configures the global zerolog level and returns the application logger.
// Anything below error is hidden unless -v was given.
func NewLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	logLevel := zerolog.ErrorLevel
	switch cfg.LogLevel {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	var logWriter io.Writer = w
	if !cfg.JSONLog {
		logWriter = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(logWriter).With().Timestamp().Logger()
	log.Logger = logger

	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")

	return logger
}

func browserOptions(cfg *config.Config, proxies *proxy.Pool) dynamic.BrowserPoolOptions {
	return dynamic.BrowserPoolOptions{
		Size:       cfg.BrowserPoolSize,
		Headless:   cfg.BrowserHeadless,
		UserAgent:  cfg.UserAgent,
		Proxy:      proxies.Next(),
		ChromePath: cfg.ChromePath,
	}
}

// Fetcher returns the page fetcher for mode, starting the browser pool when
// the mode always renders.
func (a *Application) Fetcher(ctx context.Context, mode models.ScraperMode) (engine.Fetcher, error) {
	switch mode {
	case models.ModeStatic:
		return a.StaticScraper, nil
	case models.ModeAuto:
		return a.HybridScraper, nil
	case models.ModeSPA, "":
		if err := a.EnsureBrowserPool(ctx); err != nil {
			return nil, err
		}
		return a.DynamicScraper, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// EnsureBrowserPool lazily creates the browser pool if it has not already been
// initialized.
func (a *Application) EnsureBrowserPool(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("application is nil")
	}

	a.poolMu.Lock()
	defer a.poolMu.Unlock()

	if a.BrowserPool != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := browserOptions(a.Config, a.Proxies)
	a.Logger.Debug().
		Int("size", opts.Size).
		Str("chrome", dynamic.GetChromeVersion(dynamic.FindChrome(opts.ChromePath))).
		Msg("Initializing browser pool on demand")

	pool, err := dynamic.NewBrowserPool(opts)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to create browser pool")
		if dynamic.FindChrome(opts.ChromePath) == "" {
			return fmt.Errorf("starting browser: %w: %v", engine.ErrBrowserNotFound, err)
		}
		return fmt.Errorf("starting browser: %w", err)
	}

	a.BrowserPool = pool
	a.DynamicScraper.SetBrowserPool(pool)

	a.Logger.Debug().Int("pool_size", pool.Size()).Msg("Browser pool initialized on demand")
	return nil
}

// pooledBrowser starts the browser pool on first use.
type pooledBrowser struct {
	app *Application
}

func (p *pooledBrowser) Name() string {
	return p.app.DynamicScraper.Name()
}

func (p *pooledBrowser) Fetch(ctx context.Context, opts models.RequestOptions) (*models.PageData, error) {
	if err := p.app.EnsureBrowserPool(ctx); err != nil {
		// The scraper falls back to a one-shot browser without a pool.
		p.app.Logger.Debug().Err(err).Msg("Rendering without browser pool")
	}
	return p.app.DynamicScraper.Fetch(ctx, opts)
}

// Close gracefully shuts down the application and all its resources.
//
// It performs the following cleanup steps in order:
//   - Closes the browser pool
//   - Logs cache statistics and closes the cache
//   - Closes idle HTTP connections
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Msg("Shutting down application")

	a.poolMu.Lock()
	if a.BrowserPool != nil {
		a.Logger.Debug().
			Int("size", a.BrowserPool.Size()).
			Int("idle", a.BrowserPool.Available()).
			Msg("Closing browser pool")
		if err := a.BrowserPool.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing browser pool")
		}
		a.BrowserPool = nil
	}
	a.poolMu.Unlock()

	if a.Cache != nil {
		stats := a.Cache.Stats()
		a.Logger.Debug().
			Int("entries", stats.Entries).
			Int64("size_bytes", stats.Bytes).
			Uint64("hits", stats.Hits).
			Uint64("misses", stats.Misses).
			Float64("hit_rate", stats.HitRate()).
			Msg("Cache statistics")
		a.Cache.Close()
	}

	if a.HTTPClient != nil {
		a.HTTPClient.CloseIdleConnections()
	}

	a.Logger.Debug().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
