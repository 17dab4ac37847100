// internal/engine/dynamic/scraper.go
package dynamic

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/shelf/internal/cache"
	"github.com/law-makers/shelf/internal/engine"
	"github.com/law-makers/shelf/internal/ratelimit"
	"github.com/law-makers/shelf/pkg/models"
)

// Scraper renders pages in headless Chrome and waits for the readiness marker.
type Scraper struct {
	cache       cache.Cache
	cacheTTL    time.Duration
	limiter     ratelimit.Limiter
	browserPool *BrowserPool
	browserOpts BrowserPoolOptions
	timeout     time.Duration
	acquireTTL  time.Duration
	mu          sync.RWMutex
}

// Options configures a Scraper.
type Options struct {
	Cache      cache.Cache
	CacheTTL   time.Duration
	Limiter    ratelimit.Limiter
	Pool       *BrowserPool
	Browser    BrowserPoolOptions // used for one-shot browsers when Pool is nil
	Timeout    time.Duration
	AcquireTTL time.Duration
}

// New creates a new dynamic Scraper
func New(opts Options) *Scraper {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.AcquireTTL <= 0 {
		opts.AcquireTTL = 30 * time.Second
	}
	return &Scraper{
		cache:       opts.Cache,
		cacheTTL:    opts.CacheTTL,
		limiter:     opts.Limiter,
		browserPool: opts.Pool,
		browserOpts: opts.Browser,
		timeout:     opts.Timeout,
		acquireTTL:  opts.AcquireTTL,
	}
}

// SetBrowserPool updates the browser pool used by the scraper (thread-safe)
func (d *Scraper) SetBrowserPool(bp *BrowserPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.browserPool = bp
}

func (d *Scraper) pool() *BrowserPool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.browserPool
}

// Name returns the name of this scraper
func (d *Scraper) Name() string {
	return "dynamic"
}

// Fetch navigates to opts.URL, waits up to the timeout for opts.Marker and
// returns the rendered HTML.
func (d *Scraper) Fetch(ctx context.Context, opts models.RequestOptions) (*models.PageData, error) {
	start := time.Now()

	marker := opts.Marker
	if marker == "" {
		marker = models.DefaultMarker
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = d.timeout
	}

	cacheKey := cache.Key(opts.URL, marker)
	if d.cache != nil {
		if cached, ok := d.cache.Get(cacheKey); ok {
			return cached, nil
		}
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, opts.URL); err != nil {
			return nil, engine.NavigationError(opts.URL, err)
		}
	}

	log.Debug().
		Str("url", opts.URL).
		Str("marker", marker).
		Str("scraper", d.Name()).
		Msg("Starting fetch")

	tabCtx, release, err := d.tab(ctx, opts)
	if err != nil {
		return nil, engine.NavigationError(opts.URL, err)
	}
	defer release()

	runCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()
	// The tab outlives ctx when pooled, so tie the run to the caller's cancellation.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var statusCode atomic.Int64
	headers := make(map[string]string)
	var headersMu sync.Mutex
	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		if ev, ok := ev.(*network.EventResponseReceived); ok && ev.Response.URL == opts.URL {
			statusCode.Store(ev.Response.Status)
			headersMu.Lock()
			for key, value := range ev.Response.Headers {
				if s, ok := value.(string); ok {
					headers[key] = s
				}
			}
			headersMu.Unlock()
		}
	})

	setup := []chromedp.Action{network.Enable()}
	if len(opts.Headers) > 0 {
		extra := make(network.Headers, len(opts.Headers))
		for k, v := range opts.Headers {
			extra[k] = v
		}
		setup = append(setup, network.SetExtraHTTPHeaders(extra))
	}
	setup = append(setup, chromedp.Navigate(opts.URL))

	if err := chromedp.Run(runCtx, setup...); err != nil {
		return nil, d.classify(ctx, runCtx, opts.URL, marker, err)
	}

	if err := chromedp.Run(runCtx, chromedp.WaitReady(marker, chromedp.ByQuery)); err != nil {
		return nil, d.classify(ctx, runCtx, opts.URL, marker, err)
	}

	var title, htmlContent string
	if err := chromedp.Run(runCtx,
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &htmlContent, chromedp.ByQuery),
	); err != nil {
		return nil, d.classify(ctx, runCtx, opts.URL, marker, err)
	}

	headersMu.Lock()
	pageData := &models.PageData{
		URL:          opts.URL,
		StatusCode:   int(statusCode.Load()),
		Title:        title,
		HTML:         htmlContent,
		Headers:      headers,
		Engine:       d.Name(),
		FetchedAt:    time.Now(),
		ResponseTime: time.Since(start).Milliseconds(),
	}
	headersMu.Unlock()

	if d.cache != nil {
		if err := d.cache.Set(cacheKey, pageData, d.cacheTTL); err != nil {
			log.Debug().Err(err).Str("url", opts.URL).Msg("Page not cached")
		}
	}

	log.Debug().
		Str("url", opts.URL).
		Int("status", pageData.StatusCode).
		Int64("response_time_ms", pageData.ResponseTime).
		Msg("Fetch completed")

	return pageData, nil
}

// tab hands out a pooled tab, or a one-shot browser when no pool is attached.
func (d *Scraper) tab(ctx context.Context, opts models.RequestOptions) (context.Context, func(), error) {
	if pool := d.pool(); pool != nil {
		acquireCtx, cancel := context.WithTimeout(ctx, d.acquireTTL)
		defer cancel()

		t, err := pool.Acquire(acquireCtx)
		if err != nil {
			return nil, nil, err
		}
		return t.Ctx, func() { pool.Release(t) }, nil
	}

	bo := d.browserOpts
	if opts.Proxy != "" {
		bo.Proxy = opts.Proxy
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocatorOptions(bo)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	return tabCtx, func() {
		tabCancel()
		allocCancel()
	}, nil
}

// classify maps a chromedp failure onto the fetch error taxonomy.
func (d *Scraper) classify(parent, runCtx context.Context, url, marker string, err error) error {
	if parent.Err() != nil {
		return engine.NavigationError(url, parent.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return engine.TimeoutError(url, marker, err)
	}
	return engine.NavigationError(url, err)
}
