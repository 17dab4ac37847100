// internal/engine/static/scraper.go
package static

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/shelf/internal/cache"
	"github.com/law-makers/shelf/internal/config"
	"github.com/law-makers/shelf/internal/engine"
	"github.com/law-makers/shelf/internal/proxy"
	"github.com/law-makers/shelf/internal/ratelimit"
	"github.com/law-makers/shelf/internal/retry"
	"github.com/law-makers/shelf/pkg/models"
)

// Scraper fetches pages over plain HTTP and checks the marker with goquery.
type Scraper struct {
	cache     cache.Cache
	cacheTTL  time.Duration
	limiter   ratelimit.Limiter
	client    *http.Client
	proxies   *proxy.Pool
	timeout   time.Duration
	userAgent string
}

// Options configures a Scraper.
type Options struct {
	Cache     cache.Cache
	CacheTTL  time.Duration
	Limiter   ratelimit.Limiter
	Client    *http.Client
	Proxies   *proxy.Pool
	Timeout   time.Duration
	UserAgent string
}

// New creates a new static Scraper
func New(opts Options) *Scraper {
	if opts.Client == nil {
		opts.Client = &http.Client{Transport: &http.Transport{Proxy: proxy.Transport}}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultFetchTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}
	return &Scraper{
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		limiter:   opts.Limiter,
		client:    opts.Client,
		proxies:   opts.Proxies,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
	}
}

// Name returns the name of this scraper
func (s *Scraper) Name() string {
	return "static"
}

// Fetch retrieves a page and succeeds only when the marker is in the served HTML.
func (s *Scraper) Fetch(ctx context.Context, opts models.RequestOptions) (*models.PageData, error) {
	data, _, err := s.FetchWithDoc(ctx, opts)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// FetchWithDoc is Fetch that also returns the parsed document. When the page
// loaded but the marker is missing, the page and document are returned
// alongside the timeout error so callers can decide whether to render it.
func (s *Scraper) FetchWithDoc(ctx context.Context, opts models.RequestOptions) (*models.PageData, *goquery.Document, error) {
	start := time.Now()

	marker := opts.Marker
	if marker == "" {
		marker = models.DefaultMarker
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.timeout
	}

	cacheKey := cache.Key(opts.URL, marker)
	if s.cache != nil {
		if cached, ok := s.cache.Get(cacheKey); ok {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(cached.HTML))
			if err == nil {
				return cached, doc, nil
			}
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, opts.URL); err != nil {
			return nil, nil, engine.NavigationError(opts.URL, err)
		}
	}

	log.Debug().
		Str("url", opts.URL).
		Str("marker", marker).
		Str("scraper", s.Name()).
		Msg("Starting fetch")

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return nil, nil, engine.NewEngineError(engine.ErrCodeValidation, "building request", err).
			WithDetail("url", opts.URL)
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "th-TH,th;q=0.9,en-US;q=0.8,en;q=0.7")
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	proxyURL := opts.Proxy
	if proxyURL == "" && s.proxies != nil {
		proxyURL = s.proxies.Next()
	}
	req = proxy.Pin(req, proxyURL)

	resp, err := s.client.Do(req)
	if err != nil {
		if s.proxies != nil {
			s.proxies.Failed(proxyURL)
		}
		if ctx.Err() == nil && errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, nil, engine.TimeoutError(opts.URL, marker, err)
		}
		return nil, nil, engine.NavigationError(opts.URL, err)
	}
	defer resp.Body.Close()

	if s.proxies != nil && proxyURL != "" {
		s.proxies.Succeeded(proxyURL)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, nil, engine.NavigationError(opts.URL,
			retry.NewStatusError(resp.StatusCode, ""))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, nil, engine.TimeoutError(opts.URL, marker, err)
		}
		return nil, nil, engine.NavigationError(opts.URL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, engine.NewEngineError(engine.ErrCodeParseError, "parsing "+opts.URL, err)
	}

	pageData := &models.PageData{
		URL:          opts.URL,
		StatusCode:   resp.StatusCode,
		Title:        strings.TrimSpace(doc.Find("title").First().Text()),
		HTML:         string(body),
		Headers:      make(map[string]string),
		Engine:       s.Name(),
		FetchedAt:    time.Now(),
		ResponseTime: time.Since(start).Milliseconds(),
	}
	for key, values := range resp.Header {
		if len(values) > 0 {
			pageData.Headers[key] = values[0]
		}
	}

	if doc.Find(marker).Length() == 0 {
		log.Debug().
			Str("url", opts.URL).
			Str("marker", marker).
			Msg("Marker not found in document")
		return pageData, doc, engine.TimeoutError(opts.URL, marker, fmt.Errorf("%w: %s", engine.ErrMarkerAbsent, marker))
	}

	if s.cache != nil {
		if err := s.cache.Set(cacheKey, pageData, s.cacheTTL); err != nil {
			log.Debug().Err(err).Str("url", opts.URL).Msg("Page not cached")
		}
	}

	log.Debug().
		Str("url", opts.URL).
		Int("status", resp.StatusCode).
		Int64("response_time_ms", pageData.ResponseTime).
		Msg("Fetch completed")

	return pageData, doc, nil
}
