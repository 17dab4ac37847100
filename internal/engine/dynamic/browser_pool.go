package dynamic

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/shelf/internal/config"
	"github.com/law-makers/shelf/internal/engine"
)

// maxTabUses is how many pages a tab renders before it is replaced. Product
// pages leak listeners and images into long-lived tabs.
const maxTabUses = 50

// BrowserPoolOptions configures Chrome for both the pool and one-shot renders.
type BrowserPoolOptions struct {
	Size       int
	Headless   bool
	UserAgent  string
	Proxy      string
	ChromePath string
}

// chromeFlags are passed to every Chrome this package starts.
var chromeFlags = []chromedp.ExecAllocatorOption{
	chromedp.NoFirstRun,
	chromedp.NoDefaultBrowserCheck,
	chromedp.Flag("no-sandbox", true),
	chromedp.Flag("disable-gpu", true),
	chromedp.Flag("disable-dev-shm-usage", true),
	chromedp.Flag("disable-extensions", true),
	chromedp.Flag("disable-background-networking", true),
	chromedp.Flag("disable-renderer-backgrounding", true),
	chromedp.Flag("disable-sync", true),
	chromedp.Flag("disable-translate", true),
	chromedp.Flag("mute-audio", true),
	chromedp.Flag("log-level", "3"),
	chromedp.Flag("window-size", "1920,1080"),
	// Storefronts serve a bot wall when navigator.webdriver is set.
	chromedp.Flag("disable-blink-features", "AutomationControlled"),
}

func allocatorOptions(opts BrowserPoolOptions) []chromedp.ExecAllocatorOption {
	ua := opts.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}

	out := make([]chromedp.ExecAllocatorOption, 0, len(chromeFlags)+4)
	if path := FindChrome(opts.ChromePath); path != "" {
		out = append(out, chromedp.ExecPath(path))
	}
	out = append(out, chromeFlags...)
	out = append(out, chromedp.UserAgent(ua))
	if opts.Headless {
		out = append(out, chromedp.Flag("headless", "new"))
	} else {
		out = append(out, chromedp.Flag("headless", false))
	}
	if opts.Proxy != "" {
		out = append(out, chromedp.ProxyServer(opts.Proxy))
	}
	return out
}

// Tab is one browser tab lent out by a BrowserPool.
type Tab struct {
	Ctx    context.Context
	cancel context.CancelFunc
	uses   int
}

// BrowserPool lends tabs of a single Chrome process to concurrent renders;
// each render holds one tab at a time.
type BrowserPool struct {
	size    int
	idle    chan *Tab
	browser context.Context // first tab; owns the process
	stop    context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewBrowserPool starts Chrome with opts.Size tabs, capped at the configured maximum.
func NewBrowserPool(opts BrowserPoolOptions) (*BrowserPool, error) {
	size := opts.Size
	if size <= 0 {
		size = config.DefaultBrowserPoolSize
	}
	size = min(size, config.DefaultMaxBrowserPoolSize)

	allocCtx, stop := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts)...)
	browser, closeBrowser := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browser); err != nil {
		closeBrowser()
		stop()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}

	bp := &BrowserPool{
		size:    size,
		idle:    make(chan *Tab, size),
		browser: browser,
		stop: func() {
			closeBrowser()
			stop()
		},
	}
	for i := 0; i < size; i++ {
		tab, err := bp.openTab()
		if err != nil {
			bp.Close()
			return nil, fmt.Errorf("opening tab %d: %w", i, err)
		}
		bp.idle <- tab
	}

	log.Debug().Int("tabs", size).Msg("Browser pool ready")
	return bp, nil
}

func (bp *BrowserPool) openTab() (*Tab, error) {
	ctx, cancel := chromedp.NewContext(bp.browser)
	if err := chromedp.Run(ctx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, err
	}
	return &Tab{Ctx: ctx, cancel: cancel}, nil
}

// Acquire blocks until a tab is idle or ctx is done.
func (bp *BrowserPool) Acquire(ctx context.Context) (*Tab, error) {
	select {
	case tab, ok := <-bp.idle:
		if !ok {
			return nil, engine.ErrPoolClosed
		}
		tab.uses++
		return tab, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for a browser tab: %w", ctx.Err())
	}
}

// Release blanks tab and makes it available again, replacing it once it has
// rendered maxTabUses pages or can no longer navigate.
func (bp *BrowserPool) Release(tab *Tab) {
	if bp.isClosed() {
		tab.cancel()
		return
	}

	if tab.uses >= maxTabUses || chromedp.Run(tab.Ctx, chromedp.Navigate("about:blank")) != nil {
		tab.cancel()
		fresh, err := bp.openTab()
		if err != nil {
			log.Warn().Err(err).Msg("Could not replace browser tab; pool shrinks")
			return
		}
		log.Debug().Int("uses", tab.uses).Msg("Browser tab replaced")
		tab = fresh
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()
	if bp.closed {
		tab.cancel()
		return
	}
	bp.idle <- tab
}

// Close cancels every idle tab and stops Chrome. Tabs still lent out are
// cancelled when they are released.
func (bp *BrowserPool) Close() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if bp.closed {
		return nil
	}
	bp.closed = true

	close(bp.idle)
	for tab := range bp.idle {
		tab.cancel()
	}
	bp.stop()

	log.Debug().Msg("Browser pool closed")
	return nil
}

func (bp *BrowserPool) isClosed() bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.closed
}

// Size returns the number of tabs the pool was started with.
func (bp *BrowserPool) Size() int {
	return bp.size
}

// Available returns the number of idle tabs.
func (bp *BrowserPool) Available() int {
	return len(bp.idle)
}
