// internal/engine/hybrid/scraper.go
package hybrid

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/shelf/internal/engine"
	"github.com/law-makers/shelf/internal/engine/static"
	"github.com/law-makers/shelf/internal/retry"
	"github.com/law-makers/shelf/pkg/models"
)

// Scraper tries a plain HTTP fetch first and renders in Chrome only when the
// served HTML lacks the marker but looks like it is built client-side.
type Scraper struct {
	static  *static.Scraper
	dynamic engine.Fetcher
}

// New creates a hybrid Scraper
func New(staticScraper *static.Scraper, dynamicScraper engine.Fetcher) *Scraper {
	return &Scraper{
		static:  staticScraper,
		dynamic: dynamicScraper,
	}
}

// Name returns the name of the scraper
func (s *Scraper) Name() string {
	return "hybrid"
}

// Fetch implements engine.Fetcher.
func (s *Scraper) Fetch(ctx context.Context, opts models.RequestOptions) (*models.PageData, error) {
	data, doc, err := s.static.FetchWithDoc(ctx, opts)
	if err == nil {
		return data, nil
	}
	if ctx.Err() != nil || gone(err) {
		return nil, err
	}

	framework := ""
	if engine.IsTimeout(err) && doc != nil {
		if DetermineStrategy(doc.Find("script").Length()) == StrategyStatic {
			// Nothing on the page could ever add the marker.
			return nil, err
		}
		framework = Framework(data.HTML)
	}

	log.Debug().
		Err(err).
		Str("url", opts.URL).
		Str("framework", framework).
		Msg("Static fetch insufficient, rendering in browser")

	return s.dynamic.Fetch(ctx, opts)
}

// gone reports whether the server said the page does not exist; a browser
// would get the same answer.
func gone(err error) bool {
	var sc retry.StatusCoder
	if !errors.As(err, &sc) {
		return false
	}
	code := sc.GetStatusCode()
	return code == http.StatusNotFound || code == http.StatusGone
}
