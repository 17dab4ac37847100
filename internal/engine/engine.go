package engine

import (
	"context"

	"github.com/law-makers/shelf/pkg/models"
)

// Fetcher is the interface that all page fetching engines must implement
type Fetcher interface {
	// Fetch loads the page, waits for opts.Marker and returns the rendered HTML.
	// Failures are *EngineError with code TIMEOUT or NAVIGATION.
	Fetch(ctx context.Context, opts models.RequestOptions) (*models.PageData, error)

	// Name returns the name of the fetcher implementation
	Name() string
}
