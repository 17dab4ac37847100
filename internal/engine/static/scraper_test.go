package static

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/shelf/internal/cache"
	"github.com/law-makers/shelf/internal/engine"
	"github.com/law-makers/shelf/internal/ratelimit"
	"github.com/law-makers/shelf/pkg/models"
)

const productHTML = `<!DOCTYPE html>
<html>
<head>
	<title>Test Book</title>
	<meta property="book:isbn" content="9786161234567">
</head>
<body><h1>Test Book</h1></body>
</html>`

func newTestScraper(c cache.Cache) *Scraper {
	return New(Options{
		Cache:     c,
		CacheTTL:  time.Minute,
		Limiter:   ratelimit.NewHostLimiter(100, 100),
		Timeout:   5 * time.Second,
		UserAgent: "ShelfTest/1.0",
	})
}

func TestFetch_MarkerPresent(t *testing.T) {
	var gotUA, gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotHeader = r.Header.Get("X-Test")
		w.Write([]byte(productHTML))
	}))
	defer server.Close()

	s := newTestScraper(nil)
	page, err := s.Fetch(context.Background(), models.RequestOptions{
		URL:     server.URL,
		Headers: map[string]string{"X-Test": "yes"},
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "Test Book", page.Title)
	assert.Equal(t, "static", page.Engine)
	assert.Contains(t, page.HTML, "9786161234567")
	assert.Equal(t, "ShelfTest/1.0", gotUA)
	assert.Equal(t, "yes", gotHeader)
}

func TestFetch_MarkerMissingIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Empty</title></head><body></body></html>`))
	}))
	defer server.Close()

	s := newTestScraper(nil)
	page, doc, err := s.FetchWithDoc(context.Background(), models.RequestOptions{URL: server.URL})

	require.Error(t, err)
	assert.True(t, engine.IsTimeout(err))
	assert.ErrorIs(t, err, engine.ErrMarkerAbsent)
	require.NotNil(t, page)
	require.NotNil(t, doc)
	assert.Equal(t, "Empty", page.Title)

	_, err = s.Fetch(context.Background(), models.RequestOptions{URL: server.URL})
	assert.True(t, engine.IsTimeout(err))
}

func TestFetch_HTTPErrorIsNavigation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	s := newTestScraper(nil)
	_, err := s.Fetch(context.Background(), models.RequestOptions{URL: server.URL})

	require.Error(t, err)
	assert.True(t, engine.IsNavigation(err))
	assert.Contains(t, err.Error(), "404")
}

func TestFetch_SlowServerIsTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	s := newTestScraper(nil)
	_, err := s.Fetch(context.Background(), models.RequestOptions{
		URL:     server.URL,
		Timeout: 50 * time.Millisecond,
	})

	assert.True(t, engine.IsTimeout(err))
}

func TestFetch_UnreachableIsNavigation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	s := newTestScraper(nil)
	_, err := s.Fetch(context.Background(), models.RequestOptions{URL: url})

	assert.True(t, engine.IsNavigation(err))
}

func TestFetch_CachedByURLAndMarker(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(productHTML))
	}))
	defer server.Close()

	c := cache.NewMemoryCache(1 << 20)
	defer c.Close()
	s := newTestScraper(c)

	for i := 0; i < 3; i++ {
		_, err := s.Fetch(context.Background(), models.RequestOptions{URL: server.URL})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())

	_, err := s.Fetch(context.Background(), models.RequestOptions{URL: server.URL, Marker: "h1"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}
