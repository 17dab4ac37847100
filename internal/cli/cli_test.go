package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/shelf/internal/config"
	"github.com/law-makers/shelf/internal/engine"
	"github.com/law-makers/shelf/pkg/models"
)

const productPage = `<html><head>
<title>%[1]s | naiin</title>
<meta property="book:isbn" content="%[2]s">
<meta name="twitter:image" content="/covers/%[2]s.jpg">
</head><body></body></html>`

// storefront serves a search page linking three products, the last of which 404s,
// and a search page with no results. onFirstProduct, when set, runs before
// /product/detail/1 responds.
func storefront(t *testing.T, onFirstProduct func()) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search-result", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<div class="productitem item"><a class="itemname" href="/product/detail/1">One</a></div>
<div class="productitem item"><a class="itemname" href="/product/detail/2">Two</a></div>
<div class="productitem item"><a class="itemname" href="/product/detail/gone">Gone</a></div>
</body></html>`)
	})
	mux.HandleFunc("/search-result-empty", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p class="notfound">No products match your search.</p></body></html>`)
	})
	mux.HandleFunc("/product/detail/1", func(w http.ResponseWriter, r *http.Request) {
		if onFirstProduct != nil {
			onFirstProduct()
		}
		fmt.Fprintf(w, productPage, "One", "9786160000001")
	})
	mux.HandleFunc("/product/detail/2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, productPage, "Two", "9786160000002")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (int, string) {
	t.Helper()
	return runCtx(t, context.Background(), args...)
}

func runCtx(t *testing.T, ctx context.Context, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	return Execute(ctx), out.String()
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "\ufeff"), "missing BOM")

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\ufeff"))).ReadAll()
	require.NoError(t, err)
	return records
}

func TestSearch_OneRowPerProduct(t *testing.T) {
	srv := storefront(t, nil)
	path := filepath.Join(t.TempDir(), "books.csv")

	code, out := run(t, "search", srv.URL+"/search-result?title=one",
		"--mode=static", "--timeout=2s", "-c", "2", "-o", path)
	require.Equal(t, 0, code, out)

	records := readCSV(t, path)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"isbn", "cover_url", "product_url"}, records[0])
	assert.Equal(t, []string{"9786160000001", srv.URL + "/covers/9786160000001.jpg", srv.URL + "/product/detail/1"}, records[1])
	assert.Equal(t, []string{"9786160000002", srv.URL + "/covers/9786160000002.jpg", srv.URL + "/product/detail/2"}, records[2])
	assert.Equal(t, []string{models.Unknown, models.Unknown, srv.URL + "/product/detail/gone"}, records[3])

	assert.Contains(t, out, path)
}

func TestSearch_NoResultsWritesHeaderOnly(t *testing.T) {
	srv := storefront(t, nil)
	path := filepath.Join(t.TempDir(), "books.csv")

	code, out := run(t, "search", srv.URL+"/search-result-empty",
		"--mode=static", "--timeout=2s", "-c", "2", "-o", path)
	require.Equal(t, 0, code, out)

	records := readCSV(t, path)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"isbn", "cover_url", "product_url"}, records[0])
	assert.Contains(t, out, "No product links found")
}

func TestSearch_InterruptedWritesUnscheduledAsUnknown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The first product cancels the run and holds the only slot long enough
	// for the harvest to stop scheduling.
	srv := storefront(t, func() {
		cancel()
		time.Sleep(100 * time.Millisecond)
	})
	path := filepath.Join(t.TempDir(), "books.csv")

	code, out := runCtx(t, ctx, "search", srv.URL+"/search-result",
		"--mode=static", "--timeout=2s", "-c", "1", "-o", path)
	require.Equal(t, 0, code, out)

	records := readCSV(t, path)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"9786160000001", srv.URL + "/covers/9786160000001.jpg", srv.URL + "/product/detail/1"}, records[1])
	assert.Equal(t, []string{models.Unknown, models.Unknown, srv.URL + "/product/detail/2"}, records[2])
	assert.Equal(t, []string{models.Unknown, models.Unknown, srv.URL + "/product/detail/gone"}, records[3])
	assert.Contains(t, out, "Interrupted")
}

func TestProduct_WritesJSON(t *testing.T) {
	srv := storefront(t, nil)
	path := filepath.Join(t.TempDir(), "book.json")

	code, out := run(t, "product", srv.URL+"/product/detail/2", "--mode=static", "--timeout=2s", "-o", path)
	require.Equal(t, 0, code, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rows []map[string]string
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "9786160000002", rows[0]["ISBN"])
	assert.Equal(t, srv.URL+"/covers/9786160000002.jpg", rows[0]["Cover-url"])
	assert.Contains(t, out, "9786160000002")
}

func TestProduct_FetchFailureWritesNothing(t *testing.T) {
	srv := storefront(t, nil)
	path := filepath.Join(t.TempDir(), "book.csv")

	code, _ := run(t, "product", srv.URL+"/product/detail/gone", "--mode=static", "--timeout=2s", "-o", path)
	assert.Equal(t, 1, code)
	assert.NoFileExists(t, path)
}

func TestProduct_RejectsBadURL(t *testing.T) {
	code, _ := run(t, "product", "ftp://example.com/book")
	assert.Equal(t, 1, code)
}

type flakyFetcher struct {
	calls   atomic.Int32
	errs    []error
	markers []string
}

func (f *flakyFetcher) Name() string { return "flaky" }

func (f *flakyFetcher) Fetch(_ context.Context, opts models.RequestOptions) (*models.PageData, error) {
	n := int(f.calls.Add(1)) - 1
	f.markers = append(f.markers, opts.Marker)
	if n < len(f.errs) {
		return nil, f.errs[n]
	}
	return &models.PageData{URL: opts.URL, HTML: `<a class="itemname" href="/p/1">x</a>`}, nil
}

func TestFetchListing_RetriesTimeouts(t *testing.T) {
	f := &flakyFetcher{errs: []error{engine.TimeoutError("https://shop.test/s", models.ListingMarker, nil)}}
	cfg := config.Defaults()

	page, err := fetchListing(context.Background(), f, cfg, "https://shop.test/s")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.test/s", page.URL)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestFetchListing_NoLinksFallsBackToLoadedPage(t *testing.T) {
	timeout := engine.TimeoutError("https://shop.test/s", models.ListingMarker, nil)
	f := &flakyFetcher{errs: []error{timeout, timeout}}
	cfg := config.Defaults()
	cfg.ListingAttempts = 2

	page, err := fetchListing(context.Background(), f, cfg, "https://shop.test/s")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.test/s", page.URL)
	assert.Equal(t, []string{models.ListingMarker, models.ListingMarker, models.LoadedMarker}, f.markers)
}

func TestFetchListing_NavigationErrorIsFinal(t *testing.T) {
	notFound := engine.NavigationError("https://shop.test/s", fmt.Errorf("404"))
	notFound.Retry = false
	f := &flakyFetcher{errs: []error{notFound, notFound, notFound}}

	_, err := fetchListing(context.Background(), f, config.Defaults(), "https://shop.test/s")
	require.Error(t, err)
	assert.True(t, engine.IsNavigation(err))
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestWrapText(t *testing.T) {
	in := "one two three four five six\n\n- item stays whole even if long"
	assert.Equal(t, "one two\nthree four\nfive six\n\n- item stays whole even if long", wrapText(in, 10))
}

func TestSplitFlagLine(t *testing.T) {
	name, desc, ok := splitFlagLine("  -o, --output string   Output file")
	assert.True(t, ok)
	assert.Equal(t, "-o, --output string", name)
	assert.Equal(t, "Output file", desc)

	_, _, ok = splitFlagLine("        continued description")
	assert.False(t, ok)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2*1024*1024))
}
