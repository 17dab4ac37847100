package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/law-makers/shelf/internal/config"
	"github.com/law-makers/shelf/internal/engine"
	"github.com/law-makers/shelf/internal/extract"
	"github.com/law-makers/shelf/internal/harvest"
	"github.com/law-makers/shelf/internal/reqctx"
	"github.com/law-makers/shelf/internal/retry"
	"github.com/law-makers/shelf/internal/ui"
	"github.com/law-makers/shelf/internal/utils/output"
	urlutil "github.com/law-makers/shelf/internal/utils/url"
	"github.com/law-makers/shelf/pkg/models"
)

// defaultDumpFile is where --dump-html writes when given without a path.
const defaultDumpFile = "debug_search_page_source.html"

var searchFlags struct {
	exportFlags
	max      int
	dumpHTML string
	full     bool
}

var searchCmd = &cobra.Command{
	Use:   "search <url>",
	Short: "Scrape every product linked from a search-results page",
	Long: `Loads a search-results page, collects the product links and scrapes each
product page concurrently. Every product yields exactly one row: pages that
fail or time out keep their product URL with N/A in the other columns.

Press Ctrl+C once to stop starting new pages; products already loading are
finished and the rows gathered so far are written.`,
	Example: `  # Scrape the first 20 results of a title search
  shelf search "https://www.naiin.com/search-result?title=harry" --max 20

  # Five pages at a time, with titles, prices and per-row status
  shelf search "https://www.naiin.com/search-result?title=harry" -c 5 --full -o harry.json

  # Keep the listing HTML for debugging selectors
  shelf search "https://www.naiin.com/search-result?title=harry" --dump-html`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	f := searchCmd.Flags()
	f.StringVarP(&searchFlags.output, "output", "o", "", "Output file (.csv, .json or .md); defaults to a timestamped CSV")
	f.StringVar(&searchFlags.covers, "covers", "", "Directory to download cover images into")
	f.IntVarP(&searchFlags.max, "max", "n", 0, "Scrape at most this many products (0 = all)")
	f.IntP("concurrency", "c", harvest.DefaultLimit, "Product pages loaded at the same time")
	f.StringVar(&searchFlags.dumpHTML, "dump-html", "", "Write the search page HTML to this file")
	f.Lookup("dump-html").NoOptDefVal = defaultDumpFile
	f.BoolVar(&searchFlags.full, "full", false, "Include title, price, rating, category, publisher and status columns")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	searchURL := strings.TrimSpace(args[0])
	if err := urlutil.ValidateURL(searchURL); err != nil {
		return err
	}
	if searchFlags.max < 0 {
		return fmt.Errorf("--max must be >= 0")
	}

	ctx, runID := reqctx.WithRun(cmd.Context())
	logger := reqctx.Logger(ctx, *a.Logger)
	out := cmd.OutOrStdout()
	start := time.Now()

	fetcher, err := a.Fetcher(ctx, a.Config.Mode)
	if err != nil {
		return err
	}

	listing, err := fetchListing(ctx, fetcher, a.Config, searchURL)
	if err != nil {
		return fmt.Errorf("loading search page: %w", err)
	}

	if searchFlags.dumpHTML != "" {
		if err := output.DumpHTML(searchFlags.dumpHTML, listing.HTML, true); err != nil {
			logger.Warn().Err(err).Str("path", searchFlags.dumpHTML).Msg("Failed to dump search page")
		} else {
			fmt.Fprintf(out, "%s Search page HTML written to %s\n", ui.Info("•"), ui.Value(searchFlags.dumpHTML))
		}
	}

	links := extract.ProductLinks(listing.HTML, searchURL)
	if searchFlags.max > 0 && len(links) > searchFlags.max {
		links = links[:searchFlags.max]
	}
	logger.Info().Int("products", len(links)).Msg("Product links collected")
	if len(links) == 0 {
		fmt.Fprintln(out, ui.Warn("No product links found on the search page."))
	}

	cards := make(map[string]models.ListingItem)
	if searchFlags.full {
		for _, item := range extract.ListingItems(listing.HTML, searchURL) {
			cards[item.URL] = item
		}
	}

	bar := newProgressBar(len(links), !a.Config.JSONLog)
	h := harvest.New[models.Book](a.Config.Concurrency,
		harvest.WithLogger(logger),
		harvest.WithProgress(func(harvest.Status) { _ = bar.Add(1) }),
	)

	rs, err := h.Harvest(ctx, links, func(ctx context.Context, productURL string) (models.Book, error) {
		page, err := fetcher.Fetch(ctx, requestOptions(a.Config, productURL, a.Config.Marker))
		if err != nil {
			return models.Book{}, err
		}
		book := extract.Product(page.HTML, productURL)
		if card, ok := cards[productURL]; ok {
			book = extract.Enrich(book, card)
		}
		return book, nil
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}

	rows := output.Rows(rs)
	cols := output.SearchColumns
	if searchFlags.full {
		cols = output.FullColumns
	}

	path := searchFlags.output
	if path == "" {
		path = output.SearchFilename(searchURL, time.Now())
	}

	locations, err := export(ctx, a, rows, cols, path, runID)
	printLocations(out, locations)
	if err != nil {
		return err
	}
	printStatusCounts(out, rs, time.Since(start))

	if rs.Cancelled {
		fmt.Fprintln(out, ui.Warn("\nInterrupted: unscheduled products were written as N/A rows."))
		return nil
	}

	if searchFlags.covers != "" {
		books := make([]models.Book, 0, len(rows))
		for _, row := range rows {
			books = append(books, row.Book)
		}
		return downloadCovers(ctx, a, books, searchFlags.covers, out, logger)
	}
	return nil
}

// fetchListing loads the search page, retrying transient failures. The
// listing is fetched once per run, so unlike product pages it is worth
// retrying. When no product link ever appears the page is loaded once more
// without waiting for one and treated as a search with no results.
func fetchListing(ctx context.Context, fetcher engine.Fetcher, cfg *config.Config, searchURL string) (*models.PageData, error) {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.ListingAttempts

	var page *models.PageData
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		var err error
		page, err = fetcher.Fetch(ctx, requestOptions(cfg, searchURL, models.ListingMarker))
		return err
	})
	if engine.IsTimeout(err) && ctx.Err() == nil {
		log.Debug().Err(err).Str("url", searchURL).Msg("No product links on search page")
		page, err = fetcher.Fetch(ctx, requestOptions(cfg, searchURL, models.LoadedMarker))
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

func newProgressBar(total int, visible bool) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Scraping products"),
		progressbar.OptionSetVisibility(visible && total > 0),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
