package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/shelf/internal/extract"
	"github.com/law-makers/shelf/internal/reqctx"
	"github.com/law-makers/shelf/internal/ui"
	"github.com/law-makers/shelf/internal/utils/output"
	urlutil "github.com/law-makers/shelf/internal/utils/url"
	"github.com/law-makers/shelf/pkg/models"
)

var productFlags exportFlags

var productCmd = &cobra.Command{
	Use:   "product <url>",
	Short: "Scrape ISBN and cover of one product page",
	Long: `Loads a single product page, waits for the readiness marker and writes
one row with the ISBN and cover URL.

The file format follows the --output extension: .csv (default, UTF-8 with
BOM), .json or .md.`,
	Example: `  # Scrape a book page into naiin_product_<id>_<timestamp>.csv
  shelf product https://www.naiin.com/product/detail/599372

  # Plain HTTP only, JSON output
  shelf product https://www.naiin.com/product/detail/599372 --mode=static -o book.json

  # Also save the cover image
  shelf product https://www.naiin.com/product/detail/599372 --covers ./covers`,
	Args: cobra.ExactArgs(1),
	RunE: runProduct,
}

func init() {
	rootCmd.AddCommand(productCmd)

	productCmd.Flags().StringVarP(&productFlags.output, "output", "o", "", "Output file (.csv, .json or .md); defaults to a timestamped CSV")
	productCmd.Flags().StringVar(&productFlags.covers, "covers", "", "Directory to download the cover image into")
}

func runProduct(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	productURL := strings.TrimSpace(args[0])
	if err := urlutil.ValidateURL(productURL); err != nil {
		return err
	}

	ctx, runID := reqctx.WithRun(cmd.Context())
	logger := reqctx.Logger(ctx, *a.Logger)
	out := cmd.OutOrStdout()

	fetcher, err := a.Fetcher(ctx, a.Config.Mode)
	if err != nil {
		return err
	}

	logger.Info().
		Str("url", productURL).
		Str("product_id", extract.ProductID(productURL)).
		Str("engine", fetcher.Name()).
		Msg("Fetching product page")
	start := time.Now()

	page, err := fetcher.Fetch(ctx, requestOptions(a.Config, productURL, a.Config.Marker))
	if err != nil {
		return fmt.Errorf("scraping %s: %w", productURL, err)
	}

	book := extract.Product(page.HTML, productURL)
	if !book.Complete() {
		logger.Warn().Str("isbn", book.ISBN).Str("cover_url", book.CoverURL).Msg("Product page is missing fields")
	}

	path := productFlags.output
	if path == "" {
		path = output.ProductFilename(productURL, time.Now())
	}

	locations, err := export(ctx, a, []output.Row{output.BookRow(book)}, output.ProductColumns, path, runID)
	printLocations(out, locations)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s\n", ui.Heading("Product"))
	fmt.Fprintln(out, ui.Field("ISBN", book.ISBN))
	fmt.Fprintln(out, ui.Field("Cover", book.CoverURL))
	fmt.Fprintln(out, ui.Field("Title", book.Title))
	fmt.Fprintln(out, ui.Field("Engine", page.Engine))
	fmt.Fprintln(out, ui.Field("Elapsed", time.Since(start).Round(time.Millisecond)))

	if productFlags.covers != "" {
		return downloadCovers(ctx, a, []models.Book{book}, productFlags.covers, out, logger)
	}
	return nil
}
