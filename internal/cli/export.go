package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/law-makers/shelf/internal/app"
	"github.com/law-makers/shelf/internal/config"
	"github.com/law-makers/shelf/internal/harvest"
	"github.com/law-makers/shelf/internal/ui"
	"github.com/law-makers/shelf/internal/utils/output"
	"github.com/law-makers/shelf/pkg/models"
)

// exportFlags are shared by every command that writes rows.
type exportFlags struct {
	output string
	covers string
}

func requestOptions(cfg *config.Config, pageURL, marker string) models.RequestOptions {
	return models.RequestOptions{
		URL:     pageURL,
		Mode:    cfg.Mode,
		Marker:  marker,
		Headers: cfg.Headers,
		Timeout: cfg.FetchTimeout,
	}
}

// export writes rows to path and, when a DSN is configured, to Postgres.
// It returns every location written. Rows are written even after ctx is
// cancelled so an interrupted harvest still leaves a complete file.
func export(ctx context.Context, a *app.Application, rows []output.Row, cols []output.Column, path, runID string) ([]string, error) {
	ctx = context.WithoutCancel(ctx)

	sinks := make([]output.Sink, 0, 2)
	fileSink, err := output.NewFileSink(path)
	if err != nil {
		return nil, err
	}
	sinks = append(sinks, fileSink)

	if a.Config.PostgresDSN != "" {
		sinks = append(sinks, &output.PostgresSink{
			DSN:   a.Config.PostgresDSN,
			Table: a.Config.PostgresTable,
			RunID: runID,
		})
	}

	var locations []string
	for _, sink := range sinks {
		loc, err := sink.Write(ctx, rows, cols)
		if err != nil {
			return locations, fmt.Errorf("writing %d rows: %w", len(rows), err)
		}
		a.Logger.Debug().Str("location", loc).Int("rows", len(rows)).Msg("Rows written")
		locations = append(locations, loc)
	}
	return locations, nil
}

// downloadCovers saves the covers of books into dir and prints a short report.
func downloadCovers(ctx context.Context, a *app.Application, books []models.Book, dir string, w io.Writer, logger zerolog.Logger) error {
	rs, err := a.Downloader.DownloadCovers(ctx, books, dir, a.Config.Concurrency, logger)
	if err != nil {
		return fmt.Errorf("downloading covers: %w", err)
	}

	var size int64
	for _, r := range rs.Results {
		if r.OK() {
			size += r.Value.Size
		} else {
			fmt.Fprintf(w, "  %s %s %s\n", ui.Error("✗"), ui.Value(r.Key), ui.Dim(r.Err.Error()))
		}
	}

	abs, _ := filepath.Abs(dir)
	fmt.Fprintf(w, "\n%s\n", ui.Heading("Covers"))
	fmt.Fprintln(w, ui.Field("Saved", fmt.Sprintf("%d/%d", rs.Successes(), rs.Len())))
	fmt.Fprintln(w, ui.Field("Size", formatBytes(size)))
	fmt.Fprintln(w, ui.Field("Directory", abs))
	return nil
}

func printLocations(w io.Writer, locations []string) {
	for _, loc := range locations {
		fmt.Fprintf(w, "%s Saved to %s\n", ui.Success("✓"), ui.Value(loc))
	}
}

func printStatusCounts(w io.Writer, rs *harvest.ResultSet[models.Book], elapsed time.Duration) {
	fmt.Fprintf(w, "\n%s\n", ui.Heading("Summary"))
	fmt.Fprintln(w, ui.Field("Products", rs.Len()))
	fmt.Fprintf(w, "  %s %s\n", ui.Bold("Succeeded:"), ui.Success(fmt.Sprint(rs.Successes())))
	fmt.Fprintf(w, "  %s %s\n", ui.Bold("Failed:"), ui.Error(fmt.Sprint(rs.Failures())))
	if rs.Cancelled {
		fmt.Fprintf(w, "  %s %s\n", ui.Bold("Not started:"), ui.Warn(fmt.Sprint(rs.Skipped())))
	}
	fmt.Fprintln(w, ui.Field("Elapsed", elapsed.Round(time.Millisecond)))
}

// formatBytes formats bytes into human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
