package downloader

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/law-makers/shelf/internal/harvest"
	"github.com/law-makers/shelf/pkg/models"
)

// CoverKeys returns the distinct known cover URLs of books and the file name
// to store each under: the ISBN when known, otherwise the URL's base name
// plus a hash of the whole URL. A name already taken also gets the hash.
func CoverKeys(books []models.Book) ([]string, map[string]string) {
	names := make(map[string]string)
	taken := make(map[string]bool)
	var keys []string
	for _, b := range books {
		if b.CoverURL == "" || b.CoverURL == models.Unknown {
			continue
		}
		if _, seen := names[b.CoverURL]; seen {
			continue
		}

		var name string
		if b.ISBN != "" && b.ISBN != models.Unknown {
			name = b.ISBN
		} else {
			name = coverStem(b.CoverURL) + "_" + hashString(b.CoverURL)
		}
		if taken[name] {
			name += "_" + hashString(b.CoverURL)
		}
		taken[name] = true
		names[b.CoverURL] = name
		keys = append(keys, b.CoverURL)
	}
	return keys, names
}

// coverStem is the last path segment of coverURL without its extension.
func coverStem(coverURL string) string {
	u, err := url.Parse(coverURL)
	if err != nil {
		return "cover"
	}
	base := path.Base(u.Path)
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		return "cover"
	}
	return stem
}

// DownloadCovers saves the cover of every book into dir, at most limit at a time.
// One result is returned per distinct cover URL.
func (d *Downloader) DownloadCovers(ctx context.Context, books []models.Book, dir string, limit int, logger zerolog.Logger) (*harvest.ResultSet[*DownloadResult], error) {
	keys, names := CoverKeys(books)

	h := harvest.New[*DownloadResult](limit, harvest.WithLogger(logger))
	return h.Harvest(ctx, keys, func(ctx context.Context, coverURL string) (*DownloadResult, error) {
		return d.Download(ctx, coverURL, DownloadOptions{
			OutputDir: dir,
			Filename:  names[coverURL],
		})
	})
}
