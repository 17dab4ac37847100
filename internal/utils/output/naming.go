package output

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	urlutil "github.com/law-makers/shelf/internal/utils/url"
)

const timestampLayout = "20060102_150405"

var unsafeChars = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_-]+`)

// SiteName returns the registrable label of u's host ("naiin" for www.naiin.com).
func SiteName(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Hostname() == "" {
		return "shelf"
	}
	labels := strings.Split(parsed.Hostname(), ".")
	if len(labels) >= 2 {
		return labels[len(labels)-2]
	}
	return labels[0]
}

// Slug makes s safe for use in a file name.
func Slug(s string) string {
	s = strings.Trim(unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_"), "_")
	if s == "" {
		return "results"
	}
	return s
}

// ProductFilename is the default export name for a single product page.
func ProductFilename(productURL string, now time.Time) string {
	return fmt.Sprintf("%s_product_%s_%s.csv",
		SiteName(productURL), Slug(urlutil.LastSegment(productURL)), now.Format(timestampLayout))
}

// SearchFilename is the default export name for a search page, tagged with the search terms.
func SearchFilename(searchURL string, now time.Time) string {
	terms := urlutil.QueryValue(searchURL, "title", "q", "keyword", "search")
	return fmt.Sprintf("%s_search_%s_%s.csv",
		SiteName(searchURL), Slug(terms), now.Format(timestampLayout))
}
