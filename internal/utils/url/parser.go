// Package urlutil holds the URL helpers shared by the extractor, the CLI and output naming.
package urlutil

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/law-makers/shelf/internal/engine"
)

// ValidateURL checks that raw is an absolute http(s) URL with a host. The
// returned error matches engine.ErrInvalidURL.
func ValidateURL(raw string) error {
	invalid := func(msg string, err error) error {
		return engine.NewEngineError(engine.ErrCodeValidation, msg, err).WithDetail("url", raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return invalid("unparseable URL", err)
	}
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return invalid(fmt.Sprintf("scheme must be http or https, got %q", u.Scheme), nil)
	case u.Host == "":
		return invalid("URL has no host", nil)
	}
	return nil
}

// ResolveURL resolves a possibly-relative href against a base URL and returns a string
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil || baseURL.Host == "" {
		return href
	}
	return baseURL.ResolveReference(u).String()
}

// LastSegment returns the final non-empty path segment of urlStr, or "" if there is none.
func LastSegment(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	seg := path.Base(strings.TrimRight(u.Path, "/"))
	if seg == "." || seg == "/" {
		return ""
	}
	return seg
}

// QueryValue returns the first non-empty value among keys in urlStr's query string.
func QueryValue(urlStr string, keys ...string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	q := u.Query()
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return ""
}
