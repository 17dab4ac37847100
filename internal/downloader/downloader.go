// internal/downloader/downloader.go
package downloader

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/shelf/internal/config"
	"github.com/law-makers/shelf/internal/retry"
)

// DownloadResult describes one finished download
type DownloadResult struct {
	URL       string
	FilePath  string
	Size      int64
	StartTime time.Time
	Duration  time.Duration
}

// DownloadOptions configures the download behavior
type DownloadOptions struct {
	OutputDir string
	Filename  string // base name without extension; derived from the URL when empty
	Headers   map[string]string
}

// Downloader streams files to disk
type Downloader struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// NewDownloader creates a new Downloader. timeout bounds each download,
// body included; a nil client gets a default transport.
func NewDownloader(client *http.Client, timeout time.Duration, userAgent string) *Downloader {
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &Downloader{
		client:    client,
		timeout:   timeout,
		userAgent: userAgent,
	}
}

// Download fetches fileURL into opts.OutputDir. The file only appears once it is complete.
func (d *Downloader) Download(ctx context.Context, fileURL string, opts DownloadOptions) (*DownloadResult, error) {
	result := &DownloadResult{
		URL:       fileURL,
		StartTime: time.Now(),
	}

	u, err := url.Parse(fileURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q", fileURL)
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, retry.NewStatusError(resp.StatusCode, fileURL)
	}

	filename := opts.Filename
	if filename == "" {
		filename = sanitizeFilename(fileURL)
	} else {
		filename = sanitizeFilename(filename) + extension(u.Path, resp.Header.Get("Content-Type"))
	}
	result.FilePath = filepath.Join(opts.OutputDir, filename)

	tmp, err := os.CreateTemp(opts.OutputDir, ".download-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tmp.Name(), result.FilePath); err != nil {
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}

	result.Size = written
	result.Duration = time.Since(result.StartTime)

	log.Debug().
		Str("url", fileURL).
		Str("file", result.FilePath).
		Int64("bytes", written).
		Dur("duration", result.Duration).
		Msg("Download completed")

	return result, nil
}

// extension picks a file extension from the URL path, falling back to the content type.
func extension(urlPath, contentType string) string {
	if ext := filepath.Ext(urlPath); ext != "" && len(ext) <= 5 {
		return strings.ToLower(ext)
	}
	if contentType != "" {
		mediaType, _, _ := mime.ParseMediaType(contentType)
		if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
			return exts[0]
		}
	}
	return ""
}

// sanitizeFilename prevents path traversal attacks
func sanitizeFilename(input string) string {
	var queryHash string
	if u, err := url.Parse(input); err == nil && u.Host != "" {
		parts := strings.Split(u.Path, "/")
		if len(parts) > 0 {
			input = parts[len(parts)-1]
		}
		if u.RawQuery != "" {
			queryHash = "_" + hashString(u.RawQuery)
		}
	}

	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", "..", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	)
	input = replacer.Replace(input)
	input = strings.TrimSpace(input)
	input = strings.Trim(input, ".")

	// Keep the extension last when disambiguating by query
	if queryHash != "" {
		ext := filepath.Ext(input)
		input = strings.TrimSuffix(input, ext) + queryHash + ext
	}

	if input == "" {
		input = fmt.Sprintf("download_%d", time.Now().UnixNano())
	}
	if len(input) > 200 {
		input = input[:200]
	}

	return input
}

// hashString creates a short stable hash for unique filenames
func hashString(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}
