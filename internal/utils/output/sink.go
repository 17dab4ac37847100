package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Sink persists rows and reports where they went.
type Sink interface {
	Write(ctx context.Context, rows []Row, cols []Column) (string, error)
}

// Format is an output file format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
)

// FormatFromPath picks the format from the file extension; unknown or missing
// extensions mean CSV.
func FormatFromPath(path string) Format {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "json":
		return FormatJSON
	case "md", "markdown":
		return FormatMarkdown
	default:
		return FormatCSV
	}
}

// NewFileSink returns the sink for path's format.
func NewFileSink(path string) (Sink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("output path is empty")
	}
	switch FormatFromPath(path) {
	case FormatJSON:
		return &JSONSink{Path: path}, nil
	case FormatMarkdown:
		return &MarkdownSink{Path: path}, nil
	default:
		return &CSVSink{Path: path}, nil
	}
}

// writeFile fills a temp file next to path and renames it over path once
// fill succeeded, so a failed export never leaves a truncated file.
func writeFile(path string, fill func(w io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = fill(tmp); err != nil {
		return err
	}
	if err = tmp.Chmod(0644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
