package output

import (
	"context"
	"encoding/json"
	"io"
)

// JSONSink writes an indented array with one object per row, keyed by header.
type JSONSink struct {
	Path string
}

// Write implements Sink.
func (s *JSONSink) Write(ctx context.Context, rows []Row, cols []Column) (string, error) {
	records := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]string, len(cols))
		for _, c := range cols {
			rec[c.Header] = c.Value(row)
		}
		records = append(records, rec)
	}

	content, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", err
	}
	err = writeFile(s.Path, func(w io.Writer) error {
		_, err := w.Write(content)
		return err
	})
	if err != nil {
		return "", err
	}
	return s.Path, nil
}
