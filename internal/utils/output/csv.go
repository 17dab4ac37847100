package output

import (
	"context"
	"encoding/csv"
	"io"
)

// utf8BOM marks the file as UTF-8 for spreadsheet applications.
const utf8BOM = "\ufeff"

// CSVSink writes a header line and one record per row.
type CSVSink struct {
	Path string
}

// Write implements Sink.
func (s *CSVSink) Write(ctx context.Context, rows []Row, cols []Column) (string, error) {
	err := writeFile(s.Path, func(w io.Writer) error {
		if _, err := io.WriteString(w, utf8BOM); err != nil {
			return err
		}

		writer := csv.NewWriter(w)
		if err := writer.Write(Headers(cols)); err != nil {
			return err
		}
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := writer.Write(Record(row, cols)); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	})
	if err != nil {
		return "", err
	}
	return s.Path, nil
}
