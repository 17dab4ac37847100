package output

import (
	"github.com/law-makers/shelf/internal/harvest"
	"github.com/law-makers/shelf/pkg/models"
)

// Row is one line of output: a book plus the outcome that produced it.
type Row struct {
	models.Book
	Status string
	Error  string
}

// BookRow wraps a directly scraped book.
func BookRow(b models.Book) Row {
	return Row{Book: b, Status: harvest.StatusSuccess.String()}
}

// Rows converts a harvest into output rows, one per result in submission order.
// Failed and cancelled keys become placeholder rows that keep the product URL.
func Rows(rs *harvest.ResultSet[models.Book]) []Row {
	if rs == nil {
		return nil
	}
	sorted := rs.Sorted()
	rows := make([]Row, 0, len(sorted))
	for _, r := range sorted {
		if r.OK() {
			book := r.Value
			if book.ProductURL == "" || book.ProductURL == models.Unknown {
				book.ProductURL = r.Key
			}
			rows = append(rows, Row{Book: book, Status: r.Status.String()})
			continue
		}

		row := Row{Book: models.UnknownBook(r.Key), Status: r.Status.String()}
		if r.Err != nil {
			row.Error = r.Err.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

// Column maps a header to a field of a row.
type Column struct {
	Header string
	Value  func(Row) string
}

var (
	colISBN       = func(r Row) string { return r.ISBN }
	colCover      = func(r Row) string { return r.CoverURL }
	colProductURL = func(r Row) string { return r.ProductURL }
)

// ProductColumns is the layout of a single product export.
var ProductColumns = []Column{
	{"ISBN", colISBN},
	{"Cover-url", colCover},
}

// SearchColumns is the layout of a search export.
var SearchColumns = []Column{
	{"isbn", colISBN},
	{"cover_url", colCover},
	{"product_url", colProductURL},
}

// FullColumns is SearchColumns plus every optional field and the outcome.
var FullColumns = append(append([]Column{}, SearchColumns...),
	Column{"title", func(r Row) string { return r.Title }},
	Column{"price", func(r Row) string { return r.Price }},
	Column{"rating", func(r Row) string { return r.Rating }},
	Column{"category", func(r Row) string { return r.Category }},
	Column{"publisher", func(r Row) string { return r.Publisher }},
	Column{"status", func(r Row) string { return r.Status }},
	Column{"error", func(r Row) string { return r.Error }},
)

// Headers returns the header line for cols.
func Headers(cols []Column) []string {
	h := make([]string, len(cols))
	for i, c := range cols {
		h[i] = c.Header
	}
	return h
}

// Record returns the cells of row for cols.
func Record(row Row, cols []Column) []string {
	rec := make([]string, len(cols))
	for i, c := range cols {
		rec[i] = c.Value(row)
	}
	return rec
}
