package models

import "time"

// Unknown is the placeholder written for any field that could not be located.
const Unknown = "N/A"

// DefaultMarker is the readiness marker of a book product page.
const DefaultMarker = "meta[property='book:isbn']"

// ListingMarker is present on a search-results page once product links are rendered.
const ListingMarker = "a.itemname[href]"

// LoadedMarker matches any page that loaded. A search with no results never
// shows ListingMarker, so the listing falls back to it.
const LoadedMarker = "body"

// PageData represents a fetched and rendered page
type PageData struct {
	URL          string            `json:"url"`
	StatusCode   int               `json:"status_code"`
	Title        string            `json:"title,omitempty"`
	HTML         string            `json:"html,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	Engine       string            `json:"engine"`
	FetchedAt    time.Time         `json:"fetched_at"`
	ResponseTime int64             `json:"response_time_ms"`
}

// ScraperMode defines the engine mode to use
type ScraperMode string

const (
	ModeAuto   ScraperMode = "auto"
	ModeStatic ScraperMode = "static"
	ModeSPA    ScraperMode = "spa"
)

// ParseMode converts a flag value into a ScraperMode.
func ParseMode(s string) (ScraperMode, bool) {
	switch ScraperMode(s) {
	case ModeAuto, ModeStatic, ModeSPA:
		return ScraperMode(s), true
	}
	return "", false
}

// RequestOptions contains options for fetching one page
type RequestOptions struct {
	URL     string
	Mode    ScraperMode
	Marker  string // CSS selector that must be present before the page counts as ready
	Headers map[string]string
	Timeout time.Duration
	Proxy   string
}

// Book is one harvested product row.
type Book struct {
	ISBN       string `json:"isbn"`
	CoverURL   string `json:"cover_url"`
	ProductURL string `json:"product_url"`
	Title      string `json:"title"`
	Price      string `json:"price"`
	Rating     string `json:"rating"`
	Category   string `json:"category"`
	Publisher  string `json:"publisher"`
}

// UnknownBook returns a book whose every field is the placeholder,
// except the product URL which identifies the row.
func UnknownBook(productURL string) Book {
	if productURL == "" {
		productURL = Unknown
	}
	return Book{
		ISBN:       Unknown,
		CoverURL:   Unknown,
		ProductURL: productURL,
		Title:      Unknown,
		Price:      Unknown,
		Rating:     Unknown,
		Category:   Unknown,
		Publisher:  Unknown,
	}
}

// Complete reports whether both identifying fields were found.
func (b Book) Complete() bool {
	return b.ISBN != Unknown && b.CoverURL != Unknown
}

// ListingItem is a product card on a search-results page.
type ListingItem struct {
	Title           string `json:"title"`
	URL             string `json:"url"`
	ImageURL        string `json:"image_url"`
	Category        string `json:"category"`
	Publisher       string `json:"publisher"`
	ProductID       string `json:"product_id"`
	Price           string `json:"price"`
	Name            string `json:"name"`
	DiscountPercent string `json:"discount_percent"`
	SalePrice       string `json:"sale_price"`
	FullPrice       string `json:"full_price"`
	Rating          string `json:"rating"`
}
