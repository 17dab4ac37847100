// Package extract turns rendered product and listing pages into records.
//
// Nothing here fails: a field that cannot be located is models.Unknown.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	urlutil "github.com/law-makers/shelf/internal/utils/url"
	"github.com/law-makers/shelf/pkg/models"
)

// Selectors used on product pages.
const (
	isbnSelector   = "meta[property='book:isbn']"
	coverSelector  = "meta[name='twitter:image']"
	titleSelector  = "meta[property='og:title']"
	priceSelector  = "meta[property='product:price:amount']"
	ratingSelector = ".vote-scores"
)

// Selectors used on search-results pages.
const (
	linkSelector = "a.itemname[href]"
	cardSelector = ".productitem.item"
)

const currencyWord = "บาท"

func parse(html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	return doc
}

// Product extracts a book from a product page. Relative cover URLs are made
// absolute against pageURL.
func Product(html, pageURL string) models.Book {
	book := models.UnknownBook(pageURL)

	doc := parse(html)
	if doc == nil {
		return book
	}

	book.ISBN = metaContent(doc, isbnSelector)
	book.CoverURL = metaContent(doc, coverSelector)
	if book.CoverURL != models.Unknown {
		book.CoverURL = urlutil.ResolveURL(pageURL, book.CoverURL)
	}

	book.Title = metaContent(doc, titleSelector)
	if book.Title == models.Unknown {
		book.Title = orUnknown(doc.Find("title").First().Text())
	}

	book.Price = metaContent(doc, priceSelector)
	book.Rating = orUnknown(doc.Find(ratingSelector).First().Text())

	return book
}

// ProductLinks returns the product hrefs on a search-results page in document
// order, absolute against baseURL. Duplicates are kept.
func ProductLinks(html, baseURL string) []string {
	doc := parse(html)
	if doc == nil {
		return nil
	}

	var links []string
	doc.Find(linkSelector).Each(func(i int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" {
			return
		}
		links = append(links, urlutil.ResolveURL(baseURL, href))
	})
	return links
}

// ListingItems parses every product card on a search-results page.
func ListingItems(html, baseURL string) []models.ListingItem {
	doc := parse(html)
	if doc == nil {
		return nil
	}

	var items []models.ListingItem
	doc.Find(cardSelector).Each(func(i int, card *goquery.Selection) {
		items = append(items, listingItem(card, baseURL))
	})
	return items
}

func listingItem(card *goquery.Selection, baseURL string) models.ListingItem {
	item := models.ListingItem{
		Title:           models.Unknown,
		URL:             models.Unknown,
		ImageURL:        models.Unknown,
		Category:        attrOrUnknown(card, "data-cat"),
		Publisher:       attrOrUnknown(card, "data-pub"),
		ProductID:       attrOrUnknown(card, "data-id"),
		Price:           attrOrUnknown(card, "data-price"),
		Name:            attrOrUnknown(card, "data-name"),
		DiscountPercent: "0",
		SalePrice:       models.Unknown,
		FullPrice:       models.Unknown,
		Rating:          models.Unknown,
	}

	if title := card.Find(".item-details .itemname").First(); title.Length() > 0 {
		item.Title = orUnknown(title.Text())
		if href, ok := title.Attr("href"); ok {
			item.URL = urlutil.ResolveURL(baseURL, href)
		}
	}

	if img := card.Find(".item-img-block img").First(); img.Length() > 0 {
		if src, ok := img.Attr("src"); ok {
			item.ImageURL = urlutil.ResolveURL(baseURL, src)
		}
	}

	if discount := card.Find(".ribbon span.tw-font-semibold").First(); discount.Length() > 0 {
		item.DiscountPercent = strings.TrimSpace(strings.ReplaceAll(discount.Text(), "%", ""))
	}

	if sale := card.Find(".price-block .sale-price").First(); sale.Length() > 0 {
		item.SalePrice = stripCurrency(sale.Text())
	}
	if full := card.Find(".price-block .txt-price").First(); full.Length() > 0 {
		item.FullPrice = stripCurrency(full.Text())
	}

	if rating := card.Find(ratingSelector).First(); rating.Length() > 0 {
		item.Rating = strings.TrimSpace(rating.Text())
	}

	return item
}

// ProductID returns the identifier at the end of a product URL, or models.Unknown.
func ProductID(productURL string) string {
	return orUnknown(urlutil.LastSegment(productURL))
}

// Enrich fills fields of book that the product page left unknown from the
// listing card for the same product.
func Enrich(book models.Book, item models.ListingItem) models.Book {
	fill := func(dst *string, src string) {
		if *dst == models.Unknown && src != "" && src != models.Unknown {
			*dst = src
		}
	}
	fill(&book.Title, item.Title)
	fill(&book.Price, item.SalePrice)
	fill(&book.Price, item.Price)
	fill(&book.Rating, item.Rating)
	fill(&book.Category, item.Category)
	fill(&book.Publisher, item.Publisher)
	fill(&book.CoverURL, item.ImageURL)
	return book
}

func metaContent(doc *goquery.Document, selector string) string {
	content, ok := doc.Find(selector).First().Attr("content")
	if !ok {
		return models.Unknown
	}
	return orUnknown(content)
}

func attrOrUnknown(sel *goquery.Selection, name string) string {
	v, ok := sel.Attr(name)
	if !ok {
		return models.Unknown
	}
	return v
}

func stripCurrency(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, currencyWord, ""))
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Unknown
	}
	return s
}
