// Package extract turns noisy marketplace HTML into typed listing
// records. The extractor applies several independent strategies per
// field in priority order: the first plausible value wins and weaker
// strategies only ever fill fields that are still unset.
package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/rburdet/cars/listing"
)

// ErrRejected marks a fragment that parsed cleanly but failed the
// listing-validity check. Callers skip the fragment and count it; the
// error never crosses the page boundary.
var ErrRejected = errors.New("fragment rejected")

// minTitleFragment is the shortest text run (in runes, badge glyphs
// are multi-byte) worth keeping as part of a title. Shorter runs are
// icons, separators, or badge decorations.
const minTitleFragment = 4

// titleSelectors are tried most-specific first; the first selector with
// at least one usable match supplies the title.
var titleSelectors = []string{
	"h2.ui-search-item__title",
	"a.poly-component__title",
	".poly-component__title-wrapper a",
	".ui-search-item__title",
	"h2 a[title]",
	"h2",
	"h3",
}

// priceSelectors locate the price block inside a fragment.
var priceSelectors = []string{
	".andes-money-amount",
	".price-tag-amount",
	".ui-search-price__second-line",
	".price-tag",
}

var thumbnailSelectors = []string{
	"img.ui-search-result-image__element",
	"img.poly-component__picture",
	"img[data-src]",
	"img[src]",
}

// Extractor derives ListingRecords from result-page fragments and,
// optionally, from detail pages.
type Extractor struct {
	log *zap.Logger
}

// NewExtractor returns an Extractor logging through log. A nil logger
// is replaced with a no-op one.
func NewExtractor(log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{log: log}
}

// Extract builds a record from one listing fragment. pageURL resolves
// relative links. prior, when non-nil, seeds the record: values already
// present on it are kept and extraction only fills the gaps.
//
// Single-field failures degrade that field to its zero value and are
// never returned as errors; the only error condition is the validity
// check, reported as a wrapped ErrRejected.
func (e *Extractor) Extract(fragment *goquery.Selection, pageURL string, prior *listing.Record) (*listing.Record, error) {
	rec := &listing.Record{ExtractedAt: time.Now().UTC()}
	if prior != nil {
		seeded := *prior
		seeded.ExtractedAt = rec.ExtractedAt
		rec = &seeded
	}

	fragmentText := normalizeSpace(fragment.Text())

	if rec.Title == "" {
		rec.Title = extractTitle(fragment)
	}
	if rec.Link == "" {
		rec.Link = extractLink(fragment, pageURL)
	}
	if rec.ID == "" && rec.Link != "" {
		if id, ok := listing.ParseID(rec.Link); ok {
			rec.ID = id
		}
	}
	if !rec.Price.IsSet() {
		rec.Price = e.extractPrice(fragment, fragmentText)
	}

	attrs := attributeTexts(fragment)
	if rec.Year == nil {
		rec.Year = extractYear(attrs, rec.Title, fragmentText)
	}
	if rec.Kilometers == nil {
		rec.Kilometers = extractKilometers(attrs, fragmentText)
	}
	if rec.Location == nil {
		rec.Location = extractLocation(fragment, fragmentText)
	}
	if rec.Seller.Type == "" || rec.Seller.Type == listing.SellerUnknown {
		seller := extractSeller(fragment, fragmentText)
		if rec.Seller.Name != nil {
			seller.Name = rec.Seller.Name
		}
		rec.Seller = seller
	}
	if rec.Thumbnail == nil {
		rec.Thumbnail = extractThumbnail(fragment, pageURL)
	}
	extractFeatures(rec, fragmentText)

	if err := listing.Validate(rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return rec, nil
}

// extractTitle walks the selector priority list, keeps matched text
// runs that pass the chrome-noise filter, and joins them.
func extractTitle(fragment *goquery.Selection) string {
	for _, sel := range titleSelectors {
		nodes := fragment.Find(sel)
		if nodes.Length() == 0 {
			continue
		}
		var parts []string
		nodes.Each(func(_ int, s *goquery.Selection) {
			t := normalizeSpace(s.Text())
			if utf8.RuneCountInString(t) < minTitleFragment || listing.IsNavigationNoise(t) {
				return
			}
			for _, p := range parts {
				if p == t {
					return
				}
			}
			parts = append(parts, t)
		})
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	return ""
}

// extractLink returns the first anchor target that matches a listing
// URL shape, resolved against the page URL.
func extractLink(fragment *goquery.Selection, pageURL string) string {
	var link string
	fragment.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		resolved := resolveURL(pageURL, href)
		if resolved == "" {
			return true
		}
		if listing.IsListingURL(resolved) {
			link = resolved
			return false
		}
		if _, idOK := listing.ParseID(resolved); idOK && link == "" {
			link = resolved
		}
		return true
	})
	return link
}

// extractPrice prefers the structured price block and falls back to a
// currency-token scan over the fragment text.
func (e *Extractor) extractPrice(fragment *goquery.Selection, fragmentText string) listing.Price {
	for _, sel := range priceSelectors {
		block := fragment.Find(sel).First()
		if block.Length() == 0 {
			continue
		}
		text := normalizeSpace(block.Text())
		if cents := normalizeSpace(block.Find(".andes-money-amount__cents").First().Text()); cents != "" {
			fraction := normalizeSpace(block.Find(".andes-money-amount__fraction").First().Text())
			if fraction != "" {
				symbol := normalizeSpace(block.Find(".andes-money-amount__currency-symbol").First().Text())
				text = symbol + " " + fraction + "," + cents
			}
		}
		price, err := ParsePrice(text)
		if err == nil {
			return price
		}
		e.log.Debug("price block did not parse", zap.String("text", text), zap.Error(err))
	}

	if m := pricePattern.FindString(fragmentText); m != "" {
		if price, err := ParsePrice(m); err == nil {
			return price
		}
	}
	return listing.Price{Currency: listing.CurrencyUnknown}
}

func extractThumbnail(fragment *goquery.Selection, pageURL string) *string {
	for _, sel := range thumbnailSelectors {
		img := fragment.Find(sel).First()
		if img.Length() == 0 {
			continue
		}
		src, ok := img.Attr("data-src")
		if !ok || src == "" {
			src, ok = img.Attr("src")
		}
		if !ok || src == "" || strings.HasPrefix(src, "data:") {
			continue
		}
		resolved := resolveURL(pageURL, src)
		if resolved != "" {
			return &resolved
		}
	}
	return nil
}

// resolveURL absolutizes href against base, returning "" when either
// side is unparseable.
func resolveURL(base, href string) string {
	h, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if h.IsAbs() {
		return h.String()
	}
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return ""
	}
	return b.ResolveReference(h).String()
}

// normalizeSpace collapses runs of whitespace into single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
