// Package listing defines the vehicle listing record extracted from
// marketplace result pages, the rules that decide whether a candidate
// record is a real listing, and id-based deduplication of record sets.
package listing

import (
	"strings"
	"time"
)

// Currency identifies the currency a price was published in.
type Currency string

const (
	CurrencyARS     Currency = "ARS"
	CurrencyUSD     Currency = "USD"
	CurrencyUnknown Currency = "unknown"
)

// Price is a normalized listing price. Amount is zero when no price could
// be parsed; when set it is always positive.
type Price struct {
	Currency Currency `json:"currency"`
	Amount   float64  `json:"amount"`
}

// IsSet reports whether a price was actually extracted.
func (p Price) IsSet() bool {
	return p.Amount > 0
}

// SellerType classifies who published the listing.
type SellerType string

const (
	SellerDealer       SellerType = "dealer"
	SellerPrivateOwner SellerType = "private_owner"
	SellerUnknown      SellerType = "unknown"
)

// Seller holds best-effort seller information.
type Seller struct {
	Type SellerType `json:"type"`
	Name *string    `json:"name,omitempty"`
}

// Record represents one vehicle listing. Records are built by the
// extractor from a single result-page fragment and are immutable
// afterward, except for the controlled nil-filling performed by
// enrichment and by duplicate merging.
type Record struct {
	ID         string    `json:"id,omitempty"`
	Title      string    `json:"title"`
	Price      Price     `json:"price"`
	Year       *int      `json:"year,omitempty"`
	Kilometers *int      `json:"kilometers,omitempty"`
	Location   *string   `json:"location,omitempty"`
	Link       string    `json:"link"`
	Thumbnail  *string   `json:"thumbnail,omitempty"`
	Seller     Seller    `json:"seller"`
	Features   []string  `json:"features,omitempty"`
	ExtractedAt time.Time `json:"extracted_at"`

	// Detail-page enrichment. These are only ever filled, never used by
	// the validity predicate.
	Description *string           `json:"description,omitempty"`
	PublishedAt *string           `json:"published_at,omitempty"`
	Specs       map[string]string `json:"specs,omitempty"`
}

// AddFeature appends a feature tag, preserving insertion order and
// dropping duplicates (case-insensitive).
func (r *Record) AddFeature(tag string) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return
	}
	for _, f := range r.Features {
		if strings.EqualFold(f, tag) {
			return
		}
	}
	r.Features = append(r.Features, tag)
}

// MergeFrom copies fields that are set on other into still-unset fields
// of r. Confidently-set values are never overwritten: a field survives
// the merge if r already has it. Used both by enrichment-mode
// deduplication and by merge-on-store.
func (r *Record) MergeFrom(other *Record) {
	if other == nil {
		return
	}
	if r.Title == "" {
		r.Title = other.Title
	}
	if !r.Price.IsSet() && other.Price.IsSet() {
		r.Price = other.Price
	}
	if r.Year == nil {
		r.Year = other.Year
	}
	if r.Kilometers == nil {
		r.Kilometers = other.Kilometers
	}
	if r.Location == nil {
		r.Location = other.Location
	}
	if r.Link == "" {
		r.Link = other.Link
	}
	if r.Thumbnail == nil {
		r.Thumbnail = other.Thumbnail
	}
	if r.Seller.Type == "" || r.Seller.Type == SellerUnknown {
		if other.Seller.Type != "" && other.Seller.Type != SellerUnknown {
			r.Seller.Type = other.Seller.Type
		}
	}
	if r.Seller.Name == nil {
		r.Seller.Name = other.Seller.Name
	}
	for _, f := range other.Features {
		r.AddFeature(f)
	}
	if r.Description == nil {
		r.Description = other.Description
	}
	if r.PublishedAt == nil {
		r.PublishedAt = other.PublishedAt
	}
	for k, v := range other.Specs {
		if r.Specs == nil {
			r.Specs = make(map[string]string, len(other.Specs))
		}
		if _, ok := r.Specs[k]; !ok {
			r.Specs[k] = v
		}
	}
}
