package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/rburdet/cars/listing"
)

var descriptionSelectors = []string{
	"p.ui-pdp-description__content",
	".ui-pdp-description__content",
	"#description p",
}

var detailSellerSelectors = []string{
	".ui-pdp-seller__header__title",
	".ui-vip-profile-info__info-container h3",
	".ui-pdp-seller__label-sold",
}

// Enrich fills still-unset fields of an accepted record from its own
// detail page: description, publish date, seller name, and the
// specifications table. It is strictly additive; values set by the
// summary pass are never overwritten, and any parse trouble degrades to
// no enrichment for the affected field.
func (e *Extractor) Enrich(rec *listing.Record, detailHTML string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(detailHTML))
	if err != nil {
		return fmt.Errorf("parsing detail page: %w", err)
	}

	if rec.Description == nil {
		for _, sel := range descriptionSelectors {
			if t := normalizeSpace(doc.Find(sel).First().Text()); t != "" {
				rec.Description = &t
				break
			}
		}
	}

	if rec.PublishedAt == nil {
		doc.Find(".ui-pdp-header__subtitle, .ui-pdp-subtitle").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			t := normalizeSpace(s.Text())
			if strings.Contains(strings.ToLower(t), "publicado") {
				rec.PublishedAt = &t
				return false
			}
			return true
		})
	}

	if rec.Seller.Name == nil {
		for _, sel := range detailSellerSelectors {
			if t := normalizeSpace(doc.Find(sel).First().Text()); t != "" {
				rec.Seller.Name = &t
				break
			}
		}
	}

	specs := extractSpecs(doc)
	for k, v := range specs {
		if rec.Specs == nil {
			rec.Specs = make(map[string]string, len(specs))
		}
		if _, ok := rec.Specs[k]; !ok {
			rec.Specs[k] = v
		}
	}

	// The specs table is a structured attribute source, so it may fill
	// year and mileage the summary card lacked.
	if rec.Year == nil {
		if raw, ok := specs["Año"]; ok {
			if y, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && listing.PlausibleYear(y) {
				rec.Year = &y
			}
		}
	}
	if rec.Kilometers == nil {
		if raw, ok := specs["Kilómetros"]; ok {
			if km, ok := kmFromMatch(kmPattern.FindStringSubmatch(raw)); ok {
				rec.Kilometers = &km
			}
		}
	}

	e.log.Debug("record enriched",
		zap.String("id", rec.ID),
		zap.Int("specs", len(specs)),
		zap.Bool("description", rec.Description != nil))
	return nil
}

// extractSpecs reads key/value rows from the detail page's
// specification tables.
func extractSpecs(doc *goquery.Document) map[string]string {
	specs := make(map[string]string)
	doc.Find(".andes-table tr, .ui-vpp-striped-specs__row").Each(func(_ int, row *goquery.Selection) {
		key := normalizeSpace(row.Find("th").First().Text())
		value := normalizeSpace(row.Find("td").First().Text())
		if key == "" || value == "" {
			return
		}
		if _, ok := specs[key]; !ok {
			specs[key] = value
		}
	})
	return specs
}
