package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rburdet/cars/listing"
)

// maxKilometers bounds plausible odometer readings; anything at or
// above it is a mis-parsed price or phone number.
const maxKilometers = 1_000_000

// attributeSelectors locate the structured attribute list rendered
// under a listing card (year, kilometers). Structured attributes are
// the most reliable signal and always beat free-text matches.
var attributeSelectors = []string{
	"li.ui-search-card-attributes__attribute",
	".poly-attributes-list__item",
	".ui-search-item__group--attributes span",
}

var (
	exactYear   = regexp.MustCompile(`^(19\d{2}|20\d{2})$`)
	kmPattern   = regexp.MustCompile(`(?i)([\d.,]+)\s*km`)
	kmFuzzy     = regexp.MustCompile(`(?i)(\d+)\s*mil\s+km`)
	powerToken  = regexp.MustCompile(`(?i)\b(\d{2,4})\s*(cv|hp)\b`)
	locationSep = " - "
)

// attributeTexts collects the trimmed texts of the fragment's
// structured attribute list, trying each selector until one matches.
func attributeTexts(fragment *goquery.Selection) []string {
	for _, sel := range attributeSelectors {
		nodes := fragment.Find(sel)
		if nodes.Length() == 0 {
			continue
		}
		texts := make([]string, 0, nodes.Length())
		nodes.Each(func(_ int, s *goquery.Selection) {
			if t := strings.TrimSpace(s.Text()); t != "" {
				texts = append(texts, t)
			}
		})
		if len(texts) > 0 {
			return texts
		}
	}
	return nil
}

// extractYear resolves the model year through three tiers: an exact
// 4-digit structured attribute, then a year token in the title, then a
// year token anywhere in the fragment text. Implausible candidates are
// discarded at every tier.
func extractYear(attrs []string, title, fragmentText string) *int {
	for _, attr := range attrs {
		m := exactYear.FindString(strings.TrimSpace(attr))
		if m == "" {
			continue
		}
		y, err := strconv.Atoi(m)
		if err == nil && listing.PlausibleYear(y) {
			return &y
		}
	}
	if y, ok := listing.TitleYear(title); ok {
		return &y
	}
	if y, ok := listing.TitleYear(fragmentText); ok {
		return &y
	}
	return nil
}

// extractKilometers resolves mileage through three tiers: a structured
// attribute carrying a km suffix, an explicit "<number> km" match in
// the fragment text, then the fuzzy "<n> mil km" form. Dots are
// Argentine thousands grouping.
func extractKilometers(attrs []string, fragmentText string) *int {
	for _, attr := range attrs {
		if km, ok := kmFromMatch(kmPattern.FindStringSubmatch(attr)); ok {
			return &km
		}
	}
	if km, ok := kmFromMatch(kmPattern.FindStringSubmatch(fragmentText)); ok {
		return &km
	}
	if m := kmFuzzy.FindStringSubmatch(fragmentText); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			km := n * 1000
			if plausibleKilometers(km) {
				return &km
			}
		}
	}
	return nil
}

func kmFromMatch(m []string) (int, bool) {
	if m == nil {
		return 0, false
	}
	amount, err := ParseAmount(m[1])
	if err != nil {
		return 0, false
	}
	km := int(amount)
	if !plausibleKilometers(km) {
		return 0, false
	}
	return km, true
}

func plausibleKilometers(km int) bool {
	return km > 0 && km < maxKilometers
}

// locationSelectors locate the card's location label.
var locationSelectors = []string{
	"span.ui-search-item__location",
	".poly-component__location",
	".ui-search-item__group--location span",
}

// extractLocation prefers a dedicated location element and falls back
// to the dash-delimited trailing segment of the fragment's last text
// line, a weak but common shape ("... - Palermo, Capital Federal").
func extractLocation(fragment *goquery.Selection, fragmentText string) *string {
	for _, sel := range locationSelectors {
		if t := strings.TrimSpace(fragment.Find(sel).First().Text()); t != "" {
			return &t
		}
	}
	idx := strings.LastIndex(fragmentText, locationSep)
	if idx == -1 {
		return nil
	}
	tail := strings.TrimSpace(fragmentText[idx+len(locationSep):])
	if tail == "" || len(tail) > 60 {
		return nil
	}
	if kmPattern.MatchString(tail) || strings.ContainsAny(tail, "$") || exactYear.MatchString(tail) {
		return nil
	}
	return &tail
}

var sellerNameSelectors = []string{
	".ui-search-official-store-label",
	".poly-component__seller",
	".ui-search-item__brand-discoverability",
}

// extractSeller classifies the publisher from keyword hits and picks up
// the store name when the card carries one. MercadoLibre prefixes store
// names with "Por ".
func extractSeller(fragment *goquery.Selection, fragmentText string) listing.Seller {
	seller := listing.Seller{Type: listing.SellerUnknown}

	lower := strings.ToLower(fragmentText)
	switch {
	case strings.Contains(lower, "concesionaria") || strings.Contains(lower, "agencia") || strings.Contains(lower, "tienda oficial"):
		seller.Type = listing.SellerDealer
	case strings.Contains(lower, "dueño directo") || strings.Contains(lower, "dueña directa") || strings.Contains(lower, "particular"):
		seller.Type = listing.SellerPrivateOwner
	}

	for _, sel := range sellerNameSelectors {
		t := strings.TrimSpace(fragment.Find(sel).First().Text())
		if t == "" {
			continue
		}
		t = strings.TrimSpace(strings.TrimPrefix(t, "Por "))
		if t != "" {
			seller.Name = &t
			if seller.Type == listing.SellerUnknown {
				seller.Type = listing.SellerDealer
			}
		}
		break
	}
	return seller
}

// featureKeywords maps lowercase keyword hits to canonical feature tags.
// Order fixes the tag sequence on the record.
var featureKeywords = []struct {
	match string
	tag   string
}{
	{"automática", "Automática"},
	{"automatica", "Automática"},
	{"automático", "Automática"},
	{"automatico", "Automática"},
	{" manual", "Manual"},
	{"nafta", "Nafta"},
	{"diesel", "Diesel"},
	{"diésel", "Diesel"},
	{"gnc", "GNC"},
	{"híbrido", "Híbrido"},
	{"hibrido", "Híbrido"},
	{"eléctrico", "Eléctrico"},
	{"electrico", "Eléctrico"},
	{"4x4", "4x4"},
}

// extractFeatures collects transmission, fuel, drivetrain and engine
// power tags from the fragment text.
func extractFeatures(rec *listing.Record, fragmentText string) {
	lower := strings.ToLower(fragmentText)
	for _, kw := range featureKeywords {
		if strings.Contains(lower, kw.match) {
			rec.AddFeature(kw.tag)
		}
	}
	if m := powerToken.FindStringSubmatch(fragmentText); m != nil {
		rec.AddFeature(m[1] + " " + strings.ToUpper(m[2]))
	}
}
