package listing

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MinYear is the oldest model year treated as plausible. Candidates
// below it are noise (engine displacements, door counts, prices).
const MinYear = 1990

// brandKeywords are manufacturer names common on the Argentine market.
// Matching is case-insensitive substring over the title.
var brandKeywords = []string{
	"volkswagen", "ford", "chevrolet", "toyota", "renault", "peugeot",
	"fiat", "honda", "nissan", "citroen", "citroën", "jeep", "chrysler",
	"mercedes", "bmw", "audi", "hyundai", "kia", "suzuki", "mitsubishi",
	"chery", "dodge", "ram", "volvo", "seat", "alfa romeo", "mini",
	"land rover", "porsche", "subaru", "isuzu", "daihatsu", "ssangyong",
	"baic", "geely", "haval", "jac", "lifan", "dfsk",
}

// carKeywords are vehicle words that mark a title as a listing even
// when the brand is missing or misspelled.
var carKeywords = []string{
	"auto", "camioneta", "pickup", "pick-up", "sedan", "sedán",
	"hatchback", "suv", "coupe", "coupé", "furgon", "furgón", "utilitario",
	"4x4", "4x2", "0km", "usado", "automático", "automatico", "nafta",
	"diesel", "gnc",
}

// navigationNoise holds site-chrome strings that sometimes survive the
// fragment selectors. A title equal to one of these is never a listing.
var navigationNoise = []string{
	"inicio", "ofertas", "ayuda", "vender", "ingresá", "ingresa",
	"crear cuenta", "mis compras", "favoritos", "historial",
	"supermercado", "moda", "categorías", "categorias", "ver más",
	"ver mas", "búsquedas populares", "busquedas populares",
}

// listingURLPattern is the strict shape of a detail-page URL. A link
// matching it is accepted even when the title carries no car signal.
var listingURLPattern = regexp.MustCompile(`^https?://(?:[a-z0-9-]+\.)*mercadolibre\.com(?:\.ar)?/.*MLA-?\d+`)

// yearToken finds 4-digit year candidates in free text.
var yearToken = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

// PlausibleYear reports whether y falls inside the accepted model-year
// window, [MinYear, currentYear+1]. Next year's models are on sale
// before January, so the window extends one year past today.
func PlausibleYear(y int) bool {
	return y >= MinYear && y <= time.Now().Year()+1
}

// TitleYear scans free text for the first plausible 4-digit year.
func TitleYear(text string) (int, bool) {
	for _, m := range yearToken.FindAllString(text, -1) {
		y, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if PlausibleYear(y) {
			return y, true
		}
	}
	return 0, false
}

// IsListingURL reports whether link matches the strict detail-page
// shape, including a marketplace item id.
func IsListingURL(link string) bool {
	return listingURLPattern.MatchString(link)
}

// IsNavigationNoise reports whether text is a known site-chrome string
// (menu entry, banner caption) rather than listing content.
func IsNavigationNoise(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, noise := range navigationNoise {
		if lower == noise {
			return true
		}
	}
	return false
}

// Validate decides whether a candidate record is a real vehicle listing
// rather than harvested navigation, an ad slot, or a banner. It returns
// nil for acceptable records and an error naming the first failed check
// otherwise.
//
// A record passes when it has a non-empty title, a resolvable http(s)
// link, and at least one positive car signal: a brand keyword, a
// car-specific keyword, a plausible year token in the title, or a link
// matching the strict listing-URL shape.
func Validate(r *Record) error {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return fmt.Errorf("title is empty")
	}

	if IsNavigationNoise(title) {
		return fmt.Errorf("title %q is site navigation", title)
	}
	lower := strings.ToLower(title)

	if r.Link == "" {
		return fmt.Errorf("link is empty")
	}
	u, err := url.Parse(r.Link)
	if err != nil {
		return fmt.Errorf("invalid link: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("link must use http or https scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("link has no host")
	}

	if hasAnyKeyword(lower, brandKeywords) {
		return nil
	}
	if hasAnyKeyword(lower, carKeywords) {
		return nil
	}
	if _, ok := TitleYear(title); ok {
		return nil
	}
	if IsListingURL(r.Link) {
		return nil
	}
	return fmt.Errorf("title %q carries no car signal and link is not a listing URL", title)
}

func hasAnyKeyword(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
