package listing

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidate_BrandKeyword verifies a brand in the title is enough
func TestValidate_BrandKeyword(t *testing.T) {
	rec := &Record{
		Title: "Volkswagen Gol Trend 1.6",
		Link:  "https://example.com/anuncio",
	}

	assert.NoError(t, Validate(rec))
}

// TestValidate_CarKeyword verifies a generic vehicle word is enough
func TestValidate_CarKeyword(t *testing.T) {
	rec := &Record{
		Title: "Camioneta doble cabina impecable",
		Link:  "https://example.com/anuncio",
	}

	assert.NoError(t, Validate(rec))
}

// TestValidate_YearToken verifies a plausible year in the title is enough
func TestValidate_YearToken(t *testing.T) {
	rec := &Record{
		Title: "Impecable 2019, único dueño",
		Link:  "https://example.com/anuncio",
	}

	assert.NoError(t, Validate(rec))
}

// TestValidate_ListingURL verifies a strict listing link rescues a bare title
func TestValidate_ListingURL(t *testing.T) {
	rec := &Record{
		Title: "Oportunidad única",
		Link:  "https://auto.mercadolibre.com.ar/MLA-1468234567-oportunidad-_JM",
	}

	assert.NoError(t, Validate(rec))
}

// TestValidate_NoSignal verifies rejection when nothing marks it as a car
func TestValidate_NoSignal(t *testing.T) {
	rec := &Record{
		Title: "Aprovechá el envío gratis",
		Link:  "https://example.com/promo",
	}

	assert.Error(t, Validate(rec))
}

// TestValidate_EmptyTitle verifies a missing title is rejected
func TestValidate_EmptyTitle(t *testing.T) {
	rec := &Record{
		Title: "   ",
		Link:  "https://auto.mercadolibre.com.ar/MLA-1468234567-x-_JM",
	}

	assert.Error(t, Validate(rec))
}

// TestValidate_EmptyLink verifies a missing link is rejected
func TestValidate_EmptyLink(t *testing.T) {
	rec := &Record{Title: "Ford Fiesta 2016"}

	assert.Error(t, Validate(rec))
}

// TestValidate_NonHTTPLink verifies non-web schemes are rejected
func TestValidate_NonHTTPLink(t *testing.T) {
	rec := &Record{
		Title: "Ford Fiesta 2016",
		Link:  "javascript:void(0)",
	}

	assert.Error(t, Validate(rec))
}

// TestValidate_NavigationNoise verifies site chrome is rejected even
// with a valid-looking link
func TestValidate_NavigationNoise(t *testing.T) {
	for _, title := range []string{"Inicio", "Ofertas", "Ayuda", "Vender", "Ingresá"} {
		rec := &Record{
			Title: title,
			Link:  "https://www.mercadolibre.com.ar/",
		}

		assert.Error(t, Validate(rec), "chrome title %q should be rejected", title)
	}
}

// TestPlausibleYear_Window verifies the accepted model-year window
func TestPlausibleYear_Window(t *testing.T) {
	assert.False(t, PlausibleYear(1985), "below the window floor")
	assert.False(t, PlausibleYear(1989), "one short of the floor")
	assert.True(t, PlausibleYear(1990), "window floor")
	assert.True(t, PlausibleYear(2019))
	assert.True(t, PlausibleYear(time.Now().Year()+1), "next year's models are on sale early")
	assert.False(t, PlausibleYear(time.Now().Year()+2))
	assert.False(t, PlausibleYear(2031))
}

// TestTitleYear_PicksFirstPlausible verifies implausible tokens are skipped
func TestTitleYear_PicksFirstPlausible(t *testing.T) {
	year, ok := TitleYear("Serie 1985 edición 2012 full")

	require.True(t, ok)
	assert.Equal(t, 2012, year, "1985 is outside the window and must be skipped")
}

// TestTitleYear_NoCandidate verifies absence is reported
func TestTitleYear_NoCandidate(t *testing.T) {
	_, ok := TitleYear("Motor 1.6 full full")

	assert.False(t, ok)
}

// TestTitleYear_EmbeddedDigitsIgnored verifies word boundaries are honored
func TestTitleYear_EmbeddedDigitsIgnored(t *testing.T) {
	_, ok := TitleYear(fmt.Sprintf("código A%d7", 201))

	assert.False(t, ok, "digits inside a longer token are not a year")
}

// TestIsListingURL verifies the strict detail-page shape
func TestIsListingURL(t *testing.T) {
	assert.True(t, IsListingURL("https://auto.mercadolibre.com.ar/MLA-1468234567-ford-focus-_JM"))
	assert.True(t, IsListingURL("https://articulo.mercadolibre.com.ar/MLA879922143-gol-trend"))
	assert.False(t, IsListingURL("https://autos.mercadolibre.com.ar/ford/focus/"), "search pages are not listings")
	assert.False(t, IsListingURL("https://example.com/MLA-1468234567"), "foreign hosts are not listings")
}
