package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSearchURL verifies slug construction from a query
func TestSearchURL(t *testing.T) {
	assert.Equal(t,
		"https://autos.mercadolibre.com.ar/toyota/corolla",
		SearchURL("https://autos.mercadolibre.com.ar", Query{Brand: "Toyota", Model: "Corolla"}))
	assert.Equal(t,
		"https://autos.mercadolibre.com.ar/alfa-romeo/giulietta",
		SearchURL("https://autos.mercadolibre.com.ar/", Query{Brand: "Alfa Romeo", Model: "Giulietta"}))
}

// TestNextOffsetURL verifies the _Desde_ segment is appended once and
// rewritten afterward
func TestNextOffsetURL(t *testing.T) {
	first := "https://autos.mercadolibre.com.ar/toyota/corolla"

	second := NextOffsetURL(first, 49)
	assert.Equal(t, "https://autos.mercadolibre.com.ar/toyota/corolla_Desde_49", second)

	third := NextOffsetURL(second, 97)
	assert.Equal(t, "https://autos.mercadolibre.com.ar/toyota/corolla_Desde_97", third)
}

// TestBudgetMethod verifies the fixed/infinite naming used in stored
// results
func TestBudgetMethod(t *testing.T) {
	assert.Equal(t, "fixed", Budget{MaxPages: 3}.Method())
	assert.Equal(t, "infinite", Budget{}.Method())
}
