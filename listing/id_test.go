package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestParseID_HyphenatedForm verifies the strict MLA-digits pattern wins
func TestParseID_HyphenatedForm(t *testing.T) {
	id, ok := ParseID("https://auto.mercadolibre.com.ar/MLA-1468234567-ford-focus-2018-_JM")

	assert.True(t, ok)
	assert.Equal(t, "MLA1468234567", id, "hyphen should be dropped in the canonical form")
}

// TestParseID_CompactForm verifies the unhyphenated MLA pattern
func TestParseID_CompactForm(t *testing.T) {
	id, ok := ParseID("https://articulo.mercadolibre.com.ar/p/MLA23841991")

	assert.True(t, ok)
	assert.Equal(t, "MLA23841991", id)
}

// TestParseID_TrailingDigitsFallback verifies the loose numeric pattern
func TestParseID_TrailingDigitsFallback(t *testing.T) {
	id, ok := ParseID("https://example.com/listing/20318847")

	assert.True(t, ok)
	assert.Equal(t, "20318847", id)
}

// TestParseID_ShortDigitsNotAnID verifies short path numbers are skipped
func TestParseID_ShortDigitsNotAnID(t *testing.T) {
	_, ok := ParseID("https://example.com/page/2")

	assert.False(t, ok, "digits shorter than 6 are pagination, not ids")
}

// TestParseID_Idempotent verifies reparsing a parsed id returns itself
func TestParseID_Idempotent(t *testing.T) {
	first, ok := ParseID("https://auto.mercadolibre.com.ar/MLA-1468234567-ford-focus-_JM")
	assert.True(t, ok)

	second, ok := ParseID(first)
	assert.True(t, ok)
	assert.Equal(t, first, second)
}

// TestParseID_Empty verifies empty input yields no id
func TestParseID_Empty(t *testing.T) {
	_, ok := ParseID("")

	assert.False(t, ok)
}
