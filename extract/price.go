package extract

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/rburdet/cars/listing"
)

var (
	errNoAmount  = errors.New("no numeric amount found")
	errBadAmount = errors.New("amount is zero or negative")
)

// usdTokens are checked before peso tokens: "US$" contains "$", so the
// dollar sign alone can only mean pesos once the dollar forms are ruled
// out.
var usdTokens = []string{"US$", "U$S", "USD", "u$s", "us$", "usd"}

var arsTokens = []string{"$", "ARS", "ars", "pesos"}

var amountToken = regexp.MustCompile(`\d[\d.,]*`)

// pricePattern finds a currency-prefixed amount in free text, the
// fallback when no structured price block exists. The currency token is
// mandatory so bare numbers (years, mileage) are never read as prices.
var pricePattern = regexp.MustCompile(`(?:US\$|U\$S|USD|\$)\s*\d[\d.,]*`)

// DetectCurrency classifies the currency token present in text,
// returning CurrencyUnknown when neither form appears.
func DetectCurrency(text string) listing.Currency {
	for _, tok := range usdTokens {
		if strings.Contains(text, tok) {
			return listing.CurrencyUSD
		}
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "dólar") || strings.Contains(lower, "dolar") {
		return listing.CurrencyUSD
	}
	for _, tok := range arsTokens {
		if strings.Contains(text, tok) {
			return listing.CurrencyARS
		}
	}
	return listing.CurrencyUnknown
}

// ParseAmount normalizes a locale-formatted numeric token. Argentine
// listings write "1.234.567,89" but some templates emit "1,234,567.89"
// or a bare "1.234"; the deciding rule is the group after the LAST
// separator: length <= 2 means that separator is the decimal mark and
// every other separator is grouping, anything longer means all
// separators are grouping.
func ParseAmount(text string) (float64, error) {
	token := amountToken.FindString(text)
	if token == "" {
		return 0, errNoAmount
	}
	token = strings.Trim(token, ".,")

	lastSep := strings.LastIndexAny(token, ".,")
	var normalized string
	if lastSep == -1 {
		normalized = token
	} else if len(token)-lastSep-1 <= 2 {
		intPart := strings.Map(dropSeparators, token[:lastSep])
		normalized = intPart + "." + token[lastSep+1:]
	} else {
		normalized = strings.Map(dropSeparators, token)
	}

	amount, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, errBadAmount
	}
	return amount, nil
}

// ParsePrice resolves currency and amount from a price-bearing text,
// e.g. "US$ 18.500" or "$ 4.350.000,50".
func ParsePrice(text string) (listing.Price, error) {
	amount, err := ParseAmount(text)
	if err != nil {
		return listing.Price{}, err
	}
	return listing.Price{Currency: DetectCurrency(text), Amount: amount}, nil
}

func dropSeparators(r rune) rune {
	if r == '.' || r == ',' {
		return -1
	}
	return r
}
