package listing

import "regexp"

// Listing URLs carry the marketplace item id in one of a few shapes.
// Patterns are tried strictest first so that a hyphenated id is never
// shadowed by the generic trailing-digits form.
var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`MLA-(\d+)`),
	regexp.MustCompile(`MLA(\d+)`),
	regexp.MustCompile(`/(\d{6,})`),
}

// ParseID extracts the canonical listing id from a URL or id-bearing
// string. Ids matched through an MLA pattern are canonicalized to the
// unhyphenated "MLA<digits>" form, so reparsing an already-parsed id
// returns the same value. The second return is false when no pattern
// matches.
func ParseID(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	for i, pat := range idPatterns {
		m := pat.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		if i < 2 {
			return "MLA" + m[1], true
		}
		return m[1], true
	}
	return "", false
}
