package extract

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/rburdet/cars/listing"
)

// fragmentSelectors isolate one listing card each, ordered most to
// least specific. The first selector that matches anything on the page
// wins and the rest are skipped.
var fragmentSelectors = []string{
	"li.ui-search-layout__item",
	"div.ui-search-result__wrapper",
	"article.ui-search-result",
	"div.ui-search-result",
	"div.poly-card",
	"li.results-item",
	"div.results-item",
}

// endMarkers are explicit end-of-results texts. Any of them on a page
// vetoes every other next-page signal.
var endMarkers = []string{
	"no hay publicaciones que coincidan",
	"no se encontraron resultados",
	"fin de los resultados",
	"última página",
	"ultima pagina",
	"no hay más resultados",
	"no hay mas resultados",
}

// paginationSelectors locate the pagination widget's page links.
var paginationSelectors = ".andes-pagination a, .ui-search-pagination a, nav[aria-label] a.andes-pagination__link"

// Position describes where in the result sequence the page sits.
// Offset is the 1-based index of the page's first result, the number
// the site encodes in its "_Desde_" URLs.
type Position struct {
	Index    int
	Offset   int
	PageSize int
}

// NextSignals are the independent next-page indicators read from one
// page. The pagination controller combines them: any positive signal
// suggests another page, an end marker vetoes them all.
type NextSignals struct {
	NextControl   bool
	ListsNextPage bool
	NextOffsetRef bool
	EndMarker     bool
	// NextURL is the next control's resolved target when it carries one.
	// Empty when the control is missing or href-less; the controller then
	// derives the next URL from the offset instead.
	NextURL string
}

// Continue reports whether the signals, taken together, point at
// another page.
func (s NextSignals) Continue() bool {
	return (s.NextControl || s.ListsNextPage || s.NextOffsetRef) && !s.EndMarker
}

// PageOutcome is everything the pagination controller needs from one
// parsed page.
type PageOutcome struct {
	Records        []*listing.Record
	FragmentsFound int
	Rejected       int
	UsedLinkScan   bool
	Signals        NextSignals
}

// PageParser locates listing fragments on a result page and runs the
// extractor over each.
type PageParser struct {
	extractor *Extractor
	log       *zap.Logger
}

// NewPageParser returns a parser feeding extractor. A nil logger is
// replaced with a no-op one.
func NewPageParser(extractor *Extractor, log *zap.Logger) *PageParser {
	if log == nil {
		log = zap.NewNop()
	}
	return &PageParser{extractor: extractor, log: log}
}

// Parse extracts all listing records from one result page. When no
// fragment selector matches it falls back to scanning the whole page
// for listing-shaped anchors, which is noisier but never blind.
func (p *PageParser) Parse(html, pageURL string, pos Position) (*PageOutcome, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	acc := &pageAccumulator{log: p.log}
	outcome := &PageOutcome{}

	fragments := p.findFragments(doc)
	if fragments != nil {
		outcome.FragmentsFound = fragments.Length()
		fragments.Each(func(_ int, frag *goquery.Selection) {
			rec, err := p.extractor.Extract(frag, pageURL, nil)
			if err != nil {
				acc.reject(err)
				return
			}
			acc.accept(rec)
		})
	} else {
		outcome.UsedLinkScan = true
		p.linkScan(doc, pageURL, acc)
	}

	acc.finalize(p.extractor, pageURL)

	outcome.Records = acc.records
	outcome.Rejected = acc.rejected
	if outcome.UsedLinkScan {
		outcome.FragmentsFound = len(acc.records) + acc.rejected
	}
	outcome.Signals = detectNextSignals(doc, html, pageURL, pos)

	p.log.Debug("page parsed",
		zap.Int("page", pos.Index),
		zap.Int("fragments", outcome.FragmentsFound),
		zap.Int("records", len(outcome.Records)),
		zap.Int("rejected", outcome.Rejected),
		zap.Bool("link_scan", outcome.UsedLinkScan))
	return outcome, nil
}

// findFragments tries each structural selector and returns the matches
// of the first one that hits, or nil when the page shape is unknown.
func (p *PageParser) findFragments(doc *goquery.Document) *goquery.Selection {
	for _, sel := range fragmentSelectors {
		if nodes := doc.Find(sel); nodes.Length() > 0 {
			return nodes
		}
	}
	return nil
}

// linkScan walks every anchor on the page and starts a partial record
// for each distinct listing URL, using the anchor's own text (or its
// parent's) as the title source. Consecutive anchors pointing at the
// same listing merge into one partial.
func (p *PageParser) linkScan(doc *goquery.Document, pageURL string, acc *pageAccumulator) {
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		resolved := resolveURL(pageURL, href)
		if resolved == "" || !listing.IsListingURL(resolved) {
			return
		}

		text := normalizeSpace(a.Text())
		if utf8.RuneCountInString(text) < minTitleFragment || listing.IsNavigationNoise(text) {
			text = ""
		}

		if acc.partial != nil && acc.partial.rec.Link == resolved {
			if text != "" && !strings.Contains(acc.partial.rec.Title, text) {
				if acc.partial.rec.Title != "" {
					acc.partial.rec.Title += " "
				}
				acc.partial.rec.Title += text
			}
			return
		}

		acc.start(p.extractor, pageURL, &partialRecord{
			rec: &listing.Record{Title: text, Link: resolved},
			sel: a.Parent(),
		})
	})
}

// partialRecord is an in-progress link-scan record plus the fragment
// context it will be completed from.
type partialRecord struct {
	rec *listing.Record
	sel *goquery.Selection
}

// pageAccumulator gathers one page's records. The trailing partial is
// flushed through the validity check exactly once, guarded against
// double finalization.
type pageAccumulator struct {
	records   []*listing.Record
	rejected  int
	partial   *partialRecord
	finalized bool
	log       *zap.Logger
}

func (acc *pageAccumulator) accept(rec *listing.Record) {
	acc.records = append(acc.records, rec)
}

func (acc *pageAccumulator) reject(err error) {
	acc.rejected++
	acc.log.Debug("fragment rejected", zap.Error(err))
}

// start flushes the current partial and begins a new one.
func (acc *pageAccumulator) start(e *Extractor, pageURL string, next *partialRecord) {
	acc.flush(e, pageURL)
	acc.partial = next
}

// flush completes the current partial through the extractor, which
// applies the validity check.
func (acc *pageAccumulator) flush(e *Extractor, pageURL string) {
	if acc.partial == nil {
		return
	}
	rec, err := e.Extract(acc.partial.sel, pageURL, acc.partial.rec)
	if err != nil {
		acc.reject(err)
	} else {
		acc.accept(rec)
	}
	acc.partial = nil
}

// finalize flushes the trailing partial. Subsequent calls do nothing.
func (acc *pageAccumulator) finalize(e *Extractor, pageURL string) {
	if acc.finalized {
		return
	}
	acc.finalized = true
	acc.flush(e, pageURL)
}

// nextControlInert reports a next control that is present but
// unusable: the disabled modifier class on the node or its parent, or
// a bare disabled attribute.
func nextControlInert(n *goquery.Selection) bool {
	if n.HasClass("andes-pagination__button--disabled") ||
		n.Parent().HasClass("andes-pagination__button--disabled") {
		return true
	}
	_, disabled := n.Attr("disabled")
	return disabled
}

// detectNextSignals reads the page's independent next-page indicators.
func detectNextSignals(doc *goquery.Document, rawHTML, pageURL string, pos Position) NextSignals {
	var s NextSignals

	doc.Find(".andes-pagination__button--next").EachWithBreak(func(_ int, n *goquery.Selection) bool {
		if nextControlInert(n) {
			return true
		}
		if href, ok := n.Attr("href"); ok {
			s.NextControl = true
			s.NextURL = resolveURL(pageURL, href)
			return false
		}
		if a := n.Find("a[href]").First(); a.Length() > 0 && !nextControlInert(a) {
			s.NextControl = true
			if href, ok := a.Attr("href"); ok {
				s.NextURL = resolveURL(pageURL, href)
			}
			return false
		}
		return true
	})

	nextLabel := strconv.Itoa(pos.Index + 1)
	doc.Find(paginationSelectors).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if normalizeSpace(a.Text()) == nextLabel {
			s.ListsNextPage = true
			return false
		}
		return true
	})

	if pos.PageSize > 0 {
		marker := fmt.Sprintf("_Desde_%d", pos.Offset+pos.PageSize)
		s.NextOffsetRef = strings.Contains(rawHTML, marker)
	}

	lower := strings.ToLower(doc.Text())
	for _, marker := range endMarkers {
		if strings.Contains(lower, marker) {
			s.EndMarker = true
			break
		}
	}
	return s
}
