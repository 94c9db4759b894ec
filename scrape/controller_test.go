package scrape

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rburdet/cars/extract"
)

// fakeFetcher serves canned pages by URL and records every request.
type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*Response, error) {
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, &FetchError{URL: url, StatusCode: 404}
	}
	return &Response{StatusCode: 200, Body: body, FinalURL: url}, nil
}

// testCard renders one listing fragment with a distinct id.
func testCard(n int) string {
	return fmt.Sprintf(`
	<li class="ui-search-layout__item">
	  <h2 class="ui-search-item__title">Toyota Corolla XEI unidad %d</h2>
	  <a href="https://auto.mercadolibre.com.ar/MLA-%d-corolla">ver</a>
	  <span class="andes-money-amount">
	    <span class="andes-money-amount__currency-symbol">US$</span>
	    <span class="andes-money-amount__fraction">18.500</span>
	  </span>
	  <ul><li class="ui-search-card-attributes__attribute">2020</li></ul>
	</li>`, n, n)
}

// testPage renders a full results page from card ids, optionally with a
// next control pointing at nextHref.
func testPage(ids []int, nextHref string) string {
	var b strings.Builder
	b.WriteString(`<html><body><ol class="ui-search-layout">`)
	for _, id := range ids {
		b.WriteString(testCard(id))
	}
	b.WriteString(`</ol>`)
	if nextHref != "" {
		fmt.Fprintf(&b, `<nav><a class="andes-pagination__button--next" href="%s">Siguiente</a></nav>`, nextHref)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func ids(from, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = from + i
	}
	return out
}

const testBase = "https://autos.mercadolibre.com.ar"

func newTestController(f Fetcher) *Controller {
	extractor := extract.NewExtractor(nil)
	parser := extract.NewPageParser(extractor, nil)
	return NewController(f, parser, ControllerOptions{
		PageSize:        48,
		MinResults:      2,
		OverlapFraction: 0.8,
		DelayMin:        time.Millisecond,
		DelayMax:        2 * time.Millisecond,
	}, nil)
}

var testQuery = Query{Brand: "Toyota", Model: "Corolla"}

// TestRun_PageBudgetRespected verifies a session that would continue
// forever stops at exactly MaxPages with BudgetExceeded
func TestRun_PageBudgetRespected(t *testing.T) {
	p1 := SearchURL(testBase, testQuery)
	p2 := NextOffsetURL(p1, 49)
	p3 := NextOffsetURL(p1, 97)
	p4 := NextOffsetURL(p1, 145)
	f := &fakeFetcher{pages: map[string]string{
		p1: testPage(ids(1000001, 6), p2),
		p2: testPage(ids(2000001, 6), p3),
		p3: testPage(ids(3000001, 6), p4),
		p4: testPage(ids(4000001, 6), ""),
	}}

	session := newTestController(f).Run(context.Background(), testQuery, p1, Budget{MaxPages: 3})

	assert.Equal(t, StatusBudgetExceeded, session.Status)
	assert.Equal(t, 3, session.PagesScraped())
	assert.Len(t, f.calls, 3, "page 4 must never be fetched")
	assert.Equal(t, 18, session.TotalCars())
}

// TestRun_FetchFailurePreservesPartialResults verifies a mid-session
// fetch error terminates with the earlier pages' records intact
func TestRun_FetchFailurePreservesPartialResults(t *testing.T) {
	p1 := SearchURL(testBase, testQuery)
	p2 := NextOffsetURL(p1, 49)
	p3 := NextOffsetURL(p1, 97)
	// Page 2 repeats one id from page 1 to exercise cross-page dedup.
	page2IDs := append([]int{1000001}, ids(2000001, 5)...)
	f := &fakeFetcher{
		pages: map[string]string{
			p1: testPage(ids(1000001, 6), p2),
			p2: testPage(page2IDs, p3),
		},
		errs: map[string]error{p3: &FetchError{URL: p3, StatusCode: 503}},
	}

	session := newTestController(f).Run(context.Background(), testQuery, p1, Budget{MaxPages: 5})

	assert.Equal(t, StatusFailed, session.Status)
	require.Error(t, session.Err)
	assert.Equal(t, 2, session.PagesScraped())
	assert.Equal(t, 11, session.TotalCars(), "pages 1-2 deduplicated, not discarded")
	assert.Equal(t, 1, session.DuplicatesRemoved)
}

// TestRun_EmptyPageEndsWithNoMoreResults verifies a fetched page with
// zero records is a normal termination
func TestRun_EmptyPageEndsWithNoMoreResults(t *testing.T) {
	p1 := SearchURL(testBase, testQuery)
	p2 := NextOffsetURL(p1, 49)
	f := &fakeFetcher{pages: map[string]string{
		p1: testPage(ids(1000001, 6), p2),
		p2: `<html><body><p>No hay publicaciones que coincidan con tu búsqueda.</p></body></html>`,
	}}

	session := newTestController(f).Run(context.Background(), testQuery, p1, Budget{MaxPages: 10})

	assert.Equal(t, StatusNoMoreResults, session.Status)
	assert.Equal(t, 2, session.PagesScraped())
	assert.Equal(t, 6, session.TotalCars())
}

// TestRun_HighOverlapTerminates verifies a page repeating most of the
// previous ids ends the session instead of looping
func TestRun_HighOverlapTerminates(t *testing.T) {
	p1 := SearchURL(testBase, testQuery)
	p2 := NextOffsetURL(p1, 49)
	p3 := NextOffsetURL(p1, 97)
	// 5 of page 2's 6 ids already appeared on page 1: 83% overlap.
	page2IDs := append(ids(1000001, 5), 2000001)
	f := &fakeFetcher{pages: map[string]string{
		p1: testPage(ids(1000001, 6), p2),
		p2: testPage(page2IDs, p3),
	}}

	session := newTestController(f).Run(context.Background(), testQuery, p1, Budget{MaxPages: 10})

	assert.Equal(t, StatusCompleted, session.Status)
	assert.Equal(t, 2, session.PagesScraped())
	assert.Len(t, f.calls, 2, "the looping next URL is never followed")
	assert.Equal(t, 7, session.TotalCars())
	assert.Equal(t, 5, session.DuplicatesRemoved)
	assert.Contains(t, session.Pages[1].NextSignal, "overlap")
}

// TestRun_SparsePageIsTerminal verifies a page below the minimum
// results floor ends the session even with a next control present
func TestRun_SparsePageIsTerminal(t *testing.T) {
	p1 := SearchURL(testBase, testQuery)
	p2 := NextOffsetURL(p1, 49)
	p3 := NextOffsetURL(p1, 97)
	f := &fakeFetcher{pages: map[string]string{
		p1: testPage(ids(1000001, 6), p2),
		p2: testPage(ids(2000001, 1), p3), // stale next control on a sparse page
	}}

	session := newTestController(f).Run(context.Background(), testQuery, p1, Budget{MaxPages: 10})

	assert.Equal(t, StatusCompleted, session.Status)
	assert.Len(t, f.calls, 2)
	assert.Equal(t, 7, session.TotalCars())
	assert.Contains(t, session.Pages[1].NextSignal, "sparse_page")
}

// TestRun_NoNextSignalCompletes verifies a page without any next
// indicator ends the session normally
func TestRun_NoNextSignalCompletes(t *testing.T) {
	p1 := SearchURL(testBase, testQuery)
	f := &fakeFetcher{pages: map[string]string{
		p1: testPage(ids(1000001, 6), ""),
	}}

	session := newTestController(f).Run(context.Background(), testQuery, p1, Budget{MaxPages: 10})

	assert.Equal(t, StatusCompleted, session.Status)
	assert.Equal(t, 1, session.PagesScraped())
	assert.Equal(t, "stop:no_next_signal", session.Pages[0].NextSignal)
}

// TestRun_TimeBudgetStopsEarly verifies the 80% margin check fires
// between pages
func TestRun_TimeBudgetStopsEarly(t *testing.T) {
	p1 := SearchURL(testBase, testQuery)
	p2 := NextOffsetURL(p1, 49)
	slow := &slowFetcher{inner: &fakeFetcher{pages: map[string]string{
		p1: testPage(ids(1000001, 6), p2),
		p2: testPage(ids(2000001, 6), ""),
	}}, delay: 40 * time.Millisecond}

	session := newTestController(slow).Run(context.Background(), testQuery, p1, Budget{MaxPages: 10, MaxElapsed: 50 * time.Millisecond})

	assert.Equal(t, StatusBudgetExceeded, session.Status)
	assert.Equal(t, 1, session.PagesScraped(), "second page is not attempted")
	assert.Equal(t, 6, session.TotalCars(), "partial results preserved")
}

type slowFetcher struct {
	inner *fakeFetcher
	delay time.Duration
}

func (s *slowFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	time.Sleep(s.delay)
	return s.inner.Fetch(ctx, url)
}
