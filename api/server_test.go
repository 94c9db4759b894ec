package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rburdet/cars/extract"
	"github.com/rburdet/cars/listing"
	"github.com/rburdet/cars/scrape"
	"github.com/rburdet/cars/store"
)

func intp(n int) *int { return &n }

func seedStore(t *testing.T) store.Store {
	t.Helper()
	st := store.NewMemory()
	t.Cleanup(func() { st.Close() })

	cars := []listing.Record{
		{ID: "MLA1", Title: "Corolla XEI 2020", Year: intp(2020),
			Price: listing.Price{Currency: listing.CurrencyUSD, Amount: 18500},
			Link:  "https://auto.mercadolibre.com.ar/MLA-1",
			Seller: listing.Seller{Type: listing.SellerDealer}},
		{ID: "MLA2", Title: "Corolla LE 2016", Year: intp(2016),
			Price: listing.Price{Currency: listing.CurrencyARS, Amount: 9000000},
			Link:  "https://auto.mercadolibre.com.ar/MLA-2",
			Seller: listing.Seller{Type: listing.SellerPrivateOwner}},
		{ID: "MLA3", Title: "Corolla SEG 2023", Year: intp(2023),
			Price: listing.Price{Currency: listing.CurrencyUSD, Amount: 27000},
			Link:  "https://auto.mercadolibre.com.ar/MLA-3",
			Seller: listing.Seller{Type: listing.SellerDealer}},
	}
	require.NoError(t, st.Put(context.Background(), store.Key("toyota", "corolla"), &store.QueryResult{
		Brand: "toyota", Model: "corolla", Cars: cars, Count: len(cars),
		LastUpdated: time.Now().UTC(), ScrapingMethod: "fixed", PagesScraped: 2,
	}))
	return st
}

func doGet(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// TestHealth verifies the liveness endpoint
func TestHealth(t *testing.T) {
	handler := NewServer(seedStore(t), nil, nil).Handler()

	rr := doGet(t, handler, "/api/v1/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok"`)
}

// TestListResults verifies stored keys are enumerated
func TestListResults(t *testing.T) {
	handler := NewServer(seedStore(t), nil, nil).Handler()

	rr := doGet(t, handler, "/api/v1/results")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp ListResultsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, []string{"toyota:corolla"}, resp.Keys)
}

// TestGetCars verifies the stored set comes back with metadata
func TestGetCars(t *testing.T) {
	handler := NewServer(seedStore(t), nil, nil).Handler()

	rr := doGet(t, handler, "/api/v1/cars/toyota/corolla")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp CarsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Len(t, resp.Cars, 3)
	assert.Equal(t, 2, resp.PagesScraped)
}

// TestGetCars_NotFound verifies the error envelope on a missing key
func TestGetCars_NotFound(t *testing.T) {
	handler := NewServer(seedStore(t), nil, nil).Handler()

	rr := doGet(t, handler, "/api/v1/cars/ford/focus")
	require.Equal(t, http.StatusNotFound, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp.Error.Code)
}

// TestGetCars_Filters verifies the query-param filters
func TestGetCars_Filters(t *testing.T) {
	handler := NewServer(seedStore(t), nil, nil).Handler()

	t.Run("year window", func(t *testing.T) {
		rr := doGet(t, handler, "/api/v1/cars/toyota/corolla?year_min=2018&year_max=2022")
		require.Equal(t, http.StatusOK, rr.Code)
		var resp CarsResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp.Cars, 1)
		assert.Equal(t, "MLA1", resp.Cars[0].ID)
	})

	t.Run("currency and price cap", func(t *testing.T) {
		rr := doGet(t, handler, "/api/v1/cars/toyota/corolla?currency=USD&price_max=20000")
		require.Equal(t, http.StatusOK, rr.Code)
		var resp CarsResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp.Cars, 1)
		assert.Equal(t, "MLA1", resp.Cars[0].ID)
	})

	t.Run("seller type", func(t *testing.T) {
		rr := doGet(t, handler, "/api/v1/cars/toyota/corolla?seller=private_owner")
		require.Equal(t, http.StatusOK, rr.Code)
		var resp CarsResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp.Cars, 1)
		assert.Equal(t, "MLA2", resp.Cars[0].ID)
	})

	t.Run("invalid parameter rejected", func(t *testing.T) {
		rr := doGet(t, handler, "/api/v1/cars/toyota/corolla?year_min=abc")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

// TestGetCars_SortAndPagination verifies ordering plus limit/offset
func TestGetCars_SortAndPagination(t *testing.T) {
	handler := NewServer(seedStore(t), nil, nil).Handler()

	rr := doGet(t, handler, "/api/v1/cars/toyota/corolla?sort=price_asc")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp CarsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Cars, 3)
	assert.Equal(t, "MLA1", resp.Cars[0].ID, "USD 18500 sorts below ARS 9M numerically")

	rr = doGet(t, handler, "/api/v1/cars/toyota/corolla?sort=year_desc&limit=1&offset=1")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total, "total counts the filtered set, not the page")
	require.Len(t, resp.Cars, 1)
	assert.Equal(t, "MLA1", resp.Cars[0].ID, "2023 is skipped by the offset")
}

// TestScrape_DisabledWithoutOrchestrator verifies the scrape endpoint
// degrades cleanly on a read-only server
func TestScrape_DisabledWithoutOrchestrator(t *testing.T) {
	handler := NewServer(seedStore(t), nil, nil).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scrape",
		strings.NewReader(`{"brand":"toyota","model":"corolla"}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

// TestCORSPreflight verifies OPTIONS requests short-circuit
func TestCORSPreflight(t *testing.T) {
	handler := NewServer(seedStore(t), nil, nil).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/results", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

// stubFetcher serves canned pages by URL for end-to-end scrape tests.
type stubFetcher struct{ pages map[string]string }

func (f *stubFetcher) Fetch(_ context.Context, url string) (*scrape.Response, error) {
	body, ok := f.pages[url]
	if !ok {
		return nil, &scrape.FetchError{URL: url, StatusCode: 404}
	}
	return &scrape.Response{StatusCode: 200, Body: body, FinalURL: url}, nil
}

// resultsPage renders count listing cards plus an optional next link.
func resultsPage(start, count int, next string) string {
	var b strings.Builder
	b.WriteString(`<html><body><ol class="ui-search-layout">`)
	for i := 0; i < count; i++ {
		n := start + i
		fmt.Fprintf(&b, `<li class="ui-search-layout__item">
		  <h2 class="ui-search-item__title">Toyota Corolla XEI unidad %d</h2>
		  <a href="https://auto.mercadolibre.com.ar/MLA-%d-corolla">ver</a>
		</li>`, n, n)
	}
	b.WriteString(`</ol>`)
	if next != "" {
		fmt.Fprintf(&b, `<nav><a class="andes-pagination__button--next" href="%s">Siguiente</a></nav>`, next)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

// scrapingHandler wires a server whose orchestrator serves three canned
// result pages and defaults to a two-page ceiling.
func scrapingHandler(t *testing.T) http.Handler {
	t.Helper()
	base := "https://autos.mercadolibre.com.ar"
	p1 := scrape.SearchURL(base, scrape.Query{Brand: "toyota", Model: "corolla"})
	p2 := scrape.NextOffsetURL(p1, 49)
	p3 := scrape.NextOffsetURL(p2, 97)
	fetcher := &stubFetcher{pages: map[string]string{
		p1: resultsPage(1000001, 6, p2),
		p2: resultsPage(2000001, 6, p3),
		p3: resultsPage(3000001, 6, ""),
	}}

	extractor := extract.NewExtractor(nil)
	parser := extract.NewPageParser(extractor, nil)
	controller := scrape.NewController(fetcher, parser, scrape.ControllerOptions{
		PageSize:   48,
		MinResults: 2,
		DelayMin:   time.Millisecond,
		DelayMax:   2 * time.Millisecond,
	}, nil)
	orch := scrape.NewOrchestrator(controller, extractor, nil, scrape.OrchestratorOptions{
		BaseURL:         base,
		InterQueryDelay: time.Millisecond,
		Defaults:        scrape.QueryOptions{MaxPages: 2},
	}, nil)

	st := store.NewMemory()
	t.Cleanup(func() { st.Close() })
	return NewServer(st, orch, nil).Handler()
}

func postScrape(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scrape", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// TestScrape_ExplicitZeroMaxPagesLiftsCeiling verifies max_pages: 0
// requests unbounded pagination while an absent field inherits the
// server's default ceiling
func TestScrape_ExplicitZeroMaxPagesLiftsCeiling(t *testing.T) {
	handler := scrapingHandler(t)

	rr := postScrape(t, handler, `{"brand":"toyota","model":"corolla","max_pages":0}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp ScrapeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, scrape.StatusCompleted, resp.Status)
	assert.Equal(t, 3, resp.PagesScraped, "paginates past the default ceiling of 2")
	assert.Equal(t, 18, resp.TotalCars)

	rr = postScrape(t, handler, `{"brand":"toyota","model":"corolla"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, scrape.StatusBudgetExceeded, resp.Status)
	assert.Equal(t, 2, resp.PagesScraped)
}
