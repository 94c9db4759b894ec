package scrape

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rburdet/cars/listing"
)

// Status is the terminal state of a scrape session.
type Status string

const (
	// StatusCompleted means pagination ended normally: the page signals
	// said there was nothing further, or a stop heuristic fired.
	StatusCompleted Status = "completed"
	// StatusBudgetExceeded means the page ceiling or the time budget
	// stopped the session before the site ran out of pages.
	StatusBudgetExceeded Status = "budget_exceeded"
	// StatusNoMoreResults means a page fetched fine but yielded zero
	// records.
	StatusNoMoreResults Status = "no_more_results"
	// StatusFailed means a fetch failed mid-session. Records gathered
	// before the failure are preserved on the session.
	StatusFailed Status = "failed"
)

// Query identifies one brand/model search.
type Query struct {
	Brand string `json:"brand" yaml:"brand"`
	Model string `json:"model" yaml:"model"`
}

func (q Query) String() string {
	return q.Brand + " " + q.Model
}

// Budget bounds one session. MaxPages == 0 means no page ceiling (run
// until the site says stop); MaxElapsed == 0 means no time ceiling.
type Budget struct {
	MaxPages   int
	MaxElapsed time.Duration
}

// Method names the pagination mode for reporting: a page-capped session
// is "fixed", an uncapped one "infinite".
func (b Budget) Method() string {
	if b.MaxPages > 0 {
		return "fixed"
	}
	return "infinite"
}

// PageResult records what one page contributed to the session.
type PageResult struct {
	Index          int    `json:"index"`
	URL            string `json:"url"`
	FragmentsFound int    `json:"fragments_found"`
	CarsExtracted  int    `json:"cars_extracted"`
	Rejected       int    `json:"rejected"`
	// NextSignal is the raw next-page decision for this page, for
	// diagnostics: "next:<url>", "offset:<n>", or "stop:<reason>".
	NextSignal string `json:"next_signal"`
}

// Session is one query's complete execution state. The controller
// builds it page by page; after Finalize it is not mutated again.
type Session struct {
	ID      uuid.UUID
	Query   Query
	Budget  Budget
	Pages   []PageResult
	Records []*listing.Record

	StartedAt time.Time
	Elapsed   time.Duration
	Status    Status
	// Err holds the terminating error for StatusFailed sessions.
	Err error

	DuplicatesRemoved int
}

// PagesScraped reports how many pages were actually fetched and parsed.
func (s *Session) PagesScraped() int {
	return len(s.Pages)
}

// TotalCars reports the deduplicated record count.
func (s *Session) TotalCars() int {
	return len(s.Records)
}

// finalize deduplicates the accumulated records, stamps the elapsed
// time, and seals the session with status.
func (s *Session) finalize(status Status, err error, opts listing.DedupOptions) {
	unique, removed := listing.Dedup(s.Records, opts)
	s.Records = unique
	s.DuplicatesRemoved = removed
	s.Status = status
	s.Err = err
	s.Elapsed = time.Since(s.StartedAt)
}

// desdeSegment is the marketplace's offset marker in result URLs:
// /toyota/corolla_Desde_49 shows results starting at the 49th.
var desdeSegment = regexp.MustCompile(`_Desde_\d+`)

// SearchURL builds the first results page for a query under base,
// e.g. https://autos.mercadolibre.com.ar/toyota/corolla.
func SearchURL(base string, q Query) string {
	return strings.TrimRight(base, "/") + "/" + slug(q.Brand) + "/" + slug(q.Model)
}

// NextOffsetURL rewrites current to point at the page starting at
// offset, replacing an existing _Desde_ segment or appending one.
func NextOffsetURL(current string, offset int) string {
	marker := fmt.Sprintf("_Desde_%d", offset)
	if desdeSegment.MatchString(current) {
		return desdeSegment.ReplaceAllString(current, marker)
	}
	u, err := url.Parse(current)
	if err != nil {
		return strings.TrimRight(current, "/") + marker
	}
	u.Path = strings.TrimRight(u.Path, "/") + marker
	return u.String()
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}
