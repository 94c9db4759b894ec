package scrape

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rburdet/cars/extract"
	"github.com/rburdet/cars/listing"
	"github.com/rburdet/cars/store"
)

// Sentinels for QueryOptions limits. A zero-valued limit inherits the
// orchestrator's default, so "no limit at all" needs its own value.
const (
	// InfinitePages lifts the page ceiling: pagination runs until the
	// site itself signals the end of results.
	InfinitePages = -1
	// NoTimeLimit lifts the wall-clock budget.
	NoTimeLimit time.Duration = -1
)

// QueryOptions tune one query's run. Zero-valued limits inherit the
// orchestrator's defaults; InfinitePages and NoTimeLimit request an
// unbounded run explicitly. The boolean switches are always taken as
// given.
type QueryOptions struct {
	MaxPages   int
	MaxElapsed time.Duration
	// Store persists the finalized result set under the query's key.
	Store bool
	// Enrich runs the detail-page pass over accepted records, filling
	// description, publish date, seller and the specs table.
	Enrich bool
	// MaxEnrich caps how many records the enrichment pass visits; 0
	// inherits the default, negative visits every record.
	MaxEnrich int
}

// Outcome is one query's entry in a batch report. A storage failure is
// carried separately from the scrape result: gathered records are never
// discarded because the write failed.
type Outcome struct {
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	Success      bool   `json:"success"`
	TotalCars    int    `json:"total_cars"`
	PagesScraped int    `json:"pages_scraped"`
	Status       Status `json:"status"`
	Error        string `json:"error,omitempty"`
	StorageError string `json:"storage_error,omitempty"`
}

// OrchestratorOptions configure the batch runner.
type OrchestratorOptions struct {
	// BaseURL is the search-results root the start URLs are built from.
	BaseURL string
	// InterQueryDelay is the wait between queries in a batch, normally
	// larger than the per-page delay to decorrelate sessions.
	InterQueryDelay time.Duration
	// Defaults fill the zero-valued limit fields of each query's
	// options. Its boolean fields are ignored.
	Defaults QueryOptions
}

const (
	defaultBaseURL         = "https://autos.mercadolibre.com.ar"
	defaultInterQueryDelay = 10 * time.Second
)

// Orchestrator runs queries end to end: pagination, dedup, optional
// enrichment, persistence, and batch sequencing. The store may be nil
// when persistence is disabled.
type Orchestrator struct {
	controller *Controller
	extractor  *extract.Extractor
	st         store.Store
	opts       OrchestratorOptions
	log        *zap.Logger
}

// NewOrchestrator wires an orchestrator. A nil logger is replaced with
// a no-op one.
func NewOrchestrator(controller *Controller, extractor *extract.Extractor, st store.Store, opts OrchestratorOptions, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.InterQueryDelay <= 0 {
		opts.InterQueryDelay = defaultInterQueryDelay
	}
	return &Orchestrator{
		controller: controller,
		extractor:  extractor,
		st:         st,
		opts:       opts,
		log:        log,
	}
}

// ScrapeQuery runs one query to completion and returns the finalized
// session plus its outcome. The session always carries whatever was
// gathered, including on failure.
func (o *Orchestrator) ScrapeQuery(ctx context.Context, q Query, opts QueryOptions) (*Session, Outcome) {
	opts = o.mergedOptions(opts)

	session := o.controller.Run(ctx, q, SearchURL(o.opts.BaseURL, q), Budget{
		MaxPages:   opts.MaxPages,
		MaxElapsed: opts.MaxElapsed,
	})

	if opts.Enrich && session.Status != StatusFailed {
		o.enrich(ctx, session, opts.MaxEnrich)
	}

	outcome := Outcome{
		Brand:        q.Brand,
		Model:        q.Model,
		Success:      session.Status != StatusFailed,
		TotalCars:    session.TotalCars(),
		PagesScraped: session.PagesScraped(),
		Status:       session.Status,
	}
	if session.Err != nil {
		outcome.Error = session.Err.Error()
	}

	if opts.Store && o.st != nil && session.TotalCars() > 0 {
		if err := o.persist(ctx, session); err != nil {
			o.log.Error("storing result failed, records kept in session",
				zap.String("brand", q.Brand), zap.String("model", q.Model), zap.Error(err))
			outcome.StorageError = err.Error()
		}
	}

	o.log.Info("query finished",
		zap.String("brand", q.Brand),
		zap.String("model", q.Model),
		zap.String("status", string(session.Status)),
		zap.Int("cars", session.TotalCars()),
		zap.Int("pages", session.PagesScraped()),
		zap.Int("duplicates_removed", session.DuplicatesRemoved),
		zap.Duration("elapsed", session.Elapsed))
	return session, outcome
}

// ScrapeBatch runs each query in sequence, waiting the inter-query
// delay between them. One query's failure never aborts the batch; every
// query gets an outcome in the returned report.
func (o *Orchestrator) ScrapeBatch(ctx context.Context, queries []Query, opts QueryOptions) []Outcome {
	outcomes := make([]Outcome, 0, len(queries))
	for i, q := range queries {
		if i > 0 {
			if err := o.interQueryDelay(ctx); err != nil {
				o.log.Warn("batch cancelled", zap.Int("completed", i), zap.Error(err))
				for _, rest := range queries[i:] {
					outcomes = append(outcomes, Outcome{
						Brand:  rest.Brand,
						Model:  rest.Model,
						Status: StatusFailed,
						Error:  err.Error(),
					})
				}
				return outcomes
			}
		}
		_, outcome := o.ScrapeQuery(ctx, q, opts)
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// mergedOptions resolves zero-valued limits against the configured
// defaults. The negative sentinels survive the merge and collapse to
// Budget's "unbounded" zero afterwards, so an explicit request for no
// limit is never mistaken for an unset field.
func (o *Orchestrator) mergedOptions(opts QueryOptions) QueryOptions {
	d := o.opts.Defaults
	if opts.MaxPages == 0 {
		opts.MaxPages = d.MaxPages
	}
	if opts.MaxElapsed == 0 {
		opts.MaxElapsed = d.MaxElapsed
	}
	if opts.MaxEnrich == 0 {
		opts.MaxEnrich = d.MaxEnrich
	}
	if opts.MaxPages < 0 {
		opts.MaxPages = 0
	}
	if opts.MaxElapsed < 0 {
		opts.MaxElapsed = 0
	}
	return opts
}

// enrich visits each record's own detail page and fills still-empty
// fields. Failures degrade to "no enrichment" for that record; the
// politeness delay applies between detail fetches like between pages.
func (o *Orchestrator) enrich(ctx context.Context, session *Session, max int) {
	enriched := 0
	for _, rec := range session.Records {
		if max > 0 && enriched >= max {
			return
		}
		if rec.Link == "" {
			continue
		}

		resp, err := o.controller.fetcher.Fetch(ctx, rec.Link)
		if err != nil {
			o.log.Debug("detail fetch failed", zap.String("id", rec.ID), zap.Error(err))
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if err := o.extractor.Enrich(rec, resp.Body); err != nil {
			o.log.Debug("enrichment failed", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		enriched++

		if err := o.controller.politenessDelay(ctx); err != nil {
			return
		}
	}
}

// persist writes the session's result set through the merge-on-store
// path, so a plain re-scrape keeps previously enriched records.
func (o *Orchestrator) persist(ctx context.Context, session *Session) error {
	cars := make([]listing.Record, 0, len(session.Records))
	for _, rec := range session.Records {
		cars = append(cars, *rec)
	}

	result := &store.QueryResult{
		Brand:           session.Query.Brand,
		Model:           session.Query.Model,
		Cars:            cars,
		Count:           len(cars),
		LastUpdated:     time.Now().UTC(),
		ScrapingMethod:  session.Budget.Method(),
		PagesScraped:    session.PagesScraped(),
		ExecutionTimeMs: session.Elapsed.Milliseconds(),
	}
	return store.PutMerged(ctx, o.st, store.Key(session.Query.Brand, session.Query.Model), result)
}

func (o *Orchestrator) interQueryDelay(ctx context.Context) error {
	timer := time.NewTimer(o.opts.InterQueryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
