package scrape

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rburdet/cars/extract"
	"github.com/rburdet/cars/listing"
)

// ControllerOptions tune the pagination heuristics. Zero values fall
// back to the defaults below; the thresholds are site-observed
// behavior, not law, which is why they live in options.
type ControllerOptions struct {
	// PageSize is the number of results the site lays out per page; it
	// feeds the _Desde_ offset arithmetic.
	PageSize int
	// MinResults is the sparse-page floor: a page yielding fewer
	// records is treated as the last one even if a stale next control
	// still renders.
	MinResults int
	// OverlapFraction stops the session when this share of a page's ids
	// was already seen on earlier pages, which catches paginators that
	// loop back on themselves.
	OverlapFraction float64

	// DelayMin/DelayMax bound the randomized politeness delay applied
	// before every page transition.
	DelayMin time.Duration
	DelayMax time.Duration

	DedupPolicy     listing.DedupPolicy
	MergeDuplicates bool
}

const (
	defaultPageSize        = 48
	defaultMinResults      = 5
	defaultOverlapFraction = 0.8
	defaultDelayMin        = 1 * time.Second
	defaultDelayMax        = 3 * time.Second

	// budgetMargin stops the session once this share of the time budget
	// is spent, leaving room to finalize and persist.
	budgetMargin = 0.8
)

func (o ControllerOptions) withDefaults() ControllerOptions {
	if o.PageSize <= 0 {
		o.PageSize = defaultPageSize
	}
	if o.MinResults <= 0 {
		o.MinResults = defaultMinResults
	}
	if o.OverlapFraction <= 0 || o.OverlapFraction > 1 {
		o.OverlapFraction = defaultOverlapFraction
	}
	if o.DelayMin <= 0 {
		o.DelayMin = defaultDelayMin
	}
	if o.DelayMax < o.DelayMin {
		o.DelayMax = o.DelayMin
	}
	return o
}

// Controller walks a query's result pages one at a time. Pages are
// strictly sequential: each page's content decides the next URL, so
// there is nothing to parallelize inside a session.
type Controller struct {
	fetcher Fetcher
	parser  *extract.PageParser
	opts    ControllerOptions
	log     *zap.Logger
}

// NewController wires a controller. A nil logger is replaced with a
// no-op one.
func NewController(fetcher Fetcher, parser *extract.PageParser, opts ControllerOptions, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		fetcher: fetcher,
		parser:  parser,
		opts:    opts.withDefaults(),
		log:     log,
	}
}

// Run scrapes startURL and its successors until the page signals, a
// stop heuristic, the budget, or a fetch failure ends the session. The
// returned session always carries whatever was gathered before
// termination; a fetch failure never discards earlier pages.
func (c *Controller) Run(ctx context.Context, q Query, startURL string, budget Budget) *Session {
	session := &Session{
		ID:        uuid.New(),
		Query:     q,
		Budget:    budget,
		StartedAt: time.Now(),
	}
	dedup := listing.DedupOptions{Policy: c.opts.DedupPolicy, Merge: c.opts.MergeDuplicates}

	log := c.log.With(
		zap.String("session", session.ID.String()),
		zap.String("brand", q.Brand),
		zap.String("model", q.Model))
	log.Info("session starting",
		zap.String("url", startURL),
		zap.Int("max_pages", budget.MaxPages),
		zap.Duration("max_elapsed", budget.MaxElapsed))

	seen := make(map[string]struct{})
	pageURL := startURL
	offset := 1

	for index := 1; ; index++ {
		if budget.MaxPages > 0 && index > budget.MaxPages {
			log.Info("page budget reached", zap.Int("pages", session.PagesScraped()))
			session.finalize(StatusBudgetExceeded, nil, dedup)
			return session
		}
		if over, elapsed := c.timeBudgetSpent(session, budget); over {
			log.Info("time budget nearly spent", zap.Duration("elapsed", elapsed))
			session.finalize(StatusBudgetExceeded, nil, dedup)
			return session
		}

		resp, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			log.Warn("fetch failed, keeping partial results",
				zap.Int("page", index), zap.Error(err))
			session.finalize(StatusFailed, fmt.Errorf("page %d: %w", index, err), dedup)
			return session
		}

		outcome, err := c.parser.Parse(resp.Body, resp.FinalURL, extract.Position{
			Index:    index,
			Offset:   offset,
			PageSize: c.opts.PageSize,
		})
		if err != nil {
			session.finalize(StatusFailed, fmt.Errorf("page %d: %w", index, err), dedup)
			return session
		}

		page := PageResult{
			Index:          index,
			URL:            pageURL,
			FragmentsFound: outcome.FragmentsFound,
			CarsExtracted:  len(outcome.Records),
			Rejected:       outcome.Rejected,
		}
		session.Records = append(session.Records, outcome.Records...)

		status, reason := c.decide(outcome, seen, index)
		if status != "" {
			page.NextSignal = "stop:" + reason
			session.Pages = append(session.Pages, page)
			log.Info("session ending", zap.Int("page", index), zap.String("reason", reason))
			session.finalize(status, nil, dedup)
			return session
		}

		for id := range listing.IDSet(outcome.Records) {
			seen[id] = struct{}{}
		}

		offset += c.opts.PageSize
		next := outcome.Signals.NextURL
		if next != "" && next != pageURL {
			page.NextSignal = "next:" + next
		} else {
			next = NextOffsetURL(pageURL, offset)
			page.NextSignal = fmt.Sprintf("offset:%d", offset)
		}
		session.Pages = append(session.Pages, page)
		pageURL = next

		if err := c.politenessDelay(ctx); err != nil {
			session.finalize(StatusFailed, err, dedup)
			return session
		}
	}
}

// decide applies the termination rules to one parsed page. It returns
// the terminal status and a short reason, or "" to continue.
func (c *Controller) decide(outcome *extract.PageOutcome, seen map[string]struct{}, index int) (Status, string) {
	if len(outcome.Records) == 0 {
		return StatusNoMoreResults, "no_records"
	}

	// The overlap check runs before ids are merged into seen, so it
	// compares this page against strictly earlier pages.
	if index > 1 {
		overlap := listing.OverlapFraction(seen, listing.IDSet(outcome.Records))
		if overlap > c.opts.OverlapFraction {
			return StatusCompleted, fmt.Sprintf("overlap:%.2f", overlap)
		}
	}

	if outcome.Signals.EndMarker {
		return StatusCompleted, "end_marker"
	}
	if len(outcome.Records) < c.opts.MinResults {
		return StatusCompleted, "sparse_page"
	}
	if !outcome.Signals.Continue() {
		return StatusCompleted, "no_next_signal"
	}
	return "", ""
}

// timeBudgetSpent reports whether the session has consumed the guarded
// share of its time budget.
func (c *Controller) timeBudgetSpent(session *Session, budget Budget) (bool, time.Duration) {
	if budget.MaxElapsed <= 0 {
		return false, 0
	}
	elapsed := time.Since(session.StartedAt)
	return float64(elapsed) >= float64(budget.MaxElapsed)*budgetMargin, elapsed
}

// politenessDelay waits a random interval in [DelayMin, DelayMax]. The
// wait is a real scheduling point: it must complete (or the context
// must die) before the next fetch is allowed.
func (c *Controller) politenessDelay(ctx context.Context) error {
	delay := c.opts.DelayMin
	if span := c.opts.DelayMax - c.opts.DelayMin; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
