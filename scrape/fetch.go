// Package scrape drives complete scrape sessions: it fetches result
// pages through a pluggable Fetcher, feeds them to the page parser,
// decides when pagination has truly ended, and sequences batches of
// queries with politeness delays between requests.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Response is the outcome of one successful page fetch. FinalURL is the
// URL after redirects, which the controller uses as the base for
// resolving relative pagination links.
type Response struct {
	StatusCode int
	Body       string
	FinalURL   string
}

// Fetcher retrieves one page. Implementations must honor the context
// and return a non-nil error for anything other than a 2xx response
// with a readable body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// FetchError reports a non-2xx response from the target site.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: HTTP %d", e.URL, e.StatusCode)
}

// FetcherOptions configures the HTTP fetcher. The zero value is usable;
// missing fields fall back to the defaults below.
type FetcherOptions struct {
	// Timeout bounds a single request, independent of any session
	// budget. A timed-out fetch is reported like any other fetch error.
	Timeout time.Duration
	// MinInterval is the floor between successive requests, enforced
	// with a token bucket so even direct callers cannot hammer the site.
	MinInterval time.Duration

	// Browser-like headers. The target serves a degraded (or empty)
	// page to clients that do not look like a browser.
	UserAgent      string
	AcceptLanguage string
	Referer        string
}

const (
	defaultFetchTimeout = 30 * time.Second
	defaultMinInterval  = 500 * time.Millisecond

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	defaultAcceptLanguage = "es-AR,es;q=0.9,en;q=0.8"
)

// HTTPFetcher is the plain net/http Fetcher implementation.
type HTTPFetcher struct {
	client  *http.Client
	opts    FetcherOptions
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewHTTPFetcher builds a fetcher with browser-like headers and a
// global request-rate floor. A nil logger is replaced with a no-op one.
func NewHTTPFetcher(opts FetcherOptions, log *zap.Logger) *HTTPFetcher {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFetchTimeout
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = defaultMinInterval
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = defaultAcceptLanguage
	}

	return &HTTPFetcher{
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(opts.MinInterval), 1),
		log:     log,
	}
}

// Fetch retrieves url, waiting on the rate limiter first. Non-2xx
// statuses are returned as a *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for request slot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept-Language", f.opts.AcceptLanguage)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if f.opts.Referer != "" {
		req.Header.Set("Referer", f.opts.Referer)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", url, err)
	}

	f.log.Debug("page fetched",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)))

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		FinalURL:   resp.Request.URL.String(),
	}, nil
}
