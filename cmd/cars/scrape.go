package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rburdet/cars/config"
	"github.com/rburdet/cars/scrape"
)

// runScrape handles `cars scrape <brand> <model>`.
func runScrape(cfg *config.Config, logger *zap.Logger, args []string) {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	pages := fs.Int("pages", cfg.Scrape.MaxPages, "page ceiling (0 = until the site runs out)")
	maxElapsed := fs.Duration("max-elapsed", time.Duration(cfg.Scrape.MaxElapsedMs)*time.Millisecond, "time budget (0 = none)")
	storeResult := fs.Bool("store", true, "persist the result set")
	enrich := fs.Bool("enrich", cfg.Scrape.Enrich, "fetch each record's detail page to fill missing fields")
	asJSON := fs.Bool("json", false, "print the outcome as JSON")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Error: usage: cars scrape [flags] <brand> <model>")
		os.Exit(1)
	}
	q := scrape.Query{Brand: fs.Arg(0), Model: fs.Arg(1)}

	st, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	orch := buildOrchestrator(cfg, st, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := scrape.QueryOptions{
		MaxPages:   *pages,
		MaxElapsed: *maxElapsed,
		Store:      *storeResult,
		Enrich:     *enrich,
	}
	if *pages <= 0 {
		opts.MaxPages = scrape.InfinitePages
	}
	if *maxElapsed <= 0 {
		opts.MaxElapsed = scrape.NoTimeLimit
	}

	session, outcome := orch.ScrapeQuery(ctx, q, opts)

	if *asJSON {
		printJSON(outcome)
	} else {
		printSession(session, outcome)
	}
	if !outcome.Success {
		os.Exit(1)
	}
}

// runBatch handles `cars batch <file.yaml>`.
func runBatch(cfg *config.Config, logger *zap.Logger, args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	pages := fs.Int("pages", cfg.Scrape.MaxPages, "page ceiling per query (0 = until the site runs out)")
	delayBetween := fs.Duration("delay-between", time.Duration(cfg.Scrape.InterQueryDelayMs)*time.Millisecond, "wait between queries")
	storeResult := fs.Bool("store", true, "persist each result set")
	asJSON := fs.Bool("json", false, "print outcomes as JSON")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: usage: cars batch [flags] <file.yaml>")
		os.Exit(1)
	}

	batch, err := config.LoadBatchFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	queries := make([]scrape.Query, 0, len(batch.Queries))
	for _, bq := range batch.Queries {
		queries = append(queries, scrape.Query{Brand: bq.Brand, Model: bq.Model})
	}

	st, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	cfg.Scrape.InterQueryDelayMs = int(delayBetween.Milliseconds())
	orch := buildOrchestrator(cfg, st, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := scrape.QueryOptions{
		MaxPages: *pages,
		Store:    *storeResult,
	}
	if *pages <= 0 {
		opts.MaxPages = scrape.InfinitePages
	}

	outcomes := orch.ScrapeBatch(ctx, queries, opts)

	if *asJSON {
		printJSON(outcomes)
	} else {
		printOutcomes(outcomes)
	}
	for _, outcome := range outcomes {
		if !outcome.Success {
			os.Exit(1)
		}
	}
}
