// Command cars scrapes Argentine vehicle listings and serves the
// aggregated results. It is a thin shell: flags in, components wired,
// outcome printed.
package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/rburdet/cars/config"
	"github.com/rburdet/cars/extract"
	"github.com/rburdet/cars/logging"
	"github.com/rburdet/cars/scrape"
	"github.com/rburdet/cars/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("CARS_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	switch os.Args[1] {
	case "scrape":
		runScrape(cfg, logger, os.Args[2:])
	case "batch":
		runBatch(cfg, logger, os.Args[2:])
	case "serve":
		runServe(cfg, logger, os.Args[2:])
	case "results":
		runResults(cfg, os.Args[2:])
	case "show":
		runShow(cfg, os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("cars - vehicle listing scraper and query service")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  cars <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  scrape <brand> <model>   Scrape one query")
	fmt.Println("  batch <file.yaml>        Scrape every query listed in a batch file")
	fmt.Println("  serve                    Serve the query API")
	fmt.Println("  results                  List stored result keys")
	fmt.Println("  show <brand> <model>     Print a stored result set")
	fmt.Println("  help                     Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  CARS_CONFIG       Path to a YAML config file")
	fmt.Println("  CARS_STORAGE_TYPE Storage backend: memory, sqlite, postgres")
	fmt.Println("  CARS_STORAGE_DSN  SQLite path or Postgres connection string")
}

// openStore builds the configured storage backend.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Type {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		return store.NewSQLite(cfg.Storage.DSN)
	case "postgres":
		return store.NewPostgres(cfg.Storage.DSN)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

// buildOrchestrator wires the full scrape pipeline from configuration.
func buildOrchestrator(cfg *config.Config, st store.Store, logger *zap.Logger) *scrape.Orchestrator {
	extractor := extract.NewExtractor(logger)
	parser := extract.NewPageParser(extractor, logger)

	fetcher := scrape.NewHTTPFetcher(scrape.FetcherOptions{
		Timeout:        time.Duration(cfg.Scrape.FetchTimeoutMs) * time.Millisecond,
		UserAgent:      cfg.Scrape.UserAgent,
		AcceptLanguage: cfg.Scrape.AcceptLanguage,
		Referer:        cfg.Scrape.Referer,
	}, logger)

	controller := scrape.NewController(fetcher, parser, scrape.ControllerOptions{
		PageSize:        cfg.Scrape.PageSize,
		MinResults:      cfg.Scrape.MinResults,
		OverlapFraction: cfg.Scrape.OverlapFraction,
		DelayMin:        time.Duration(cfg.Scrape.DelayMinMs) * time.Millisecond,
		DelayMax:        time.Duration(cfg.Scrape.DelayMaxMs) * time.Millisecond,
	}, logger)

	return scrape.NewOrchestrator(controller, extractor, st, scrape.OrchestratorOptions{
		BaseURL:         cfg.BaseURL,
		InterQueryDelay: time.Duration(cfg.Scrape.InterQueryDelayMs) * time.Millisecond,
		Defaults: scrape.QueryOptions{
			MaxPages:   cfg.Scrape.MaxPages,
			MaxElapsed: time.Duration(cfg.Scrape.MaxElapsedMs) * time.Millisecond,
			MaxEnrich:  cfg.Scrape.MaxEnrich,
		},
	}, logger)
}
