package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rburdet/cars/listing"
	"github.com/rburdet/cars/scrape"
	"github.com/rburdet/cars/store"
)

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to marshal JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

// printSession prints a human-readable summary of one scrape run.
func printSession(session *scrape.Session, outcome scrape.Outcome) {
	fmt.Printf("%s %s: %d cars across %d pages (%s, %s)\n",
		session.Query.Brand, session.Query.Model,
		session.TotalCars(), session.PagesScraped(),
		session.Status, session.Elapsed.Round(10*time.Millisecond))
	if session.DuplicatesRemoved > 0 {
		fmt.Printf("  %d duplicates removed\n", session.DuplicatesRemoved)
	}
	if outcome.Error != "" {
		fmt.Printf("  error: %s\n", outcome.Error)
	}
	if outcome.StorageError != "" {
		fmt.Printf("  storage error: %s\n", outcome.StorageError)
	}

	for _, page := range session.Pages {
		fmt.Printf("  page %d: %d fragments, %d cars, %d rejected (%s)\n",
			page.Index, page.FragmentsFound, page.CarsExtracted, page.Rejected, page.NextSignal)
	}
}

// printOutcomes prints a batch report, one line per query.
func printOutcomes(outcomes []scrape.Outcome) {
	fmt.Printf("%-15s %-15s %-8s %-6s %-6s %s\n", "BRAND", "MODEL", "STATUS", "CARS", "PAGES", "ERROR")
	for _, o := range outcomes {
		errMsg := o.Error
		if errMsg == "" {
			errMsg = o.StorageError
		}
		fmt.Printf("%-15s %-15s %-8s %-6d %-6d %s\n",
			truncate(o.Brand, 15), truncate(o.Model, 15),
			shortStatus(o.Status), o.TotalCars, o.PagesScraped, errMsg)
	}
}

// printResult prints a stored result set.
func printResult(result *store.QueryResult, limit int) {
	fmt.Printf("%s %s: %d cars, %d pages, updated %s (%s scrape)\n\n",
		result.Brand, result.Model, result.Count, result.PagesScraped,
		result.LastUpdated.Format("2006-01-02 15:04"), result.ScrapingMethod)

	cars := result.Cars
	if limit > 0 && limit < len(cars) {
		cars = cars[:limit]
	}
	for _, car := range cars {
		fmt.Printf("%s\n", truncate(car.Title, 78))
		fmt.Printf("  %s | %s%s%s\n", formatPrice(car.Price), formatYear(car.Year),
			formatKilometers(car.Kilometers), formatLocation(car.Location))
		if len(car.Features) > 0 {
			fmt.Printf("  %s\n", strings.Join(car.Features, ", "))
		}
		fmt.Printf("  %s\n\n", car.Link)
	}
	if limit > 0 && result.Count > limit {
		fmt.Printf("... and %d more\n", result.Count-limit)
	}
}

func formatPrice(p listing.Price) string {
	if !p.IsSet() {
		return "price unknown"
	}
	return fmt.Sprintf("%s %.0f", p.Currency, p.Amount)
}

func formatYear(y *int) string {
	if y == nil {
		return "year ?"
	}
	return fmt.Sprintf("%d", *y)
}

func formatKilometers(km *int) string {
	if km == nil {
		return ""
	}
	return fmt.Sprintf(" | %d km", *km)
}

func formatLocation(loc *string) string {
	if loc == nil {
		return ""
	}
	return " | " + *loc
}

func shortStatus(s scrape.Status) string {
	switch s {
	case scrape.StatusCompleted:
		return "ok"
	case scrape.StatusBudgetExceeded:
		return "budget"
	case scrape.StatusNoMoreResults:
		return "empty"
	default:
		return "failed"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
