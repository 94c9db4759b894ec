// Package store persists one aggregated result set per brand/model
// query behind a small key-value interface. Backends share the same
// JSON payload shape, so results written by one backend can be imported
// into another.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rburdet/cars/listing"
)

// ErrClosed is returned by operations on a store after Close.
var ErrClosed = errors.New("store is closed")

// QueryResult is the value stored per query key: the deduplicated
// record set plus the run metadata needed to judge its freshness.
type QueryResult struct {
	Brand           string           `json:"brand"`
	Model           string           `json:"model"`
	Cars            []listing.Record `json:"cars"`
	Count           int              `json:"count"`
	LastUpdated     time.Time        `json:"lastUpdated"`
	ScrapingMethod  string           `json:"scrapingMethod"`
	PagesScraped    int              `json:"pagesScraped"`
	ExecutionTimeMs int64            `json:"executionTimeMs"`
}

// Store is the persistence interface. Get returns (nil, nil) on a
// missing key. Implementations are safe for concurrent readers; the
// scraper guarantees at most one concurrent writer per key.
type Store interface {
	Get(ctx context.Context, key string) (*QueryResult, error)
	Put(ctx context.Context, key string, result *QueryResult) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key derives the storage key for a query: lowercased brand and model
// joined with ":", spaces collapsed to hyphens.
func Key(brand, model string) string {
	return sanitize(brand) + ":" + sanitize(model)
}

func sanitize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}

// PutMerged writes result at key, merging with any value already there
// so a plain re-scrape does not wipe out previously enriched records.
func PutMerged(ctx context.Context, s Store, key string, result *QueryResult) error {
	existing, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if existing != nil {
		result = Merge(existing, result)
	}
	return s.Put(ctx, key, result)
}

// Merge combines an older stored result with a fresh one, keyed by
// record id. On an id conflict the fresh record wins but inherits any
// fields it lacks from the stored one (enrichment data in particular).
// Stored records the fresh scrape did not see are kept; records without
// ids cannot be matched and the fresh set's are passed through. Run
// metadata comes from the fresh result.
func Merge(old, fresh *QueryResult) *QueryResult {
	out := *fresh

	freshByID := make(map[string]int, len(fresh.Cars))
	for i, car := range fresh.Cars {
		if car.ID != "" {
			freshByID[car.ID] = i
		}
	}

	merged := make([]listing.Record, 0, len(old.Cars)+len(fresh.Cars))
	taken := make(map[string]struct{}, len(old.Cars))
	for _, oldCar := range old.Cars {
		if oldCar.ID == "" {
			continue
		}
		if i, ok := freshByID[oldCar.ID]; ok {
			kept := fresh.Cars[i]
			kept.MergeFrom(&oldCar)
			merged = append(merged, kept)
		} else {
			merged = append(merged, oldCar)
		}
		taken[oldCar.ID] = struct{}{}
	}
	for _, car := range fresh.Cars {
		if car.ID != "" {
			if _, ok := taken[car.ID]; ok {
				continue
			}
		}
		merged = append(merged, car)
	}

	out.Cars = merged
	out.Count = len(merged)
	return &out
}
