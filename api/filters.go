package api

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/rburdet/cars/listing"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// filterCars applies the query-param filters to a stored car set and
// returns the survivors in their stored order.
func filterCars(cars []listing.Record, params url.Values) ([]listing.Record, error) {
	yearMin, err := intParam(params, "year_min")
	if err != nil {
		return nil, err
	}
	yearMax, err := intParam(params, "year_max")
	if err != nil {
		return nil, err
	}
	priceMax, err := floatParam(params, "price_max")
	if err != nil {
		return nil, err
	}
	currency := params.Get("currency")
	seller := strings.ToLower(params.Get("seller"))

	out := make([]listing.Record, 0, len(cars))
	for _, car := range cars {
		if yearMin != nil && (car.Year == nil || *car.Year < *yearMin) {
			continue
		}
		if yearMax != nil && (car.Year == nil || *car.Year > *yearMax) {
			continue
		}
		if priceMax != nil && (!car.Price.IsSet() || car.Price.Amount > *priceMax) {
			continue
		}
		if currency != "" && !strings.EqualFold(string(car.Price.Currency), currency) {
			continue
		}
		if seller != "" && string(car.Seller.Type) != seller {
			continue
		}
		out = append(out, car)
	}
	return out, nil
}

// sortCars orders cars in place. Records missing the sort field go
// last; ties keep their stored order.
func sortCars(cars []listing.Record, param string) error {
	var less func(a, b listing.Record) bool
	switch param {
	case "price_asc":
		less = func(a, b listing.Record) bool {
			if a.Price.IsSet() != b.Price.IsSet() {
				return a.Price.IsSet()
			}
			return a.Price.Amount < b.Price.Amount
		}
	case "price_desc":
		less = func(a, b listing.Record) bool {
			if a.Price.IsSet() != b.Price.IsSet() {
				return a.Price.IsSet()
			}
			return a.Price.Amount > b.Price.Amount
		}
	case "year_desc":
		less = func(a, b listing.Record) bool {
			if (a.Year != nil) != (b.Year != nil) {
				return a.Year != nil
			}
			if a.Year == nil {
				return false
			}
			return *a.Year > *b.Year
		}
	default:
		return fmt.Errorf("invalid sort parameter %q", param)
	}

	sort.SliceStable(cars, func(i, j int) bool { return less(cars[i], cars[j]) })
	return nil
}

// pagination reads limit/offset with the defaults and cap applied.
func pagination(params url.Values) (limit, offset int, err error) {
	limit = defaultLimit
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, fmt.Errorf("invalid limit parameter %q", v)
		}
		limit = min(n, maxLimit)
	}
	if v := params.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, fmt.Errorf("invalid offset parameter %q", v)
		}
		offset = n
	}
	return limit, offset, nil
}

func paginate(cars []listing.Record, offset, limit int) []listing.Record {
	if offset >= len(cars) {
		return []listing.Record{}
	}
	end := min(offset+limit, len(cars))
	return cars[offset:end]
}

func intParam(params url.Values, name string) (*int, error) {
	v := params.Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s parameter %q", name, v)
	}
	return &n, nil
}

func floatParam(params url.Values, name string) (*float64, error) {
	v := params.Get(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s parameter %q", name, v)
	}
	return &f, nil
}
