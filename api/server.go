// Package api serves the aggregated listing data over HTTP: stored
// result sets with filtering and sorting, plus a synchronous scrape
// trigger.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rburdet/cars/listing"
	"github.com/rburdet/cars/scrape"
	"github.com/rburdet/cars/store"
)

// Server is the HTTP API. The orchestrator may be nil, in which case
// the scrape endpoint reports that scraping is disabled.
type Server struct {
	st   store.Store
	orch *scrape.Orchestrator
	log  *zap.Logger
}

// NewServer wires an API server. A nil logger is replaced with a no-op
// one.
func NewServer(st store.Store, orch *scrape.Orchestrator, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{st: st, orch: orch, log: log}
}

// Handler builds the route table wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/results", s.handleListResults)
	mux.HandleFunc("GET /api/v1/cars/{brand}/{model}", s.handleGetCars)
	mux.HandleFunc("POST /api/v1/scrape", s.handleScrape)
	return s.withCORS(s.withLogging(mux))
}

// ErrorResponse is the error envelope for all endpoints.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable code and a human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ListResultsResponse is the body of GET /api/v1/results.
type ListResultsResponse struct {
	Keys  []string `json:"keys"`
	Total int      `json:"total"`
}

// CarsResponse is the body of GET /api/v1/cars/{brand}/{model}: the
// stored result set with filters and pagination applied. Total is the
// filtered count before limit/offset.
type CarsResponse struct {
	Brand        string           `json:"brand"`
	Model        string           `json:"model"`
	Cars         []listing.Record `json:"cars"`
	Total        int              `json:"total"`
	Limit        int              `json:"limit"`
	Offset       int              `json:"offset"`
	LastUpdated  time.Time        `json:"lastUpdated"`
	PagesScraped int              `json:"pagesScraped"`
}

// ScrapeRequest is the body of POST /api/v1/scrape. MaxPages is a
// pointer so an explicit 0 ("no ceiling") is distinguishable from an
// absent field, which inherits the server's default.
type ScrapeRequest struct {
	Brand    string `json:"brand"`
	Model    string `json:"model"`
	MaxPages *int   `json:"max_pages,omitempty"`
	Store    bool   `json:"store,omitempty"`
}

// ScrapeResponse summarizes a synchronous scrape run.
type ScrapeResponse struct {
	TotalCars       int           `json:"total_cars"`
	PagesScraped    int           `json:"pages_scraped"`
	Status          scrape.Status `json:"status"`
	ExecutionTimeMs int64         `json:"execution_time_ms"`
	Error           string        `json:"error,omitempty"`
	StorageError    string        `json:"storage_error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	keys, err := s.st.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list results: "+err.Error())
		return
	}
	if keys == nil {
		keys = []string{}
	}
	s.writeJSON(w, http.StatusOK, ListResultsResponse{Keys: keys, Total: len(keys)})
}

func (s *Server) handleGetCars(w http.ResponseWriter, r *http.Request) {
	brand := r.PathValue("brand")
	model := r.PathValue("model")

	result, err := s.st.Get(r.Context(), store.Key(brand, model))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to read result: "+err.Error())
		return
	}
	if result == nil {
		s.writeError(w, http.StatusNotFound, "not_found", "No results stored for "+brand+"/"+model)
		return
	}

	cars, err := filterCars(result.Cars, r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}
	if sortParam := r.URL.Query().Get("sort"); sortParam != "" {
		if err := sortCars(cars, sortParam); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
			return
		}
	}

	total := len(cars)
	limit, offset, err := pagination(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}
	cars = paginate(cars, offset, limit)

	s.writeJSON(w, http.StatusOK, CarsResponse{
		Brand:        result.Brand,
		Model:        result.Model,
		Cars:         cars,
		Total:        total,
		Limit:        limit,
		Offset:       offset,
		LastUpdated:  result.LastUpdated,
		PagesScraped: result.PagesScraped,
	})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if s.orch == nil {
		s.writeError(w, http.StatusServiceUnavailable, "scraping_disabled", "This server is not configured to scrape")
		return
	}

	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body: "+err.Error())
		return
	}
	if req.Brand == "" || req.Model == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_body", "brand and model are required")
		return
	}

	opts := scrape.QueryOptions{Store: req.Store}
	if req.MaxPages != nil {
		opts.MaxPages = *req.MaxPages
		if opts.MaxPages <= 0 {
			opts.MaxPages = scrape.InfinitePages
		}
	}

	session, outcome := s.orch.ScrapeQuery(r.Context(),
		scrape.Query{Brand: req.Brand, Model: req.Model}, opts)

	s.writeJSON(w, http.StatusOK, ScrapeResponse{
		TotalCars:       session.TotalCars(),
		PagesScraped:    session.PagesScraped(),
		Status:          session.Status,
		ExecutionTimeMs: session.Elapsed.Milliseconds(),
		Error:           outcome.Error,
		StorageError:    outcome.StorageError,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("writing response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}
