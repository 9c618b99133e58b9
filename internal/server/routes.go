package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/pdfvault/internal/catalog"
	"github.com/ziadkadry99/pdfvault/internal/metrics"
)

const defaultRunsLimit = 20

// searchResponse is the body of GET /api/search and of websocket results.
type searchResponse struct {
	Query   string                 `json:"query"`
	Total   int                    `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
	Results []catalog.SearchResult `json:"results"`
}

// statsResponse is the body of GET /api/stats.
type statsResponse struct {
	catalog.Stats
	SizeBytes  int64 `json:"size_bytes"`
	Consistent bool  `json:"consistent"`
}

func (s *Server) registerRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch())
		r.Get("/documents/{id}", s.handleGetDocument())
		r.Get("/stats", s.handleStats())
		r.Get("/runs", s.handleRuns())
	})
}

func (s *Server) handleSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		query := strings.TrimSpace(q.Get("q"))
		if query == "" {
			s.metrics.Search("http", metrics.OutcomeInvalid)
			writeError(w, http.StatusBadRequest, "q is required")
			return
		}

		opts := s.searchOptions()
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				opts.Limit = n
			}
		}
		if v := q.Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				opts.Offset = n
			}
		}
		if v := q.Get("tokens"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				opts.SnippetTokens = n
			}
		}

		resp, err := s.search(r.Context(), query, opts)
		if err != nil {
			if errors.Is(err, catalog.ErrInvalidQuery) {
				s.metrics.Search("http", metrics.OutcomeInvalid)
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			s.metrics.Search("http", metrics.OutcomeError)
			s.logger.Error("search failed", "query", query, "error", err)
			writeError(w, http.StatusInternalServerError, "search failed")
			return
		}

		s.metrics.Search("http", metrics.OutcomeOK)
		writeJSON(w, http.StatusOK, resp)
	}
}

// search runs one page of a query plus its total match count.
func (s *Server) search(ctx context.Context, query string, opts catalog.SearchOptions) (*searchResponse, error) {
	results, err := s.catalog.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	total, err := s.catalog.CountMatches(ctx, query)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []catalog.SearchResult{}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = catalog.DefaultLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	return &searchResponse{
		Query:   query,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		Results: results,
	}, nil
}

func (s *Server) searchOptions() catalog.SearchOptions {
	return catalog.SearchOptions{
		Limit:         s.cfg.SearchLimit,
		SnippetTokens: s.cfg.SnippetTokens,
	}
}

func (s *Server) handleGetDocument() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid document id")
			return
		}

		doc, err := s.catalog.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, doc)
	}
}

func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.catalog.Stats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		size, err := s.db.Size(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, statsResponse{
			Stats:      *stats,
			SizeBytes:  size,
			Consistent: stats.Consistent(),
		})
	}
}

func (s *Server) handleRuns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRunsLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		runs, err := s.runs.List(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
