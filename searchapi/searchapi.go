// CLAUDE:SUMMARY Read-only JSON search API over the archive: search, stats, permalink lookups, link status.
// Package searchapi serves the archive's query layer over HTTP. Read-only:
// every write path stays in the CLI, so the server can run against a
// database a batch import is writing to and merely see slightly stale
// indexes.
package searchapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hazyhaar/plurkive/archive"
	"github.com/hazyhaar/plurkive/backup"
)

// Server wires the archive service into an HTTP handler.
type Server struct {
	svc    *archive.Service
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server over the given archive.
func New(svc *archive.Service, opts ...Option) *Server {
	s := &Server{svc: svc, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})
	r.Get("/api/search", s.handleSearch)
	r.Get("/api/stats", s.handleStats)
	r.Get("/api/links/status", s.handleLinkStatus)
	r.Get("/api/imports", s.handleImportHistory)
	r.Get("/api/search/log", s.handleSearchHistory)
	r.Get("/api/plurks/{id}", s.handlePlurk)
	r.Get("/api/plurks/base/{baseID}", s.handlePlurkByBase)
	r.Get("/api/plurks/base/{baseID}/responses", s.handlePlurkResponses)
	r.Get("/api/responses/{id}/plurk", s.handleResponsePlurk)

	return r
}

// searchResponse is the envelope for /api/search results. Count is the
// rows in this page; Total and Pages describe the whole match set.
type searchResponse struct {
	Query   string `json:"query"`
	Target  string `json:"target"`
	Mode    string `json:"mode"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
	Results any    `json:"results"`
	Count   int    `json:"count"`
	Total   int    `json:"total"`
	Pages   int    `json:"pages"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, 400, map[string]string{"error": "q parameter is required"})
		return
	}
	target := r.URL.Query().Get("type")
	if target == "" {
		target = "plurks"
	}
	mode, err := archive.ParseSearchMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, 400, err)
		return
	}
	opts := archive.SearchOptions{
		Mode:    mode,
		Page:    queryInt(r, "page", 1),
		PerPage: queryInt(r, "per_page", 0),
	}

	resp := searchResponse{Query: q, Target: target, Page: opts.Page, PerPage: opts.PerPage}
	var usedMode archive.SearchMode
	switch target {
	case "plurks":
		results, total, m, err := s.svc.SearchPlurks(r.Context(), q, opts)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		usedMode, resp.Results, resp.Count, resp.Total = m, results, len(results), total
	case "responses":
		results, total, m, err := s.svc.SearchResponses(r.Context(), q, opts)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		usedMode, resp.Results, resp.Count, resp.Total = m, results, len(results), total
	case "links":
		results, total, m, err := s.svc.SearchLinks(r.Context(), q, opts)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		usedMode, resp.Results, resp.Count, resp.Total = m, results, len(results), total
	case "all":
		plurks, pTotal, m, err := s.svc.SearchPlurks(r.Context(), q, opts)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		responses, rTotal, _, err := s.svc.SearchResponses(r.Context(), q, opts)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		links, lTotal, _, err := s.svc.SearchLinks(r.Context(), q, opts)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		if plurks == nil {
			plurks = []backup.Plurk{}
		}
		if responses == nil {
			responses = []backup.Response{}
		}
		if links == nil {
			links = []archive.Link{}
		}
		// Mode resolution is query-driven, so all three corpora resolve
		// the same way; report the first.
		usedMode = m
		resp.Results = map[string]any{"plurks": plurks, "responses": responses, "links": links}
		resp.Count = len(plurks) + len(responses) + len(links)
		resp.Total = pTotal + rTotal + lTotal
	default:
		writeJSON(w, 400, map[string]string{"error": "type must be plurks, responses, links or all"})
		return
	}
	resp.Mode = string(usedMode)
	if resp.Results == nil {
		resp.Results = []any{}
	}
	perPage := opts.PerPage
	if perPage < 1 {
		perPage = archive.DefaultPerPage
	}
	resp.Pages = (resp.Total + perPage - 1) / perPage
	writeJSON(w, 200, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, stats)
}

func (s *Server) handleLinkStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.svc.LinkStatusCounts(r.Context())
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, counts)
}

func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.ImportHistory(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if entries == nil {
		entries = []archive.ImportLogEntry{}
	}
	writeJSON(w, 200, entries)
}

func (s *Server) handleSearchHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.SearchHistory(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if entries == nil {
		entries = []archive.SearchLogEntry{}
	}
	writeJSON(w, 200, entries)
}

func (s *Server) handlePlurk(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, 400, err)
		return
	}
	p, err := s.svc.GetPlurk(r.Context(), id)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if p == nil {
		writeJSON(w, 404, map[string]string{"error": "plurk not found"})
		return
	}
	writeJSON(w, 200, p)
}

func (s *Server) handlePlurkByBase(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetPlurkByBase(r.Context(), chi.URLParam(r, "baseID"))
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if p == nil {
		writeJSON(w, 404, map[string]string{"error": "plurk not found"})
		return
	}
	writeJSON(w, 200, p)
}

func (s *Server) handlePlurkResponses(w http.ResponseWriter, r *http.Request) {
	rs, err := s.svc.PlurkResponses(r.Context(), chi.URLParam(r, "baseID"))
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if rs == nil {
		rs = []backup.Response{}
	}
	writeJSON(w, 200, rs)
}

func (s *Server) handleResponsePlurk(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, 400, err)
		return
	}
	p, err := s.svc.GetResponsePlurk(r.Context(), id)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if p == nil {
		writeJSON(w, 404, map[string]string{"error": "parent plurk not found"})
		return
	}
	writeJSON(w, 200, p)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
