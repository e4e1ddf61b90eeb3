// Package httpapi exposes the lookup engine over HTTP for
// presentation-layer collaborators.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cognicore/pricedex/pkg/pricedex"
	"github.com/cognicore/pricedex/pkg/pricedex/internalerr"
	"github.com/cognicore/pricedex/pkg/pricedex/store"
)

// Server is the HTTP front for a pricedex Engine.
type Server struct {
	engine *pricedex.Engine
	logger zerolog.Logger
	router *chi.Mux
}

// NewServer creates a Server wired to the given engine.
func NewServer(engine *pricedex.Engine, logger zerolog.Logger) *Server {
	s := &Server{
		engine: engine,
		logger: logger,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/lookup", s.handleLookup)
		r.Post("/import", s.handleImport)
		r.Post("/reset", s.handleReset)
		r.Get("/history", s.handleHistory)
	})
}

// requestLogger logs one line per request on zerolog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

type recordResponse struct {
	Code        string `json:"code"`
	Article     string `json:"article"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Department  string `json:"department"`
}

type importResponse struct {
	RunID      string `json:"runId"`
	Provenance string `json:"provenance"`
	Count      int    `json:"count"`
}

type historyResponse struct {
	Runs []runResponse `json:"runs"`
}

type runResponse struct {
	ID         string    `json:"id"`
	Provenance string    `json:"provenance"`
	Count      int       `json:"count"`
	ImportedAt time.Time `json:"importedAt"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	rec, found, err := s.engine.Lookup(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	if !found {
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "no matching record"})
		return
	}
	respondJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.ImportDataset(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, importResponse{
		RunID:      report.RunID,
		Provenance: string(report.Provenance),
		Count:      report.Count,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Reset(r.Context()); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	runs, err := s.engine.History(r.Context(), 20)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := historyResponse{Runs: make([]runResponse, 0, len(runs))}
	for _, run := range runs {
		out.Runs = append(out.Runs, runResponse{
			ID:         run.ID,
			Provenance: run.Provenance,
			Count:      run.Count,
			ImportedAt: run.ImportedAt,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// respondError maps engine errors onto HTTP statuses. Messages stay
// human-readable; clients re-submit rather than retry automatically.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, internalerr.ErrEmptyQuery):
		status = http.StatusBadRequest
	case errors.Is(err, internalerr.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, internalerr.ErrDatasetEmpty):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, internalerr.ErrDatasetUnavailable):
		status = http.StatusBadGateway
	}
	respondJSON(w, status, errorResponse{Error: err.Error()})
}

func toRecordResponse(rec store.Record) recordResponse {
	return recordResponse{
		Code:        rec.Code,
		Article:     rec.Article,
		Description: rec.Description,
		Price:       rec.Price,
		Department:  rec.Department,
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
