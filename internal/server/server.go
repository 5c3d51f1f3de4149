// Package server exposes the retrieval surface over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/postmill/postmill/internal/ingest"
	"github.com/postmill/postmill/internal/search"
	"github.com/postmill/postmill/internal/store"
)

// Server wires the engine, the ingestion pipeline and the store behind a
// chi router.
type Server struct {
	engine   *search.Engine
	pipeline *ingest.Pipeline
	store    *store.Store
	http     *http.Server
}

// New creates a server listening on addr.
func New(addr string, engine *search.Engine, pipeline *ingest.Pipeline, st *store.Store) *Server {
	s := &Server{engine: engine, pipeline: pipeline, store: st}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/ingest", s.handleIngest)
		r.Get("/search", s.handleSearch)
		r.Get("/stats", s.handleStats)
	})

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router (tests).
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	slog.Info("http server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	})
}

type ingestRequest struct {
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
	Content    string `json:"content"`
	Force      bool   `json:"force"`
}

type ingestResponse struct {
	ChunksWritten int `json:"chunks_written"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SourceType == "" || req.SourceID == "" {
		writeError(w, http.StatusBadRequest, "source_type and source_id are required")
		return
	}

	n, err := s.pipeline.Ingest(r.Context(), req.SourceType, req.SourceID, req.Content, req.Force)
	if err != nil {
		slog.Error("ingest failed", "source_id", req.SourceID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{ChunksWritten: n})
}

type searchResponse struct {
	Context string                `json:"context"`
	Results []search.RankedResult `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := search.Query{Text: r.URL.Query().Get("q")}

	if v := r.URL.Query().Get("top_k"); v != "" {
		topK, err := strconv.Atoi(v)
		if err != nil || topK <= 0 {
			writeError(w, http.StatusBadRequest, "top_k must be a positive integer")
			return
		}
		q.TopK = topK
	}
	if v := r.URL.Query().Get("keyword_weight"); v != "" {
		kw, err := strconv.ParseFloat(v, 64)
		if err != nil || kw < 0 {
			writeError(w, http.StatusBadRequest, "keyword_weight must be a non-negative number")
			return
		}
		q.KeywordWeight = &kw
	}
	if v := r.URL.Query().Get("semantic_weight"); v != "" {
		sw, err := strconv.ParseFloat(v, 64)
		if err != nil || sw < 0 {
			writeError(w, http.StatusBadRequest, "semantic_weight must be a non-negative number")
			return
		}
		q.SemanticWeight = &sw
	}

	formatted, results, err := s.engine.Retrieve(r.Context(), q)
	if err != nil {
		slog.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []search.RankedResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Context: formatted, Results: results})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"vector_available": s.store.VectorAvailable(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encoding failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
