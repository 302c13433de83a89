package server

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fastjson"
	"golang.org/x/time/rate"

	"github.com/logbook-io/logbook/internal/engine"
	"github.com/logbook-io/logbook/internal/metrics"
	"github.com/logbook-io/logbook/internal/model"
	"github.com/logbook-io/logbook/internal/store"
)

// Server exposes the log ingestion and query API over HTTP.
type Server struct {
	store   *store.Store
	limiter *rate.Limiter
	srv     *http.Server
	parser  fastjson.ParserPool
}

// NewServer creates the HTTP server. limiter may be nil to disable
// ingest rate limiting.
func NewServer(st *store.Store, limiter *rate.Limiter) *Server {
	return &Server{store: st, limiter: limiter}
}

// Router builds the service's route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger)
	r.Use(s.recovery)
	r.Use(corsMiddleware)
	r.Use(countRequests)

	r.Post("/logs", s.handleIngest)
	r.Get("/logs", s.handleQuery)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// handleIngest processes POST /logs: validate, assign an id, append,
// persist.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "Rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", nil)
		return
	}
	defer r.Body.Close()

	p := s.parser.Get()
	defer s.parser.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}

	rec, msg := decodeRecord(v)
	if msg != "" {
		metrics.LogsIngested.WithLabelValues(string(rec.Level), "rejected").Inc()
		writeError(w, http.StatusBadRequest, msg, nil)
		return
	}

	stored, err := s.store.Append(rec)
	if err != nil {
		log.Printf("Append failed: %v", err)
		metrics.LogsIngested.WithLabelValues(string(rec.Level), "error").Inc()
		writeError(w, http.StatusInternalServerError, "Internal server error", err)
		return
	}

	metrics.LogsIngested.WithLabelValues(string(stored.Level), "success").Inc()
	writeJSON(w, http.StatusCreated, ingestResponse{
		Status:  statusSuccess,
		Message: "Log successfully created and stored.",
		Data:    stored,
	})
}

// handleQuery processes GET /logs: load the full collection, filter,
// sort, paginate.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	criteria, msg := parseCriteria(r.URL.Query())
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg, nil)
		return
	}

	records, err := s.store.LoadAll()
	if err != nil {
		log.Printf("LoadAll failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", err)
		return
	}

	page := engine.Query(records, criteria)
	if page.Records == nil {
		page.Records = make([]model.LogRecord, 0)
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Status:     statusSuccess,
		Data:       page.Records,
		Total:      page.Total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: page.TotalPages,
	})
}
