package server

import (
	"log"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/logbook-io/logbook/internal/metrics"
)

// corsMiddleware adds CORS headers; the API fronts a browser UI.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per completed request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			log.Printf("%s %s -> %d (%s) request_id=%s",
				r.Method, r.URL.Path, ww.Status(), time.Since(start), chimw.GetReqID(r.Context()))
		}()

		next.ServeHTTP(ww, r)
	})
}

// countRequests records per-status request counters.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		metrics.HTTPRequestsTotal.WithLabelValues(strconv.Itoa(ww.Status()), r.Method).Inc()
	})
}

// recovery converts a handler panic into the 500 error envelope.
func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic recovered: %v request_id=%s", rec, chimw.GetReqID(r.Context()))
				writeJSON(w, http.StatusInternalServerError, errorResponse{
					Status:  statusError,
					Message: "Internal server error",
					Error:   "unexpected failure",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
