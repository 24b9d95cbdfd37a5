// Package api serves the risk history and on-demand analyses over HTTP.
package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/risk.report/internal/analysis"
	"github.com/banshee-data/risk.report/internal/config"
	"github.com/banshee-data/risk.report/internal/db"
	"github.com/banshee-data/risk.report/internal/geocode"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// PlaceSearcher resolves free-form place queries.
type PlaceSearcher interface {
	Search(ctx context.Context, query string) ([]geocode.Place, error)
}

// Server exposes a Manager and its history over HTTP.
type Server struct {
	manager  *analysis.Manager
	history  analysis.History
	cfg      *config.RiskConfig
	db       *db.DB
	searcher PlaceSearcher
}

// Option configures a Server.
type Option func(*Server)

// WithDB mounts the database admin routes under /debug/.
func WithDB(d *db.DB) Option {
	return func(s *Server) { s.db = d }
}

// WithPlaceSearch enables /api/places.
func WithPlaceSearch(ps PlaceSearcher) Option {
	return func(s *Server) { s.searcher = ps }
}

// NewServer creates a Server. A nil cfg uses built-in defaults.
func NewServer(manager *analysis.Manager, cfg *config.RiskConfig, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.EmptyRiskConfig()
	}
	s := &Server{
		manager: manager,
		history: manager.History(),
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the routes served by s.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/analyses", s.handleAnalyses)
	mux.HandleFunc("/api/analyses/", s.handleAnalysis)
	mux.HandleFunc("/api/places", s.handlePlaces)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/charts/history", s.handleHistoryChart)
	if s.db != nil {
		s.db.AttachAdminRoutes(mux)
	}
	return mux
}

// Handler returns ServeMux wrapped in LoggingMiddleware.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(s.ServeMux())
}

// ListenAndServe serves Handler on addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[api] Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Printf("[api] Shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
