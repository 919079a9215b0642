// Package web provides the HTTP API over the mapping engine.
//
// Every request that carries a file builds its own session, so concurrent
// requests never share file state. Progress of all runs is fanned out
// through one broadcaster and streamed on /api/v1/progress.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/archive"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/config"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/ingest"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/logging"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/mapping"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/store"
)

// requestTimeout bounds every non-streaming request.
const requestTimeout = 60 * time.Second

// multipartOverhead is allowed on top of the file size limit for the other
// form parts and the multipart framing.
const multipartOverhead = 1 << 20

// Deps are the collaborators of the server. Store and Archiver are optional.
type Deps struct {
	Config   *config.Config
	Mapper   *mapping.Mapper
	Store    store.Store
	Archiver archive.Archiver
}

// Server is the HTTP server for the mapping API.
type Server struct {
	cfg      *config.Config
	mapper   *mapping.Mapper
	store    store.Store
	archiver archive.Archiver
	progress *ingest.Broadcaster

	router *chi.Mux
	server *http.Server
}

// NewServer creates a new Server instance.
func NewServer(deps Deps) *Server {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{
		cfg:      cfg,
		mapper:   deps.Mapper,
		store:    deps.Store,
		archiver: deps.Archiver,
		progress: ingest.NewBroadcaster(),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		// Server-sent events stay open past the request timeout.
		r.Get("/progress", s.handleProgress)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Get("/fields", s.handleFields)
			r.Post("/sheets", s.handleSheets)
			r.Post("/automap", s.handleAutoMap)
			r.Post("/convert", s.handleConvert)

			// Persistence
			r.Get("/mappings", s.handleListMappings)
			r.Post("/mappings", s.handleSaveMapping)
			r.Delete("/mappings/{id}", s.handleDeleteMapping)
			r.Get("/processing", s.handleLoadProcessing)
			r.Put("/processing", s.handleSaveProcessing)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Progress returns the broadcaster that receives every run's updates.
func (s *Server) Progress() *ingest.Broadcaster {
	return s.progress
}

// requestLogger logs one structured line per request with the chi request id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logging.FromContext(r.Context()).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", r.RemoteAddr,
		)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// writeSSE writes one server-sent event.
func writeSSE(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
