package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/yexubai/BookBrain/internal/core/ports/driving"
	"github.com/yexubai/BookBrain/internal/logger"
)

// requestTimeout bounds every request except the background ingest,
// which detaches from the request context.
const requestTimeout = 60 * time.Second

// Server wraps the HTTP server and its routes.
type Server struct {
	httpServer *http.Server
}

// NewServer wires the routes onto the driving ports.
func NewServer(addr string, library driving.Library, search driving.SearchService, ingestor driving.Ingestor) *Server {
	h := &handler{
		library:  library,
		search:   search,
		ingestor: ingestor,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", h.healthz)

	r.Route("/api", func(api chi.Router) {
		api.Route("/books", func(books chi.Router) {
			books.Get("/", h.listBooks)
			books.Get("/{id}", h.getBook)
			books.Put("/{id}", h.updateBook)
			books.Delete("/{id}", h.deleteBook)
			books.Get("/{id}/cover", h.getCover)
		})

		api.Get("/categories", h.listCategories)
		api.Get("/search", h.searchBooks)
		api.Post("/ingest", h.startIngest)
		api.Get("/ingest/status", h.ingestStatus)
		api.Post("/index/rebuild", h.rebuildIndex)
		api.Get("/stats", h.getStats)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	logger.Info("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
