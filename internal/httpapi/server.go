package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"gdd-rag/internal/config"
	"gdd-rag/internal/session"
)

// Server exposes a session over JSON and multipart HTTP.
type Server struct {
	httpServer     *http.Server
	router         *http.ServeMux
	session        *session.Session
	maxUploadBytes int64
}

func NewServer(cfg config.ServerConfig, s *session.Session) *Server {
	srv := &Server{
		router:         http.NewServeMux(),
		session:        s,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
	srv.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)

	s.router.HandleFunc("GET /api/documents", s.handleListDocuments)
	s.router.HandleFunc("POST /api/documents", s.handleUpload)
	s.router.HandleFunc("POST /api/documents/samples", s.handleLoadSamples)
	s.router.HandleFunc("GET /api/documents/{name}", s.handleGetDocument)
	s.router.HandleFunc("DELETE /api/documents/{name}", s.handleDeleteDocument)

	s.router.HandleFunc("POST /api/search", s.handleSearch)
	s.router.HandleFunc("POST /api/ask", s.handleAsk)
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return requestLogger(s.router)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}
