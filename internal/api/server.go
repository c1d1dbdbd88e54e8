// Package api exposes the REST surface of the writing assistant backend.
//
// Endpoints:
//
//	GET    /health                      liveness probe
//	GET    /ready                       readiness probe (database ping)
//	POST   /api/sources                 register material and ingest it
//	GET    /api/sources                 list a project's sources
//	GET    /api/sources/{id}            fetch one source
//	DELETE /api/sources/{id}            delete a source and its chunks
//	POST   /api/sources/{id}/reindex    embed chunks that are missing vectors
//	POST   /api/chat                    run one grounded chat turn
//	POST   /api/sessions                start a session explicitly
//	GET    /api/sessions                list a project's sessions
//	GET    /api/sessions/{id}/messages  fetch a session transcript
//	DELETE /api/sessions/{id}           delete a session and its messages
//	POST   /api/voice/patterns          ingest analyzer patterns
//	POST   /api/voice/recompute         rebuild aspect scores
//	GET    /api/voice/readiness         report voice-model readiness
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:3900"

	// ShutdownTimeout is the maximum wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout guards against slow-header clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout bounds reading one request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout bounds writing one response. Generation calls run
	// inside this window.
	WriteTimeout = 120 * time.Second

	// IdleTimeout bounds keep-alive waits.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for the REST API.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger

	health  *HealthHandler
	source  *SourceHandler
	chat    *ChatHandler
	session *SessionHandler
	voice   *VoiceHandler
}

// NewServer creates a server with all routes registered.
func NewServer(health *HealthHandler, source *SourceHandler, chat *ChatHandler,
	session *SessionHandler, voice *VoiceHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	s := &Server{
		mux:     mux,
		logger:  logger,
		health:  health,
		source:  source,
		chat:    chat,
		session: session,
		voice:   voice,
	}

	s.health.RegisterRoutes(mux)
	s.source.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.session.RegisterRoutes(mux)
	s.voice.RegisterRoutes(mux)

	return s
}

// Handler returns the handler with middleware applied.
// Order: recovery wraps logging wraps routes.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
	)
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
