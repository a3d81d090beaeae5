// Package server exposes the analysis engine over HTTP for local frontends.
// It is a thin consumer of the engine: every route maps onto one engine call
// and the structured error kinds map onto status codes.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/loadstone-dev/loadstone/app/core/analysis"
)

// shutdownGrace bounds how long in-flight requests may finish after the
// serve context is canceled.
const shutdownGrace = 5 * time.Second

// Server serves the HTTP API. It holds no state beyond the engine handle,
// so a single instance handles concurrent requests safely.
type Server struct {
	analyzer *analysis.Analyzer
	log      *zap.Logger
}

// New builds a Server around an analyzer.
func New(analyzer *analysis.Analyzer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{analyzer: analyzer, log: log.Named("server")}
}

// Handler builds the route table. Browser frontends run on their own
// origins, so the API answers CORS preflights.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/games", s.handleGames)
	mux.HandleFunc("GET /api/masterlist/{game}", s.handleMasterlistInfo)
	mux.HandleFunc("GET /api/healthz", s.handleHealthz)

	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)
}

// ListenAndServe serves until the context is canceled, then shuts down
// gracefully so in-flight analyses can finish within the grace window.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.log.Info("Server: listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		s.log.Info("Server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			httpServer.Close()
			return err
		}
		return nil
	}
}
