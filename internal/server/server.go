package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"shotboard/internal/api"
	"shotboard/internal/config"
)

// Routes mounts a set of endpoints under /api/v1.
type Routes interface {
	Routes(r chi.Router)
}

type Server struct {
	name       string
	logger     zerolog.Logger
	httpServer *http.Server
	router     *chi.Mux
}

// NewWorkspace serves the workspace API ("shotboard serve").
func NewWorkspace(cfg *config.Config, logger zerolog.Logger, handler *api.Handler) *Server {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	return newServer("workspace", addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, logger, handler)
}

// NewStore serves the tag and playlist store ("shotboard store").
func NewStore(cfg *config.Config, logger zerolog.Logger, handler *api.StoreHandler) *Server {
	addr := fmt.Sprintf("%s:%d", cfg.Store.Host, cfg.Store.Port)
	return newServer("store", addr, cfg.Store.ReadTimeout, cfg.Store.WriteTimeout, logger, handler)
}

func newServer(name, addr string, readTimeout, writeTimeout time.Duration, logger zerolog.Logger, routes Routes) *Server {
	s := &Server{
		name:   name,
		logger: logger.With().Str("server", name).Logger(),
	}

	s.router = chi.NewRouter()
	s.setupMiddleware()
	s.router.Route("/api/v1", routes.Routes)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(CORSMiddleware)
	s.router.Use(RecoverMiddleware(s.logger))
	s.router.Use(LoggingMiddleware(s.logger))
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.httpServer.Addr).
		Msg("starting server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}
