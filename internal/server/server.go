package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"newsdesk/internal/chat"
	"newsdesk/internal/config"
	"newsdesk/internal/logger"
	"newsdesk/internal/pipeline"
	"newsdesk/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server is the HTTP surface over the pipeline, store, and chat bot. It only
// consumes the core: extraction work happens in background runs and every
// endpoint returns promptly.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	store      *store.Store
	runner     *pipeline.Runner
	bot        *chat.Bot
	config     config.Server
	log        *slog.Logger
}

// New creates a new HTTP server instance
func New(st *store.Store, runner *pipeline.Runner, bot *chat.Bot, cfg config.Server) *Server {
	s := &Server{
		router: chi.NewRouter(),
		store:  st,
		runner: runner,
		bot:    bot,
		config: cfg,
		log:    logger.Get(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  parseTimeout(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout: parseTimeout(cfg.WriteTimeout, 30*time.Second),
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if s.config.CORSEnabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/extract", s.handleExtract)
		r.Get("/highlights", s.handleHighlights)
		r.Get("/articles", s.handleArticles)
		r.Post("/chat", s.handleChat)
	})
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start begins serving; it blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func parseTimeout(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
