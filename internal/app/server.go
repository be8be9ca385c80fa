package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/markdave123-py/smartdoc/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/smartdoc/internal/api/middlewares"
	"github.com/markdave123-py/smartdoc/internal/config"
	"github.com/markdave123-py/smartdoc/internal/core"
	"github.com/markdave123-py/smartdoc/internal/core/session"
	"github.com/markdave123-py/smartdoc/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, chat *services.ChatService, store core.SessionStore, tokens *session.Tokens, locker *session.Locker, logger *zap.Logger) *Server {
	pageHandler := handlers.NewPageHandler(chat, store, cfg.LLMProvider, cfg.DefaultCredential() != "", cfg.MaxUploadMB, logger)
	docHandler := handlers.NewDocumentHandler(chat, store, cfg.MaxUploadMB, logger)
	chatHandler := handlers.NewChatHandler(chat, store, logger)
	sessionHandler := handlers.NewSessionHandler(chat, store, logger)
	sessions := appMiddleware.NewSessions(store, tokens, locker, chat.NewSession, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appMiddleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.LLMTimeout + 30*time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", handlers.Healthz)

	r.Group(func(ui chi.Router) {
		ui.Use(sessions.Handler)
		ui.Get("/", pageHandler.Page)
		ui.Post("/upload", docHandler.Upload)
		ui.Post("/ask", chatHandler.Ask)
		ui.Post("/credential", sessionHandler.SetCredential)
		ui.Post("/reset", sessionHandler.Reset)
		ui.Get("/document", docHandler.Download)
	})

	// API routes
	r.Route("/api", func(api chi.Router) {
		api.Use(sessions.Handler)
		api.Get("/session", sessionHandler.GetSession)
		api.Delete("/session", sessionHandler.EndSession)
		api.Put("/credential", sessionHandler.PutCredential)
		api.Post("/documents", docHandler.UploadDocument)
		api.Post("/chat/query", chatHandler.QueryDocument)
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{httpServer: httpSrv, logger: logger}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
