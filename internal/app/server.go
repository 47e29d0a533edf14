package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/adamani-ai/rag-backend/internal/api/handlers"
	appMiddleware "github.com/adamani-ai/rag-backend/internal/api/middlewares"
	"github.com/adamani-ai/rag-backend/internal/config"
	"github.com/adamani-ai/rag-backend/internal/core"
	"github.com/adamani-ai/rag-backend/internal/core/ingest"
	"github.com/adamani-ai/rag-backend/internal/core/orchestrator"
	"github.com/adamani-ai/rag-backend/internal/pkg/logger"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	log        *logger.Logger
	httpServer *http.Server
}

// NewServer builds and wires all routes. The chat stream route carries no
// timeout middleware; generation runs until done or the client disconnects.
func NewServer(log *logger.Logger, cfg *config.Config, pipeline *ingest.Pipeline, index core.VectorIndex, conversations core.ConversationMemory, orch *orchestrator.Orchestrator, obj core.ObjectClient) *Server {
	docHandler := handlers.NewDocumentHandler(log, pipeline, index, obj, cfg)
	chatHandler := handlers.NewChatHandler(log, orch, conversations)
	healthHandler := handlers.NewHealthHandler(cfg.VectorBackend, cfg.MemoryBackend)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", healthHandler.Health)

		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))

			// Uploads and deletes get a bounded window; the stream does not.
			protected.Group(func(bounded chi.Router) {
				bounded.Use(chimiddleware.Timeout(5 * time.Minute))
				bounded.Post("/documents/upload", docHandler.UploadDocument)
				bounded.Post("/documents/texts", docHandler.AddTexts)
				bounded.Post("/documents/reprocess", docHandler.ReprocessDocument)
				bounded.Delete("/documents/clear", docHandler.ClearKnowledgeBase)
				bounded.Delete("/documents/{document_id}", docHandler.DeleteDocument)
				bounded.Delete("/chat/memory", chatHandler.ClearAllSessions)
				bounded.Delete("/chat/memory/{session_id}", chatHandler.ClearSession)
			})

			protected.Post("/chat/stream", chatHandler.StreamQuery)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{log: log, httpServer: httpSrv}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
