// Package api exposes the workflow engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/tcmartin/flowexec/pkg/config"
	"github.com/tcmartin/flowexec/pkg/middleware"
	"github.com/tcmartin/flowexec/pkg/models"
	"github.com/tcmartin/flowexec/pkg/registry"
	"github.com/tcmartin/flowexec/pkg/storage"
	"github.com/tcmartin/flowexec/pkg/triggers"
)

// Engine is the execution surface the API needs.
type Engine interface {
	Start(g models.Graph, workflowID string, runCtx models.RunContext) (string, error)
	Status(runID string) (models.Run, error)
	Cancel(runID string) bool
	History(workflowID string, query storage.HistoryQuery) ([]models.HistoryEntry, error)
}

// Server represents the HTTP API server
type Server struct {
	config  *config.Config
	router  *mux.Router
	server  *http.Server
	engine  Engine
	graphs  *registry.GraphRegistry
	manager *triggers.Manager
	bus     *triggers.EventBus
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, engine Engine, graphs *registry.GraphRegistry, manager *triggers.Manager, bus *triggers.EventBus) *Server {
	s := &Server{
		config:  cfg,
		router:  mux.NewRouter(),
		engine:  engine,
		graphs:  graphs,
		manager: manager,
		bus:     bus,
	}

	s.setupRoutes()
	return s
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting HTTP server on %s", addr)

	err := s.server.ListenAndServe()

	// If the server was shut down gracefully, this error is expected
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)

	s.router.HandleFunc("/executeFlow", s.handleExecuteFlow).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/execution/{executionId}", s.handleGetExecution).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/execution/{executionId}/cancel", s.handleCancelExecution).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/workflow/{flowId}/history", s.handleHistory).Methods(http.MethodGet, http.MethodOptions)

	s.router.HandleFunc("/workflows/{flowId}/schedule", s.handleRegisterSchedule).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/workflows/{flowId}/webhook", s.handleRegisterWebhook).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/workflows/{flowId}/event-trigger", s.handleRegisterEventTrigger).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/workflows/{flowId}/triggers", s.handleListTriggers).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/triggers/{triggerId}", s.handleRemoveTrigger).Methods(http.MethodDelete, http.MethodOptions)

	// Inbound webhooks accept whatever method the trigger was registered
	// with; the manager enforces the match.
	s.router.HandleFunc("/hooks/{triggerId}", s.handleInboundWebhook)
	s.router.HandleFunc("/events", s.handlePublishEvent).Methods(http.MethodPost, http.MethodOptions)

	if s.config.Auth.JWTSecret != "" {
		authMiddleware := middleware.NewAuthMiddleware(s.config.Auth.JWTSecret, "/health", "/hooks/")
		s.router.Use(authMiddleware.Authenticate)
	}

	// CORS middleware for all routes
	s.router.Use(middleware.CORS)
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
