package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"usher/internal/config"
	"usher/internal/core"
	"usher/internal/utils"

	"github.com/gorilla/mux"
)

type Server struct {
	config     *config.Store
	manager    *core.Manager
	logger     *utils.Logger
	httpServer *http.Server
	apiHandler *APIHandler
}

func NewServer(store *config.Store, manager *core.Manager, logger *utils.Logger) *Server {
	return &Server{
		config:     store,
		manager:    manager,
		logger:     logger,
		apiHandler: NewAPIHandler(manager, logger),
	}
}

func (s *Server) Start() error {
	router := mux.NewRouter()

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/hooks/scene", s.apiHandler.SceneHook).Methods("POST")
	api.HandleFunc("/hooks/performer", s.apiHandler.PerformerHook).Methods("POST")
	api.HandleFunc("/hooks/studio", s.apiHandler.StudioHook).Methods("POST")

	api.HandleFunc("/tasks/organize", s.apiHandler.OrganizeTask).Methods("POST")
	api.HandleFunc("/tasks/sync-performers", s.apiHandler.PerformerSyncTask).Methods("POST")
	api.HandleFunc("/tasks/sync-studios", s.apiHandler.StudioSyncTask).Methods("POST")

	api.HandleFunc("/status", s.apiHandler.GetSystemStatus).Methods("GET")
	api.HandleFunc("/history/moves", s.apiHandler.GetMoveHistory).Methods("GET")
	api.HandleFunc("/history/jobs", s.apiHandler.GetJobHistory).Methods("GET")

	api.HandleFunc("/test/catalog", s.apiHandler.TestCatalog).Methods("GET")
	api.HandleFunc("/test/media-server", s.apiHandler.TestMediaServer).Methods("GET")
	api.HandleFunc("/test/notifications", s.apiHandler.TestNotifications).Methods("GET")

	api.HandleFunc("/events", s.apiHandler.Events).Methods("GET")

	port := s.config.Load().App.Port
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the events websocket is long-lived.
	}

	s.logger.Info("Starting server on port", port)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
