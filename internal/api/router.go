package api

import (
	"collab-docs/internal/middleware"

	"github.com/gorilla/mux"
)

func SetupRoutes(h *Handler) *mux.Router {
	r := mux.NewRouter()

	// Middleware runs in order: tracing first, then recovery, then CORS
	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.ErrorRecoveryMiddleware)
	r.Use(middleware.CORSMiddleware)

	// API routes
	api := r.PathPrefix("/api").Subrouter()

	// Document endpoints
	api.HandleFunc("/documents", h.CreateDocument).Methods("POST")
	api.HandleFunc("/documents", h.ListDocuments).Methods("GET")
	api.HandleFunc("/documents/{id}", h.GetDocument).Methods("GET")
	api.HandleFunc("/documents/{id}", h.UpdateDocument).Methods("PUT")
	api.HandleFunc("/documents/{id}", h.DeleteDocument).Methods("DELETE")

	// Presence endpoint
	api.HandleFunc("/documents/{id}/collaborators", h.GetCollaborators).Methods("GET")

	// Health check endpoint
	api.HandleFunc("/health", h.Health).Methods("GET")

	// WebSocket routes
	r.HandleFunc("/ws/editor/{id}", h.HandleEditorWebSocket)

	return r
}
