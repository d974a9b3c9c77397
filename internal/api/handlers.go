package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"collab-docs/internal/models"
	"collab-docs/internal/repository"
	"collab-docs/internal/services/collaboration"

	"github.com/gorilla/mux"
)

// Handler handles HTTP requests. The REST surface exists so a document id and
// its initial content are resolvable before a client joins the editing
// session; everything live happens over the WebSocket routes.
type Handler struct {
	docRepo        *repository.DocumentRepositoryImpl
	snapService    SnapshotService // Interface defined in this package
	wsHandler      *collaboration.WebSocketHandler
	sessionManager *collaboration.SessionManager
}

func NewHandler(
	docRepo *repository.DocumentRepositoryImpl,
	snapService SnapshotService,
	wsHandler *collaboration.WebSocketHandler,
	sessionManager *collaboration.SessionManager,
) *Handler {
	return &Handler{
		docRepo:        docRepo,
		snapService:    snapService,
		wsHandler:      wsHandler,
		sessionManager: sessionManager,
	}
}

// Document handlers

func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var doc models.DocumentCreate
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.docRepo.Create(r.Context(), &doc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 50 // default
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil {
			limit = parsedLimit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsedOffset, err := strconv.Atoi(offsetStr); err == nil {
			offset = parsedOffset
		}
	}

	documents, err := h.docRepo.List(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"documents": documents,
		"limit":     limit,
		"offset":    offset,
	})
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	doc, err := h.docRepo.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	var update models.DocumentUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := h.docRepo.Update(r.Context(), id, &update)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	if err := h.docRepo.Delete(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetCollaborators returns the live presence roster for a document: who is
// connected, their colors, cursors, and typing flags.
func (h *Handler) GetCollaborators(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	collaborators := h.sessionManager.Collaborators(id)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"documentId":    id,
		"collaborators": collaborators,
	})
}

// Health reports service liveness plus the snapshot queue depth.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":         "ok",
		"snapshot_queue": h.snapService.QueueLength(),
	})
}
