package api

import (
	"net/http"
)

// WebSocket endpoints

// HandleEditorWebSocket handles WebSocket connections for an editing session.
func (h *Handler) HandleEditorWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsHandler.HandleEditorConnection(w, r)
}
