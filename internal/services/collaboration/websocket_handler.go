package collaboration

import (
	"context"
	"log"
	"net/http"

	"collab-docs/internal/middleware"
	"collab-docs/internal/models"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: In production, validate origin properly
		return true
	},
}

// DocumentResolver is what the handler needs to resolve a document's initial
// content before the client's join is processed. The repository satisfies it.
type DocumentResolver interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
}

// WebSocketHandler upgrades editor connections and hands them to the session
// manager.
type WebSocketHandler struct {
	sessionManager *SessionManager
	resolver       DocumentResolver
}

func NewWebSocketHandler(sessionManager *SessionManager) *WebSocketHandler {
	return &WebSocketHandler{
		sessionManager: sessionManager,
	}
}

// SetDocumentResolver wires document resolution for initial session state.
// Optional: without it a fresh session starts from an empty document.
func (h *WebSocketHandler) SetDocumentResolver(resolver DocumentResolver) {
	h.resolver = resolver
}

// HandleEditorConnection handles a WebSocket connection for one document's
// editing session. The connection stays invisible to other members until the
// client sends its join message; identity (userId, username) rides on that
// message, supplied by the upstream auth layer.
func (h *WebSocketHandler) HandleEditorConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	documentID := vars["id"]

	ctx, span := middleware.StartSpan(ctx, "WebSocket.Connect",
		attribute.String("document.id", documentID),
	)
	defer span.End()

	// Resolve initial state before the join can land, so the presence
	// snapshot the joiner receives carries real content.
	if h.resolver != nil {
		if doc, err := h.resolver.GetByID(ctx, documentID); err == nil {
			h.sessionManager.SeedDocument(doc.ID, doc.Title, doc.Content, doc.LastModified)
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		middleware.AddSpanError(ctx, err)
		return
	}

	session := &Session{
		Session: models.NewSession(documentID),
		Conn:    conn,
		Send:    make(chan []byte, 256), // Buffered channel
		Manager: h.sessionManager,
	}

	// Separate goroutines for reading and writing prevent a slow peer from
	// deadlocking the connection.
	go session.WritePump(context.Background())
	go session.ReadPump(context.Background())

	log.Printf("✓ WebSocket connection established for document %s (session: %s)",
		documentID, session.ID)
}
