package collaboration

import (
	"context"
	"log"
	"sync"
	"time"

	"collab-docs/internal/middleware"
	"collab-docs/internal/models"
	"collab-docs/internal/services"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

// SnapshotSubmitter is what the session manager needs from the snapshot
// worker pool. Declared here, in the consumer.
type SnapshotSubmitter interface {
	Submit(job services.SnapshotJob) error
	TrySubmit(job services.SnapshotJob) bool
}

// documentState is the latest accepted title/content for a live document.
// Whole-document, last-write-wins: every accepted update replaces it in full.
// It exists so late joiners see current state; it is discarded when the last
// collaborator leaves.
type documentState struct {
	Title        string
	Content      string
	LastModified time.Time
}

// SessionManager is the hub for real-time document collaboration: it owns the
// presence registry, the per-document broadcast fan-out, and the in-memory
// state of every live document.
//
// All mutation of the session and roster maps funnels through a single event
// loop goroutine (register/unregister/broadcast channels), so the collaborator
// set for a document can never see interleaved writers. Document content is
// not merged at all: concurrent updates race and the last one relayed wins.
type SessionManager struct {
	documents map[string]map[*Session]bool               // documentID -> set of sessions
	roster    map[string]map[string]*models.Collaborator // documentID -> session ID -> presence
	state     map[string]*documentState                  // documentID -> latest accepted state

	register   chan *Session
	unregister chan *Session
	broadcast  chan *BroadcastMessage

	mu       sync.RWMutex // guards documents
	rosterMu sync.RWMutex // guards roster
	stateMu  sync.RWMutex // guards state

	snapshots SnapshotSubmitter
	done      chan struct{}
}

// Session represents an active WebSocket connection. Presence identity is per
// connection: a user with two tabs open holds two sessions, each its own
// collaborator entry with its own color.
type Session struct {
	*models.Session
	Conn    *websocket.Conn
	Send    chan []byte // Buffered channel for outbound messages
	Manager *SessionManager

	// joined and left are only touched on this session's read pump goroutine.
	// left latches: once a session has left, later joins on the same
	// connection are dropped, so a Send channel closed by unregister is never
	// handed back to the hub. A session that never sent a valid join is
	// invisible to the rest of the room.
	joined bool
	left   bool
}

// BroadcastMessage represents a message to fan out to a document room.
type BroadcastMessage struct {
	DocumentID string
	Message    []byte
	Sender     *Session // Skip this session when broadcasting
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		documents:  make(map[string]map[*Session]bool),
		roster:     make(map[string]map[string]*models.Collaborator),
		state:      make(map[string]*documentState),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
	}
}

// SetSnapshotService wires the snapshot pool. Optional: without it the
// manager is memory-only, which is what the tests use.
func (sm *SessionManager) SetSnapshotService(snapshots SnapshotSubmitter) {
	sm.snapshots = snapshots
}

// Start begins the session manager event loop.
func (sm *SessionManager) Start() {
	log.Println("🔄 Starting collaboration session manager...")

	go func() {
		for {
			select {
			case <-sm.done:
				log.Println("Session manager shutting down...")
				return

			case session := <-sm.register:
				sm.handleRegister(session)

			case session := <-sm.unregister:
				sm.handleUnregister(session)

			case msg := <-sm.broadcast:
				sm.handleBroadcast(msg)
			}
		}
	}()

	go sm.cleanupLoop()

	log.Println("✓ Collaboration session manager started")
}

// SeedDocument installs the resolved initial state for a document unless a
// live session already holds fresher state.
func (sm *SessionManager) SeedDocument(documentID, title, content string, lastModified time.Time) {
	sm.stateMu.Lock()
	defer sm.stateMu.Unlock()

	if _, live := sm.state[documentID]; !live {
		sm.state[documentID] = &documentState{
			Title:        title,
			Content:      content,
			LastModified: lastModified,
		}
	}
}

// HandleMessage dispatches one decoded inbound message from a session's read
// pump. Messages that arrive before a join are dropped, and so is anything a
// peer sends after its leave: a connection joins at most once and reconnects
// by dialing fresh. Presence is server-to-client only, so an inbound presence
// frame falls through the switch and is ignored.
func (sm *SessionManager) HandleMessage(s *Session, msg *models.Message) {
	switch msg.Type {
	case models.MessageTypeJoin:
		if s.joined || s.left {
			return // no second join, no re-join after leave
		}
		s.UserID = msg.Payload.UserID
		s.Username = msg.Payload.Username
		s.Color = models.PickColor()
		s.joined = true
		select {
		case sm.register <- s:
		case <-sm.done:
		}

	case models.MessageTypeLeave:
		if !s.joined {
			return
		}
		s.joined = false
		s.left = true
		select {
		case sm.unregister <- s:
		case <-sm.done:
		}

	case models.MessageTypeUpdate:
		if !s.joined {
			return
		}
		sm.applyUpdate(s, msg)

	case models.MessageTypeCursor:
		if !s.joined {
			return
		}
		sm.applyCursor(s, msg)

	case models.MessageTypeTyping:
		if !s.joined {
			return
		}
		sm.applyTyping(s, msg)
	}
}

// applyUpdate replaces the document's live state in full and relays the
// update to every other member. No merge: last write wins.
func (sm *SessionManager) applyUpdate(s *Session, msg *models.Message) {
	sm.stateMu.Lock()
	st := sm.state[s.DocumentID]
	if st == nil {
		st = &documentState{}
		sm.state[s.DocumentID] = st
	}
	st.Title = msg.Payload.Title
	st.Content = msg.Payload.Content
	st.LastModified = time.Now()
	job := services.SnapshotJob{
		DocumentID: s.DocumentID,
		Title:      st.Title,
		Content:    st.Content,
	}
	sm.stateMu.Unlock()

	// A dropped snapshot is fine: the next update carries fresher state.
	if sm.snapshots != nil {
		sm.snapshots.TrySubmit(job)
	}

	sm.relay(s, &models.Message{
		Type: models.MessageTypeUpdate,
		Payload: models.MessagePayload{
			UserID:   s.UserID,
			Username: s.Username,
			Title:    msg.Payload.Title,
			Content:  msg.Payload.Content,
		},
	})
}

// applyCursor records the sender's cursor span and relays it. Content and
// title are not echoed along: the cursor coordinate space is the receiver's
// own flattened text.
func (sm *SessionManager) applyCursor(s *Session, msg *models.Message) {
	sm.rosterMu.Lock()
	if c := sm.roster[s.DocumentID][s.ID]; c != nil {
		c.CursorPosition = msg.Payload.CursorPosition
	}
	sm.rosterMu.Unlock()

	sm.relay(s, &models.Message{
		Type: models.MessageTypeCursor,
		Payload: models.MessagePayload{
			UserID:         s.UserID,
			Username:       s.Username,
			CursorPosition: msg.Payload.CursorPosition,
		},
	})
}

// applyTyping records the sender's typing flag and relays it.
func (sm *SessionManager) applyTyping(s *Session, msg *models.Message) {
	typing := *msg.Payload.IsTyping

	sm.rosterMu.Lock()
	if c := sm.roster[s.DocumentID][s.ID]; c != nil {
		c.IsTyping = typing
		if typing {
			c.LastTypingTime = time.Now()
		}
	}
	sm.rosterMu.Unlock()

	sm.relay(s, &models.Message{
		Type: models.MessageTypeTyping,
		Payload: models.MessagePayload{
			UserID:   s.UserID,
			Username: s.Username,
			IsTyping: msg.Payload.IsTyping,
		},
	})
}

func (sm *SessionManager) relay(sender *Session, msg *models.Message) {
	data, err := msg.Encode()
	if err != nil {
		log.Printf("⚠️  Failed to encode %s relay: %v", msg.Type, err)
		return
	}
	sm.broadcast <- &BroadcastMessage{
		DocumentID: sender.DocumentID,
		Message:    data,
		Sender:     sender,
	}
}

// handleRegister adds a session to a document room, announces it to existing
// members, and hands the joiner the current roster and document state.
func (sm *SessionManager) handleRegister(session *Session) {
	sm.mu.Lock()
	if sm.documents[session.DocumentID] == nil {
		sm.documents[session.DocumentID] = make(map[*Session]bool)
	}
	sm.documents[session.DocumentID][session] = true
	total := len(sm.documents[session.DocumentID])
	sm.mu.Unlock()

	sm.rosterMu.Lock()
	if sm.roster[session.DocumentID] == nil {
		sm.roster[session.DocumentID] = make(map[string]*models.Collaborator)
	}
	others := make([]*models.Collaborator, 0, len(sm.roster[session.DocumentID]))
	for _, c := range sm.roster[session.DocumentID] {
		others = append(others, c)
	}
	sm.roster[session.DocumentID][session.ID] = session.Collaborator()
	sm.rosterMu.Unlock()

	log.Printf("  Session %s joined document %s (total: %d users)",
		session.ID, session.DocumentID, total)

	// Announce to everyone already in the room. Never echoed to the joiner.
	joinMsg := &models.Message{
		Type: models.MessageTypeJoin,
		Payload: models.MessagePayload{
			UserID:   session.UserID,
			Username: session.Username,
			Color:    session.Color,
		},
	}
	if data, err := joinMsg.Encode(); err == nil {
		sm.broadcast <- &BroadcastMessage{
			DocumentID: session.DocumentID,
			Message:    data,
			Sender:     session, // Don't send to self
		}
	}

	// Roster and document snapshot for the joiner only.
	sm.stateMu.RLock()
	st := sm.state[session.DocumentID]
	presence := &models.Message{
		Type: models.MessageTypePresence,
		Payload: models.MessagePayload{
			UserID:        session.UserID,
			Username:      session.Username,
			DocumentID:    session.DocumentID,
			Color:         session.Color,
			Collaborators: others,
		},
	}
	if st != nil {
		presence.Payload.Title = st.Title
		presence.Payload.Content = st.Content
	}
	sm.stateMu.RUnlock()

	if data, err := presence.Encode(); err == nil {
		select {
		case session.Send <- data:
		default:
			log.Printf("⚠️  Session %s buffer full on join", session.ID)
		}
	}
}

// handleUnregister removes a session from its room and announces the leave.
// When the room empties, the document's live state is flushed to storage and
// dropped from memory.
func (sm *SessionManager) handleUnregister(session *Session) {
	sm.mu.Lock()
	sessions, ok := sm.documents[session.DocumentID]
	if !ok || !sessions[session] {
		sm.mu.Unlock()
		return
	}
	delete(sessions, session)
	close(session.Send)
	empty := len(sessions) == 0
	if empty {
		delete(sm.documents, session.DocumentID)
	}
	remaining := len(sessions)
	sm.mu.Unlock()

	sm.rosterMu.Lock()
	if roster, exists := sm.roster[session.DocumentID]; exists {
		delete(roster, session.ID)
		if len(roster) == 0 {
			delete(sm.roster, session.DocumentID)
		}
	}
	sm.rosterMu.Unlock()

	log.Printf("  Session %s left document %s (remaining: %d users)",
		session.ID, session.DocumentID, remaining)

	if empty {
		sm.retireDocument(session.DocumentID)
		return
	}

	leaveMsg := &models.Message{
		Type: models.MessageTypeLeave,
		Payload: models.MessagePayload{
			UserID:   session.UserID,
			Username: session.Username,
		},
	}
	if data, err := leaveMsg.Encode(); err == nil {
		sm.broadcast <- &BroadcastMessage{
			DocumentID: session.DocumentID,
			Message:    data,
			Sender:     session,
		}
	}
}

// retireDocument drops a document's live state once its room is empty,
// enqueueing a final snapshot first.
func (sm *SessionManager) retireDocument(documentID string) {
	sm.stateMu.Lock()
	st := sm.state[documentID]
	delete(sm.state, documentID)
	sm.stateMu.Unlock()

	if st == nil || sm.snapshots == nil {
		return
	}
	if !sm.snapshots.TrySubmit(services.SnapshotJob{
		DocumentID: documentID,
		Title:      st.Title,
		Content:    st.Content,
	}) {
		log.Printf("⚠️  Dropped final snapshot for document %s (queue full)", documentID)
	}
}

// handleBroadcast fans a message out to every session in a document room.
// A receiver with a full buffer is disconnected rather than allowed to stall
// delivery for the rest of the room.
func (sm *SessionManager) handleBroadcast(msg *BroadcastMessage) {
	sm.mu.RLock()
	sessions := make([]*Session, 0, len(sm.documents[msg.DocumentID]))
	for session := range sm.documents[msg.DocumentID] {
		sessions = append(sessions, session)
	}
	sm.mu.RUnlock()

	for _, session := range sessions {
		if msg.Sender != nil && session == msg.Sender {
			continue
		}

		select {
		case session.Send <- msg.Message:
			// Message queued successfully
		default:
			log.Printf("⚠️  Session %s buffer full, closing connection", session.ID)
			// Off the event loop goroutine: unregister is consumed by the
			// same loop that is running this handler.
			go func(s *Session) { sm.unregister <- s }(session)
		}
	}
}

// Broadcast queues a message for every member of a document room except the
// sender. Pass a nil sender to reach everyone.
func (sm *SessionManager) Broadcast(documentID string, message []byte, sender *Session) {
	sm.broadcast <- &BroadcastMessage{
		DocumentID: documentID,
		Message:    message,
		Sender:     sender,
	}
}

// GetSessions returns all active sessions for a document.
func (sm *SessionManager) GetSessions(documentID string) []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sessions := sm.documents[documentID]
	result := make([]*Session, 0, len(sessions))
	for session := range sessions {
		result = append(result, session)
	}
	return result
}

// Collaborators returns a copy of the presence roster for a document.
func (sm *SessionManager) Collaborators(documentID string) []*models.Collaborator {
	sm.rosterMu.RLock()
	defer sm.rosterMu.RUnlock()

	roster := sm.roster[documentID]
	result := make([]*models.Collaborator, 0, len(roster))
	for _, c := range roster {
		copied := *c
		result = append(result, &copied)
	}
	return result
}

// cleanupLoop periodically disconnects sessions that stopped responding to
// pings without closing their connection.
func (sm *SessionManager) cleanupLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sm.done:
			return
		case <-ticker.C:
			sm.cleanup()
		}
	}
}

func (sm *SessionManager) cleanup() {
	timeout := 5 * time.Minute
	now := time.Now()

	// Collect first, unregister after releasing the lock: handleUnregister
	// runs on the event loop and takes the same mutex.
	var stale []*Session
	sm.mu.RLock()
	for _, sessions := range sm.documents {
		for session := range sessions {
			if now.Sub(session.LastActiveAt) > timeout {
				stale = append(stale, session)
			}
		}
	}
	sm.mu.RUnlock()

	for _, session := range stale {
		log.Printf("  Cleaning up inactive session %s", session.ID)
		session.Conn.Close()
		select {
		case sm.unregister <- session:
		case <-sm.done:
			return
		}
	}
}

// Shutdown closes all connections and stops the event loop.
func (sm *SessionManager) Shutdown() {
	log.Println("🛑 Shutting down session manager...")

	close(sm.done)

	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, sessions := range sm.documents {
		for session := range sessions {
			close(session.Send)
			session.Conn.Close()
		}
	}
	sm.documents = make(map[string]map[*Session]bool)

	// Flush final snapshots for every document that was still live.
	sm.stateMu.Lock()
	states := sm.state
	sm.state = make(map[string]*documentState)
	sm.stateMu.Unlock()

	if sm.snapshots != nil {
		for id, st := range states {
			if err := sm.snapshots.Submit(services.SnapshotJob{
				DocumentID: id,
				Title:      st.Title,
				Content:    st.Content,
			}); err != nil {
				log.Printf("⚠️  Final snapshot for document %s not queued: %v", id, err)
			}
		}
	}

	log.Println("✓ Session manager shutdown complete")
}

// Session methods

// ReadPump reads and dispatches messages from the WebSocket connection.
// Closing the connection is the only cancellation primitive: the pump's exit
// triggers unregister, which broadcasts the leave before resources go away.
func (s *Session) ReadPump(ctx context.Context) {
	defer func() {
		if s.joined {
			// The event loop may already be gone; never block handing a
			// session back to a stopped hub.
			select {
			case s.Manager.unregister <- s:
			case <-s.Manager.done:
			}
		}
		s.Conn.Close()
	}()

	s.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	s.Conn.SetPongHandler(func(string) error {
		s.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		s.LastActiveAt = time.Now()
		return nil
	})

	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		s.LastActiveAt = time.Now()

		msg, err := models.ParseMessage(raw)
		if err != nil {
			// Malformed frames are dropped, not answered: one bad peer must
			// not disrupt the session.
			continue
		}

		msgCtx, span := middleware.StartSpan(ctx, "WebSocket.ProcessMessage",
			attribute.String("session.id", s.ID),
			attribute.String("document.id", s.DocumentID),
			attribute.String("message.type", string(msg.Type)),
		)

		s.Manager.HandleMessage(s, msg)

		span.End()
		_ = msgCtx
	}
}

// WritePump writes queued messages to the WebSocket connection. Running in
// its own goroutine keeps a slow reader from ever blocking the hub.
func (s *Session) WritePump(ctx context.Context) {
	ticker := time.NewTicker(54 * time.Second) // Ping interval
	defer func() {
		ticker.Stop()
		s.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.Send:
			s.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				s.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := s.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Drain additional queued messages
			n := len(s.Send)
			for i := 0; i < n; i++ {
				if err := s.Conn.WriteMessage(websocket.TextMessage, <-s.Send); err != nil {
					return
				}
			}

		case <-ticker.C:
			s.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
