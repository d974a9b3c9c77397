package editor

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"collab-docs/internal/models"

	"github.com/gorilla/websocket"
)

const (
	// QuietPeriod is how long after the last local edit the client waits
	// before broadcasting that it stopped typing.
	QuietPeriod = 500 * time.Millisecond

	// sweepInterval is how often stale remote typing flags are re-checked.
	sweepInterval = 1 * time.Second
)

// Client is one member of an editing session: a single WebSocket connection,
// the local render buffer, and the presence roster.
//
// The client runs a two-state loop. Idle: remote updates replace the buffer
// and the selection is re-anchored. A local edit enters the in-flight state,
// immediately emitting the full document plus a typing flag; the quiet-period
// timer returns it to Idle. Remote updates are applied in both states — an
// in-flight local edit does not shield the buffer, which is exactly the
// last-write-wins tradeoff this protocol accepts.
//
// There is no automatic reconnection. When Done() is closed the connection is
// gone along with its presence; the owner reconnects by creating a fresh
// client, which joins as a new collaborator.
type Client struct {
	UserID   string
	Username string

	conn    *websocket.Conn
	writeMu sync.Mutex // gorilla allows one concurrent writer

	mu     sync.Mutex // guards buffer, color, typing
	buffer *Buffer
	color  string
	typing bool
	quiet  *time.Timer

	roster *Roster
	placer MarkerPlacer

	// OnChange, when set before Run, is invoked after every applied remote
	// change so the rendering layer can redraw.
	OnChange func()

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to an editing session and sends the join for the supplied
// identity. baseURL is the server root, e.g. "ws://localhost:8000".
func Dial(ctx context.Context, baseURL, documentID, userID, username string) (*Client, error) {
	endpoint := fmt.Sprintf("%s/ws/editor/%s", strings.TrimRight(baseURL, "/"), documentID)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial editor session: %w", err)
	}

	c := &Client{
		UserID:   userID,
		Username: username,
		conn:     conn,
		buffer:   NewBuffer(documentID),
		roster:   NewRoster(),
		done:     make(chan struct{}),
	}

	if err := c.send(&models.Message{
		Type: models.MessageTypeJoin,
		Payload: models.MessagePayload{
			UserID:     userID,
			Username:   username,
			DocumentID: documentID,
		},
	}); err != nil {
		conn.Close()
		return nil, err
	}

	return c, nil
}

// SetMarkerPlacer wires the rendering layer's caret placement. Optional.
func (c *Client) SetMarkerPlacer(placer MarkerPlacer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.placer = placer
}

// Run reads and applies session traffic until the connection drops or Close
// is called. It owns the typing-decay sweep for its lifetime; both are torn
// down together, so no timer outlives the session.
func (c *Client) Run() {
	go c.sweepLoop()

	defer c.Close()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := models.ParseMessage(raw)
		if err != nil {
			// Dropped, same as the server side: a malformed frame from one
			// peer must not take the session down.
			continue
		}

		c.handle(msg)
	}
}

func (c *Client) handle(msg *models.Message) {
	switch msg.Type {
	case models.MessageTypePresence:
		c.mu.Lock()
		c.color = msg.Payload.Color
		if msg.Payload.Content != "" || msg.Payload.Title != "" {
			c.buffer.ApplyRemote(msg.Payload.Title, msg.Payload.Content)
		}
		c.mu.Unlock()
		c.roster.AddAll(msg.Payload.Collaborators)
		c.notify()

	case models.MessageTypeUpdate:
		c.mu.Lock()
		c.buffer.ApplyRemote(msg.Payload.Title, msg.Payload.Content)
		c.mu.Unlock()
		c.notify()

	case models.MessageTypeJoin:
		c.roster.Add(&models.Collaborator{
			UserID:   msg.Payload.UserID,
			Username: msg.Payload.Username,
			Color:    msg.Payload.Color,
		})
		c.notify()

	case models.MessageTypeLeave:
		if c.roster.RemoveOne(msg.Payload.UserID) {
			c.mu.Lock()
			placer := c.placer
			c.mu.Unlock()
			if placer != nil {
				placer.RemoveMarker(msg.Payload.UserID)
			}
			c.notify()
		}

	case models.MessageTypeCursor:
		c.roster.SetCursor(msg.Payload.UserID, msg.Payload.CursorPosition)
		c.mu.Lock()
		markup := c.buffer.Content
		placer := c.placer
		c.mu.Unlock()
		ProjectCursor(placer, markup, msg.Payload.UserID,
			c.roster.Color(msg.Payload.UserID), msg.Payload.CursorPosition)
		c.notify()

	case models.MessageTypeTyping:
		c.roster.SetTyping(msg.Payload.UserID, *msg.Payload.IsTyping, time.Now())
		c.notify()
	}
}

// EditContent records a local edit and ships the whole document to the
// session: full state on every change, no diffs.
func (c *Client) EditContent(content string) error {
	c.mu.Lock()
	c.buffer.SetLocal(c.buffer.Title, content)
	title := c.buffer.Title
	c.mu.Unlock()

	if err := c.send(&models.Message{
		Type: models.MessageTypeUpdate,
		Payload: models.MessagePayload{
			UserID:   c.UserID,
			Username: c.Username,
			Title:    title,
			Content:  content,
		},
	}); err != nil {
		return err
	}

	c.startTyping()
	return nil
}

// EditTitle ships a title change on the same update message as content.
func (c *Client) EditTitle(title string) error {
	c.mu.Lock()
	c.buffer.SetLocal(title, c.buffer.Content)
	content := c.buffer.Content
	c.mu.Unlock()

	return c.send(&models.Message{
		Type: models.MessageTypeUpdate,
		Payload: models.MessagePayload{
			UserID:   c.UserID,
			Username: c.Username,
			Title:    title,
			Content:  content,
		},
	})
}

// SetSelection records the local caret span and reports it to the session.
func (c *Client) SetSelection(start, end int) error {
	c.mu.Lock()
	c.buffer.SetSelection(start, end)
	pos := c.buffer.Selection
	c.mu.Unlock()

	return c.send(&models.Message{
		Type: models.MessageTypeCursor,
		Payload: models.MessagePayload{
			UserID:         c.UserID,
			Username:       c.Username,
			CursorPosition: &pos,
		},
	})
}

// startTyping flips the local typing flag on and (re)arms the quiet-period
// timer that flips it back off.
func (c *Client) startTyping() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.typing {
		c.typing = true
		go c.sendTyping(true)
	}

	if c.quiet == nil {
		c.quiet = time.AfterFunc(QuietPeriod, c.quietExpired)
	} else {
		c.quiet.Stop()
		c.quiet.Reset(QuietPeriod)
	}
}

func (c *Client) quietExpired() {
	c.mu.Lock()
	wasTyping := c.typing
	c.typing = false
	c.mu.Unlock()

	if wasTyping {
		c.sendTyping(false)
	}
}

func (c *Client) sendTyping(typing bool) {
	if err := c.send(&models.Message{
		Type: models.MessageTypeTyping,
		Payload: models.MessagePayload{
			UserID:   c.UserID,
			Username: c.Username,
			IsTyping: &typing,
		},
	}); err != nil {
		log.Printf("Failed to send typing=%v: %v", typing, err)
	}
}

func (c *Client) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			if c.roster.SweepExpired(now) > 0 {
				c.notify()
			}
		}
	}
}

func (c *Client) send(msg *models.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) notify() {
	if c.OnChange != nil {
		c.OnChange()
	}
}

// Snapshot returns a copy of the local render buffer.
func (c *Client) Snapshot() Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.buffer
}

// Color returns the color the session assigned to this connection.
func (c *Client) Color() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.color
}

// Collaborators returns the current local roster.
func (c *Client) Collaborators() []*models.Collaborator {
	return c.roster.List()
}

// TypingSummary returns the rendering layer's "who is typing" line.
func (c *Client) TypingSummary() string {
	return c.roster.TypingSummary()
}

// Done is closed once the session is over, however it ended. The owner can
// use it to surface a reconnect affordance.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close leaves the session and releases the connection and timers. Safe to
// call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.quiet != nil {
			c.quiet.Stop()
		}
		c.mu.Unlock()

		// Best effort: the server treats a bare transport close the same way.
		c.send(&models.Message{
			Type: models.MessageTypeLeave,
			Payload: models.MessagePayload{
				UserID:   c.UserID,
				Username: c.Username,
			},
		})

		close(c.done)
		c.conn.Close()
	})
}
