package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies a message in the editor wire protocol.
type MessageType string

const (
	MessageTypeJoin   MessageType = "join"
	MessageTypeLeave  MessageType = "leave"
	MessageTypeUpdate MessageType = "update"
	MessageTypeCursor MessageType = "cursor"
	MessageTypeTyping MessageType = "typing"

	// MessageTypePresence is server-to-client only: a roster and document
	// snapshot delivered to a connection right after it joins.
	MessageTypePresence MessageType = "presence"
)

// ErrMalformedMessage marks a payload missing fields its type requires.
// Receivers drop such messages silently so one bad peer cannot disrupt the
// rest of the session.
var ErrMalformedMessage = errors.New("malformed message")

// Message is the wire envelope: {type, payload} as JSON text frames.
type Message struct {
	Type    MessageType    `json:"type"`
	Payload MessagePayload `json:"payload"`
}

// MessagePayload carries the union of per-type fields. Optional fields are
// pointers so absent is distinguishable from the zero value.
type MessagePayload struct {
	UserID         string          `json:"userId"`
	Username       string          `json:"username"`
	DocumentID     string          `json:"documentId,omitempty"`
	Title          string          `json:"title,omitempty"`
	Content        string          `json:"content,omitempty"`
	CursorPosition *CursorPosition `json:"cursorPosition,omitempty"`
	IsTyping       *bool           `json:"isTyping,omitempty"`

	// Set by the server on join broadcasts and presence snapshots.
	Color         string          `json:"color,omitempty"`
	Collaborators []*Collaborator `json:"collaborators,omitempty"`
}

// ParseMessage decodes and validates an inbound frame.
func ParseMessage(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Validate checks the fields required for the message's type.
// Content and title are allowed to be empty everywhere: an update that clears
// the document is a legitimate update.
func (m *Message) Validate() error {
	if m.Payload.UserID == "" || m.Payload.Username == "" {
		return fmt.Errorf("%w: missing identity", ErrMalformedMessage)
	}

	switch m.Type {
	case MessageTypeJoin, MessageTypeLeave, MessageTypeUpdate, MessageTypePresence:
		return nil
	case MessageTypeCursor:
		if m.Payload.CursorPosition == nil {
			return fmt.Errorf("%w: cursor without position", ErrMalformedMessage)
		}
		return nil
	case MessageTypeTyping:
		if m.Payload.IsTyping == nil {
			return fmt.Errorf("%w: typing without flag", ErrMalformedMessage)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, m.Type)
	}
}

// Encode marshals the message for the wire.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}
