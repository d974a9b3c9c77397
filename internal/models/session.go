package models

import (
	"time"

	"github.com/segmentio/ksuid"
)

// Session represents an active WebSocket connection to a document.
// The ID is a KSUID, so sessions sort by connection time.
type Session struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"documentId"`
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Color        string    `json:"color"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

func NewSession(documentID string) *Session {
	return &Session{
		ID:           ksuid.New().String(),
		DocumentID:   documentID,
		ConnectedAt:  time.Now(),
		LastActiveAt: time.Now(),
	}
}

// Collaborator returns the presence view of this session.
func (s *Session) Collaborator() *Collaborator {
	return &Collaborator{
		UserID:   s.UserID,
		Username: s.Username,
		Color:    s.Color,
	}
}
