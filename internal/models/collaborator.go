package models

import (
	"math/rand"
	"time"
)

// CursorPosition is a {start, end} pair of rune offsets into the flattened
// text of a document's content. A collapsed cursor has Start == End.
type CursorPosition struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Collaborator is one connected identity within an editing session.
// Identity is per connection, not per user: the same user with two tabs open
// against one document appears as two independent collaborators, each with
// its own color.
type Collaborator struct {
	UserID         string          `json:"userId"`
	Username       string          `json:"username"`
	Color          string          `json:"color"`
	CursorPosition *CursorPosition `json:"cursorPosition,omitempty"`
	IsTyping       bool            `json:"isTyping,omitempty"`
	LastTypingTime time.Time       `json:"-"`
}

// CursorColors is the palette remote cursors and avatars are drawn from.
var CursorColors = [8]string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4",
	"#FFEEAD", "#D4A5A5", "#9B59B6", "#3498DB",
}

// PickColor picks a palette color for a joining collaborator. Each join picks
// independently; two members sharing a color is allowed.
func PickColor() string {
	return CursorColors[rand.Intn(len(CursorColors))]
}
