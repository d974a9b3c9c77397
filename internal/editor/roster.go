package editor

import (
	"strings"
	"sync"
	"time"

	"collab-docs/internal/models"
)

// TypingTimeout is how stale a collaborator's typing flag may get before the
// sweep clears it, covering for a lost "stopped typing" message.
const TypingTimeout = 3 * time.Second

// Roster is the client's local view of who else is in the session. Entries
// are per connection, so the same userId can legitimately appear twice (two
// tabs); a leave removes exactly one of them.
type Roster struct {
	mu      sync.Mutex
	entries []*models.Collaborator
}

func NewRoster() *Roster {
	return &Roster{}
}

// Add appends a collaborator announced by a join broadcast.
func (r *Roster) Add(c *models.Collaborator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, c)
}

// AddAll seeds the roster from a presence snapshot.
func (r *Roster) AddAll(cs []*models.Collaborator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, cs...)
}

// RemoveOne removes the first entry matching userID and reports whether one
// was found.
func (r *Roster) RemoveOne(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, c := range r.entries {
		if c.UserID == userID {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// SetCursor records the latest cursor span for every entry with that userID.
func (r *Roster) SetCursor(userID string, pos *models.CursorPosition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.entries {
		if c.UserID == userID {
			c.CursorPosition = pos
		}
	}
}

// SetTyping flips the typing flag for every entry with that userID.
func (r *Roster) SetTyping(userID string, typing bool, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.entries {
		if c.UserID == userID {
			c.IsTyping = typing
			if typing {
				c.LastTypingTime = now
			}
		}
	}
}

// SweepExpired clears any typing flag older than TypingTimeout and returns
// how many it cleared.
func (r *Roster) SweepExpired(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cleared := 0
	for _, c := range r.entries {
		if c.IsTyping && now.Sub(c.LastTypingTime) > TypingTimeout {
			c.IsTyping = false
			cleared++
		}
	}
	return cleared
}

// Color returns the color of the first entry with that userID.
func (r *Roster) Color(userID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.entries {
		if c.UserID == userID {
			return c.Color
		}
	}
	return ""
}

// List returns a copy of the roster.
func (r *Roster) List() []*models.Collaborator {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.Collaborator, 0, len(r.entries))
	for _, c := range r.entries {
		copied := *c
		out = append(out, &copied)
	}
	return out
}

// TypingSummary renders the "who is typing" line for the rendering layer:
// "alice is typing..." or "alice, bob are typing...", empty when nobody is.
func (r *Roster) TypingSummary() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	for _, c := range r.entries {
		if c.IsTyping {
			names = append(names, c.Username)
		}
	}

	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0] + " is typing..."
	default:
		return strings.Join(names, ", ") + " are typing..."
	}
}
