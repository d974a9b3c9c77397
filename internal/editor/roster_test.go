package editor

import (
	"testing"
	"time"

	"collab-docs/internal/models"
)

func TestRosterRemovesExactlyOneEntry(t *testing.T) {
	r := NewRoster()
	// Same user in two tabs: two independent entries.
	r.Add(&models.Collaborator{UserID: "u1", Username: "alice", Color: "#FF6B6B"})
	r.Add(&models.Collaborator{UserID: "u1", Username: "alice", Color: "#4ECDC4"})
	r.Add(&models.Collaborator{UserID: "u2", Username: "bob"})

	if !r.RemoveOne("u1") {
		t.Fatalf("expected a removal")
	}

	remaining := r.List()
	if len(remaining) != 2 {
		t.Fatalf("expected 2 entries left, got %d", len(remaining))
	}
	count := 0
	for _, c := range remaining {
		if c.UserID == "u1" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("exactly one u1 entry should survive, found %d", count)
	}
}

func TestRosterRemoveUnknownUser(t *testing.T) {
	r := NewRoster()
	r.Add(&models.Collaborator{UserID: "u1", Username: "alice"})

	if r.RemoveOne("nobody") {
		t.Fatalf("removal of unknown user must report false")
	}
	if len(r.List()) != 1 {
		t.Fatalf("roster must be untouched")
	}
}

func TestRosterCursorLatestWins(t *testing.T) {
	r := NewRoster()
	r.Add(&models.Collaborator{UserID: "u1", Username: "alice"})

	r.SetCursor("u1", &models.CursorPosition{Start: 0, End: 0})
	r.SetCursor("u1", &models.CursorPosition{Start: 10, End: 12})

	entries := r.List()
	if entries[0].CursorPosition == nil {
		t.Fatalf("cursor not recorded")
	}
	if entries[0].CursorPosition.Start != 10 || entries[0].CursorPosition.End != 12 {
		t.Fatalf("expected latest span 10..12, got %+v", entries[0].CursorPosition)
	}
}

func TestTypingAutoClearsAfterTimeout(t *testing.T) {
	r := NewRoster()
	r.Add(&models.Collaborator{UserID: "u1", Username: "alice"})

	start := time.Now()
	r.SetTyping("u1", true, start)

	// Just under the timeout: still typing.
	if cleared := r.SweepExpired(start.Add(2900 * time.Millisecond)); cleared != 0 {
		t.Fatalf("swept too early")
	}
	if !r.List()[0].IsTyping {
		t.Fatalf("typing flag should survive a sweep before the timeout")
	}

	// No explicit typing=false ever arrives; the sweep self-heals.
	if cleared := r.SweepExpired(start.Add(3100 * time.Millisecond)); cleared != 1 {
		t.Fatalf("expected one cleared flag")
	}
	if r.List()[0].IsTyping {
		t.Fatalf("typing flag must be cleared after 3.1s of silence")
	}
}

func TestTypingSummary(t *testing.T) {
	r := NewRoster()
	r.Add(&models.Collaborator{UserID: "u1", Username: "alice"})
	r.Add(&models.Collaborator{UserID: "u2", Username: "bob"})

	if got := r.TypingSummary(); got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}

	now := time.Now()
	r.SetTyping("u1", true, now)
	if got := r.TypingSummary(); got != "alice is typing..." {
		t.Fatalf("unexpected summary %q", got)
	}

	r.SetTyping("u2", true, now)
	if got := r.TypingSummary(); got != "alice, bob are typing..." {
		t.Fatalf("unexpected summary %q", got)
	}
}
