package models

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseMessageUpdate(t *testing.T) {
	raw := []byte(`{"type":"update","payload":{"userId":"u1","username":"alice","title":"Doc","content":"<p>hi</p>"}}`)

	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("expected valid update, got %v", err)
	}
	if msg.Type != MessageTypeUpdate {
		t.Fatalf("expected update type, got %s", msg.Type)
	}
	if msg.Payload.Content != "<p>hi</p>" {
		t.Fatalf("unexpected content %q", msg.Payload.Content)
	}
}

func TestParseMessageEmptyContentIsValid(t *testing.T) {
	// An update that clears the document is still an update.
	raw := []byte(`{"type":"update","payload":{"userId":"u1","username":"alice"}}`)

	if _, err := ParseMessage(raw); err != nil {
		t.Fatalf("expected empty-content update to be valid, got %v", err)
	}
}

func TestParseMessageMalformed(t *testing.T) {
	cases := map[string][]byte{
		"not json":         []byte(`{{{`),
		"missing identity": []byte(`{"type":"update","payload":{"content":"x"}}`),
		"cursor no span":   []byte(`{"type":"cursor","payload":{"userId":"u1","username":"alice"}}`),
		"typing no flag":   []byte(`{"type":"typing","payload":{"userId":"u1","username":"alice"}}`),
		"unknown type":     []byte(`{"type":"format","payload":{"userId":"u1","username":"alice"}}`),
	}

	for name, raw := range cases {
		if _, err := ParseMessage(raw); !errors.Is(err, ErrMalformedMessage) {
			t.Fatalf("%s: expected ErrMalformedMessage, got %v", name, err)
		}
	}
}

func TestParseMessagePresence(t *testing.T) {
	// The snapshot a joiner receives must survive the same decode path as
	// every other frame.
	raw := []byte(`{"type":"presence","payload":{"userId":"u1","username":"alice","color":"#FF6B6B","title":"Doc","content":"<p>hi</p>","collaborators":[{"userId":"u2","username":"bob","color":"#4ECDC4"}]}}`)

	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("expected valid presence snapshot, got %v", err)
	}
	if msg.Payload.Color != "#FF6B6B" {
		t.Fatalf("unexpected color %q", msg.Payload.Color)
	}
	if len(msg.Payload.Collaborators) != 1 || msg.Payload.Collaborators[0].UserID != "u2" {
		t.Fatalf("unexpected roster %+v", msg.Payload.Collaborators)
	}
}

func TestParseMessageCursor(t *testing.T) {
	raw := []byte(`{"type":"cursor","payload":{"userId":"u1","username":"alice","cursorPosition":{"start":10,"end":12}}}`)

	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("expected valid cursor, got %v", err)
	}
	if msg.Payload.CursorPosition.Start != 10 || msg.Payload.CursorPosition.End != 12 {
		t.Fatalf("unexpected span %+v", msg.Payload.CursorPosition)
	}
}

func TestEncodeOmitsAbsentFields(t *testing.T) {
	typing := true
	msg := &Message{
		Type: MessageTypeTyping,
		Payload: MessagePayload{
			UserID:   "u1",
			Username: "alice",
			IsTyping: &typing,
		},
	}

	data, err := msg.Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	// Typing messages carry no document payload.
	for _, field := range []string{"content", "title", "cursorPosition"} {
		if bytes.Contains(data, []byte(field)) {
			t.Fatalf("typing message should not carry %q: %s", field, data)
		}
	}
}

func TestPickColorFromPalette(t *testing.T) {
	for i := 0; i < 100; i++ {
		color := PickColor()
		found := false
		for _, c := range CursorColors {
			if c == color {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("color %s not in palette", color)
		}
	}
}
