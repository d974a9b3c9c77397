package editor

import (
	"time"

	"collab-docs/internal/models"
)

// Buffer is the client's rendered copy of the document: a lagging replica
// that every accepted remote update overwrites in full.
type Buffer struct {
	DocumentID   string
	Title        string
	Content      string
	LastModified time.Time

	// Selection is the local caret span in flattened-text offsets.
	Selection models.CursorPosition
}

func NewBuffer(documentID string) *Buffer {
	return &Buffer{
		DocumentID:   documentID,
		Title:        "Untitled Document",
		LastModified: time.Now(),
	}
}

// ApplyRemote replaces the buffer with a remote update, preserving the local
// selection by re-anchoring it at the same offsets. If the new content is
// shorter than the old selection reached, the selection collapses to the
// nearest valid offset. Applying the same update twice is a no-op beyond the
// timestamp.
func (b *Buffer) ApplyRemote(title, content string) {
	b.Title = title
	b.Content = content
	b.LastModified = time.Now()

	limit := FlattenedLength(content)
	if b.Selection.Start > limit {
		b.Selection.Start = limit
	}
	if b.Selection.End > limit {
		b.Selection.End = limit
	}
}

// SetLocal records a local edit. The edit surface owns the caret during
// typing, so the selection is left alone.
func (b *Buffer) SetLocal(title, content string) {
	b.Title = title
	b.Content = content
	b.LastModified = time.Now()
}

// SetSelection records the local caret span, clamped to the content.
func (b *Buffer) SetSelection(start, end int) {
	limit := FlattenedLength(b.Content)
	b.Selection = models.CursorPosition{
		Start: clamp(start, limit),
		End:   clamp(end, limit),
	}
	if b.Selection.End < b.Selection.Start {
		b.Selection.Start, b.Selection.End = b.Selection.End, b.Selection.Start
	}
}

func clamp(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
