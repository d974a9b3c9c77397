package editor

import (
	"testing"
)

func TestApplyRemoteReplacesWholeDocument(t *testing.T) {
	b := NewBuffer("doc-1")
	b.SetLocal("Mine", "<p>local draft</p>")

	b.ApplyRemote("Theirs", "<p>remote version</p>")

	if b.Title != "Theirs" || b.Content != "<p>remote version</p>" {
		t.Fatalf("expected full replacement, got %q / %q", b.Title, b.Content)
	}
}

func TestApplyRemoteIsIdempotent(t *testing.T) {
	b := NewBuffer("doc-1")
	b.SetSelection(3, 3)

	b.ApplyRemote("Doc", "<p>hello world</p>")
	first := *b
	b.ApplyRemote("Doc", "<p>hello world</p>")

	if b.Title != first.Title || b.Content != first.Content || b.Selection != first.Selection {
		t.Fatalf("second application changed the buffer: %+v vs %+v", *b, first)
	}
}

func TestApplyRemotePreservesSelection(t *testing.T) {
	b := NewBuffer("doc-1")
	b.SetLocal("Doc", "hello world")
	b.SetSelection(4, 9)

	b.ApplyRemote("Doc", "hello there world")

	if b.Selection.Start != 4 || b.Selection.End != 9 {
		t.Fatalf("selection should re-anchor at the same offsets, got %+v", b.Selection)
	}
}

func TestApplyRemoteCollapsesSelectionOnShorterContent(t *testing.T) {
	b := NewBuffer("doc-1")
	b.SetLocal("Doc", "a longer piece of content")
	b.SetSelection(10, 20)

	b.ApplyRemote("Doc", "short")

	if b.Selection.Start != 5 || b.Selection.End != 5 {
		t.Fatalf("selection should collapse to nearest valid offset, got %+v", b.Selection)
	}
}

func TestSelectionClampsToFlattenedText(t *testing.T) {
	b := NewBuffer("doc-1")
	// 11 visible characters inside 25 characters of markup.
	b.SetLocal("Doc", "<p>hello </p><p>world</p>")

	b.SetSelection(0, 999)

	if b.Selection.End != 11 {
		t.Fatalf("selection must clamp against flattened text, got %+v", b.Selection)
	}
}

func TestSetSelectionNormalizesBackwardSpan(t *testing.T) {
	b := NewBuffer("doc-1")
	b.SetLocal("Doc", "hello world")

	b.SetSelection(8, 2)

	if b.Selection.Start != 2 || b.Selection.End != 8 {
		t.Fatalf("backward span should normalize, got %+v", b.Selection)
	}
}
