package editor

import (
	"html"
	"strings"

	"collab-docs/internal/models"
)

// Cursor projection between markup and flattened text.
//
// Cursor spans travel on the wire as rune offsets into the flattened text of
// the document body, never into the markup. Peers whose render trees differ
// can still agree on "between the 5th and 6th character". The flattened text
// is modeled as the ordered list of text segments the rendered structure
// would produce (one per text run between tags).

// SegmentPoint addresses a caret inside the rendered structure: the index of
// a text segment and a rune offset within it.
type SegmentPoint struct {
	Segment int
	Offset  int
}

// MarkerPlacer is implemented by the rendering layer. The core decides where
// a remote caret belongs; pixels are someone else's problem.
type MarkerPlacer interface {
	PlaceMarker(userID, color string, at SegmentPoint)
	RemoveMarker(userID string)
}

// Segments splits serialized markup into its text runs, tags stripped and
// entities decoded. Empty runs (between adjacent tags) are dropped, the same
// way an empty DOM text node never exists.
func Segments(markup string) []string {
	var segments []string
	var current strings.Builder
	inTag := false

	for _, r := range markup {
		switch {
		case r == '<':
			if current.Len() > 0 {
				segments = append(segments, html.UnescapeString(current.String()))
				current.Reset()
			}
			inTag = true
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		segments = append(segments, html.UnescapeString(current.String()))
	}

	return segments
}

// Flatten returns the plain-character sequence of the markup's visible
// content: the cursor coordinate space.
func Flatten(markup string) string {
	return strings.Join(Segments(markup), "")
}

// FlattenedLength returns the rune length of the markup's flattened text.
func FlattenedLength(markup string) int {
	n := 0
	for _, seg := range Segments(markup) {
		n += len([]rune(seg))
	}
	return n
}

// SelectionToOffsets converts a selection expressed against the rendered
// segments into a flattened {start, end} span, by counting the characters of
// every preceding segment.
func SelectionToOffsets(segments []string, start, end SegmentPoint) models.CursorPosition {
	return models.CursorPosition{
		Start: pointToOffset(segments, start),
		End:   pointToOffset(segments, end),
	}
}

func pointToOffset(segments []string, p SegmentPoint) int {
	offset := 0
	for i, seg := range segments {
		length := len([]rune(seg))
		if i == p.Segment {
			if p.Offset < length {
				return offset + p.Offset
			}
			return offset + length
		}
		offset += length
	}
	return offset
}

// LocateOffset walks the segments to find the caret point for a flattened
// offset. An offset beyond the local content (the sender raced ahead of an
// update we have not applied, or applied one we overwrote) clamps to the end
// of the content rather than failing.
func LocateOffset(segments []string, offset int) SegmentPoint {
	if offset < 0 {
		offset = 0
	}

	remaining := offset
	for i, seg := range segments {
		length := len([]rune(seg))
		if remaining <= length {
			return SegmentPoint{Segment: i, Offset: remaining}
		}
		remaining -= length
	}

	if len(segments) == 0 {
		return SegmentPoint{}
	}
	last := len(segments) - 1
	return SegmentPoint{Segment: last, Offset: len([]rune(segments[last]))}
}

// ProjectCursor places a collaborator's marker at their reported span within
// the local markup, replacing any marker previously shown for them.
func ProjectCursor(placer MarkerPlacer, markup string, userID, color string, pos *models.CursorPosition) {
	if placer == nil || pos == nil {
		return
	}

	placer.RemoveMarker(userID)
	placer.PlaceMarker(userID, color, LocateOffset(Segments(markup), pos.Start))
}
