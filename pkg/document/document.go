// Package document translates between byte offsets and editor positions.
//
// Positions are 0-based lines and 0-based characters counted in UTF-16
// code units, which is what editors and MCP/LSP clients send.
package document

import (
	"sort"
	"unicode/utf16"
	"unicode/utf8"
)

// Position is a 0-based line/character location.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Span is a start/end pair of positions.
type Span struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Document is an immutable text with a line index.
type Document struct {
	text       string
	lineStarts []int
}

// New indexes text. Lines end at "\n"; a "\r" before it belongs to the
// line break, not to the line content.
func New(text string) *Document {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Document{text: text, lineStarts: starts}
}

// Text returns the document text.
func (d *Document) Text() string {
	return d.text
}

// LineCount returns the number of lines (at least 1).
func (d *Document) LineCount() int {
	return len(d.lineStarts)
}

// PositionAt converts a byte offset to a position. Offsets are clamped to
// the text.
func (d *Document) PositionAt(offset int) Position {
	offset = clamp(offset, 0, len(d.text))
	line := sort.Search(len(d.lineStarts), func(i int) bool {
		return d.lineStarts[i] > offset
	}) - 1

	start := d.lineStarts[line]
	end := min(offset, d.contentEnd(line))
	return Position{Line: line, Character: utf16Len(d.text[start:end])}
}

// OffsetAt converts a position to a byte offset. Lines past the end map to
// the end of the text; characters past the end of a line map to the end of
// that line's content.
func (d *Document) OffsetAt(p Position) int {
	if p.Line < 0 {
		return 0
	}
	if p.Line >= len(d.lineStarts) {
		return len(d.text)
	}

	offset := d.lineStarts[p.Line]
	end := d.contentEnd(p.Line)
	units := 0
	for offset < end && units < p.Character {
		r, size := utf8.DecodeRuneInString(d.text[offset:end])
		units += runeUnits(r)
		offset += size
	}
	return offset
}

// SpanOf converts a byte range to a span.
func (d *Document) SpanOf(start, end int) Span {
	return Span{Start: d.PositionAt(start), End: d.PositionAt(end)}
}

// contentEnd returns the offset where the line's content stops, excluding
// its "\n" or "\r\n" terminator.
func (d *Document) contentEnd(line int) int {
	if line+1 >= len(d.lineStarts) {
		return len(d.text)
	}
	end := d.lineStarts[line+1] - 1
	if end > d.lineStarts[line] && d.text[end-1] == '\r' {
		end--
	}
	return end
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}

func runeUnits(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
