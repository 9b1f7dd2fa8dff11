// Package edit models a batch of text replacements that is validated and
// applied as a single all-or-nothing transaction.
package edit

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrOutOfBounds is returned when an edit span falls outside the text.
	ErrOutOfBounds = errors.New("edit span out of bounds")

	// ErrOverlap is returned when two edit spans overlap.
	ErrOverlap = errors.New("edit spans overlap")
)

// Edit replaces text[Start:End] with NewText. Offsets refer to the original
// text, never to text produced by earlier edits in the same transaction.
type Edit struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	NewText string `json:"new_text"`
}

// Transaction is an ordered set of non-overlapping edits.
type Transaction struct {
	Edits []Edit `json:"edits"`
}

// Add appends e to the transaction. Validation happens on Apply.
func (t *Transaction) Add(e Edit) {
	t.Edits = append(t.Edits, e)
}

// Len returns the number of edits.
func (t Transaction) Len() int {
	return len(t.Edits)
}

// Sorted returns a copy of the edits ordered by start offset.
func (t Transaction) Sorted() []Edit {
	out := make([]Edit, len(t.Edits))
	copy(out, t.Edits)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out
}

// Validate checks every edit against a text of size bytes.
func (t Transaction) Validate(size int) error {
	return validate(t.Sorted(), size)
}

// Apply returns text with every edit applied. On error text is not touched
// and no partial result is returned.
func (t Transaction) Apply(text string) (string, error) {
	edits := t.Sorted()
	if err := validate(edits, len(text)); err != nil {
		return "", err
	}
	if len(edits) == 0 {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	cursor := 0
	for _, e := range edits {
		b.WriteString(text[cursor:e.Start])
		b.WriteString(e.NewText)
		cursor = e.End
	}
	b.WriteString(text[cursor:])
	return b.String(), nil
}

// validate expects edits sorted by Start.
func validate(edits []Edit, size int) error {
	for i, e := range edits {
		if e.Start < 0 || e.End < e.Start || e.End > size {
			return fmt.Errorf("%w: [%d,%d) in text of %d bytes", ErrOutOfBounds, e.Start, e.End, size)
		}
		if i > 0 && edits[i-1].End > e.Start {
			return fmt.Errorf("%w: [%d,%d) and [%d,%d)", ErrOverlap,
				edits[i-1].Start, edits[i-1].End, e.Start, e.End)
		}
	}
	return nil
}
