package edit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		edits []Edit
		want  string
	}{
		{name: "no edits", text: "abc", want: "abc"},
		{name: "single", text: "ts=123 end", edits: []Edit{{Start: 3, End: 6, NewText: "X"}}, want: "ts=X end"},
		{
			name:  "unordered edits use original offsets",
			text:  "0123456789",
			edits: []Edit{{Start: 7, End: 9, NewText: "b"}, {Start: 1, End: 3, NewText: "aaaa"}},
			want:  "0aaaa3456b9",
		},
		{
			name:  "touching spans",
			text:  "aabb",
			edits: []Edit{{Start: 0, End: 2, NewText: "X"}, {Start: 2, End: 4, NewText: "Y"}},
			want:  "XY",
		},
		{name: "insertion", text: "ab", edits: []Edit{{Start: 1, End: 1, NewText: "-"}}, want: "a-b"},
		{name: "deletion at end", text: "abc", edits: []Edit{{Start: 2, End: 3}}, want: "ab"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tx := Transaction{Edits: tc.edits}
			got, err := tx.Apply(tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestApply_RejectsWithoutPartialResult(t *testing.T) {
	tests := []struct {
		name  string
		edits []Edit
		err   error
	}{
		{name: "overlap", edits: []Edit{{Start: 0, End: 3}, {Start: 2, End: 4}}, err: ErrOverlap},
		{name: "past end", edits: []Edit{{Start: 0, End: 1}, {Start: 4, End: 9}}, err: ErrOutOfBounds},
		{name: "negative", edits: []Edit{{Start: -1, End: 1}}, err: ErrOutOfBounds},
		{name: "inverted", edits: []Edit{{Start: 3, End: 2}}, err: ErrOutOfBounds},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var tx Transaction
			for _, e := range tc.edits {
				tx.Add(e)
			}
			got, err := tx.Apply("abcdef")
			assert.ErrorIs(t, err, tc.err)
			assert.Empty(t, got)
			assert.ErrorIs(t, tx.Validate(6), tc.err)
		})
	}
}

func TestSorted_DoesNotMutate(t *testing.T) {
	tx := Transaction{Edits: []Edit{{Start: 5, End: 6}, {Start: 1, End: 2}}}
	sorted := tx.Sorted()

	assert.Equal(t, 1, sorted[0].Start)
	assert.Equal(t, 5, tx.Edits[0].Start)
	assert.Equal(t, 2, tx.Len())
}
