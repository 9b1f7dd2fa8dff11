package timestamp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(text string) []string {
	var out []string
	for tok := range Tokens(text) {
		out = append(out, tok.Text())
	}
	return out
}

func TestTokens_Boundaries(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "empty", text: "", want: nil},
		{name: "no digits", text: "hello world", want: nil},
		{name: "plain integer", text: "ts=1700000000 end", want: []string{"1700000000"}},
		{name: "fraction", text: "at 1700000000.123 ok", want: []string{"1700000000.123"}},
		{name: "glued to letters", text: "123abc abc123", want: nil},
		{name: "underscore is a word char", text: "_123 123_", want: nil},
		{name: "fraction glued to letter falls back to integer", text: "1.5x", want: []string{"1"}},
		{name: "dot without digits", text: "42.", want: []string{"42"}},
		{name: "double dot", text: "1.2.3", want: []string{"1.2", "3"}},
		{name: "punctuation separated", text: "(1,2);[3]", want: []string{"1", "2", "3"}},
		{name: "non-ascii neighbours", text: "é1700000000ü", want: []string{"1700000000"}},
		{name: "leading dot", text: ".5", want: []string{"5"}},
		{name: "adjacent tokens", text: "1700000000-1700000001", want: []string{"1700000000", "1700000001"}},
		{name: "newline separated", text: "1\n2\r\n3", want: []string{"1", "2", "3"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, collect(tc.text))
		})
	}
}

func TestTokens_Offsets(t *testing.T) {
	text := "a 12.5 b 7"
	var toks []Token
	for tok := range Tokens(text) {
		toks = append(toks, tok)
	}
	require.Len(t, toks, 2)

	assert.Equal(t, Token{Integer: "12", Fraction: "5", Start: 2, End: 6}, toks[0])
	assert.Equal(t, Token{Integer: "7", Start: 9, End: 10}, toks[1])
	assert.Equal(t, "12.5", text[toks[0].Start:toks[0].End])
}

func TestTokens_Restartable(t *testing.T) {
	seq := Tokens("1 2 3")

	var first, second []string
	for tok := range seq {
		first = append(first, tok.Text())
	}
	for tok := range seq {
		second = append(second, tok.Text())
		break
	}

	assert.Equal(t, []string{"1", "2", "3"}, first)
	assert.Equal(t, []string{"1"}, second)
}

func TestScanner_Reset(t *testing.T) {
	s := NewScanner("10 20")

	tok, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, "10", tok.Text())

	s.Reset()
	tok, ok = s.Next()
	require.True(t, ok)
	assert.Equal(t, "10", tok.Text())

	_, ok = s.Next()
	require.True(t, ok)
	_, ok = s.Next()
	assert.False(t, ok)
	_, ok = s.Next()
	assert.False(t, ok, "exhausted scanner stays exhausted")
}

func TestTokenAt(t *testing.T) {
	text := "id1700000000 and 1700000000.25x"

	tests := []struct {
		name   string
		offset int
		want   string
		found  bool
	}{
		{name: "loose boundary inside identifier", offset: 5, want: "1700000000", found: true},
		{name: "first digit", offset: 2, want: "1700000000", found: true},
		{name: "just past the end", offset: 12, want: "1700000000", found: true},
		{name: "between literals", offset: 14, found: false},
		{name: "fraction kept despite trailing letter", offset: 20, want: "1700000000.25", found: true},
		{name: "cursor on the trailing letter", offset: 30, want: "1700000000.25", found: true},
		{name: "end of text", offset: len(text), found: false},
		{name: "before anything", offset: 0, found: false},
		{name: "negative", offset: -1, found: false},
		{name: "past text", offset: len(text) + 1, found: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tok, ok := TokenAt(text, tc.offset)
			assert.Equal(t, tc.found, ok)
			if tc.found {
				assert.Equal(t, tc.want, tok.Text())
				assert.LessOrEqual(t, tok.Start, tc.offset)
				assert.GreaterOrEqual(t, tok.End, tc.offset)
			}
		})
	}
}
