// Package timestamp detects Unix timestamp literals in text and renders them
// as calendar date-times.
//
// The package is split the way a conversion flows:
//
//	Tokens / TokenAt  -> Token           (token.go)
//	Classify          -> Classification  (classify.go)
//	Convert           -> Rendering       (convert.go)
//	Format            -> string          (format.go)
//
// Every function is pure and safe for concurrent use.
package timestamp

import "iter"

// Token is a numeric literal found in text: a run of ASCII digits,
// optionally followed by a single '.' and more digits.
type Token struct {
	// Integer holds the digits before the decimal point.
	Integer string `json:"integer"`

	// Fraction holds the digits after the decimal point, or "" when the
	// literal had no fractional part.
	Fraction string `json:"fraction,omitempty"`

	// Start is the 0-indexed byte offset of the first digit (inclusive).
	Start int `json:"start"`

	// End is the 0-indexed byte offset just past the last digit (exclusive).
	End int `json:"end"`
}

// Text returns the literal exactly as it appeared in the source.
func (t Token) Text() string {
	if t.Fraction == "" {
		return t.Integer
	}
	return t.Integer + "." + t.Fraction
}

// Scanner yields word-bounded numeric tokens from a string, left to right.
//
// A token is never preceded or followed by a word character
// ([A-Za-z0-9_]). When a fractional part would end next to a word
// character, the integer part alone is taken if it is followed by the
// decimal point ("1.5x" yields "1"). A digit run glued to a letter or
// underscore yields nothing ("123abc").
type Scanner struct {
	text string
	pos  int
}

// NewScanner returns a Scanner positioned at the start of text.
func NewScanner(text string) *Scanner {
	return &Scanner{text: text}
}

// Reset rewinds the scanner to the start of its text.
func (s *Scanner) Reset() {
	s.pos = 0
}

// Next returns the next token, or false once the text is exhausted.
func (s *Scanner) Next() (Token, bool) {
	text := s.text
	i := s.pos
	for i < len(text) {
		if !isDigit(text[i]) || wordCharAt(text, i-1) {
			i++
			continue
		}

		tok := literalAt(text, i)
		if tok.Fraction != "" && !wordCharAt(text, tok.End) {
			s.pos = tok.End
			return tok, true
		}

		intEnd := i + len(tok.Integer)
		if !wordCharAt(text, intEnd) {
			tok.Fraction = ""
			tok.End = intEnd
			s.pos = intEnd
			return tok, true
		}

		// The run is glued to a letter or underscore. No token can start
		// inside it, so skip straight past it.
		i = intEnd
	}
	s.pos = len(text)
	return Token{}, false
}

// Tokens returns the word-bounded tokens of text as a lazy sequence.
// Each range over the sequence rescans from the beginning.
func Tokens(text string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		s := NewScanner(text)
		for {
			tok, ok := s.Next()
			if !ok || !yield(tok) {
				return
			}
		}
	}
}

// TokenAt returns the literal under offset using the looser hover rule:
// literals are matched left to right without word-boundary checks, and the
// first one with Start <= offset <= End wins. An offset just past the last
// digit still hits the literal, matching how editors resolve the word under
// a cursor.
func TokenAt(text string, offset int) (Token, bool) {
	if offset < 0 || offset > len(text) {
		return Token{}, false
	}
	i := 0
	for i < len(text) && i <= offset {
		if !isDigit(text[i]) {
			i++
			continue
		}
		tok := literalAt(text, i)
		if tok.End >= offset {
			return tok, true
		}
		i = tok.End
	}
	return Token{}, false
}

// literalAt matches digits, then an optional '.' plus digits, at text[i].
// text[i] must be a digit.
func literalAt(text string, i int) Token {
	j := i
	for j < len(text) && isDigit(text[j]) {
		j++
	}
	tok := Token{Integer: text[i:j], Start: i, End: j}

	if j < len(text) && text[j] == '.' {
		k := j + 1
		for k < len(text) && isDigit(text[k]) {
			k++
		}
		if k > j+1 {
			tok.Fraction = text[j+1 : k]
			tok.End = k
		}
	}
	return tok
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// isWordChar mirrors the ASCII-only \w class. Bytes of multi-byte UTF-8
// sequences are never word characters.
func isWordChar(c byte) bool {
	return isDigit(c) || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func wordCharAt(text string, i int) bool {
	return i >= 0 && i < len(text) && isWordChar(text[i])
}
