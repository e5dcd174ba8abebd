// Package token segments text into word, space, and punctuation tokens
// with byte offsets into the original text. Word boundaries follow Unicode
// UAX #29 via the uniseg package, so graphemes and non-ASCII words are
// handled correctly.
package token

import (
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// Kind classifies a token.
type Kind uint8

const (
	// KindWord contains at least one letter or digit.
	KindWord Kind = iota

	// KindSpace is whitespace only.
	KindSpace

	// KindPunct is everything else.
	KindPunct
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindWord:
		return "word"
	case KindSpace:
		return "space"
	case KindPunct:
		return "punct"
	default:
		return "unknown"
	}
}

// Token is one segment of the input text.
type Token struct {
	// Text is the token content, sliced from the input.
	Text string

	// Start and End are byte offsets into the input, half-open.
	Start int
	End   int

	// Kind classifies the token.
	Kind Kind
}

// Tokenize splits text into tokens covering every byte of the input.
func Tokenize(text string) []Token {
	if text == "" {
		return nil
	}

	var toks []Token
	state := -1
	rest := text
	off := 0
	for len(rest) > 0 {
		var seg string
		seg, rest, state = uniseg.FirstWordInString(rest, state)
		toks = append(toks, Token{
			Text:  seg,
			Start: off,
			End:   off + len(seg),
			Kind:  classify(seg),
		})
		off += len(seg)
	}
	return toks
}

// Words returns only the word tokens of text.
func Words(text string) []Token {
	var words []Token
	for _, t := range Tokenize(text) {
		if t.Kind == KindWord {
			words = append(words, t)
		}
	}
	return words
}

// classify determines the kind of a segment.
func classify(seg string) Kind {
	hasWordChar := false
	allSpace := true
	for _, r := range seg {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			hasWordChar = true
		}
		if !unicode.IsSpace(r) {
			allSpace = false
		}
	}
	switch {
	case hasWordChar:
		return KindWord
	case allSpace:
		return KindSpace
	default:
		return KindPunct
	}
}

// FirstRuneUpper reports whether the token's first rune is an uppercase
// letter.
func (t Token) FirstRuneUpper() bool {
	r, _ := utf8.DecodeRuneInString(t.Text)
	return unicode.IsUpper(r)
}

// FirstRuneLower reports whether the token's first rune is a lowercase
// letter.
func (t Token) FirstRuneLower() bool {
	r, _ := utf8.DecodeRuneInString(t.Text)
	return unicode.IsLower(r)
}
