package rule

import (
	"sort"
	"unicode"

	"github.com/dshills/prosecheck/internal/annotate/finding"
	"github.com/dshills/prosecheck/internal/annotate/token"
)

// maxSuggestions bounds the number of replacement candidates per finding.
const maxSuggestions = 3

// suggestMaxWordLen bounds candidate generation; very long tokens are
// flagged without suggestions.
const suggestMaxWordLen = 12

// Spelling flags word tokens that are not in the dictionary.
type Spelling struct {
	dict Lookup
}

// NewSpelling creates the spelling rule over the given dictionary.
func NewSpelling(dict Lookup) *Spelling {
	return &Spelling{dict: dict}
}

// ID implements Rule.
func (s *Spelling) ID() string { return "spelling.unknown-word" }

// Source implements Rule.
func (s *Spelling) Source() string { return SourceSpelling }

// Check implements Rule.
func (s *Spelling) Check(text string, toks []token.Token) []finding.Finding {
	var out []finding.Finding
	for _, t := range toks {
		if t.Kind != token.KindWord {
			continue
		}
		if skipSpelling(t.Text) {
			continue
		}
		if s.dict.Contains(t.Text) {
			continue
		}
		out = append(out, finding.Finding{
			Range:       finding.Range{Start: t.Start, End: t.End},
			Message:     "Unknown word: " + t.Text,
			RuleID:      s.ID(),
			Source:      s.Source(),
			Suggestions: s.suggest(t.Text),
		})
	}
	return out
}

// skipSpelling reports tokens the spelling rule never flags: numbers,
// all-caps acronyms, and tokens containing digits.
func skipSpelling(word string) bool {
	hasLower := false
	for _, r := range word {
		if unicode.IsDigit(r) {
			return true
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	// All-caps tokens of two or more letters read as acronyms.
	return !hasLower && len(word) > 1
}

// suggest returns dictionary words within one edit of the misspelling,
// sorted alphabetically for determinism.
func (s *Spelling) suggest(word string) []string {
	if len(word) > suggestMaxWordLen {
		return nil
	}
	lower := NormalizeWord(word)

	seen := make(map[string]bool)
	var hits []string
	for _, cand := range editsAtDistanceOne(lower) {
		if cand == lower || seen[cand] {
			continue
		}
		seen[cand] = true
		if s.dict.Contains(cand) {
			hits = append(hits, cand)
		}
	}
	sort.Strings(hits)
	if len(hits) > maxSuggestions {
		hits = hits[:maxSuggestions]
	}

	// Preserve the original capitalization style.
	if isCapitalized(word) {
		for i, h := range hits {
			hits[i] = capitalize(h)
		}
	}
	return hits
}

const suggestAlphabet = "abcdefghijklmnopqrstuvwxyz'"

// editsAtDistanceOne generates all single-edit variants of a word:
// deletions, transpositions, replacements, and insertions.
func editsAtDistanceOne(word string) []string {
	var edits []string
	for i := 0; i <= len(word); i++ {
		left, right := word[:i], word[i:]
		if len(right) > 0 {
			// Deletion.
			edits = append(edits, left+right[1:])
		}
		if len(right) > 1 {
			// Transposition.
			edits = append(edits, left+string(right[1])+string(right[0])+right[2:])
		}
		for _, c := range suggestAlphabet {
			if len(right) > 0 {
				// Replacement.
				edits = append(edits, left+string(c)+right[1:])
			}
			// Insertion.
			edits = append(edits, left+string(c)+right)
		}
	}
	return edits
}

// isCapitalized reports whether the word starts with an uppercase letter
// followed by lowercase.
func isCapitalized(word string) bool {
	if word == "" {
		return false
	}
	runes := []rune(word)
	if !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, r := range runes[1:] {
		if unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// capitalize uppercases the first rune of a word.
func capitalize(word string) string {
	if word == "" {
		return word
	}
	runes := []rune(word)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
