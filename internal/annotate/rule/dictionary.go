package rule

import (
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Lookup answers word-membership queries for the spelling rule.
// Implementations must be safe for concurrent readers.
type Lookup interface {
	Contains(word string) bool
}

// Dictionary is an in-memory word set. Lookups are case-insensitive and
// NFC-normalized so canonically equivalent spellings compare equal.
type Dictionary struct {
	mu    sync.RWMutex
	words map[string]struct{}
}

// NewDictionary creates a dictionary containing the given words.
func NewDictionary(words ...string) *Dictionary {
	d := &Dictionary{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		d.words[NormalizeWord(w)] = struct{}{}
	}
	return d
}

// BuiltIn returns a dictionary seeded with the embedded common-word list.
func BuiltIn() *Dictionary {
	return NewDictionary(builtinWords()...)
}

// Contains reports whether the word is known.
func (d *Dictionary) Contains(word string) bool {
	key := NormalizeWord(word)
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.words[key]
	return ok
}

// Add inserts words into the dictionary.
func (d *Dictionary) Add(words ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range words {
		d.words[NormalizeWord(w)] = struct{}{}
	}
}

// Remove deletes words from the dictionary.
func (d *Dictionary) Remove(words ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range words {
		delete(d.words, NormalizeWord(w))
	}
}

// Len returns the number of words.
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.words)
}

// Words returns the normalized word set in unspecified order.
func (d *Dictionary) Words() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.words))
	for w := range d.words {
		out = append(out, w)
	}
	return out
}

// Union is a Lookup over several dictionaries; a word is known when any
// member knows it.
type Union []Lookup

// Contains implements Lookup.
func (u Union) Contains(word string) bool {
	for _, l := range u {
		if l != nil && l.Contains(word) {
			return true
		}
	}
	return false
}

// NormalizeWord lowercases and NFC-normalizes a word for lookup.
func NormalizeWord(w string) string {
	return strings.ToLower(norm.NFC.String(w))
}
