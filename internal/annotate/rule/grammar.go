package rule

import (
	"strings"

	"github.com/dshills/prosecheck/internal/annotate/finding"
	"github.com/dshills/prosecheck/internal/annotate/token"
)

// RepeatedWord flags a word that immediately repeats the previous word,
// ignoring case. The finding covers the second occurrence and suggests
// removing it.
type RepeatedWord struct{}

// NewRepeatedWord creates the repeated-word rule.
func NewRepeatedWord() *RepeatedWord {
	return &RepeatedWord{}
}

// ID implements Rule.
func (r *RepeatedWord) ID() string { return "grammar.repeated-word" }

// Source implements Rule.
func (r *RepeatedWord) Source() string { return SourceGrammar }

// Check implements Rule.
func (r *RepeatedWord) Check(text string, toks []token.Token) []finding.Finding {
	var out []finding.Finding
	var prev *token.Token
	for i := range toks {
		t := &toks[i]
		switch t.Kind {
		case token.KindSpace:
			continue
		case token.KindWord:
			if prev != nil && strings.EqualFold(prev.Text, t.Text) {
				out = append(out, finding.Finding{
					Range:       finding.Range{Start: t.Start, End: t.End},
					Message:     "Repeated word: " + t.Text,
					RuleID:      r.ID(),
					Source:      r.Source(),
					Suggestions: []string{""},
				})
			}
			prev = t
		default:
			// Punctuation breaks the adjacency ("end. End" is fine).
			prev = nil
		}
	}
	return out
}

// Capitalization flags a standalone lowercase "i" and lowercase letters
// that open a sentence.
type Capitalization struct{}

// NewCapitalization creates the capitalization rule.
func NewCapitalization() *Capitalization {
	return &Capitalization{}
}

// ID implements Rule.
func (r *Capitalization) ID() string { return "grammar.capitalization" }

// Source implements Rule.
func (r *Capitalization) Source() string { return SourceGrammar }

// Check implements Rule.
func (r *Capitalization) Check(text string, toks []token.Token) []finding.Finding {
	var out []finding.Finding
	sentenceStart := true
	for _, t := range toks {
		switch t.Kind {
		case token.KindSpace:
			continue
		case token.KindPunct:
			if endsSentence(t.Text) {
				sentenceStart = true
			}
			continue
		}

		switch {
		case t.Text == "i":
			out = append(out, finding.Finding{
				Range:       finding.Range{Start: t.Start, End: t.End},
				Message:     `"i" should be capitalized`,
				RuleID:      r.ID(),
				Source:      r.Source(),
				Suggestions: []string{"I"},
			})
		case sentenceStart && t.FirstRuneLower():
			out = append(out, finding.Finding{
				Range:       finding.Range{Start: t.Start, End: t.End},
				Message:     "Sentence should start with a capital letter",
				RuleID:      r.ID(),
				Source:      r.Source(),
				Suggestions: []string{capitalize(t.Text)},
			})
		}
		sentenceStart = false
	}
	return out
}

// endsSentence reports whether the punctuation token terminates a sentence.
func endsSentence(p string) bool {
	return strings.ContainsAny(p, ".!?")
}

// contractions maps apostrophe-less spellings to their contracted forms.
// Only unambiguous entries belong here.
var contractions = map[string]string{
	"cant":      "can't",
	"dont":      "don't",
	"wont":      "won't",
	"isnt":      "isn't",
	"arent":     "aren't",
	"wasnt":     "wasn't",
	"werent":    "weren't",
	"didnt":     "didn't",
	"doesnt":    "doesn't",
	"couldnt":   "couldn't",
	"shouldnt":  "shouldn't",
	"wouldnt":   "wouldn't",
	"havent":    "haven't",
	"hasnt":     "hasn't",
	"im":        "I'm",
	"ive":       "I've",
	"youre":     "you're",
	"youve":     "you've",
	"theyre":    "they're",
	"theyve":    "they've",
	"weve":      "we've",
}

// Contraction flags missing-apostrophe contractions.
type Contraction struct{}

// NewContraction creates the contraction rule.
func NewContraction() *Contraction {
	return &Contraction{}
}

// ID implements Rule.
func (r *Contraction) ID() string { return "grammar.missing-apostrophe" }

// Source implements Rule.
func (r *Contraction) Source() string { return SourceGrammar }

// Check implements Rule.
func (r *Contraction) Check(text string, toks []token.Token) []finding.Finding {
	var out []finding.Finding
	for _, t := range toks {
		if t.Kind != token.KindWord {
			continue
		}
		fixed, ok := contractions[strings.ToLower(t.Text)]
		if !ok {
			continue
		}
		if t.FirstRuneUpper() {
			fixed = capitalize(fixed)
		}
		out = append(out, finding.Finding{
			Range:       finding.Range{Start: t.Start, End: t.End},
			Message:     "Missing apostrophe: " + t.Text + " -> " + fixed,
			RuleID:      r.ID(),
			Source:      r.Source(),
			Suggestions: []string{fixed},
		})
	}
	return out
}

// anExceptions are vowel-initial words that take "a" and consonant-initial
// words that take "an".
var (
	aBeforeVowel  = map[string]bool{"one": true, "once": true, "university": true, "user": true, "unit": true, "european": true}
	anBeforeCons  = map[string]bool{"hour": true, "honest": true, "honor": true, "heir": true}
	vowelInitials = "aeiouAEIOU"
)

// Article flags "a" before a vowel sound and "an" before a consonant sound.
type Article struct{}

// NewArticle creates the article-agreement rule.
func NewArticle() *Article {
	return &Article{}
}

// ID implements Rule.
func (r *Article) ID() string { return "grammar.article" }

// Source implements Rule.
func (r *Article) Source() string { return SourceGrammar }

// Check implements Rule.
func (r *Article) Check(text string, toks []token.Token) []finding.Finding {
	var out []finding.Finding
	words := wordTokens(toks)
	for i := 0; i+1 < len(words); i++ {
		art := strings.ToLower(words[i].Text)
		if art != "a" && art != "an" {
			continue
		}
		next := strings.ToLower(words[i+1].Text)
		wantAn := strings.ContainsRune(vowelInitials, rune(next[0]))
		if aBeforeVowel[next] {
			wantAn = false
		}
		if anBeforeCons[next] {
			wantAn = true
		}

		var fix string
		switch {
		case art == "a" && wantAn:
			fix = "an"
		case art == "an" && !wantAn:
			fix = "a"
		default:
			continue
		}
		if words[i].FirstRuneUpper() {
			fix = capitalize(fix)
		}
		out = append(out, finding.Finding{
			Range:       finding.Range{Start: words[i].Start, End: words[i].End},
			Message:     `Article disagreement: "` + words[i].Text + ` ` + words[i+1].Text + `"`,
			RuleID:      r.ID(),
			Source:      r.Source(),
			Suggestions: []string{fix},
		})
	}
	return out
}

// wordTokens filters the token list down to words.
func wordTokens(toks []token.Token) []token.Token {
	var words []token.Token
	for _, t := range toks {
		if t.Kind == token.KindWord {
			words = append(words, t)
		}
	}
	return words
}
