// Package rule implements the analysis rule pipeline.
//
// A Rule is a pure function from text to findings. Rules run in a fixed
// registration order, and that order is the tie-break policy: when two
// rules report overlapping ranges, the rule registered earlier wins and
// the later overlapping finding is suppressed. The pipeline is
// deterministic; identical text with an identical rule set always yields
// identical findings, which is what makes content-addressed caching of
// results sound.
package rule

import (
	"sort"

	"github.com/dshills/prosecheck/internal/annotate/finding"
	"github.com/dshills/prosecheck/internal/annotate/token"
)

// Rule sources group rules into families reported on findings.
const (
	SourceSpelling = "spelling"
	SourceGrammar  = "grammar"
	SourceStyle    = "style"
	SourceLua      = "lua"
)

// Rule checks a unit of text and reports findings with unit-local byte
// ranges. Implementations must be pure: no shared mutable state, and the
// same input always produces the same output.
type Rule interface {
	// ID uniquely identifies the rule on findings it produces.
	ID() string

	// Source names the rule family.
	Source() string

	// Check analyzes text. The token list is the tokenization of text,
	// computed once by the pipeline and shared between rules.
	Check(text string, toks []token.Token) []finding.Finding
}

// Pipeline runs an ordered list of rules with overlap suppression.
type Pipeline struct {
	rules []Rule
}

// NewPipeline creates a pipeline with rules in the given order.
func NewPipeline(rules ...Rule) *Pipeline {
	return &Pipeline{rules: rules}
}

// Default returns the standard pipeline in its documented order:
// spelling, repeated word, capitalization, contraction, article.
func Default(dict Lookup) *Pipeline {
	return NewPipeline(
		NewSpelling(dict),
		NewRepeatedWord(),
		NewCapitalization(),
		NewContraction(),
		NewArticle(),
	)
}

// Append adds rules after the existing ones, preserving pipeline order.
func (p *Pipeline) Append(rules ...Rule) {
	p.rules = append(p.rules, rules...)
}

// Rules returns the rules in pipeline order.
func (p *Pipeline) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

// Run tokenizes text once, runs every rule in order, suppresses later
// findings that overlap earlier ones, and returns the survivors sorted by
// position.
func (p *Pipeline) Run(text string) []finding.Finding {
	toks := token.Tokenize(text)

	var accepted []finding.Finding
	for _, r := range p.rules {
		for _, f := range r.Check(text, toks) {
			if !f.Range.IsValid() || f.Range.End > len(text) {
				continue
			}
			if overlapsAny(f.Range, accepted) {
				continue
			}
			accepted = append(accepted, f)
		}
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		if accepted[i].Range.Start != accepted[j].Range.Start {
			return accepted[i].Range.Start < accepted[j].Range.Start
		}
		return accepted[i].Range.End < accepted[j].Range.End
	})
	return accepted
}

// overlapsAny reports whether r overlaps any already-accepted finding.
func overlapsAny(r finding.Range, accepted []finding.Finding) bool {
	for _, a := range accepted {
		if r.Overlaps(a.Range) {
			return true
		}
	}
	return false
}
