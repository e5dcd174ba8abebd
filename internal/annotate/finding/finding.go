// Package finding defines the result types produced by text analysis.
package finding

import "fmt"

// Range is a half-open byte range local to the analyzed unit.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// String returns a human-readable representation of the range.
func (r Range) String() string {
	return fmt.Sprintf("[%d:%d)", r.Start, r.End)
}

// Len returns the byte length of the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// IsValid reports whether the range is well-formed and non-empty.
func (r Range) IsValid() bool {
	return r.Start >= 0 && r.End > r.Start
}

// Overlaps reports whether two ranges share any bytes.
func (r Range) Overlaps(other Range) bool {
	return r.Start < other.End && other.Start < r.End
}

// Finding is one detected issue in an analyzed unit of text.
type Finding struct {
	// Range locates the issue within the unit's text.
	Range Range `json:"range"`

	// Message is the human-readable description shown in tooltips.
	Message string `json:"message"`

	// RuleID identifies the rule that produced the finding.
	RuleID string `json:"rule"`

	// Source groups rules into families, such as "spelling" or "grammar".
	Source string `json:"source"`

	// Suggestions are replacement texts for the range, best first.
	Suggestions []string `json:"suggestions,omitempty"`
}

// Equal reports whether two findings are identical, suggestions included.
func (f Finding) Equal(other Finding) bool {
	if f.Range != other.Range || f.Message != other.Message ||
		f.RuleID != other.RuleID || f.Source != other.Source ||
		len(f.Suggestions) != len(other.Suggestions) {
		return false
	}
	for i := range f.Suggestions {
		if f.Suggestions[i] != other.Suggestions[i] {
			return false
		}
	}
	return true
}

// Key returns a content-based identity for the finding within the given
// flagged text. It is stable across re-checks of unchanged text and is
// what the ignore list records.
func (f Finding) Key(flagged string) string {
	return f.RuleID + "\x00" + flagged
}
