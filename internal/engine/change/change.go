// Package change classifies document transactions and scopes them to the
// paragraphs they touched. Scoping keeps analysis cost proportional to the
// edit, never to the document.
package change

import "github.com/dshills/prosecheck/internal/engine/document"

// Kind categorizes an edit for scheduling purposes.
type Kind uint8

const (
	// KindTyping is an insertion-only edit.
	KindTyping Kind = iota

	// KindPaste is a large insertion with little removed text.
	KindPaste

	// KindDeletion is a removal-only edit.
	KindDeletion

	// KindComplex is anything else, including formatting-only
	// transactions with no character delta.
	KindComplex
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindTyping:
		return "typing"
	case KindPaste:
		return "paste"
	case KindDeletion:
		return "deletion"
	case KindComplex:
		return "complex"
	default:
		return "unknown"
	}
}

// Paste thresholds: more than pasteInsertMin inserted with fewer than
// pasteDeleteMax removed counts as a paste.
const (
	pasteInsertMin = 50
	pasteDeleteMax = 25
)

// Detector classifies transactions and computes their paragraph scope.
type Detector struct{}

// NewDetector creates a change detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Classify inspects the net inserted and deleted character counts across
// the transaction's steps.
func (d *Detector) Classify(tx *document.Transaction) Kind {
	var inserted, deleted int
	for _, s := range tx.Steps {
		inserted += len(s.Insert)
		deleted += s.To - s.From
	}

	switch {
	case inserted > pasteInsertMin && deleted < pasteDeleteMax:
		return KindPaste
	case inserted > 0 && deleted > 0:
		return KindComplex
	case deleted > 0:
		return KindDeletion
	case inserted > 0:
		return KindTyping
	default:
		return KindComplex
	}
}

// TouchedParagraphs returns the paragraphs of doc overlapping the ranges
// the transaction edited, in document order without duplicates. The doc
// must be the post-transaction document.
func (d *Detector) TouchedParagraphs(doc *document.Document, tx *document.Transaction) []document.ParagraphID {
	seen := make(map[document.ParagraphID]bool)
	var out []document.ParagraphID
	add := func(id document.ParagraphID) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	// The transaction already knows which paragraphs had their text
	// rebuilt; that is the authoritative scope.
	for _, id := range tx.Changed {
		if _, ok := doc.ParagraphByID(id); ok {
			add(id)
		}
	}

	// Deletions can collapse a boundary without changing the surviving
	// paragraph's relative text position, so also collect paragraphs
	// overlapping each step's post-edit range.
	for i, s := range tx.Steps {
		from, to := s.From, s.From+len(s.Insert)
		// Map through the remaining steps into final coordinates.
		for _, rest := range tx.Steps[i+1:] {
			rf := mapPoint(rest, from)
			rt := mapPoint(rest, to)
			from, to = rf, rt
		}
		if from > to {
			from, to = to, from
		}
		for _, off := range []int{from, to} {
			if p, ok := doc.ParagraphAt(off); ok {
				add(p.ID)
			}
		}
	}

	return out
}

// mapPoint maps a position through a later step, clamping positions that
// fall inside the replaced span.
func mapPoint(s document.Step, pos int) int {
	switch {
	case pos <= s.From:
		return pos
	case pos >= s.To:
		return pos + s.Delta()
	default:
		return s.From + len(s.Insert)
	}
}
