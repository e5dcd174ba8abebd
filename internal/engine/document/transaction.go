package document

import "fmt"

// Step is a single replace edit: the bytes in [From, To) are removed and
// Insert is placed at From. A pure insertion has From == To; a pure
// deletion has an empty Insert. Coordinates address the document state the
// step applies to.
type Step struct {
	From   int
	To     int
	Insert string
}

// Insertion creates a pure insertion step.
func Insertion(at int, text string) Step {
	return Step{From: at, To: at, Insert: text}
}

// Deletion creates a pure deletion step.
func Deletion(from, to int) Step {
	return Step{From: from, To: to}
}

// Replacement creates a replace step.
func Replacement(from, to int, text string) Step {
	return Step{From: from, To: to, Insert: text}
}

// Delta returns the byte delta of the step.
func (s Step) Delta() int {
	return len(s.Insert) - (s.To - s.From)
}

// IsInsert reports whether the step inserts without removing.
func (s Step) IsInsert() bool {
	return s.From == s.To && s.Insert != ""
}

// IsDelete reports whether the step removes without inserting.
func (s Step) IsDelete() bool {
	return s.From < s.To && s.Insert == ""
}

// String returns a human-readable representation of the step.
func (s Step) String() string {
	text := s.Insert
	if len(text) > 20 {
		text = text[:17] + "..."
	}
	switch {
	case s.IsInsert():
		return fmt.Sprintf("Insert %q at %d", text, s.From)
	case s.IsDelete():
		return fmt.Sprintf("Delete [%d:%d)", s.From, s.To)
	default:
		return fmt.Sprintf("Replace [%d:%d) with %q", s.From, s.To, text)
	}
}

// Assoc controls which side a mapped position sticks to when text is
// inserted exactly at that position.
type Assoc int8

const (
	// AssocBefore keeps the position before text inserted at it.
	AssocBefore Assoc = -1

	// AssocAfter moves the position after text inserted at it.
	AssocAfter Assoc = 1
)

// Transaction describes one applied edit: the steps, the resulting
// document version, and the paragraphs whose text changed.
type Transaction struct {
	// Steps in application order.
	Steps []Step

	// Version is the document version after the transaction.
	Version Version

	// DocChanged is false for transactions that carry no steps.
	DocChanged bool

	// Changed lists paragraphs whose text was modified, in document order.
	Changed []ParagraphID
}

// MapResult is the outcome of mapping a position through a transaction.
type MapResult struct {
	// Pos is the mapped position in the new document.
	Pos int

	// Deleted is true when the position fell strictly inside a replaced
	// span. The position is clamped but anything anchored to it should be
	// treated as stale.
	Deleted bool
}

// MapPos maps a position through every step of the transaction.
func (tx *Transaction) MapPos(pos int, assoc Assoc) MapResult {
	res := MapResult{Pos: pos}
	for _, s := range tx.Steps {
		r := mapThroughStep(s, res.Pos, assoc)
		res.Pos = r.Pos
		res.Deleted = res.Deleted || r.Deleted
	}
	return res
}

// mapThroughStep maps a single position through one step.
func mapThroughStep(s Step, pos int, assoc Assoc) MapResult {
	switch {
	case pos < s.From:
		return MapResult{Pos: pos}
	case pos > s.To:
		return MapResult{Pos: pos + s.Delta()}
	case pos == s.From && s.From == s.To:
		// Pure insertion at the position: association decides the side.
		if assoc == AssocAfter {
			return MapResult{Pos: pos + len(s.Insert)}
		}
		return MapResult{Pos: pos}
	case pos == s.From:
		return MapResult{Pos: s.From}
	case pos == s.To:
		return MapResult{Pos: s.From + len(s.Insert)}
	default:
		// Strictly inside a replaced span.
		return MapResult{Pos: s.From + len(s.Insert), Deleted: true}
	}
}

// MapRange maps a half-open range through the transaction. The range is
// reported deleted when either endpoint was deleted, when any step edited
// the range's interior, or when the mapped range collapses or inverts.
func (tx *Transaction) MapRange(from, to int) (int, int, bool) {
	for _, s := range tx.Steps {
		if stepTouchesInterior(s, from, to) {
			return 0, 0, true
		}
		// Advance coordinates into the step's post-space before checking
		// the next step.
		rf := mapThroughStep(s, from, AssocAfter)
		rt := mapThroughStep(s, to, AssocBefore)
		if rf.Deleted || rt.Deleted {
			return 0, 0, true
		}
		from, to = rf.Pos, rt.Pos
	}
	if from >= to {
		return 0, 0, true
	}
	return from, to, false
}

// stepTouchesInterior reports whether the step inserts or removes text
// strictly inside (from, to).
func stepTouchesInterior(s Step, from, to int) bool {
	if s.From == s.To {
		// Pure insertion: only interior insertions split the range.
		return s.From > from && s.From < to
	}
	// Deletion or replacement: any overlap with the interior counts.
	return s.From < to && s.To > from
}
