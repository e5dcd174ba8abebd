// Package decoration turns findings and pending suggestions into
// position-stable overlays. Decorations live in absolute document
// coordinates and are remapped through every transaction; a decoration
// whose underlying text was edited, or whose mapped position leaves the
// document, is dropped rather than kept at a best-effort offset.
package decoration

import (
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/dshills/prosecheck/internal/annotate/finding"
	"github.com/dshills/prosecheck/internal/engine/document"
)

// Kind distinguishes finding overlays from suggestion widgets.
type Kind uint8

const (
	// KindFinding underlines a flagged range and carries the finding
	// payload for tooltip and quick-fix UI.
	KindFinding Kind = iota

	// KindSuggestion is a zero-width ghost-text widget anchored after
	// the cursor.
	KindSuggestion
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindFinding:
		return "finding"
	case KindSuggestion:
		return "suggestion"
	default:
		return "unknown"
	}
}

// Decoration is one rendered overlay.
type Decoration struct {
	// ID uniquely identifies the decoration for user actions.
	ID string

	// Kind selects the payload.
	Kind Kind

	// From and To are absolute document offsets, half-open. Suggestion
	// widgets have From == To.
	From int
	To   int

	// UnitID is the paragraph the decoration belongs to.
	UnitID document.ParagraphID

	// Finding is the payload for KindFinding decorations.
	Finding *finding.Finding

	// GhostText is the payload for KindSuggestion decorations.
	GhostText string
}

// Set is an immutable collection of decorations ordered by position.
// Operations return new sets.
type Set struct {
	decos []Decoration
}

// EmptySet returns a set with no decorations.
func EmptySet() Set {
	return Set{}
}

// NewSet creates a set from decorations, sorting them by position.
func NewSet(decos []Decoration) Set {
	sorted := make([]Decoration, len(decos))
	copy(sorted, decos)
	sortDecorations(sorted)
	return Set{decos: sorted}
}

// All returns the decorations in position order.
func (s Set) All() []Decoration {
	out := make([]Decoration, len(s.decos))
	copy(out, s.decos)
	return out
}

// Len returns the number of decorations.
func (s Set) Len() int {
	return len(s.decos)
}

// ByID returns the decoration with the given id.
func (s Set) ByID(id string) (Decoration, bool) {
	for _, d := range s.decos {
		if d.ID == id {
			return d, true
		}
	}
	return Decoration{}, false
}

// ByKind returns decorations of one kind, in position order.
func (s Set) ByKind(k Kind) []Decoration {
	var out []Decoration
	for _, d := range s.decos {
		if d.Kind == k {
			out = append(out, d)
		}
	}
	return out
}

// At returns decorations whose range contains the offset.
func (s Set) At(offset int) []Decoration {
	var out []Decoration
	for _, d := range s.decos {
		if d.From <= offset && offset < d.To {
			out = append(out, d)
		}
	}
	return out
}

// Add returns a set with the decoration added.
func (s Set) Add(d Decoration) Set {
	next := make([]Decoration, 0, len(s.decos)+1)
	next = append(next, s.decos...)
	next = append(next, d)
	sortDecorations(next)
	return Set{decos: next}
}

// Remove returns a set without the decoration with the given id.
func (s Set) Remove(id string) Set {
	var next []Decoration
	for _, d := range s.decos {
		if d.ID != id {
			next = append(next, d)
		}
	}
	return Set{decos: next}
}

// RemoveUnit returns a set without any finding decorations for the unit.
// Suggestion widgets are not unit-scoped and survive.
func (s Set) RemoveUnit(unit document.ParagraphID) Set {
	var next []Decoration
	for _, d := range s.decos {
		if d.Kind == KindFinding && d.UnitID == unit {
			continue
		}
		next = append(next, d)
	}
	return Set{decos: next}
}

func sortDecorations(decos []Decoration) {
	sort.SliceStable(decos, func(i, j int) bool {
		if decos[i].From != decos[j].From {
			return decos[i].From < decos[j].From
		}
		return decos[i].To < decos[j].To
	})
}

// Mapper builds and remaps decoration sets.
type Mapper struct {
	logger *slog.Logger
}

// MapperOption configures a Mapper.
type MapperOption func(*Mapper)

// WithLogger enables diagnostic logging for dropped decorations.
func WithLogger(l *slog.Logger) MapperOption {
	return func(m *Mapper) { m.logger = l }
}

// NewMapper creates a decoration mapper.
func NewMapper(opts ...MapperOption) *Mapper {
	m := &Mapper{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply converts unit-local findings into finding decorations in absolute
// coordinates. Findings that fall outside the paragraph's current text
// are dropped silently.
func (m *Mapper) Apply(doc *document.Document, unit document.ParagraphID, findings []finding.Finding) []Decoration {
	start, ok := doc.ParagraphStart(unit)
	if !ok {
		return nil
	}
	p, _ := doc.ParagraphByID(unit)

	var out []Decoration
	for i := range findings {
		f := findings[i]
		if !f.Range.IsValid() || f.Range.End > len(p.Text) {
			m.logDrop("finding out of unit bounds", unit, f.Range.Start, f.Range.End)
			continue
		}
		out = append(out, Decoration{
			ID:      uuid.NewString(),
			Kind:    KindFinding,
			From:    start + f.Range.Start,
			To:      start + f.Range.End,
			UnitID:  unit,
			Finding: &f,
		})
	}
	return out
}

// Widget creates a suggestion decoration anchored at an absolute offset.
func (m *Mapper) Widget(unit document.ParagraphID, anchor int, text string) Decoration {
	return Decoration{
		ID:        uuid.NewString(),
		Kind:      KindSuggestion,
		From:      anchor,
		To:        anchor,
		UnitID:    unit,
		GhostText: text,
	}
}

// Remap carries a decoration set across one transaction. It must run
// synchronously in the same apply cycle that produced the transaction so
// the renderer never sees decorations computed against an older tree.
func (m *Mapper) Remap(tx *document.Transaction, docLen int, s Set) Set {
	if !tx.DocChanged {
		return s
	}

	var next []Decoration
	for _, d := range s.decos {
		if d.Kind == KindSuggestion {
			res := tx.MapPos(d.From, document.AssocBefore)
			if res.Deleted || res.Pos < 0 || res.Pos > docLen {
				m.logDrop("suggestion anchor unmappable", d.UnitID, d.From, d.To)
				continue
			}
			d.From = res.Pos
			d.To = res.Pos
			next = append(next, d)
			continue
		}

		from, to, dropped := tx.MapRange(d.From, d.To)
		if dropped || from < 0 || to > docLen {
			m.logDrop("decorated range edited", d.UnitID, d.From, d.To)
			continue
		}
		d.From = from
		d.To = to
		next = append(next, d)
	}
	return Set{decos: next}
}

func (m *Mapper) logDrop(msg string, unit document.ParagraphID, from, to int) {
	if m.logger != nil {
		m.logger.Debug(msg, "unit", string(unit), "from", from, "to", to)
	}
}
