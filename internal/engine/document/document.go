package document

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Errors returned by document operations.
var (
	ErrOffsetOutOfRange = errors.New("offset out of range")
	ErrRangeInvalid     = errors.New("invalid range")
)

// ParagraphID uniquely identifies a paragraph across edits.
type ParagraphID string

// Version is a monotonic document revision counter. It increments on every
// applied transaction. Paragraphs also record the version at which their
// text last changed, which is what staleness checks compare against.
type Version uint64

// separator is the paragraph boundary marker in the flat text form.
const separator = "\n\n"

// Paragraph is one checkable block of text.
type Paragraph struct {
	// ID is stable across edits that do not touch this paragraph.
	ID ParagraphID

	// Text is the paragraph content, without the boundary separator.
	Text string

	// Version is the document version at which Text last changed.
	Version Version
}

// Document is an ordered sequence of paragraphs with a flat byte-offset
// coordinate space. Offsets index into Text(), where paragraphs are joined
// by a blank-line separator.
type Document struct {
	paragraphs []Paragraph
	version    Version
}

// New creates a document from initial text. The text is split into
// paragraphs on blank lines. Empty text yields a single empty paragraph.
func New(text string) *Document {
	d := &Document{version: 1}
	for _, part := range strings.Split(text, separator) {
		d.paragraphs = append(d.paragraphs, Paragraph{
			ID:      newParagraphID(),
			Text:    part,
			Version: d.version,
		})
	}
	return d
}

func newParagraphID() ParagraphID {
	return ParagraphID(uuid.NewString())
}

// Version returns the current document version.
func (d *Document) Version() Version {
	return d.version
}

// Text returns the full document text.
func (d *Document) Text() string {
	var sb strings.Builder
	for i, p := range d.paragraphs {
		if i > 0 {
			sb.WriteString(separator)
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// Len returns the total byte length of the flat text.
func (d *Document) Len() int {
	n := 0
	for i, p := range d.paragraphs {
		if i > 0 {
			n += len(separator)
		}
		n += len(p.Text)
	}
	return n
}

// Paragraphs returns a copy of the paragraph list.
func (d *Document) Paragraphs() []Paragraph {
	out := make([]Paragraph, len(d.paragraphs))
	copy(out, d.paragraphs)
	return out
}

// ParagraphByID returns the paragraph with the given id.
func (d *Document) ParagraphByID(id ParagraphID) (Paragraph, bool) {
	for _, p := range d.paragraphs {
		if p.ID == id {
			return p, true
		}
	}
	return Paragraph{}, false
}

// ParagraphStart returns the flat-text offset of the first byte of the
// paragraph's text.
func (d *Document) ParagraphStart(id ParagraphID) (int, bool) {
	off := 0
	for i, p := range d.paragraphs {
		if i > 0 {
			off += len(separator)
		}
		if p.ID == id {
			return off, true
		}
		off += len(p.Text)
	}
	return 0, false
}

// ParagraphAt returns the paragraph containing the given flat-text offset.
// Offsets inside a separator belong to the following paragraph.
func (d *Document) ParagraphAt(offset int) (Paragraph, bool) {
	if offset < 0 || offset > d.Len() {
		return Paragraph{}, false
	}
	off := 0
	for i, p := range d.paragraphs {
		if i > 0 {
			off += len(separator)
		}
		end := off + len(p.Text)
		if offset <= end || i == len(d.paragraphs)-1 {
			return p, true
		}
		off = end
	}
	return Paragraph{}, false
}

// ParagraphSnapshot returns the text and last-modified version of a
// paragraph. It satisfies the orchestrator's document provider interface.
func (d *Document) ParagraphSnapshot(id ParagraphID) (string, Version, bool) {
	p, ok := d.ParagraphByID(id)
	if !ok {
		return "", 0, false
	}
	return p.Text, p.Version, true
}

// Apply applies the given steps in order and returns the transaction
// describing the edit. Each step's coordinates address the document as it
// exists after the preceding steps in the same call.
func (d *Document) Apply(steps ...Step) (*Transaction, error) {
	text := d.Text()
	for _, s := range steps {
		if s.From < 0 || s.To > len(text) {
			return nil, ErrOffsetOutOfRange
		}
		if s.From > s.To {
			return nil, ErrRangeInvalid
		}
		text = text[:s.From] + s.Insert + text[s.To:]
	}

	d.version++
	changed := d.rebuild(text)

	tx := &Transaction{
		Steps:      append([]Step(nil), steps...),
		Version:    d.version,
		DocChanged: len(steps) > 0,
		Changed:    changed,
	}
	return tx, nil
}

// rebuild re-splits the document text into paragraphs, preserving the
// identity of paragraphs whose text is unchanged. Paragraphs in the edited
// region keep their old ids positionally where possible; extra new
// paragraphs get fresh ids. Returns the ids of paragraphs whose text
// changed in this rebuild.
func (d *Document) rebuild(text string) []ParagraphID {
	parts := strings.Split(text, separator)
	old := d.paragraphs

	// Unchanged prefix.
	prefix := 0
	for prefix < len(old) && prefix < len(parts) && old[prefix].Text == parts[prefix] {
		prefix++
	}

	// Unchanged suffix, not overlapping the prefix.
	suffix := 0
	for suffix < len(old)-prefix && suffix < len(parts)-prefix &&
		old[len(old)-1-suffix].Text == parts[len(parts)-1-suffix] {
		suffix++
	}

	next := make([]Paragraph, 0, len(parts))
	next = append(next, old[:prefix]...)

	var changed []ParagraphID
	midOld := old[prefix : len(old)-suffix]
	midNew := parts[prefix : len(parts)-suffix]
	for i, t := range midNew {
		p := Paragraph{Text: t, Version: d.version}
		if i < len(midOld) {
			p.ID = midOld[i].ID
		} else {
			p.ID = newParagraphID()
		}
		changed = append(changed, p.ID)
		next = append(next, p)
	}

	next = append(next, old[len(old)-suffix:]...)
	if len(next) == 0 {
		next = []Paragraph{{ID: newParagraphID(), Version: d.version}}
		changed = append(changed, next[0].ID)
	}
	d.paragraphs = next
	return changed
}
