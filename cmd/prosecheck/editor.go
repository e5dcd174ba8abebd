package main

import (
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/dshills/prosecheck/internal/annotate"
	"github.com/dshills/prosecheck/internal/annotate/decoration"
	"github.com/dshills/prosecheck/internal/config"
	"github.com/dshills/prosecheck/internal/engine/document"
	"github.com/dshills/prosecheck/internal/suggest"
)

// editor is a minimal terminal pad over the annotation engine. It is a
// demo surface, not an editor: one buffer, no undo, no scrolling past
// the screen.
type editor struct {
	screen tcell.Screen
	engine *annotate.Engine
	store  *config.Store
	path   string

	cursor int
	status string
}

func newEditor(engine *annotate.Engine, path string, store *config.Store) (*editor, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}

	ed := &editor{
		screen: screen,
		engine: engine,
		store:  store,
		path:   path,
	}
	// Decoration changes arrive on engine goroutines; wake the event loop
	// instead of drawing from them.
	engine.SetDecorationsHandler(func(decoration.Set) {
		_ = screen.PostEvent(tcell.NewEventInterrupt(nil))
	})
	return ed, nil
}

// Run drives the event loop until quit.
func (ed *editor) Run() error {
	defer ed.screen.Fini()

	for {
		ed.draw()
		switch ev := ed.screen.PollEvent().(type) {
		case *tcell.EventResize:
			ed.screen.Sync()
		case *tcell.EventInterrupt:
			// Redraw on the next loop iteration.
		case *tcell.EventKey:
			quit, err := ed.handleKey(ev)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
	}
}

func (ed *editor) handleKey(ev *tcell.EventKey) (bool, error) {
	switch ev.Key() {
	case tcell.KeyCtrlQ, tcell.KeyCtrlC:
		return true, nil

	case tcell.KeyCtrlS:
		ed.save()

	case tcell.KeyTab:
		if p, ok := ed.engine.Controller().Pending(); ok {
			if ed.engine.HandleKeystroke(suggest.KeyTab) {
				ed.cursor = p.AnchorPos + len(p.Text)
			}
		}

	case tcell.KeyEscape:
		ed.engine.HandleKeystroke(suggest.KeyEscape)

	case tcell.KeyEnter:
		ed.engine.HandleKeystroke(suggest.KeyEnter)
		ed.insert("\n")

	case tcell.KeyBackspace, tcell.KeyBackspace2:
		ed.backspace()

	case tcell.KeyLeft:
		ed.moveCursor(ed.prevOffset())
	case tcell.KeyRight:
		ed.moveCursor(ed.nextOffset())
	case tcell.KeyUp:
		ed.moveCursor(ed.verticalOffset(-1))
	case tcell.KeyDown:
		ed.moveCursor(ed.verticalOffset(1))

	case tcell.KeyCtrlA:
		ed.acceptFixAtCursor()
	case tcell.KeyCtrlG:
		ed.ignoreAtCursor()
	case tcell.KeyCtrlD:
		ed.addWordAtCursor()

	case tcell.KeyRune:
		ed.engine.HandleKeystroke(suggest.KeyPrintable)
		ed.insert(string(ev.Rune()))
	}
	return false, nil
}

// insert types text at the cursor. The engine may shrink the document
// afterwards (trigger markers are stripped); the cursor follows.
func (ed *editor) insert(s string) {
	before := len(ed.engine.Text())
	if _, err := ed.engine.ApplySteps(document.Insertion(ed.cursor, s)); err != nil {
		ed.status = err.Error()
		return
	}
	ed.cursor += len(s)
	if d := before + len(s) - len(ed.engine.Text()); d > 0 {
		ed.cursor -= d
	}
	ed.clampCursor()
}

func (ed *editor) backspace() {
	prev := ed.prevOffset()
	if prev == ed.cursor {
		return
	}
	if _, err := ed.engine.ApplySteps(document.Deletion(prev, ed.cursor)); err != nil {
		ed.status = err.Error()
		return
	}
	ed.cursor = prev
	ed.clampCursor()
}

func (ed *editor) moveCursor(to int) {
	ed.cursor = to
	ed.clampCursor()
	ed.engine.HandleSelection(ed.cursor)
}

func (ed *editor) clampCursor() {
	if n := len(ed.engine.Text()); ed.cursor > n {
		ed.cursor = n
	}
	if ed.cursor < 0 {
		ed.cursor = 0
	}
}

func (ed *editor) prevOffset() int {
	text := ed.engine.Text()
	if ed.cursor <= 0 {
		return 0
	}
	_, size := utf8.DecodeLastRuneInString(text[:ed.cursor])
	return ed.cursor - size
}

func (ed *editor) nextOffset() int {
	text := ed.engine.Text()
	if ed.cursor >= len(text) {
		return len(text)
	}
	_, size := utf8.DecodeRuneInString(text[ed.cursor:])
	return ed.cursor + size
}

// verticalOffset moves the cursor one display line up or down, keeping
// the column where possible.
func (ed *editor) verticalOffset(dir int) int {
	text := ed.engine.Text()
	lineStart := 0
	for i := ed.cursor - 1; i >= 0; i-- {
		if text[i] == '\n' {
			lineStart = i + 1
			break
		}
	}
	col := ed.cursor - lineStart

	if dir < 0 {
		if lineStart == 0 {
			return ed.cursor
		}
		prevStart := 0
		for i := lineStart - 2; i >= 0; i-- {
			if text[i] == '\n' {
				prevStart = i + 1
				break
			}
		}
		return min(prevStart+col, lineStart-1)
	}

	nextStart := -1
	for i := ed.cursor; i < len(text); i++ {
		if text[i] == '\n' {
			nextStart = i + 1
			break
		}
	}
	if nextStart < 0 {
		return ed.cursor
	}
	nextEnd := len(text)
	for i := nextStart; i < len(text); i++ {
		if text[i] == '\n' {
			nextEnd = i
			break
		}
	}
	return min(nextStart+col, nextEnd)
}

func (ed *editor) findingAtCursor() (decoration.Decoration, bool) {
	for _, d := range ed.engine.Decorations().At(ed.cursor) {
		if d.Kind == decoration.KindFinding {
			return d, true
		}
	}
	return decoration.Decoration{}, false
}

func (ed *editor) acceptFixAtCursor() {
	d, ok := ed.findingAtCursor()
	if !ok || len(d.Finding.Suggestions) == 0 {
		ed.status = "no fix under cursor"
		return
	}
	if err := ed.engine.AcceptFix(d.ID, 0); err != nil {
		ed.status = err.Error()
		return
	}
	ed.clampCursor()
	ed.status = "applied: " + d.Finding.Message
}

func (ed *editor) ignoreAtCursor() {
	d, ok := ed.findingAtCursor()
	if !ok {
		ed.status = "no finding under cursor"
		return
	}
	if err := ed.engine.Ignore(d.ID); err != nil {
		ed.status = err.Error()
		return
	}
	ed.status = "ignored: " + d.Finding.RuleID
}

func (ed *editor) addWordAtCursor() {
	d, ok := ed.findingAtCursor()
	if !ok {
		ed.status = "no finding under cursor"
		return
	}
	word := ed.engine.Text()[d.From:d.To]
	if err := ed.store.Add(word); err != nil {
		ed.status = err.Error()
		return
	}
	ed.engine.AddToDictionary(word)
	ed.status = "added to dictionary: " + word
}

func (ed *editor) save() {
	if ed.path == "" {
		ed.status = "no file to save"
		return
	}
	if err := os.WriteFile(ed.path, []byte(ed.engine.Text()), 0o644); err != nil {
		ed.status = err.Error()
		return
	}
	ed.status = "saved " + ed.path
}

// ghostStyle dims the default foreground toward the background so the
// suggestion reads as provisional.
func ghostStyle() tcell.Style {
	fg := colorful.Color{R: 0.85, G: 0.85, B: 0.85}
	bg := colorful.Color{R: 0.08, G: 0.08, B: 0.10}
	dim := fg.BlendLab(bg, 0.55)
	r, g, b := dim.RGB255()
	return tcell.StyleDefault.
		Foreground(tcell.NewRGBColor(int32(r), int32(g), int32(b))).
		Italic(true)
}

func (ed *editor) draw() {
	ed.screen.Clear()
	width, height := ed.screen.Size()
	if width == 0 || height == 0 {
		return
	}

	text := ed.engine.Text()
	decos := ed.engine.Decorations()
	findings := decos.ByKind(decoration.KindFinding)
	ghosts := decos.ByKind(decoration.KindSuggestion)

	base := tcell.StyleDefault
	flagged := base.Underline(true).Foreground(tcell.ColorRed)
	ghost := ghostStyle()

	inFinding := func(off int) bool {
		for _, d := range findings {
			if d.From <= off && off < d.To {
				return true
			}
		}
		return false
	}
	ghostAt := func(off int) (decoration.Decoration, bool) {
		for _, d := range ghosts {
			if d.From == off {
				return d, true
			}
		}
		return decoration.Decoration{}, false
	}

	x, y := 0, 0
	cursorX, cursorY := 0, 0
	drawRune := func(r rune, style tcell.Style) {
		if y >= height-1 {
			return
		}
		if r == '\n' {
			x = 0
			y++
			return
		}
		if x < width {
			ed.screen.SetContent(x, y, r, nil, style)
		}
		x++
	}

	for off, r := range text {
		if g, ok := ghostAt(off); ok {
			for _, gr := range g.GhostText {
				drawRune(gr, ghost)
			}
		}
		if off == ed.cursor {
			cursorX, cursorY = x, y
		}
		style := base
		if inFinding(off) {
			style = flagged
		}
		drawRune(r, style)
	}
	if g, ok := ghostAt(len(text)); ok {
		for _, gr := range g.GhostText {
			drawRune(gr, ghost)
		}
	}
	if ed.cursor == len(text) {
		cursorX, cursorY = x, y
	}
	ed.screen.ShowCursor(cursorX, cursorY)

	statusStyle := base.Reverse(true)
	status := fmt.Sprintf(" prosecheck %s | findings %d | ++ suggest | Tab accept | Ctrl+Q quit ", version, len(findings))
	if ed.status != "" {
		status += "| " + ed.status + " "
	}
	for i := 0; i < width; i++ {
		r := ' '
		if i < len(status) {
			r = rune(status[i])
		}
		ed.screen.SetContent(i, height-1, r, nil, statusStyle)
	}

	ed.screen.Show()
}
