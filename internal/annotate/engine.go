// Package annotate is the top-level entry point: it owns the document,
// the checking orchestrator, the decoration set, and the ghost-text
// controller, and exposes the edit/accept/ignore operations an editor
// front end drives.
package annotate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dshills/prosecheck/internal/annotate/cache"
	"github.com/dshills/prosecheck/internal/annotate/decoration"
	"github.com/dshills/prosecheck/internal/annotate/finding"
	"github.com/dshills/prosecheck/internal/annotate/orchestrator"
	"github.com/dshills/prosecheck/internal/annotate/rule"
	"github.com/dshills/prosecheck/internal/annotate/rule/luarule"
	"github.com/dshills/prosecheck/internal/annotate/schedule"
	"github.com/dshills/prosecheck/internal/annotate/worker"
	"github.com/dshills/prosecheck/internal/engine/document"
	"github.com/dshills/prosecheck/internal/suggest"
	"github.com/dshills/prosecheck/internal/suggest/backend"
)

// DecorationsHandler receives the full decoration set after every change.
type DecorationsHandler func(s decoration.Set)

// LuaScript is a user rule loaded into every worker pipeline.
type LuaScript struct {
	Name   string
	Script string
}

// Engine wires the document, orchestrator, decoration mapper, and
// suggestion controller together behind one mutex.
//
// Lock discipline: Engine.mu is always taken before any component lock,
// and components call back into the engine only off their own locks.
type Engine struct {
	mu      sync.Mutex
	doc     *document.Document
	decos   decoration.Set
	ignored map[string]struct{}

	dict       *rule.Dictionary
	extra      []rule.Lookup
	lookup     rule.Lookup
	luaScripts []LuaScript

	cache      *cache.ResultCache[[]finding.Finding]
	pool       *worker.Pool
	orch       *orchestrator.Orchestrator
	mapper     *decoration.Mapper
	controller *suggest.Controller

	backend       backend.Backend
	onDecorations DecorationsHandler
	logger        *slog.Logger

	checkSched   schedule.Scheduler
	suggestSched schedule.Scheduler
	debounce     time.Duration
	timeout      time.Duration
	suggestDeb   time.Duration
	cacheCap     int
	workers      int
	trigger      byte
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDictionaryWords seeds the custom dictionary layered over the
// built-in word list.
func WithDictionaryWords(words ...string) EngineOption {
	return func(e *Engine) { e.dict.Add(words...) }
}

// WithExtraLookups layers additional dictionaries, such as the personal
// word list store, into spell checking.
func WithExtraLookups(lookups ...rule.Lookup) EngineOption {
	return func(e *Engine) { e.extra = append(e.extra, lookups...) }
}

// WithLuaScripts adds user rules to every worker pipeline.
func WithLuaScripts(scripts ...LuaScript) EngineOption {
	return func(e *Engine) { e.luaScripts = append(e.luaScripts, scripts...) }
}

// WithBackend sets the suggestion backend. Defaults to the offline
// static backend.
func WithBackend(b backend.Backend) EngineOption {
	return func(e *Engine) { e.backend = b }
}

// WithCheckDebounce sets the per-paragraph check debounce.
func WithCheckDebounce(d time.Duration) EngineOption {
	return func(e *Engine) { e.debounce = d }
}

// WithCheckTimeout sets the per-request worker timeout.
func WithCheckTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.timeout = d }
}

// WithSuggestDebounce sets the trigger debounce.
func WithSuggestDebounce(d time.Duration) EngineOption {
	return func(e *Engine) { e.suggestDeb = d }
}

// WithCacheCapacity sets the result cache capacity.
func WithCacheCapacity(n int) EngineOption {
	return func(e *Engine) { e.cacheCap = n }
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) { e.workers = n }
}

// WithTriggerMarker sets the suggestion trigger character.
func WithTriggerMarker(c byte) EngineOption {
	return func(e *Engine) { e.trigger = c }
}

// WithCheckScheduler replaces the orchestrator's wall clock, for tests.
func WithCheckScheduler(s schedule.Scheduler) EngineOption {
	return func(e *Engine) { e.checkSched = s }
}

// WithSuggestScheduler replaces the controller's wall clock, for tests.
func WithSuggestScheduler(s schedule.Scheduler) EngineOption {
	return func(e *Engine) { e.suggestSched = s }
}

// WithDecorationsHandler sets the render sink.
func WithDecorationsHandler(h DecorationsHandler) EngineOption {
	return func(e *Engine) { e.onDecorations = h }
}

// WithEngineLogger enables diagnostic logging across components.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine over initial text.
func NewEngine(text string, opts ...EngineOption) *Engine {
	e := &Engine{
		doc:        document.New(text),
		decos:      decoration.EmptySet(),
		ignored:    make(map[string]struct{}),
		dict:       rule.NewDictionary(),
		backend:    backend.NewStatic(0),
		debounce:   orchestrator.DefaultDebounce,
		timeout:    orchestrator.DefaultTimeout,
		suggestDeb: suggest.DefaultDebounce,
		cacheCap:   cache.DefaultCapacity,
		workers:    worker.DefaultPoolSize,
		trigger:    suggest.DefaultTriggerMarker,
	}
	for _, opt := range opts {
		opt(e)
	}
	union := rule.Union{rule.BuiltIn(), e.dict}
	e.lookup = append(union, e.extra...)

	e.cache = cache.New[[]finding.Finding](cache.WithCapacity[[]finding.Finding](e.cacheCap))
	e.pool = worker.NewPool(e.buildPipeline, worker.WithPoolSize(e.workers))
	e.mapper = decoration.NewMapper(decoration.WithLogger(e.logger))

	orchOpts := []orchestrator.Option{
		orchestrator.WithDebounce(e.debounce),
		orchestrator.WithTimeout(e.timeout),
		orchestrator.WithFindingsHandler(e.handleFindings),
		orchestrator.WithLogger(e.logger),
	}
	if e.checkSched != nil {
		orchOpts = append(orchOpts, orchestrator.WithScheduler(e.checkSched))
	}
	e.orch = orchestrator.New(e, e.cache, e.pool, orchOpts...)

	ctrlOpts := []suggest.Option{
		suggest.WithDebounce(e.suggestDeb),
		suggest.WithShowHandler(e.showSuggestion),
		suggest.WithClearHandler(e.clearSuggestion),
		suggest.WithLogger(e.logger),
	}
	if e.suggestSched != nil {
		ctrlOpts = append(ctrlOpts, suggest.WithScheduler(e.suggestSched))
	}
	e.controller = suggest.NewController(e.backend, e, ctrlOpts...)
	return e
}

// buildPipeline is the per-worker pipeline factory: built-in rules over
// the layered dictionary plus a fresh Lua interpreter per script.
func (e *Engine) buildPipeline() *rule.Pipeline {
	p := rule.Default(e.lookup)
	for _, s := range e.luaScripts {
		r, err := luarule.Load(s.Name, s.Script)
		if err != nil {
			e.logDebug("lua rule rejected", "name", s.Name, "err", err)
			continue
		}
		p.Append(r)
	}
	return p
}

// Start launches background work and schedules a check of every
// paragraph.
func (e *Engine) Start() {
	e.orch.Start()

	e.mu.Lock()
	paragraphs := e.doc.Paragraphs()
	e.mu.Unlock()
	for _, p := range paragraphs {
		e.orch.ScheduleCheck(p.ID)
	}
}

// Stop cancels pending work and shuts the worker pool down.
func (e *Engine) Stop(ctx context.Context) error {
	e.controller.Blur()
	return e.orch.Stop(ctx)
}

// Text returns the current document text.
func (e *Engine) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Text()
}

// Version returns the current document version.
func (e *Engine) Version() document.Version {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Version()
}

// Decorations returns the current decoration set.
func (e *Engine) Decorations() decoration.Set {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.decos
}

// SetDecorationsHandler sets the render sink after construction.
func (e *Engine) SetDecorationsHandler(h DecorationsHandler) {
	e.mu.Lock()
	e.onDecorations = h
	e.mu.Unlock()
}

// Controller exposes the ghost-text controller for front-end key
// handling.
func (e *Engine) Controller() *suggest.Controller {
	return e.controller
}

// Dictionary returns the custom dictionary layer.
func (e *Engine) Dictionary() *rule.Dictionary {
	return e.dict
}

// ParagraphSnapshot implements orchestrator.DocumentProvider.
func (e *Engine) ParagraphSnapshot(id document.ParagraphID) (string, document.Version, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.ParagraphSnapshot(id)
}

// SuggestionContext implements suggest.ContextProvider: the containing
// paragraph's text up to the anchor.
func (e *Engine) SuggestionContext(anchor int) (string, document.ParagraphID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.doc.ParagraphAt(anchor)
	if !ok {
		return "", "", false
	}
	start, _ := e.doc.ParagraphStart(p.ID)
	local := anchor - start
	if local < 0 {
		local = 0
	}
	if local > len(p.Text) {
		local = len(p.Text)
	}
	return p.Text[:local], p.ID, true
}

// ApplySteps applies an edit, remaps decorations in the same cycle, and
// schedules checks for the touched paragraphs. Typing the trigger marker
// twice in a row starts the suggestion flow; the markers themselves are
// removed from the document.
func (e *Engine) ApplySteps(steps ...document.Step) (*document.Transaction, error) {
	e.mu.Lock()
	tx, err := e.doc.Apply(steps...)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.decos = e.mapper.Remap(tx, e.doc.Len(), e.decos)
	e.orch.NoteTransaction(e.doc, tx)

	anchor, triggered := e.detectTriggerLocked(steps)
	var stripTx *document.Transaction
	if triggered {
		// Remove the marker pair before anyone sees it.
		stripTx, err = e.doc.Apply(document.Deletion(anchor, anchor+2))
		if err == nil {
			e.decos = e.mapper.Remap(stripTx, e.doc.Len(), e.decos)
			e.orch.NoteTransaction(e.doc, stripTx)
		}
	}
	set := e.decos
	e.mu.Unlock()

	e.controller.HandleTransaction(tx)
	if stripTx != nil {
		e.controller.HandleTransaction(stripTx)
	}
	if triggered {
		e.controller.Trigger(anchor)
	}
	e.notifyDecorations(set)
	return tx, nil
}

// detectTriggerLocked reports whether the edit completed a trigger marker
// pair and where the pair starts. Only a typed marker counts: the edit
// must be a single one-character insertion, so pasted text containing the
// marker pair stays literal. Caller holds e.mu.
func (e *Engine) detectTriggerLocked(steps []document.Step) (int, bool) {
	if len(steps) != 1 {
		return 0, false
	}
	s := steps[0]
	if s.From != s.To || len(s.Insert) != 1 || s.Insert[0] != e.trigger {
		return 0, false
	}
	end := s.From + len(s.Insert)
	text := e.doc.Text()
	if end < 2 || end > len(text) {
		return 0, false
	}
	if text[end-2] != e.trigger || text[end-1] != e.trigger {
		return 0, false
	}
	return end - 2, true
}

// HandleKeystroke routes a keystroke through the suggestion key table and
// applies the ghost text when it is accepted. It reports whether the
// keystroke was consumed.
func (e *Engine) HandleKeystroke(kind suggest.KeyKind) bool {
	p, accepted := e.controller.HandleKeystroke(kind)
	if !accepted {
		return false
	}
	if _, err := e.ApplySteps(document.Insertion(p.AnchorPos, p.Text)); err != nil {
		e.logDebug("ghost insert failed", "err", err)
		return false
	}
	return true
}

// HandleSelection forwards a cursor move to the suggestion controller.
func (e *Engine) HandleSelection(pos int) {
	e.controller.HandleSelection(pos)
}

// AcceptFix replaces a flagged range with one of its suggested fixes.
func (e *Engine) AcceptFix(decorationID string, suggestionIndex int) error {
	e.mu.Lock()
	d, ok := e.decos.ByID(decorationID)
	if !ok || d.Kind != decoration.KindFinding {
		e.mu.Unlock()
		return fmt.Errorf("no finding decoration %q", decorationID)
	}
	if suggestionIndex < 0 || suggestionIndex >= len(d.Finding.Suggestions) {
		e.mu.Unlock()
		return fmt.Errorf("suggestion index %d out of range", suggestionIndex)
	}
	from, to := d.From, d.To
	fix := d.Finding.Suggestions[suggestionIndex]
	e.mu.Unlock()

	_, err := e.ApplySteps(document.Replacement(from, to, fix))
	return err
}

// Ignore suppresses a finding by rule and flagged text: every current and
// future finding with the same rule id and flagged text is dropped.
func (e *Engine) Ignore(decorationID string) error {
	e.mu.Lock()
	d, ok := e.decos.ByID(decorationID)
	if !ok || d.Kind != decoration.KindFinding {
		e.mu.Unlock()
		return fmt.Errorf("no finding decoration %q", decorationID)
	}
	text := e.doc.Text()
	key := d.Finding.Key(text[d.From:d.To])
	e.ignored[key] = struct{}{}

	// Drop every displayed finding with the same key, not just this one.
	for _, other := range e.decos.ByKind(decoration.KindFinding) {
		if other.Finding.Key(text[other.From:other.To]) == key {
			e.decos = e.decos.Remove(other.ID)
		}
	}
	set := e.decos
	e.mu.Unlock()

	e.notifyDecorations(set)
	return nil
}

// AddToDictionary accepts a word, invalidates every cached result, and
// rechecks the document.
func (e *Engine) AddToDictionary(word string) {
	e.dict.Add(word)
	e.cache.BumpEpoch()

	e.mu.Lock()
	paragraphs := e.doc.Paragraphs()
	e.mu.Unlock()
	for _, p := range paragraphs {
		e.orch.ScheduleCheck(p.ID)
	}
}

// RuleEpochBump invalidates cached results after an external rule change,
// such as an edited Lua script or a reloaded dictionary file, and
// rechecks the document.
func (e *Engine) RuleEpochBump() {
	e.cache.BumpEpoch()

	e.mu.Lock()
	paragraphs := e.doc.Paragraphs()
	e.mu.Unlock()
	for _, p := range paragraphs {
		e.orch.ScheduleCheck(p.ID)
	}
}

// handleFindings is the orchestrator sink: filter ignored findings, swap
// the paragraph's finding decorations, publish the new set.
func (e *Engine) handleFindings(unit document.ParagraphID, version document.Version, findings []finding.Finding) {
	e.mu.Lock()
	p, ok := e.doc.ParagraphByID(unit)
	if !ok || p.Version != version {
		// The paragraph changed between the version check and here; the
		// next scheduled check owns it.
		e.mu.Unlock()
		return
	}

	kept := findings[:0:0]
	for _, f := range findings {
		if !f.Range.IsValid() || f.Range.End > len(p.Text) {
			continue
		}
		if _, skip := e.ignored[f.Key(p.Text[f.Range.Start:f.Range.End])]; skip {
			continue
		}
		kept = append(kept, f)
	}

	e.decos = e.decos.RemoveUnit(unit)
	for _, d := range e.mapper.Apply(e.doc, unit, kept) {
		e.decos = e.decos.Add(d)
	}
	set := e.decos
	e.mu.Unlock()

	e.notifyDecorations(set)
}

// showSuggestion is the controller's display hook: one ghost widget,
// keyed by the pending id.
func (e *Engine) showSuggestion(p suggest.Pending) {
	e.mu.Lock()
	d := decoration.Decoration{
		ID:        p.ID,
		Kind:      decoration.KindSuggestion,
		From:      p.AnchorPos,
		To:        p.AnchorPos,
		UnitID:    p.Unit,
		GhostText: p.Text,
	}
	e.decos = e.decos.Add(d)
	set := e.decos
	e.mu.Unlock()

	e.notifyDecorations(set)
}

// clearSuggestion is the controller's discard hook.
func (e *Engine) clearSuggestion(p suggest.Pending, reason suggest.ClearReason) {
	e.mu.Lock()
	e.decos = e.decos.Remove(p.ID)
	set := e.decos
	e.mu.Unlock()

	e.logDebug("suggestion cleared", "reason", reason.String())
	e.notifyDecorations(set)
}

// notifyDecorations runs off the engine lock.
func (e *Engine) notifyDecorations(s decoration.Set) {
	e.mu.Lock()
	h := e.onDecorations
	e.mu.Unlock()
	if h != nil {
		h(s)
	}
}

func (e *Engine) logDebug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
