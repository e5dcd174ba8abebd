// Package orchestrator coordinates analysis of edited paragraphs: it
// debounces edits per paragraph, consults the result cache, dispatches
// cache misses to the worker pool, cancels superseded requests, and
// discards results that arrive stale.
//
// Lock discipline: the orchestrator never calls the document provider or
// the findings handler while holding its own mutex, so the engine is free
// to call NoteTransaction under its own lock.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/prosecheck/internal/annotate/cache"
	"github.com/dshills/prosecheck/internal/annotate/finding"
	"github.com/dshills/prosecheck/internal/annotate/schedule"
	"github.com/dshills/prosecheck/internal/annotate/worker"
	"github.com/dshills/prosecheck/internal/engine/change"
	"github.com/dshills/prosecheck/internal/engine/document"
)

// Default timings.
const (
	DefaultDebounce = 500 * time.Millisecond
	DefaultTimeout  = 2 * time.Second
	DefaultBackoff  = 250 * time.Millisecond
)

// maxAttempts is dispatch plus one retry; the second failure caches an
// empty result so the paragraph is not re-dispatched every keystroke.
const maxAttempts = 2

// State is the per-paragraph scheduling state.
type State uint8

const (
	StateIdle State = iota
	StateDebouncing
	StateInFlight
	StateDone
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateInFlight:
		return "inFlight"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// DocumentProvider supplies immutable paragraph snapshots. The engine's
// implementation synchronizes access to the live document.
type DocumentProvider interface {
	ParagraphSnapshot(id document.ParagraphID) (text string, version document.Version, ok bool)
}

// FindingsHandler receives fresh findings for a paragraph. Called off the
// orchestrator lock, from a background goroutine.
type FindingsHandler func(unit document.ParagraphID, version document.Version, findings []finding.Finding)

type unitState struct {
	state         State
	debounceTimer schedule.Timer
	timeoutTimer  schedule.Timer
	requestID     string
	attempt       int
	hash          cache.Hash
	version       document.Version
}

// Orchestrator schedules paragraph analysis.
type Orchestrator struct {
	provider   DocumentProvider
	detector   *change.Detector
	cache      *cache.ResultCache[[]finding.Finding]
	pool       *worker.Pool
	sched      schedule.Scheduler
	onFindings FindingsHandler
	logger     *slog.Logger

	debounce time.Duration
	timeout  time.Duration
	backoff  time.Duration

	mu    sync.Mutex
	units map[document.ParagraphID]*unitState

	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDebounce sets the per-paragraph debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(o *Orchestrator) { o.debounce = d }
}

// WithTimeout sets the per-request worker timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithBackoff sets the delay before the single retry.
func WithBackoff(d time.Duration) Option {
	return func(o *Orchestrator) { o.backoff = d }
}

// WithScheduler replaces the wall-clock scheduler.
func WithScheduler(s schedule.Scheduler) Option {
	return func(o *Orchestrator) { o.sched = s }
}

// WithFindingsHandler sets the findings sink.
func WithFindingsHandler(h FindingsHandler) Option {
	return func(o *Orchestrator) { o.onFindings = h }
}

// WithLogger enables diagnostic logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator over the given provider, cache, and pool.
func New(provider DocumentProvider, c *cache.ResultCache[[]finding.Finding], pool *worker.Pool, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider: provider,
		detector: change.NewDetector(),
		cache:    c,
		pool:     pool,
		sched:    schedule.NewWall(),
		debounce: DefaultDebounce,
		timeout:  DefaultTimeout,
		backoff:  DefaultBackoff,
		units:    make(map[document.ParagraphID]*unitState),
		quit:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start launches the pool and the response dispatch loop.
func (o *Orchestrator) Start() {
	o.pool.Start()
	o.wg.Add(1)
	go o.dispatchLoop()
}

// Stop cancels all pending work and shuts the pool down.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.stopOnce.Do(func() { close(o.quit) })

	o.mu.Lock()
	for _, us := range o.units {
		if us.debounceTimer != nil {
			us.debounceTimer.Stop()
		}
		if us.timeoutTimer != nil {
			us.timeoutTimer.Stop()
		}
		us.requestID = ""
		us.state = StateIdle
	}
	o.mu.Unlock()

	err := o.pool.Stop(ctx)
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// NoteTransaction schedules checks for every paragraph the transaction
// touched. The document must be the post-transaction document; the caller
// is responsible for synchronizing access to it for the duration of the
// call.
func (o *Orchestrator) NoteTransaction(doc *document.Document, tx *document.Transaction) {
	if !tx.DocChanged {
		return
	}
	kind := o.detector.Classify(tx)
	touched := o.detector.TouchedParagraphs(doc, tx)
	o.logDebug("transaction", "kind", kind.String(), "touched", len(touched))

	for _, id := range touched {
		o.scheduleCheck(id)
	}
}

// ScheduleCheck debounces a check for one paragraph. Exposed for initial
// whole-document passes.
func (o *Orchestrator) ScheduleCheck(id document.ParagraphID) {
	o.scheduleCheck(id)
}

// UnitState returns the scheduling state for a paragraph.
func (o *Orchestrator) UnitState(id document.ParagraphID) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if us, ok := o.units[id]; ok {
		return us.state
	}
	return StateIdle
}

func (o *Orchestrator) scheduleCheck(id document.ParagraphID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	us := o.unitLocked(id)

	// A new edit supersedes whatever is pending: stop the debounce timer,
	// abandon any in-flight request, and start a fresh window.
	if us.debounceTimer != nil {
		us.debounceTimer.Stop()
	}
	if us.state == StateInFlight {
		us.requestID = ""
		if us.timeoutTimer != nil {
			us.timeoutTimer.Stop()
			us.timeoutTimer = nil
		}
	}
	us.attempt = 0
	us.state = StateDebouncing
	us.debounceTimer = o.sched.AfterFunc(o.debounce, func() {
		o.fire(id)
	})
}

// fire runs when a paragraph's debounce window closes: snapshot, consult
// the cache, dispatch on miss.
func (o *Orchestrator) fire(id document.ParagraphID) {
	text, version, ok := o.provider.ParagraphSnapshot(id)
	if !ok {
		// Paragraph no longer exists (merged or deleted).
		o.mu.Lock()
		delete(o.units, id)
		o.mu.Unlock()
		return
	}

	hash := cache.HashText(text)
	if findings, hit := o.cache.Get(hash); hit {
		o.mu.Lock()
		us := o.unitLocked(id)
		if us.state != StateDebouncing {
			o.mu.Unlock()
			return
		}
		us.state = StateDone
		us.hash = hash
		us.version = version
		o.mu.Unlock()
		o.emit(id, version, findings)
		return
	}

	o.dispatch(id, text, version, hash)
}

// dispatch submits one analysis request to the pool.
func (o *Orchestrator) dispatch(id document.ParagraphID, text string, version document.Version, hash cache.Hash) {
	req := worker.Request{
		ID:         uuid.NewString(),
		UnitID:     id,
		DocVersion: version,
		Text:       text,
	}

	o.mu.Lock()
	us := o.unitLocked(id)
	if us.state != StateDebouncing && !(us.state == StateInFlight && us.requestID == "") {
		// A newer edit superseded this dispatch between the snapshot and
		// now; the fresh debounce window owns the paragraph.
		o.mu.Unlock()
		return
	}
	us.state = StateInFlight
	us.requestID = req.ID
	us.hash = hash
	us.version = version
	us.timeoutTimer = o.sched.AfterFunc(o.timeout, func() {
		o.onTimeout(id, req.ID)
	})
	o.mu.Unlock()

	if err := o.pool.Submit(context.Background(), req); err != nil {
		o.logDebug("submit failed", "unit", string(id), "err", err)
		o.failRequest(id, req.ID, err.Error())
	}
}

// dispatchLoop decodes pool responses until stopped.
func (o *Orchestrator) dispatchLoop() {
	defer o.wg.Done()
	for {
		select {
		case <-o.quit:
			return
		case msg := <-o.pool.Responses():
			resp, err := worker.DecodeResponse(msg)
			if err != nil {
				o.logDebug("bad response", "err", err)
				continue
			}
			o.handleResponse(resp)
		}
	}
}

// handleResponse applies the staleness filter and the failure policy.
func (o *Orchestrator) handleResponse(resp worker.Response) {
	if resp.IsError() {
		o.failRequest(resp.UnitID, resp.ID, resp.Err)
		return
	}

	// Version check happens against the paragraph as it is now, not as it
	// was at dispatch: an edit that raced the worker bumps the version
	// and the result is discarded without touching decorations.
	_, current, ok := o.provider.ParagraphSnapshot(resp.UnitID)

	o.mu.Lock()
	us, tracked := o.units[resp.UnitID]
	if !tracked || us.requestID != resp.ID {
		o.mu.Unlock()
		o.logDebug("discarding superseded response", "unit", string(resp.UnitID))
		return
	}
	if us.timeoutTimer != nil {
		us.timeoutTimer.Stop()
		us.timeoutTimer = nil
	}
	if !ok || current != resp.DocVersion {
		us.requestID = ""
		us.state = StateIdle
		o.mu.Unlock()
		o.logDebug("discarding stale response", "unit", string(resp.UnitID))
		return
	}

	us.requestID = ""
	us.state = StateDone
	hash := us.hash
	o.mu.Unlock()

	o.cache.Set(hash, resp.Findings)
	o.emit(resp.UnitID, resp.DocVersion, resp.Findings)
}

// onTimeout converts a hung request into a failure.
func (o *Orchestrator) onTimeout(id document.ParagraphID, requestID string) {
	o.failRequest(id, requestID, "timeout")
}

// failRequest implements the failure policy: one retry with backoff, then
// cache an empty result and go quiet until the text changes.
func (o *Orchestrator) failRequest(id document.ParagraphID, requestID, reason string) {
	o.mu.Lock()
	us, tracked := o.units[id]
	if !tracked || us.requestID != requestID {
		o.mu.Unlock()
		return
	}
	if us.timeoutTimer != nil {
		us.timeoutTimer.Stop()
		us.timeoutTimer = nil
	}
	us.requestID = ""
	us.attempt++

	if us.attempt < maxAttempts {
		attempt := us.attempt
		o.mu.Unlock()
		o.logDebug("retrying after failure", "unit", string(id), "attempt", attempt, "reason", reason)
		o.sched.AfterFunc(o.backoff, func() {
			o.retry(id)
		})
		return
	}

	// Second failure: remember the empty result so the paragraph is not
	// re-dispatched on every keystroke, and leave it unannotated.
	us.state = StateDone
	hash := us.hash
	version := us.version
	o.mu.Unlock()

	o.logDebug("giving up after retry", "unit", string(id), "reason", reason)
	o.cache.Set(hash, nil)
	o.emit(id, version, nil)
}

// retry re-dispatches a failed request against a fresh snapshot.
func (o *Orchestrator) retry(id document.ParagraphID) {
	text, version, ok := o.provider.ParagraphSnapshot(id)
	if !ok {
		return
	}

	o.mu.Lock()
	us, tracked := o.units[id]
	if !tracked || us.state != StateInFlight || us.requestID != "" {
		// A newer edit restarted debouncing; let it win.
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	o.dispatch(id, text, version, cache.HashText(text))
}

// emit forwards findings to the handler, off the lock.
func (o *Orchestrator) emit(id document.ParagraphID, version document.Version, findings []finding.Finding) {
	if o.onFindings != nil {
		o.onFindings(id, version, findings)
	}
}

// unitLocked returns (creating if needed) the state record for id.
// Caller holds the lock.
func (o *Orchestrator) unitLocked(id document.ParagraphID) *unitState {
	us, ok := o.units[id]
	if !ok {
		us = &unitState{state: StateIdle}
		o.units[id] = us
	}
	return us
}

func (o *Orchestrator) logDebug(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}
