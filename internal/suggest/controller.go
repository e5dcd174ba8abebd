// Package suggest implements the ghost-text state machine: trigger,
// load, display, then accept, reject, or invalidate. At most one pending
// suggestion exists at a time; a new trigger cancels whatever is pending.
package suggest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/prosecheck/internal/annotate/schedule"
	"github.com/dshills/prosecheck/internal/engine/document"
	"github.com/dshills/prosecheck/internal/suggest/backend"
)

// DefaultDebounce collapses duplicate triggers from fast typing.
const DefaultDebounce = 100 * time.Millisecond

// DefaultTriggerMarker is the character that, doubled, triggers a
// suggestion.
const DefaultTriggerMarker = '+'

// State is the controller state.
type State uint8

const (
	StateIdle State = iota
	StateTriggered
	StateLoading
	StateDisplaying
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTriggered:
		return "triggered"
	case StateLoading:
		return "loading"
	case StateDisplaying:
		return "displaying"
	default:
		return "unknown"
	}
}

// ClearReason explains why a pending suggestion went away.
type ClearReason uint8

const (
	ReasonAccepted ClearReason = iota
	ReasonRejected
	ReasonInvalidated
	ReasonSuperseded
	ReasonError
	ReasonBlur
)

// String returns a human-readable representation of the reason.
func (r ClearReason) String() string {
	switch r {
	case ReasonAccepted:
		return "accepted"
	case ReasonRejected:
		return "rejected"
	case ReasonInvalidated:
		return "invalidated"
	case ReasonSuperseded:
		return "superseded"
	case ReasonError:
		return "error"
	case ReasonBlur:
		return "blur"
	default:
		return "unknown"
	}
}

// Pending is one ghost-text candidate.
type Pending struct {
	// ID identifies the candidate and its decoration.
	ID string

	// AnchorPos is the absolute offset the widget renders at and the
	// text inserts at on accept.
	AnchorPos int

	// Unit is the paragraph containing the anchor.
	Unit document.ParagraphID

	// Text is the suggested continuation.
	Text string
}

// KeyKind classifies keystrokes for the accept/reject table.
type KeyKind uint8

const (
	// KeyTab accepts the displayed suggestion.
	KeyTab KeyKind = iota

	// KeyEscape rejects.
	KeyEscape

	// KeyEnter rejects; the newline still applies.
	KeyEnter

	// KeyPrintable rejects; the character still applies.
	KeyPrintable

	// KeyOther is ignored by the controller.
	KeyOther
)

// ContextProvider supplies the suggestion context for an anchor: the
// paragraph text up to the anchor and the paragraph id.
type ContextProvider interface {
	SuggestionContext(anchor int) (text string, unit document.ParagraphID, ok bool)
}

// ShowHandler is called when a suggestion becomes displayable.
type ShowHandler func(p Pending)

// ClearHandler is called when a pending suggestion is discarded.
type ClearHandler func(p Pending, reason ClearReason)

// Controller drives the ghost-text lifecycle.
type Controller struct {
	backend  backend.Backend
	provider ContextProvider
	sched    schedule.Scheduler
	debounce time.Duration
	logger   *slog.Logger

	onShow  ShowHandler
	onClear ClearHandler

	mu            sync.Mutex
	state         State
	anchor        int
	unit          document.ParagraphID
	requestID     string
	debounceTimer schedule.Timer
	cancel        context.CancelFunc
	pending       *Pending
}

// Option configures a Controller.
type Option func(*Controller)

// WithDebounce sets the trigger debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

// WithScheduler replaces the wall-clock scheduler.
func WithScheduler(s schedule.Scheduler) Option {
	return func(c *Controller) { c.sched = s }
}

// WithShowHandler sets the display callback.
func WithShowHandler(h ShowHandler) Option {
	return func(c *Controller) { c.onShow = h }
}

// WithClearHandler sets the discard callback.
func WithClearHandler(h ClearHandler) Option {
	return func(c *Controller) { c.onClear = h }
}

// WithLogger enables diagnostic logging.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a controller over a backend and context provider.
func NewController(b backend.Backend, provider ContextProvider, opts ...Option) *Controller {
	c := &Controller{
		backend:  b,
		provider: provider,
		sched:    schedule.NewWall(),
		debounce: DefaultDebounce,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns the displayed suggestion, if any.
func (c *Controller) Pending() (Pending, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDisplaying || c.pending == nil {
		return Pending{}, false
	}
	return *c.pending, true
}

// Trigger starts (or restarts) the suggestion flow at an anchor. A
// trigger while Loading or Displaying cancels the previous request or
// widget first. Entry is debounced to collapse duplicate triggers.
func (c *Controller) Trigger(anchor int) {
	c.mu.Lock()
	cleared := c.clearLocked(ReasonSuperseded)
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.state = StateTriggered
	c.anchor = anchor
	c.debounceTimer = c.sched.AfterFunc(c.debounce, c.load)
	c.mu.Unlock()

	c.notifyClear(cleared)
}

// load fires when the trigger debounce closes: snapshot context and call
// the backend.
func (c *Controller) load() {
	c.mu.Lock()
	if c.state != StateTriggered {
		c.mu.Unlock()
		return
	}
	anchor := c.anchor
	c.mu.Unlock()

	text, unit, ok := c.provider.SuggestionContext(anchor)

	c.mu.Lock()
	if c.state != StateTriggered || c.anchor != anchor {
		c.mu.Unlock()
		return
	}
	if !ok {
		c.state = StateIdle
		c.mu.Unlock()
		return
	}

	reqID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	c.state = StateLoading
	c.unit = unit
	c.requestID = reqID
	c.cancel = cancel
	c.mu.Unlock()

	go c.complete(ctx, reqID, anchor, unit, text)
}

// complete performs the backend round trip on its own goroutine.
func (c *Controller) complete(ctx context.Context, reqID string, anchor int, unit document.ParagraphID, text string) {
	resp, err := c.backend.Complete(ctx, backend.Request{Context: text, Position: anchor})

	c.mu.Lock()
	if c.state != StateLoading || c.requestID != reqID {
		c.mu.Unlock()
		return
	}
	c.requestID = ""
	c.cancel = nil

	if err != nil || resp.Text == "" {
		// Backend failures degrade to no suggestion, never to a visible
		// error.
		c.state = StateIdle
		c.mu.Unlock()
		c.logDebug("suggestion request failed", "err", err)
		return
	}

	p := Pending{ID: reqID, AnchorPos: anchor, Unit: unit, Text: resp.Text}
	c.state = StateDisplaying
	c.pending = &p
	c.mu.Unlock()

	if c.onShow != nil {
		c.onShow(p)
	}
}

// Accept commits the displayed suggestion. The caller inserts the
// returned text at the returned anchor.
func (c *Controller) Accept() (Pending, bool) {
	c.mu.Lock()
	if c.state != StateDisplaying || c.pending == nil {
		c.mu.Unlock()
		return Pending{}, false
	}
	p := *c.pending
	c.pending = nil
	c.state = StateIdle
	c.mu.Unlock()

	c.notifyClear(&cleared{p: p, reason: ReasonAccepted})
	return p, true
}

// Reject discards the displayed suggestion.
func (c *Controller) Reject() {
	c.discard(ReasonRejected)
}

// HandleKeystroke applies the accept/reject key table while Displaying.
// It reports whether the keystroke was consumed; everything except Tab is
// left for the editor to apply normally.
func (c *Controller) HandleKeystroke(kind KeyKind) (Pending, bool) {
	switch kind {
	case KeyTab:
		return c.Accept()
	case KeyEscape, KeyEnter, KeyPrintable:
		c.Reject()
		return Pending{}, false
	default:
		return Pending{}, false
	}
}

// HandleSelection rejects the suggestion when the selection moves away
// from the anchor.
func (c *Controller) HandleSelection(pos int) {
	c.mu.Lock()
	displaying := c.state == StateDisplaying
	anchor := c.anchor
	c.mu.Unlock()

	if displaying && pos != anchor && pos != anchor+1 {
		c.Reject()
	}
}

// HandleTransaction remaps the anchor through a document edit. An anchor
// that moves or is deleted invalidates the pending flow silently.
func (c *Controller) HandleTransaction(tx *document.Transaction) {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	res := tx.MapPos(c.anchor, document.AssocBefore)
	moved := res.Deleted || res.Pos != c.anchor
	c.mu.Unlock()

	if moved {
		c.discard(ReasonInvalidated)
	}
}

// Blur returns the controller to Idle on focus loss or unmount.
func (c *Controller) Blur() {
	c.discard(ReasonBlur)
}

// discard cancels whatever is pending and goes Idle.
func (c *Controller) discard(reason ClearReason) {
	c.mu.Lock()
	cleared := c.clearLocked(reason)
	c.state = StateIdle
	c.mu.Unlock()
	c.notifyClear(cleared)
}

type cleared struct {
	p      Pending
	reason ClearReason
}

// clearLocked stops timers, cancels any in-flight request, and detaches
// the pending suggestion. Caller holds the lock and delivers the returned
// notification after unlocking.
func (c *Controller) clearLocked(reason ClearReason) *cleared {
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.requestID = ""

	if c.pending == nil {
		return nil
	}
	p := *c.pending
	c.pending = nil
	return &cleared{p: p, reason: reason}
}

func (c *Controller) notifyClear(cl *cleared) {
	if cl != nil && c.onClear != nil {
		c.onClear(cl.p, cl.reason)
	}
}

func (c *Controller) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
