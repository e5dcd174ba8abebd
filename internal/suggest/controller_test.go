package suggest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/prosecheck/internal/annotate/schedule"
	"github.com/dshills/prosecheck/internal/engine/document"
	"github.com/dshills/prosecheck/internal/suggest/backend"
)

type fixedProvider struct {
	text string
	unit document.ParagraphID
	ok   bool
}

func (p fixedProvider) SuggestionContext(anchor int) (string, document.ParagraphID, bool) {
	return p.text, p.unit, p.ok
}

// countingBackend wraps the static backend and counts completions.
type countingBackend struct {
	inner backend.Backend
	calls atomic.Int64
}

func (b *countingBackend) Name() string { return "counting" }
func (b *countingBackend) Complete(ctx context.Context, req backend.Request) (backend.Response, error) {
	b.calls.Add(1)
	return b.inner.Complete(ctx, req)
}

// gatedBackend blocks until released or canceled.
type gatedBackend struct {
	gate  chan struct{}
	calls atomic.Int64
}

func (b *gatedBackend) Name() string { return "gated" }
func (b *gatedBackend) Complete(ctx context.Context, req backend.Request) (backend.Response, error) {
	b.calls.Add(1)
	select {
	case <-b.gate:
		return backend.Response{Text: " continuation"}, nil
	case <-ctx.Done():
		return backend.Response{}, ctx.Err()
	}
}

type ctrlFixture struct {
	sched  *schedule.Manual
	ctrl   *Controller
	shows  chan Pending
	clears chan ClearReason
}

func newCtrlFixture(t *testing.T, b backend.Backend, provider ContextProvider) *ctrlFixture {
	t.Helper()
	f := &ctrlFixture{
		sched:  schedule.NewManual(),
		shows:  make(chan Pending, 8),
		clears: make(chan ClearReason, 8),
	}
	f.ctrl = NewController(b, provider,
		WithScheduler(f.sched),
		WithShowHandler(func(p Pending) { f.shows <- p }),
		WithClearHandler(func(_ Pending, r ClearReason) { f.clears <- r }),
	)
	return f
}

func (f *ctrlFixture) waitShow(t *testing.T) Pending {
	t.Helper()
	select {
	case p := <-f.shows:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a suggestion")
		return Pending{}
	}
}

func (f *ctrlFixture) waitClear(t *testing.T, want ClearReason) {
	t.Helper()
	select {
	case r := <-f.clears:
		if r != want {
			t.Errorf("clear reason = %v, want %v", r, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for clear (%v)", want)
	}
}

func TestTriggerFlow(t *testing.T) {
	provider := fixedProvider{text: "the quick brown fox", unit: "p1", ok: true}

	t.Run("trigger loads and displays", func(t *testing.T) {
		f := newCtrlFixture(t, backend.NewStatic(0), provider)

		f.ctrl.Trigger(19)
		if s := f.ctrl.State(); s != StateTriggered {
			t.Errorf("state = %v, want triggered", s)
		}

		f.sched.Advance(DefaultDebounce)
		p := f.waitShow(t)
		if p.Text != " jumps over the lazy dog." {
			t.Errorf("text = %q", p.Text)
		}
		if p.AnchorPos != 19 || p.Unit != "p1" {
			t.Errorf("pending = %+v", p)
		}
		if s := f.ctrl.State(); s != StateDisplaying {
			t.Errorf("state = %v, want displaying", s)
		}
	})

	t.Run("duplicate triggers collapse into one request", func(t *testing.T) {
		b := &countingBackend{inner: backend.NewStatic(0)}
		f := newCtrlFixture(t, b, provider)

		f.ctrl.Trigger(5)
		f.ctrl.Trigger(5)
		f.ctrl.Trigger(5)
		f.sched.Advance(DefaultDebounce)

		f.waitShow(t)
		if got := b.calls.Load(); got != 1 {
			t.Errorf("backend called %d times, want 1", got)
		}
	})

	t.Run("failed load returns to idle silently", func(t *testing.T) {
		f := newCtrlFixture(t, backend.NewStatic(0), fixedProvider{ok: false})
		f.ctrl.Trigger(0)
		f.sched.Advance(DefaultDebounce)
		if s := f.ctrl.State(); s != StateIdle {
			t.Errorf("state = %v, want idle", s)
		}
	})
}

func TestRetriggerCancelsInFlight(t *testing.T) {
	b := &gatedBackend{gate: make(chan struct{})}
	provider := fixedProvider{text: "context", unit: "p1", ok: true}
	f := newCtrlFixture(t, b, provider)

	f.ctrl.Trigger(3)
	f.sched.Advance(DefaultDebounce)
	waitInt64(t, &b.calls, 1)

	// Retrigger while the first request is in flight: the first request's
	// context is canceled and its eventual return is discarded.
	f.ctrl.Trigger(7)
	f.sched.Advance(DefaultDebounce)
	waitInt64(t, &b.calls, 2)
	close(b.gate)

	p := f.waitShow(t)
	if p.AnchorPos != 7 {
		t.Errorf("anchor = %d, want the retriggered anchor 7", p.AnchorPos)
	}
	select {
	case extra := <-f.shows:
		t.Fatalf("second show from a canceled request: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAcceptReject(t *testing.T) {
	provider := fixedProvider{text: "the quick brown fox", unit: "p1", ok: true}

	display := func(t *testing.T) *ctrlFixture {
		t.Helper()
		f := newCtrlFixture(t, backend.NewStatic(0), provider)
		f.ctrl.Trigger(19)
		f.sched.Advance(DefaultDebounce)
		f.waitShow(t)
		return f
	}

	t.Run("accept returns the pending suggestion", func(t *testing.T) {
		f := display(t)
		p, ok := f.ctrl.Accept()
		if !ok || p.Text == "" {
			t.Fatalf("Accept = %+v, %v", p, ok)
		}
		f.waitClear(t, ReasonAccepted)
		if s := f.ctrl.State(); s != StateIdle {
			t.Errorf("state = %v, want idle", s)
		}
		if _, ok := f.ctrl.Accept(); ok {
			t.Error("second Accept should fail")
		}
	})

	t.Run("tab accepts through the key table", func(t *testing.T) {
		f := display(t)
		if _, consumed := f.ctrl.HandleKeystroke(KeyTab); !consumed {
			t.Error("Tab should be consumed")
		}
		f.waitClear(t, ReasonAccepted)
	})

	t.Run("printable keys reject without being consumed", func(t *testing.T) {
		f := display(t)
		if _, consumed := f.ctrl.HandleKeystroke(KeyPrintable); consumed {
			t.Error("printable keys must pass through")
		}
		f.waitClear(t, ReasonRejected)
		if s := f.ctrl.State(); s != StateIdle {
			t.Errorf("state = %v, want idle", s)
		}
	})

	t.Run("selection away from the anchor rejects", func(t *testing.T) {
		f := display(t)
		// The anchor itself and the position just after are fine.
		f.ctrl.HandleSelection(19)
		f.ctrl.HandleSelection(20)
		if s := f.ctrl.State(); s != StateDisplaying {
			t.Fatalf("state = %v after benign selections", s)
		}
		f.ctrl.HandleSelection(3)
		f.waitClear(t, ReasonRejected)
	})

	t.Run("blur clears", func(t *testing.T) {
		f := display(t)
		f.ctrl.Blur()
		f.waitClear(t, ReasonBlur)
	})
}

func TestHandleTransaction(t *testing.T) {
	provider := fixedProvider{text: "some paragraph text", unit: "p1", ok: true}

	display := func(t *testing.T) *ctrlFixture {
		t.Helper()
		f := newCtrlFixture(t, backend.NewStatic(0), provider)
		f.ctrl.Trigger(10)
		f.sched.Advance(DefaultDebounce)
		f.waitShow(t)
		return f
	}

	t.Run("edit before the anchor invalidates", func(t *testing.T) {
		f := display(t)
		tx := &document.Transaction{
			Steps:      []document.Step{document.Insertion(0, "ab")},
			DocChanged: true,
		}
		f.ctrl.HandleTransaction(tx)
		f.waitClear(t, ReasonInvalidated)
	})

	t.Run("edit covering the anchor invalidates", func(t *testing.T) {
		f := display(t)
		tx := &document.Transaction{
			Steps:      []document.Step{document.Deletion(8, 12)},
			DocChanged: true,
		}
		f.ctrl.HandleTransaction(tx)
		f.waitClear(t, ReasonInvalidated)
	})

	t.Run("edit after the anchor is harmless", func(t *testing.T) {
		f := display(t)
		tx := &document.Transaction{
			Steps:      []document.Step{document.Insertion(15, "xyz")},
			DocChanged: true,
		}
		f.ctrl.HandleTransaction(tx)
		if s := f.ctrl.State(); s != StateDisplaying {
			t.Errorf("state = %v, want displaying", s)
		}
	})
}

func waitInt64(t *testing.T, v *atomic.Int64, n int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v.Load() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("counter never reached %d (got %d)", n, v.Load())
}
