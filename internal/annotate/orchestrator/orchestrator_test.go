package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/prosecheck/internal/annotate/cache"
	"github.com/dshills/prosecheck/internal/annotate/finding"
	"github.com/dshills/prosecheck/internal/annotate/rule"
	"github.com/dshills/prosecheck/internal/annotate/schedule"
	"github.com/dshills/prosecheck/internal/annotate/token"
	"github.com/dshills/prosecheck/internal/annotate/worker"
	"github.com/dshills/prosecheck/internal/engine/document"
)

// fakeProvider is a mutable paragraph source standing in for the engine.
type fakeProvider struct {
	mu       sync.Mutex
	texts    map[document.ParagraphID]string
	versions map[document.ParagraphID]document.Version
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		texts:    make(map[document.ParagraphID]string),
		versions: make(map[document.ParagraphID]document.Version),
	}
}

func (p *fakeProvider) set(id document.ParagraphID, text string, v document.Version) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts[id] = text
	p.versions[id] = v
}

func (p *fakeProvider) ParagraphSnapshot(id document.ParagraphID) (string, document.Version, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	text, ok := p.texts[id]
	return text, p.versions[id], ok
}

// countingRule records how many times the pipeline actually ran.
type countingRule struct {
	calls *atomic.Int64
}

func (r countingRule) ID() string     { return "test.counting" }
func (r countingRule) Source() string { return "grammar" }
func (r countingRule) Check(text string, _ []token.Token) []finding.Finding {
	r.calls.Add(1)
	return []finding.Finding{{
		Range:   finding.Range{Start: 0, End: 1},
		Message: "counted",
		RuleID:  r.ID(),
		Source:  r.Source(),
	}}
}

// gatedRule blocks every check until the gate closes.
type gatedRule struct {
	gate  chan struct{}
	calls *atomic.Int64
}

func (r gatedRule) ID() string     { return "test.gated" }
func (r gatedRule) Source() string { return "grammar" }
func (r gatedRule) Check(text string, _ []token.Token) []finding.Finding {
	r.calls.Add(1)
	<-r.gate
	return []finding.Finding{{
		Range:   finding.Range{Start: 0, End: 1},
		Message: "gated",
		RuleID:  r.ID(),
		Source:  r.Source(),
	}}
}

type panicRule struct{}

func (panicRule) ID() string     { return "test.panic" }
func (panicRule) Source() string { return "grammar" }
func (panicRule) Check(string, []token.Token) []finding.Finding {
	panic("deliberate")
}

type emission struct {
	unit     document.ParagraphID
	version  document.Version
	findings []finding.Finding
}

type fixture struct {
	provider *fakeProvider
	sched    *schedule.Manual
	cache    *cache.ResultCache[[]finding.Finding]
	pool     *worker.Pool
	orch     *Orchestrator
	emits    chan emission
}

func newFixture(t *testing.T, factory worker.PipelineFactory) *fixture {
	t.Helper()
	f := &fixture{
		provider: newFakeProvider(),
		sched:    schedule.NewManual(),
		cache:    cache.New[[]finding.Finding](),
		emits:    make(chan emission, 16),
	}
	f.pool = worker.NewPool(factory)
	f.orch = New(f.provider, f.cache, f.pool,
		WithScheduler(f.sched),
		WithFindingsHandler(func(unit document.ParagraphID, v document.Version, fs []finding.Finding) {
			f.emits <- emission{unit: unit, version: v, findings: fs}
		}),
	)
	f.orch.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = f.orch.Stop(ctx)
	})
	return f
}

func (f *fixture) waitEmit(t *testing.T) emission {
	t.Helper()
	select {
	case e := <-f.emits:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for findings")
		return emission{}
	}
}

func (f *fixture) expectNoEmit(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case e := <-f.emits:
		t.Fatalf("unexpected emission: %+v", e)
	case <-time.After(within):
	}
}

// advanceUntilEmit keeps moving the manual clock until findings arrive.
// Retry backoff timers are registered asynchronously from the dispatch
// goroutine, so a single well-timed Advance cannot be relied on.
func (f *fixture) advanceUntilEmit(t *testing.T, step time.Duration) emission {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-f.emits:
			return e
		case <-deadline:
			t.Fatal("timed out waiting for findings")
			return emission{}
		case <-time.After(5 * time.Millisecond):
			f.sched.Advance(step)
		}
	}
}

func TestDebounce(t *testing.T) {
	t.Run("bursts collapse into one check", func(t *testing.T) {
		var calls atomic.Int64
		f := newFixture(t, func() *rule.Pipeline {
			return rule.NewPipeline(countingRule{calls: &calls})
		})
		f.provider.set("p1", "some text", 1)

		f.orch.ScheduleCheck("p1")
		f.sched.Advance(DefaultDebounce / 2)
		f.orch.ScheduleCheck("p1")
		f.sched.Advance(DefaultDebounce / 2)
		// Only half the window has passed since the last edit.
		f.expectNoEmit(t, 50*time.Millisecond)

		f.sched.Advance(DefaultDebounce / 2)
		e := f.waitEmit(t)
		if e.unit != "p1" || e.version != 1 {
			t.Errorf("emission = %+v", e)
		}
		if got := calls.Load(); got != 1 {
			t.Errorf("pipeline ran %d times, want 1", got)
		}
	})

	t.Run("vanished paragraph is forgotten", func(t *testing.T) {
		f := newFixture(t, func() *rule.Pipeline { return rule.NewPipeline() })
		f.orch.ScheduleCheck("ghost")
		f.sched.Advance(DefaultDebounce)
		f.expectNoEmit(t, 50*time.Millisecond)
		if s := f.orch.UnitState("ghost"); s != StateIdle {
			t.Errorf("state = %v, want idle", s)
		}
	})
}

func TestCacheHit(t *testing.T) {
	var calls atomic.Int64
	f := newFixture(t, func() *rule.Pipeline {
		return rule.NewPipeline(countingRule{calls: &calls})
	})
	const text = "cached paragraph"
	f.provider.set("p1", text, 4)

	cached := []finding.Finding{{
		Range: finding.Range{Start: 0, End: 6}, Message: "from cache", RuleID: "x", Source: "grammar",
	}}
	f.cache.Set(cache.HashText(text), cached)

	f.orch.ScheduleCheck("p1")
	f.sched.Advance(DefaultDebounce)

	e := f.waitEmit(t)
	if len(e.findings) != 1 || e.findings[0].Message != "from cache" {
		t.Errorf("findings = %+v", e.findings)
	}
	if calls.Load() != 0 {
		t.Errorf("pipeline ran %d times for a cache hit", calls.Load())
	}
	if f.orch.UnitState("p1") != StateDone {
		t.Errorf("state = %v, want done", f.orch.UnitState("p1"))
	}
}

func TestStaleResponse(t *testing.T) {
	gate := make(chan struct{})
	var calls atomic.Int64
	f := newFixture(t, func() *rule.Pipeline {
		return rule.NewPipeline(gatedRule{gate: gate, calls: &calls})
	})
	f.provider.set("p1", "version one text", 1)

	f.orch.ScheduleCheck("p1")
	f.sched.Advance(DefaultDebounce)

	// The worker is now holding the request; the paragraph changes
	// underneath it.
	waitCalls(t, &calls, 1)
	f.provider.set("p1", "version two text", 2)
	close(gate)

	// The response carries version 1 against a version 2 paragraph.
	f.expectNoEmit(t, 200*time.Millisecond)
}

func TestSupersededRequest(t *testing.T) {
	gate := make(chan struct{})
	var calls atomic.Int64
	f := newFixture(t, func() *rule.Pipeline {
		return rule.NewPipeline(gatedRule{gate: gate, calls: &calls})
	})
	f.provider.set("p1", "first snapshot", 1)

	f.orch.ScheduleCheck("p1")
	f.sched.Advance(DefaultDebounce)
	waitCalls(t, &calls, 1)

	// A new edit abandons the in-flight request and starts a new window.
	f.provider.set("p1", "second snapshot", 2)
	f.orch.ScheduleCheck("p1")
	f.sched.Advance(DefaultDebounce)
	waitCalls(t, &calls, 2)

	close(gate)

	e := f.waitEmit(t)
	if e.version != 2 {
		t.Errorf("emitted version %d, want 2", e.version)
	}
	// The abandoned request's response must not produce a second emission.
	f.expectNoEmit(t, 200*time.Millisecond)
}

func TestFailurePolicy(t *testing.T) {
	f := newFixture(t, func() *rule.Pipeline {
		return rule.NewPipeline(panicRule{})
	})
	const text = "doomed paragraph"
	f.provider.set("p1", text, 3)

	f.orch.ScheduleCheck("p1")
	f.sched.Advance(DefaultDebounce)

	// First failure schedules a retry after backoff; the second failure
	// caches the empty result and emits it.
	e := f.advanceUntilEmit(t, DefaultBackoff)
	if e.unit != "p1" || len(e.findings) != 0 {
		t.Errorf("emission = %+v, want empty findings", e)
	}
	if _, hit := f.cache.Get(cache.HashText(text)); !hit {
		t.Error("empty result was not cached")
	}
	if f.orch.UnitState("p1") != StateDone {
		t.Errorf("state = %v, want done", f.orch.UnitState("p1"))
	}
}

func waitCalls(t *testing.T, calls *atomic.Int64, n int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if calls.Load() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("pipeline call count never reached %d (got %d)", n, calls.Load())
}
