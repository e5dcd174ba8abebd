// Package schedule abstracts cancellable timers so debounce logic is
// portable to any scheduler and deterministic under test.
package schedule

import (
	"sort"
	"sync"
	"time"
)

// Timer is a cancellable pending callback.
type Timer interface {
	// Stop cancels the callback. It reports whether the cancellation
	// happened before the callback fired.
	Stop() bool
}

// Scheduler schedules callbacks after a delay.
type Scheduler interface {
	// AfterFunc runs fn after d elapses, on an unspecified goroutine.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Wall is the production scheduler backed by time.AfterFunc.
type Wall struct{}

// NewWall creates a wall-clock scheduler.
func NewWall() Wall {
	return Wall{}
}

type wallTimer struct {
	t *time.Timer
}

// Stop implements Timer.
func (w wallTimer) Stop() bool {
	return w.t.Stop()
}

// AfterFunc implements Scheduler.
func (Wall) AfterFunc(d time.Duration, fn func()) Timer {
	return wallTimer{t: time.AfterFunc(d, fn)}
}

// Manual is a test scheduler driven by explicit Advance calls. Callbacks
// fire synchronously inside Advance, in deadline order.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	nextID  int
	pending []*manualTimer
}

type manualTimer struct {
	owner    *Manual
	id       int
	deadline time.Duration
	fn       func()
	stopped  bool
	fired    bool
}

// Stop implements Timer.
func (t *manualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// NewManual creates a manual scheduler.
func NewManual() *Manual {
	return &Manual{}
}

// AfterFunc implements Scheduler.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := &manualTimer{
		owner:    m,
		id:       m.nextID,
		deadline: m.now + d,
		fn:       fn,
	}
	m.pending = append(m.pending, t)
	return t
}

// Advance moves the clock forward, firing due callbacks in deadline
// order (creation order breaks ties).
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	now := m.now
	m.mu.Unlock()

	for {
		t := m.takeDue(now)
		if t == nil {
			return
		}
		t.fn()
	}
}

// Pending returns the number of unfired, unstopped timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.pending {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

// takeDue pops the earliest due timer, or nil.
func (m *Manual) takeDue(now time.Duration) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()

	sort.SliceStable(m.pending, func(i, j int) bool {
		if m.pending[i].deadline != m.pending[j].deadline {
			return m.pending[i].deadline < m.pending[j].deadline
		}
		return m.pending[i].id < m.pending[j].id
	})

	for _, t := range m.pending {
		if t.fired || t.stopped || t.deadline > now {
			continue
		}
		t.fired = true
		return t
	}

	// Compact fired and stopped timers away.
	live := m.pending[:0]
	for _, t := range m.pending {
		if !t.fired && !t.stopped {
			live = append(live, t)
		}
	}
	m.pending = live
	return nil
}
