package clock

import (
	"sort"
	"sync"
	"time"
)

// Manual is a deterministic clock for tests. Time only moves on Advance.
//
// Thread-safety: all methods are safe for concurrent use.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*waiter
}

type waiter struct {
	at      time.Time
	period  time.Duration
	ch      chan time.Time
	fn      func()
	stopped bool
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) After(d time.Duration) <-chan time.Time {
	w := &waiter{ch: make(chan time.Time, 1)}
	m.schedule(w, d)
	return w.ch
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	w := &waiter{fn: f}
	m.schedule(w, d)
	return &manualTimer{m: m, w: w}
}

func (m *Manual) NewTicker(d time.Duration) Ticker {
	w := &waiter{ch: make(chan time.Time, 1), period: d}
	m.schedule(w, d)
	return &manualTicker{m: m, w: w}
}

// Waiters reports how many timers and tickers are pending. Tests use it to
// know a goroutine has parked on the clock before advancing it.
func (m *Manual) Waiters() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}

// Advance moves time forward by d, firing every timer that falls due in order.
// AfterFunc callbacks run synchronously on the calling goroutine.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		w := m.nextDue(target)
		if w == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = w.at
		now := m.now
		if w.period > 0 {
			w.at = w.at.Add(w.period)
			m.waiters = append(m.waiters, w)
		}
		m.mu.Unlock()

		if w.fn != nil {
			w.fn()
			continue
		}
		select {
		case w.ch <- now:
		default:
		}
	}
}

// nextDue pops the earliest waiter due at or before target. Caller holds mu.
func (m *Manual) nextDue(target time.Time) *waiter {
	if len(m.waiters) == 0 {
		return nil
	}
	sort.SliceStable(m.waiters, func(i, j int) bool {
		return m.waiters[i].at.Before(m.waiters[j].at)
	})
	w := m.waiters[0]
	if w.at.After(target) {
		return nil
	}
	m.waiters = m.waiters[1:]
	return w
}

func (m *Manual) schedule(w *waiter, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.at = m.now.Add(d)
	m.waiters = append(m.waiters, w)
}

func (m *Manual) remove(w *waiter) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.stopped = true
	for i, candidate := range m.waiters {
		if candidate == w {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			return true
		}
	}
	return false
}

type manualTimer struct {
	m *Manual
	w *waiter
}

func (t *manualTimer) Stop() bool { return t.m.remove(t.w) }

type manualTicker struct {
	m *Manual
	w *waiter
}

func (t *manualTicker) C() <-chan time.Time { return t.w.ch }
func (t *manualTicker) Stop()               { t.m.remove(t.w) }
