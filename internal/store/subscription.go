package store

import (
	"context"
	"log/slog"
	"sync"
)

type fetchFunc func(ctx context.Context) (Snapshot, error)

// Subscription is a live query. Snapshots are conflated: a slow reader only
// sees the latest result set. The channel is closed once the subscription
// ends, either through Unsubscribe, context cancellation or a backend error.
type Subscription struct {
	out     chan Snapshot
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	release func()
	cancel  context.CancelFunc
	logger  *slog.Logger
}

// startSubscription delivers an initial snapshot and refetches on every
// signal from changes. release detaches the backend watcher.
func startSubscription(ctx context.Context, fetch fetchFunc, changes <-chan struct{}, release func(), logger *slog.Logger) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		out:     make(chan Snapshot, 1),
		done:    make(chan struct{}),
		release: release,
		cancel:  cancel,
		logger:  logger,
	}
	s.wg.Add(1)
	go s.run(ctx, fetch, changes)
	return s
}

func (s *Subscription) Snapshots() <-chan Snapshot {
	return s.out
}

// Unsubscribe stops delivery. Nothing is readable from Snapshots after it
// returns. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
		if s.release != nil {
			s.release()
		}
		s.wg.Wait()
		for range s.out {
		}
	})
}

func (s *Subscription) run(ctx context.Context, fetch fetchFunc, changes <-chan struct{}) {
	defer s.wg.Done()
	defer close(s.out)
	defer s.cancel()

	for {
		snap, err := fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("failed to refresh subscription", "err", err)
		} else if !s.deliver(snap) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
		}
	}
}

func (s *Subscription) deliver(snap Snapshot) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	// Only this goroutine sends, so after draining the buffer has room.
	select {
	case <-s.out:
	default:
	}
	s.out <- snap
	return true
}

// hub fans change signals out to the watchers of a collection.
type hub struct {
	mu       sync.Mutex
	watchers map[string]map[chan struct{}]struct{}
	closed   bool
}

func newHub() *hub {
	return &hub{watchers: make(map[string]map[chan struct{}]struct{})}
}

func (h *hub) watch(collection string) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan struct{}, 1)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	if h.watchers[collection] == nil {
		h.watchers[collection] = make(map[chan struct{}]struct{})
	}
	h.watchers[collection][ch] = struct{}{}

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.watchers[collection], ch)
		if len(h.watchers[collection]) == 0 {
			delete(h.watchers, collection)
		}
	}
}

func (h *hub) notify(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.watchers[collection] {
		signal(ch)
	}
}

func (h *hub) notifyAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.watchers {
		for ch := range set {
			signal(ch)
		}
	}
}

// close ends every watcher. Subscriptions drain and close their channels.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, set := range h.watchers {
		for ch := range set {
			close(ch)
		}
	}
	h.watchers = make(map[string]map[chan struct{}]struct{})
}

func (h *hub) count(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[collection])
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
