package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/fjod/storefront/internal/store"
)

// mockFeed is a feed the test pushes snapshots into.
type mockFeed struct {
	ch           chan store.Snapshot
	once         sync.Once
	unsubscribed int
	mu           sync.Mutex
}

func newMockFeed() *mockFeed {
	return &mockFeed{ch: make(chan store.Snapshot)}
}

func (f *mockFeed) Snapshots() <-chan store.Snapshot { return f.ch }

func (f *mockFeed) Unsubscribe() {
	f.mu.Lock()
	f.unsubscribed++
	f.mu.Unlock()
	f.once.Do(func() { close(f.ch) })
}

func (f *mockFeed) Unsubscribed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribed
}

// MockSubscriber implements Subscriber and keeps the feeds it hands out by
// collection name.
type MockSubscriber struct {
	mu      sync.Mutex
	Feeds   map[string]*mockFeed
	Queries []store.Query
	FailOn  string
}

func (m *MockSubscriber) Subscribe(_ context.Context, q store.Query) (Feed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOn != "" && strings.HasSuffix(q.Collection, m.FailOn) {
		return nil, errors.New("subscribe failed")
	}
	if m.Feeds == nil {
		m.Feeds = make(map[string]*mockFeed)
	}
	f := newMockFeed()
	m.Feeds[q.Collection[strings.LastIndex(q.Collection, "/")+1:]] = f
	m.Queries = append(m.Queries, q)
	return f, nil
}

func (m *MockSubscriber) Feed(name string) *mockFeed {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Feeds[name]
}

type MockMetrics struct {
	mu        sync.Mutex
	Snapshots map[string]int
}

func (m *MockMetrics) ObserveSnapshot(collection string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Snapshots == nil {
		m.Snapshots = make(map[string]int)
	}
	m.Snapshots[collection]++
}
