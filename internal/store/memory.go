package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fjod/storefront/internal/clock"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/google/uuid"
)

// Memory is an in-process gateway. Each document is stored as an independent
// deep copy.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	closed      bool

	stamps *stamper
	hub    *hub
	logger *slog.Logger
}

func NewMemory(c clock.Clock, log *slog.Logger) *Memory {
	return &Memory{
		collections: make(map[string]map[string]Document),
		stamps:      newStamper(c),
		hub:         newHub(),
		logger:      logger.OrDefault(log),
	}
}

func (m *Memory) WriteOnce(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := m.write(ctx, collection, id, data, false); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Memory) Put(ctx context.Context, docPath string, data map[string]any) error {
	collection, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}
	return m.write(ctx, collection, id, data, true)
}

func (m *Memory) write(ctx context.Context, collection, id string, data map[string]any, replace bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	docs := m.collections[collection]
	if docs == nil {
		docs = make(map[string]Document)
		m.collections[collection] = docs
	}
	existing, exists := docs[id]
	if exists && !replace {
		m.mu.Unlock()
		return fmt.Errorf("document %s already exists", Doc(collection, id))
	}

	ts, seq := m.stamps.next()
	doc := Document{
		ID:         id,
		Path:       Doc(collection, id),
		Data:       resolve(data, ts),
		Seq:        seq,
		CreateTime: ts,
	}
	if exists {
		doc.Seq = existing.Seq
		doc.CreateTime = existing.CreateTime
	}
	docs[id] = doc
	m.mu.Unlock()

	m.hub.notify(collection)
	return nil
}

func (m *Memory) ReadOnce(ctx context.Context, docPath string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	collection, id, err := SplitDoc(docPath)
	if err != nil {
		return Document{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Document{}, ErrClosed
	}
	doc, ok := m.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return cloneDocument(doc), nil
}

func (m *Memory) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	if err := validCollection(q.Collection); err != nil {
		return nil, err
	}
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	changes, release := m.hub.watch(q.Collection)
	fetch := func(context.Context) (Snapshot, error) {
		return m.query(q), nil
	}
	return startSubscription(ctx, fetch, changes, release, m.logger), nil
}

func (m *Memory) query(q Query) Snapshot {
	m.mu.RLock()
	docs := make([]Document, 0, len(m.collections[q.Collection]))
	for _, doc := range m.collections[q.Collection] {
		docs = append(docs, cloneDocument(doc))
	}
	m.mu.RUnlock()

	q.sort(docs)
	return Snapshot{Collection: q.Collection, Docs: docs}
}

// Close ends all subscriptions. Further calls fail with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.hub.close()
	return nil
}
