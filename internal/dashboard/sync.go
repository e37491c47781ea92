// Package dashboard keeps a user's order and asset read-model in step with
// the store through two live subscriptions.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/store"
	"github.com/fjod/storefront/pkg/logger"
)

const (
	ordersCollection = "orders"
	assetsCollection = "assets"
)

type Feed interface {
	Snapshots() <-chan store.Snapshot
	Unsubscribe()
}

type Subscriber interface {
	Subscribe(ctx context.Context, q store.Query) (Feed, error)
}

type Metrics interface {
	ObserveSnapshot(collection string)
}

type gatewaySubscriber struct {
	g store.Gateway
}

// GatewaySubscriber adapts a persistence gateway to Subscriber.
func GatewaySubscriber(g store.Gateway) Subscriber {
	return gatewaySubscriber{g: g}
}

func (s gatewaySubscriber) Subscribe(ctx context.Context, q store.Query) (Feed, error) {
	sub, err := s.g.Subscribe(ctx, q)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

type ReadModel struct {
	UserID     string                `json:"userId"`
	OrderCount int                   `json:"orderCount"`
	AssetCount int                   `json:"assetCount"`
	Orders     []domain.PrivateOrder `json:"orders"`
	Assets     []domain.Asset        `json:"assets"`
}

// Sync owns the subscriptions for one session. Every snapshot replaces the
// matching sequence wholesale.
type Sync struct {
	appID   string
	store   Subscriber
	metrics Metrics
	logger  *slog.Logger

	lifecycle sync.Mutex
	feeds     []Feed
	wg        sync.WaitGroup

	mu       sync.RWMutex
	model    ReadModel
	watchers map[chan ReadModel]struct{}
}

func NewSync(appID string, s Subscriber, metrics Metrics, log *slog.Logger) *Sync {
	return &Sync{
		appID:    appID,
		store:    s,
		metrics:  metrics,
		logger:   logger.OrDefault(log),
		watchers: make(map[chan ReadModel]struct{}),
	}
}

// Start opens the order and asset subscriptions for uid, replacing any
// running ones.
func (s *Sync) Start(ctx context.Context, uid string) error {
	if uid == "" {
		return domain.ErrAnonymous
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stopLocked()

	s.mu.Lock()
	s.model = ReadModel{UserID: uid}
	s.mu.Unlock()

	orders, err := s.store.Subscribe(ctx, store.Query{
		Collection: store.PrivateCollection(s.appID, uid, ordersCollection),
		OrderBy:    "timestamp",
		Direction:  store.Descending,
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to orders: %w", err)
	}
	assets, err := s.store.Subscribe(ctx, store.Query{
		Collection: store.PrivateCollection(s.appID, uid, assetsCollection),
		OrderBy:    "timestamp",
		Direction:  store.Descending,
	})
	if err != nil {
		orders.Unsubscribe()
		return fmt.Errorf("failed to subscribe to assets: %w", err)
	}

	s.feeds = []Feed{orders, assets}
	s.wg.Add(2)
	go s.consume(orders, s.applyOrders)
	go s.consume(assets, s.applyAssets)

	s.logger.Info("dashboard sync started", "user_id", uid)
	return nil
}

// Stop unsubscribes both feeds and clears the read-model. No update is
// applied after it returns.
func (s *Sync) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stopLocked()
}

func (s *Sync) stopLocked() {
	if len(s.feeds) == 0 {
		return
	}
	for _, f := range s.feeds {
		f.Unsubscribe()
	}
	s.wg.Wait()
	s.feeds = nil

	s.mu.Lock()
	uid := s.model.UserID
	s.model = ReadModel{}
	s.mu.Unlock()
	s.logger.Info("dashboard sync stopped", "user_id", uid)
}

func (s *Sync) consume(f Feed, apply func(store.Snapshot)) {
	defer s.wg.Done()
	for snap := range f.Snapshots() {
		apply(snap)
	}
}

func (s *Sync) applyOrders(snap store.Snapshot) {
	orders := make([]domain.PrivateOrder, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		var o domain.PrivateOrder
		if err := store.Decode(doc, &o); err != nil {
			s.logger.Warn("skipping undecodable order", "path", doc.Path, "err", err)
			continue
		}
		orders = append(orders, o)
	}
	slices.SortStableFunc(orders, func(a, b domain.PrivateOrder) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	s.mu.Lock()
	s.model.Orders = orders
	s.model.OrderCount = len(orders)
	s.mu.Unlock()
	s.changed(ordersCollection)
}

func (s *Sync) applyAssets(snap store.Snapshot) {
	assets := make([]domain.Asset, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		var a domain.Asset
		if err := store.Decode(doc, &a); err != nil {
			s.logger.Warn("skipping undecodable asset", "path", doc.Path, "err", err)
			continue
		}
		assets = append(assets, a)
	}
	slices.SortStableFunc(assets, func(a, b domain.Asset) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	s.mu.Lock()
	s.model.Assets = assets
	s.model.AssetCount = len(assets)
	s.mu.Unlock()
	s.changed(assetsCollection)
}

func (s *Sync) ReadModel() ReadModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyModel()
}

// copyModel returns a copy safe to hand out. Caller holds mu.
func (s *Sync) copyModel() ReadModel {
	m := s.model
	m.Orders = slices.Clone(s.model.Orders)
	m.Assets = slices.Clone(s.model.Assets)
	return m
}

// Watch returns a channel that receives the latest read-model after every
// change. Slow readers only see the newest one. Call cancel when done.
func (s *Sync) Watch() (<-chan ReadModel, func()) {
	ch := make(chan ReadModel, 1)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	ch <- s.copyModel()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, ch)
			s.mu.Unlock()
		})
	}
}

func (s *Sync) changed(collection string) {
	if s.metrics != nil {
		s.metrics.ObserveSnapshot(collection)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	model := s.copyModel()
	for ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- model
	}
}
