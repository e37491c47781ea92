package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/clock"
	"github.com/fjod/storefront/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func orderDoc(id string, at time.Time) store.Document {
	return store.Document{
		ID:   id,
		Path: "artifacts/app/users/uid-1/orders/" + id,
		Data: map[string]any{
			"userId":    "uid-1",
			"total":     6498.0,
			"currency":  "INR",
			"status":    "paid",
			"timestamp": at,
			"_meta":     map[string]any{"compressionRate": "21.7%", "sizeBytes": 180},
		},
	}
}

func assetDoc(id string, at time.Time) store.Document {
	return store.Document{
		ID:   id,
		Path: "artifacts/app/users/uid-1/assets/" + id,
		Data: map[string]any{"prompt": id, "type": "image", "timestamp": at.Format(time.RFC3339Nano)},
	}
}

func push(t *testing.T, f *mockFeed, snap store.Snapshot) {
	t.Helper()
	select {
	case f.ch <- snap:
	case <-time.After(time.Second):
		t.Fatal("feed not consumed")
	}
}

func startSync(t *testing.T) (*Sync, *MockSubscriber, *MockMetrics) {
	t.Helper()
	sub := &MockSubscriber{}
	metrics := &MockMetrics{}
	s := NewSync("app", sub, metrics, nil)
	require.NoError(t, s.Start(context.Background(), "uid-1"))
	return s, sub, metrics
}

func TestStart_SubscribesToOrdersAndAssetsDescending(t *testing.T) {
	s, sub, _ := startSync(t)
	defer s.Stop()

	require.Len(t, sub.Queries, 2)
	assert.Equal(t, store.Query{
		Collection: "artifacts/app/users/uid-1/orders",
		OrderBy:    "timestamp",
		Direction:  store.Descending,
	}, sub.Queries[0])
	assert.Equal(t, "artifacts/app/users/uid-1/assets", sub.Queries[1].Collection)
}

func TestStart_RequiresUser(t *testing.T) {
	s := NewSync("app", &MockSubscriber{}, nil, nil)
	assert.ErrorIs(t, s.Start(context.Background(), ""), domain.ErrAnonymous)
}

func TestSnapshots_OutOfOrderTimestampsSortDescending(t *testing.T) {
	s, sub, metrics := startSync(t)
	defer s.Stop()
	orders := sub.Feed("orders")

	t1, t2, t3 := epoch, epoch.Add(time.Minute), epoch.Add(2*time.Minute)

	push(t, orders, store.Snapshot{Docs: []store.Document{orderDoc("b", t2)}})
	push(t, orders, store.Snapshot{Docs: []store.Document{orderDoc("a", t1), orderDoc("b", t2)}})
	push(t, orders, store.Snapshot{Docs: []store.Document{orderDoc("a", t1), orderDoc("c", t3), orderDoc("b", t2)}})

	require.Eventually(t, func() bool { return s.ReadModel().OrderCount == 3 }, time.Second, time.Millisecond)
	model := s.ReadModel()

	var ids []string
	for _, o := range model.Orders {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)
	for i := 1; i < len(model.Orders); i++ {
		assert.True(t, model.Orders[i-1].Timestamp.After(model.Orders[i].Timestamp))
	}
	assert.Equal(t, "21.7%", model.Orders[0].Meta.CompressionRate)
	assert.Equal(t, domain.CurrencyINR, model.Orders[0].Currency)

	metrics.mu.Lock()
	assert.Equal(t, 3, metrics.Snapshots["orders"])
	metrics.mu.Unlock()
}

func TestSnapshots_ReplaceSequenceWholesale(t *testing.T) {
	s, sub, _ := startSync(t)
	defer s.Stop()
	assets := sub.Feed("assets")

	push(t, assets, store.Snapshot{Docs: []store.Document{assetDoc("x", epoch), assetDoc("y", epoch.Add(time.Second))}})
	require.Eventually(t, func() bool { return s.ReadModel().AssetCount == 2 }, time.Second, time.Millisecond)

	push(t, assets, store.Snapshot{Docs: []store.Document{assetDoc("z", epoch.Add(time.Hour))}})
	require.Eventually(t, func() bool { return s.ReadModel().AssetCount == 1 }, time.Second, time.Millisecond)

	model := s.ReadModel()
	assert.Equal(t, "z", model.Assets[0].Prompt)
	assert.Zero(t, model.OrderCount)
}

func TestWatch_ReceivesLatestModel(t *testing.T) {
	s, sub, _ := startSync(t)
	defer s.Stop()

	updates, cancel := s.Watch()
	defer cancel()

	initial := <-updates
	assert.Equal(t, "uid-1", initial.UserID)
	assert.Zero(t, initial.OrderCount)

	push(t, sub.Feed("orders"), store.Snapshot{Docs: []store.Document{orderDoc("a", epoch)}})

	select {
	case m := <-updates:
		assert.Equal(t, 1, m.OrderCount)
	case <-time.After(time.Second):
		t.Fatal("no update")
	}
}

func TestStop_UnsubscribesBoth(t *testing.T) {
	s, sub, _ := startSync(t)
	orders, assets := sub.Feed("orders"), sub.Feed("assets")

	s.Stop()
	s.Stop()

	assert.Equal(t, 1, orders.Unsubscribed())
	assert.Equal(t, 1, assets.Unsubscribed())
	assert.Equal(t, ReadModel{}, s.ReadModel())
}

func TestStart_RestartsForNewUser(t *testing.T) {
	s, sub, _ := startSync(t)
	first := sub.Feed("orders")

	require.NoError(t, s.Start(context.Background(), "uid-2"))
	defer s.Stop()

	assert.Equal(t, 1, first.Unsubscribed())
	assert.Equal(t, "uid-2", s.ReadModel().UserID)
	assert.Equal(t, "artifacts/app/users/uid-2/orders", sub.Queries[2].Collection)
}

func TestStart_AssetSubscribeFailureReleasesOrders(t *testing.T) {
	sub := &MockSubscriber{FailOn: "assets"}
	s := NewSync("app", sub, nil, nil)

	err := s.Start(context.Background(), "uid-1")

	require.Error(t, err)
	assert.Equal(t, 1, sub.Feed("orders").Unsubscribed())
}

func TestSync_WithMemoryGateway(t *testing.T) {
	clk := clock.NewManual(epoch)
	g := store.NewMemory(clk, nil)
	defer g.Close()

	s := NewSync("app", GatewaySubscriber(g), nil, nil)
	require.NoError(t, s.Start(context.Background(), "uid-1"))
	defer s.Stop()

	col := store.PrivateCollection("app", "uid-1", "assets")
	for _, prompt := range []string{"first", "second", "third"} {
		_, err := g.WriteOnce(context.Background(), col, map[string]any{
			"prompt": prompt, "type": "image", "timestamp": store.ServerTimestamp,
		})
		require.NoError(t, err)
		clk.Advance(time.Second)
	}

	require.Eventually(t, func() bool { return s.ReadModel().AssetCount == 3 }, 2*time.Second, time.Millisecond)
	model := s.ReadModel()
	assert.Equal(t, "third", model.Assets[0].Prompt)
	assert.Equal(t, "first", model.Assets[2].Prompt)
}
