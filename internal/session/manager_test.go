package session

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/clock"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/identity"
	"github.com/fjod/storefront/internal/ledger"
	"github.com/fjod/storefront/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newManager(t *testing.T) (*Manager, *store.Memory, *clock.Manual) {
	clk := clock.NewManual(epoch)
	mem := store.NewMemory(clk, nil)
	cfg := config.Default()
	cfg.AppID = "app"
	mgr := NewManager(cfg, Deps{Store: mem, Clock: clk})
	t.Cleanup(func() {
		mgr.Close()
		mem.Close()
	})
	return mgr, mem, clk
}

func writeOrder(t *testing.T, mem *store.Memory, uid string) {
	_, err := mem.WriteOnce(context.Background(), store.PrivateCollection("app", uid, "orders"), map[string]any{
		"userId":    uid,
		"total":     3999.0,
		"status":    "paid",
		"timestamp": store.ServerTimestamp,
	})
	require.NoError(t, err)
}

func TestManager_GetReusesSession(t *testing.T) {
	mgr, _, _ := newManager(t)

	a := mgr.Get("s1")
	b := mgr.Get("s1")
	c := mgr.Get("s2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	require.NoError(t, a.Cart.Add(ledger.CustomProject(epoch)))
	assert.Zero(t, c.Cart.Len())
	assert.Equal(t, 2, mgr.Len())
}

func TestSession_AuthenticateStartsDashboard(t *testing.T) {
	mgr, mem, _ := newManager(t)
	s := mgr.Get("s1")

	require.NoError(t, s.Authenticate(identity.User{ID: "u1"}))
	writeOrder(t, mem, "u1")

	require.Eventually(t, func() bool {
		return s.Dashboard.ReadModel().OrderCount == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "u1", s.Dashboard.ReadModel().UserID)
}

func TestSession_SwitchUserAndSignOut(t *testing.T) {
	mgr, mem, _ := newManager(t)
	writeOrder(t, mem, "u1")
	s := mgr.Get("s1")

	require.NoError(t, s.Authenticate(identity.User{ID: "u1"}))
	require.Eventually(t, func() bool { return s.Dashboard.ReadModel().OrderCount == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Authenticate(identity.User{ID: "u2"}))
	model := s.Dashboard.ReadModel()
	assert.Equal(t, "u2", model.UserID)
	require.Eventually(t, func() bool { return s.Dashboard.ReadModel().Orders != nil }, time.Second, 5*time.Millisecond)
	assert.Zero(t, s.Dashboard.ReadModel().OrderCount)

	s.SignOut()
	assert.Empty(t, s.Dashboard.ReadModel().UserID)
	assert.True(t, s.User().Anonymous())
}

func TestSession_FollowsIdentityChanges(t *testing.T) {
	mgr, _, _ := newManager(t)
	s := mgr.Get("s1")

	s.Identity.SignIn(identity.User{ID: "u9"})

	require.Eventually(t, func() bool {
		return s.Dashboard.ReadModel().UserID == "u9"
	}, time.Second, 5*time.Millisecond)
}

func TestManager_EvictsIdleSessions(t *testing.T) {
	mgr, _, clk := newManager(t)
	mgr.Get("s1")
	require.Equal(t, 1, mgr.Len())

	clk.Advance(29 * time.Minute)
	mgr.Get("s2")

	require.Eventually(t, func() bool {
		clk.Advance(time.Minute)
		return mgr.Len() == 1
	}, 2*time.Second, 10*time.Millisecond)
	mgr.mu.Lock()
	_, kept := mgr.sessions["s2"]
	mgr.mu.Unlock()
	assert.True(t, kept)
}

func TestManager_End(t *testing.T) {
	mgr, _, _ := newManager(t)
	s := mgr.Get("s1")
	require.NoError(t, s.Authenticate(identity.User{ID: "u1"}))

	mgr.End("s1")

	assert.Zero(t, mgr.Len())
	assert.Empty(t, s.Dashboard.ReadModel().UserID)
}
