package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/clock"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/dashboard"
	"github.com/fjod/storefront/internal/identity"
	"github.com/fjod/storefront/internal/ledger"
	"github.com/fjod/storefront/internal/store"
	"github.com/fjod/storefront/pkg/logger"
)

type Metrics interface {
	checkout.Metrics
	dashboard.Metrics
}

type Deps struct {
	Store     store.Gateway
	Clock     clock.Clock
	Publisher checkout.Publisher
	Metrics   Metrics
	Logger    *slog.Logger
}

// Manager creates sessions on first use and evicts the ones left idle.
type Manager struct {
	cfg  *config.Config
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session

	stopCleanup chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewManager(cfg *config.Config, deps Deps) *Manager {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	deps.Logger = logger.OrDefault(deps.Logger)

	m := &Manager{
		cfg:         cfg,
		deps:        deps,
		sessions:    make(map[string]*Session),
		stopCleanup: make(chan struct{}),
	}
	if cfg.Session.CleanupInterval > 0 && cfg.Session.IdleTimeout > 0 {
		ticker := deps.Clock.NewTicker(cfg.Session.CleanupInterval)
		m.wg.Add(1)
		go m.cleanupLoop(ticker)
	}
	return m
}

// Get returns the session with id, creating it if needed, and marks it as
// used now.
func (m *Manager) Get(id string) *Session {
	now := m.deps.Clock.Now()

	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		s = m.newSession(id)
		m.sessions[id] = s
	}
	m.mu.Unlock()

	s.touch(now)
	return s
}

func (m *Manager) newSession(id string) *Session {
	cart := ledger.New(m.cfg.Pricing)

	opts := []checkout.Option{
		checkout.WithClock(m.deps.Clock),
		checkout.WithLogger(m.deps.Logger.With("session_id", id)),
	}
	if m.deps.Publisher != nil {
		opts = append(opts, checkout.WithPublisher(m.deps.Publisher))
	}
	var syncMetrics dashboard.Metrics
	if m.deps.Metrics != nil {
		opts = append(opts, checkout.WithMetrics(m.deps.Metrics))
		syncMetrics = m.deps.Metrics
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        id,
		Cart:      cart,
		Checkout:  checkout.NewMachine(m.cfg.AppID, cart, m.deps.Store, m.cfg.Checkout, opts...),
		Dashboard: dashboard.NewSync(m.cfg.AppID, dashboard.GatewaySubscriber(m.deps.Store), syncMetrics, m.deps.Logger),
		Identity:  identity.NewMemory(),
		logger:    m.deps.Logger,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.follow()
	return s
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// End closes and forgets the session with id.
func (m *Manager) End(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

func (m *Manager) cleanupLoop(ticker clock.Ticker) {
	defer m.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			m.evictIdle()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Manager) evictIdle() {
	cutoff := m.deps.Clock.Now().Add(-m.cfg.Session.IdleTimeout)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
		m.deps.Logger.Info("session expired", "session_id", s.ID)
	}
}

// Close stops eviction and closes every session.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stopCleanup) })
	m.wg.Wait()

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
