// Package session holds per-visitor state: cart, checkout machine, identity
// and dashboard sync. Sessions share nothing in memory except the gateway.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/dashboard"
	"github.com/fjod/storefront/internal/identity"
	"github.com/fjod/storefront/internal/ledger"
)

type Session struct {
	ID        string
	Cart      *ledger.Ledger
	Checkout  *checkout.Machine
	Dashboard *dashboard.Sync
	Identity  *identity.Memory

	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	syncedTo string
	lastSeen time.Time
}

// follow applies identity changes until the session closes.
func (s *Session) follow() {
	changes, stop := s.Identity.Watch()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-s.ctx.Done()
		stop()
	}()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Apply whoever is current, not the value received; a change made
		// through Authenticate may already be newer.
		for range changes {
			s.apply(s.Identity.Current())
		}
	}()
}

// Authenticate switches the session to u and returns once the dashboard sync
// reflects it.
func (s *Session) Authenticate(u identity.User) error {
	s.Identity.SignIn(u)
	return s.apply(s.Identity.Current())
}

func (s *Session) SignOut() {
	s.Identity.SignOut()
	s.apply(s.Identity.Current())
}

func (s *Session) User() identity.User {
	return s.Identity.Current()
}

// apply starts, restarts or stops the dashboard sync for u. Reapplying the
// user the sync already follows is a no-op.
func (s *Session) apply(u identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil || u.ID == s.syncedTo {
		return nil
	}

	if u.Anonymous() {
		s.Dashboard.Stop()
		s.syncedTo = ""
		return nil
	}
	if err := s.Dashboard.Start(s.ctx, u.ID); err != nil {
		s.logger.Error("failed to start dashboard sync", "session_id", s.ID, "user_id", u.ID, "err", err)
		s.syncedTo = ""
		return err
	}
	s.syncedTo = u.ID
	return nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Close tears down the identity watch and the dashboard subscriptions.
func (s *Session) Close() {
	s.cancel()
	s.wg.Wait()
	s.mu.Lock()
	s.Dashboard.Stop()
	s.syncedTo = ""
	s.mu.Unlock()
}
