// Package profile creates and loads user profiles, read through a cache.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/reduction"
	"github.com/fjod/storefront/internal/store"
	"github.com/fjod/storefront/pkg/logger"
	"golang.org/x/sync/singleflight"
)

const (
	profileCollection = "profile"
	profileDoc        = "main"
	defaultName       = "User"
	defaultRole       = "customer"
)

var ErrProfileNotFound = errors.New("profile not found")

// Store is the part of the persistence gateway profiles use.
type Store interface {
	Put(ctx context.Context, docPath string, data map[string]any) error
	ReadOnce(ctx context.Context, docPath string) (store.Document, error)
}

type Service struct {
	appID  string
	store  Store
	cache  Cache
	sfg    singleflight.Group
	logger *slog.Logger

	// gens counts invalidations per user. A cache fill started before an
	// invalidation is dropped.
	mu    sync.Mutex
	gens  map[string]uint64
	fills sync.WaitGroup
}

func NewService(appID string, s Store, cache Cache, log *slog.Logger) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{
		appID:  appID,
		store:  s,
		cache:  cache,
		logger: logger.OrDefault(log),
		gens:   make(map[string]uint64),
	}
}

func (s *Service) docPath(uid string) string {
	return store.Doc(store.PrivateCollection(s.appID, uid, profileCollection), profileDoc)
}

// Ensure writes the profile of an identified user and returns it as stored.
// Name and email are replaced. An existing profile keeps its memberSince,
// role, preferences and storage stats.
func (s *Service) Ensure(ctx context.Context, uid, name, email string) (*domain.UserProfile, error) {
	if uid == "" {
		return nil, domain.ErrAnonymous
	}
	email = strings.TrimSpace(email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, domain.ErrInvalidEmail
		}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultName
	}

	existing, err := s.read(ctx, uid)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}

	p := domain.UserProfile{
		Name:         name,
		Email:        email,
		Role:         defaultRole,
		Preferences:  domain.Preferences{Theme: "dark", Notifications: true},
		StorageStats: domain.StorageStats{TotalSaved: 0},
	}
	if existing != nil {
		if existing.Role != "" {
			p.Role = existing.Role
		}
		if existing.Preferences.Theme != "" {
			p.Preferences = existing.Preferences
		}
		p.StorageStats = existing.StorageStats
	}
	payload, stats, err := reduction.Reduce(p)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to prepare profile: %w", domain.ErrPersistence, err)
	}
	if existing != nil && !existing.MemberSince.IsZero() {
		payload["memberSince"] = existing.MemberSince
	} else {
		payload["memberSince"] = store.ServerTimestamp
	}

	if err := s.store.Put(ctx, s.docPath(uid), payload); err != nil {
		s.logger.Error("failed to write profile", "user_id", uid, "err", err)
		return nil, fmt.Errorf("%w: failed to write profile: %w", domain.ErrPersistence, err)
	}
	s.invalidate(uid)
	s.logger.Info("profile saved", "user_id", uid, "new", existing == nil, "compression_rate", stats.Rate())

	// Read past the cache and any in-flight Load, which may predate the write.
	return s.read(ctx, uid)
}

// Load returns the profile of uid, from the cache when possible. Concurrent
// misses for one user share a single store read.
func (s *Service) Load(ctx context.Context, uid string) (*domain.UserProfile, error) {
	if uid == "" {
		return nil, domain.ErrAnonymous
	}

	v, err, _ := s.sfg.Do(uid, func() (any, error) {
		p, err := s.cache.Get(ctx, uid)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("profile cache get failed", "user_id", uid, "err", err)
		}

		gen := s.generation(uid)
		loaded, err := s.read(ctx, uid)
		if err != nil {
			return nil, err
		}
		s.fill(uid, gen, loaded)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}

	p := *v.(*domain.UserProfile)
	return &p, nil
}

func (s *Service) read(ctx context.Context, uid string) (*domain.UserProfile, error) {
	doc, err := s.store.ReadOnce(ctx, s.docPath(uid))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read profile: %w", domain.ErrPersistence, err)
	}

	var loaded domain.UserProfile
	if err := store.Decode(doc, &loaded); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	loaded.ID = uid
	return &loaded, nil
}

func (s *Service) generation(uid string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[uid]
}

// fill caches p in the background unless uid was invalidated after gen.
func (s *Service) fill(uid string, gen uint64, p *domain.UserProfile) {
	cached := *p
	s.fills.Add(1)
	go func() {
		defer s.fills.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gens[uid] != gen {
			return
		}
		if err := s.cache.Set(ctx, uid, &cached); err != nil {
			s.logger.Warn("profile cache set failed", "user_id", uid, "err", err)
		}
	}()
}

func (s *Service) invalidate(uid string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[uid]++
	if err := s.cache.Delete(ctx, uid); err != nil {
		s.logger.Warn("profile cache invalidate failed", "user_id", uid, "err", err)
	}
}
