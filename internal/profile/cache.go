package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/redis/go-redis/v9"
)

type Cache interface {
	Get(ctx context.Context, uid string) (*domain.UserProfile, error)
	Set(ctx context.Context, uid string, p *domain.UserProfile) error
	Delete(ctx context.Context, uid string) error
}

var ErrCacheMiss = errors.New("cache miss")

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

func (r *RedisCache) Get(ctx context.Context, uid string) (*domain.UserProfile, error) {
	data, err := r.client.Get(ctx, cacheKey(uid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var p domain.UserProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile failed: %w", err)
	}
	return &p, nil
}

func (r *RedisCache) Set(ctx context.Context, uid string, p *domain.UserProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile failed: %w", err)
	}

	// Jitter spreads expiry so sessions started together do not refill at once.
	ttl := r.baseTTL + time.Duration(rand.IntN(5))*time.Minute
	if err := r.client.Set(ctx, cacheKey(uid), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, uid string) error {
	if err := r.client.Del(ctx, cacheKey(uid)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(uid string) string {
	return fmt.Sprintf("profile:%s", uid)
}

// NopCache always misses. Used when no Redis is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*domain.UserProfile, error) { return nil, ErrCacheMiss }
func (NopCache) Set(context.Context, string, *domain.UserProfile) error   { return nil }
func (NopCache) Delete(context.Context, string) error                     { return nil }
