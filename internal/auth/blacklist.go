package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// JwtBlacklistStore remembers revoked token ids until they would expire anyway.
type JwtBlacklistStore interface {
	// IsBlacklisted checks if the given JWT ID (jti) is blacklisted.
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	// AddToBlacklist adds the given JWT ID (jti) to the blacklist with an expiration time.
	AddToBlacklist(ctx context.Context, jti string, exp time.Time) error
}

// InMemoryBlacklistStore serves single-instance deployments without redis.
type InMemoryBlacklistStore struct {
	blacklist map[string]time.Time
	mu        sync.RWMutex
}

// NewInMemoryBlacklistStore starts a cleanup loop that stops with ctx.
func NewInMemoryBlacklistStore(ctx context.Context) *InMemoryBlacklistStore {
	store := &InMemoryBlacklistStore{
		blacklist: make(map[string]time.Time),
	}
	go store.periodicallyCleanUp(ctx, 5*time.Minute)
	return store
}

func (s *InMemoryBlacklistStore) periodicallyCleanUp(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CleanUpExpired()
		}
	}
}

func (s *InMemoryBlacklistStore) CleanUpExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for jti, exp := range s.blacklist {
		if exp.Before(now) {
			delete(s.blacklist, jti)
		}
	}
}

func (s *InMemoryBlacklistStore) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.blacklist[jti]
	return exists, nil
}

func (s *InMemoryBlacklistStore) AddToBlacklist(_ context.Context, jti string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blacklist[jti] = exp
	return nil
}

const revokedPrefix = "token:revoked:"

// RedisBlacklistStore shares revocations between API instances.
type RedisBlacklistStore struct {
	rdb redis.Cmdable
}

func NewRedisBlacklistStore(rdb redis.Cmdable) *RedisBlacklistStore {
	return &RedisBlacklistStore{rdb: rdb}
}

func (s *RedisBlacklistStore) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, revokedPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return n > 0, nil
}

func (s *RedisBlacklistStore) AddToBlacklist(ctx context.Context, jti string, exp time.Time) error {
	ttl := time.Until(exp)
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, revokedPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}
