// Package session keeps server-side login sessions in redis. A session
// cookie lets browser clients stay signed in without resending the JWT.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"Fixer-backend/internal/model"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

const keyPrefix = "session:"

// Data is what a session remembers about its user.
type Data struct {
	UserID    uint      `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Caller converts the session into the identity used by services.
func (d Data) Caller() model.CallerIdentity {
	return model.CallerIdentity{UserID: d.UserID, Role: d.Role}
}

// Store reads and writes sessions under session:<id> with a sliding TTL.
type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
	now func() time.Time
}

func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl, now: time.Now}
}

// TTL is the lifetime of a session since its last use.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func Key(id string) string {
	return keyPrefix + id
}

func userKey(userID uint) string {
	return fmt.Sprintf("%suser:%d", keyPrefix, userID)
}

// Create starts a session for user and returns its id.
func (s *Store) Create(ctx context.Context, user *model.User) (string, error) {
	id := uuid.NewString()
	raw, err := json.Marshal(Data{UserID: user.ID, Role: user.Role, CreatedAt: s.now().UTC()})
	if err != nil {
		return "", err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, Key(id), raw, s.ttl)
	pipe.SAdd(ctx, userKey(user.ID), id)
	pipe.Expire(ctx, userKey(user.ID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return id, nil
}

// Get loads a session and extends its TTL.
func (s *Store) Get(ctx context.Context, id string) (*Data, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	raw, err := s.rdb.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("corrupt session %s: %w", id, err)
	}
	if err := s.rdb.Expire(ctx, Key(id), s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}
	return &d, nil
}

// Delete ends one session. Deleting an unknown session is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	d, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, Key(id))
	pipe.SRem(ctx, userKey(d.UserID), id)
	_, err = pipe.Exec(ctx)
	return err
}

// DeleteAll ends every session of userID and returns how many were removed.
func (s *Store) DeleteAll(ctx context.Context, userID uint) (int, error) {
	ids, err := s.rdb.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, Key(id))
	}
	removed, err := s.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	if err := s.rdb.Del(ctx, userKey(userID)).Err(); err != nil {
		return int(removed), err
	}
	return int(removed), nil
}
