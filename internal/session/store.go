package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 2 * time.Hour

// Store keeps JSON values per (session, key) with a sliding TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Store{client: client, ttl: ttl}, nil
}

func (s *Store) Load(ctx context.Context, sessionID, key string, dst any) (bool, error) {
	if sessionID == "" {
		return false, fmt.Errorf("sessionID is empty")
	}

	data, err := s.client.GetEx(ctx, valueKey(sessionID, key), s.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("client.GetEx: %w", err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("json.Unmarshal: %w", err)
	}
	return true, nil
}

func (s *Store) Save(ctx context.Context, sessionID, key string, value any) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is empty")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	if err := s.client.Set(ctx, valueKey(sessionID, key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("client.Set: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, sessionID, key string) error {
	if err := s.client.Del(ctx, valueKey(sessionID, key)).Err(); err != nil {
		return fmt.Errorf("client.Del: %w", err)
	}
	return nil
}

func valueKey(sessionID, key string) string {
	return fmt.Sprintf("session:%s:%s", sessionID, key)
}
