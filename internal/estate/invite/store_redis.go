package invite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"heirloom/internal/platform/redis"
	"heirloom/pkg/platform/sentinel"
)

const keyPrefix = "invite:"

// RedisStore keeps pending invite codes in Redis. Expiry rides on the key
// TTL; GETDEL makes redemption single-use even across instances.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, inviteID string, stored StoredCode, ttl time.Duration) error {
	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal invite code: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+inviteID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("store invite code: %w", err)
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, inviteID string) (*StoredCode, error) {
	payload, err := s.client.GetDel(ctx, keyPrefix+inviteID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, sentinel.ErrExpired
	}
	if err != nil {
		return nil, fmt.Errorf("take invite code: %w", err)
	}
	var stored StoredCode
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal invite code: %w", err)
	}
	return &stored, nil
}
