package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeStore holds the short lived one time payment codes. A code can
// be taken at most once; expiry is enforced by the store.
type CodeStore interface {
	Put(ctx context.Context, code string, ttl time.Duration) error
	// Take removes the code and reports whether it was still valid.
	Take(ctx context.Context, code string) (bool, error)
}

// RedisCodeStore keeps codes in Redis with a TTL, the same way the
// platform's QR service does.
type RedisCodeStore struct {
	client *redis.Client
}

func NewRedisCodeStore(client *redis.Client) *RedisCodeStore {
	return &RedisCodeStore{client: client}
}

func (s *RedisCodeStore) key(code string) string {
	return "payment:code:" + code
}

func (s *RedisCodeStore) Put(ctx context.Context, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(code), time.Now().UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to store payment code: %w", err)
	}
	return nil
}

func (s *RedisCodeStore) Take(ctx context.Context, code string) (bool, error) {
	err := s.client.GetDel(ctx, s.key(code)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up payment code: %w", err)
	}
	return true, nil
}
