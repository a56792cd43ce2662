package summarycache

import (
	"context"
	"fmt"
	"time"

	"citypee/pkg/redis"
)

// RedisStore shares cached summaries between instances. Only the body is
// stored; the ETag is recomputed from it on read.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed Store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	body, err := s.client.Get(ctx, s.client.KeyBuilder.KeySummary(key))
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached summary: %w", err)
	}
	return &Entry{Body: []byte(body), ETag: ETag([]byte(body))}, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) (string, error) {
	body, err := Encode(value)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	kb := s.client.KeyBuilder
	fullKey := kb.KeySummary(key)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, fullKey, body, ttl)
	pipe.SAdd(ctx, kb.KeySummaryIndex(), fullKey)
	pipe.Expire(ctx, kb.KeySummaryIndex(), 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to cache summary: %w", err)
	}
	return ETag(body), nil
}

// HasMatchingETag implements Store.
func (s *RedisStore) HasMatchingETag(ctx context.Context, key, etag string) (bool, error) {
	return hasMatchingETag(ctx, s, key, etag)
}

// Clear implements Store by deleting every key listed in the index set.
func (s *RedisStore) Clear(ctx context.Context) error {
	index := s.client.KeyBuilder.KeySummaryIndex()
	keys, err := s.client.SMembers(ctx, index)
	if err != nil {
		return fmt.Errorf("failed to list cached summaries: %w", err)
	}
	if err := s.client.Delete(ctx, append(keys, index)...); err != nil {
		return fmt.Errorf("failed to clear cached summaries: %w", err)
	}
	return nil
}
