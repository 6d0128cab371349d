package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TransientRedisStore implements Transient on Redis, used when REDIS_URL
// is configured. Keys are namespaced under "authme:transient:" so the
// core never collides with anything else sharing the same Redis instance.
type TransientRedisStore struct {
	client *redis.Client
	prefix string
}

func NewTransientRedisStore(redisURL string) (*TransientRedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &TransientRedisStore{client: client, prefix: "authme:transient:"}, nil
}

func (s *TransientRedisStore) Close() error {
	return s.client.Close()
}

func (s *TransientRedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.prefix+key, value, ttl)
	pipe.Set(ctx, s.prefix+key+":attempts", 0, ttl)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store transient record: %w", err)
	}
	return nil
}

func (s *TransientRedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTransientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transient record: %w", err)
	}
	return data, nil
}

func (s *TransientRedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key, s.prefix+key+":attempts").Err(); err != nil {
		return fmt.Errorf("failed to delete transient record: %w", err)
	}
	return nil
}

// IncrementAttempt relies on the attempts counter sharing its TTL with
// the value key (both set together in Put), so an incremented counter
// never outlives the record it's counting attempts against.
func (s *TransientRedisStore) IncrementAttempt(ctx context.Context, key string) (int, error) {
	exists, err := s.client.Exists(ctx, s.prefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to check transient record: %w", err)
	}
	if exists == 0 {
		return 0, ErrTransientNotFound
	}

	ttl, err := s.client.TTL(ctx, s.prefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read transient record ttl: %w", err)
	}

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, s.prefix+key+":attempts")
	if ttl > 0 {
		pipe.Expire(ctx, s.prefix+key+":attempts", ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment attempt counter: %w", err)
	}
	return int(incr.Val()), nil
}
