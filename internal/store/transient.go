package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrTransientNotFound is returned when a transient key has expired or was
// never set.
var ErrTransientNotFound = errors.New("transient record not found")

// Transient is the single-use, TTL-scoped key/value store ConsentRequest
// and MfaChallenge sit on top of. Postgres (TransientPostgresStore) is the
// default backend; Redis (TransientRedisStore) is used when REDIS_URL is
// configured, trading a bit of durability for lower write latency on a
// workload that is inherently throwaway.
type Transient interface {
	// Put stores value (JSON-marshaled by the caller's wrapper type) under
	// key with the given TTL, overwriting any existing value.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value for key, or ErrTransientNotFound if absent or
	// expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key unconditionally.
	Delete(ctx context.Context, key string) error

	// IncrementAttempt atomically increments a small integer counter
	// associated with key (MfaChallenge's attemptCount) and returns the
	// new value. Used so concurrent verification attempts against the
	// same challenge can't race past the attempt limit.
	IncrementAttempt(ctx context.Context, key string) (int, error)
}

// PutJSON is a convenience wrapper that marshals v before storing it.
func PutJSON(ctx context.Context, t Transient, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal transient value: %w", err)
	}
	return t.Put(ctx, key, data, ttl)
}

// GetJSON is a convenience wrapper that unmarshals into v.
func GetJSON(ctx context.Context, t Transient, key string, v interface{}) error {
	data, err := t.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal transient value: %w", err)
	}
	return nil
}
