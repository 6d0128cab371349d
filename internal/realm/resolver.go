package realm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/authme/core/internal/store"
)

// ErrNotFound is returned when no realm with the given name exists.
var ErrNotFound = errors.New("realm not found")

// ErrDisabled is returned when the realm exists but is disabled.
var ErrDisabled = errors.New("realm disabled")

const cacheTTL = 60 * time.Second

type cacheEntry struct {
	realm     store.Realm
	expiresAt time.Time
}

// realmLoader is the subset of *store.RealmRepo the resolver needs; an
// interface so tests can substitute an in-memory fake instead of a live
// database.
type realmLoader interface {
	GetByName(ctx context.Context, name string) (store.Realm, error)
}

// Resolver loads realms by name, caching each lookup for up to 60
// seconds so the hot path of every request doesn't round-trip to
// Postgres for configuration that changes rarely.
type Resolver struct {
	repo realmLoader

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func NewResolver(repo *store.RealmRepo) *Resolver {
	return &Resolver{
		repo:  repo,
		cache: make(map[string]cacheEntry),
	}
}

// Resolve returns the realm named name, or ErrNotFound / ErrDisabled.
func (res *Resolver) Resolve(ctx context.Context, name string) (store.Realm, error) {
	if r, ok := res.fromCache(name); ok {
		return res.checkEnabled(r)
	}

	r, err := res.repo.GetByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return store.Realm{}, ErrNotFound
	}
	if err != nil {
		return store.Realm{}, fmt.Errorf("failed to resolve realm %q: %w", name, err)
	}

	res.mu.Lock()
	res.cache[name] = cacheEntry{realm: r, expiresAt: time.Now().Add(cacheTTL)}
	res.mu.Unlock()

	return res.checkEnabled(r)
}

func (res *Resolver) checkEnabled(r store.Realm) (store.Realm, error) {
	if !r.Enabled {
		return store.Realm{}, ErrDisabled
	}
	return r, nil
}

func (res *Resolver) fromCache(name string) (store.Realm, bool) {
	res.mu.RLock()
	defer res.mu.RUnlock()
	entry, ok := res.cache[name]
	if !ok || time.Now().After(entry.expiresAt) {
		return store.Realm{}, false
	}
	return entry.realm, true
}

// Invalidate drops name from the cache, used by admin operations that
// change realm settings and need the change visible immediately rather
// than waiting out the TTL.
func (res *Resolver) Invalidate(name string) {
	res.mu.Lock()
	defer res.mu.Unlock()
	delete(res.cache, name)
}
