package realm

import (
	"context"
	"errors"
	"testing"

	"github.com/authme/core/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRealmLoader struct {
	calls  int
	realms map[string]store.Realm
}

func (f *fakeRealmLoader) GetByName(ctx context.Context, name string) (store.Realm, error) {
	f.calls++
	r, ok := f.realms[name]
	if !ok {
		return store.Realm{}, store.ErrNotFound
	}
	return r, nil
}

func newTestResolver(f *fakeRealmLoader) *Resolver {
	return &Resolver{repo: f, cache: make(map[string]cacheEntry)}
}

func TestResolver_CachesSuccessfulLookup(t *testing.T) {
	fake := &fakeRealmLoader{realms: map[string]store.Realm{
		"acme": {Name: "acme", Enabled: true},
	}}
	res := newTestResolver(fake)

	r1, err := res.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", r1.Name)

	_, err = res.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls, "second resolve within TTL must hit the cache, not the loader")
}

func TestResolver_NotFound(t *testing.T) {
	fake := &fakeRealmLoader{realms: map[string]store.Realm{}}
	res := newTestResolver(fake)

	_, err := res.Resolve(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolver_Disabled(t *testing.T) {
	fake := &fakeRealmLoader{realms: map[string]store.Realm{
		"acme": {Name: "acme", Enabled: false},
	}}
	res := newTestResolver(fake)

	_, err := res.Resolve(context.Background(), "acme")
	assert.True(t, errors.Is(err, ErrDisabled))
}

func TestResolver_Invalidate(t *testing.T) {
	fake := &fakeRealmLoader{realms: map[string]store.Realm{
		"acme": {Name: "acme", Enabled: true},
	}}
	res := newTestResolver(fake)

	_, err := res.Resolve(context.Background(), "acme")
	require.NoError(t, err)

	res.Invalidate("acme")

	_, err = res.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls, "resolve after Invalidate must bypass the cache")
}
