package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/orgtree/pkg/adapters/redis"
	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/ports/tests"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)

	store := redis.NewFromClient(client)
	tests.SnapshotStoreContractTest(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	// Create store with 1s TTL
	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	name := "chart-ttl"

	require.NoError(t, store.Save(ctx, name, tests.SampleChart()))

	names, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, names, name)

	// Fast forward miniredis for key expiration.
	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, name)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	// The index is pruned against time.Now(), not the miniredis clock.
	time.Sleep(1200 * time.Millisecond)

	names, err = store.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, names)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "my-chart", tests.SampleChart()))

	assert.True(t, mr.Exists("custom:app:chart:my-chart"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	list, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"my-chart"}, list)
}

func TestRedisStore_IndexNameDoesNotClash(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "index", tests.SampleChart()))

	loaded, err := store.Load(ctx, "index")
	require.NoError(t, err)
	tests.AssertSameEntries(t, tests.SampleChart(), loaded)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"index"}, names)
}

func TestRedisSource_Contract(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)

	src := redis.NewSource(store, "main")
	chart := tests.SampleChart()
	require.NoError(t, src.ReplaceEntries(context.Background(), chart))

	tests.EntrySourceContractTest(t, src, chart)
	tests.EntrySinkContractTest(t, src, src)
}

func TestRedisSource_Missing(t *testing.T) {
	_, client := newClient(t)
	src := redis.NewSource(redis.NewFromClient(client), "nothing")

	_, err := src.LoadEntries(context.Background())
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestRedisSource_Watch(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	src := redis.NewSource(store, "main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := src.Watch(ctx)
	require.NoError(t, err)

	// Another snapshot changing is not reported.
	require.NoError(t, store.Save(ctx, "other", tests.SampleChart()))
	require.NoError(t, store.Save(ctx, "main", tests.SampleChart()))

	select {
	case name := <-events:
		assert.Equal(t, "main", name)
	case <-time.After(3 * time.Second):
		t.Fatal("expected a change event")
	}

	select {
	case name := <-events:
		t.Fatalf("unexpected event %q", name)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok, "channel should close after cancel")
	case <-time.After(3 * time.Second):
		t.Fatal("watch channel not closed")
	}
}
