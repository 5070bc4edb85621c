package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client), mr
}

func TestPutAndGet(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "attempt:abc", map[string]string{"provider": "threads"}, time.Minute))

	var got map[string]string
	found, err := store.Get(ctx, "attempt:abc", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "threads", got["provider"])

	// Get is non-destructive.
	found, err = store.Get(ctx, "attempt:abc", &got)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestPullIsDestructive(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "handoff:tok", "payload", time.Minute))

	var got string
	found, err := store.Pull(ctx, "handoff:tok", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "payload", got)

	found, err = store.Pull(ctx, "handoff:tok", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPullMissingKey(t *testing.T) {
	store, _ := testStore(t)

	var got string
	found, err := store.Pull(context.Background(), "never-stored", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPullConcurrentSingleWinner(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "handoff:race", "payload", time.Minute))

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			var got string
			found, err := store.Pull(ctx, "handoff:race", &got)
			assert.NoError(t, err)
			if found {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins.Load())
}

func TestExpiry(t *testing.T) {
	store, mr := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "attempt:ttl", "payload", time.Minute))
	mr.FastForward(2 * time.Minute)

	var got string
	found, err := store.Get(ctx, "attempt:ttl", &got)
	require.NoError(t, err)
	assert.False(t, found)
}
