package challenge

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, ttl), mr
}

func TestRedisStore_PutGetDelete(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "session-1", "ABC123"))

	answer, err := store.Get(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", answer)

	require.NoError(t, store.Delete(ctx, "session-1"))

	_, err = store.Get(ctx, "session-1")
	assert.ErrorIs(t, err, ErrNoChallenge)
}

func TestRedisStore_MissingSession(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)

	_, err := store.Get(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrNoChallenge)
}

func TestRedisStore_Expiry(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "session-1", "ABC123"))

	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "session-1")
	assert.ErrorIs(t, err, ErrNoChallenge)
}

func TestRedisStore_PutReplacesPrevious(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "session-1", "FIRST1"))
	require.NoError(t, store.Put(ctx, "session-1", "SECOND"))

	answer, err := store.Get(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "SECOND", answer)
}
