package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaner/gobarber-server/middleware/ratelimit/domain"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisCounter_IncrementsAndSetsExpiry(t *testing.T) {
	mr, rdb := newMiniredis(t)
	c := NewRedisCounter(rdb)
	ctx := context.Background()

	e1, err := c.Increment(ctx, "10.0.0.1", 15*time.Minute)
	require.NoError(t, err)
	e2, err := c.Increment(ctx, "10.0.0.1", 15*time.Minute)
	require.NoError(t, err)

	assert.EqualValues(t, 1, e1.Count)
	assert.EqualValues(t, 2, e2.Count)
	assert.True(t, mr.Exists("rl:10.0.0.1"))
	assert.Equal(t, 15*time.Minute, mr.TTL("rl:10.0.0.1"))
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), e2.ResetAt, 5*time.Second)
}

func TestRedisCounter_KeysAreIndependent(t *testing.T) {
	_, rdb := newMiniredis(t)
	c := NewRedisCounter(rdb, WithKeyPrefix("test:"))
	ctx := context.Background()

	_, err := c.Increment(ctx, "a", time.Minute)
	require.NoError(t, err)
	e, err := c.Increment(ctx, "b", time.Minute)
	require.NoError(t, err)

	assert.EqualValues(t, 1, e.Count)
}

func TestRedisCounter_NewWindowResetsCount(t *testing.T) {
	mr, rdb := newMiniredis(t)
	c := NewRedisCounter(rdb)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Increment(ctx, "k", time.Minute)
		require.NoError(t, err)
	}

	mr.FastForward(time.Minute)

	e, err := c.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, e.Count)
}

func TestRedisCounter_RestoresMissingTTL(t *testing.T) {
	mr, rdb := newMiniredis(t)
	require.NoError(t, mr.Set("rl:k", "5"))

	e, err := NewRedisCounter(rdb).Increment(context.Background(), "k", time.Minute)
	require.NoError(t, err)

	assert.EqualValues(t, 6, e.Count)
	assert.Equal(t, time.Minute, mr.TTL("rl:k"))
}

func TestRedisCounter_ConcurrentIncrementsAreAtomic(t *testing.T) {
	_, rdb := newMiniredis(t)
	c := NewRedisCounter(rdb)

	const n = 50
	var wg sync.WaitGroup
	counts := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := c.Increment(context.Background(), "same-client", time.Minute)
			if err == nil {
				counts <- e.Count
			}
		}()
	}
	wg.Wait()
	close(counts)

	seen := make(map[int64]bool)
	for v := range counts {
		assert.False(t, seen[v], "count %d returned twice", v)
		seen[v] = true
	}
	assert.Len(t, seen, n)
}

func TestRedisCounter_StoreDownIsAnError(t *testing.T) {
	mr, rdb := newMiniredis(t)
	mr.Close()

	_, err := NewRedisCounter(rdb).Increment(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

var _ domain.Counter = (*RedisCounter)(nil)
