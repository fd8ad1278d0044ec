package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisCacheGetSetInvalidate(t *testing.T) {
	_, client := newClient(t)
	c := NewRedis(client, "content:")
	ctx := context.Background()

	_, err := c.Get(ctx, "slides")
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "slides", []byte(`[1]`), time.Minute))
	got, err := c.Get(ctx, "slides")
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(got))

	require.NoError(t, c.Invalidate(ctx, "slides", "quiz"))
	_, err = c.Get(ctx, "slides")
	require.ErrorIs(t, err, ErrMiss)
}

func TestRedisCacheOnce(t *testing.T) {
	_, client := newClient(t)
	c := NewRedis(client, "")
	ctx := context.Background()

	calls := 0
	fn := func() error { calls++; return nil }
	require.NoError(t, c.Once(ctx, "k", time.Minute, fn))
	require.NoError(t, c.Once(ctx, "k", time.Minute, fn))
	assert.Equal(t, 1, calls)

	failing := func() error { return errors.New("boom") }
	require.Error(t, c.Once(ctx, "other", time.Minute, failing))
	require.NoError(t, c.Once(ctx, "other", time.Minute, fn))
	assert.Equal(t, 2, calls)
}

func TestRedisLock(t *testing.T) {
	mr, client := newClient(t)
	lock := NewRedisLock(client, "refresh:lock")
	ctx := context.Background()

	release, ok, err := lock.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "вторая попытка должна быть отклонена")

	release()
	assert.False(t, mr.Exists("refresh:lock"))

	_, ok, err = lock.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockExpires(t *testing.T) {
	mr, client := newClient(t)
	lock := NewRedisLock(client, "refresh:lock")
	ctx := context.Background()

	release, ok, err := lock.TryLock(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	mr.FastForward(2 * time.Second)

	_, ok, err = lock.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// просроченный владелец не снимает чужую блокировку
	release()
	assert.True(t, mr.Exists("refresh:lock"))
}

func TestRedisLockRenewsWhileHeld(t *testing.T) {
	mr, client := newClient(t)
	lock := NewRedisLock(client, "refresh:lock")

	release, ok, err := lock.TryLock(context.Background(), 90*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	// срок почти истёк, продление должно вернуть полный ttl
	mr.FastForward(60 * time.Millisecond)
	require.Eventually(t, func() bool {
		return mr.TTL("refresh:lock") > 60*time.Millisecond
	}, time.Second, 5*time.Millisecond)

	release()
	assert.False(t, mr.Exists("refresh:lock"))
}
