package locks

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.TryLock(ctx, "purge")
	require.NoError(t, err)

	_, err = l.TryLock(ctx, "purge")
	require.ErrorIs(t, err, ErrBusy)

	other, err := l.TryLock(ctx, "reset")
	require.NoError(t, err)
	other()

	release()
	release()
	again, err := l.TryLock(ctx, "purge")
	require.NoError(t, err)
	again()
}

func TestRedisLocker(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	l := NewRedisLocker(client, "test:lock:", time.Minute)
	ctx := context.Background()

	release, err := l.TryLock(ctx, "purge")
	require.NoError(t, err)
	require.True(t, m.Exists("test:lock:purge"))

	_, err = l.TryLock(ctx, "purge")
	require.ErrorIs(t, err, ErrBusy)

	release()
	require.False(t, m.Exists("test:lock:purge"))

	again, err := l.TryLock(ctx, "purge")
	require.NoError(t, err)
	again()
}

func TestRedisLocker_ExpiredLockNotStolenBack(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	l := NewRedisLocker(client, "test:lock:", time.Second)
	ctx := context.Background()

	stale, err := l.TryLock(ctx, "purge")
	require.NoError(t, err)
	m.FastForward(2 * time.Second)

	fresh, err := l.TryLock(ctx, "purge")
	require.NoError(t, err)

	// the first holder's release must not drop the second holder's lock
	stale()
	require.True(t, m.Exists("test:lock:purge"))
	fresh()
	require.False(t, m.Exists("test:lock:purge"))
}

func TestRedisLocker_RenewsWhileHeld(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	ttl := 300 * time.Millisecond
	l := NewRedisLocker(client, "test:lock:", ttl)

	release, err := l.TryLock(context.Background(), "purge")
	require.NoError(t, err)

	// only 100ms left unless the holder renews
	m.FastForward(200 * time.Millisecond)
	require.Eventually(t, func() bool {
		return m.TTL("test:lock:purge") > 200*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)

	m.FastForward(250 * time.Millisecond)
	require.True(t, m.Exists("test:lock:purge"))

	release()
	require.False(t, m.Exists("test:lock:purge"))
}
