package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestDistributedLock_TryLockAndUnlock(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	first := NewPointLock(client, 1, "a", 10*time.Second)
	second := NewPointLock(client, 1, "b", 10*time.Second)

	ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// 不是自己的锁不能删
	assert.ErrorIs(t, second.Unlock(ctx), ErrLockExpired)
	assert.True(t, mr.Exists(PointLockKey(1)))

	require.NoError(t, first.Unlock(ctx))
	assert.False(t, mr.Exists(PointLockKey(1)))
}

func TestDistributedLock_LockGivesUpAfterRetries(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	holder := NewPointLock(client, 1, "holder", 10*time.Second)
	ok, err := holder.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	waiter := NewPointLock(client, 1, "waiter", 10*time.Second)
	err = waiter.Lock(ctx, time.Millisecond, 3)
	assert.ErrorIs(t, err, ErrLockFailed)
}

func TestDistributedLock_Expiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	dl := NewPointLock(client, 2, "a", time.Second)
	ok, err := dl.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	assert.ErrorIs(t, dl.Unlock(ctx), ErrLockExpired)
}

func TestRedisLocker_SerializesSameUser(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisLocker(client, 10*time.Second, 5*time.Millisecond, 200, nil)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, 1)
	require.NoError(t, err)
	assert.True(t, mr.Exists(PointLockKey(1)))

	acquired := make(chan struct{})
	go func() {
		release, err := locker.Lock(ctx, 1)
		if err == nil {
			close(acquired)
			release()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock must wait for the first Unlock")
	case <-time.After(30 * time.Millisecond):
	}

	unlock()
	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock never acquired")
	}
}

func TestRedisLocker_DistinctUsers(t *testing.T) {
	_, client := setupTestRedis(t)
	locker := NewRedisLocker(client, 10*time.Second, time.Millisecond, 1, nil)
	ctx := context.Background()

	a, err := locker.Lock(ctx, 1)
	require.NoError(t, err)
	defer a()

	b, err := locker.Lock(ctx, 2)
	require.NoError(t, err)
	b()
}
