package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"ms-voting/internal/logger"
)

// setupTestRedis creates a Redis client backed by miniredis
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Ping(context.Background()).Err())

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

// exerciseMutualExclusion runs workers that each bump a shared counter
// inside the lock and checks no two were ever inside at once.
func exerciseMutualExclusion(t *testing.T, locker Locker) {
	const workers = 20
	var inside, maxInside, done int32
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			release, err := locker.Acquire(ctx, "stand:3")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			atomic.AddInt32(&done, 1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, int32(workers), done)
}

func TestLocalLocker_MutualExclusion(t *testing.T) {
	locker := NewLocalLocker()
	exerciseMutualExclusion(t, locker)
	assert.Equal(t, 0, locker.Len())
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	releaseA, err := locker.Acquire(ctx, "stand:1")
	require.NoError(t, err)
	releaseB, err := locker.Acquire(ctx, "stand:2")
	require.NoError(t, err)

	releaseA()
	releaseB()
	assert.Equal(t, 0, locker.Len())
}

func TestLocalLocker_ContextTimeout(t *testing.T) {
	locker := NewLocalLocker()

	release, err := locker.Acquire(context.Background(), "stand:1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "stand:1")
	assert.ErrorIs(t, err, ErrBusy)
}

func TestLocalLocker_DoubleReleaseIsSafe(t *testing.T) {
	locker := NewLocalLocker()
	release, err := locker.Acquire(context.Background(), "k")
	require.NoError(t, err)

	release()
	release()

	release, err = locker.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release()
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := NewRedisLocker(client, 5*time.Second, logger.NewNopLogger())
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "stand:4")
	require.NoError(t, err)
	assert.True(t, mr.Exists("voting_lock:stand:4"))

	busyCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(busyCtx, "stand:4")
	assert.ErrorIs(t, err, ErrBusy)

	release()
	assert.False(t, mr.Exists("voting_lock:stand:4"))
}

func TestRedisLocker_ConcurrentReleaseIsSafe(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := NewRedisLocker(client, 5*time.Second, logger.NewNopLogger())
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "stand:6")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release()
		}()
	}
	wg.Wait()
	assert.False(t, mr.Exists("voting_lock:stand:6"))

	next, err := locker.Acquire(ctx, "stand:6")
	require.NoError(t, err)
	release()
	assert.True(t, mr.Exists("voting_lock:stand:6"), "stale release must not free the new holder")
	next()
	assert.False(t, mr.Exists("voting_lock:stand:6"))
}

func TestRedisLocker_ReleaseKeepsForeignToken(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := NewRedisLocker(client, 5*time.Second, logger.NewNopLogger())

	release, err := locker.Acquire(context.Background(), "stand:5")
	require.NoError(t, err)

	// Simulate expiry followed by another holder taking the key.
	require.NoError(t, mr.Set("voting_lock:stand:5", "someone-else"))
	release()

	val, err := mr.Get("voting_lock:stand:5")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

func TestRedisLocker_TTLExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := NewRedisLocker(client, time.Second, logger.NewNopLogger())

	_, err := locker.Acquire(context.Background(), "stand:6")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	release, err := locker.Acquire(context.Background(), "stand:6")
	require.NoError(t, err)
	release()
}

func TestRedisLocker_MutualExclusion(t *testing.T) {
	client, _ := setupTestRedis(t)
	exerciseMutualExclusion(t, NewRedisLocker(client, 5*time.Second, logger.NewNopLogger()))
}

// TestRedisLockerIntegration runs against a real Redis container
func TestRedisLockerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:latest",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Redis container unavailable: %v", err)
	}
	defer redisContainer.Terminate(ctx)

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	defer client.Close()

	exerciseMutualExclusion(t, NewRedisLocker(client, 5*time.Second, logger.NewNopLogger()))
}
