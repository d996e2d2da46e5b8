package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gatherhq/registration-service/internal/domain"
	rinfra "github.com/gatherhq/registration-service/internal/infrastructure/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLease_SerializesSameKey(t *testing.T) {
	_, client := newTestClient(t)
	lease := rinfra.NewLease(client, 10*time.Second)
	ctx := context.Background()

	const n = 20
	counter := 0

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			err := lease.WithLock(ctx, "event:roster", 5*time.Second, func(ctx context.Context) error {
				v := counter
				time.Sleep(time.Millisecond)
				counter = v + 1
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, n, counter)
}

func TestLease_TimeoutWhileHeld(t *testing.T) {
	_, client := newTestClient(t)
	lease := rinfra.NewLease(client, 10*time.Second)
	ctx := context.Background()

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = lease.WithLock(ctx, "event:busy", time.Second, func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	err := lease.WithLock(ctx, "event:busy", 60*time.Millisecond, func(ctx context.Context) error {
		t.Fatal("fn must not run after timeout")
		return nil
	})
	require.ErrorIs(t, err, domain.ErrLockTimeout)
}

func TestLease_ReleasedAfterFnError(t *testing.T) {
	_, client := newTestClient(t)
	lease := rinfra.NewLease(client, 10*time.Second)
	ctx := context.Background()

	_ = lease.WithLock(ctx, "event:x", time.Second, func(ctx context.Context) error {
		return assert.AnError
	})

	// key must be free again immediately
	err := lease.WithLock(ctx, "event:x", 50*time.Millisecond, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
}

func TestLease_ExpiredHolderCannotReleaseSuccessor(t *testing.T) {
	mr, client := newTestClient(t)
	lease := rinfra.NewLease(client, 50*time.Millisecond)
	ctx := context.Background()

	proceed := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- lease.WithLock(ctx, "event:y", time.Second, func(ctx context.Context) error {
			// let the lease TTL lapse while "working"
			mr.FastForward(100 * time.Millisecond)
			<-proceed
			return nil
		})
	}()

	// TTL lapsed, a second holder acquires the same key
	err := lease.WithLock(ctx, "event:y", time.Second, func(ctx context.Context) error {
		close(proceed)
		require.NoError(t, <-done)
		// the first holder's deferred release ran with a stale token; our
		// lease must still exist
		v, err := client.Get(ctx, "lock:event:y").Result()
		require.NoError(t, err)
		require.NotEmpty(t, v)
		return nil
	})
	require.NoError(t, err)
}

func TestCache_Invalidate(t *testing.T) {
	mr, client := newTestClient(t)
	cache := rinfra.NewWithClient(client)
	ctx := context.Background()

	eventID := uuid.New()
	require.NoError(t, mr.Set("event:"+eventID.String(), "cached"))
	require.NoError(t, mr.Set("analytics:events", "cached"))

	require.NoError(t, cache.InvalidateEvent(ctx, eventID))
	require.NoError(t, cache.InvalidateAnalytics(ctx))

	assert.False(t, mr.Exists("event:"+eventID.String()))
	assert.False(t, mr.Exists("analytics:events"))
}
