package redis

import (
	"context"
	"time"

	"github.com/gatherhq/registration-service/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lease implements the keyed lock contract as a distributed TTL lease for
// multi-instance deployments: SET NX PX to acquire, compare-and-delete to
// release. The TTL bounds how long a crashed holder can block a key.
type Lease struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

// releaseScript deletes the lease only if it still carries our token, so a
// holder whose lease expired cannot release someone else's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewLease(client *redis.Client, ttl time.Duration) *Lease {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Lease{
		client: client,
		ttl:    ttl,
		retry:  25 * time.Millisecond,
	}
}

func (l *Lease) WithLock(ctx context.Context, key string, timeout time.Duration, fn func(ctx context.Context) error) error {
	leaseKey := "lock:" + key
	token := uuid.NewString()
	deadline := time.Now().Add(timeout)

	for {
		ok, err := l.client.SetNX(ctx, leaseKey, token, l.ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return domain.ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retry):
		}
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{leaseKey}, token).Err()
	}()

	return fn(ctx)
}
