package capacity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"parking-svc/src/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Locker serializes admissions. Lock blocks until the key is held or ctx is
// done. The returned context is cancelled when the lock is released or lost;
// work done under the lock must use it.
type Locker interface {
	Lock(ctx context.Context, key string) (held context.Context, unlock func(), err error)
}

// LocalLocker is an in-process keyed lock for single-instance deployments.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (context.Context, func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		held, cancel := context.WithCancel(ctx)
		var once sync.Once
		return held, func() {
			once.Do(func() {
				cancel()
				<-slot
			})
		}, nil
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("%w: %v", models.ErrLockNotAcquired, ctx.Err())
	}
}

const (
	redisLockPrefix    = "parking:lock:"
	redisRetryInterval = 25 * time.Millisecond
	defaultLockTTL     = 5 * time.Second
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker is a lease lock shared by every instance using the same Redis.
// The lease is renewed every ttl/3 while held; if a renewal fails or finds
// another owner, the held context is cancelled with models.ErrLockNotAcquired.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (context.Context, func(), error) {
	redisKey := redisLockPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(redisRetryInterval)
	defer ticker.Stop()

	for {
		acquired, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			logrus.WithError(err).WithField("key", redisKey).Error("Failed to acquire lock")
			return nil, nil, fmt.Errorf("%w: %v", models.ErrRedisSet, err)
		}
		if acquired {
			held, cancel := context.WithCancelCause(ctx)
			stopped := make(chan struct{})
			go l.keepAlive(held, cancel, redisKey, token, stopped)

			var once sync.Once
			return held, func() {
				once.Do(func() {
					cancel(nil)
					<-stopped
					l.release(redisKey, token)
				})
			}, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("%w: %v", models.ErrLockNotAcquired, ctx.Err())
		}
	}
}

func (l *RedisLocker) keepAlive(held context.Context, lost context.CancelCauseFunc, key, token string, stopped chan<- struct{}) {
	defer close(stopped)

	interval := l.ttl / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-held.Done():
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		renewed, err := refreshScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
		cancel()

		if err != nil || renewed == 0 {
			logrus.WithError(err).WithField("key", key).Error("Lock lease lost")
			lost(fmt.Errorf("%w: lease on %s lost", models.ErrLockNotAcquired, key))
			return
		}
	}
}

func (l *RedisLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Failed to release lock, it will expire")
	}
}
