package capacity

import (
	"context"
	"testing"
	"time"

	"parking-svc/src/internal/models"
	"parking-svc/src/internal/vehicle"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	locker := NewLocalLocker()

	held, unlock, err := locker.Lock(context.Background(), "admission:motorcycle")
	require.NoError(t, err)
	assert.NoError(t, held.Err())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = locker.Lock(ctx, "admission:motorcycle")
	assert.ErrorIs(t, err, models.ErrLockNotAcquired)

	_, other, err := locker.Lock(context.Background(), "admission:light_vehicle")
	require.NoError(t, err)
	other()

	unlock()
	assert.ErrorIs(t, held.Err(), context.Canceled)
	unlock()

	_, again, err := locker.Lock(context.Background(), "admission:motorcycle")
	require.NoError(t, err)
	again()
}

func newRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, ttl), mr
}

func TestRedisLocker_LockAndRelease(t *testing.T) {
	locker, mr := newRedisLocker(t, 5*time.Second)

	_, unlock, err := locker.Lock(context.Background(), "admission:motorcycle")
	require.NoError(t, err)
	assert.True(t, mr.Exists(redisLockPrefix+"admission:motorcycle"))

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	_, _, err = locker.Lock(ctx, "admission:motorcycle")
	assert.ErrorIs(t, err, models.ErrLockNotAcquired)

	unlock()
	assert.False(t, mr.Exists(redisLockPrefix+"admission:motorcycle"))

	_, again, err := locker.Lock(context.Background(), "admission:motorcycle")
	require.NoError(t, err)
	again()
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	locker, mr := newRedisLocker(t, time.Second)

	_, unlock, err := locker.Lock(context.Background(), "admission:light_vehicle")
	require.NoError(t, err)

	// The lease expired and another instance took the lock.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set(redisLockPrefix+"admission:light_vehicle", "other-owner"))

	unlock()

	value, err := mr.Get(redisLockPrefix + "admission:light_vehicle")
	require.NoError(t, err)
	assert.Equal(t, "other-owner", value)
}

func TestRedisLocker_RenewsLease(t *testing.T) {
	ttl := 300 * time.Millisecond
	locker, mr := newRedisLocker(t, ttl)
	key := redisLockPrefix + "admission:motorcycle"

	held, unlock, err := locker.Lock(context.Background(), "admission:motorcycle")
	require.NoError(t, err)
	defer unlock()

	mr.FastForward(200 * time.Millisecond)
	require.Less(t, mr.TTL(key), ttl)

	assert.Eventually(t, func() bool {
		return mr.TTL(key) == ttl
	}, time.Second, 10*time.Millisecond)
	assert.NoError(t, held.Err())
}

func TestRedisLocker_LostLeaseCancelsHeldContext(t *testing.T) {
	locker, mr := newRedisLocker(t, 300*time.Millisecond)

	held, unlock, err := locker.Lock(context.Background(), "admission:motorcycle")
	require.NoError(t, err)
	defer unlock()

	mr.FastForward(time.Second)

	select {
	case <-held.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("held context was not cancelled after the lease expired")
	}
	assert.ErrorIs(t, context.Cause(held), models.ErrLockNotAcquired)
}

func TestRedisLocker_ServerDown(t *testing.T) {
	locker, mr := newRedisLocker(t, time.Second)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _, err := locker.Lock(ctx, "admission:motorcycle")
	assert.ErrorIs(t, err, models.ErrRedisSet)
}

func TestLedger_ReserveAbortsWhenLeaseExpires(t *testing.T) {
	ctx := context.Background()
	repo := vehicle.NewMemoryRepository()
	for spot := 1; spot <= 5; spot++ {
		park(t, repo, vehicle.ClassMotorcycle, spot)
	}

	locker, mr := newRedisLocker(t, 300*time.Millisecond)
	ledger := NewLedger(repo, locker)
	other := NewLedger(repo, NewRedisLocker(locker.client, 300*time.Millisecond))

	insert := func(ctx context.Context, spot int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := repo.Create(ctx, &vehicle.Session{
			Plate:        "SLOW1",
			VehicleClass: vehicle.ClassMotorcycle,
			AssignedSpot: spot,
			EntryTime:    time.Now(),
			Cost:         decimal.NewFromInt(62),
		})
		return err
	}

	err := ledger.Reserve(ctx, vehicle.ClassMotorcycle, 6, func(ctx context.Context) error {
		// The insert stalls past the lease and another instance admits meanwhile.
		mr.FastForward(time.Second)
		require.NoError(t, other.Reserve(context.Background(), vehicle.ClassMotorcycle, 7, func(ctx context.Context) error {
			return insert(ctx, 7)
		}))

		select {
		case <-ctx.Done():
		case <-time.After(2 * time.Second):
		}
		return insert(ctx, 6)
	})
	assert.ErrorIs(t, err, models.ErrLockNotAcquired)

	active, err := repo.CountActiveByClass(ctx, vehicle.ClassMotorcycle)
	require.NoError(t, err)
	assert.Equal(t, int64(Capacity(vehicle.ClassMotorcycle)), active)
}
