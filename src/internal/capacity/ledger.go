package capacity

import (
	"context"
	"errors"
	"fmt"

	"parking-svc/src/internal/models"
	"parking-svc/src/internal/vehicle"

	"github.com/sirupsen/logrus"
)

// Counter answers occupancy queries. vehicle.Repository satisfies it.
type Counter interface {
	CountActive(ctx context.Context, class vehicle.Class, spot int) (int64, error)
	CountActiveByClass(ctx context.Context, class vehicle.Class) (int64, error)
}

// Capacity returns the number of spots a vehicle class may occupy at once.
func Capacity(class vehicle.Class) int {
	switch class {
	case vehicle.ClassMotorcycle:
		return 6
	case vehicle.ClassLightVehicle:
		return 5
	}
	return 0
}

type Ledger struct {
	counter Counter
	locker  Locker
}

func NewLedger(counter Counter, locker Locker) *Ledger {
	return &Ledger{
		counter: counter,
		locker:  locker,
	}
}

// CountActive returns the active sessions holding exactly this class and spot.
func (l *Ledger) CountActive(ctx context.Context, class vehicle.Class, spot int) (int64, error) {
	return l.counter.CountActive(ctx, class, spot)
}

// ActiveByClass returns the active sessions of a class.
func (l *Ledger) ActiveByClass(ctx context.Context, class vehicle.Class) (int64, error) {
	return l.counter.CountActiveByClass(ctx, class)
}

// HasCapacity reports whether a vehicle of this class may take the spot:
// the spot must be free and the class below its capacity.
func (l *Ledger) HasCapacity(ctx context.Context, class vehicle.Class, spot int) (bool, error) {
	if !class.IsValid() {
		return false, fmt.Errorf("%w: %q", models.ErrInvalidClass, class)
	}
	if spot < 1 {
		return false, models.ErrInvalidSpot
	}

	onSpot, err := l.counter.CountActive(ctx, class, spot)
	if err != nil {
		return false, err
	}
	if onSpot > 0 {
		return false, nil
	}

	active, err := l.counter.CountActiveByClass(ctx, class)
	if err != nil {
		return false, err
	}

	return active < int64(Capacity(class)), nil
}

// Reserve runs create while holding the admission lock of the class, after
// checking capacity. It fails with models.ErrCapacityExceeded when the
// class is full or the spot is taken, and with models.ErrLockNotAcquired
// when the lock is lost before create completes. create receives a context
// that is cancelled as soon as the lock is lost.
func (l *Ledger) Reserve(ctx context.Context, class vehicle.Class, spot int, create func(ctx context.Context) error) error {
	held, unlock, err := l.locker.Lock(ctx, lockKey(class))
	if err != nil {
		return err
	}
	defer unlock()

	ok, err := l.HasCapacity(held, class, spot)
	if err != nil {
		return err
	}
	if !ok {
		logrus.WithFields(logrus.Fields{
			"vehicle_class": class,
			"spot":          spot,
		}).Info("Admission denied, no capacity")
		return models.ErrCapacityExceeded
	}

	if err := lockLost(held); err != nil {
		return err
	}
	if err := create(held); err != nil {
		if lost := lockLost(held); lost != nil {
			return lost
		}
		return err
	}
	return nil
}

func lockLost(held context.Context) error {
	if cause := context.Cause(held); errors.Is(cause, models.ErrLockNotAcquired) {
		return cause
	}
	return nil
}

// Reassign checks that a session may move to another spot of its class.
func (l *Ledger) Reassign(ctx context.Context, class vehicle.Class, spot int) error {
	held, unlock, err := l.locker.Lock(ctx, lockKey(class))
	if err != nil {
		return err
	}
	defer unlock()

	onSpot, err := l.counter.CountActive(held, class, spot)
	if err != nil {
		return err
	}
	if onSpot > 0 {
		return models.ErrSpotTaken
	}
	return nil
}

func lockKey(class vehicle.Class) string {
	return "admission:" + string(class)
}
