package vehicle

import (
	"context"
	"sort"
	"sync"
	"time"

	"parking-svc/src/internal/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memoryRepository keeps sessions in process memory. It enforces the same
// active (class, spot) uniqueness as the MongoDB partial index.
type memoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
}

func NewMemoryRepository() Repository {
	return &memoryRepository{
		sessions: make(map[string]*Session),
	}
}

func (r *memoryRepository) Create(_ context.Context, session *Session) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session.IsActive() && r.spotTakenLocked("", session.VehicleClass, session.AssignedSpot) {
		return nil, models.ErrSpotTaken
	}

	created := session.Clone()
	created.ID = primitive.NewObjectID().Hex()
	r.sessions[created.ID] = created
	r.order = append(r.order, created.ID)

	return created.Clone(), nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, models.ErrVehicleNotFound
	}
	return session.Clone(), nil
}

func (r *memoryRepository) FindAll(_ context.Context) ([]*Session, error) {
	return r.filter(func(*Session) bool { return true }), nil
}

func (r *memoryRepository) FindActive(_ context.Context) ([]*Session, error) {
	return r.filter((*Session).IsActive), nil
}

func (r *memoryRepository) filter(keep func(*Session) bool) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Session, 0, len(r.order))
	for _, id := range r.order {
		session, ok := r.sessions[id]
		if ok && keep(session) {
			result = append(result, session.Clone())
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].EntryTime.Before(result[j].EntryTime)
	})
	return result
}

func (r *memoryRepository) CountActive(_ context.Context, class Class, spot int) (int64, error) {
	return r.count(func(s *Session) bool {
		return s.VehicleClass == class && s.AssignedSpot == spot
	}), nil
}

func (r *memoryRepository) CountActiveByClass(_ context.Context, class Class) (int64, error) {
	return r.count(func(s *Session) bool {
		return s.VehicleClass == class
	}), nil
}

func (r *memoryRepository) count(match func(*Session) bool) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, session := range r.sessions {
		if session.IsActive() && match(session) {
			n++
		}
	}
	return n
}

func (r *memoryRepository) Update(_ context.Context, id string, patch Patch) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[id]
	if !ok {
		return nil, models.ErrVehicleNotFound
	}

	updated := current.Clone()
	patch.Apply(updated)
	if updated.IsActive() && r.spotTakenLocked(id, updated.VehicleClass, updated.AssignedSpot) {
		return nil, models.ErrSpotTaken
	}

	r.sessions[id] = updated
	return updated.Clone(), nil
}

func (r *memoryRepository) Settle(_ context.Context, id string, exitTime time.Time, cost decimal.Decimal) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[id]
	if !ok || !current.IsActive() {
		return nil, models.ErrAlreadySettled
	}

	settled := current.Clone()
	exit := exitTime
	settled.ExitTime = &exit
	settled.Cost = cost
	r.sessions[id] = settled

	return settled.Clone(), nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return models.ErrVehicleNotFound
	}
	delete(r.sessions, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memoryRepository) spotTakenLocked(exceptID string, class Class, spot int) bool {
	for id, session := range r.sessions {
		if id == exceptID || !session.IsActive() {
			continue
		}
		if session.VehicleClass == class && session.AssignedSpot == spot {
			return true
		}
	}
	return false
}
