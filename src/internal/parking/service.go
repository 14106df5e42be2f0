package parking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"parking-svc/src/internal/cache"
	"parking-svc/src/internal/capacity"
	"parking-svc/src/internal/config"
	"parking-svc/src/internal/events"
	"parking-svc/src/internal/metrics"
	"parking-svc/src/internal/models"
	"parking-svc/src/internal/tariff"
	"parking-svc/src/internal/vehicle"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Service interface {
	Admit(ctx context.Context, req *AdmitRequest) (*vehicle.Session, error)
	ListAll(ctx context.Context) ([]*vehicle.Session, error)
	Update(ctx context.Context, id string, patch vehicle.Patch) (*vehicle.Session, error)
	Remove(ctx context.Context, id string) error
	CloseDay(ctx context.Context) (*CloseDayReport, error)
	Occupancy(ctx context.Context) (*models.Occupancy, error)
}

// UpdateValidator decides whether an administrative patch may be applied.
type UpdateValidator func(ctx context.Context, current *vehicle.Session, patch vehicle.Patch) error

type Option func(*parkingService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *parkingService) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *parkingService) { s.metrics = m }
}

func WithUpdateValidator(validate UpdateValidator) Option {
	return func(s *parkingService) { s.validateUpdate = validate }
}

type parkingService struct {
	repo           vehicle.Repository
	ledger         *capacity.Ledger
	sink           events.Sink
	cacheService   cache.Service
	metrics        *metrics.Metrics
	topic          string
	now            func() time.Time
	validateUpdate UpdateValidator
}

func NewParkingService(repo vehicle.Repository,
	ledger *capacity.Ledger,
	sink events.Sink,
	cacheService cache.Service,
	cfg *config.Configuration,
	opts ...Option) Service {
	s := &parkingService{
		repo:         repo,
		ledger:       ledger,
		sink:         sink,
		cacheService: cacheService,
		topic:        cfg.Parking.EventsTopic,
		now:          time.Now,
	}

	if cfg.Parking.StrictSpotReassignment {
		s.validateUpdate = StrictUpdateValidator(ledger)
	} else {
		s.validateUpdate = PermissiveUpdateValidator
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PermissiveUpdateValidator only enforces entry <= exit. Spot changes are
// not re-checked against capacity.
func PermissiveUpdateValidator(_ context.Context, current *vehicle.Session, patch vehicle.Patch) error {
	if patch.AssignedSpot != nil && *patch.AssignedSpot < 1 {
		return models.ErrInvalidSpot
	}
	if patch.ExitTime != nil && patch.ExitTime.Before(current.EntryTime) {
		return models.ErrInvalidExitTime
	}
	return nil
}

// StrictUpdateValidator additionally rejects moving an active session onto an occupied spot.
func StrictUpdateValidator(ledger *capacity.Ledger) UpdateValidator {
	return func(ctx context.Context, current *vehicle.Session, patch vehicle.Patch) error {
		if err := PermissiveUpdateValidator(ctx, current, patch); err != nil {
			return err
		}
		if patch.AssignedSpot == nil || *patch.AssignedSpot == current.AssignedSpot || !current.IsActive() {
			return nil
		}
		return ledger.Reassign(ctx, current.VehicleClass, *patch.AssignedSpot)
	}
}

func (s *parkingService) Admit(ctx context.Context, req *AdmitRequest) (*vehicle.Session, error) {
	plate := strings.TrimSpace(req.Plate)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate is required", models.ErrValidation)
	}
	class, err := vehicle.ParseClass(req.VehicleClass)
	if err != nil {
		return nil, err
	}
	if req.AssignedSpot < 1 {
		return nil, models.ErrInvalidSpot
	}

	cost, err := tariff.EntryCost(class, req.IsElectricOrHybrid)
	if err != nil {
		return nil, err
	}

	var created *vehicle.Session
	err = s.ledger.Reserve(ctx, class, req.AssignedSpot, func(ctx context.Context) error {
		var createErr error
		created, createErr = s.repo.Create(ctx, &vehicle.Session{
			Plate:              plate,
			VehicleClass:       class,
			IsElectricOrHybrid: req.IsElectricOrHybrid,
			AssignedSpot:       req.AssignedSpot,
			EntryTime:          s.now(),
			Cost:               cost,
		})
		return createErr
	})
	if err != nil {
		if errors.Is(err, models.ErrSpotTaken) {
			err = fmt.Errorf("%w: %w", models.ErrCapacityExceeded, err)
		}
		outcome := "error"
		if errors.Is(err, models.ErrCapacityExceeded) {
			outcome = "denied"
		}
		s.metrics.ObserveAdmission(string(class), outcome)
		return nil, err
	}

	s.metrics.ObserveAdmission(string(class), "admitted")
	logrus.WithFields(logrus.Fields{
		"vehicle_id":    created.ID,
		"plate":         created.Plate,
		"vehicle_class": created.VehicleClass,
		"spot":          created.AssignedSpot,
		"cost":          created.Cost.String(),
	}).Info("Vehicle admitted")

	s.publish(ctx, events.Event{
		Kind:         events.KindVehicleAdmitted,
		ID:           created.ID,
		Plate:        created.Plate,
		VehicleClass: created.VehicleClass,
		AssignedSpot: created.AssignedSpot,
	})
	s.invalidateOccupancy(ctx)

	return created, nil
}

func (s *parkingService) ListAll(ctx context.Context) ([]*vehicle.Session, error) {
	sessions, err := s.repo.FindAll(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to list vehicles")
		return nil, err
	}
	return sessions, nil
}

// Update applies an administrative patch. Setting exitTime here does not
// settle the session: the stored cost stays the entry cost.
func (s *parkingService) Update(ctx context.Context, id string, patch vehicle.Patch) (*vehicle.Session, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.validateUpdate(ctx, current, patch); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"vehicle_id": id,
		"spot":       updated.AssignedSpot,
		"active":     updated.IsActive(),
	}).Info("Vehicle updated")

	s.publish(ctx, events.Event{
		Kind:   events.KindVehicleUpdated,
		ID:     id,
		Update: &patch,
	})
	s.invalidateOccupancy(ctx)

	return updated, nil
}

// Remove deletes a session without settling it.
func (s *parkingService) Remove(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	logrus.WithField("vehicle_id", id).Info("Vehicle removed")

	s.publish(ctx, events.Event{
		Kind: events.KindVehicleRemoved,
		ID:   id,
	})
	s.invalidateOccupancy(ctx)

	return nil
}

// CloseDay settles every active session at a single instant. Sessions that
// fail to persist are reported and the sweep continues.
func (s *parkingService) CloseDay(ctx context.Context) (*CloseDayReport, error) {
	now := s.now()

	report := &CloseDayReport{
		TotalRevenue: decimal.Zero,
		Failures:     make([]SettlementFailure, 0),
		ClosedAt:     now,
	}

	active, err := s.repo.FindActive(ctx)
	var partial *vehicle.PartialReadError
	if errors.As(err, &partial) {
		for _, failure := range partial.Failures {
			report.Failures = append(report.Failures, SettlementFailure{
				ID:    failure.ID,
				Error: failure.Err.Error(),
			})
			s.metrics.ObserveSettlement("failed", 0)
		}
	} else if err != nil {
		logrus.WithError(err).Error("Failed to load active vehicles")
		return nil, err
	}

	for _, session := range active {
		if session.EntryTime.After(now) {
			// Admitted after the snapshot; left for the next sweep.
			continue
		}

		total := tariff.SettlementCost(session.Cost, session.EntryTime, now)
		settled, err := s.repo.Settle(ctx, session.ID, now, total)
		if err != nil {
			if errors.Is(err, models.ErrAlreadySettled) {
				logrus.WithField("vehicle_id", session.ID).Debug("Vehicle settled concurrently, skipping")
				s.metrics.ObserveSettlement("skipped", 0)
				continue
			}
			logrus.WithError(err).WithField("vehicle_id", session.ID).Error("Failed to settle vehicle")
			report.Failures = append(report.Failures, SettlementFailure{
				ID:    session.ID,
				Plate: session.Plate,
				Error: err.Error(),
			})
			s.metrics.ObserveSettlement("failed", 0)
			continue
		}

		report.TotalRevenue = report.TotalRevenue.Add(settled.Cost)
		report.SettledCount++
		s.metrics.ObserveSettlement("settled", settled.Cost.InexactFloat64())

		totalCost := settled.Cost
		s.publish(ctx, events.Event{
			Kind:      events.KindVehicleExited,
			ID:        settled.ID,
			Plate:     settled.Plate,
			TotalCost: &totalCost,
		})
	}

	logrus.WithFields(logrus.Fields{
		"settled":       report.SettledCount,
		"failed":        len(report.Failures),
		"total_revenue": report.TotalRevenue.String(),
	}).Info("Day closed")

	totalRevenue := report.TotalRevenue
	s.publish(ctx, events.Event{
		Kind:         events.KindDayClosed,
		TotalRevenue: &totalRevenue,
		SettledCount: report.SettledCount,
	})
	s.invalidateOccupancy(ctx)

	return report, nil
}

func (s *parkingService) Occupancy(ctx context.Context) (*models.Occupancy, error) {
	cached, err := s.cacheService.GetOccupancy(ctx)
	if err == nil && cached != nil {
		return &models.Occupancy{Classes: cached, Cached: true}, nil
	}

	generation, genErr := s.cacheService.OccupancyGeneration(ctx)

	classes := make([]models.ClassOccupancy, 0, len(vehicle.Classes))
	for _, class := range vehicle.Classes {
		active, err := s.ledger.ActiveByClass(ctx, class)
		if err != nil {
			return nil, err
		}
		limit := capacity.Capacity(class)
		available := int64(limit) - active
		if available < 0 {
			available = 0
		}
		classes = append(classes, models.ClassOccupancy{
			VehicleClass: string(class),
			Capacity:     limit,
			Active:       active,
			Available:    available,
		})
	}

	if genErr != nil {
		logrus.WithError(genErr).Warn("Occupancy generation unavailable, not caching")
	} else if err := s.cacheService.SaveOccupancy(ctx, generation, classes); err != nil {
		logrus.WithError(err).Warn("Failed to cache occupancy")
	}

	return &models.Occupancy{Classes: classes}, nil
}

// publish is fire-and-forget: failures are logged and counted, never returned.
func (s *parkingService) publish(ctx context.Context, event events.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.sink.Publish(ctx, s.topic, event); err != nil {
		s.metrics.ObservePublishFailure(string(event.Kind))
		logrus.WithError(err).WithFields(logrus.Fields{
			"event": event.Kind,
			"id":    event.ID,
		}).Warn("Failed to publish event")
	}
}

func (s *parkingService) invalidateOccupancy(ctx context.Context) {
	if err := s.cacheService.InvalidateOccupancy(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to invalidate occupancy cache")
	}
}
