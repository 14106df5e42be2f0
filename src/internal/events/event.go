package events

import (
	"context"
	"time"

	"parking-svc/src/internal/vehicle"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Kind string

// Event kind constants
const (
	KindVehicleAdmitted Kind = "vehicle_admitted"
	KindVehicleUpdated  Kind = "vehicle_updated"
	KindVehicleRemoved  Kind = "vehicle_removed"
	KindVehicleExited   Kind = "vehicle_exited"
	KindDayClosed       Kind = "day_closed"
)

// Event is the payload published for every vehicle lifecycle change.
type Event struct {
	Kind         Kind             `json:"event"`
	ID           string           `json:"id,omitempty"`
	Plate        string           `json:"plate,omitempty"`
	VehicleClass vehicle.Class    `json:"vehicleClass,omitempty"`
	AssignedSpot int              `json:"assignedSpot,omitempty"`
	Update       *vehicle.Patch   `json:"update,omitempty"`
	TotalCost    *decimal.Decimal `json:"totalCost,omitempty"`
	TotalRevenue *decimal.Decimal `json:"totalRevenue,omitempty"`
	SettledCount int              `json:"settledCount,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

// Sink delivers events to subscribers. Callers treat failures as non-fatal.
type Sink interface {
	Publish(ctx context.Context, topic string, event Event) error
}

// LogSink writes events to the log. Used when no broker is configured.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Publish(_ context.Context, topic string, event Event) error {
	logrus.WithFields(logrus.Fields{
		"topic": topic,
		"event": event.Kind,
		"id":    event.ID,
		"plate": event.Plate,
	}).Info("Event emitted")
	return nil
}
