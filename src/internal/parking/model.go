package parking

import (
	"time"

	"parking-svc/src/internal/vehicle"

	"github.com/shopspring/decimal"
)

// AdmitRequest represents a vehicle entering the facility
type AdmitRequest struct {
	Plate              string `json:"plate" binding:"required,alphanum"`
	VehicleClass       string `json:"vehicleClass" binding:"required,oneof=motorcycle light_vehicle"`
	IsElectricOrHybrid bool   `json:"isElectricOrHybrid"`
	AssignedSpot       int    `json:"assignedSpot" binding:"required,min=1"`
}

// UpdateRequest represents an administrative change to a vehicle session
type UpdateRequest struct {
	AssignedSpot       *int       `json:"assignedSpot" binding:"omitempty,min=1"`
	IsElectricOrHybrid *bool      `json:"isElectricOrHybrid"`
	ExitTime           *time.Time `json:"exitTime"`
	IsFalsePositive    *bool      `json:"isFalsePositive"`
}

func (r *UpdateRequest) ToPatch() vehicle.Patch {
	return vehicle.Patch{
		AssignedSpot:       r.AssignedSpot,
		IsElectricOrHybrid: r.IsElectricOrHybrid,
		ExitTime:           r.ExitTime,
		IsFalsePositive:    r.IsFalsePositive,
	}
}

// CloseDayReport is the outcome of an end-of-day settlement sweep
type CloseDayReport struct {
	TotalRevenue decimal.Decimal     `json:"totalRevenue"`
	SettledCount int                 `json:"settledCount"`
	Failures     []SettlementFailure `json:"failures"`
	ClosedAt     time.Time           `json:"closedAt"`
}

type SettlementFailure struct {
	ID    string `json:"id"`
	Plate string `json:"plate"`
	Error string `json:"error"`
}
