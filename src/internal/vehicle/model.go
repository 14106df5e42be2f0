package vehicle

import (
	"fmt"
	"time"

	"parking-svc/src/internal/models"

	"github.com/shopspring/decimal"
)

type Class string

// Vehicle class constants
const (
	ClassMotorcycle   Class = "motorcycle"
	ClassLightVehicle Class = "light_vehicle"
)

var Classes = []Class{ClassMotorcycle, ClassLightVehicle}

func (c Class) IsValid() bool {
	switch c {
	case ClassMotorcycle, ClassLightVehicle:
		return true
	}
	return false
}

func ParseClass(value string) (Class, error) {
	class := Class(value)
	if !class.IsValid() {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidClass, value)
	}
	return class, nil
}

// Session is one parking occupancy, from entry until exit.
type Session struct {
	ID                 string          `json:"id"`
	Plate              string          `json:"plate"`
	VehicleClass       Class           `json:"vehicleClass"`
	IsElectricOrHybrid bool            `json:"isElectricOrHybrid"`
	AssignedSpot       int             `json:"assignedSpot"`
	EntryTime          time.Time       `json:"entryTime"`
	ExitTime           *time.Time      `json:"exitTime,omitempty"`
	Cost               decimal.Decimal `json:"cost"`
	IsFalsePositive    bool            `json:"isFalsePositive"`
}

// IsActive reports whether the vehicle is still parked.
func (s *Session) IsActive() bool {
	return s.ExitTime == nil
}

func (s *Session) Clone() *Session {
	clone := *s
	if s.ExitTime != nil {
		exit := *s.ExitTime
		clone.ExitTime = &exit
	}
	return &clone
}

// Patch is an administrative update. Nil fields are left untouched.
type Patch struct {
	AssignedSpot       *int       `json:"assignedSpot,omitempty"`
	IsElectricOrHybrid *bool      `json:"isElectricOrHybrid,omitempty"`
	ExitTime           *time.Time `json:"exitTime,omitempty"`
	IsFalsePositive    *bool      `json:"isFalsePositive,omitempty"`
}

func (p Patch) IsEmpty() bool {
	return p.AssignedSpot == nil &&
		p.IsElectricOrHybrid == nil &&
		p.ExitTime == nil &&
		p.IsFalsePositive == nil
}

// Apply copies the set fields of the patch onto the session.
func (p Patch) Apply(s *Session) {
	if p.AssignedSpot != nil {
		s.AssignedSpot = *p.AssignedSpot
	}
	if p.IsElectricOrHybrid != nil {
		s.IsElectricOrHybrid = *p.IsElectricOrHybrid
	}
	if p.ExitTime != nil {
		exit := *p.ExitTime
		s.ExitTime = &exit
	}
	if p.IsFalsePositive != nil {
		s.IsFalsePositive = *p.IsFalsePositive
	}
}
