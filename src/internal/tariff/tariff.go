// Package tariff prices parking stays. All functions are pure.
package tariff

import (
	"fmt"
	"time"

	"parking-svc/src/internal/models"
	"parking-svc/src/internal/vehicle"

	"github.com/shopspring/decimal"
)

var (
	motorcycleRate   = decimal.NewFromInt(62)
	lightVehicleRate = decimal.NewFromInt(120)
	electricFactor   = decimal.RequireFromString("0.75")
)

// BaseRate returns the hourly rate of a vehicle class.
func BaseRate(class vehicle.Class) (decimal.Decimal, error) {
	switch class {
	case vehicle.ClassMotorcycle:
		return motorcycleRate, nil
	case vehicle.ClassLightVehicle:
		return lightVehicleRate, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %q", models.ErrInvalidClass, class)
}

// EntryCost returns the hourly rate charged to a vehicle, with the 25%
// electric or hybrid discount applied.
func EntryCost(class vehicle.Class, isElectricOrHybrid bool) (decimal.Decimal, error) {
	rate, err := BaseRate(class)
	if err != nil {
		return decimal.Zero, err
	}
	if isElectricOrHybrid {
		rate = rate.Mul(electricFactor)
	}
	return rate, nil
}

// BilledHours rounds the stay up to whole hours. Any stay, including an
// empty or negative one, bills at least one hour.
func BilledHours(entry, exit time.Time) int64 {
	elapsed := exit.Sub(entry)
	if elapsed <= 0 {
		return 1
	}
	hours := int64(elapsed / time.Hour)
	if elapsed%time.Hour != 0 {
		hours++
	}
	return hours
}

// SettlementCost is the total owed for a stay billed at entryCost per hour.
func SettlementCost(entryCost decimal.Decimal, entry, exit time.Time) decimal.Decimal {
	if entryCost.IsNegative() {
		entryCost = decimal.Zero
	}
	return entryCost.Mul(decimal.NewFromInt(BilledHours(entry, exit)))
}
