package tariff

import (
	"testing"
	"time"

	"parking-svc/src/internal/models"
	"parking-svc/src/internal/vehicle"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseRate(t *testing.T) {
	rate, err := BaseRate(vehicle.ClassMotorcycle)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(62)))

	rate, err = BaseRate(vehicle.ClassLightVehicle)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(120)))

	_, err = BaseRate(vehicle.Class("truck"))
	assert.ErrorIs(t, err, models.ErrInvalidClass)
}

func TestEntryCost_ElectricDiscount(t *testing.T) {
	for _, class := range vehicle.Classes {
		full, err := EntryCost(class, false)
		require.NoError(t, err)
		discounted, err := EntryCost(class, true)
		require.NoError(t, err)

		assert.True(t, discounted.Equal(full.Mul(decimal.RequireFromString("0.75"))), "class %s", class)
	}

	cost, err := EntryCost(vehicle.ClassMotorcycle, true)
	require.NoError(t, err)
	assert.Equal(t, "46.5", cost.String())

	_, err = EntryCost(vehicle.Class(""), true)
	assert.ErrorIs(t, err, models.ErrInvalidClass)
}

func TestBilledHours(t *testing.T) {
	entry := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		elapsed  time.Duration
		expected int64
	}{
		{name: "zero duration bills one hour", elapsed: 0, expected: 1},
		{name: "one minute", elapsed: time.Minute, expected: 1},
		{name: "exactly one hour", elapsed: time.Hour, expected: 1},
		{name: "sixty one minutes", elapsed: 61 * time.Minute, expected: 2},
		{name: "ninety minutes", elapsed: 90 * time.Minute, expected: 2},
		{name: "one nanosecond past two hours", elapsed: 2*time.Hour + 1, expected: 3},
		{name: "negative duration", elapsed: -time.Hour, expected: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, BilledHours(entry, entry.Add(tc.elapsed)))
		})
	}
}

func TestSettlementCost(t *testing.T) {
	entry := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	rate := decimal.NewFromInt(120)

	assert.True(t, SettlementCost(rate, entry, entry).Equal(rate))
	assert.True(t, SettlementCost(rate, entry, entry.Add(61*time.Minute)).Equal(decimal.NewFromInt(240)))
	assert.True(t, SettlementCost(decimal.RequireFromString("46.5"), entry, entry.Add(90*time.Minute)).Equal(decimal.NewFromInt(93)))
	assert.True(t, SettlementCost(decimal.NewFromInt(-5), entry, entry.Add(time.Hour)).IsZero())
}
