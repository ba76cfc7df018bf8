package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"guestcharge/services"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "01:30:00", FormatDuration(1.5))
	assert.Equal(t, "00:00:00", FormatDuration(0))
	assert.Equal(t, "00:00:00", FormatDuration(-2))
	assert.Equal(t, "02:15:00", FormatDuration(2.25))
	assert.Equal(t, "26:00:00", FormatDuration(26))
}

func TestFormatCostAndEnergy(t *testing.T) {
	assert.Equal(t, "$5.00", FormatCost("$", &services.Price{InclVAT: 5, ExclVAT: 4.2}))
	assert.Equal(t, "$0.00", FormatCost("$", nil))
	assert.Equal(t, "0.00", FormatCost("", nil))
	assert.Equal(t, "12.34 kWh", FormatEnergy(12.34))
	assert.Equal(t, "0.50 kWh", FormatEnergy(0.5))
}

func TestFormatClockAndDate(t *testing.T) {
	assert.Equal(t, "02:30 PM", FormatClock("2025-08-01T14:30:05Z"))
	assert.Equal(t, "09:05 AM", FormatClock("2025-08-01T09:05:00.123+02:00"))
	assert.Equal(t, "08/01/2025 | 02:30 PM", FormatDate("2025-08-01T14:30:05Z"))
	assert.Equal(t, "yesterday", FormatDate("yesterday"))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "80%", FormatPercent(80))
	assert.Equal(t, "33%", FormatPercent(33.3))
	assert.Equal(t, "0%", FormatPercent(0))
}

func TestProgressOffset(t *testing.T) {
	assert.Equal(t, progressCircumference(), progressOffset(0))
	assert.Equal(t, "0.00", progressOffset(100))
}
