package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWeatherObservation_Valid(t *testing.T) {
	at := time.Date(2026, time.July, 4, 14, 0, 0, 0, time.UTC)

	obs, err := NewWeatherObservation(85, 25, 12, 0, at, "KSTS")
	require.NoError(t, err)

	assert.Equal(t, 85.0, obs.TemperatureF)
	assert.Equal(t, 25.0, obs.RelativeHumidityPct)
	assert.Equal(t, 12.0, obs.WindSpeedMPH)
	assert.Equal(t, 0.0, obs.PrecipitationIn)
	assert.Equal(t, at, obs.Timestamp)
	assert.Equal(t, "KSTS", obs.StationID)
}

func TestNewWeatherObservation_BoundaryValuesAccepted(t *testing.T) {
	// Exact bounds are valid, not errors.
	_, err := NewWeatherObservation(150, 0, 0, 0, time.Now(), "")
	assert.NoError(t, err)

	_, err = NewWeatherObservation(-50, 100, 100, 0, time.Now(), "")
	assert.NoError(t, err)
}

func TestNewWeatherObservation_RejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name                     string
		temp, rh, wind, precip   float64
		wantField                string
	}{
		{"temperature too high", 151, 25, 10, 0, "temperature"},
		{"temperature too low", -51, 25, 10, 0, "temperature"},
		{"humidity too high", 85, 101, 10, 0, "humidity"},
		{"humidity negative", 85, -1, 10, 0, "humidity"},
		{"wind too high", 85, 25, 101, 0, "wind_speed"},
		{"wind negative", 85, 25, -1, 0, "wind_speed"},
		{"precipitation negative", 85, 25, 10, -0.1, "precipitation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWeatherObservation(tt.temp, tt.rh, tt.wind, tt.precip, time.Now(), "")
			require.Error(t, err)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestIntentString(t *testing.T) {
	assert.Equal(t, "simple_calculation", IntentSimpleCalculation.String())
	assert.Equal(t, "delegated", IntentDelegated.String())
	assert.Equal(t, "unknown", Intent(99).String())
}

func TestDangerClassificationString(t *testing.T) {
	assert.Equal(t, "LOW", DangerLow.String())
	assert.Equal(t, "VERY_HIGH", DangerVeryHigh.String())
	assert.Equal(t, "UNKNOWN", DangerClassification(42).String())
}
