package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/emberwatch/fire-danger-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obsAt(station string, at time.Time, tempF float64) domain.WeatherObservation {
	return domain.WeatherObservation{
		TemperatureF:        tempF,
		RelativeHumidityPct: 25,
		WindSpeedMPH:        10,
		Timestamp:           at,
		StationID:           station,
	}
}

func TestLatestStore_RecordKeepsNewest(t *testing.T) {
	s := NewLatestStore(nil)
	now := time.Now().UTC()

	assert.True(t, s.Record(obsAt("KSTS", now, 80)))
	assert.False(t, s.Record(obsAt("KSTS", now.Add(-time.Hour), 60)), "older observation must not replace newer")
	assert.False(t, s.Record(obsAt("KSTS", now, 70)), "equal timestamp does not replace")

	got, ok := s.Latest("KSTS")
	require.True(t, ok)
	assert.Equal(t, 80.0, got.TemperatureF)
}

func TestLatestStore_RecordRejectsMissingStation(t *testing.T) {
	s := NewLatestStore(nil)
	assert.False(t, s.Record(obsAt("", time.Now(), 80)))
}

func TestLatestStore_ConditionsByStationID(t *testing.T) {
	s := NewLatestStore(nil)
	s.Record(obsAt("KSTS", time.Now().UTC(), 85))

	got, err := s.Conditions(context.Background(), "KSTS")
	require.NoError(t, err)
	assert.Equal(t, "KSTS", got.StationID)

	// Lowercased station IDs resolve too; query text is lowercased upstream.
	got, err = s.Conditions(context.Background(), "ksts")
	require.NoError(t, err)
	assert.Equal(t, "KSTS", got.StationID)
}

func TestLatestStore_ConditionsByRegionPicksFreshest(t *testing.T) {
	s := NewLatestStore(map[string][]string{
		"North Bay": {"KSTS", "KAPC"},
	})
	now := time.Now().UTC()
	s.Record(obsAt("KSTS", now.Add(-time.Hour), 80))
	s.Record(obsAt("KAPC", now, 90))
	s.Record(obsAt("KBUR", now.Add(time.Hour), 100)) // outside the region

	got, err := s.Conditions(context.Background(), "north bay")
	require.NoError(t, err)
	assert.Equal(t, "KAPC", got.StationID, "freshest station within the region wins")
}

func TestLatestStore_LocalAreaFallsBackToFreshestAnywhere(t *testing.T) {
	s := NewLatestStore(nil)
	now := time.Now().UTC()
	s.Record(obsAt("KSTS", now.Add(-time.Hour), 80))
	s.Record(obsAt("KBUR", now, 95))

	got, err := s.Conditions(context.Background(), "local area")
	require.NoError(t, err)
	assert.Equal(t, "KBUR", got.StationID)
}

func TestLatestStore_UnknownSubjectErrors(t *testing.T) {
	s := NewLatestStore(nil)
	s.Record(obsAt("KSTS", time.Now().UTC(), 80))

	_, err := s.Conditions(context.Background(), "atlantis")
	assert.Error(t, err)
}

func TestLatestStore_EmptyStoreErrors(t *testing.T) {
	s := NewLatestStore(nil)
	_, err := s.Conditions(context.Background(), "local area")
	assert.Error(t, err)
}

func TestLatestStore_ConcurrentRecordAndRead(t *testing.T) {
	s := NewLatestStore(nil)
	base := time.Now().UTC()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Record(obsAt("KSTS", base.Add(time.Duration(i)*time.Second), float64(60+i)))
			s.Latest("KSTS")
			s.Stations()
		}(i)
	}
	wg.Wait()

	got, ok := s.Latest("KSTS")
	require.True(t, ok)
	assert.Equal(t, base.Add(31*time.Second), got.Timestamp)
}

func TestPersistenceForecaster_DriftsWarmerAndDrier(t *testing.T) {
	s := NewLatestStore(nil)
	s.Record(obsAt("KSTS", time.Now().UTC(), 80))
	f := NewPersistenceForecaster(s)

	day1, err := f.ProjectedConditions(context.Background(), "KSTS", 1)
	require.NoError(t, err)
	day3, err := f.ProjectedConditions(context.Background(), "KSTS", 3)
	require.NoError(t, err)

	assert.Greater(t, day3.TemperatureF, day1.TemperatureF)
	assert.Less(t, day3.RelativeHumidityPct, day1.RelativeHumidityPct)
	assert.Greater(t, day3.WindSpeedMPH, day1.WindSpeedMPH)
	assert.Zero(t, day1.PrecipitationIn)

	// Projections stay inside the accepted observation bounds.
	require.NoError(t, day3.Validate())
}

func TestPersistenceForecaster_ClampsAtBounds(t *testing.T) {
	s := NewLatestStore(nil)
	s.Record(domain.WeatherObservation{
		TemperatureF:        149,
		RelativeHumidityPct: 6,
		WindSpeedMPH:        99,
		Timestamp:           time.Now().UTC(),
		StationID:           "KSTS",
	})
	f := NewPersistenceForecaster(s)

	got, err := f.ProjectedConditions(context.Background(), "KSTS", 10)
	require.NoError(t, err)

	assert.Equal(t, domain.MaxTemperatureF, got.TemperatureF)
	assert.Equal(t, minForecastRHPct, got.RelativeHumidityPct)
	assert.Equal(t, domain.MaxWindSpeedMPH, got.WindSpeedMPH)
	require.NoError(t, got.Validate())
}

func TestPersistenceForecaster_UnknownSubjectErrors(t *testing.T) {
	f := NewPersistenceForecaster(NewLatestStore(nil))
	_, err := f.ProjectedConditions(context.Background(), "atlantis", 1)
	assert.Error(t, err)
}
