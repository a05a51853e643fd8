package store

import (
	"context"

	"github.com/emberwatch/fire-danger-service/internal/domain"
)

// Persistence forecast drift per day. A persistence baseline carries current
// conditions forward, with a mild daily drying trend so multi-day plans show
// a realistic gradient rather than a flat line.
const (
	warmPerDayF      = 1.5
	dryPerDayPct     = 2.0
	gustPerDayMPH    = 1.0
	minForecastRHPct = 5.0
)

// PersistenceForecaster projects future conditions from the latest held
// observation. It is the baseline forecast source used when no external
// forecast provider is configured.
type PersistenceForecaster struct {
	store *LatestStore
}

// NewPersistenceForecaster wraps a latest-observation store.
func NewPersistenceForecaster(store *LatestStore) *PersistenceForecaster {
	return &PersistenceForecaster{store: store}
}

// ProjectedConditions returns the subject's current conditions drifted
// forward by day steps. Day 1 is tomorrow.
func (f *PersistenceForecaster) ProjectedConditions(ctx context.Context, subject string, day int) (domain.WeatherObservation, error) {
	obs, err := f.store.Conditions(ctx, subject)
	if err != nil {
		return domain.WeatherObservation{}, err
	}
	if day < 1 {
		day = 1
	}

	d := float64(day)
	obs.TemperatureF = min(obs.TemperatureF+warmPerDayF*d, domain.MaxTemperatureF)
	obs.RelativeHumidityPct = max(obs.RelativeHumidityPct-dryPerDayPct*d, minForecastRHPct)
	obs.WindSpeedMPH = min(obs.WindSpeedMPH+gustPerDayMPH*d, domain.MaxWindSpeedMPH)
	obs.PrecipitationIn = 0
	obs.Timestamp = obs.Timestamp.AddDate(0, 0, day)
	return obs, nil
}
