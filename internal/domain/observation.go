package domain

import "time"

// Accepted input bounds for a weather observation. Values outside these
// bounds are rejected, never clamped.
const (
	MinTemperatureF = -50.0
	MaxTemperatureF = 150.0
	MaxHumidityPct  = 100.0
	MaxWindSpeedMPH = 100.0
)

// WeatherObservation is a single validated station observation. Construct
// one with NewWeatherObservation; treat it as immutable afterwards.
type WeatherObservation struct {
	TemperatureF        float64   `json:"temperature_f"`
	RelativeHumidityPct float64   `json:"relative_humidity_pct"`
	WindSpeedMPH        float64   `json:"wind_speed_mph"`
	PrecipitationIn     float64   `json:"precipitation_in"`
	Timestamp           time.Time `json:"timestamp"`
	StationID           string    `json:"station_id,omitempty"`
}

// NewWeatherObservation validates the raw fields and returns an observation.
// The first out-of-range field produces a ValidationError naming it.
func NewWeatherObservation(tempF, humidityPct, windMPH, precipIn float64, at time.Time, station string) (WeatherObservation, error) {
	if err := ValidateObservation(tempF, humidityPct, windMPH, precipIn); err != nil {
		return WeatherObservation{}, err
	}
	return WeatherObservation{
		TemperatureF:        tempF,
		RelativeHumidityPct: humidityPct,
		WindSpeedMPH:        windMPH,
		PrecipitationIn:     precipIn,
		Timestamp:           at,
		StationID:           station,
	}, nil
}

// ValidateObservation checks each field against its accepted bound.
func ValidateObservation(tempF, humidityPct, windMPH, precipIn float64) error {
	switch {
	case tempF < MinTemperatureF || tempF > MaxTemperatureF:
		return &ValidationError{Field: "temperature", Value: tempF, Bound: "between -50 and 150 °F"}
	case humidityPct < 0 || humidityPct > MaxHumidityPct:
		return &ValidationError{Field: "humidity", Value: humidityPct, Bound: "between 0 and 100 %"}
	case windMPH < 0 || windMPH > MaxWindSpeedMPH:
		return &ValidationError{Field: "wind_speed", Value: windMPH, Bound: "between 0 and 100 mph"}
	case precipIn < 0:
		return &ValidationError{Field: "precipitation", Value: precipIn, Bound: "0 or more inches"}
	}
	return nil
}

// Validate re-checks an already constructed observation, for values that
// arrive over the wire rather than through NewWeatherObservation.
func (o WeatherObservation) Validate() error {
	return ValidateObservation(o.TemperatureF, o.RelativeHumidityPct, o.WindSpeedMPH, o.PrecipitationIn)
}
