package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/emberwatch/fire-danger-service/internal/domain"
)

// stationMessage is the wire form of one station observation.
type stationMessage struct {
	StationID           string  `json:"station_id"`
	TemperatureF        float64 `json:"temperature_f"`
	RelativeHumidityPct float64 `json:"relative_humidity_pct"`
	WindSpeedMPH        float64 `json:"wind_speed_mph"`
	PrecipitationIn     float64 `json:"precipitation_in"`
	ObservedAt          string  `json:"observed_at"` // RFC 3339
}

// ParseObservation decodes and validates one observation message. Messages
// missing a station ID or timestamp, or carrying out-of-range values, are
// rejected.
func ParseObservation(value []byte) (domain.WeatherObservation, error) {
	var msg stationMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return domain.WeatherObservation{}, fmt.Errorf("decode observation: %w", err)
	}

	if msg.StationID == "" {
		return domain.WeatherObservation{}, fmt.Errorf("observation missing station_id")
	}
	if msg.ObservedAt == "" {
		return domain.WeatherObservation{}, fmt.Errorf("observation missing observed_at")
	}
	at, err := time.Parse(time.RFC3339, msg.ObservedAt)
	if err != nil {
		return domain.WeatherObservation{}, fmt.Errorf("parse observed_at: %w", err)
	}

	return domain.NewWeatherObservation(
		msg.TemperatureF,
		msg.RelativeHumidityPct,
		msg.WindSpeedMPH,
		msg.PrecipitationIn,
		at.UTC(),
		msg.StationID,
	)
}
