package domain

import "fmt"

// Output clamp band for dead fuel moisture percentages.
const (
	MinFuelMoisturePct = 1.0
	MaxFuelMoisturePct = 60.0
)

// FuelMoistureSet holds modeled dead fuel moisture at the four standard
// timelag classes, each a percentage clamped to [1,60].
type FuelMoistureSet struct {
	OneHour      float64 `json:"one_hour"`
	TenHour      float64 `json:"ten_hour"`
	HundredHour  float64 `json:"hundred_hour"`
	ThousandHour float64 `json:"thousand_hour"`
}

// DangerComponents are the derived NFDRS scalars. Never mutated after
// creation.
type DangerComponents struct {
	SpreadComponent        float64 `json:"spread_component"`         // 0..99
	EnergyReleaseComponent float64 `json:"energy_release_component"` // 0..97
	BurningIndex           float64 `json:"burning_index"`            // 0..999
}

// DangerClassification is the adjective fire danger class.
type DangerClassification int

const (
	DangerLow DangerClassification = iota
	DangerModerate
	DangerHigh
	DangerVeryHigh
	DangerExtreme
)

var classNames = [...]string{"LOW", "MODERATE", "HIGH", "VERY_HIGH", "EXTREME"}

func (c DangerClassification) String() string {
	if c < DangerLow || c > DangerExtreme {
		return "UNKNOWN"
	}
	return classNames[c]
}

// MarshalText renders the class name, keeping JSON output human-readable.
func (c DangerClassification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a class name.
func (c *DangerClassification) UnmarshalText(text []byte) error {
	name := string(text)
	for n, candidate := range classNames {
		if candidate == name {
			*c = DangerClassification(n)
			return nil
		}
	}
	return fmt.Errorf("unknown danger classification %q", name)
}

// DangerReport is the complete output of one fire danger calculation.
type DangerReport struct {
	Observation WeatherObservation   `json:"observation"`
	Moisture    FuelMoistureSet      `json:"fuel_moisture"`
	Components  DangerComponents     `json:"components"`
	Class       DangerClassification `json:"classification"`
}
