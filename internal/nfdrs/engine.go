// Package nfdrs implements the National Fire Danger Rating System
// calculation pipeline: dead fuel moisture, spread component, energy release
// component, burning index, and the adjective classification.
//
// All functions are pure and touch no shared state, so an Engine is safe to
// call from any number of goroutines without synchronization.
//
// # Pinned formulas
//
// Dead fuel moisture uses the Simard (1968) equilibrium moisture content
// regression over temperature (°F) and relative humidity (%), the reference
// standard published with the 1978 NFDRS:
//
//	RH < 10:   EMC = 0.03 + 0.2626·RH − 0.00104·RH·T
//	RH < 50:   EMC = 1.76 + 0.1601·RH − 0.0266·T
//	RH ≥ 50:   EMC = 21.06 − 0.4944·RH + 0.005565·RH² − 0.00063·RH·T
//
// The burning index uses the 1978 NFDRS combination
//
//	BI = 10 · 0.301 · (SC · ERC)^0.46
//
// rather than a plain product, so BI stays on the published 0..999 scale.
package nfdrs

import (
	"math"

	"github.com/emberwatch/fire-danger-service/internal/domain"
)

// Timelag multipliers and daily response fractions. The 1-hour and 10-hour
// classes track EMC directly; the 100-hour and 1000-hour classes move toward
// the 24-hour boundary value by 1−e^(−24/τ) per day.
const (
	oneHourFactor = 1.03
	tenHourFactor = 1.28

	hundredHourResponse  = 0.2134 // 1 − e^(−24/100)
	thousandHourResponse = 0.0237 // 1 − e^(−24/1000)
)

// Burning index scaling constants (1978 NFDRS).
const (
	biScale    = 0.301
	biExponent = 0.46
)

// Classification thresholds over burning index, in ascending order.
var classThresholds = []struct {
	upper float64
	class domain.DangerClassification
}{
	{25, domain.DangerLow},
	{50, domain.DangerModerate},
	{75, domain.DangerHigh},
	{90, domain.DangerVeryHigh},
	{math.Inf(1), domain.DangerExtreme},
}

// Engine computes fire danger for fuel model G (standard grass). The zero
// value is not usable; construct with New.
type Engine struct {
	// liveFuelMoisture is the assumed live fuel moisture percentage used by
	// the energy release component. Live fuels are not observed by weather
	// stations, so a seasonal constant stands in.
	liveFuelMoisture float64
}

// DefaultLiveFuelMoisture is a mid-season live fuel moisture percentage.
const DefaultLiveFuelMoisture = 120.0

// New creates an Engine with the default live fuel moisture.
func New() *Engine {
	return &Engine{liveFuelMoisture: DefaultLiveFuelMoisture}
}

// NewWithLiveFuelMoisture creates an Engine with an explicit live fuel
// moisture percentage, for seasonally adjusted ratings.
func NewWithLiveFuelMoisture(pct float64) *Engine {
	return &Engine{liveFuelMoisture: pct}
}

// ComputeDeadFuelMoisture derives the four timelag moisture classes from an
// observation. Inputs are validated and never clamped; outputs are clamped
// to [1,60].
func (e *Engine) ComputeDeadFuelMoisture(obs domain.WeatherObservation) (domain.FuelMoistureSet, error) {
	if err := obs.Validate(); err != nil {
		return domain.FuelMoistureSet{}, err
	}

	emc := equilibriumMoisture(obs.TemperatureF, obs.RelativeHumidityPct)

	// Rain wets the fine fuels directly. The fast-responding classes absorb
	// it in full; the slow classes see it through the boundary value below.
	wetted := emc
	if obs.PrecipitationIn > 0.1 {
		wetted += obs.PrecipitationIn * 2
	}

	// 24-hour boundary condition for the slow classes: a weighted blend of
	// dry-hour EMC and wet-hour moisture, with precipitation duration
	// estimated from the 24-hour total.
	precipHours := math.Min(8, obs.PrecipitationIn*16)
	boundary := ((24-precipHours)*emc + precipHours*(0.5*precipHours+41)) / 24

	return domain.FuelMoistureSet{
		OneHour:      clampMoisture(oneHourFactor * wetted),
		TenHour:      clampMoisture(tenHourFactor * wetted),
		HundredHour:  clampMoisture(emc + hundredHourResponse*(boundary-emc)),
		ThousandHour: clampMoisture(emc + thousandHourResponse*(boundary-emc)),
	}, nil
}

// ComputeSpreadComponent estimates spread potential from wind and 1-hour
// fuel moisture, clamped to [0,99]. Strictly increasing in wind speed and
// strictly decreasing in fuel moisture inside the clamp band.
func (e *Engine) ComputeSpreadComponent(fm domain.FuelMoistureSet, windMPH float64) float64 {
	windFactor := math.Pow(windMPH, 1.5) / 5.0
	moistureFactor := math.Exp(-0.108 * fm.OneHour)
	return clamp(0.560*windFactor*moistureFactor, 0, 99)
}

// ComputeEnergyReleaseComponent estimates available combustion energy from
// the weighted dead fuel moisture and the engine's live fuel moisture,
// clamped to [0,97]. Drier fuel yields a higher component.
func (e *Engine) ComputeEnergyReleaseComponent(fm domain.FuelMoistureSet) float64 {
	// Dead class loading weights for fuel model G, fine fuels dominant.
	dead := 0.50*fm.OneHour + 0.30*fm.TenHour + 0.15*fm.HundredHour + 0.05*fm.ThousandHour

	deadTerm := 0.7 * (1 - dead/100)
	liveTerm := 0.3 * (1 - e.liveFuelMoisture/100)
	return clamp((deadTerm+liveTerm)*100, 0, 97)
}

// ComputeBurningIndex combines spread and energy release into the composite
// burning index on the 0..999 scale.
func (e *Engine) ComputeBurningIndex(spread, energy float64) float64 {
	return clamp(10*biScale*math.Pow(spread*energy, biExponent), 0, 999)
}

// Classify maps a burning index to its adjective class via the ordered
// threshold table. Monotonic: a higher index never yields a lower class.
func Classify(burningIndex float64) domain.DangerClassification {
	for _, t := range classThresholds {
		if burningIndex < t.upper {
			return t.class
		}
	}
	return domain.DangerExtreme
}

// CalculateFireDanger runs the full pipeline in fixed order: moisture →
// spread → energy → burning index → classification.
func (e *Engine) CalculateFireDanger(obs domain.WeatherObservation) (domain.DangerReport, error) {
	moisture, err := e.ComputeDeadFuelMoisture(obs)
	if err != nil {
		return domain.DangerReport{}, err
	}

	spread := e.ComputeSpreadComponent(moisture, obs.WindSpeedMPH)
	energy := e.ComputeEnergyReleaseComponent(moisture)
	burning := e.ComputeBurningIndex(spread, energy)

	return domain.DangerReport{
		Observation: obs,
		Moisture:    moisture,
		Components: domain.DangerComponents{
			SpreadComponent:        spread,
			EnergyReleaseComponent: energy,
			BurningIndex:           burning,
		},
		Class: Classify(burning),
	}, nil
}

// equilibriumMoisture is the Simard EMC regression. T in °F, RH in percent.
func equilibriumMoisture(tempF, rhPct float64) float64 {
	switch {
	case rhPct < 10:
		return 0.03 + 0.2626*rhPct - 0.00104*rhPct*tempF
	case rhPct < 50:
		return 1.76 + 0.1601*rhPct - 0.0266*tempF
	default:
		return 21.06 - 0.4944*rhPct + 0.005565*rhPct*rhPct - 0.00063*rhPct*tempF
	}
}

func clampMoisture(v float64) float64 {
	return clamp(v, domain.MinFuelMoisturePct, domain.MaxFuelMoisturePct)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
