package classify

import (
	"regexp"
	"strconv"
	"strings"
)

// Conditions holds weather values extracted from inline query text, e.g.
// "Calculate fire danger for 95F, 15% humidity, 20mph wind". Values are raw:
// validation happens when the coordinator constructs the observation.
type Conditions struct {
	TemperatureF        float64
	RelativeHumidityPct float64
	WindSpeedMPH        float64
	PrecipitationIn     float64
}

var (
	tempRe     = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*°?\s*f\b`)
	humidityRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%(?:\s*(?:rh|humidity))?`)
	windRe     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*mph\b`)
	precipRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:in|inch(?:es)?)\b`)
)

// ExtractConditions pulls inline weather conditions from query text.
// Temperature, humidity, and wind are all required for a match;
// precipitation defaults to zero.
func ExtractConditions(text string) (Conditions, bool) {
	lowered := strings.ToLower(text)

	temp, okT := firstNumber(tempRe, lowered)
	rh, okH := firstNumber(humidityRe, lowered)
	wind, okW := firstNumber(windRe, lowered)
	if !okT || !okH || !okW {
		return Conditions{}, false
	}

	cond := Conditions{
		TemperatureF:        temp,
		RelativeHumidityPct: rh,
		WindSpeedMPH:        wind,
	}
	if precip, ok := firstNumber(precipRe, lowered); ok {
		cond.PrecipitationIn = precip
	}
	return cond, true
}

func firstNumber(re *regexp.Regexp, s string) (float64, bool) {
	m := re.FindStringSubmatch(s)
	if len(m) != 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
