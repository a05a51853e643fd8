package domain

import "fmt"

// Intent is the classified purpose of a free-text query. Produced once per
// query and immutable afterwards.
type Intent int

const (
	IntentSimpleCalculation Intent = iota
	IntentComplexComparison
	IntentTemporalForecast
	IntentDecisionSupport
	IntentDelegated
)

var intentNames = [...]string{
	"simple_calculation",
	"complex_comparison",
	"temporal_forecast",
	"decision_support",
	"delegated",
}

func (i Intent) String() string {
	if i < IntentSimpleCalculation || i > IntentDelegated {
		return "unknown"
	}
	return intentNames[i]
}

// MarshalText renders the snake_case intent name.
func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText parses a snake_case intent name.
func (i *Intent) UnmarshalText(text []byte) error {
	name := string(text)
	for n, candidate := range intentNames {
		if candidate == name {
			*i = Intent(n)
			return nil
		}
	}
	return fmt.Errorf("unknown intent %q", name)
}

// NeedsDecomposition reports whether the intent routes through the
// decomposer rather than direct calculation or delegation.
func (i Intent) NeedsDecomposition() bool {
	switch i {
	case IntentComplexComparison, IntentTemporalForecast, IntentDecisionSupport:
		return true
	default:
		return false
	}
}
